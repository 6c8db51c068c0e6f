// Package store persists entities as JSON documents in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/etnz/immotax"
	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when an entity does not exist, or belongs to another owner.
var ErrNotFound = errors.New("entity not found")

// Actions of an Event.
const (
	Created = "created"
	Updated = "updated"
	Deleted = "deleted"
)

// Event describes a successful write.
type Event struct {
	Kind   immotax.Kind    `json:"kind"`
	Action string          `json:"action"`
	ID     string          `json:"id"`
	Owner  string          `json:"owner"`
	At     time.Time       `json:"at"`
	Data   json.RawMessage `json:"data"` // Data is the entity as written, or as it was before deletion.
}

// Type returns the event type, "<Kind>.<action>".
func (e Event) Type() string { return string(e.Kind) + "." + e.Action }

// Listener is notified of every successful write. It is called synchronously,
// after the write, and must not block.
type Listener func(Event)

// Store is an entity store over SQLite.
type Store struct {
	db       *sql.DB
	mu       sync.RWMutex
	listener Listener
	log      *zap.Logger
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger of the store.
func WithLogger(log *zap.Logger) Option { return func(s *Store) { s.log = log } }

// WithListener sets the listener notified of writes.
func WithListener(l Listener) Option { return func(s *Store) { s.listener = l } }

// WithClock sets the clock used for the created and updated timestamps.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// Open opens the SQLite database at path and creates its schema if needed.
// Use ":memory:" for an in-memory database.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, log: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entities (
		kind TEXT NOT NULL,
		id TEXT NOT NULL,
		owner TEXT NOT NULL,
		created INTEGER NOT NULL,
		updated INTEGER NOT NULL,
		doc TEXT NOT NULL,
		PRIMARY KEY (kind, id)
	);
	CREATE INDEX IF NOT EXISTS idx_kind_owner ON entities(kind, owner);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// SetListener replaces the listener notified of writes.
func (s *Store) SetListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Create validates and inserts a new entity owned by 'owner'.
// It sets the entity id and timestamps.
func (s *Store) Create(ctx context.Context, owner string, e immotax.Entity) error {
	meta := e.EntityMeta()
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if e.Kind() == immotax.KindUser && owner == "" {
		// users own themselves
		owner = meta.ID
	}
	meta.Owner = owner
	meta.Created = s.now().UTC()
	meta.Updated = meta.Created
	if err := immotax.Validate(e); err != nil {
		return err
	}

	doc, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", e.Kind(), err)
	}

	s.mu.Lock()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO entities (kind, id, owner, created, updated, doc) VALUES (?, ?, ?, ?, ?, ?)",
		string(e.Kind()), meta.ID, owner, meta.Created.UnixNano(), meta.Updated.UnixNano(), string(doc),
	)
	listener := s.listener
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("insert %s: %w", e.Kind(), err)
	}

	s.log.Debug("entity created", zap.String("kind", string(e.Kind())), zap.String("id", meta.ID), zap.String("owner", owner))
	s.notify(listener, Event{Kind: e.Kind(), Action: Created, ID: meta.ID, Owner: owner, At: meta.Updated, Data: doc})
	return nil
}

// Get reads the entity of kind and id into 'dst'. An empty owner reads any owner's entity.
func (s *Store) Get(ctx context.Context, owner, id string, dst immotax.Entity) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT doc FROM entities WHERE kind = ? AND id = ?"
	args := []any{string(dst.Kind()), id}
	if owner != "" {
		query += " AND owner = ?"
		args = append(args, owner)
	}
	var doc string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", dst.Kind(), id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("query %s %s: %w", dst.Kind(), id, err)
	}
	if err := json.Unmarshal([]byte(doc), dst); err != nil {
		return fmt.Errorf("unmarshal %s %s: %w", dst.Kind(), id, err)
	}
	return nil
}

// Update validates and replaces an existing entity. The owner and the
// creation time cannot change.
func (s *Store) Update(ctx context.Context, owner string, e immotax.Entity) error {
	meta := e.EntityMeta()
	if meta.ID == "" {
		return fmt.Errorf("%w: %s without id", immotax.ErrValidation, e.Kind())
	}

	s.mu.Lock()
	var created int64
	var current string
	query := "SELECT owner, created FROM entities WHERE kind = ? AND id = ?"
	err := s.db.QueryRowContext(ctx, query, string(e.Kind()), meta.ID).Scan(&current, &created)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != "" && current != owner) {
		s.mu.Unlock()
		return fmt.Errorf("%s %s: %w", e.Kind(), meta.ID, ErrNotFound)
	}
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("query %s %s: %w", e.Kind(), meta.ID, err)
	}

	meta.Owner = current
	meta.Created = time.Unix(0, created).UTC()
	meta.Updated = s.now().UTC()
	if err := immotax.Validate(e); err != nil {
		s.mu.Unlock()
		return err
	}
	doc, err := json.Marshal(e)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("marshal %s: %w", e.Kind(), err)
	}
	_, err = s.db.ExecContext(ctx,
		"UPDATE entities SET updated = ?, doc = ? WHERE kind = ? AND id = ?",
		meta.Updated.UnixNano(), string(doc), string(e.Kind()), meta.ID,
	)
	listener := s.listener
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("update %s %s: %w", e.Kind(), meta.ID, err)
	}

	s.notify(listener, Event{Kind: e.Kind(), Action: Updated, ID: meta.ID, Owner: current, At: meta.Updated, Data: doc})
	return nil
}

// Delete removes an entity. An empty owner deletes any owner's entity.
func (s *Store) Delete(ctx context.Context, owner string, kind immotax.Kind, id string) error {
	s.mu.Lock()
	var doc, current string
	query := "SELECT owner, doc FROM entities WHERE kind = ? AND id = ?"
	err := s.db.QueryRowContext(ctx, query, string(kind), id).Scan(&current, &doc)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != "" && current != owner) {
		s.mu.Unlock()
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("query %s %s: %w", kind, id, err)
	}
	_, err = s.db.ExecContext(ctx, "DELETE FROM entities WHERE kind = ? AND id = ?", string(kind), id)
	listener := s.listener
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}

	s.notify(listener, Event{Kind: kind, Action: Deleted, ID: id, Owner: current, At: s.now().UTC(), Data: json.RawMessage(doc)})
	return nil
}

func (s *Store) notify(l Listener, e Event) {
	if l != nil {
		l(e)
	}
}

var fieldRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Query selects and orders entities.
type Query struct {
	// Filter holds equality conditions on top-level fields of the entities.
	Filter map[string]any
	// Sort is "created", "updated" or a top-level field, prefixed with "-" for
	// a descending order. The default is "created". Entities with the same
	// sort value are listed in the order they were created.
	Sort   string
	Limit  int
	Offset int
}

// sql returns the WHERE complement and ORDER BY clause of the query, and their arguments.
func (q Query) sql() (string, []any, error) {
	var b strings.Builder
	var args []any
	for _, f := range slices.Sorted(maps.Keys(q.Filter)) {
		if !fieldRE.MatchString(f) {
			return "", nil, fmt.Errorf("%w: invalid filter field %q", immotax.ErrValidation, f)
		}
		v := q.Filter[f]
		switch x := v.(type) {
		case nil:
			fmt.Fprintf(&b, " AND json_extract(doc, '$.%s') IS NULL", f)
			continue
		case bool:
			if x {
				v = 1
			} else {
				v = 0
			}
		case string, float64, float32, int, int64, int32:
		default:
			return "", nil, fmt.Errorf("%w: unsupported filter value %v for %q", immotax.ErrValidation, v, f)
		}
		fmt.Fprintf(&b, " AND json_extract(doc, '$.%s') = ?", f)
		args = append(args, v)
	}

	sort, desc := strings.CutPrefix(q.Sort, "-")
	order := "created"
	switch sort {
	case "", "created":
	case "updated":
		order = "updated"
	default:
		if !fieldRE.MatchString(sort) {
			return "", nil, fmt.Errorf("%w: invalid sort field %q", immotax.ErrValidation, sort)
		}
		order = fmt.Sprintf("json_extract(doc, '$.%s')", sort)
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	// ties keep the insertion order, whatever the direction.
	fmt.Fprintf(&b, " ORDER BY %s %s, created ASC, rowid ASC", order, dir)

	if q.Limit > 0 || q.Offset > 0 {
		limit := q.Limit
		if limit <= 0 {
			limit = -1
		}
		b.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, limit, q.Offset)
	}
	return b.String(), args, nil
}

// List returns the raw JSON documents of the entities of a kind matching the
// query. An empty owner lists every owner's entities.
func (s *Store) List(ctx context.Context, owner string, kind immotax.Kind, q Query) ([]json.RawMessage, error) {
	clause, args, err := q.sql()
	if err != nil {
		return nil, err
	}
	query := "SELECT doc FROM entities WHERE kind = ?"
	params := []any{string(kind)}
	if owner != "" {
		query += " AND owner = ?"
		params = append(params, owner)
	}
	params = append(params, args...)

	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, query+clause, params...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", kind, err)
	}
	defer rows.Close()

	var docs []json.RawMessage
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		docs = append(docs, json.RawMessage(doc))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return docs, nil
}
