package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/etnz/immotax"
)

// Collection is a typed view on the entities of one kind.
//
// P is the pointer type of T, the one implementing immotax.Entity, so that
// Collection[immotax.Tenant] can be written without naming it.
type Collection[T any, P interface {
	*T
	immotax.Entity
}] struct {
	store *Store
	kind  immotax.Kind
}

// For returns the collection of entities of type T.
func For[T any, P interface {
	*T
	immotax.Entity
}](s *Store) Collection[T, P] {
	return Collection[T, P]{store: s, kind: P(new(T)).Kind()}
}

// Kind returns the kind of the entities of the collection.
func (c Collection[T, P]) Kind() immotax.Kind { return c.kind }

// Create validates and inserts a new entity.
func (c Collection[T, P]) Create(ctx context.Context, owner string, e P) error {
	return c.store.Create(ctx, owner, e)
}

// Get returns the entity with id. An empty owner reads any owner's entity.
func (c Collection[T, P]) Get(ctx context.Context, owner, id string) (P, error) {
	e := P(new(T))
	if err := c.store.Get(ctx, owner, id, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Update validates and replaces an existing entity.
func (c Collection[T, P]) Update(ctx context.Context, owner string, e P) error {
	return c.store.Update(ctx, owner, e)
}

// Delete removes the entity with id.
func (c Collection[T, P]) Delete(ctx context.Context, owner, id string) error {
	return c.store.Delete(ctx, owner, c.kind, id)
}

// List returns the entities matching the query.
func (c Collection[T, P]) List(ctx context.Context, owner string, q Query) ([]P, error) {
	docs, err := c.store.List(ctx, owner, c.kind, q)
	if err != nil {
		return nil, err
	}
	list := make([]P, 0, len(docs))
	for _, doc := range docs {
		e := P(new(T))
		if err := json.Unmarshal(doc, e); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", c.kind, err)
		}
		list = append(list, e)
	}
	return list, nil
}

// Where returns the entities whose top-level field equals value.
func (c Collection[T, P]) Where(ctx context.Context, owner, field string, value any) ([]P, error) {
	return c.List(ctx, owner, Query{Filter: map[string]any{field: value}})
}

// Values returns the entities of a list as values.
func Values[T any, P interface {
	*T
	immotax.Entity
}](list []P) []T {
	values := make([]T, len(list))
	for i, e := range list {
		values[i] = *e
	}
	return values
}

// Entities groups the collections of every kind.
type Entities struct {
	Users        Collection[immotax.User, *immotax.User]
	Properties   Collection[immotax.Property, *immotax.Property]
	Units        Collection[immotax.Unit, *immotax.Unit]
	Tenants      Collection[immotax.Tenant, *immotax.Tenant]
	Leases       Collection[immotax.LeaseContract, *immotax.LeaseContract]
	Payments     Collection[immotax.RentPayment, *immotax.RentPayment]
	Invoices     Collection[immotax.Invoice, *immotax.Invoice]
	Trades       Collection[immotax.AssetTrade, *immotax.AssetTrade]
	Submissions  Collection[immotax.ElsterSubmission, *immotax.ElsterSubmission]
	Documents    Collection[immotax.Document, *immotax.Document]
	Webhooks     Collection[immotax.Webhook, *immotax.Webhook]
	GainsReports Collection[immotax.CapitalGainsReport, *immotax.CapitalGainsReport]
	Reminders    Collection[immotax.Reminder, *immotax.Reminder]
}

// Entities returns the typed collections of the store.
func (s *Store) Entities() Entities {
	return Entities{
		Users:        For[immotax.User](s),
		Properties:   For[immotax.Property](s),
		Units:        For[immotax.Unit](s),
		Tenants:      For[immotax.Tenant](s),
		Leases:       For[immotax.LeaseContract](s),
		Payments:     For[immotax.RentPayment](s),
		Invoices:     For[immotax.Invoice](s),
		Trades:       For[immotax.AssetTrade](s),
		Submissions:  For[immotax.ElsterSubmission](s),
		Documents:    For[immotax.Document](s),
		Webhooks:     For[immotax.Webhook](s),
		GainsReports: For[immotax.CapitalGainsReport](s),
		Reminders:    For[immotax.Reminder](s),
	}
}
