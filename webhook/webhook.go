// Package webhook fans out the changes of the entity store: every event is
// POSTed to the matching webhooks of its owner, and published on NATS.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/etnz/immotax"
	"github.com/etnz/immotax/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// SignatureHeader holds the HMAC-SHA256 of the body, keyed by the webhook secret.
const SignatureHeader = "X-Immotax-Signature"

// Payload is the body POSTed to a webhook.
type Payload struct {
	Event     string          `json:"event"` // Event is "<Kind>.<action>".
	ID        string          `json:"id"`
	Owner     string          `json:"owner"`
	At        time.Time       `json:"at"`
	Data      json.RawMessage `json:"data,omitempty"`
	WebhookID string          `json:"webhookId"`
}

// Webhooks lists the webhooks of an owner.
type Webhooks interface {
	Where(ctx context.Context, owner, field string, value any) ([]*immotax.Webhook, error)
}

// Publisher publishes messages on a subject. *nats.Conn implements it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Options configure a Dispatcher.
type Options struct {
	Parallel  int           // Parallel is the maximum number of concurrent deliveries of an event.
	RateLimit float64       // RateLimit is the maximum number of requests per second, all webhooks included.
	Retries   int           // Retries is the number of retries of a delivery failing with a 5xx status.
	Backoff   time.Duration // Backoff is the delay before the first retry, doubled at each retry.
	Timeout   time.Duration
	QueueSize int
}

func (o *Options) defaults() {
	if o.Parallel <= 0 {
		o.Parallel = 4
	}
	if o.RateLimit <= 0 {
		o.RateLimit = 10
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.Backoff <= 0 {
		o.Backoff = 500 * time.Millisecond
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
}

// Dispatcher delivers store events to webhooks.
type Dispatcher struct {
	hooks   Webhooks
	pub     Publisher
	client  *http.Client
	limiter *rate.Limiter
	opts    Options
	log     *zap.Logger
	queue   chan store.Event
}

// NewDispatcher returns a Dispatcher reading the webhooks from hooks.
// pub may be nil.
func NewDispatcher(hooks Webhooks, pub Publisher, opts Options, log *zap.Logger) *Dispatcher {
	opts.defaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		hooks:   hooks,
		pub:     pub,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), opts.Parallel),
		opts:    opts,
		log:     log,
		queue:   make(chan store.Event, opts.QueueSize),
	}
}

// Notify queues an event. It never blocks: when the queue is full the event
// is dropped. It is meant to be the listener of the store.
func (d *Dispatcher) Notify(e store.Event) {
	select {
	case d.queue <- e:
	default:
		d.log.Warn("webhook queue full, event dropped", zap.String("event", e.Type()), zap.String("id", e.ID))
	}
}

// Run dispatches the queued events until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-d.queue:
			if err := d.Dispatch(ctx, e); err != nil {
				d.log.Warn("event dispatch failed", zap.String("event", e.Type()), zap.Error(err))
			}
		}
	}
}

// Dispatch publishes an event on NATS and delivers it to the matching
// webhooks of its owner. Webhook events themselves are not delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, e store.Event) error {
	d.publish(e)
	if e.Kind == immotax.KindWebhook {
		return nil
	}

	hooks, err := d.hooks.Where(ctx, e.Owner, "active", true)
	if err != nil {
		return fmt.Errorf("cannot list webhooks of %s: %w", e.Owner, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Parallel)
	for _, h := range hooks {
		if !h.Matches(e.Type()) {
			continue
		}
		p := Payload{Event: e.Type(), ID: e.ID, Owner: e.Owner, At: e.At, Data: e.Data, WebhookID: h.ID}
		ok, err := Accept(h.Filter, p)
		if err != nil {
			d.log.Warn("invalid webhook filter", zap.String("webhook", h.ID), zap.Error(err))
		}
		if !ok {
			deliveries.WithLabelValues("filtered").Inc()
			continue
		}
		g.Go(func() error {
			// a failing webhook does not cancel the others.
			if err := d.Deliver(gctx, h, p); err != nil {
				d.log.Warn("webhook delivery failed", zap.String("webhook", h.ID), zap.String("url", h.URL), zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

// publish sends the event on the subject "immotax.<kind>.<action>".
func (d *Dispatcher) publish(e store.Event) {
	if d.pub == nil {
		return
	}
	data, err := json.Marshal(e)
	if err == nil {
		err = d.pub.Publish(Subject(e), data)
	}
	if err != nil {
		published.WithLabelValues("error").Inc()
		d.log.Warn("cannot publish event", zap.String("event", e.Type()), zap.Error(err))
		return
	}
	published.WithLabelValues("ok").Inc()
}

// Subject returns the NATS subject of an event.
func Subject(e store.Event) string {
	return "immotax." + strings.ToLower(string(e.Kind)) + "." + e.Action
}

// Accept evaluates a jsonpath filter on a payload. An empty filter accepts
// everything. A filter yielding false, nil, or an empty list rejects it.
func Accept(filter string, p Payload) (bool, error) {
	if filter == "" {
		return true, nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return false, err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, err
	}
	res, err := jsonpath.Get(filter, v)
	if err != nil {
		return false, fmt.Errorf("filter %q: %w", filter, err)
	}
	switch r := res.(type) {
	case nil:
		return false, nil
	case bool:
		return r, nil
	case []any:
		return len(r) > 0, nil
	case map[string]any:
		return len(r) > 0, nil
	default:
		return true, nil
	}
}

// Sign returns the signature header value of a body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// errRetry marks a delivery failure worth retrying.
var errRetry = errors.New("server error")

// Deliver POSTs the payload to a webhook, retrying on server errors.
func (d *Dispatcher) Deliver(ctx context.Context, h *immotax.Webhook, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	start := time.Now()
	defer func() { deliveryLatency.Observe(time.Since(start).Seconds()) }()

	backoff := d.opts.Backoff
	for attempt := 0; ; attempt++ {
		err = d.post(ctx, h, body)
		if err == nil {
			deliveries.WithLabelValues("delivered").Inc()
			return nil
		}
		if !errors.Is(err, errRetry) || attempt >= d.opts.Retries {
			deliveries.WithLabelValues("failed").Inc()
			return err
		}
		d.log.Debug("retrying webhook", zap.String("webhook", h.ID), zap.Int("attempt", attempt+1), zap.Error(err))
		select {
		case <-ctx.Done():
			deliveries.WithLabelValues("failed").Inc()
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (d *Dispatcher) post(ctx context.Context, h *immotax.Webhook, body []byte) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("cannot create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "immotax-webhook/1")
	if h.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(h.Secret, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		// network errors are transient.
		return fmt.Errorf("%w: %w", errRetry, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s responded %s", errRetry, h.URL, resp.Status)
	case resp.StatusCode >= 300:
		return fmt.Errorf("%s responded %s", h.URL, resp.Status)
	}
	return nil
}

// Ping delivers a test event to a webhook, without retry.
func (d *Dispatcher) Ping(ctx context.Context, h *immotax.Webhook) error {
	p := Payload{Event: "ping", ID: h.ID, Owner: h.Owner, At: time.Now().UTC(), WebhookID: h.ID}
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return d.post(ctx, h, body)
}
