// Package fx converts foreign currency amounts to euros with the reference
// rates of the European Central Bank, as served by the Frankfurter API.
package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/etnz/immotax"
	"go.uber.org/zap"
)

// DefaultURL is the Frankfurter API.
const DefaultURL = "https://api.frankfurter.app"

// RateSource returns daily exchange rates: the amount of 'to' for one 'from'.
type RateSource interface {
	Rates(ctx context.Context, from, to string, r immotax.Range) (*immotax.History[float64], error)
}

// Client fetches rates from the Frankfurter API.
type Client struct {
	http *http.Client
	base string
}

// NewClient returns a Client caching responses in cacheDir for the day.
// An empty cacheDir is the temporary directory.
func NewClient(base, cacheDir string, log *zap.Logger) *Client {
	if base == "" {
		base = DefaultURL
	}
	if cacheDir == "" {
		cacheDir = os.TempDir()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		http: &http.Client{Transport: &diskCache{base: http.DefaultTransport, dir: cacheDir, log: log}},
		base: strings.TrimSuffix(base, "/"),
	}
}

// jget performs an HTTP GET request and decodes the JSON response.
func (c *Client) jget(ctx context.Context, addr string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cannot http GET %v%v: %v", resp.Request.URL.Host, resp.Request.URL.Path, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Rates implements RateSource. Days without rates (weekends, holidays) are
// absent from the history.
func (c *Client) Rates(ctx context.Context, from, to string, r immotax.Range) (*immotax.History[float64], error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	h := new(immotax.History[float64])
	if from == to {
		return h.Append(r.From, 1), nil
	}
	addr := fmt.Sprintf("%s/%s..%s?%s", c.base, r.From, r.To, url.Values{"from": {from}, "to": {to}}.Encode())
	jobj, err := c.jget(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("error fetching %s/%s rates: %w", from, to, err)
	}
	path := "$.rates"
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return nil, fmt.Errorf("error parsing %s/%s rates: %q %w", from, to, path, err)
	}
	rates, ok := jval.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("error parsing %s/%s rates: %q is not an object", from, to, path)
	}
	for day, v := range rates {
		d, err := immotax.ParseDate(day)
		if err != nil {
			return nil, fmt.Errorf("invalid rate date %q: %w", day, err)
		}
		rate, err := jsonpath.Get("$."+to, v)
		if err != nil {
			return nil, fmt.Errorf("no %s rate on %s: %w", to, day, err)
		}
		f, ok := rate.(float64)
		if !ok {
			return nil, fmt.Errorf("%s rate on %s is not a number: %v", to, day, rate)
		}
		h.Append(d, f)
	}
	return h, nil
}

// lookback is the number of days fetched before the first trade, for trades
// dated on a day without rate.
const lookback = 7

// ConvertTrades returns the trades with amounts and fees converted into
// currency 'to', at the rate of their date or the last one before.
// Trades already in 'to' are unchanged.
func ConvertTrades(ctx context.Context, src RateSource, trades []immotax.Trade, to string) ([]immotax.Trade, error) {
	byCurrency := make(map[string]immotax.Range)
	for _, t := range trades {
		cur := t.Currency()
		if cur == to || cur == "" {
			continue
		}
		r, ok := byCurrency[cur]
		if !ok {
			r = immotax.NewRange(t.Date, t.Date)
		}
		if t.Date.Before(r.From) {
			r.From = t.Date
		}
		if t.Date.After(r.To) {
			r.To = t.Date
		}
		byCurrency[cur] = r
	}

	rates := make(map[string]*immotax.History[float64])
	for cur, r := range byCurrency {
		h, err := src.Rates(ctx, cur, to, immotax.NewRange(r.From.Add(-lookback), r.To))
		if err != nil {
			return nil, err
		}
		rates[cur] = h
	}

	converted := make([]immotax.Trade, len(trades))
	for i, t := range trades {
		converted[i] = t
		h, ok := rates[t.Currency()]
		if !ok {
			continue
		}
		rate, ok := h.ValueAsOf(t.Date)
		if !ok {
			return nil, fmt.Errorf("no %s/%s rate on %s", t.Currency(), to, t.Date)
		}
		q := immotax.Q(rate)
		converted[i].Amount = t.Amount.Mul(q).WithCurrency(to).Round()
		if !t.Fee.IsZero() {
			converted[i].Fee = t.Fee.Mul(q).WithCurrency(to).Round()
		}
	}
	return converted, nil
}
