package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/etnz/immotax"
	"github.com/etnz/immotax/fx"
	"github.com/etnz/immotax/store"
)

// ErrRates is wrapped by the errors of the exchange rate source.
var ErrRates = errors.New("exchange rates unavailable")

// Collect reads the data of a user for a tax year, and computes the Anlage V
// of every property and the realized gains of the year.
//
// Trades in a foreign currency are converted into EUR with rates. Without
// rates, trades must all be in EUR.
func Collect(ctx context.Context, ents store.Entities, owner string, year int, rates fx.RateSource) (*TaxData, error) {
	d := &TaxData{Year: year}
	all := store.Query{}
	properties, err := ents.Properties.List(ctx, owner, all)
	if err != nil {
		return nil, err
	}
	leases, err := ents.Leases.List(ctx, owner, all)
	if err != nil {
		return nil, err
	}
	payments, err := ents.Payments.List(ctx, owner, all)
	if err != nil {
		return nil, err
	}
	invoices, err := ents.Invoices.List(ctx, owner, all)
	if err != nil {
		return nil, err
	}
	trades, err := ents.Trades.List(ctx, owner, store.Query{Sort: "date"})
	if err != nil {
		return nil, err
	}
	submissions, err := ents.Submissions.List(ctx, owner, all)
	if err != nil {
		return nil, err
	}
	d.Properties = store.Values(properties)
	d.Leases = store.Values(leases)
	d.Payments = store.Values(payments)
	d.Invoices = store.Values(invoices)
	d.Trades = store.Values(trades)
	d.Submissions = store.Values(submissions)

	for _, p := range d.Properties {
		r, err := immotax.AnlageV(p, d.Leases, d.Payments, d.Invoices, year)
		if err != nil {
			return nil, err
		}
		d.AnlageV = append(d.AnlageV, r)
	}

	if len(d.Trades) > 0 {
		ts := make([]immotax.Trade, len(d.Trades))
		for i, t := range d.Trades {
			ts[i] = t.Trade()
		}
		if rates != nil {
			if ts, err = fx.ConvertTrades(ctx, rates, ts, "EUR"); err != nil {
				return nil, fmt.Errorf("%w: cannot convert trades: %w", ErrRates, err)
			}
		}
		report, err := immotax.CalculateFIFOGainLoss(ts, immotax.PrivateSales())
		if err != nil {
			return nil, err
		}
		d.Gains = report.Year(year)
	}
	d.Filter()
	return d, nil
}
