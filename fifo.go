package immotax

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrValidation is wrapped by every error caused by invalid input data.
	ErrValidation = errors.New("validation failed")
	// ErrOversell is returned when a sale exceeds the quantity held at that date.
	ErrOversell = errors.New("sale exceeds the quantity held")
)

// LotMatch is the portion of an acquisition lot consumed by a sale.
type LotMatch struct {
	AcquiredOn  Date
	SoldOn      Date
	Quantity    Quantity
	Cost        Money // Cost is the share of the lot cost, buy fee included.
	Proceeds    Money // Proceeds is the share of the net sale proceeds.
	HoldingDays int
}

// Gain returns the realized gain of the match, negative for a loss.
func (m LotMatch) Gain() Money { return m.Proceeds.Sub(m.Cost) }

func (m LotMatch) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("acquiredOn", m.AcquiredOn)
	w.Append("soldOn", m.SoldOn)
	w.Append("quantity", m.Quantity)
	w.Append("cost", m.Cost)
	w.Append("proceeds", m.Proceeds)
	w.Append("gain", m.Gain())
	w.Append("holdingDays", m.HoldingDays)
	return w.MarshalJSON()
}

// Disposal is a sale, with the lots it consumed.
type Disposal struct {
	Date     Date
	Quantity Quantity
	Proceeds Money // Proceeds is the sale amount minus the sell fee.
	Cost     Money
	Matches  []LotMatch
	Memo     string
}

// Gain returns the realized gain of the sale, negative for a loss.
func (d Disposal) Gain() Money { return d.Proceeds.Sub(d.Cost) }

func (d Disposal) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("date", d.Date)
	w.Append("quantity", d.Quantity)
	w.Append("proceeds", d.Proceeds)
	w.Append("cost", d.Cost)
	w.Append("gain", d.Gain())
	w.Append("matches", d.Matches)
	w.Optional("memo", d.Memo)
	return w.MarshalJSON()
}

// OpenLot is an acquisition, or what is left of it, still held.
type OpenLot struct {
	AcquiredOn Date
	Quantity   Quantity
	Cost       Money
}

// UnitCost returns the cost of one unit of the lot.
func (l OpenLot) UnitCost() Money {
	if l.Quantity.IsZero() {
		return M(0, l.Cost.Currency())
	}
	return l.Cost.Div(l.Quantity)
}

func (l OpenLot) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("acquiredOn", l.AcquiredOn)
	w.Append("quantity", l.Quantity)
	w.Append("cost", l.Cost)
	w.Append("unitCost", l.UnitCost())
	return w.MarshalJSON()
}

// FIFOResult is the state of a position after replaying all its trades.
type FIFOResult struct {
	Asset     string
	Currency  string
	Method    CostBasisMethod
	Lots      []OpenLot // Lots are the open lots, oldest first.
	Quantity  Quantity  // Quantity is the total quantity held.
	CostBasis Money     // CostBasis is the total cost of the open lots.
	Disposals []Disposal
}

// AverageUnitCost returns the cost basis of a single unit held.
func (r *FIFOResult) AverageUnitCost() Money {
	if r.Quantity.IsZero() {
		return M(0, r.Currency)
	}
	return r.CostBasis.Div(r.Quantity)
}

// RealizedGain returns the sum of the gains of all disposals.
func (r *FIFOResult) RealizedGain() Money {
	total := M(0, r.Currency)
	for _, d := range r.Disposals {
		total = total.Add(d.Gain())
	}
	return total
}

func (r *FIFOResult) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("asset", r.Asset)
	w.Optional("currency", r.Currency)
	w.Append("method", r.Method)
	w.Append("lots", r.Lots)
	w.Append("quantity", r.Quantity)
	w.Append("costBasis", r.CostBasis)
	w.Append("averageUnitCost", r.AverageUnitCost())
	w.Append("realizedGain", r.RealizedGain())
	w.Append("disposals", r.Disposals)
	return w.MarshalJSON()
}

// CalculateFIFO replays the trades of a single asset, in chronological order,
// matching every sale against the oldest lots first.
func CalculateFIFO(trades []Trade) (*FIFOResult, error) {
	return CalculateCostBasis(trades, FIFO)
}

// CalculateAverageCost is like CalculateFIFO but every sale is valued at the
// average cost of the units held.
func CalculateAverageCost(trades []Trade) (*FIFOResult, error) {
	return CalculateCostBasis(trades, AverageCost)
}

// CalculateCostBasis replays the trades of a single asset using the given method.
//
// Trades are sorted by date, trades on the same day keep their input order.
// All trades must share the same asset and currency.
func CalculateCostBasis(trades []Trade, method CostBasisMethod) (*FIFOResult, error) {
	asset, currency, err := checkTrades(trades)
	if err != nil {
		return nil, err
	}

	result := &FIFOResult{Asset: asset, Currency: currency, Method: method}
	var held lots
	for _, t := range sortTrades(trades) {
		switch t.Side {
		case Buy:
			held = append(held, lot{Date: t.Date, Quantity: t.Quantity, Cost: t.Cost()})
			if method == AverageCost {
				held = held.pool()
			}
		case Sell:
			if q := held.quantity(); t.Quantity.GreaterThan(q) {
				return nil, fmt.Errorf("selling %s %s on %s while holding %s: %w", t.Quantity, asset, t.Date, q, ErrOversell)
			}
			var matches []lotMatch
			matches, held = held.sell(t.Quantity)
			result.Disposals = append(result.Disposals, newDisposal(t, matches))
		}
	}

	for _, l := range held {
		result.Lots = append(result.Lots, OpenLot{AcquiredOn: l.Date, Quantity: l.Quantity, Cost: l.Cost})
	}
	result.Quantity = held.quantity()
	result.CostBasis = M(0, currency).Add(held.cost())
	return result, nil
}

// pool merges all lots into a single one dated from the oldest acquisition.
func (l lots) pool() lots {
	if len(l) < 2 {
		return l
	}
	return lots{{Date: l[0].Date, Quantity: l.quantity(), Cost: l.cost()}}
}

// newDisposal builds the disposal of a sale, spreading its net proceeds over
// the lot matches pro rata of their quantity.
func newDisposal(t Trade, matches []lotMatch) Disposal {
	proceeds := t.Proceeds()
	d := Disposal{
		Date:     t.Date,
		Quantity: t.Quantity,
		Proceeds: proceeds,
		Cost:     M(0, t.Currency()),
		Memo:     t.Memo,
	}
	allocated := M(0, t.Currency())
	for i, m := range matches {
		share := proceeds.Mul(m.Quantity).Div(t.Quantity)
		if i == len(matches)-1 {
			// the last match takes the remainder so that shares add up exactly.
			share = proceeds.Sub(allocated)
		}
		allocated = allocated.Add(share)
		d.Cost = d.Cost.Add(m.Cost)
		d.Matches = append(d.Matches, LotMatch{
			AcquiredOn:  m.Date,
			SoldOn:      t.Date,
			Quantity:    m.Quantity,
			Cost:        m.Cost,
			Proceeds:    share,
			HoldingDays: m.Date.DaysUntil(t.Date),
		})
	}
	return d
}

// sortTrades returns a copy of the trades in chronological order.
func sortTrades(trades []Trade) []Trade {
	sorted := slices.Clone(trades)
	slices.SortStableFunc(sorted, func(a, b Trade) int { return a.Date.Compare(b.Date) })
	return sorted
}

// checkTrades validates all trades and returns their common asset and currency.
func checkTrades(trades []Trade) (asset, currency string, err error) {
	var errs error
	for i, t := range trades {
		if err := t.Validate(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("trade #%d: %w", i+1, err))
			continue
		}
		if asset == "" {
			asset = t.Asset
		} else if t.Asset != asset {
			errs = errors.Join(errs, fmt.Errorf("trade #%d: asset %s differs from %s", i+1, t.Asset, asset))
		}
		if c := t.Currency(); c != "" {
			if currency == "" {
				currency = c
			} else if c != currency {
				errs = errors.Join(errs, fmt.Errorf("trade #%d: currency %s differs from %s", i+1, c, currency))
			}
		}
	}
	if errs != nil {
		return "", "", fmt.Errorf("%w: %w", ErrValidation, errs)
	}
	return asset, currency, nil
}
