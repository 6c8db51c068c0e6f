package immotax

import (
	"cmp"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// TaxRules are the rules that split realized gains into taxable and tax-free parts.
type TaxRules struct {
	// HoldingPeriod is the number of years after which a sale is tax-free.
	// Zero means every sale is taxable.
	HoldingPeriod int
	// ExemptionLimit returns the yearly limit under which a net taxable gain is not taxed.
	// Nil means no limit.
	ExemptionLimit func(year int) Money
}

// PrivateSales returns the rules of private sales (section 23 EStG): a one
// year holding period and the yearly exemption limit.
func PrivateSales() TaxRules {
	return TaxRules{HoldingPeriod: 1, ExemptionLimit: PrivateSalesExemptionLimit}
}

// PrivateSalesExemptionLimit returns the Freigrenze of private sales for a tax year.
// It is a limit, not an allowance: a gain at or above it is fully taxable.
func PrivateSalesExemptionLimit(year int) Money {
	if year >= 2024 {
		return EUR(1000)
	}
	return EUR(600)
}

// TaxFree tells whether an asset acquired on 'acquired' and sold on 'sold' is tax-free.
//
// The holding period ends on the anniversary of the acquisition, so a sale is
// tax-free from the next day on.
func (r TaxRules) TaxFree(acquired, sold Date) bool {
	if r.HoldingPeriod <= 0 {
		return false
	}
	return sold.After(acquired.AddYear(r.HoldingPeriod))
}

// SaleGain is the realized gain of a single sale, split by tax treatment.
type SaleGain struct {
	Asset    string
	Disposal Disposal
	Taxable  Money // Taxable is the net gain of the matches within the holding period.
	TaxFree  Money // TaxFree is the net gain of the matches held long enough.

	free []bool // free tells, for each match, if it is tax-free.
}

// Gain returns the total realized gain of the sale.
func (s SaleGain) Gain() Money { return s.Disposal.Gain() }

func (s SaleGain) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	matches := make([]json.RawMessage, len(s.Disposal.Matches))
	for i, m := range s.Disposal.Matches {
		var mw jsonObjectWriter
		mw.Append("acquiredOn", m.AcquiredOn)
		mw.Append("quantity", m.Quantity)
		mw.Append("cost", m.Cost)
		mw.Append("proceeds", m.Proceeds)
		mw.Append("gain", m.Gain())
		mw.Append("holdingDays", m.HoldingDays)
		mw.Append("taxFree", i < len(s.free) && s.free[i])
		raw, err := mw.MarshalJSON()
		if err != nil {
			return nil, err
		}
		matches[i] = raw
	}
	d := s.Disposal
	w.Append("asset", s.Asset)
	w.Append("date", d.Date)
	w.Append("quantity", d.Quantity)
	w.Append("proceeds", d.Proceeds)
	w.Append("cost", d.Cost)
	w.Append("gain", d.Gain())
	w.Append("matches", matches)
	w.Optional("memo", d.Memo)
	w.Append("taxable", s.Taxable)
	w.Append("taxFree", s.TaxFree)
	return w.MarshalJSON()
}

// YearSummary sums the realized gains of a tax year.
type YearSummary struct {
	Year             int   `json:"year"`
	Sales            int   `json:"sales"`
	Proceeds         Money `json:"proceeds"`
	Cost             Money `json:"cost"`
	TaxableGains     Money `json:"taxableGains"`  // sum of the positive taxable matches
	TaxableLosses    Money `json:"taxableLosses"` // sum of the negative taxable matches, as a negative amount
	TaxFreeGains     Money `json:"taxFreeGains"`
	NetTaxable       Money `json:"netTaxable"`
	ExemptionLimit   Money `json:"exemptionLimit"`
	Exempt           bool  `json:"exempt"`
	LossOffset       Money `json:"lossOffset"`       // carried losses used this year
	Taxable          Money `json:"taxable"`          // the amount to declare
	LossCarryForward Money `json:"lossCarryForward"` // losses left for the following years, as a positive amount
}

// GainLossReport is the realized gains of a set of trades, year by year.
type GainLossReport struct {
	Currency string        `json:"currency"`
	Method   string        `json:"method"`
	Sales    []SaleGain    `json:"sales"`
	Years    []YearSummary `json:"years"`
}

// Year returns the summary of a tax year, or nil if nothing was sold that year.
func (r *GainLossReport) Year(year int) *YearSummary {
	for i := range r.Years {
		if r.Years[i].Year == year {
			return &r.Years[i]
		}
	}
	return nil
}

// SalesIn returns the sales of a tax year.
func (r *GainLossReport) SalesIn(year int) []SaleGain {
	var sales []SaleGain
	for _, s := range r.Sales {
		if s.Disposal.Date.Year() == year {
			sales = append(sales, s)
		}
	}
	return sales
}

// CalculateFIFOGainLoss computes the realized gains of trades of any number of
// assets, matched by FIFO per asset, and summarizes them by tax year.
//
// All trades must share the same currency, the one of the exemption limit
// when rules have one. Within a year, taxable gains and losses offset each
// other but never the tax-free gains. A net taxable result below the
// exemption limit is not taxed; a net loss is carried forward and offsets the
// taxable results of the following years.
func CalculateFIFOGainLoss(trades []Trade, rules TaxRules) (*GainLossReport, error) {
	byAsset := make(map[string][]Trade)
	for _, t := range trades {
		byAsset[t.Asset] = append(byAsset[t.Asset], t)
	}

	report := &GainLossReport{Method: FIFO.String()}
	for _, asset := range slices.Sorted(maps.Keys(byAsset)) {
		result, err := CalculateFIFO(byAsset[asset])
		if err != nil {
			return nil, fmt.Errorf("asset %q: %w", asset, err)
		}
		if result.Currency != "" {
			if report.Currency == "" {
				report.Currency = result.Currency
			} else if report.Currency != result.Currency {
				return nil, fmt.Errorf("%w: asset %q is traded in %s, other assets in %s", ErrValidation, asset, result.Currency, report.Currency)
			}
		}
		for _, d := range result.Disposals {
			report.Sales = append(report.Sales, splitSale(asset, d, rules))
		}
	}
	slices.SortStableFunc(report.Sales, func(a, b SaleGain) int {
		return cmp.Or(a.Disposal.Date.Compare(b.Disposal.Date), cmp.Compare(a.Asset, b.Asset))
	})

	if rules.ExemptionLimit != nil && report.Currency != "" {
		for _, s := range report.Sales {
			limit := rules.ExemptionLimit(s.Disposal.Date.Year())
			if cur := limit.Currency(); cur != "" && cur != report.Currency {
				return nil, fmt.Errorf("%w: the exemption limit is in %s, trades are in %s", ErrValidation, cur, report.Currency)
			}
		}
	}

	report.Years = summarize(report.Sales, report.Currency, rules)
	return report, nil
}

// splitSale splits the gain of a disposal between taxable and tax-free matches.
func splitSale(asset string, d Disposal, rules TaxRules) SaleGain {
	cur := d.Proceeds.Currency()
	s := SaleGain{Asset: asset, Disposal: d, Taxable: M(0, cur), TaxFree: M(0, cur)}
	for _, m := range d.Matches {
		free := rules.TaxFree(m.AcquiredOn, m.SoldOn)
		s.free = append(s.free, free)
		if free {
			s.TaxFree = s.TaxFree.Add(m.Gain())
		} else {
			s.Taxable = s.Taxable.Add(m.Gain())
		}
	}
	return s
}

// summarize computes the year summaries of chronologically sorted sales.
func summarize(sales []SaleGain, currency string, rules TaxRules) []YearSummary {
	var years []YearSummary
	zero := M(0, currency)
	for _, s := range sales {
		y := s.Disposal.Date.Year()
		if len(years) == 0 || years[len(years)-1].Year != y {
			years = append(years, YearSummary{
				Year: y, Proceeds: zero, Cost: zero,
				TaxableGains: zero, TaxableLosses: zero, TaxFreeGains: zero,
				NetTaxable: zero, LossOffset: zero, Taxable: zero, LossCarryForward: zero,
			})
		}
		sum := &years[len(years)-1]
		sum.Sales++
		sum.Proceeds = sum.Proceeds.Add(s.Disposal.Proceeds)
		sum.Cost = sum.Cost.Add(s.Disposal.Cost)
		for i, m := range s.Disposal.Matches {
			gain := m.Gain()
			switch {
			case s.free[i]:
				sum.TaxFreeGains = sum.TaxFreeGains.Add(gain)
			case gain.IsNegative():
				sum.TaxableLosses = sum.TaxableLosses.Add(gain)
			default:
				sum.TaxableGains = sum.TaxableGains.Add(gain)
			}
		}
	}

	carried := zero
	for i := range years {
		sum := &years[i]
		sum.NetTaxable = sum.TaxableGains.Add(sum.TaxableLosses)
		if rules.ExemptionLimit != nil {
			sum.ExemptionLimit = rules.ExemptionLimit(sum.Year)
		}
		switch {
		case sum.NetTaxable.IsNegative():
			carried = carried.Add(sum.NetTaxable.Neg())
		case rules.ExemptionLimit != nil && sum.NetTaxable.LessThan(sum.ExemptionLimit):
			sum.Exempt = true
		default:
			// carried losses offset the taxable result, after the exemption check.
			offset := carried
			if offset.GreaterThan(sum.NetTaxable) {
				offset = sum.NetTaxable
			}
			sum.LossOffset = offset
			sum.Taxable = sum.NetTaxable.Sub(offset)
			carried = carried.Sub(offset)
		}
		sum.LossCarryForward = carried
	}
	return years
}
