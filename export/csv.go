package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"github.com/etnz/immotax"
)

// record is a line of the CSV export.
type record struct {
	date      immotax.Date
	typ       string
	reference string
	category  string
	desc      string
	quantity  string
	amount    immotax.Money
}

// records returns the payments, invoices and trades as records, by date.
// Expenses and purchases are negative.
func records(d *TaxData) []record {
	var rs []record
	for _, p := range d.Payments {
		rs = append(rs, record{p.Date, "payment", p.LeaseID, "rent", p.Reference, "", p.Amount})
	}
	for _, i := range d.Invoices {
		desc := i.Vendor
		if i.Description != "" {
			desc += ": " + i.Description
		}
		rs = append(rs, record{i.Date, "invoice", i.Number, i.Category, desc, "", i.Amount.Neg()})
	}
	for _, t := range d.Trades {
		amount := t.Trade().Proceeds()
		if t.Side == immotax.Buy {
			amount = t.Trade().Cost().Neg()
		}
		rs = append(rs, record{t.Date, "trade", t.Asset, string(t.Side), t.Memo, t.Quantity.String(), amount})
	}
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].date.Before(rs[j].date) })
	return rs
}

func writeCSV(w io.Writer, d *TaxData) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "type", "reference", "category", "description", "quantity", "amount", "currency"}); err != nil {
		return err
	}
	for _, r := range records(d) {
		if err := cw.Write([]string{
			r.date.String(), r.typ, r.reference, r.category, r.desc, r.quantity, r.amount.Plain(), r.amount.Currency(),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("cannot write csv: %w", err)
	}
	return nil
}
