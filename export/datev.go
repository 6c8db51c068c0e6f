package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/etnz/immotax"
)

// Accounts of the SKR 03 chart used in the DATEV bookings.
const (
	accountBank       = "1200"
	accountRent       = "8105"
	accountSecurities = "1348"
)

var expenseAccounts = map[string]string{
	immotax.ExpenseInterest:    "2110",
	immotax.ExpenseMaintenance: "4260",
	immotax.ExpensePropertyTax: "4290",
	immotax.ExpenseInsurance:   "4360",
	immotax.ExpenseUtilities:   "4240",
	immotax.ExpenseManagement:  "4950",
	immotax.ExpenseOther:       "4900",
}

var datevHeader = []string{
	"Umsatz (ohne Soll/Haben-Kz)", "Soll/Haben-Kennzeichen", "WKZ Umsatz",
	"Konto", "Gegenkonto (ohne BU-Schlüssel)", "Belegdatum", "Belegfeld 1", "Buchungstext",
}

// datevAmount formats an amount the german way: no sign, comma decimals.
func datevAmount(m immotax.Money) string {
	return strings.Replace(m.Abs().Plain(), ".", ",", 1)
}

// datevText truncates a booking text to the 60 characters DATEV accepts.
func datevText(s string) string {
	r := []rune(s)
	if len(r) > 60 {
		r = r[:60]
	}
	return string(r)
}

// writeDATEV writes the bookings of the bank account: rents are credits
// ("H"), expenses and purchases are debits ("S").
func writeDATEV(w io.Writer, d *TaxData) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(datevHeader); err != nil {
		return err
	}
	for _, r := range records(d) {
		counter := accountRent
		switch r.typ {
		case "invoice":
			counter = expenseAccounts[r.category]
		case "trade":
			counter = accountSecurities
		}
		side := "H"
		if r.amount.IsNegative() {
			side = "S"
		}
		text := r.desc
		if text == "" {
			text = r.typ + " " + r.category
		}
		if err := cw.Write([]string{
			datevAmount(r.amount), side, r.amount.Currency(), accountBank, counter,
			r.date.Format("0201"), r.reference, datevText(text),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("cannot write datev: %w", err)
	}
	return nil
}
