package pdf

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/etnz/immotax"
)

// AnlageV writes the summary of the rental income of a property.
func AnlageV(w io.Writer, r *immotax.AnlageVResult, created time.Time) error {
	p := newPage(fmt.Sprintf("Anlage V %d: %s", r.Year, r.PropertyName), created)

	p.heading("Income")
	p.row("Rents received", r.Rents.String(), false)
	p.row("Utilities advances received", r.Utilities.String(), false)
	p.row("Total income", r.Income.String(), true)

	p.heading("Expenses")
	var rows [][]string
	for _, e := range r.Expenses {
		rows = append(rows, []string{e.Category, strconv.Itoa(e.Invoices), e.Amount.String()})
	}
	rows = append(rows, []string{"Depreciation (AfA " + r.AfARate.String() + ")", "", r.Depreciation.String()})
	p.table([]float64{90, 30, 50}, []string{"Category", "Invoices", "Amount"}, rows)
	p.pdf.Ln(2)
	p.row("Total expenses", r.TotalExpenses.String(), true)

	p.heading("Result")
	label := "Surplus"
	if r.Surplus.IsNegative() {
		label = "Loss"
	}
	p.row(label, r.Surplus.String(), true)
	p.text(fmt.Sprintf("Leases considered: %d", r.Leases))

	p.footer(created)
	return p.output(w)
}

// GainsReport writes the realized gains of a tax year.
func GainsReport(w io.Writer, r *immotax.GainLossReport, year int, created time.Time) error {
	p := newPage(fmt.Sprintf("Capital Gains Report %d", year), created)
	p.text(fmt.Sprintf("Cost basis method: %s. Currency: %s.", r.Method, r.Currency))

	y := r.Year(year)
	if y == nil {
		p.heading("Summary")
		p.text("No sales in this tax year.")
		p.footer(created)
		return p.output(w)
	}

	p.heading("Summary")
	p.row("Sales", strconv.Itoa(y.Sales), false)
	p.row("Proceeds", y.Proceeds.String(), false)
	p.row("Cost", y.Cost.String(), false)
	p.row("Taxable gains", y.TaxableGains.String(), false)
	p.row("Taxable losses", y.TaxableLosses.String(), false)
	p.row("Tax-free gains", y.TaxFreeGains.String(), false)
	p.row("Net taxable", y.NetTaxable.String(), false)
	p.row("Exemption limit", y.ExemptionLimit.String(), false)
	if !y.LossOffset.IsZero() {
		p.row("Losses carried from previous years", y.LossOffset.String(), false)
	}
	p.row("Taxable", y.Taxable.String(), true)
	if !y.LossCarryForward.IsZero() {
		p.row("Loss carried forward", y.LossCarryForward.String(), false)
	}

	p.heading("Sales")
	var rows [][]string
	for _, s := range r.SalesIn(year) {
		rows = append(rows, []string{
			s.Disposal.Date.String() + " " + s.Asset,
			s.Disposal.Quantity.String(),
			s.Disposal.Proceeds.String(),
			s.Disposal.Cost.String(),
			s.Taxable.String(),
			s.TaxFree.String(),
		})
	}
	p.table([]float64{45, 20, 27, 27, 26, 25}, []string{"Sale", "Quantity", "Proceeds", "Cost", "Taxable", "Tax-free"}, rows)

	p.footer(created)
	return p.output(w)
}

// Receipt is the content of a rent receipt.
type Receipt struct {
	Landlord string
	Tenant   immotax.Tenant
	Property immotax.Property
	Lease    immotax.LeaseContract
	Payment  immotax.RentPayment
}

// RentReceipt writes the receipt of a rent payment.
func RentReceipt(w io.Writer, r Receipt, created time.Time) error {
	p := newPage("Rent Receipt", created)

	p.text(fmt.Sprintf("%s confirms the receipt of the following payment from %s.", landlord(r.Landlord), r.Tenant.FullName()))
	p.heading("Payment")
	p.row("Property", r.Property.Name, false)
	if r.Property.Street != "" {
		p.row("Address", r.Property.Street+", "+r.Property.Zip+" "+r.Property.City, false)
	}
	p.row("Date", r.Payment.Date.String(), false)
	if r.Payment.ForMonth != "" {
		p.row("For month", r.Payment.ForMonth, false)
	}
	if r.Payment.Reference != "" {
		p.row("Reference", r.Payment.Reference, false)
	}
	if r.Lease.Utilities.IsPositive() {
		p.row("Monthly rent", r.Lease.MonthlyRent.String(), false)
		p.row("Monthly utilities", r.Lease.Utilities.String(), false)
	}
	p.row("Amount received", r.Payment.Amount.String(), true)

	p.footer(created)
	return p.output(w)
}

func landlord(name string) string {
	if name == "" {
		return "The landlord"
	}
	return name
}
