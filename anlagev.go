package immotax

import (
	"fmt"
	"time"
)

// ExpenseLine is the total of an expense category.
type ExpenseLine struct {
	Category string `json:"category"`
	Amount   Money  `json:"amount"`
	Invoices int    `json:"invoices"`
}

// AnlageVResult is the yearly statement of the rental income of a property,
// as declared on the Anlage V of the income tax return.
type AnlageVResult struct {
	PropertyID    string        `json:"propertyId"`
	PropertyName  string        `json:"propertyName"`
	Year          int           `json:"year"`
	Rents         Money         `json:"rents"`     // Rents are the cold rents received.
	Utilities     Money         `json:"utilities"` // Utilities are the operating costs advances received.
	Income        Money         `json:"income"`
	Expenses      []ExpenseLine `json:"expenses"`
	Depreciation  Money         `json:"depreciation"` // Depreciation is the AfA of the building.
	AfARate       Percent       `json:"afaRate"`
	TotalExpenses Money         `json:"totalExpenses"`
	Surplus       Money         `json:"surplus"` // Surplus is negative for a loss.
	Leases        int           `json:"leases"`
}

// AnlageV computes the rental income statement of a property for a tax year.
//
// Income and expenses follow the cash principle: a payment counts in the year
// it is received, an invoice in the year of its date. Payments are split
// between rent and utilities pro rata of the lease's monthly amounts.
func AnlageV(property Property, leases []LeaseContract, payments []RentPayment, invoices []Invoice, year int) (*AnlageVResult, error) {
	if year < 2000 || year > 2100 {
		return nil, fmt.Errorf("%w: invalid tax year %d", ErrValidation, year)
	}
	cur := property.PurchasePrice.Currency()
	if cur == "" {
		cur = "EUR"
	}
	taxYear := TaxYear(year)
	res := &AnlageVResult{
		PropertyID:   property.ID,
		PropertyName: property.Name,
		Year:         year,
		Rents:        M(0, cur),
		Utilities:    M(0, cur),
	}

	byID := make(map[string]LeaseContract)
	for _, l := range leases {
		if l.PropertyID != property.ID {
			continue
		}
		byID[l.ID] = l
		if !l.Start.After(taxYear.To) && (l.End.IsZero() || !l.End.Before(taxYear.From)) {
			res.Leases++
		}
	}

	for _, p := range payments {
		lease, ok := byID[p.LeaseID]
		if !ok || !taxYear.Contains(p.Date) {
			continue
		}
		rent := p.Amount
		if due := lease.MonthlyDue(); due.IsPositive() && lease.Utilities.IsPositive() {
			rent = p.Amount.Mul(Q(lease.MonthlyRent.Decimal())).Div(Q(due.Decimal()))
		}
		res.Rents = res.Rents.Add(rent)
		res.Utilities = res.Utilities.Add(p.Amount.Sub(rent))
	}
	res.Rents = res.Rents.Round()
	res.Utilities = res.Utilities.Round()
	res.Income = res.Rents.Add(res.Utilities)

	totals := make(map[string]*ExpenseLine)
	for _, inv := range invoices {
		if inv.PropertyID != property.ID || !taxYear.Contains(inv.Date) {
			continue
		}
		line, ok := totals[inv.Category]
		if !ok {
			line = &ExpenseLine{Category: inv.Category, Amount: M(0, cur)}
			totals[inv.Category] = line
		}
		line.Amount = line.Amount.Add(inv.Amount)
		line.Invoices++
	}
	res.TotalExpenses = M(0, cur)
	for _, c := range ExpenseCategories {
		if line, ok := totals[c]; ok {
			res.Expenses = append(res.Expenses, *line)
			res.TotalExpenses = res.TotalExpenses.Add(line.Amount)
		}
	}

	res.Depreciation = Depreciation(property, year).WithCurrency(cur)
	res.AfARate = property.DepreciationRate()
	res.TotalExpenses = res.TotalExpenses.Add(res.Depreciation)
	res.Surplus = res.Income.Sub(res.TotalExpenses)
	return res, nil
}

// Depreciation returns the linear depreciation (AfA) of the building of a
// property for a year. The acquisition year counts pro rata temporis by
// month, the month of acquisition included, and the total never exceeds the
// building value.
func Depreciation(p Property, year int) Money {
	zero := M(0, p.BuildingValue.Currency())
	if p.AcquiredOn.IsZero() || !p.BuildingValue.IsPositive() || year < p.AcquiredOn.Year() {
		return zero
	}
	yearly := p.BuildingValue.Mul(Q(float64(p.DepreciationRate()))).Div(Q(100))
	firstYear := yearly.Mul(Q(int(time.December-p.AcquiredOn.Month()) + 1)).Div(Q(12))
	if year == p.AcquiredOn.Year() {
		return firstYear.Round()
	}

	done := firstYear.Add(yearly.Mul(Q(year - p.AcquiredOn.Year() - 1)))
	left := p.BuildingValue.Sub(done)
	if !left.IsPositive() {
		return zero
	}
	if left.LessThan(yearly) {
		return left.Round()
	}
	return yearly.Round()
}
