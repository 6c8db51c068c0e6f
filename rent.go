package immotax

// RentStatusResult is the account of a lease: what was due, what was paid.
type RentStatusResult struct {
	LeaseID       string   `json:"leaseId"`
	AsOf          Date     `json:"asOf"`
	MonthlyDue    Money    `json:"monthlyDue"`
	MonthsDue     int      `json:"monthsDue"`
	Expected      Money    `json:"expected"`
	Paid          Money    `json:"paid"`
	Arrears       Money    `json:"arrears"` // Arrears is the unpaid amount, zero when paid in advance.
	Credit        Money    `json:"credit"`  // Credit is the amount paid in advance.
	MonthsOverdue int      `json:"monthsOverdue"`
	UnpaidMonths  []string `json:"unpaidMonths,omitempty"` // UnpaidMonths are not fully covered months, "2006-01" formatted.
	LastPayment   Date     `json:"lastPayment"`
}

// InArrears tells whether some rent is unpaid.
func (r RentStatusResult) InArrears() bool { return r.Arrears.IsPositive() }

// firstRentMonth returns the first month a lease pays a full rent for: the
// month of the start if it starts on the 1st, the next one otherwise.
func firstRentMonth(l LeaseContract) Date {
	first := l.Start.FirstOfMonth()
	if first != l.Start {
		first = first.AddMonth(1)
	}
	return first
}

// RentDueMonths returns the first day of each month whose rent is due on 'asOf'.
// A month is due from its payment day on, while the lease runs.
func RentDueMonths(l LeaseContract, asOf Date) []Date {
	if l.Start.IsZero() {
		return nil
	}
	var months []Date
	for m := firstRentMonth(l); !m.After(asOf); m = m.AddMonth(1) {
		if !l.End.IsZero() && m.After(l.End) {
			break
		}
		if NewDate(m.Year(), m.Month(), l.PaymentDay()).After(asOf) {
			break
		}
		months = append(months, m)
	}
	return months
}

// RentStatus computes the arrears of a lease on 'asOf'.
//
// Only the payments of the lease made on or before 'asOf' count. Payments
// settle the oldest months first.
func RentStatus(lease LeaseContract, payments []RentPayment, asOf Date) RentStatusResult {
	cur := lease.MonthlyRent.Currency()
	due := lease.MonthlyDue()
	res := RentStatusResult{
		LeaseID:    lease.ID,
		AsOf:       asOf,
		MonthlyDue: due,
		Expected:   M(0, cur),
		Paid:       M(0, cur),
		Arrears:    M(0, cur),
		Credit:     M(0, cur),
	}

	for _, p := range payments {
		if (lease.ID != "" && p.LeaseID != lease.ID) || p.Date.After(asOf) {
			continue
		}
		res.Paid = res.Paid.Add(p.Amount)
		if p.Date.After(res.LastPayment) {
			res.LastPayment = p.Date
		}
	}

	months := RentDueMonths(lease, asOf)
	res.MonthsDue = len(months)
	res.Expected = due.Mul(Q(len(months)))

	// allocate the payments to the oldest months first.
	left := res.Paid
	for _, m := range months {
		if left.GreaterThanOrEqual(due) {
			left = left.Sub(due)
			continue
		}
		left = M(0, cur)
		res.UnpaidMonths = append(res.UnpaidMonths, m.Format("2006-01"))
	}
	res.MonthsOverdue = len(res.UnpaidMonths)

	balance := res.Expected.Sub(res.Paid)
	if balance.IsPositive() {
		res.Arrears = balance
	} else {
		res.Credit = balance.Neg()
	}
	return res
}
