package renderer

import (
	"fmt"
	"strings"

	"github.com/etnz/immotax"
)

// RentStatusMarkdown renders the account of a lease.
func RentStatusMarkdown(r immotax.RentStatusResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Rent Status on %s\n\n", r.AsOf)
	fmt.Fprintln(&b, "| Account | |")
	fmt.Fprintln(&b, "|:---|---:|")
	fmt.Fprintf(&b, "| Monthly Due | %s |\n", r.MonthlyDue)
	fmt.Fprintf(&b, "| Months Due | %d |\n", r.MonthsDue)
	fmt.Fprintf(&b, "| Expected | %s |\n", r.Expected)
	fmt.Fprintf(&b, "| Paid | %s |\n", r.Paid)
	if r.InArrears() {
		fmt.Fprintf(&b, "| **Arrears** | **%s** |\n", r.Arrears)
	} else if r.Credit.IsPositive() {
		fmt.Fprintf(&b, "| Credit | %s |\n", r.Credit)
	}
	if !r.LastPayment.IsZero() {
		fmt.Fprintf(&b, "| Last Payment | %s |\n", r.LastPayment)
	}
	if len(r.UnpaidMonths) > 0 {
		fmt.Fprintf(&b, "\nUnpaid months: %s\n", strings.Join(r.UnpaidMonths, ", "))
	}
	return b.String()
}

// FindingsMarkdown renders the findings of a submission check.
func FindingsMarkdown(findings []immotax.Finding) string {
	if len(findings) == 0 {
		return "No findings.\n"
	}
	var b strings.Builder
	fmt.Fprintln(&b, "| Severity | Field | Message | Source |")
	fmt.Fprintln(&b, "|:---|:---|:---|:---|")
	for _, f := range findings {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", f.Severity, f.Field, strings.ReplaceAll(f.Message, "|", `\|`), f.Source)
	}
	return b.String()
}
