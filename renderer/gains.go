package renderer

import (
	"fmt"
	"io"
	"strings"

	"github.com/etnz/immotax"
)

// GainsMarkdown renders a gain/loss report. If year is not zero, only that
// tax year is rendered.
func GainsMarkdown(r *immotax.GainLossReport, year int) string {
	var b strings.Builder
	if year != 0 {
		fmt.Fprintf(&b, "# Capital Gains Report %d\n\n", year)
	} else {
		fmt.Fprint(&b, "# Capital Gains Report\n\n")
	}
	fmt.Fprintf(&b, "Method: %s\n\n", r.Method)

	for _, y := range r.Years {
		if year != 0 && y.Year != year {
			continue
		}
		writeYear(&b, y)
		ConditionalBlock(&b, func(w io.Writer) bool {
			sales := r.SalesIn(y.Year)
			fmt.Fprint(w, "### Sales\n\n")
			fmt.Fprintln(w, "| Date | Asset | Quantity | Proceeds | Cost | Taxable | Tax-free |")
			fmt.Fprintln(w, "|:---|:---|---:|---:|---:|---:|---:|")
			for _, s := range sales {
				fmt.Fprintf(w, "| %s | %s | %s | %s | %s | %s | %s |\n",
					s.Disposal.Date, s.Asset, s.Disposal.Quantity,
					s.Disposal.Proceeds, s.Disposal.Cost,
					s.Taxable.SignedString(), s.TaxFree.SignedString(),
				)
			}
			fmt.Fprintln(w)
			return len(sales) > 0
		})
	}
	if len(r.Years) == 0 {
		fmt.Fprintln(&b, "No sales.")
	}
	return b.String()
}

func writeYear(w io.Writer, y immotax.YearSummary) {
	fmt.Fprintf(w, "## %d\n\n", y.Year)
	fmt.Fprintln(w, "| Summary | |")
	fmt.Fprintln(w, "|:---|---:|")
	fmt.Fprintf(w, "| Sales | %d |\n", y.Sales)
	fmt.Fprintf(w, "| Proceeds | %s |\n", y.Proceeds)
	fmt.Fprintf(w, "| Cost | %s |\n", y.Cost)
	fmt.Fprintf(w, "| Taxable Gains | %s |\n", y.TaxableGains.SignedString())
	fmt.Fprintf(w, "| Taxable Losses | %s |\n", y.TaxableLosses.SignedString())
	fmt.Fprintf(w, "| Tax-free Gains | %s |\n", y.TaxFreeGains.SignedString())
	fmt.Fprintf(w, "| Net Taxable | %s |\n", y.NetTaxable.SignedString())
	exempt := ""
	if y.Exempt {
		exempt = " (exempt)"
	}
	fmt.Fprintf(w, "| Exemption Limit | %s%s |\n", y.ExemptionLimit, exempt)
	if !y.LossOffset.IsZero() {
		fmt.Fprintf(w, "| Loss Offset | %s |\n", y.LossOffset.SignedString())
	}
	fmt.Fprintf(w, "| **Taxable** | **%s** |\n", y.Taxable.SignedString())
	if !y.LossCarryForward.IsZero() {
		fmt.Fprintf(w, "| Loss Carry-forward | %s |\n", y.LossCarryForward)
	}
	fmt.Fprintln(w)
}
