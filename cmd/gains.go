package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/etnz/immotax"
	"github.com/etnz/immotax/pdf"
	"github.com/etnz/immotax/renderer"
	"github.com/google/subcommands"
)

// gainsCmd holds the flags for the 'gains' subcommand.
type gainsCmd struct {
	tradesFlags
	year int
	pdf  string
	json bool
}

func (*gainsCmd) Name() string     { return "gains" }
func (*gainsCmd) Synopsis() string { return "realized gains of private sales by tax year" }
func (*gainsCmd) Usage() string {
	return `itx gains [-trades <file>] [-year <year>] [-c <currency>] [-pdf <file>] [-json]

  Matches the sales of every asset with their buys, first in first out, and
  sums the realized gains by tax year: taxable or tax free after the one year
  holding period, exemption limit, loss carry forward.
  With -year, only that year is displayed.
`
}

func (c *gainsCmd) SetFlags(f *flag.FlagSet) {
	c.tradesFlags.SetFlags(f)
	f.IntVar(&c.year, "year", 0, "Tax year to report on, all years by default")
	f.StringVar(&c.pdf, "pdf", "", "Also write the report of -year as a PDF file")
	f.BoolVar(&c.json, "json", false, "Print the report as JSON")
}

func (c *gainsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.pdf != "" && c.year == 0 {
		fmt.Fprintln(os.Stderr, "-pdf requires -year")
		return subcommands.ExitUsageError
	}
	if c.currency == "" {
		c.currency = "EUR"
	}
	trades, err := c.load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading trades: %v\n", err)
		return subcommands.ExitFailure
	}

	report, err := immotax.CalculateFIFOGainLoss(trades, immotax.PrivateSales())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error calculating gains: %v\n", err)
		return subcommands.ExitFailure
	}

	if c.pdf != "" {
		out, err := os.Create(c.pdf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating %q: %v\n", c.pdf, err)
			return subcommands.ExitFailure
		}
		err = pdf.GainsReport(out, report, c.year, time.Now())
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %q: %v\n", c.pdf, err)
			return subcommands.ExitFailure
		}
	}

	if c.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding report: %v\n", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}
	printMarkdown(renderer.GainsMarkdown(report, c.year))
	return subcommands.ExitSuccess
}
