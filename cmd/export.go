package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/etnz/immotax/export"
	"github.com/etnz/immotax/fx"
	"github.com/google/subcommands"
)

type exportCmd struct {
	user   string
	year   int
	format string
	output string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export the data of a tax year" }
func (*exportCmd) Usage() string {
	return `itx export -user <email> -year <year> [-format json|csv|datev|xml] [-o <file>]

  Exports the properties, rents, invoices, trades and submissions of a user
  for a tax year, with the computed Anlage V and realized gains.
  Writes to standard output unless -o is given.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "Email of the user to export")
	f.IntVar(&c.year, "year", 0, "Tax year to export")
	f.StringVar(&c.format, "format", "json", "Export format (json, csv, datev, xml)")
	f.StringVar(&c.output, "o", "", "Output file")
}

func (c *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	format, err := export.ParseFormat(c.format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	if c.year == 0 {
		fmt.Fprintln(os.Stderr, "-year is required")
		return subcommands.ExitUsageError
	}

	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	u, err := a.user(ctx, c.user)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	rates := fx.NewClient(a.cfg.FX.URL, a.cfg.FX.CacheDir, a.log)
	data, err := export.Collect(ctx, a.store.Entities(), u.ID, c.year, rates)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error collecting tax data: %v\n", err)
		return subcommands.ExitFailure
	}

	var w io.Writer = os.Stdout
	if c.output != "" {
		out, err := os.Create(c.output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating %q: %v\n", c.output, err)
			return subcommands.ExitFailure
		}
		defer out.Close()
		w = out
	}
	if err := export.Write(w, data, format); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing export: %v\n", err)
		return subcommands.ExitFailure
	}
	if c.output != "" {
		fmt.Fprintf(os.Stderr, "Exported %d to %s\n", c.year, c.output)
	}
	return subcommands.ExitSuccess
}
