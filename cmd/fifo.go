package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/immotax"
	"github.com/etnz/immotax/renderer"
	"github.com/google/subcommands"
)

type fifoCmd struct {
	tradesFlags
	method string
	json   bool
}

func (*fifoCmd) Name() string     { return "fifo" }
func (*fifoCmd) Synopsis() string { return "open lots and disposals of an asset" }
func (*fifoCmd) Usage() string {
	return `itx fifo [-trades <file>] [-method fifo|average] [-c <currency>] [-json] <asset>

  Replays the trades of an asset and displays the open lots, with their cost
  basis, and the disposals with the lots they consumed.
`
}

func (c *fifoCmd) SetFlags(f *flag.FlagSet) {
	c.tradesFlags.SetFlags(f)
	f.StringVar(&c.method, "method", "fifo", "Cost basis method (fifo, average)")
	f.BoolVar(&c.json, "json", false, "Print the result as JSON")
}

func (c *fifoCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "exactly one asset is required")
		return subcommands.ExitUsageError
	}
	asset := f.Arg(0)
	method, err := immotax.ParseCostBasisMethod(c.method)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing cost basis method: %v\n", err)
		return subcommands.ExitUsageError
	}

	trades, err := c.load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading trades: %v\n", err)
		return subcommands.ExitFailure
	}
	var selected []immotax.Trade
	for _, t := range trades {
		if strings.EqualFold(t.Asset, asset) {
			selected = append(selected, t)
		}
	}
	if len(selected) == 0 {
		fmt.Fprintf(os.Stderr, "No trade of %q in %s\n", asset, c.file)
		return subcommands.ExitFailure
	}

	res, err := immotax.CalculateCostBasis(selected, method)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error calculating lots: %v\n", err)
		return subcommands.ExitFailure
	}
	if c.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding result: %v\n", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}
	printMarkdown(renderer.RenderFIFO(res))
	return subcommands.ExitSuccess
}
