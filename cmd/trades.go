package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/immotax"
	"github.com/etnz/immotax/fx"
)

// tradesFlags are the flags of the commands reading a trades file.
type tradesFlags struct {
	file     string
	currency string
	cacheDir string
}

func (t *tradesFlags) SetFlags(f *flag.FlagSet) {
	f.StringVar(&t.file, "trades", "trades.jsonl", "Path to the trades file (JSONL format)")
	f.StringVar(&t.currency, "c", "", "Convert the trades into this currency with ECB reference rates")
	f.StringVar(&t.cacheDir, "cache", "", "Directory caching the exchange rates")
}

// load decodes the trades of the file, converted if requested.
func (t *tradesFlags) load(ctx context.Context) ([]immotax.Trade, error) {
	f, err := os.Open(t.file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	trades, err := immotax.DecodeTrades(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.file, err)
	}
	if t.currency == "" {
		return trades, nil
	}
	client := fx.NewClient(fx.DefaultURL, t.cacheDir, nil)
	return fx.ConvertTrades(ctx, client, trades, t.currency)
}
