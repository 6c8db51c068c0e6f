package immotax

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// DecodeTrades decodes trades from a stream of JSONL data, one trade per line.
//
// Empty lines are skipped. Trades are returned in file order, they are not validated.
func DecodeTrades(r io.Reader) ([]Trade, error) {
	var trades []Trade
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		lineBytes := scanner.Bytes()
		if len(lineBytes) == 0 {
			continue // Skip empty lines
		}
		var t Trade
		if err := json.Unmarshal(lineBytes, &t); err != nil {
			return nil, fmt.Errorf("line %d: could not decode trade %q: %w", line, string(lineBytes), err)
		}
		trades = append(trades, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading trades: %w", err)
	}
	return trades, nil
}

// EncodeTrade marshals a single trade to JSON and writes it to the
// writer, followed by a newline, in JSONL format.
func EncodeTrade(w io.Writer, t Trade) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal trade: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write trade: %w", err)
	}
	return nil
}

// EncodeTrades reorders trades by date and writes them in JSONL format.
// The sort is stable, meaning trades on the same day maintain their original relative order.
func EncodeTrades(w io.Writer, trades []Trade) error {
	for _, t := range sortTrades(trades) {
		if err := EncodeTrade(w, t); err != nil {
			return err
		}
	}
	return nil
}
