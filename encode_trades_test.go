package immotax

import (
	"bytes"
	"strings"
	"testing"
)

func TestDecodeTrades(t *testing.T) {
	jsonlStream := `
{"date":"2024-01-10","side":"buy","asset":"BTC","quantity":0.5,"amount":20000,"fee":12.5,"currency":"EUR"}

{"date":"2024-03-01","side":"sell","asset":"BTC","quantity":0.25,"amount":15000,"currency":"EUR","memo":"partial"}
`
	trades, err := DecodeTrades(strings.NewReader(jsonlStream))
	if err != nil {
		t.Fatalf("DecodeTrades() returned an unexpected error: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("DecodeTrades() decoded %d trades, want 2", len(trades))
	}

	buy := trades[0]
	if buy.Side != Buy || buy.Asset != "BTC" || buy.Date != day("2024-01-10") {
		t.Errorf("trades[0] = %+v, want a BTC buy on 2024-01-10", buy)
	}
	if !buy.Quantity.Equal(Q(0.5)) {
		t.Errorf("trades[0].Quantity = %v, want 0.5", buy.Quantity)
	}
	assertMoney(t, "trades[0].Amount", buy.Amount, EUR(20000))
	assertMoney(t, "trades[0].Fee", buy.Fee, EUR(12.5))
	assertMoney(t, "trades[0].Cost()", buy.Cost(), EUR(20012.5))

	if trades[1].Memo != "partial" {
		t.Errorf("trades[1].Memo = %q, want %q", trades[1].Memo, "partial")
	}
}

func TestDecodeTrades_InvalidLine(t *testing.T) {
	_, err := DecodeTrades(strings.NewReader("{\"date\":\"2024-01-10\"}\n{not json}\n"))
	if err == nil {
		t.Fatal("DecodeTrades() error = nil, want an error")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("DecodeTrades() error = %v, want it to name line 2", err)
	}
}

func TestEncodeTrades(t *testing.T) {
	// tx2 and tx3 have the same date. Their relative order must be preserved.
	tx1 := NewBuy(day("2024-08-03"), "ETH", Q(1), EUR(2500))
	tx2 := NewBuy(day("2024-08-01"), "ETH", Q(2), EUR(5000)).WithFee(EUR(5))
	tx3 := NewSell(day("2024-08-01"), "ETH", Q(1), EUR(2600))

	var buffer bytes.Buffer
	if err := EncodeTrades(&buffer, []Trade{tx1, tx2, tx3}); err != nil {
		t.Fatalf("EncodeTrades() error = %v", err)
	}

	want := `{"date":"2024-08-01","side":"buy","asset":"ETH","quantity":2,"amount":5000,"fee":5,"currency":"EUR"}
{"date":"2024-08-01","side":"sell","asset":"ETH","quantity":1,"amount":2600,"currency":"EUR"}
{"date":"2024-08-03","side":"buy","asset":"ETH","quantity":1,"amount":2500,"currency":"EUR"}
`
	if got := buffer.String(); got != want {
		t.Errorf("EncodeTrades() mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}

	// the encoded stream decodes back to the same trades.
	decoded, err := DecodeTrades(&buffer)
	if err != nil {
		t.Fatalf("DecodeTrades() error = %v", err)
	}
	if len(decoded) != 3 || decoded[0].Side != Buy || decoded[1].Side != Sell {
		t.Errorf("DecodeTrades() = %+v, want the three encoded trades", decoded)
	}
}

func TestTrade_Validate(t *testing.T) {
	tests := []struct {
		name    string
		trade   Trade
		wantErr bool
	}{
		{"valid buy", NewBuy(day("2024-01-01"), "BTC", Q(1), EUR(100)).WithFee(EUR(1)), false},
		{"missing date", NewBuy(Date{}, "BTC", Q(1), EUR(100)), true},
		{"missing asset", NewBuy(day("2024-01-01"), "", Q(1), EUR(100)), true},
		{"unknown side", Trade{Date: day("2024-01-01"), Side: "gift", Asset: "BTC", Quantity: Q(1), Amount: EUR(1)}, true},
		{"negative fee", NewBuy(day("2024-01-01"), "BTC", Q(1), EUR(100)).WithFee(EUR(-1)), true},
		{"fee currency", NewBuy(day("2024-01-01"), "BTC", Q(1), EUR(100)).WithFee(USD(1)), true},
		{"sell fee above amount", NewSell(day("2024-01-01"), "BTC", Q(1), EUR(1)).WithFee(EUR(2)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.trade.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
