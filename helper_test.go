package immotax

import "testing"

// USD is a helper for test to create usd money from const
func USD(v float64) Money { return M(v, "USD") }

// NO is a helper for test to create money from const with no currency set
func NO(v float64) Money { return M(v, "") }

// day is a helper for test to create a date from an ISO string.
func day(s string) Date { return MustParse(s) }

// assertMoney fails the test if got and want are not the same amount in the same currency.
func assertMoney(t *testing.T, name string, got, want Money) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("%s = %v (%s), want %v (%s)", name, got.Decimal(), got.Currency(), want.Decimal(), want.Currency())
	}
}
