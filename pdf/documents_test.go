package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/etnz/immotax"
)

var created = time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

func assertPDF(t *testing.T, name string, buf *bytes.Buffer) {
	t.Helper()
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Errorf("%s is not a PDF: %q", name, buf.Bytes()[:min(buf.Len(), 16)])
	}
}

func TestAnlageV(t *testing.T) {
	r := &immotax.AnlageVResult{
		PropertyName: "Lindenstraße 5",
		Year:         2024,
		Rents:        immotax.EUR(9600),
		Income:       immotax.EUR(9600),
		Expenses: []immotax.ExpenseLine{
			{Category: immotax.ExpenseInterest, Amount: immotax.EUR(2400), Invoices: 12},
		},
		Depreciation:  immotax.EUR(3000),
		TotalExpenses: immotax.EUR(5400),
		Surplus:       immotax.EUR(4200),
	}
	var buf bytes.Buffer
	if err := AnlageV(&buf, r, created); err != nil {
		t.Fatalf("AnlageV() error = %v", err)
	}
	assertPDF(t, "AnlageV", &buf)
}

func TestGainsReport(t *testing.T) {
	report, err := immotax.CalculateFIFOGainLoss([]immotax.Trade{
		immotax.NewBuy(immotax.MustParse("2024-01-10"), "BTC", immotax.Q(1), immotax.EUR(30000)),
		immotax.NewSell(immotax.MustParse("2024-11-10"), "BTC", immotax.Q(1), immotax.EUR(60000)),
	}, immotax.PrivateSales())
	if err != nil {
		t.Fatalf("CalculateFIFOGainLoss() error = %v", err)
	}
	for _, year := range []int{2024, 2023} {
		var buf bytes.Buffer
		if err := GainsReport(&buf, report, year, created); err != nil {
			t.Fatalf("GainsReport(%d) error = %v", year, err)
		}
		assertPDF(t, "GainsReport", &buf)
	}
}

func TestRentReceipt(t *testing.T) {
	var buf bytes.Buffer
	err := RentReceipt(&buf, Receipt{
		Tenant:   immotax.Tenant{FirstName: "Jürgen", LastName: "Groß"},
		Property: immotax.Property{Name: "Lindenstraße 5", Street: "Lindenstraße 5", Zip: "80331", City: "München"},
		Lease:    immotax.LeaseContract{MonthlyRent: immotax.EUR(800), Utilities: immotax.EUR(150)},
		Payment:  immotax.RentPayment{Date: immotax.MustParse("2025-02-03"), Amount: immotax.EUR(950), ForMonth: "2025-02"},
	}, created)
	if err != nil {
		t.Fatalf("RentReceipt() error = %v", err)
	}
	assertPDF(t, "RentReceipt", &buf)
}
