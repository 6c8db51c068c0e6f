package immotax

import (
	"testing"
)

func TestFindDuplicates_Invoices(t *testing.T) {
	existing := []Entity{
		&Invoice{Meta: Meta{ID: "i1"}, Vendor: "Stadtwerke  München", Number: "RE-2024-001", Date: day("2024-01-10"), Amount: EUR(120), Category: ExpenseUtilities},
		&Invoice{Meta: Meta{ID: "i2"}, Vendor: "Hausverwaltung Maier", Date: day("2024-02-01"), Amount: EUR(250), Category: ExpenseManagement},
		&Invoice{Meta: Meta{ID: "i3"}, Vendor: "Hausverwaltung Maier", Date: day("2024-03-01"), Amount: EUR(250), Category: ExpenseManagement},
		&RentPayment{Meta: Meta{ID: "r1"}, LeaseID: "l1", Date: day("2024-02-01"), Amount: EUR(250)},
	}

	tests := []struct {
		name      string
		candidate Entity
		want      []string
	}{
		{
			name:      "same vendor and number",
			candidate: &Invoice{Vendor: "stadtwerke münchen", Number: "re-2024-001", Date: day("2024-01-11"), Amount: EUR(121)},
			want:      []string{"i1"},
		},
		{
			name:      "same vendor, date and amount",
			candidate: &Invoice{Vendor: "Hausverwaltung Maier", Date: day("2024-02-01"), Amount: EUR(250)},
			want:      []string{"i2"},
		},
		{
			name:      "an entity is not its own duplicate",
			candidate: &Invoice{Meta: Meta{ID: "i3"}, Vendor: "Hausverwaltung Maier", Date: day("2024-03-01"), Amount: EUR(250)},
		},
		{
			name:      "different amount",
			candidate: &Invoice{Vendor: "Hausverwaltung Maier", Date: day("2024-02-01"), Amount: EUR(251)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindDuplicates(tt.candidate, existing)
			var ids []string
			for _, e := range got {
				ids = append(ids, e.EntityMeta().ID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("FindDuplicates() = %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Errorf("FindDuplicates() = %v, want %v", ids, tt.want)
				}
			}
		})
	}
}

func TestFindDuplicates_OtherKinds(t *testing.T) {
	trade := NewAssetTrade(NewBuy(day("2024-01-10"), "BTC", Q(0.5), EUR(20000)))
	trade.ID = "a1"
	if got := FindDuplicates[Entity](NewAssetTrade(NewBuy(day("2024-01-10"), "btc", Q(0.5), EUR(20000))), []Entity{trade}); len(got) != 1 {
		t.Errorf("FindDuplicates(trade) = %v, want 1 duplicate", got)
	}

	tenant := &Tenant{Meta: Meta{ID: "t1"}, FirstName: "Erika", LastName: "Mustermann", BirthDate: day("1980-04-01")}
	candidate := &Tenant{FirstName: "erika", LastName: "MUSTERMANN", BirthDate: day("1980-04-01"), Email: "erika@example.com"}
	if got := FindDuplicates[Entity](candidate, []Entity{tenant}); len(got) != 1 {
		t.Errorf("FindDuplicates(tenant) = %v, want 1 duplicate", got)
	}

	payment := &RentPayment{Meta: Meta{ID: "r1"}, LeaseID: "l1", Date: day("2024-02-01"), Amount: EUR(900)}
	other := &RentPayment{LeaseID: "l2", Date: day("2024-02-01"), Amount: EUR(900)}
	if got := FindDuplicates[Entity](other, []Entity{payment}); len(got) != 0 {
		t.Errorf("FindDuplicates(payment of another lease) = %v, want none", got)
	}

	if HasDuplicateRules(KindWebhook) {
		t.Error("HasDuplicateRules(Webhook) = true, want false")
	}
}
