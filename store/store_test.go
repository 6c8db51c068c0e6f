package store

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/etnz/immotax"
	"github.com/shopspring/decimal"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(":memory:", opts...)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_CRUD(t *testing.T) {
	var events []Event
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := newTestStore(t,
		WithListener(func(e Event) { events = append(events, e) }),
		WithClock(func() time.Time { clock = clock.Add(time.Minute); return clock }),
	)
	ctx := context.Background()
	tenants := For[immotax.Tenant](s)

	tenant := &immotax.Tenant{FirstName: "Erika", LastName: "Mustermann", Email: "erika@example.com"}
	if err := tenants.Create(ctx, "u1", tenant); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if tenant.ID == "" || tenant.Owner != "u1" || tenant.Created.IsZero() {
		t.Fatalf("Create() did not set the metadata: %+v", tenant.Meta)
	}

	got, err := tenants.Get(ctx, "u1", tenant.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Email != "erika@example.com" || !got.Created.Equal(tenant.Created) {
		t.Errorf("Get() = %+v, want %+v", got, tenant)
	}

	// another owner cannot read, update or delete it.
	if _, err := tenants.Get(ctx, "u2", tenant.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() by another owner error = %v, want %v", err, ErrNotFound)
	}
	if err := tenants.Update(ctx, "u2", got); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() by another owner error = %v, want %v", err, ErrNotFound)
	}

	got.Phone = "+49 89 123456"
	got.Owner = "u2" // ignored
	if err := tenants.Update(ctx, "u1", got); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Owner != "u1" || !got.Updated.After(got.Created) {
		t.Errorf("Update() metadata = %+v", got.Meta)
	}

	if err := tenants.Delete(ctx, "u1", tenant.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := tenants.Get(ctx, "", tenant.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete() error = %v, want %v", err, ErrNotFound)
	}

	var types []string
	for _, e := range events {
		types = append(types, e.Type())
	}
	want := []string{"Tenant.created", "Tenant.updated", "Tenant.deleted"}
	if len(types) != len(want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("events = %v, want %v", types, want)
		}
	}
	if events[0].Owner != "u1" || len(events[0].Data) == 0 {
		t.Errorf("events[0] = %+v, want owner and data", events[0])
	}
}

func TestStore_CreateValidates(t *testing.T) {
	s := newTestStore(t)
	err := For[immotax.Tenant](s).Create(context.Background(), "u1", &immotax.Tenant{FirstName: "Erika"})
	if !errors.Is(err, immotax.ErrValidation) {
		t.Errorf("Create() error = %v, want %v", err, immotax.ErrValidation)
	}
}

func TestStore_List(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	invoices := s.Entities().Invoices

	for _, inv := range []*immotax.Invoice{
		{Vendor: "Stadtwerke", Date: immotax.MustParse("2024-03-01"), Amount: immotax.EUR(90), Category: immotax.ExpenseUtilities, PropertyID: "p1"},
		{Vendor: "Maler", Date: immotax.MustParse("2024-01-15"), Amount: immotax.EUR(400), Category: immotax.ExpenseMaintenance, PropertyID: "p1"},
		{Vendor: "Bank", Date: immotax.MustParse("2024-02-01"), Amount: immotax.EUR(700), Category: immotax.ExpenseInterest, PropertyID: "p2"},
	} {
		if err := invoices.Create(ctx, "u1", inv); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	if err := invoices.Create(ctx, "u2", &immotax.Invoice{Vendor: "Other", Date: immotax.MustParse("2024-01-01"), Amount: immotax.EUR(1), Category: immotax.ExpenseOther, PropertyID: "p1"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name  string
		owner string
		query Query
		want  []string
	}{
		{"all of an owner", "u1", Query{}, []string{"Stadtwerke", "Maler", "Bank"}},
		{"filter", "u1", Query{Filter: map[string]any{"propertyId": "p1"}}, []string{"Stadtwerke", "Maler"}},
		{"sort by field", "u1", Query{Sort: "date"}, []string{"Maler", "Bank", "Stadtwerke"}},
		{"sort descending with limit", "u1", Query{Sort: "-vendor", Limit: 2}, []string{"Stadtwerke", "Maler"}},
		{"offset", "u1", Query{Sort: "vendor", Offset: 1}, []string{"Maler", "Stadtwerke"}},
		{"any owner", "", Query{Filter: map[string]any{"vendor": "Other"}}, []string{"Other"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := invoices.List(ctx, tt.owner, tt.query)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			var got []string
			for _, inv := range list {
				got = append(got, inv.Vendor)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("List() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("List() = %v, want %v", got, tt.want)
				}
			}
		})
	}

	for _, q := range []Query{
		{Filter: map[string]any{"vendor'; DROP TABLE entities; --": "x"}},
		{Sort: "date)"},
		{Filter: map[string]any{"amount": map[string]any{"amount": 1}}},
	} {
		if _, err := invoices.List(ctx, "u1", q); !errors.Is(err, immotax.ErrValidation) {
			t.Errorf("List(%+v) error = %v, want %v", q, err, immotax.ErrValidation)
		}
	}
}

func TestStore_UsersOwnThemselves(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	users := s.Entities().Users
	u := &immotax.User{Email: "max@example.com", TokenHash: "abc"}
	if err := users.Create(ctx, "", u); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if u.Owner != u.ID {
		t.Errorf("Owner = %q, want the user id %q", u.Owner, u.ID)
	}
	found, err := users.Where(ctx, "", "tokenHash", "abc")
	if err != nil || len(found) != 1 || found[0].Email != "max@example.com" {
		t.Errorf("Where(tokenHash) = %v, %v", found, err)
	}
}

func TestStore_ListKeepsCreationOrder(t *testing.T) {
	// a frozen clock gives every entity the same creation time.
	frozen := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, WithClock(func() time.Time { return frozen }))
	ctx := context.Background()
	trades := s.Entities().Trades

	var want []string
	for i := range 20 {
		for _, side := range []immotax.Side{immotax.Buy, immotax.Sell} {
			tr := &immotax.AssetTrade{
				Date:     immotax.MustParse("2024-03-01"),
				Side:     side,
				Asset:    "BTC",
				Quantity: decimal.NewFromInt(1),
				Amount:   immotax.EUR(30000 + i),
			}
			if err := trades.Create(ctx, "u1", tr); err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			want = append(want, tr.ID)
		}
	}

	for _, sort := range []string{"date", "-date", ""} {
		list, err := trades.List(ctx, "u1", Query{Sort: sort})
		if err != nil {
			t.Fatalf("List(%q) error = %v", sort, err)
		}
		var got []string
		for _, tr := range list {
			got = append(got, tr.ID)
		}
		if !slices.Equal(got, want) {
			t.Errorf("List(%q) is not in creation order", sort)
		}

		var replay []immotax.Trade
		for _, tr := range list {
			replay = append(replay, tr.Trade())
		}
		if _, err := immotax.CalculateFIFO(replay); err != nil {
			t.Errorf("CalculateFIFO(List(%q)) error = %v", sort, err)
		}
	}
}
