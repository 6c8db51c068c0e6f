package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/etnz/immotax"
	"github.com/etnz/immotax/mail"
	"github.com/etnz/immotax/store"
)

func day(s string) immotax.Date { return immotax.MustParse(s) }

type fixture struct {
	reminders *Reminders
	mail      *mail.LogSender
	user      *immotax.User
	tenant    *immotax.Tenant
	lease     *immotax.LeaseContract
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()
	ents := s.Entities()

	f := &fixture{mail: &mail.LogSender{}}
	f.user = &immotax.User{Email: "owner@example.com", Name: "Max"}
	must(t, ents.Users.Create(ctx, "", f.user))
	owner := f.user.ID

	property := &immotax.Property{Name: "Lindenstraße 5"}
	must(t, ents.Properties.Create(ctx, owner, property))
	f.tenant = &immotax.Tenant{FirstName: "Erika", LastName: "Mustermann", Email: "erika@example.com"}
	must(t, ents.Tenants.Create(ctx, owner, f.tenant))
	f.lease = &immotax.LeaseContract{
		PropertyID:  property.ID,
		TenantID:    f.tenant.ID,
		Start:       day("2024-01-01"),
		MonthlyRent: immotax.EUR(800),
	}
	must(t, ents.Leases.Create(ctx, owner, f.lease))
	must(t, ents.Payments.Create(ctx, owner, &immotax.RentPayment{LeaseID: f.lease.ID, Date: day("2024-01-03"), Amount: immotax.EUR(800)}))

	f.reminders = &Reminders{
		Entities:     ents,
		Mail:         f.mail,
		Landlord:     "Max",
		FilingWindow: 14,
		Now:          func() time.Time { return time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC) },
	}
	return f
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func TestSendRent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user.ID

	res, err := f.reminders.SendRent(ctx, owner, f.lease.ID, day("2024-03-10"), false)
	if err != nil {
		t.Fatalf("SendRent() error = %v", err)
	}
	if !res.Sent || res.To != "erika@example.com" || res.Status.MonthsOverdue != 2 {
		t.Errorf("SendRent() = %+v, want sent to erika with 2 months overdue", res)
	}

	// only once a month, unless forced.
	res, err = f.reminders.SendRent(ctx, owner, f.lease.ID, day("2024-03-20"), false)
	if err != nil || res.Sent {
		t.Errorf("SendRent() again = %+v, %v, want not sent", res, err)
	}
	res, err = f.reminders.SendRent(ctx, owner, f.lease.ID, day("2024-03-20"), true)
	if err != nil || !res.Sent {
		t.Errorf("SendRent(force) = %+v, %v, want sent", res, err)
	}
	if got := len(f.mail.Sent()); got != 2 {
		t.Errorf("%d mails sent, want 2", got)
	}

	// no arrears before the second month is due.
	res, err = f.reminders.SendRent(ctx, owner, f.lease.ID, day("2024-02-02"), false)
	if err != nil || res.Sent || res.Reason != "no arrears" {
		t.Errorf("SendRent(2024-02-02) = %+v, %v, want no arrears", res, err)
	}

	// another owner cannot remind this lease.
	if _, err := f.reminders.SendRent(ctx, "someone", f.lease.ID, day("2024-03-10"), true); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("SendRent() by another owner error = %v, want %v", err, store.ErrNotFound)
	}
}

func TestSendRent_NoEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.tenant.Email = ""
	must(t, f.reminders.Entities.Tenants.Update(ctx, f.user.ID, f.tenant))

	_, err := f.reminders.SendRent(ctx, f.user.ID, f.lease.ID, day("2024-03-10"), false)
	if !errors.Is(err, ErrNoRecipient) || !errors.Is(err, immotax.ErrValidation) {
		t.Errorf("SendRent() error = %v, want %v", err, ErrNoRecipient)
	}
}

func TestRunRent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sent, err := f.reminders.RunRent(ctx, day("2024-03-10"))
	if err != nil || sent != 1 {
		t.Errorf("RunRent() = %d, %v, want 1 sent", sent, err)
	}
	sent, err = f.reminders.RunRent(ctx, day("2024-03-11"))
	if err != nil || sent != 0 {
		t.Errorf("RunRent() the next day = %d, %v, want 0 sent", sent, err)
	}
}

func TestRunFiling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user.ID
	subs := f.reminders.Entities.Submissions

	due := &immotax.ElsterSubmission{TaxYear: 2023, Form: "ESt", Status: immotax.SubmissionDraft, DueDate: day("2024-03-20")}
	later := &immotax.ElsterSubmission{TaxYear: 2023, Form: "AnlageV", Status: immotax.SubmissionDraft, DueDate: day("2024-05-20")}
	done := &immotax.ElsterSubmission{TaxYear: 2023, Form: "AnlageSO", Status: immotax.SubmissionSubmitted, DueDate: day("2024-03-20")}
	for _, s := range []*immotax.ElsterSubmission{due, later, done} {
		must(t, subs.Create(ctx, owner, s))
	}

	sent, err := f.reminders.RunFiling(ctx, day("2024-03-10"))
	if err != nil || sent != 1 {
		t.Fatalf("RunFiling() = %d, %v, want 1 sent", sent, err)
	}
	msgs := f.mail.Sent()
	if msgs[0].To[0] != "owner@example.com" {
		t.Errorf("filing reminder sent to %v, want owner@example.com", msgs[0].To)
	}

	sent, err = f.reminders.RunFiling(ctx, day("2024-03-11"))
	if err != nil || sent != 0 {
		t.Errorf("RunFiling() the next day = %d, %v, want 0 sent", sent, err)
	}
}

func TestNew(t *testing.T) {
	f := newFixture(t)
	if _, err := New(f.reminders, "7am"); err == nil {
		t.Error("New() with an invalid time succeeded")
	}
	s, err := New(f.reminders, "07:30")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s.Start()
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
