// Package scheduler sends the reminders of the service: rent arrears to
// tenants and filing deadlines to users, once a day.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/etnz/immotax"
	"github.com/etnz/immotax/mail"
	"github.com/etnz/immotax/renderer"
	"github.com/etnz/immotax/store"
	"go.uber.org/zap"
)

// Reminder types.
const (
	RentReminder   = "rent"
	FilingReminder = "filing"
)

// ErrNoRecipient is returned when the recipient of a reminder has no email.
var ErrNoRecipient = fmt.Errorf("%w: no email address to send the reminder to", immotax.ErrValidation)

// Reminders sends reminders and records them, so that each is sent once.
type Reminders struct {
	Entities     store.Entities
	Mail         mail.Sender
	Landlord     string // Landlord signs the rent reminders.
	FilingWindow int    // FilingWindow is the number of days before a deadline reminders are sent.
	Log          *zap.Logger
	Now          func() time.Time
}

func (r *Reminders) log() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

func (r *Reminders) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// RentResult is the outcome of a rent reminder.
type RentResult struct {
	Sent   bool                     `json:"sent"`
	Reason string                   `json:"reason,omitempty"` // Reason tells why no reminder was sent.
	To     string                   `json:"to,omitempty"`
	Status immotax.RentStatusResult `json:"status"`
}

// alreadySent tells whether a reminder was recorded for target and month.
func (r *Reminders) alreadySent(ctx context.Context, owner, typ, target, month string) (bool, error) {
	sent, err := r.Entities.Reminders.List(ctx, owner, store.Query{Filter: map[string]any{
		"type": typ, "targetId": target, "month": month,
	}, Limit: 1})
	if err != nil {
		return false, err
	}
	return len(sent) > 0, nil
}

// record stores a sent reminder.
func (r *Reminders) record(ctx context.Context, owner, typ, target, month, to string) error {
	return r.Entities.Reminders.Create(ctx, owner, &immotax.Reminder{
		Type: typ, TargetID: target, Month: month, SentTo: to, SentAt: r.now().UTC(),
	})
}

// SendRent emails the tenant of a lease in arrears on 'asOf'. Unless forced,
// a lease gets at most one reminder per month.
func (r *Reminders) SendRent(ctx context.Context, owner, leaseID string, asOf immotax.Date, force bool) (*RentResult, error) {
	lease, err := r.Entities.Leases.Get(ctx, owner, leaseID)
	if err != nil {
		return nil, err
	}
	payments, err := r.Entities.Payments.Where(ctx, lease.Owner, "leaseId", lease.ID)
	if err != nil {
		return nil, err
	}
	res := &RentResult{Status: immotax.RentStatus(*lease, store.Values(payments), asOf)}
	if !res.Status.InArrears() {
		res.Reason = "no arrears"
		return res, nil
	}

	month := asOf.Format("2006-01")
	if !force {
		sent, err := r.alreadySent(ctx, lease.Owner, RentReminder, lease.ID, month)
		if err != nil {
			return nil, err
		}
		if sent {
			res.Reason = "already reminded this month"
			return res, nil
		}
	}

	tenant, err := r.Entities.Tenants.Get(ctx, lease.Owner, lease.TenantID)
	if err != nil {
		return nil, err
	}
	if tenant.Email == "" {
		return nil, fmt.Errorf("tenant %s: %w", tenant.FullName(), ErrNoRecipient)
	}
	property, err := r.Entities.Properties.Get(ctx, lease.Owner, lease.PropertyID)
	if err != nil {
		return nil, err
	}

	msg := mail.Message{
		To:      []string{tenant.Email},
		Subject: "Rent reminder: " + property.Name,
		Markdown: renderer.RenderRentReminder(renderer.RentReminder{
			Tenant: *tenant, Property: *property, Status: res.Status, Landlord: r.Landlord,
		}),
	}
	if err := r.Mail.Send(ctx, msg); err != nil {
		return nil, err
	}
	if err := r.record(ctx, lease.Owner, RentReminder, lease.ID, month, tenant.Email); err != nil {
		return nil, err
	}
	r.log().Info("rent reminder sent", zap.String("lease", lease.ID), zap.String("arrears", res.Status.Arrears.String()))
	res.Sent, res.To = true, tenant.Email
	return res, nil
}

// SendFiling emails the owner of a draft submission whose deadline is within
// the filing window. A submission gets one reminder per deadline.
func (r *Reminders) SendFiling(ctx context.Context, s *immotax.ElsterSubmission, asOf immotax.Date) (bool, error) {
	if s.Status != "" && s.Status != immotax.SubmissionDraft {
		return false, nil
	}
	deadline := s.Deadline()
	days := asOf.DaysUntil(deadline)
	if days < 0 || days > r.FilingWindow {
		return false, nil
	}
	month := deadline.Format("2006-01")
	sent, err := r.alreadySent(ctx, s.Owner, FilingReminder, s.ID, month)
	if err != nil || sent {
		return false, err
	}

	user, err := r.Entities.Users.Get(ctx, s.Owner, s.Owner)
	if err != nil {
		return false, err
	}
	if user.Email == "" {
		return false, ErrNoRecipient
	}
	msg := mail.Message{
		To:      []string{user.Email},
		Subject: fmt.Sprintf("Filing deadline %s: %s %d", deadline, s.Form, s.TaxYear),
		Markdown: renderer.RenderFilingReminder(renderer.FilingReminder{
			User: *user, Submission: *s, Deadline: deadline, DaysLeft: days,
		}),
	}
	if err := r.Mail.Send(ctx, msg); err != nil {
		return false, err
	}
	if err := r.record(ctx, s.Owner, FilingReminder, s.ID, month, user.Email); err != nil {
		return false, err
	}
	r.log().Info("filing reminder sent", zap.String("submission", s.ID), zap.String("deadline", deadline.String()))
	return true, nil
}

// RunRent sends the rent reminders of every active lease. Failures are
// logged and do not stop the run.
func (r *Reminders) RunRent(ctx context.Context, asOf immotax.Date) (int, error) {
	leases, err := r.Entities.Leases.List(ctx, "", store.Query{})
	if err != nil {
		return 0, err
	}
	var sent int
	var errs error
	for _, l := range leases {
		if !l.Active(asOf) {
			continue
		}
		res, err := r.SendRent(ctx, l.Owner, l.ID, asOf, false)
		if err != nil {
			r.log().Warn("rent reminder failed", zap.String("lease", l.ID), zap.Error(err))
			errs = errors.Join(errs, fmt.Errorf("lease %s: %w", l.ID, err))
			continue
		}
		if res.Sent {
			sent++
		}
	}
	return sent, errs
}

// RunFiling sends the filing reminders of every draft submission.
func (r *Reminders) RunFiling(ctx context.Context, asOf immotax.Date) (int, error) {
	drafts, err := r.Entities.Submissions.List(ctx, "", store.Query{})
	if err != nil {
		return 0, err
	}
	var sent int
	var errs error
	for _, s := range drafts {
		ok, err := r.SendFiling(ctx, s, asOf)
		if err != nil {
			r.log().Warn("filing reminder failed", zap.String("submission", s.ID), zap.Error(err))
			errs = errors.Join(errs, fmt.Errorf("submission %s: %w", s.ID, err))
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, errs
}
