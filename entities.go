package immotax

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// User is an account of the service. Every other entity is owned by a user.
type User struct {
	Meta
	Email     string `json:"email" validate:"required,email"`
	Name      string `json:"name"`
	Role      string `json:"role,omitempty" validate:"omitempty,oneof=user admin"`
	TaxNumber string `json:"taxNumber,omitempty" validate:"omitempty,steuernummer"`
	TokenHash string `json:"tokenHash,omitempty"`
}

func (User) Kind() Kind { return KindUser }

// Property is a building or a flat rented out.
type Property struct {
	Meta
	Name          string  `json:"name" validate:"required"`
	Street        string  `json:"street,omitempty"`
	Zip           string  `json:"zip,omitempty" validate:"omitempty,len=5,numeric"`
	City          string  `json:"city,omitempty"`
	AcquiredOn    Date    `json:"acquiredOn"`
	PurchasePrice Money   `json:"purchasePrice"`
	BuildingValue Money   `json:"buildingValue"`     // BuildingValue is the depreciable part of the purchase price.
	AfARate       Percent `json:"afaRate,omitempty"` // AfARate is the yearly depreciation rate, 2% when unset.
	LivingArea    float64 `json:"livingArea,omitempty" validate:"gte=0"`
	TaxNumber     string  `json:"taxNumber,omitempty" validate:"omitempty,steuernummer"`
}

func (Property) Kind() Kind { return KindProperty }

// DepreciationRate returns the yearly depreciation (AfA) rate of the building.
func (p Property) DepreciationRate() Percent {
	if p.AfARate == 0 {
		return 2
	}
	return p.AfARate
}

func (p Property) check() error {
	if p.BuildingValue.GreaterThan(p.PurchasePrice) && p.PurchasePrice.IsPositive() {
		return errors.New("building value cannot exceed the purchase price")
	}
	if p.BuildingValue.IsNegative() || p.PurchasePrice.IsNegative() {
		return errors.New("property values cannot be negative")
	}
	return nil
}

// Unit is a rentable part of a property.
type Unit struct {
	Meta
	PropertyID string  `json:"propertyId" validate:"required"`
	Name       string  `json:"name" validate:"required"`
	Area       float64 `json:"area,omitempty" validate:"gte=0"`
	Rooms      float64 `json:"rooms,omitempty" validate:"gte=0"`
}

func (Unit) Kind() Kind { return KindUnit }

// Tenant is a person renting a unit.
type Tenant struct {
	Meta
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email,omitempty" validate:"omitempty,email"`
	Phone     string `json:"phone,omitempty"`
	BirthDate Date   `json:"birthDate"`
	IBAN      string `json:"iban,omitempty" validate:"omitempty,iban"`
}

func (Tenant) Kind() Kind { return KindTenant }

// FullName returns the first and last name of the tenant.
func (t Tenant) FullName() string { return strings.TrimSpace(t.FirstName + " " + t.LastName) }

// Lease statuses.
const (
	LeaseActive     = "active"
	LeaseTerminated = "terminated"
)

// LeaseContract binds a tenant to a unit of a property for a monthly rent.
type LeaseContract struct {
	Meta
	PropertyID  string `json:"propertyId" validate:"required"`
	UnitID      string `json:"unitId,omitempty"`
	TenantID    string `json:"tenantId" validate:"required"`
	Start       Date   `json:"start"`
	End         Date   `json:"end"` // End is zero for an open-ended lease.
	MonthlyRent Money  `json:"monthlyRent"`
	Utilities   Money  `json:"utilities"` // Utilities is the monthly advance on operating costs.
	Deposit     Money  `json:"deposit"`
	DueDay      int    `json:"dueDay,omitempty" validate:"omitempty,min=1,max=28"`
	Status      string `json:"status,omitempty" validate:"omitempty,oneof=active terminated"`
}

func (LeaseContract) Kind() Kind { return KindLeaseContract }

// MonthlyDue returns the total amount due every month: rent and utilities.
func (l LeaseContract) MonthlyDue() Money { return l.MonthlyRent.Add(l.Utilities) }

// PaymentDay returns the day of the month the rent is due, the 3rd when unset.
func (l LeaseContract) PaymentDay() int {
	if l.DueDay == 0 {
		return 3
	}
	return l.DueDay
}

// Active tells whether the lease runs on 'day'.
func (l LeaseContract) Active(day Date) bool {
	if l.Status == LeaseTerminated && l.End.IsZero() {
		return false
	}
	if day.Before(l.Start) {
		return false
	}
	return l.End.IsZero() || !day.After(l.End)
}

func (l LeaseContract) check() error {
	var errs error
	if l.Start.IsZero() {
		errs = errors.Join(errs, errors.New("lease start is missing"))
	}
	if !l.End.IsZero() && !l.End.After(l.Start) {
		errs = errors.Join(errs, fmt.Errorf("lease end %s must be after its start %s", l.End, l.Start))
	}
	if !l.MonthlyRent.IsPositive() {
		errs = errors.Join(errs, errors.New("monthly rent must be positive"))
	}
	if l.Utilities.IsNegative() || l.Deposit.IsNegative() {
		errs = errors.Join(errs, errors.New("utilities and deposit cannot be negative"))
	}
	return errs
}

// RentPayment is a payment received for a lease.
type RentPayment struct {
	Meta
	LeaseID   string `json:"leaseId" validate:"required"`
	Date      Date   `json:"date"`
	Amount    Money  `json:"amount"`
	ForMonth  string `json:"forMonth,omitempty" validate:"omitempty,datetime=2006-01"`
	Reference string `json:"reference,omitempty"`
}

func (RentPayment) Kind() Kind { return KindRentPayment }

func (p RentPayment) check() error {
	var errs error
	if p.Date.IsZero() {
		errs = errors.Join(errs, errors.New("payment date is missing"))
	}
	if !p.Amount.IsPositive() {
		errs = errors.Join(errs, errors.New("payment amount must be positive"))
	}
	return errs
}

// Expense categories of an invoice, as they appear on Anlage V.
const (
	ExpenseMaintenance = "maintenance"
	ExpenseManagement  = "management"
	ExpenseInsurance   = "insurance"
	ExpensePropertyTax = "propertyTax"
	ExpenseInterest    = "interest"
	ExpenseUtilities   = "utilities"
	ExpenseOther       = "other"
)

// ExpenseCategories lists the expense categories in the Anlage V order.
var ExpenseCategories = []string{
	ExpenseInterest, ExpenseMaintenance, ExpensePropertyTax, ExpenseInsurance,
	ExpenseUtilities, ExpenseManagement, ExpenseOther,
}

// Invoice is an expense paid for a property.
type Invoice struct {
	Meta
	PropertyID  string `json:"propertyId,omitempty"`
	Vendor      string `json:"vendor" validate:"required"`
	Number      string `json:"number,omitempty"`
	Date        Date   `json:"date"`
	Amount      Money  `json:"amount"`
	Category    string `json:"category" validate:"required,oneof=maintenance management insurance propertyTax interest utilities other"`
	Description string `json:"description,omitempty"`
	DocumentID  string `json:"documentId,omitempty"`
}

func (Invoice) Kind() Kind { return KindInvoice }

func (i Invoice) check() error {
	var errs error
	if i.Date.IsZero() {
		errs = errors.Join(errs, errors.New("invoice date is missing"))
	}
	if !i.Amount.IsPositive() {
		errs = errors.Join(errs, errors.New("invoice amount must be positive"))
	}
	return errs
}

// AssetTrade is a persisted Trade.
type AssetTrade struct {
	Meta
	Date     Date            `json:"date"`
	Side     Side            `json:"side" validate:"required,oneof=buy sell"`
	Asset    string          `json:"asset" validate:"required"`
	Quantity decimal.Decimal `json:"quantity"`
	Amount   Money           `json:"amount"`
	Fee      Money           `json:"fee"`
	Memo     string          `json:"memo,omitempty"`
	Exchange string          `json:"exchange,omitempty"`
}

func (AssetTrade) Kind() Kind { return KindAssetTrade }

// Trade returns the trade recorded by the entity.
func (a AssetTrade) Trade() Trade {
	return Trade{
		Date:     a.Date,
		Side:     a.Side,
		Asset:    a.Asset,
		Quantity: Q(a.Quantity),
		Amount:   a.Amount,
		Fee:      a.Fee,
		Memo:     a.Memo,
	}
}

// NewAssetTrade returns the entity recording a trade.
func NewAssetTrade(t Trade) *AssetTrade {
	return &AssetTrade{
		Date:     t.Date,
		Side:     t.Side,
		Asset:    t.Asset,
		Quantity: t.Quantity.Decimal(),
		Amount:   t.Amount,
		Fee:      t.Fee,
		Memo:     t.Memo,
	}
}

func (a AssetTrade) check() error { return a.Trade().Validate() }

// Submission statuses.
const (
	SubmissionDraft     = "draft"
	SubmissionValidated = "validated"
	SubmissionInvalid   = "invalid"
	SubmissionSubmitted = "submitted"
)

// ElsterSubmission is a tax return prepared for ELSTER.
// It is never transmitted: it is the data a user types or uploads into ELSTER.
type ElsterSubmission struct {
	Meta
	TaxYear    int            `json:"taxYear" validate:"required,min=2000,max=2100"`
	Form       string         `json:"form" validate:"required,oneof=ESt AnlageV AnlageSO"`
	Status     string         `json:"status,omitempty" validate:"omitempty,oneof=draft validated invalid submitted"`
	TaxNumber  string         `json:"taxNumber,omitempty" validate:"omitempty,steuernummer"`
	PropertyID string         `json:"propertyId,omitempty"`
	DueDate    Date           `json:"dueDate"`
	Fields     map[string]any `json:"fields,omitempty"` // Fields are the form values by line code (Zeile/Kennzahl).
	Findings   []Finding      `json:"findings,omitempty"`
	Review     map[string]any `json:"review,omitempty"` // Review is the raw plausibility review of the LLM.
}

func (ElsterSubmission) Kind() Kind { return KindElsterSubmission }

// Deadline returns the due date of the submission: the explicit one, or the
// legal filing deadline of its tax year.
func (s ElsterSubmission) Deadline() Date {
	if !s.DueDate.IsZero() {
		return s.DueDate
	}
	return FilingDeadline(s.TaxYear)
}

// FilingDeadline returns the deadline of the income tax return of a year
// without tax advisor: the 31st of July of the following year, postponed by
// the Corona relief for the years 2020 to 2024.
func FilingDeadline(taxYear int) Date {
	switch taxYear {
	case 2020:
		return NewDate(2021, time.October, 31)
	case 2021:
		return NewDate(2022, time.October, 31)
	case 2022:
		return NewDate(2023, time.October, 2)
	case 2023:
		return NewDate(2024, time.September, 2)
	case 2024:
		return NewDate(2025, time.July, 31)
	default:
		return NewDate(taxYear+1, time.July, 31)
	}
}

// Document kinds.
const (
	DocumentUpload      = "upload"
	DocumentExport      = "export"
	DocumentAnlageV     = "anlageV"
	DocumentGainsReport = "gainsReport"
	DocumentReceipt     = "receipt"
)

// Document is a file stored for a user.
type Document struct {
	Meta
	Name        string `json:"name" validate:"required"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size" validate:"gte=0"`
	StorageKey  string `json:"storageKey"`
	Type        string `json:"type,omitempty" validate:"omitempty,oneof=upload export anlageV gainsReport receipt"`
	TaxYear     int    `json:"taxYear,omitempty"`
	PropertyID  string `json:"propertyId,omitempty"`
}

func (Document) Kind() Kind { return KindDocument }

// Webhook is an URL notified of entity changes.
type Webhook struct {
	Meta
	URL    string   `json:"url" validate:"required,url"`
	Events []string `json:"events" validate:"required,min=1,dive,required"` // Events are "<Kind>.<action>" patterns, "*" matches everything.
	Secret string   `json:"secret,omitempty"`
	Filter string   `json:"filter,omitempty"` // Filter is a jsonpath evaluated on the payload.
	Active bool     `json:"active"`
}

func (Webhook) Kind() Kind { return KindWebhook }

// Matches tells whether the webhook subscribes to an event type.
func (w Webhook) Matches(eventType string) bool {
	kind, _, _ := strings.Cut(eventType, ".")
	for _, e := range w.Events {
		if e == "*" || e == eventType || e == kind+".*" {
			return true
		}
	}
	return false
}

// CapitalGainsReport is a saved summary of the realized gains of a tax year.
type CapitalGainsReport struct {
	Meta
	TaxYear    int         `json:"taxYear" validate:"required,min=2000,max=2100"`
	Method     string      `json:"method"`
	Currency   string      `json:"currency"`
	Summary    YearSummary `json:"summary"`
	Assets     []string    `json:"assets,omitempty"`
	DocumentID string      `json:"documentId,omitempty"`
}

func (CapitalGainsReport) Kind() Kind { return KindCapitalGainsReport }

// Reminder records a reminder sent, so that it is not sent twice.
type Reminder struct {
	Meta
	Type     string    `json:"type" validate:"required,oneof=rent filing"`
	TargetID string    `json:"targetId" validate:"required"`
	Month    string    `json:"month" validate:"required,datetime=2006-01"`
	SentTo   string    `json:"sentTo,omitempty"`
	SentAt   time.Time `json:"sentAt"`
}

func (Reminder) Kind() Kind { return KindReminder }
