package immotax

import (
	"fmt"
	"slices"
	"time"
)

// Kind names a type of persisted record.
type Kind string

const (
	KindUser               Kind = "User"
	KindProperty           Kind = "Property"
	KindUnit               Kind = "Unit"
	KindTenant             Kind = "Tenant"
	KindLeaseContract      Kind = "LeaseContract"
	KindRentPayment        Kind = "RentPayment"
	KindInvoice            Kind = "Invoice"
	KindAssetTrade         Kind = "AssetTrade"
	KindElsterSubmission   Kind = "ElsterSubmission"
	KindDocument           Kind = "Document"
	KindWebhook            Kind = "Webhook"
	KindCapitalGainsReport Kind = "CapitalGainsReport"
	KindReminder           Kind = "Reminder"
)

// Meta holds the fields shared by every entity.
type Meta struct {
	ID      string    `json:"id"`
	Owner   string    `json:"owner"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// EntityMeta returns the metadata of the entity embedding m.
func (m *Meta) EntityMeta() *Meta { return m }

// Entity is a persisted record.
type Entity interface {
	EntityMeta() *Meta
	Kind() Kind
}

var factories = map[Kind]func() Entity{
	KindUser:               func() Entity { return new(User) },
	KindProperty:           func() Entity { return new(Property) },
	KindUnit:               func() Entity { return new(Unit) },
	KindTenant:             func() Entity { return new(Tenant) },
	KindLeaseContract:      func() Entity { return new(LeaseContract) },
	KindRentPayment:        func() Entity { return new(RentPayment) },
	KindInvoice:            func() Entity { return new(Invoice) },
	KindAssetTrade:         func() Entity { return new(AssetTrade) },
	KindElsterSubmission:   func() Entity { return new(ElsterSubmission) },
	KindDocument:           func() Entity { return new(Document) },
	KindWebhook:            func() Entity { return new(Webhook) },
	KindCapitalGainsReport: func() Entity { return new(CapitalGainsReport) },
	KindReminder:           func() Entity { return new(Reminder) },
}

// Kinds returns all the known kinds, sorted.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// ParseKind returns the Kind named 's'.
func ParseKind(s string) (Kind, error) {
	if _, ok := factories[Kind(s)]; !ok {
		return "", fmt.Errorf("%w: unknown entity kind %q", ErrValidation, s)
	}
	return Kind(s), nil
}

// NewEntity returns a new empty entity of the given kind.
func NewEntity(kind Kind) (Entity, error) {
	f, ok := factories[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown entity kind %q", ErrValidation, kind)
	}
	return f(), nil
}
