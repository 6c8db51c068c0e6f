// Package export writes the data of a tax year in exchange formats: JSON,
// CSV, DATEV bookings and an ELSTER-like XML of the submissions.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/etnz/immotax"
)

// Format is an export format.
type Format string

// Export formats.
const (
	JSON  Format = "json"
	CSV   Format = "csv"
	DATEV Format = "datev"
	XML   Format = "xml"
)

// Formats lists the supported formats.
var Formats = []Format{JSON, CSV, DATEV, XML}

// ParseFormat parses a format name, case insensitive.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return JSON, nil
	}
	if !slices.Contains(Formats, f) {
		return "", fmt.Errorf("%w: unknown export format %q, want one of %v", immotax.ErrValidation, s, Formats)
	}
	return f, nil
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case CSV, DATEV:
		return "text/csv"
	case XML:
		return "application/xml"
	default:
		return "application/json"
	}
}

// Extension returns the file extension of the format.
func (f Format) Extension() string {
	switch f {
	case DATEV:
		return ".csv"
	default:
		return "." + string(f)
	}
}

// TaxData is the data of a user for a tax year.
type TaxData struct {
	Year        int                        `json:"year"`
	Properties  []immotax.Property         `json:"properties"`
	Leases      []immotax.LeaseContract    `json:"leases"`
	Payments    []immotax.RentPayment      `json:"payments"`
	Invoices    []immotax.Invoice          `json:"invoices"`
	Trades      []immotax.AssetTrade       `json:"trades"`
	Submissions []immotax.ElsterSubmission `json:"submissions"`
	AnlageV     []*immotax.AnlageVResult   `json:"anlageV,omitempty"`
	Gains       *immotax.YearSummary       `json:"gains,omitempty"`
}

// Filter keeps the records dated in the tax year. Properties, leases and
// submissions of the year are kept as they are.
func (d *TaxData) Filter() {
	year := immotax.TaxYear(d.Year)
	d.Payments = slices.DeleteFunc(d.Payments, func(p immotax.RentPayment) bool { return !year.Contains(p.Date) })
	d.Invoices = slices.DeleteFunc(d.Invoices, func(i immotax.Invoice) bool { return !year.Contains(i.Date) })
	d.Trades = slices.DeleteFunc(d.Trades, func(t immotax.AssetTrade) bool { return !year.Contains(t.Date) })
	d.Submissions = slices.DeleteFunc(d.Submissions, func(s immotax.ElsterSubmission) bool { return s.TaxYear != d.Year })
}

// Write writes the data in format f.
func Write(w io.Writer, d *TaxData, f Format) error {
	switch f {
	case JSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("cannot encode tax data: %w", err)
		}
		return nil
	case CSV:
		return writeCSV(w, d)
	case DATEV:
		return writeDATEV(w, d)
	case XML:
		return writeXML(w, d)
	default:
		return fmt.Errorf("%w: unknown export format %q", immotax.ErrValidation, f)
	}
}

// FileName returns the name of the export file of a year.
func FileName(year int, f Format) string {
	return fmt.Sprintf("immotax-%d-%s%s", year, f, f.Extension())
}
