package immotax

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
)

// Finding severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Finding is a problem found in a submission.
type Finding struct {
	Severity string `json:"severity"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
	Source   string `json:"source,omitempty"` // Source is "rules" or "llm".
}

// HasErrors tells whether any finding is an error.
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// consistency rules: a total field must equal the sum of signed terms, within one euro.
var elsterTotals = map[string]struct {
	total string
	terms map[string]float64
}{
	"AnlageV": {
		total: "surplus",
		terms: map[string]float64{"rents": 1, "utilities": 1, "expenses": -1, "depreciation": -1},
	},
	"AnlageSO": {
		total: "gain",
		terms: map[string]float64{"proceeds": 1, "cost": -1},
	},
}

// ValidateElster checks a submission against local rules, on day 'asOf'.
func ValidateElster(s ElsterSubmission, asOf Date) []Finding {
	var findings []Finding
	add := func(severity, field, format string, args ...any) {
		findings = append(findings, Finding{Severity: severity, Field: field, Message: fmt.Sprintf(format, args...), Source: "rules"})
	}

	switch {
	case s.TaxYear < 2000:
		add(SeverityError, "taxYear", "tax year %d is not supported", s.TaxYear)
	case s.TaxYear >= asOf.Year():
		add(SeverityError, "taxYear", "tax year %d is not over yet", s.TaxYear)
	}

	if s.TaxNumber == "" {
		add(SeverityError, "taxNumber", "tax number is missing")
	} else if !IsSteuernummer(s.TaxNumber) {
		add(SeverityError, "taxNumber", "tax number %q is not valid", s.TaxNumber)
	}

	if s.Form == "AnlageV" && s.PropertyID == "" {
		add(SeverityError, "propertyId", "an Anlage V is filed per property")
	}

	values := make(map[string]float64)
	for _, k := range slices.Sorted(maps.Keys(s.Fields)) {
		v := s.Fields[k]
		f, ok := toFloat(v)
		if !ok {
			add(SeverityError, "fields."+k, "value %v is not a number", v)
			continue
		}
		values[k] = f
		if f < 0 && k != "surplus" && k != "gain" {
			add(SeverityWarning, "fields."+k, "negative amount %.2f", f)
		}
	}

	if rule, ok := elsterTotals[s.Form]; ok {
		if total, ok := values[rule.total]; ok {
			var sum float64
			for k, sign := range rule.terms {
				sum += sign * values[k]
			}
			if math.Abs(sum-total) > 1 {
				add(SeverityError, "fields."+rule.total, "%s is %.2f but the other fields add up to %.2f", rule.total, total, sum)
			}
		} else if len(s.Fields) > 0 {
			add(SeverityWarning, "fields."+rule.total, "%s is missing", rule.total)
		}
	}

	switch {
	case s.Status == SubmissionSubmitted:
		add(SeverityWarning, "status", "the submission was already submitted")
	case s.TaxYear >= 2000 && asOf.After(s.Deadline()):
		add(SeverityWarning, "dueDate", "the filing deadline %s has passed", s.Deadline())
	}
	return findings
}

// toFloat converts a JSON form value to a float.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
