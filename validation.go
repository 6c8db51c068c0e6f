package immotax

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// entityValidate is the validator instance for entities.
// Initialized in init() with custom validators.
var entityValidate *validator.Validate

func init() {
	entityValidate = validator.New()
	// report json names, as seen by the API clients.
	entityValidate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = entityValidate.RegisterValidation("steuernummer", validateSteuernummer)
	_ = entityValidate.RegisterValidation("iban", validateIBAN)
}

// Validate checks an entity's fields and its domain rules, and returns all the failures found.
// The error wraps ErrValidation.
func Validate(e Entity) error {
	var errs error
	if err := entityValidate.Struct(e); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validating %s: %w", e.Kind(), err)
		}
		for _, fe := range fieldErrs {
			errs = errors.Join(errs, fieldError(fe))
		}
	}
	if c, ok := e.(interface{ check() error }); ok {
		errs = errors.Join(errs, c.check())
	}
	if errs != nil {
		return fmt.Errorf("%w: %s: %w", ErrValidation, e.Kind(), errs)
	}
	return nil
}

// fieldError turns a validator failure into a readable error.
func fieldError(fe validator.FieldError) error {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "oneof":
		return fmt.Errorf("%s must be one of [%s], got %v", field, fe.Param(), fe.Value())
	case "steuernummer":
		return fmt.Errorf("%s %q is not a valid tax number", field, fe.Value())
	case "iban":
		return fmt.Errorf("%s %q is not a valid IBAN", field, fe.Value())
	default:
		if fe.Param() != "" {
			return fmt.Errorf("%s failed on %s=%s", field, fe.Tag(), fe.Param())
		}
		return fmt.Errorf("%s failed on %s", field, fe.Tag())
	}
}

var steuernummerRE = regexp.MustCompile(`^\d{10,13}$`)

// IsSteuernummer tells whether 's' looks like a german tax number, either in
// the format of a state ("21/815/08150") or in the 13 digits ELSTER format.
func IsSteuernummer(s string) bool {
	digits := strings.NewReplacer("/", "", " ", "").Replace(s)
	return steuernummerRE.MatchString(digits)
}

func validateSteuernummer(fl validator.FieldLevel) bool {
	return IsSteuernummer(fl.Field().String())
}

// ibanLengths are the IBAN lengths of the SEPA countries tenants most often bank in.
var ibanLengths = map[string]int{
	"DE": 22, "AT": 20, "CH": 21, "FR": 27, "NL": 18, "BE": 16, "LU": 20,
	"IT": 27, "ES": 24, "PL": 28, "DK": 18, "CZ": 24, "IE": 22, "PT": 25,
}

// IsIBAN checks the format and the check digits (ISO 13616, mod 97) of an IBAN.
func IsIBAN(s string) bool {
	iban := strings.ToUpper(strings.ReplaceAll(s, " ", ""))
	if len(iban) < 15 || len(iban) > 34 {
		return false
	}
	country := iban[:2]
	if want, ok := ibanLengths[country]; ok && len(iban) != want {
		return false
	}
	var digits strings.Builder
	for _, r := range iban[4:] + iban[:4] {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			fmt.Fprintf(&digits, "%d", r-'A'+10)
		default:
			return false
		}
	}
	if iban[0] < 'A' || iban[0] > 'Z' || iban[1] < 'A' || iban[1] > 'Z' {
		return false
	}
	n, ok := new(big.Int).SetString(digits.String(), 10)
	if !ok {
		return false
	}
	return new(big.Int).Mod(n, big.NewInt(97)).Int64() == 1
}

func validateIBAN(fl validator.FieldLevel) bool {
	return IsIBAN(fl.Field().String())
}
