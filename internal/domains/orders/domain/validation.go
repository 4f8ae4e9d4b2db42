package domain

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrInvalidEmail   = errors.New("email address is malformed")
	ErrInvalidPhone   = errors.New("phone number may only contain digits and separators")
	ErrMissingName    = errors.New("customer name is required")
	ErrMissingAddress = errors.New("delivery orders require an address")

	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9 ()/\-]{6,20}$`)
)

// FieldError ties a validation failure to the input field that caused it.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Err.Error() }

func (e *FieldError) Unwrap() error { return e.Err }

// FieldErrors flattens a (possibly joined) validation error into field -> message.
func FieldErrors(err error) map[string]string {
	out := map[string]string{}
	collectFieldErrors(err, out)
	return out
}

func collectFieldErrors(err error, out map[string]string) {
	if err == nil {
		return
	}
	var fe *FieldError
	if errors.As(err, &fe) {
		if _, seen := out[fe.Field]; !seen {
			out[fe.Field] = fe.Err.Error()
		}
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, inner := range joined.Unwrap() {
			collectFieldErrors(inner, out)
		}
	}
}

// ValidateCustomer checks the contact data captured at checkout.
// All failures are reported together.
func ValidateCustomer(c Customer, orderType OrderType) error {
	var errs []error
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, &FieldError{Field: "customer.name", Err: ErrMissingName})
	}
	if !emailPattern.MatchString(strings.TrimSpace(c.Email)) {
		errs = append(errs, &FieldError{Field: "customer.email", Err: ErrInvalidEmail})
	}
	if phone := strings.TrimSpace(c.Phone); !phonePattern.MatchString(phone) || countDigits(phone) < 5 {
		errs = append(errs, &FieldError{Field: "customer.phone", Err: ErrInvalidPhone})
	}
	if orderType == OrderTypeDelivery {
		if c.Address == nil || strings.TrimSpace(c.Address.Street) == "" ||
			strings.TrimSpace(c.Address.Zip) == "" || strings.TrimSpace(c.Address.City) == "" {
			errs = append(errs, &FieldError{Field: "customer.address", Err: ErrMissingAddress})
		}
	}
	return errors.Join(errs...)
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
