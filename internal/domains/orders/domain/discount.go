package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidDiscount = errors.New("discount is invalid")

	hundred = decimal.NewFromInt(100)
)

// Discount is a named percentage-off promotion.
type Discount struct {
	ID         string
	Name       string
	Percentage decimal.Decimal
	StartDate  *time.Time
	EndDate    *time.Time
	Enabled    bool
}

// Validate checks the percentage bounds and window ordering.
func (d Discount) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return errors.Join(ErrInvalidDiscount, errors.New("name is required"))
	}
	if d.Percentage.IsNegative() || d.Percentage.GreaterThan(hundred) {
		return errors.Join(ErrInvalidDiscount, errors.New("percentage must be between 0 and 100"))
	}
	if d.StartDate != nil && d.EndDate != nil && d.EndDate.Before(*d.StartDate) {
		return errors.Join(ErrInvalidDiscount, errors.New("end date precedes start date"))
	}
	return nil
}

// IsActive reports whether the discount is enabled and now lies inside its window.
// Both window bounds are inclusive.
func (d Discount) IsActive(now time.Time) bool {
	if !d.Enabled {
		return false
	}
	if d.StartDate != nil && now.Before(*d.StartDate) {
		return false
	}
	if d.EndDate != nil && now.After(*d.EndDate) {
		return false
	}
	return true
}

// ActiveDiscounts filters all down to the discounts active at now, preserving order.
func ActiveDiscounts(all []Discount, now time.Time) []Discount {
	active := make([]Discount, 0, len(all))
	for _, d := range all {
		if d.IsActive(now) {
			active = append(active, d)
		}
	}
	return active
}
