// Package money holds the fixed-point currency type used across the order workflow.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount is returned when a loose external value cannot be read as an amount.
	ErrInvalidAmount = errors.New("invalid monetary amount")
	// ErrOverflow is returned when arithmetic leaves the int64 cent range.
	ErrOverflow = errors.New("monetary amount out of range")
)

// Money is an amount in the smallest currency unit (cents).
type Money int64

// Zero is the empty amount.
const Zero Money = 0

// Cents builds a Money from an integer number of cents.
func Cents(c int64) Money { return Money(c) }

// FromDecimal converts a decimal amount to cents, rounding half away from zero.
func FromDecimal(d decimal.Decimal) Money {
	return Money(d.Shift(2).Round(0).IntPart())
}

// FromFloat converts a float amount (e.g. 12.9) to cents.
func FromFloat(f float64) Money {
	return FromDecimal(decimal.NewFromFloat(f))
}

// Parse reads a loose textual amount such as "12.90", "9,90" or " 3 ".
func Parse(raw string) (Money, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}
	if strings.Count(value, ",") == 1 && !strings.Contains(value, ".") {
		value = strings.Replace(value, ",", ".", 1)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return FromDecimal(d), nil
}

// MustParse is Parse for constants and tests.
func MustParse(raw string) Money {
	m, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return m
}

// Int64 returns the amount in cents.
func (m Money) Int64() int64 { return int64(m) }

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// Float64 returns the amount in major units for presentation only.
func (m Money) Float64() float64 {
	f, _ := m.Decimal().Float64()
	return f
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m < 0 }

// Add returns m+o, or ErrOverflow instead of wrapping.
func (m Money) Add(o Money) (Money, error) {
	sum := m + o
	if (o > 0 && sum < m) || (o < 0 && sum > m) {
		return 0, fmt.Errorf("%w: %s + %s", ErrOverflow, m, o)
	}
	return sum, nil
}

// Mul multiplies the amount by an integer quantity, or returns ErrOverflow instead of wrapping.
func (m Money) Mul(qty int64) (Money, error) {
	if m == 0 || qty == 0 {
		return 0, nil
	}
	if (m == math.MinInt64 && qty == -1) || (qty == math.MinInt64 && m == -1) {
		return 0, fmt.Errorf("%w: %s x %d", ErrOverflow, m, qty)
	}
	product := m * Money(qty)
	if product/Money(qty) != m {
		return 0, fmt.Errorf("%w: %s x %d", ErrOverflow, m, qty)
	}
	return product, nil
}

// Percent returns pct percent of the amount, rounded half up to the nearest cent.
func (m Money) Percent(pct decimal.Decimal) Money {
	return FromDecimal(m.Decimal().Mul(pct).Div(decimal.NewFromInt(100)))
}

// String renders the amount with two decimals, e.g. "12.90".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON encodes the amount as a JSON number in major units.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a loose string ("9,90").
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*m = 0
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
		}
		raw = s
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Sum adds all amounts.
func Sum(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total += a
	}
	return total
}
