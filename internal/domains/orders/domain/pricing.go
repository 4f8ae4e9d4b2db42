package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Apurer/pizzeria-api/internal/shared/money"
)

// ErrInvalidPricingInput is returned for negative prices, quantities, fees or percentages,
// and for carts whose amounts do not fit in the cent range.
var ErrInvalidPricingInput = errors.New("invalid pricing input")

// MaxLineQuantity bounds the quantity of a single cart line.
const MaxLineQuantity = 99

// PricingInput is everything the calculator needs. Discounts must already be
// filtered to the active set; the calculator never consults a clock.
type PricingInput struct {
	Lines               []OrderLine
	Discounts           []Discount
	DeliveryThreshold   money.Money
	StandardDeliveryFee money.Money
	OrderType           OrderType
}

// Quote is the outcome of pricing a cart.
type Quote struct {
	Subtotal              money.Money
	DiscountPercentage    decimal.Decimal
	DiscountAmount        money.Money
	SubtotalAfterDiscount money.Money
	DeliveryFee           money.Money
	Total                 money.Money
	AppliedDiscounts      []Discount
	// DiscountCapped is set when the stacked percentages exceeded 100 and were clamped.
	DiscountCapped bool
}

// CalculatePrice prices a cart. Amounts are summed in cents, percentages stack
// additively and are clamped at 100.
func CalculatePrice(in PricingInput) (Quote, error) {
	if in.DeliveryThreshold.IsNegative() {
		return Quote{}, fmt.Errorf("%w: delivery threshold is negative", ErrInvalidPricingInput)
	}
	if in.StandardDeliveryFee.IsNegative() {
		return Quote{}, fmt.Errorf("%w: delivery fee is negative", ErrInvalidPricingInput)
	}

	subtotal, err := SumLines(in.Lines)
	if err != nil {
		return Quote{}, err
	}

	pct := decimal.Zero
	applied := make([]Discount, 0, len(in.Discounts))
	for _, d := range in.Discounts {
		if d.Percentage.IsNegative() || d.Percentage.GreaterThan(hundred) {
			return Quote{}, fmt.Errorf("%w: discount %q percentage %s", ErrInvalidPricingInput, d.Name, d.Percentage)
		}
		pct = pct.Add(d.Percentage)
		applied = append(applied, d)
	}
	capped := false
	if pct.GreaterThan(hundred) {
		pct = hundred
		capped = true
	}

	discount := subtotal.Percent(pct)
	if discount > subtotal {
		discount = subtotal
	}
	afterDiscount := subtotal - discount

	fee := money.Zero
	if in.OrderType == OrderTypeDelivery && afterDiscount < in.DeliveryThreshold {
		fee = in.StandardDeliveryFee
	}

	total, err := afterDiscount.Add(fee)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %w", ErrInvalidPricingInput, err)
	}

	return Quote{
		Subtotal:              subtotal,
		DiscountPercentage:    pct,
		DiscountAmount:        discount,
		SubtotalAfterDiscount: afterDiscount,
		DeliveryFee:           fee,
		Total:                 total,
		AppliedDiscounts:      applied,
		DiscountCapped:        capped,
	}, nil
}

// SumLines validates every line and adds up their prices.
func SumLines(lines []OrderLine) (money.Money, error) {
	var subtotal money.Money
	for i, line := range lines {
		if err := validateLine(line); err != nil {
			return 0, fmt.Errorf("line %d: %w", i, err)
		}
		price, err := line.Price()
		if err == nil {
			subtotal, err = subtotal.Add(price)
		}
		if err != nil {
			return 0, fmt.Errorf("line %d: %w: %w", i, ErrInvalidPricingInput, err)
		}
	}
	return subtotal, nil
}

func validateLine(line OrderLine) error {
	if line.Quantity < 1 || line.Quantity > MaxLineQuantity {
		return fmt.Errorf("%w: quantity %d outside 1..%d", ErrInvalidPricingInput, line.Quantity, MaxLineQuantity)
	}
	if line.SizePrice.IsNegative() {
		return fmt.Errorf("%w: size price %s", ErrInvalidPricingInput, line.SizePrice)
	}
	for _, extra := range line.Extras {
		if extra.Price.IsNegative() {
			return fmt.Errorf("%w: extra %q price %s", ErrInvalidPricingInput, extra.Name, extra.Price)
		}
	}
	return nil
}
