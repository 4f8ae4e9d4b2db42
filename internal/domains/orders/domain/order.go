package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Apurer/pizzeria-api/internal/shared/money"
)

// Status enumerates order progression.
type Status string

const (
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
	StatusPending              Status = "pending"
	StatusPreparing            Status = "preparing"
	StatusReady                Status = "ready"
	StatusDelivered            Status = "delivered"
	StatusCancelled            Status = "cancelled"
)

var allStatuses = []Status{
	StatusAwaitingConfirmation,
	StatusPending,
	StatusPreparing,
	StatusReady,
	StatusDelivered,
	StatusCancelled,
}

var statusLabels = map[Status]string{
	StatusAwaitingConfirmation: "Awaiting confirmation",
	StatusPending:              "Confirmed",
	StatusPreparing:            "Preparing",
	StatusReady:                "Ready",
	StatusDelivered:            "Delivered",
	StatusCancelled:            "Cancelled",
}

// OrderType distinguishes delivered orders from collected ones.
type OrderType string

const (
	OrderTypeDelivery OrderType = "delivery"
	OrderTypePickup   OrderType = "pickup"
)

// PaymentMethod is how the customer settles the bill.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentPayPal PaymentMethod = "paypal"
)

var (
	ErrInvalidStatus        = errors.New("order status is invalid")
	ErrInvalidOrderType     = errors.New("order type is invalid")
	ErrInvalidPaymentMethod = errors.New("payment method is invalid")
	ErrEmptyOrder           = errors.New("order must contain at least one line")
)

// Statuses lists every known status in lifecycle order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a loose external value into a Status.
func ParseStatus(raw string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return status, nil
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// IsTerminal reports whether no further status change may leave s. Only Delete
// still applies to a terminal order.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusDelivered
}

// Label is the human readable status name shown to staff and customers.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// ParseOrderType converts a loose external value into an OrderType.
func ParseOrderType(raw string) (OrderType, error) {
	switch t := OrderType(strings.ToLower(strings.TrimSpace(raw))); t {
	case OrderTypeDelivery, OrderTypePickup:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidOrderType, raw)
	}
}

// ParsePaymentMethod converts a loose external value into a PaymentMethod.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	switch p := PaymentMethod(strings.ToLower(strings.TrimSpace(raw))); p {
	case PaymentCash, PaymentPayPal:
		return p, nil
	case "":
		return PaymentCash, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, raw)
	}
}

// Address is a customer delivery address.
type Address struct {
	Street string
	Zip    string
	City   string
}

// Customer holds the contact data captured at checkout.
type Customer struct {
	Name    string
	Phone   string
	Email   string
	Address *Address
}

// Extra is a topping or add-on priced at order time.
type Extra struct {
	Name  string
	Price money.Money
}

// OrderLine is a cart entry denormalized into the order.
type OrderLine struct {
	MenuItemID string
	Name       string
	Quantity   int
	SizeName   string
	SizePrice  money.Money
	Extras     []Extra
}

// UnitPrice is the size price plus all extras.
func (l OrderLine) UnitPrice() (money.Money, error) {
	unit := l.SizePrice
	for _, extra := range l.Extras {
		var err error
		if unit, err = unit.Add(extra.Price); err != nil {
			return 0, err
		}
	}
	return unit, nil
}

// Price is the unit price times quantity.
func (l OrderLine) Price() (money.Money, error) {
	unit, err := l.UnitPrice()
	if err != nil {
		return 0, err
	}
	return unit.Mul(int64(l.Quantity))
}

// Total is Price for display. Lines that cannot be priced report zero; such
// lines never pass CalculatePrice or Validate.
func (l OrderLine) Total() money.Money {
	total, err := l.Price()
	if err != nil {
		return money.Zero
	}
	return total
}

// AppliedDiscount is the snapshot of a promotion taken when the order was priced.
type AppliedDiscount struct {
	Name       string
	Percentage decimal.Decimal
}

// Order models the restaurant order aggregate.
type Order struct {
	ID               string
	Status           Status
	OrderType        OrderType
	Customer         Customer
	Lines            []OrderLine
	Subtotal         money.Money
	DiscountAmount   money.Money
	DeliveryFee      money.Money
	TotalAmount      money.Money
	AppliedDiscounts []AppliedDiscount
	PaymentMethod    PaymentMethod
	EstimatedMinutes *int
	// Declined marks a cancellation made through Decline, the only one the customer is told about.
	Declined  bool
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewOrderParams carries everything needed to materialize an order from a priced cart.
type NewOrderParams struct {
	Customer      Customer
	Lines         []OrderLine
	OrderType     OrderType
	PaymentMethod PaymentMethod
	Notes         string
	Quote         Quote
	CreatedAt     time.Time
}

// NewOrder builds an order awaiting confirmation from a priced cart.
func NewOrder(p NewOrderParams) (*Order, error) {
	if len(p.Lines) == 0 {
		return nil, ErrEmptyOrder
	}
	applied := make([]AppliedDiscount, 0, len(p.Quote.AppliedDiscounts))
	for _, d := range p.Quote.AppliedDiscounts {
		applied = append(applied, AppliedDiscount{Name: d.Name, Percentage: d.Percentage})
	}
	order := &Order{
		Status:           StatusAwaitingConfirmation,
		OrderType:        p.OrderType,
		Customer:         p.Customer,
		Lines:            cloneLines(p.Lines),
		Subtotal:         p.Quote.Subtotal,
		DiscountAmount:   p.Quote.DiscountAmount,
		DeliveryFee:      p.Quote.DeliveryFee,
		TotalAmount:      p.Quote.Total,
		AppliedDiscounts: applied,
		PaymentMethod:    p.PaymentMethod,
		Notes:            strings.TrimSpace(p.Notes),
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.CreatedAt,
	}
	if order.OrderType == OrderTypePickup {
		order.Customer.Address = nil
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	return order, nil
}

// Validate enforces the aggregate invariants.
func (o *Order) Validate() error {
	if !o.Status.Valid() {
		return ErrInvalidStatus
	}
	if o.OrderType != OrderTypeDelivery && o.OrderType != OrderTypePickup {
		return ErrInvalidOrderType
	}
	if o.PaymentMethod != PaymentCash && o.PaymentMethod != PaymentPayPal {
		return ErrInvalidPaymentMethod
	}
	if len(o.Lines) == 0 {
		return ErrEmptyOrder
	}
	subtotal, err := SumLines(o.Lines)
	if err != nil {
		return err
	}
	if subtotal != o.Subtotal {
		return fmt.Errorf("%w: subtotal %s does not match lines %s", ErrInvalidPricingInput, o.Subtotal, subtotal)
	}
	if o.DiscountAmount > o.Subtotal || o.DeliveryFee < 0 ||
		o.TotalAmount != o.Subtotal-o.DiscountAmount+o.DeliveryFee {
		return fmt.Errorf("%w: totals do not add up", ErrInvalidPricingInput)
	}
	return nil
}

// Apply moves the aggregate to the state described by a successful transition.
func (o *Order) Apply(result TransitionResult, at time.Time) {
	if result.Removed {
		return
	}
	o.Status = result.To
	if result.Declined {
		o.Declined = true
	}
	if result.EstimatedMinutes != nil {
		minutes := *result.EstimatedMinutes
		o.EstimatedMinutes = &minutes
	}
	o.UpdatedAt = at
}

// Clone returns a deep copy so callers cannot mutate shared state.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	if o.Customer.Address != nil {
		addr := *o.Customer.Address
		clone.Customer.Address = &addr
	}
	clone.Lines = cloneLines(o.Lines)
	clone.AppliedDiscounts = append([]AppliedDiscount(nil), o.AppliedDiscounts...)
	if o.EstimatedMinutes != nil {
		minutes := *o.EstimatedMinutes
		clone.EstimatedMinutes = &minutes
	}
	return &clone
}

func cloneLines(lines []OrderLine) []OrderLine {
	out := make([]OrderLine, len(lines))
	for i, line := range lines {
		out[i] = line
		out[i].Extras = append([]Extra(nil), line.Extras...)
	}
	return out
}

// EstimatedTimeLabel renders an estimate in minutes for customer-facing messages.
func EstimatedTimeLabel(minutes int) string {
	switch {
	case minutes <= 0:
		return ""
	case minutes < 60:
		return fmt.Sprintf("%d minutes", minutes)
	case minutes%60 == 0 && minutes == 60:
		return "1 hour"
	case minutes%60 == 0:
		return fmt.Sprintf("%d hours", minutes/60)
	case minutes < 120:
		return fmt.Sprintf("1 hour %d minutes", minutes%60)
	default:
		return fmt.Sprintf("%d hours %d minutes", minutes/60, minutes%60)
	}
}
