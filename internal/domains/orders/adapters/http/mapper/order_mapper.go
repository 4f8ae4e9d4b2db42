package mapper

import (
	"fmt"
	"strings"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/shopspring/decimal"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/ports"
	"github.com/Apurer/pizzeria-api/internal/shared/money"
)

// Address is the HTTP representation of a delivery address.
type Address struct {
	Street string `json:"street"`
	Zip    string `json:"zip"`
	City   string `json:"city"`
}

// CustomerInput carries checkout contact data. Email stays a plain string so
// malformed addresses surface as field errors instead of decode failures.
type CustomerInput struct {
	Name    string   `json:"name"`
	Phone   string   `json:"phone"`
	Email   string   `json:"email"`
	Address *Address `json:"address,omitempty"`
}

// Customer is the HTTP representation of stored contact data.
type Customer struct {
	Name    string              `json:"name"`
	Phone   string              `json:"phone"`
	Email   openapi_types.Email `json:"email"`
	Address *Address            `json:"address,omitempty"`
}

// Extra is a priced add-on on a cart line.
type Extra struct {
	Name  string      `json:"name"`
	Price money.Money `json:"price"`
}

// LineItem is a cart line as sent by the storefront and returned to admins.
type LineItem struct {
	MenuItemID string      `json:"menuItemId"`
	Name       string      `json:"name"`
	Quantity   int         `json:"quantity"`
	SizeName   string      `json:"sizeName,omitempty"`
	SizePrice  money.Money `json:"sizePrice"`
	Extras     []Extra     `json:"extras,omitempty"`
	LineTotal  money.Money `json:"lineTotal,omitempty"`
}

// CheckoutRequest is the body of POST /api/v1/orders.
type CheckoutRequest struct {
	Customer      CustomerInput `json:"customer"`
	Items         []LineItem    `json:"items"`
	OrderType     string        `json:"orderType"`
	PaymentMethod string        `json:"paymentMethod,omitempty"`
	Notes         string        `json:"notes,omitempty"`
}

// QuoteRequest is the body of POST /api/v1/cart/quote.
type QuoteRequest struct {
	Items     []LineItem `json:"items"`
	OrderType string     `json:"orderType"`
}

// ConfirmRequest is the body of the admin confirm action.
type ConfirmRequest struct {
	EstimatedMinutes int `json:"estimatedMinutes"`
}

// StatusRequest is the body of the admin status override.
type StatusRequest struct {
	Status string `json:"status"`
}

// AppliedDiscount is the discount snapshot stored on an order.
type AppliedDiscount struct {
	Name       string          `json:"name"`
	Percentage decimal.Decimal `json:"percentage"`
}

// Order is the HTTP representation of the order aggregate.
type Order struct {
	ID                 string            `json:"id"`
	Status             string            `json:"status"`
	StatusLabel        string            `json:"statusLabel"`
	OrderType          string            `json:"orderType"`
	Customer           Customer          `json:"customer"`
	Items              []LineItem        `json:"items"`
	Subtotal           money.Money       `json:"subtotal"`
	DiscountAmount     money.Money       `json:"discountAmount"`
	DeliveryFee        money.Money       `json:"deliveryFee"`
	TotalAmount        money.Money       `json:"totalAmount"`
	AppliedDiscounts   []AppliedDiscount `json:"appliedDiscounts"`
	PaymentMethod      string            `json:"paymentMethod"`
	EstimatedMinutes   *int              `json:"estimatedMinutes,omitempty"`
	EstimatedTimeLabel string            `json:"estimatedTimeLabel,omitempty"`
	Notes              string            `json:"notes,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

// Discount is an active promotion shown on the storefront.
type Discount struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Percentage decimal.Decimal     `json:"percentage"`
	StartDate  *openapi_types.Date `json:"startDate,omitempty"`
	EndDate    *openapi_types.Date `json:"endDate,omitempty"`
}

// Quote is the storefront price preview.
type Quote struct {
	Subtotal              money.Money     `json:"subtotal"`
	DiscountPercentage    decimal.Decimal `json:"discountPercentage"`
	DiscountAmount        money.Money     `json:"discountAmount"`
	SubtotalAfterDiscount money.Money     `json:"subtotalAfterDiscount"`
	DeliveryFee           money.Money     `json:"deliveryFee"`
	Total                 money.Money     `json:"total"`
	AppliedDiscounts      []Discount      `json:"appliedDiscounts"`
	DiscountCapped        bool            `json:"discountCapped,omitempty"`
}

// Notification tells the client whether the customer email went out.
type Notification struct {
	Kind                string `json:"kind"`
	Sent                bool   `json:"sent"`
	RedeliveryScheduled bool   `json:"redeliveryScheduled,omitempty"`
	Message             string `json:"message,omitempty"`
}

// OrderActionResult is returned by admin actions that may notify the customer.
type OrderActionResult struct {
	Order        *Order        `json:"order,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
}

// OrderCreatedNotice is pushed to admin dashboards over SSE.
type OrderCreatedNotice struct {
	OrderID      string      `json:"orderId"`
	OrderType    string      `json:"orderType"`
	CustomerName string      `json:"customerName"`
	Total        money.Money `json:"total"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// ToCreateOrderInput converts a checkout request into the service command.
func ToCreateOrderInput(req CheckoutRequest) ports.CreateOrderInput {
	customer := domain.Customer{
		Name:  strings.TrimSpace(req.Customer.Name),
		Phone: strings.TrimSpace(req.Customer.Phone),
		Email: strings.TrimSpace(req.Customer.Email),
	}
	if req.Customer.Address != nil {
		customer.Address = &domain.Address{
			Street: strings.TrimSpace(req.Customer.Address.Street),
			Zip:    strings.TrimSpace(req.Customer.Address.Zip),
			City:   strings.TrimSpace(req.Customer.Address.City),
		}
	}
	return ports.CreateOrderInput{
		Customer:      customer,
		Lines:         ToLines(req.Items),
		OrderType:     domain.OrderType(strings.ToLower(strings.TrimSpace(req.OrderType))),
		PaymentMethod: domain.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
		Notes:         req.Notes,
	}
}

// ToQuoteInput converts a quote request into the service query.
func ToQuoteInput(req QuoteRequest) ports.QuoteInput {
	return ports.QuoteInput{
		Lines:     ToLines(req.Items),
		OrderType: domain.OrderType(strings.ToLower(strings.TrimSpace(req.OrderType))),
	}
}

// ToLines maps cart items to order lines. Client-supplied line totals are ignored.
func ToLines(items []LineItem) []domain.OrderLine {
	lines := make([]domain.OrderLine, 0, len(items))
	for _, item := range items {
		line := domain.OrderLine{
			MenuItemID: item.MenuItemID,
			Name:       strings.TrimSpace(item.Name),
			Quantity:   item.Quantity,
			SizeName:   strings.TrimSpace(item.SizeName),
			SizePrice:  item.SizePrice,
		}
		for _, extra := range item.Extras {
			line.Extras = append(line.Extras, domain.Extra{Name: strings.TrimSpace(extra.Name), Price: extra.Price})
		}
		lines = append(lines, line)
	}
	return lines
}

// FromOrder maps the aggregate to its HTTP representation.
func FromOrder(o *domain.Order) *Order {
	if o == nil {
		return nil
	}
	out := &Order{
		ID:          o.ID,
		Status:      string(o.Status),
		StatusLabel: o.Status.Label(),
		OrderType:   string(o.OrderType),
		Customer: Customer{
			Name:  o.Customer.Name,
			Phone: o.Customer.Phone,
			Email: openapi_types.Email(o.Customer.Email),
		},
		Items:            make([]LineItem, 0, len(o.Lines)),
		Subtotal:         o.Subtotal,
		DiscountAmount:   o.DiscountAmount,
		DeliveryFee:      o.DeliveryFee,
		TotalAmount:      o.TotalAmount,
		AppliedDiscounts: make([]AppliedDiscount, 0, len(o.AppliedDiscounts)),
		PaymentMethod:    string(o.PaymentMethod),
		Notes:            o.Notes,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	if a := o.Customer.Address; a != nil {
		out.Customer.Address = &Address{Street: a.Street, Zip: a.Zip, City: a.City}
	}
	for _, line := range o.Lines {
		item := LineItem{
			MenuItemID: line.MenuItemID,
			Name:       line.Name,
			Quantity:   line.Quantity,
			SizeName:   line.SizeName,
			SizePrice:  line.SizePrice,
			LineTotal:  line.Total(),
		}
		for _, extra := range line.Extras {
			item.Extras = append(item.Extras, Extra{Name: extra.Name, Price: extra.Price})
		}
		out.Items = append(out.Items, item)
	}
	for _, d := range o.AppliedDiscounts {
		out.AppliedDiscounts = append(out.AppliedDiscounts, AppliedDiscount{Name: d.Name, Percentage: d.Percentage})
	}
	if o.EstimatedMinutes != nil {
		minutes := *o.EstimatedMinutes
		out.EstimatedMinutes = &minutes
		out.EstimatedTimeLabel = domain.EstimatedTimeLabel(minutes)
	}
	return out
}

// FromOrders maps a listing.
func FromOrders(orders []*domain.Order) []*Order {
	out := make([]*Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, FromOrder(o))
	}
	return out
}

// FromDiscounts maps promotions for the storefront.
func FromDiscounts(discounts []domain.Discount) []Discount {
	out := make([]Discount, 0, len(discounts))
	for _, d := range discounts {
		item := Discount{ID: d.ID, Name: d.Name, Percentage: d.Percentage}
		if d.StartDate != nil {
			item.StartDate = &openapi_types.Date{Time: d.StartDate.UTC()}
		}
		if d.EndDate != nil {
			item.EndDate = &openapi_types.Date{Time: d.EndDate.UTC()}
		}
		out = append(out, item)
	}
	return out
}

// FromQuote maps a price preview.
func FromQuote(q domain.Quote) Quote {
	return Quote{
		Subtotal:              q.Subtotal,
		DiscountPercentage:    q.DiscountPercentage,
		DiscountAmount:        q.DiscountAmount,
		SubtotalAfterDiscount: q.SubtotalAfterDiscount,
		DeliveryFee:           q.DeliveryFee,
		Total:                 q.Total,
		AppliedDiscounts:      FromDiscounts(q.AppliedDiscounts),
		DiscountCapped:        q.DiscountCapped,
	}
}

// FromOrderCreated maps a feed notice.
func FromOrderCreated(e domain.OrderCreated) OrderCreatedNotice {
	return OrderCreatedNotice{
		OrderID:      e.OrderID,
		OrderType:    string(e.OrderType),
		CustomerName: e.CustomerName,
		Total:        money.Cents(e.TotalCents),
		CreatedAt:    e.OccurredAt(),
	}
}

// ToListFilter parses admin list query parameters. Dates are YYYY-MM-DD and
// the "to" day is inclusive.
func ToListFilter(statuses []string, from, to string) (ports.ListFilter, error) {
	var filter ports.ListFilter
	for _, raw := range statuses {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			status, err := domain.ParseStatus(part)
			if err != nil {
				return ports.ListFilter{}, err
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if from = strings.TrimSpace(from); from != "" {
		day, err := parseDate("from", from)
		if err != nil {
			return ports.ListFilter{}, err
		}
		start := day.Time
		filter.From = &start
	}
	if to = strings.TrimSpace(to); to != "" {
		day, err := parseDate("to", to)
		if err != nil {
			return ports.ListFilter{}, err
		}
		end := day.Time.Add(24*time.Hour - time.Nanosecond)
		filter.To = &end
	}
	return filter, nil
}

func parseDate(field, raw string) (openapi_types.Date, error) {
	t, err := time.Parse(openapi_types.DateFormat, raw)
	if err != nil {
		return openapi_types.Date{}, fmt.Errorf("%s must be a date formatted as %s", field, openapi_types.DateFormat)
	}
	return openapi_types.Date{Time: t}, nil
}
