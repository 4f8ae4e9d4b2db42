package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
	"github.com/Apurer/pizzeria-api/internal/shared/money"
)

// orderRecord maps the order aggregate root. Schema lives in platform/migrations.
type orderRecord struct {
	ID                  uuid.UUID                `gorm:"primaryKey;column:id;type:uuid"`
	Status              string                   `gorm:"column:status"`
	OrderType           string                   `gorm:"column:order_type"`
	CustomerName        string                   `gorm:"column:customer_name"`
	CustomerPhone       string                   `gorm:"column:customer_phone"`
	CustomerEmail       string                   `gorm:"column:customer_email"`
	Street              *string                  `gorm:"column:street"`
	Zip                 *string                  `gorm:"column:zip"`
	City                *string                  `gorm:"column:city"`
	SubtotalCents       int64                    `gorm:"column:subtotal_cents"`
	DiscountAmountCents int64                    `gorm:"column:discount_amount_cents"`
	DeliveryFeeCents    int64                    `gorm:"column:delivery_fee_cents"`
	TotalCents          int64                    `gorm:"column:total_cents"`
	AppliedDiscounts    []appliedDiscountPayload `gorm:"column:applied_discounts;serializer:json"`
	PaymentMethod       string                   `gorm:"column:payment_method"`
	EstimatedMinutes    *int                     `gorm:"column:estimated_minutes"`
	Declined            bool                     `gorm:"column:declined"`
	Notes               string                   `gorm:"column:notes"`
	CreatedAt           time.Time                `gorm:"column:created_at"`
	UpdatedAt           time.Time                `gorm:"column:updated_at"`
	Lines               []lineRecord             `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (orderRecord) TableName() string { return "orders" }

type lineRecord struct {
	ID             int64         `gorm:"primaryKey;column:id"`
	OrderID        uuid.UUID     `gorm:"column:order_id;type:uuid"`
	Position       int           `gorm:"column:position"`
	MenuItemID     string        `gorm:"column:menu_item_id"`
	Name           string        `gorm:"column:name"`
	Quantity       int           `gorm:"column:quantity"`
	SizeName       string        `gorm:"column:size_name"`
	SizePriceCents int64         `gorm:"column:size_price_cents"`
	Extras         []extraRecord `gorm:"foreignKey:LineID;constraint:OnDelete:CASCADE"`
}

func (lineRecord) TableName() string { return "order_lines" }

type extraRecord struct {
	ID         int64  `gorm:"primaryKey;column:id"`
	LineID     int64  `gorm:"column:line_id"`
	Position   int    `gorm:"column:position"`
	Name       string `gorm:"column:name"`
	PriceCents int64  `gorm:"column:price_cents"`
}

func (extraRecord) TableName() string { return "order_line_extras" }

type appliedDiscountPayload struct {
	Name       string          `json:"name"`
	Percentage decimal.Decimal `json:"percentage"`
}

func toRecord(order *domain.Order, id uuid.UUID) orderRecord {
	rec := orderRecord{
		ID:                  id,
		Status:              string(order.Status),
		OrderType:           string(order.OrderType),
		CustomerName:        order.Customer.Name,
		CustomerPhone:       order.Customer.Phone,
		CustomerEmail:       order.Customer.Email,
		SubtotalCents:       order.Subtotal.Int64(),
		DiscountAmountCents: order.DiscountAmount.Int64(),
		DeliveryFeeCents:    order.DeliveryFee.Int64(),
		TotalCents:          order.TotalAmount.Int64(),
		PaymentMethod:       string(order.PaymentMethod),
		EstimatedMinutes:    order.EstimatedMinutes,
		Declined:            order.Declined,
		Notes:               order.Notes,
		CreatedAt:           order.CreatedAt,
		UpdatedAt:           order.UpdatedAt,
	}
	if addr := order.Customer.Address; addr != nil {
		rec.Street, rec.Zip, rec.City = &addr.Street, &addr.Zip, &addr.City
	}
	for _, d := range order.AppliedDiscounts {
		rec.AppliedDiscounts = append(rec.AppliedDiscounts, appliedDiscountPayload{Name: d.Name, Percentage: d.Percentage})
	}
	for i, line := range order.Lines {
		lr := lineRecord{
			Position:       i,
			MenuItemID:     line.MenuItemID,
			Name:           line.Name,
			Quantity:       line.Quantity,
			SizeName:       line.SizeName,
			SizePriceCents: line.SizePrice.Int64(),
		}
		for j, extra := range line.Extras {
			lr.Extras = append(lr.Extras, extraRecord{Position: j, Name: extra.Name, PriceCents: extra.Price.Int64()})
		}
		rec.Lines = append(rec.Lines, lr)
	}
	return rec
}

func (r orderRecord) toDomain() *domain.Order {
	order := &domain.Order{
		ID:             r.ID.String(),
		Status:         domain.Status(r.Status),
		OrderType:      domain.OrderType(r.OrderType),
		Customer:       domain.Customer{Name: r.CustomerName, Phone: r.CustomerPhone, Email: r.CustomerEmail},
		Subtotal:       money.Cents(r.SubtotalCents),
		DiscountAmount: money.Cents(r.DiscountAmountCents),
		DeliveryFee:    money.Cents(r.DeliveryFeeCents),
		TotalAmount:    money.Cents(r.TotalCents),
		PaymentMethod:  domain.PaymentMethod(r.PaymentMethod),
		Declined:       r.Declined,
		Notes:          r.Notes,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	if r.EstimatedMinutes != nil {
		minutes := *r.EstimatedMinutes
		order.EstimatedMinutes = &minutes
	}
	if r.Zip != nil || r.City != nil || r.Street != nil {
		order.Customer.Address = &domain.Address{Street: deref(r.Street), Zip: deref(r.Zip), City: deref(r.City)}
	}
	for _, d := range r.AppliedDiscounts {
		order.AppliedDiscounts = append(order.AppliedDiscounts, domain.AppliedDiscount{Name: d.Name, Percentage: d.Percentage})
	}
	for _, lr := range r.Lines {
		line := domain.OrderLine{
			MenuItemID: lr.MenuItemID,
			Name:       lr.Name,
			Quantity:   lr.Quantity,
			SizeName:   lr.SizeName,
			SizePrice:  money.Cents(lr.SizePriceCents),
		}
		for _, er := range lr.Extras {
			line.Extras = append(line.Extras, domain.Extra{Name: er.Name, Price: money.Cents(er.PriceCents)})
		}
		order.Lines = append(order.Lines, line)
	}
	return order
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
