package ports

import (
	"context"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
)

// CreateOrderInput is the checkout command.
type CreateOrderInput struct {
	Customer      domain.Customer
	Lines         []domain.OrderLine
	OrderType     domain.OrderType
	PaymentMethod domain.PaymentMethod
	Notes         string
	// IdempotencyKey makes retried submissions return the first order instead of a duplicate.
	IdempotencyKey string
}

// QuoteInput prices a cart without persisting it.
type QuoteInput struct {
	Lines     []domain.OrderLine
	OrderType domain.OrderType
}

// Service exposes the order workflow use cases to adapters.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*domain.Order, error)
	// ConfirmOrder may return a non-nil order together with a notification error.
	ConfirmOrder(ctx context.Context, id string, estimatedMinutes int) (*domain.Order, error)
	DeclineOrder(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status domain.Status) (*domain.Order, error)
	DeleteOrder(ctx context.Context, id string) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]*domain.Order, error)
	ActiveDiscounts(ctx context.Context) ([]domain.Discount, error)
	QuoteCart(ctx context.Context, input QuoteInput) (domain.Quote, error)
	ResendNotification(ctx context.Context, id string, kind NotificationKind) error
}
