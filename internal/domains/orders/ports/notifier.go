package ports

import (
	"context"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
)

// NotificationKind names the transactional message sent to a customer.
type NotificationKind string

const (
	NotificationConfirmation NotificationKind = "confirmation"
	NotificationCancellation NotificationKind = "cancellation"
)

// Notifier delivers transactional messages. It only ever sees the denormalized
// order snapshot.
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, order *domain.Order, estimatedTimeLabel string) error
	SendOrderCancellation(ctx context.Context, order *domain.Order) error
}
