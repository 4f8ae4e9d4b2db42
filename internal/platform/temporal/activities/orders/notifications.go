package orders

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/application"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/ports"
)

const (
	// ResendNotificationActivityName retries one customer notification for an order.
	ResendNotificationActivityName = "orders.activities.ResendNotification"

	// ErrTypeNotificationObsolete marks failures that no retry can fix: the order
	// is gone or no longer in the state the notification describes.
	ErrTypeNotificationObsolete = "NotificationObsolete"
)

// NotificationInput names the order and the message to deliver again.
type NotificationInput struct {
	OrderID string                 `json:"orderId"`
	Kind    ports.NotificationKind `json:"kind"`
}

// Activities groups activities that operate on the orders bounded context.
type Activities struct {
	service ports.Service
}

func NewActivities(service ports.Service) *Activities {
	return &Activities{service: service}
}

// ResendNotification asks the order service to send the message again. Only a
// failed delivery is retryable.
func (a *Activities) ResendNotification(ctx context.Context, input NotificationInput) error {
	logger := activity.GetLogger(ctx)
	if a == nil || a.service == nil {
		logger.Error("notification activity not initialized", "orderId", input.OrderID)
		return errors.New("notification activity not initialized")
	}
	logger.Info("ResendNotification activity started", "orderId", input.OrderID, "kind", string(input.Kind))
	err := a.service.ResendNotification(ctx, input.OrderID, input.Kind)
	switch {
	case err == nil:
		logger.Info("ResendNotification activity completed", "orderId", input.OrderID, "kind", string(input.Kind))
		return nil
	case errors.Is(err, application.ErrNotFound),
		errors.Is(err, application.ErrInvalidTransition),
		errors.Is(err, application.ErrValidationFailed):
		logger.Warn("ResendNotification no longer applicable", "orderId", input.OrderID, "error", err)
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeNotificationObsolete, err)
	default:
		logger.Error("ResendNotification activity failed", "orderId", input.OrderID, "error", err)
		return err
	}
}
