package ports

import "context"

// NotificationRedelivery retries a single customer notification outside the request path.
type NotificationRedelivery interface {
	Redeliver(ctx context.Context, orderID string, kind NotificationKind) error
}
