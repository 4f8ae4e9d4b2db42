package ports

import (
	"context"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
)

// EventPublisher fans domain events out to observers (dashboards, brokers).
type EventPublisher interface {
	Publish(ctx context.Context, events ...domain.Event) error
}

// OrderFeed streams "new order" notices to admin listeners until ctx ends.
type OrderFeed interface {
	Subscribe(ctx context.Context) (<-chan domain.OrderCreated, error)
}
