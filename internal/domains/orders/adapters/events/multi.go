package events

import (
	"context"
	"errors"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/ports"
)

var _ ports.EventPublisher = Multi(nil)

// Multi publishes to every publisher and joins their errors. A failing
// publisher does not stop the others.
type Multi []ports.EventPublisher

func (m Multi) Publish(ctx context.Context, events ...domain.Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, events...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
