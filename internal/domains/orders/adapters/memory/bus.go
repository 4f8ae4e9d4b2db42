package memory

import (
	"context"
	"sync"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/ports"
)

var (
	_ ports.EventPublisher = (*Bus)(nil)
	_ ports.OrderFeed      = (*Bus)(nil)
)

const subscriberBuffer = 16

// Bus is an in-process event publisher that also feeds admin listeners with
// OrderCreated notices. Slow subscribers drop events instead of blocking publishers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[chan domain.OrderCreated]struct{}
	handlers    []func(context.Context, domain.Event)
}

func NewBus() *Bus {
	return &Bus{subscribers: map[chan domain.OrderCreated]struct{}{}}
}

// OnEvent registers a synchronous observer for every published event.
func (b *Bus) OnEvent(handler func(context.Context, domain.Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

func (b *Bus) Publish(ctx context.Context, events ...domain.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, event := range events {
		for _, handler := range b.handlers {
			handler(ctx, event)
		}
		created, ok := event.(domain.OrderCreated)
		if !ok {
			continue
		}
		for ch := range b.subscribers {
			select {
			case ch <- created:
			default:
			}
		}
	}
	return nil
}

func (b *Bus) Subscribe(ctx context.Context) (<-chan domain.OrderCreated, error) {
	ch := make(chan domain.OrderCreated, subscriberBuffer)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subscribers, ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch, nil
}
