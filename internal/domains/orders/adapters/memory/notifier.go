package memory

import (
	"context"
	"sync"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/ports"
)

var _ ports.Notifier = (*Outbox)(nil)

// Message is a notification captured by the Outbox.
type Message struct {
	Kind          ports.NotificationKind
	Order         *domain.Order
	EstimateLabel string
}

// Outbox records notifications instead of sending them. Used when no email
// service is configured and in contract tests.
type Outbox struct {
	mu       sync.Mutex
	messages []Message
	fail     error
}

func NewOutbox() *Outbox { return &Outbox{} }

// FailWith makes every following send return err. nil restores delivery.
func (o *Outbox) FailWith(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fail = err
}

func (o *Outbox) SendOrderConfirmation(_ context.Context, order *domain.Order, label string) error {
	return o.record(Message{Kind: ports.NotificationConfirmation, Order: order.Clone(), EstimateLabel: label})
}

func (o *Outbox) SendOrderCancellation(_ context.Context, order *domain.Order) error {
	return o.record(Message{Kind: ports.NotificationCancellation, Order: order.Clone()})
}

func (o *Outbox) record(msg Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail != nil {
		return o.fail
	}
	o.messages = append(o.messages, msg)
	return nil
}

// Messages returns a copy of every delivered notification.
func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.messages...)
}

// Reset clears captured messages and failure injection.
func (o *Outbox) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = nil
	o.fail = nil
}
