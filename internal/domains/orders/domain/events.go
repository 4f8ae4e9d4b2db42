package domain

import "time"

// Event is the base interface for all order domain events.
type Event interface {
	EventName() string
	OccurredAt() time.Time
	AggregateID() string
}

// BaseEvent provides common event metadata.
type BaseEvent struct {
	OrderID   string    `json:"orderId"`
	Timestamp time.Time `json:"occurredAt"`
}

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// AggregateID returns the order the event belongs to.
func (e BaseEvent) AggregateID() string { return e.OrderID }

// OrderCreated is raised when checkout persisted a new order.
type OrderCreated struct {
	BaseEvent
	OrderType    OrderType `json:"orderType"`
	CustomerName string    `json:"customerName"`
	TotalCents   int64     `json:"totalCents"`
	LineCount    int       `json:"lineCount"`
}

// EventName returns the event type identifier.
func (e OrderCreated) EventName() string { return "orders.order.created" }

// OrderConfirmed is raised when staff accepted an order.
type OrderConfirmed struct {
	BaseEvent
	EstimatedMinutes int  `json:"estimatedMinutes"`
	NotificationSent bool `json:"notificationSent"`
}

// EventName returns the event type identifier.
func (e OrderConfirmed) EventName() string { return "orders.order.confirmed" }

// OrderDeclined is raised when staff rejected an order awaiting confirmation.
type OrderDeclined struct {
	BaseEvent
	NotificationSent bool `json:"notificationSent"`
}

// EventName returns the event type identifier.
func (e OrderDeclined) EventName() string { return "orders.order.declined" }

// OrderStatusChanged is raised by the admin override.
type OrderStatusChanged struct {
	BaseEvent
	FromStatus Status `json:"fromStatus"`
	ToStatus   Status `json:"toStatus"`
}

// EventName returns the event type identifier.
func (e OrderStatusChanged) EventName() string { return "orders.order.status_changed" }

// OrderDeleted is raised when an order was hard deleted.
type OrderDeleted struct {
	BaseEvent
}

// EventName returns the event type identifier.
func (e OrderDeleted) EventName() string { return "orders.order.deleted" }
