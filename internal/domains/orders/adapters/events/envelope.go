// Package events holds the broker-neutral wire envelope for order domain
// events and a fan-out publisher.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
)

// Envelope is the JSON document written to every broker.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OrderID    string          `json:"orderId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEnvelope wraps e with a fresh event id.
func NewEnvelope(e domain.Event) (Envelope, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:         uuid.NewString(),
		Type:       e.EventName(),
		OrderID:    e.AggregateID(),
		OccurredAt: e.OccurredAt().UTC(),
		Payload:    payload,
	}, nil
}

// Encode marshals the envelope for e.
func Encode(e domain.Event) (Envelope, []byte, error) {
	env, err := NewEnvelope(e)
	if err != nil {
		return Envelope{}, nil, err
	}
	body, err := json.Marshal(env)
	return env, body, err
}
