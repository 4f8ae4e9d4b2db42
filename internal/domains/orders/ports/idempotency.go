package ports

import (
	"context"
	"errors"
	"time"
)

// ErrIdempotencyConflict indicates a checkout key was reused for a different cart.
var ErrIdempotencyConflict = errors.New("idempotency key reused with a different request")

// CheckoutKey ties a client supplied Idempotency-Key to the order it created.
type CheckoutKey struct {
	Key         string
	RequestHash string
	OrderID     string
	CreatedAt   time.Time
}

// CheckoutKeyStore remembers checkout keys so retried submissions return the first order.
type CheckoutKeyStore interface {
	// Get returns the stored key, or nil when unknown.
	Get(ctx context.Context, key string) (*CheckoutKey, error)
	// Save stores record unless the key exists. An existing key with the same hash and
	// order is returned as is; any other existing key is returned with ErrIdempotencyConflict.
	Save(ctx context.Context, record CheckoutKey) (*CheckoutKey, error)
	// DeleteByOrder forgets every key that points at orderID.
	DeleteByOrder(ctx context.Context, orderID string) error
}
