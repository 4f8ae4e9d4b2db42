package memory

import (
	"context"
	"sync"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/ports"
)

var _ ports.CheckoutKeyStore = (*CheckoutKeys)(nil)

// CheckoutKeys keeps checkout idempotency keys in process memory.
type CheckoutKeys struct {
	mu      sync.Mutex
	records map[string]ports.CheckoutKey
}

func NewCheckoutKeys() *CheckoutKeys {
	return &CheckoutKeys{records: map[string]ports.CheckoutKey{}}
}

func (s *CheckoutKeys) Get(_ context.Context, key string) (*ports.CheckoutKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (s *CheckoutKeys) Save(_ context.Context, record ports.CheckoutKey) (*ports.CheckoutKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[record.Key]; ok {
		if existing.RequestHash != record.RequestHash {
			return &existing, ports.ErrIdempotencyConflict
		}
		return &existing, nil
	}
	s.records[record.Key] = record
	return &record, nil
}

func (s *CheckoutKeys) DeleteByOrder(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, record := range s.records {
		if record.OrderID == orderID {
			delete(s.records, key)
		}
	}
	return nil
}
