package ports

import (
	"context"
	"errors"
	"time"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
)

var ErrNotFound = errors.New("order not found")

// ListFilter narrows an order listing. Zero values mean "no constraint".
type ListFilter struct {
	Statuses []domain.Status
	From     *time.Time
	To       *time.Time
}

// StatusChange carries the optional columns written together with a status.
type StatusChange struct {
	EstimatedMinutes *int
	Declined         bool
	At               time.Time
}

// Repository persists the order aggregate (order, lines and extras).
type Repository interface {
	// Insert stores a new aggregate atomically and returns it with its assigned id.
	Insert(ctx context.Context, order *domain.Order) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	// List returns orders matching filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]*domain.Order, error)
	// UpdateStatusIfCurrentlyIn writes next only while the stored status is one of
	// expected. It reports false when no row matched.
	UpdateStatusIfCurrentlyIn(ctx context.Context, id string, expected []domain.Status, next domain.Status, change StatusChange) (bool, error)
	// Delete removes the aggregate and returns the number of orders removed.
	Delete(ctx context.Context, id string) (int64, error)
}
