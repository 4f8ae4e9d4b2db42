package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/ports"
)

var _ ports.Repository = (*Repository)(nil)

// store is the subset of the go-redis client the cache needs.
type store interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Incr(ctx context.Context, key string) *goredis.IntCmd
}

// Repository caches order listings in Redis in front of another repository.
// Every successful write bumps a version counter that is part of the list key,
// so stale entries are never read again; the TTL bounds staleness for writes
// made by other processes that bypass this decorator.
type Repository struct {
	next   ports.Repository
	store  store
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

type Option func(*Repository)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithKeyPrefix namespaces cache keys, e.g. per deployment.
func WithKeyPrefix(prefix string) Option {
	return func(r *Repository) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// NewClient builds a go-redis client for addr.
func NewClient(addr string) *goredis.Client {
	return goredis.NewClient(&goredis.Options{Addr: addr})
}

func NewRepository(next ports.Repository, client store, ttl time.Duration, opts ...Option) *Repository {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	r := &Repository{
		next:   next,
		store:  client,
		prefix: "pizzeria",
		ttl:    ttl,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) Insert(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	saved, err := r.next.Insert(ctx, order)
	if err == nil {
		r.invalidate(ctx)
	}
	return saved, err
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.next.GetByID(ctx, id)
}

func (r *Repository) List(ctx context.Context, filter ports.ListFilter) ([]*domain.Order, error) {
	key, err := r.listKey(ctx, filter)
	if err != nil {
		r.logger.WarnContext(ctx, "order list cache unavailable", slog.String("error", err.Error()))
		return r.next.List(ctx, filter)
	}

	cached, err := r.store.Get(ctx, key).Result()
	switch {
	case err == nil:
		var orders []*domain.Order
		if jsonErr := json.Unmarshal([]byte(cached), &orders); jsonErr == nil {
			return orders, nil
		}
		r.logger.WarnContext(ctx, "discarding unreadable order list cache entry", slog.String("key", key))
	case !errors.Is(err, goredis.Nil):
		r.logger.WarnContext(ctx, "order list cache read failed", slog.String("error", err.Error()))
	}

	orders, err := r.next.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if payload, jsonErr := json.Marshal(orders); jsonErr == nil {
		if setErr := r.store.Set(ctx, key, payload, r.ttl).Err(); setErr != nil {
			r.logger.WarnContext(ctx, "order list cache write failed", slog.String("error", setErr.Error()))
		}
	}
	return orders, nil
}

func (r *Repository) UpdateStatusIfCurrentlyIn(ctx context.Context, id string, expected []domain.Status, next domain.Status, change ports.StatusChange) (bool, error) {
	applied, err := r.next.UpdateStatusIfCurrentlyIn(ctx, id, expected, next, change)
	if err == nil && applied {
		r.invalidate(ctx)
	}
	return applied, err
}

func (r *Repository) Delete(ctx context.Context, id string) (int64, error) {
	affected, err := r.next.Delete(ctx, id)
	if err == nil && affected > 0 {
		r.invalidate(ctx)
	}
	return affected, err
}

func (r *Repository) invalidate(ctx context.Context) {
	if err := r.store.Incr(ctx, r.versionKey()).Err(); err != nil {
		r.logger.WarnContext(ctx, "order list cache invalidation failed", slog.String("error", err.Error()))
	}
}

func (r *Repository) versionKey() string {
	return fmt.Sprintf("%s:orders:list:version", r.prefix)
}

func (r *Repository) listKey(ctx context.Context, filter ports.ListFilter) (string, error) {
	version, err := r.store.Get(ctx, r.versionKey()).Result()
	if errors.Is(err, goredis.Nil) {
		version, err = "0", nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:orders:list:v%s:%s", r.prefix, version, filterKey(filter)), nil
}

func filterKey(filter ports.ListFilter) string {
	statuses := make([]string, 0, len(filter.Statuses))
	for _, s := range filter.Statuses {
		statuses = append(statuses, string(s))
	}
	slices.Sort(statuses)
	statuses = slices.Compact(statuses)

	parts := []string{"s=" + strings.Join(statuses, ",")}
	if filter.From != nil {
		parts = append(parts, "from="+filter.From.UTC().Format(time.RFC3339Nano))
	}
	if filter.To != nil {
		parts = append(parts, "to="+filter.To.UTC().Format(time.RFC3339Nano))
	}
	return strings.Join(parts, "|")
}
