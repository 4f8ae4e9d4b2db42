package pgnotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/ports"
	"github.com/Apurer/pizzeria-api/internal/platform/migrations"
)

var _ ports.OrderFeed = (*Feed)(nil)

const subscriberBuffer = 16

// Feed streams "order created" notices published by the orders insert trigger.
// Every subscriber holds its own LISTEN connection and reconnects until its
// context ends.
type Feed struct {
	dsn            string
	logger         *slog.Logger
	reconnectDelay time.Duration
}

type Option func(*Feed)

func WithLogger(logger *slog.Logger) Option {
	return func(f *Feed) {
		if logger != nil {
			f.logger = logger
		}
	}
}

func WithReconnectDelay(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.reconnectDelay = d
		}
	}
}

func NewFeed(dsn string, opts ...Option) *Feed {
	f := &Feed{
		dsn:            dsn,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		reconnectDelay: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type payload struct {
	OrderID      string           `json:"orderId"`
	OrderType    domain.OrderType `json:"orderType"`
	CustomerName string           `json:"customerName"`
	TotalCents   int64            `json:"totalCents"`
	OccurredAt   time.Time        `json:"occurredAt"`
}

// Subscribe fails fast when the first connection cannot be established.
func (f *Feed) Subscribe(ctx context.Context) (<-chan domain.OrderCreated, error) {
	conn, err := f.listen(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan domain.OrderCreated, subscriberBuffer)
	go f.run(ctx, conn, out)
	return out, nil
}

func (f *Feed) listen(ctx context.Context) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, f.dsn)
	if err != nil {
		return nil, fmt.Errorf("connect listener: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{migrations.NotifyChannel}.Sanitize()); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("listen %s: %w", migrations.NotifyChannel, err)
	}
	return conn, nil
}

func (f *Feed) run(ctx context.Context, conn *pgx.Conn, out chan<- domain.OrderCreated) {
	defer close(out)
	defer func() {
		if conn != nil {
			_ = conn.Close(context.Background())
		}
	}()

	for {
		if conn == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(f.reconnectDelay):
			}
			var err error
			if conn, err = f.listen(ctx); err != nil {
				f.logger.WarnContext(ctx, "order feed reconnect failed", slog.String("error", err.Error()))
				conn = nil
				continue
			}
		}

		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			f.logger.WarnContext(ctx, "order feed connection lost", slog.String("error", err.Error()))
			_ = conn.Close(context.Background())
			conn = nil
			continue
		}

		event, err := Decode(notification.Payload)
		if err != nil {
			f.logger.WarnContext(ctx, "discarding malformed order notification", slog.String("error", err.Error()))
			continue
		}
		select {
		case out <- event:
		default:
			f.logger.WarnContext(ctx, "order feed subscriber is slow, dropping notice", slog.String("order_id", event.OrderID))
		}
	}
}

// Decode parses a NOTIFY payload written by the orders insert trigger.
func Decode(raw string) (domain.OrderCreated, error) {
	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return domain.OrderCreated{}, err
	}
	if p.OrderID == "" {
		return domain.OrderCreated{}, errors.New("notification without order id")
	}
	return domain.OrderCreated{
		BaseEvent:    domain.BaseEvent{OrderID: p.OrderID, Timestamp: p.OccurredAt.UTC()},
		OrderType:    p.OrderType,
		CustomerName: p.CustomerName,
		TotalCents:   p.TotalCents,
	}, nil
}
