package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/events"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/ports"
)

var _ ports.EventPublisher = (*Publisher)(nil)

var tracer = otel.Tracer("orders/events/rabbitmq")

// channel is the subset of *amqp.Channel used for publishing.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends order events to a durable topic exchange. The routing key is
// the event name, so consumers can bind to e.g. "orders.order.*".
type Publisher struct {
	exchange    string
	openChannel func() (channel, error)
	closeConn   func() error

	declareOnce sync.Once
	declareErr  error
}

// Dial connects to url and returns a publisher owning the connection.
func Dial(url, exchange string) (*Publisher, error) {
	if exchange == "" {
		return nil, errors.New("rabbitmq exchange is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	p := newPublisher(exchange, func() (channel, error) { return conn.Channel() })
	p.closeConn = conn.Close
	return p, nil
}

func newPublisher(exchange string, open func() (channel, error)) *Publisher {
	return &Publisher{exchange: exchange, openChannel: open}
}

func (p *Publisher) Publish(ctx context.Context, evts ...domain.Event) error {
	if len(evts) == 0 {
		return nil
	}
	ch, err := p.openChannel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	p.declareOnce.Do(func() {
		p.declareErr = ch.ExchangeDeclare(p.exchange, amqp.ExchangeTopic, true, false, false, false, nil)
	})
	if p.declareErr != nil {
		return fmt.Errorf("failed to declare exchange: %w", p.declareErr)
	}

	for _, e := range evts {
		if err := p.publishOne(ctx, ch, e); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) publishOne(ctx context.Context, ch channel, e domain.Event) error {
	ctx, span := tracer.Start(ctx, "publish "+p.exchange,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemRabbitmq,
			semconv.MessagingOperationTypePublish,
			semconv.MessagingDestinationName(p.exchange),
			semconv.MessagingRabbitmqDestinationRoutingKey(e.EventName()),
		),
	)
	defer span.End()

	env, body, err := events.Encode(e)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	headers := amqp.Table{}
	otel.GetTextMapPropagator().Inject(ctx, tableCarrier(headers))

	err = ch.PublishWithContext(ctx, p.exchange, env.Type, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    env.ID,
		Type:         env.Type,
		Timestamp:    env.OccurredAt,
		Headers:      headers,
		Body:         body,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to publish %s: %w", env.Type, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if p.closeConn == nil {
		return nil
	}
	return p.closeConn()
}

// tableCarrier adapts AMQP headers to the OTel TextMapCarrier.
type tableCarrier amqp.Table

func (c tableCarrier) Get(key string) string {
	v, _ := c[key].(string)
	return v
}

func (c tableCarrier) Set(key, value string) { c[key] = value }

func (c tableCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
