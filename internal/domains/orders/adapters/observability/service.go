package observability

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/application"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/ports"
)

const tracerName = "github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/observability/service"

// Service decorates the order service with tracing, logging, and metrics.
type Service struct {
	inner   ports.Service
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics serviceMetrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithTracer(tr trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tr
	}
}

func WithMeter(m metric.Meter) Option {
	return func(s *Service) {
		s.metrics = newServiceMetrics(m)
	}
}

// New wraps the core order service.
func New(inner ports.Service, opts ...Option) ports.Service {
	s := &Service{
		inner:   inner,
		tracer:  nooptrace.NewTracerProvider().Tracer(tracerName),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: newServiceMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.tracer == nil {
		s.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	return s
}

func (s *Service) CreateOrder(ctx context.Context, input ports.CreateOrderInput) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder", trace.WithAttributes(
		attribute.String("order.type", string(input.OrderType)),
		attribute.String("order.payment_method", string(input.PaymentMethod)),
		attribute.Int("order.line_count", len(input.Lines)),
	))
	defer span.End()

	s.logInfo(ctx, "creating order", slog.String("order.type", string(input.OrderType)), slog.Int("order.line_count", len(input.Lines)))
	order, err := s.inner.CreateOrder(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to create order")
	}
	span.SetAttributes(attribute.String("order.id", order.ID), attribute.Int64("order.total_cents", order.TotalAmount.Int64()))
	s.metrics.recordCreated(ctx, order)
	s.logInfo(ctx, "order created",
		slog.String("order.id", order.ID),
		slog.String("order.total", order.TotalAmount.String()),
		slog.Int("order.discount_count", len(order.AppliedDiscounts)))
	return order, nil
}

func (s *Service) ConfirmOrder(ctx context.Context, id string, estimatedMinutes int) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ConfirmOrder", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.Int("order.estimated_minutes", estimatedMinutes),
	))
	defer span.End()

	s.logInfo(ctx, "confirming order", slog.String("order.id", id), slog.Int("order.estimated_minutes", estimatedMinutes))
	order, err := s.inner.ConfirmOrder(ctx, id, estimatedMinutes)
	if err != nil && !application.IsPartialSuccess(err) {
		return nil, s.handleError(ctx, span, err, "failed to confirm order", slog.String("order.id", id))
	}
	s.metrics.recordTransition(ctx, s.metrics.confirmed, domain.StatusPending)
	if err != nil {
		s.handlePartial(ctx, span, err, ports.NotificationConfirmation, id)
		return order, err
	}
	s.logInfo(ctx, "order confirmed", slog.String("order.id", id))
	return order, nil
}

func (s *Service) DeclineOrder(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "OrderService.DeclineOrder", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	s.logInfo(ctx, "declining order", slog.String("order.id", id))
	err := s.inner.DeclineOrder(ctx, id)
	if err != nil && !application.IsPartialSuccess(err) {
		return s.handleError(ctx, span, err, "failed to decline order", slog.String("order.id", id))
	}
	s.metrics.recordTransition(ctx, s.metrics.declined, domain.StatusCancelled)
	if err != nil {
		s.handlePartial(ctx, span, err, ports.NotificationCancellation, id)
		return err
	}
	s.logInfo(ctx, "order declined", slog.String("order.id", id))
	return nil
}

func (s *Service) UpdateStatus(ctx context.Context, id string, status domain.Status) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.UpdateStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.status", string(status)),
	))
	defer span.End()

	s.logInfo(ctx, "updating order status", slog.String("order.id", id), slog.String("order.status", string(status)))
	order, err := s.inner.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to update order status", slog.String("order.id", id))
	}
	s.logInfo(ctx, "order status updated", slog.String("order.id", id), slog.String("order.status", string(order.Status)))
	return order, nil
}

func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "OrderService.DeleteOrder", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	s.logInfo(ctx, "deleting order", slog.String("order.id", id))
	if err := s.inner.DeleteOrder(ctx, id); err != nil {
		return s.handleError(ctx, span, err, "failed to delete order", slog.String("order.id", id))
	}
	s.metrics.recordDeleted(ctx)
	s.logInfo(ctx, "order deleted", slog.String("order.id", id))
	return nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrder", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order, err := s.inner.GetOrder(ctx, id)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to load order", slog.String("order.id", id))
	}
	return order, nil
}

func (s *Service) ListOrders(ctx context.Context, filter ports.ListFilter) ([]*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ListOrders", trace.WithAttributes(attribute.Int("filter.status_count", len(filter.Statuses))))
	defer span.End()

	orders, err := s.inner.ListOrders(ctx, filter)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to list orders")
	}
	span.SetAttributes(attribute.Int("orders.count", len(orders)))
	return orders, nil
}

func (s *Service) ActiveDiscounts(ctx context.Context) ([]domain.Discount, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ActiveDiscounts")
	defer span.End()

	discounts, err := s.inner.ActiveDiscounts(ctx)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to load active discounts")
	}
	span.SetAttributes(attribute.Int("discounts.count", len(discounts)))
	return discounts, nil
}

func (s *Service) QuoteCart(ctx context.Context, input ports.QuoteInput) (domain.Quote, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.QuoteCart", trace.WithAttributes(
		attribute.String("order.type", string(input.OrderType)),
		attribute.Int("order.line_count", len(input.Lines)),
	))
	defer span.End()

	quote, err := s.inner.QuoteCart(ctx, input)
	if err != nil {
		return domain.Quote{}, s.handleError(ctx, span, err, "failed to quote cart")
	}
	span.SetAttributes(attribute.Int64("quote.total_cents", quote.Total.Int64()), attribute.Bool("quote.discount_capped", quote.DiscountCapped))
	return quote, nil
}

func (s *Service) ResendNotification(ctx context.Context, id string, kind ports.NotificationKind) error {
	ctx, span := s.tracer.Start(ctx, "OrderService.ResendNotification", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("notification.kind", string(kind)),
	))
	defer span.End()

	s.logInfo(ctx, "resending notification", slog.String("order.id", id), slog.String("notification.kind", string(kind)))
	if err := s.inner.ResendNotification(ctx, id, kind); err != nil {
		if application.IsPartialSuccess(err) {
			s.metrics.recordNotificationFailure(ctx, kind)
		}
		return s.handleError(ctx, span, err, "failed to resend notification", slog.String("order.id", id))
	}
	s.logInfo(ctx, "notification resent", slog.String("order.id", id), slog.String("notification.kind", string(kind)))
	return nil
}

func (s *Service) logInfo(ctx context.Context, msg string, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

func (s *Service) logError(ctx context.Context, level slog.Level, msg string, err error, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	s.logger.LogAttrs(ctx, level, msg, attrs...)
}

func (s *Service) handleError(ctx context.Context, span trace.Span, err error, msg string, attrs ...slog.Attr) error {
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.logError(ctx, slog.LevelError, msg, err, attrs...)
	return err
}

// handlePartial reports a committed status change whose customer message failed.
func (s *Service) handlePartial(ctx context.Context, span trace.Span, err error, kind ports.NotificationKind, id string) {
	span.RecordError(err)
	span.SetAttributes(attribute.Bool("notification.sent", false))
	s.metrics.recordNotificationFailure(ctx, kind)
	s.logError(ctx, slog.LevelWarn, "order saved but customer notification failed", err,
		slog.String("order.id", id), slog.String("notification.kind", string(kind)))
}

type serviceMetrics struct {
	created              metric.Int64Counter
	confirmed            metric.Int64Counter
	declined             metric.Int64Counter
	deleted              metric.Int64Counter
	notificationFailures metric.Int64Counter
	totalAmount          metric.Int64Histogram
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	created, _ := m.Int64Counter("orders.created", metric.WithDescription("Number of orders placed at checkout"))
	confirmed, _ := m.Int64Counter("orders.confirmed", metric.WithDescription("Number of orders accepted by staff"))
	declined, _ := m.Int64Counter("orders.declined", metric.WithDescription("Number of orders declined by staff"))
	deleted, _ := m.Int64Counter("orders.deleted", metric.WithDescription("Number of orders hard deleted"))
	failures, _ := m.Int64Counter("orders.notification_failures", metric.WithDescription("Customer emails that could not be delivered"))
	total, _ := m.Int64Histogram("orders.total_amount_cents",
		metric.WithDescription("Order totals at checkout"),
		metric.WithUnit("{cent}"),
		metric.WithExplicitBucketBoundaries(500, 1000, 2000, 3000, 5000, 7500, 10000, 20000))
	return serviceMetrics{
		created:              created,
		confirmed:            confirmed,
		declined:             declined,
		deleted:              deleted,
		notificationFailures: failures,
		totalAmount:          total,
	}
}

func (m serviceMetrics) recordCreated(ctx context.Context, order *domain.Order) {
	attrs := metric.WithAttributes(attribute.String("order.type", string(order.OrderType)))
	if m.created != nil {
		m.created.Add(ctx, 1, attrs)
	}
	if m.totalAmount != nil {
		m.totalAmount.Record(ctx, order.TotalAmount.Int64(), attrs)
	}
}

func (m serviceMetrics) recordTransition(ctx context.Context, counter metric.Int64Counter, status domain.Status) {
	if counter != nil {
		counter.Add(ctx, 1, metric.WithAttributes(attribute.String("order.status", string(status))))
	}
}

func (m serviceMetrics) recordDeleted(ctx context.Context) {
	if m.deleted != nil {
		m.deleted.Add(ctx, 1)
	}
}

func (m serviceMetrics) recordNotificationFailure(ctx context.Context, kind ports.NotificationKind) {
	if m.notificationFailures != nil {
		m.notificationFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("notification.kind", string(kind))))
	}
}

var _ ports.Service = (*Service)(nil)
