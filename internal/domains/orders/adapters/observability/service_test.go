package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/memory"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/settings/static"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/application"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/ports"
	"github.com/Apurer/pizzeria-api/internal/shared/money"
)

type harness struct {
	svc    ports.Service
	outbox *memory.Outbox
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
	logs   *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	outbox := memory.NewOutbox()
	core := application.NewService(memory.NewRepository(), outbox, static.New(static.Default()))

	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	logs := &bytes.Buffer{}

	svc := New(core,
		WithTracer(tp.Tracer("test")),
		WithMeter(mp.Meter("test")),
		WithLogger(slog.New(slog.NewJSONHandler(logs, nil))),
	)
	return &harness{svc: svc, outbox: outbox, spans: spans, reader: reader, logs: logs}
}

func (h *harness) sum(t *testing.T, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, h.reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					total += dp.Value
				}
			case metricdata.Histogram[int64]:
				for _, dp := range data.DataPoints {
					total += int64(dp.Count)
				}
			}
		}
	}
	return total
}

func pickupInput() ports.CreateOrderInput {
	return ports.CreateOrderInput{
		Customer:  domain.Customer{Name: "Ana", Phone: "+49 30 1234567", Email: "ana@example.com"},
		Lines:     []domain.OrderLine{{MenuItemID: "margherita", Name: "Margherita", Quantity: 2, SizePrice: money.Cents(890)}},
		OrderType: domain.OrderTypePickup,
	}
}

func TestService_RecordsOrderLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	order, err := h.svc.CreateOrder(ctx, pickupInput())
	require.NoError(t, err)
	_, err = h.svc.ConfirmOrder(ctx, order.ID, 20)
	require.NoError(t, err)
	require.NoError(t, h.svc.DeleteOrder(ctx, order.ID))

	require.EqualValues(t, 1, h.sum(t, "orders.created"))
	require.EqualValues(t, 1, h.sum(t, "orders.total_amount_cents"))
	require.EqualValues(t, 1, h.sum(t, "orders.confirmed"))
	require.EqualValues(t, 1, h.sum(t, "orders.deleted"))
	require.Zero(t, h.sum(t, "orders.notification_failures"))

	names := make([]string, 0)
	for _, s := range h.spans.Ended() {
		names = append(names, s.Name())
	}
	require.Equal(t, []string{"OrderService.CreateOrder", "OrderService.ConfirmOrder", "OrderService.DeleteOrder"}, names)
}

func TestService_PartialSuccessIsCountedAndPassedThrough(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	order, err := h.svc.CreateOrder(ctx, pickupInput())
	require.NoError(t, err)
	h.outbox.FailWith(errors.New("smtp down"))

	confirmed, err := h.svc.ConfirmOrder(ctx, order.ID, 20)
	require.True(t, application.IsPartialSuccess(err))
	require.NotNil(t, confirmed)
	require.Equal(t, domain.StatusPending, confirmed.Status)

	require.EqualValues(t, 1, h.sum(t, "orders.confirmed"))
	require.EqualValues(t, 1, h.sum(t, "orders.notification_failures"))
	require.Contains(t, h.logs.String(), "customer notification failed")
	require.Contains(t, h.logs.String(), `"level":"WARN"`)
}

func TestService_FailuresMarkSpans(t *testing.T) {
	h := newHarness(t)

	err := h.svc.DeclineOrder(context.Background(), "missing")
	require.ErrorIs(t, err, application.ErrNotFound)

	ended := h.spans.Ended()
	require.Len(t, ended, 1)
	require.Equal(t, codes.Error, ended[0].Status().Code)
	require.Zero(t, h.sum(t, "orders.declined"))
	require.Contains(t, h.logs.String(), "failed to decline order")
}

func TestNew_DefaultsAreSafe(t *testing.T) {
	svc := New(application.NewService(memory.NewRepository(), memory.NewOutbox(), static.New(static.Default())))
	_, err := svc.ListOrders(context.Background(), ports.ListFilter{})
	require.NoError(t, err)
}
