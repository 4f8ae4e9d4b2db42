package pizzeriaserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ordermapper "github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/http/mapper"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/memory"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/settings/static"
	ordersapp "github.com/Apurer/pizzeria-api/internal/domains/orders/application"
	ordersports "github.com/Apurer/pizzeria-api/internal/domains/orders/ports"
	apierrors "github.com/Apurer/pizzeria-api/internal/shared/errors"
)

const checkoutBody = `{
	"customer": {"name": "Ada Lovelace", "phone": "030 1234567", "email": "ada@example.com",
		"address": {"street": "Invalidenstr. 1", "zip": "10115", "city": "Berlin"}},
	"items": [{"menuItemId": "margherita", "name": "Margherita", "quantity": 2, "sizeName": "32cm", "sizePrice": 9.5}],
	"orderType": "delivery",
	"paymentMethod": "cash"
}`

type recordingRedelivery struct {
	calls []ordersports.NotificationKind
	err   error
}

func (r *recordingRedelivery) Redeliver(_ context.Context, _ string, kind ordersports.NotificationKind) error {
	r.calls = append(r.calls, kind)
	return r.err
}

type testServer struct {
	router     *gin.Engine
	outbox     *memory.Outbox
	bus        *memory.Bus
	redelivery *recordingRedelivery
}

func newTestServer(t *testing.T, opts ...RouterOption) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	outbox := memory.NewOutbox()
	bus := memory.NewBus()
	redelivery := &recordingRedelivery{}
	service := ordersapp.NewService(memory.NewRepository(), outbox, static.New(static.Default()),
		ordersapp.WithEventPublisher(bus),
		ordersapp.WithCheckoutKeys(memory.NewCheckoutKeys()))

	router := NewRouterWithGinEngine(gin.New(), ApiHandleFunctions{
		OrderAPI: NewOrderAPI(service),
		AdminAPI: NewAdminAPI(service,
			WithNotificationRedelivery(redelivery, true),
			WithOrderFeed(bus),
			WithHeartbeat(time.Hour),
		),
	}, opts...)
	return &testServer{router: router, outbox: outbox, bus: bus, redelivery: redelivery}
}

func (s *testServer) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) checkout(t *testing.T) ordermapper.Order {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/orders", checkoutBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order ordermapper.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	return order
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) apierrors.ProblemDetail {
	t.Helper()
	var problem apierrors.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	return problem
}

func TestCreateOrder_PricesServerSide(t *testing.T) {
	srv := newTestServer(t)

	order := srv.checkout(t)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, "awaiting_confirmation", order.Status)
	assert.Equal(t, "19.00", order.Subtotal.String())
	assert.Equal(t, "2.50", order.DeliveryFee.String())
	assert.Equal(t, "21.50", order.TotalAmount.String())
}

func TestCreateOrder_ValidationProblemListsFields(t *testing.T) {
	srv := newTestServer(t)
	body := strings.Replace(checkoutBody, "ada@example.com", "not-an-email", 1)

	rec := srv.do(t, http.MethodPost, "/api/v1/orders", body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	problem := decodeProblem(t, rec)
	assert.Equal(t, apierrors.TypeValidation, problem.Type)
	fields, ok := problem.Extensions["fields"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "customer.email")
}

func TestCreateOrder_MalformedBody(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/orders", `{"items": "nope"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apierrors.TypeBadRequest, decodeProblem(t, rec).Type)
}

func TestCreateOrder_IdempotencyKeyReplaysOrder(t *testing.T) {
	srv := newTestServer(t)

	first := srv.do(t, http.MethodPost, "/api/v1/orders", checkoutBody, "Idempotency-Key", "cart-42")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := srv.do(t, http.MethodPost, "/api/v1/orders", checkoutBody, "Idempotency-Key", "cart-42")
	require.Equal(t, http.StatusCreated, second.Code, second.Body.String())

	var a, b ordermapper.Order
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))
	assert.Equal(t, a.ID, b.ID)

	changed := strings.Replace(checkoutBody, `"quantity": 2`, `"quantity": 3`, 1)
	conflict := srv.do(t, http.MethodPost, "/api/v1/orders", changed, "Idempotency-Key", "cart-42")
	require.Equal(t, http.StatusConflict, conflict.Code)
	assert.Equal(t, apierrors.TypeIdempotencyConflict, decodeProblem(t, conflict).Type)
}

func TestQuoteCart_FreeDeliveryAboveThreshold(t *testing.T) {
	srv := newTestServer(t)
	body := `{"orderType": "delivery", "items": [{"name": "Family", "quantity": 1, "sizePrice": "30,00"}]}`

	rec := srv.do(t, http.MethodPost, "/api/v1/cart/quote", body)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var quote ordermapper.Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	assert.Equal(t, "0.00", quote.DeliveryFee.String())
	assert.Equal(t, "30.00", quote.Total.String())
}

func TestListActiveDiscounts_SkipsDisabled(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/api/v1/discounts/active", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestConfirmOrder_SendsConfirmation(t *testing.T) {
	srv := newTestServer(t)
	order := srv.checkout(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/admin/orders/"+order.ID+"/confirm", `{"estimatedMinutes": 45}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result ordermapper.OrderActionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotNil(t, result.Order)
	assert.Equal(t, "pending", result.Order.Status)
	assert.Equal(t, "45 minutes", result.Order.EstimatedTimeLabel)
	assert.True(t, result.Notification.Sent)
	require.Len(t, srv.outbox.Messages(), 1)
	assert.Empty(t, srv.redelivery.calls)
}

func TestConfirmOrder_PartialSuccessSchedulesRedelivery(t *testing.T) {
	srv := newTestServer(t)
	order := srv.checkout(t)
	srv.outbox.FailWith(errors.New("smtp unavailable"))

	rec := srv.do(t, http.MethodPost, "/api/v1/admin/orders/"+order.ID+"/confirm", `{"estimatedMinutes": 30}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result ordermapper.OrderActionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "pending", result.Order.Status)
	assert.False(t, result.Notification.Sent)
	assert.True(t, result.Notification.RedeliveryScheduled)
	assert.Equal(t, []ordersports.NotificationKind{ordersports.NotificationConfirmation}, srv.redelivery.calls)
}

func TestConfirmOrder_TwiceIsConflict(t *testing.T) {
	srv := newTestServer(t)
	order := srv.checkout(t)
	path := "/api/v1/admin/orders/" + order.ID + "/confirm"

	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, path, `{"estimatedMinutes": 30}`).Code)
	rec := srv.do(t, http.MethodPost, path, `{"estimatedMinutes": 30}`)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apierrors.TypeInvalidTransition, decodeProblem(t, rec).Type)
}

func TestDeclineOrder_ReturnsCancelledOrder(t *testing.T) {
	srv := newTestServer(t)
	order := srv.checkout(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/admin/orders/"+order.ID+"/decline", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result ordermapper.OrderActionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "cancelled", result.Order.Status)
	assert.Equal(t, "cancellation", result.Notification.Kind)
	assert.True(t, result.Notification.Sent)
}

func TestUpdateOrderStatus(t *testing.T) {
	srv := newTestServer(t)
	order := srv.checkout(t)
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, "/api/v1/admin/orders/"+order.ID+"/confirm", `{"estimatedMinutes": 20}`).Code)

	rec := srv.do(t, http.MethodPut, "/api/v1/admin/orders/"+order.ID+"/status", `{"status": "preparing"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodPut, "/api/v1/admin/orders/"+order.ID+"/status", `{"status": "baking"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListOrders_FiltersByStatus(t *testing.T) {
	srv := newTestServer(t)
	first := srv.checkout(t)
	srv.checkout(t)
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodPost, "/api/v1/admin/orders/"+first.ID+"/decline", "").Code)

	rec := srv.do(t, http.MethodGet, "/api/v1/admin/orders?status=cancelled", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var orders []ordermapper.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, first.ID, orders[0].ID)

	rec = srv.do(t, http.MethodGet, "/api/v1/admin/orders?from=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteOrder(t *testing.T) {
	srv := newTestServer(t)
	order := srv.checkout(t)

	rec := srv.do(t, http.MethodDelete, "/api/v1/admin/orders/"+order.ID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/admin/orders/"+order.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, http.MethodDelete, "/api/v1/admin/orders/"+order.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResendNotification(t *testing.T) {
	srv := newTestServer(t)
	order := srv.checkout(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/admin/orders/"+order.ID+"/notifications/confirmation/resend", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []ordersports.NotificationKind{ordersports.NotificationConfirmation}, srv.redelivery.calls)

	rec = srv.do(t, http.MethodPost, "/api/v1/admin/orders/"+order.ID+"/notifications/sms/resend", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResendNotification_SynchronousWithoutRedeliveryBackend(t *testing.T) {
	gin.SetMode(gin.TestMode)
	outbox := memory.NewOutbox()
	service := ordersapp.NewService(memory.NewRepository(), outbox, static.New(static.Default()))
	srv := &testServer{router: NewRouterWithGinEngine(gin.New(), ApiHandleFunctions{
		OrderAPI: NewOrderAPI(service),
		AdminAPI: NewAdminAPI(service),
	}), outbox: outbox}
	order := srv.checkout(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/admin/orders/"+order.ID+"/confirm", `{"estimatedMinutes": 30}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodPost, "/api/v1/admin/orders/"+order.ID+"/notifications/confirmation/resend", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var notification ordermapper.Notification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notification))
	assert.True(t, notification.Sent)
	assert.False(t, notification.RedeliveryScheduled)
	assert.Len(t, outbox.Messages(), 2)
}

func TestAdminRoutesRequireCredentials(t *testing.T) {
	srv := newTestServer(t, WithAdminAccounts(gin.Accounts{"chef": "secret"}))

	rec := srv.do(t, http.MethodGet, "/api/v1/admin/orders", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil)
	req.SetBasicAuth("chef", "secret")
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/api/v1/discounts/active", "").Code)
}

func TestStreamOrders_PushesNewOrders(t *testing.T) {
	srv := newTestServer(t)
	server := httptest.NewServer(srv.router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/v1/admin/orders/stream", nil)
	require.NoError(t, err)
	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	created, err := http.Post(server.URL+"/api/v1/orders", "application/json", bytes.NewBufferString(checkoutBody))
	require.NoError(t, err)
	created.Body.Close()
	require.Equal(t, http.StatusCreated, created.StatusCode)

	reader := bufio.NewReader(resp.Body)
	var event, data string
	for data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	assert.Equal(t, "order.created", event)
	var notice ordermapper.OrderCreatedNotice
	require.NoError(t, json.Unmarshal([]byte(data), &notice))
	assert.Equal(t, "Ada Lovelace", notice.CustomerName)
	assert.Equal(t, "21.50", notice.Total.String())
}
