package pizzeriaserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	ordermapper "github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/http/mapper"
	ordersapp "github.com/Apurer/pizzeria-api/internal/domains/orders/application"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
	ordersports "github.com/Apurer/pizzeria-api/internal/domains/orders/ports"
)

const (
	defaultHeartbeat = 25 * time.Second

	notificationFailedMessage = "the order was saved but the customer email could not be sent"
)

// AdminAPI serves the staff dashboard.
type AdminAPI struct {
	service       ordersports.Service
	redelivery    ordersports.NotificationRedelivery
	feed          ordersports.OrderFeed
	autoRedeliver bool
	heartbeat     time.Duration
	logger        *slog.Logger
}

// AdminOption customizes an AdminAPI.
type AdminOption func(*AdminAPI)

// WithNotificationRedelivery enables the resend endpoint. When auto is set,
// failed customer emails are handed to redelivery right away.
func WithNotificationRedelivery(redelivery ordersports.NotificationRedelivery, auto bool) AdminOption {
	return func(api *AdminAPI) {
		api.redelivery = redelivery
		api.autoRedeliver = auto
	}
}

// WithOrderFeed enables the live order stream.
func WithOrderFeed(feed ordersports.OrderFeed) AdminOption {
	return func(api *AdminAPI) {
		api.feed = feed
	}
}

// WithHeartbeat sets the keep-alive interval of the order stream.
func WithHeartbeat(interval time.Duration) AdminOption {
	return func(api *AdminAPI) {
		if interval > 0 {
			api.heartbeat = interval
		}
	}
}

func WithAdminLogger(logger *slog.Logger) AdminOption {
	return func(api *AdminAPI) {
		if logger != nil {
			api.logger = logger
		}
	}
}

func NewAdminAPI(service ordersports.Service, opts ...AdminOption) AdminAPI {
	api := AdminAPI{
		service:   service,
		heartbeat: defaultHeartbeat,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&api)
	}
	return api
}

// Get /api/v1/admin/orders
// List orders, newest first, filtered by status and creation date
func (api *AdminAPI) ListOrders(c *gin.Context) {
	filter, err := ordermapper.ToListFilter(c.QueryArray("status"), c.Query("from"), c.Query("to"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	orders, err := api.service.ListOrders(c.Request.Context(), filter)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, ordermapper.FromOrders(orders))
}

// Get /api/v1/admin/orders/:orderId
// Find an order by id
func (api *AdminAPI) GetOrder(c *gin.Context) {
	order, err := api.service.GetOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		respondOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, ordermapper.FromOrder(order))
}

// Post /api/v1/admin/orders/:orderId/confirm
// Accept an order and send the customer an estimate
func (api *AdminAPI) ConfirmOrder(c *gin.Context) {
	var payload ordermapper.ConfirmRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBadRequest(c, err)
		return
	}
	id := c.Param("orderId")
	order, err := api.service.ConfirmOrder(c.Request.Context(), id, payload.EstimatedMinutes)
	api.respondAction(c, id, order, ordersports.NotificationConfirmation, err)
}

// Post /api/v1/admin/orders/:orderId/decline
// Reject an order awaiting confirmation and notify the customer
func (api *AdminAPI) DeclineOrder(c *gin.Context) {
	id := c.Param("orderId")
	err := api.service.DeclineOrder(c.Request.Context(), id)
	var order *domain.Order
	if err == nil || ordersapp.IsPartialSuccess(err) {
		order, _ = api.service.GetOrder(c.Request.Context(), id)
	}
	api.respondAction(c, id, order, ordersports.NotificationCancellation, err)
}

// Put /api/v1/admin/orders/:orderId/status
// Move an order through the kitchen workflow
func (api *AdminAPI) UpdateOrderStatus(c *gin.Context) {
	var payload ordermapper.StatusRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBadRequest(c, err)
		return
	}
	status, err := domain.ParseStatus(payload.Status)
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	order, err := api.service.UpdateStatus(c.Request.Context(), c.Param("orderId"), status)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, ordermapper.FromOrder(order))
}

// Delete /api/v1/admin/orders/:orderId
// Remove an order with its lines
func (api *AdminAPI) DeleteOrder(c *gin.Context) {
	if err := api.service.DeleteOrder(c.Request.Context(), c.Param("orderId")); err != nil {
		respondOrderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Post /api/v1/admin/orders/:orderId/notifications/:kind/resend
// Retry only the customer email of an earlier action
func (api *AdminAPI) ResendNotification(c *gin.Context) {
	kind, err := parseNotificationKind(c.Param("kind"))
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	id := c.Param("orderId")
	if api.redelivery == nil {
		if err := api.service.ResendNotification(c.Request.Context(), id, kind); err != nil {
			respondOrderError(c, err)
			return
		}
		c.JSON(http.StatusOK, ordermapper.Notification{Kind: string(kind), Sent: true})
		return
	}
	if err := api.redelivery.Redeliver(c.Request.Context(), id, kind); err != nil {
		respondOrderError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, ordermapper.Notification{Kind: string(kind), RedeliveryScheduled: true})
}

// Get /api/v1/admin/orders/stream
// Server-sent events announcing new orders
func (api *AdminAPI) StreamOrders(c *gin.Context) {
	if api.feed == nil {
		c.String(http.StatusNotImplemented, "501 not implemented")
		return
	}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	notices, err := api.feed.Subscribe(ctx)
	if err != nil {
		respondOrderError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(api.heartbeat)
	defer heartbeat.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case notice, ok := <-notices:
			if !ok {
				return false
			}
			c.SSEvent("order.created", ordermapper.FromOrderCreated(notice))
			return true
		case <-heartbeat.C:
			c.SSEvent("heartbeat", time.Now().UTC().Format(time.RFC3339))
			return true
		}
	})
}

// respondAction renders the outcome of an action that notifies the customer.
// A saved change whose email failed is still a 200.
func (api *AdminAPI) respondAction(c *gin.Context, id string, order *domain.Order, kind ordersports.NotificationKind, err error) {
	if err != nil && !ordersapp.IsPartialSuccess(err) {
		respondOrderError(c, err)
		return
	}
	notification := &ordermapper.Notification{Kind: string(kind), Sent: err == nil}
	if err != nil {
		notification.Message = notificationFailedMessage
		notification.RedeliveryScheduled = api.scheduleRedelivery(c.Request.Context(), id, kind)
	}
	c.JSON(http.StatusOK, ordermapper.OrderActionResult{
		Order:        ordermapper.FromOrder(order),
		Notification: notification,
	})
}

func (api *AdminAPI) scheduleRedelivery(ctx context.Context, id string, kind ordersports.NotificationKind) bool {
	if !api.autoRedeliver || api.redelivery == nil {
		return false
	}
	if err := api.redelivery.Redeliver(ctx, id, kind); err != nil {
		api.logger.WarnContext(ctx, "notification redelivery not scheduled",
			slog.String("order_id", id),
			slog.String("kind", string(kind)),
			slog.Any("error", err),
		)
		return false
	}
	return true
}

var errUnknownNotificationKind = errors.New("notification kind must be confirmation or cancellation")

func parseNotificationKind(raw string) (ordersports.NotificationKind, error) {
	switch kind := ordersports.NotificationKind(raw); kind {
	case ordersports.NotificationConfirmation, ordersports.NotificationCancellation:
		return kind, nil
	default:
		return "", errUnknownNotificationKind
	}
}
