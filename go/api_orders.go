package pizzeriaserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	ordermapper "github.com/Apurer/pizzeria-api/internal/domains/orders/adapters/http/mapper"
	ordersports "github.com/Apurer/pizzeria-api/internal/domains/orders/ports"
)

const idempotencyKeyHeader = "Idempotency-Key"

// OrderAPI serves the storefront: checkout, cart preview and promotions.
type OrderAPI struct {
	service ordersports.Service
}

func NewOrderAPI(service ordersports.Service) OrderAPI {
	return OrderAPI{service: service}
}

// Post /api/v1/orders
// Place an order from the customer's cart
func (api *OrderAPI) CreateOrder(c *gin.Context) {
	var payload ordermapper.CheckoutRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBadRequest(c, err)
		return
	}
	input := ordermapper.ToCreateOrderInput(payload)
	input.IdempotencyKey = c.GetHeader(idempotencyKeyHeader)
	order, err := api.service.CreateOrder(c.Request.Context(), input)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	c.Header("Location", "/api/v1/admin/orders/"+order.ID)
	c.JSON(http.StatusCreated, ordermapper.FromOrder(order))
}

// Post /api/v1/cart/quote
// Price a cart without placing it
func (api *OrderAPI) QuoteCart(c *gin.Context) {
	var payload ordermapper.QuoteRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBadRequest(c, err)
		return
	}
	quote, err := api.service.QuoteCart(c.Request.Context(), ordermapper.ToQuoteInput(payload))
	if err != nil {
		respondOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, ordermapper.FromQuote(quote))
}

// Get /api/v1/discounts/active
// List promotions that currently apply
func (api *OrderAPI) ListActiveDiscounts(c *gin.Context) {
	discounts, err := api.service.ActiveDiscounts(c.Request.Context())
	if err != nil {
		respondOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, ordermapper.FromDiscounts(discounts))
}
