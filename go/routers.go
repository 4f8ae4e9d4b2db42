package pizzeriaserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Route is the information for every URI.
type Route struct {
	// Name is the name of this Route.
	Name string
	// Method is the string for the HTTP method. ex) GET, POST etc..
	Method string
	// Pattern is the pattern of the URI, relative to its group.
	Pattern string
	// HandlerFunc is the handler function of this route.
	HandlerFunc gin.HandlerFunc
}

// ApiHandleFunctions holds the handlers of every API group.
type ApiHandleFunctions struct {
	// Routes for the Storefront group
	OrderAPI OrderAPI
	// Routes for the Admin group
	AdminAPI AdminAPI
}

// RouterOption customizes route registration.
type RouterOption func(*routerConfig)

type routerConfig struct {
	adminAccounts gin.Accounts
}

// WithAdminAccounts protects the admin group with HTTP basic auth.
func WithAdminAccounts(accounts gin.Accounts) RouterOption {
	return func(cfg *routerConfig) {
		cfg.adminAccounts = accounts
	}
}

// NewRouter returns a new router.
func NewRouter(handleFunctions ApiHandleFunctions, opts ...RouterOption) *gin.Engine {
	return NewRouterWithGinEngine(gin.Default(), handleFunctions, opts...)
}

// NewRouterWithGinEngine adds the API routes to an existing gin engine.
func NewRouterWithGinEngine(router *gin.Engine, handleFunctions ApiHandleFunctions, opts ...RouterOption) *gin.Engine {
	cfg := routerConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	router.GET("/healthz", Healthz)

	storefront := router.Group("/api/v1")
	register(storefront, getStorefrontRoutes(handleFunctions))

	admin := router.Group("/api/v1/admin")
	if len(cfg.adminAccounts) > 0 {
		admin.Use(gin.BasicAuthForRealm(cfg.adminAccounts, "pizzeria admin"))
	}
	register(admin, getAdminRoutes(handleFunctions))
	return router
}

func register(group *gin.RouterGroup, routes []Route) {
	for _, route := range routes {
		if route.HandlerFunc == nil {
			route.HandlerFunc = DefaultHandleFunc
		}
		group.Handle(route.Method, route.Pattern, route.HandlerFunc)
	}
}

// DefaultHandleFunc answers routes without a handler.
func DefaultHandleFunc(c *gin.Context) {
	c.String(http.StatusNotImplemented, "501 not implemented")
}

// Healthz reports liveness.
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func getStorefrontRoutes(handleFunctions ApiHandleFunctions) []Route {
	return []Route{
		{
			"CreateOrder",
			http.MethodPost,
			"/orders",
			handleFunctions.OrderAPI.CreateOrder,
		},
		{
			"QuoteCart",
			http.MethodPost,
			"/cart/quote",
			handleFunctions.OrderAPI.QuoteCart,
		},
		{
			"ListActiveDiscounts",
			http.MethodGet,
			"/discounts/active",
			handleFunctions.OrderAPI.ListActiveDiscounts,
		},
	}
}

func getAdminRoutes(handleFunctions ApiHandleFunctions) []Route {
	return []Route{
		{
			"ListOrders",
			http.MethodGet,
			"/orders",
			handleFunctions.AdminAPI.ListOrders,
		},
		{
			"StreamOrders",
			http.MethodGet,
			"/orders/stream",
			handleFunctions.AdminAPI.StreamOrders,
		},
		{
			"GetOrder",
			http.MethodGet,
			"/orders/:orderId",
			handleFunctions.AdminAPI.GetOrder,
		},
		{
			"DeleteOrder",
			http.MethodDelete,
			"/orders/:orderId",
			handleFunctions.AdminAPI.DeleteOrder,
		},
		{
			"ConfirmOrder",
			http.MethodPost,
			"/orders/:orderId/confirm",
			handleFunctions.AdminAPI.ConfirmOrder,
		},
		{
			"DeclineOrder",
			http.MethodPost,
			"/orders/:orderId/decline",
			handleFunctions.AdminAPI.DeclineOrder,
		},
		{
			"UpdateOrderStatus",
			http.MethodPut,
			"/orders/:orderId/status",
			handleFunctions.AdminAPI.UpdateOrderStatus,
		},
		{
			"ResendNotification",
			http.MethodPost,
			"/orders/:orderId/notifications/:kind/resend",
			handleFunctions.AdminAPI.ResendNotification,
		},
	}
}
