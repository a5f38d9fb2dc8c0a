package httppresentation

import (
	"net/http"

	appcart "github.com/Zhima-Mochi/winestore/internal/application/cart"
	appinv "github.com/Zhima-Mochi/winestore/internal/application/inventory"
	appnotif "github.com/Zhima-Mochi/winestore/internal/application/notification"
	apporder "github.com/Zhima-Mochi/winestore/internal/application/order"
	apppay "github.com/Zhima-Mochi/winestore/internal/application/payment"
	"github.com/Zhima-Mochi/winestore/internal/config"
	"github.com/Zhima-Mochi/winestore/internal/observability"
	"github.com/gin-gonic/gin"
)

const componentHTTPHandler = "http_server"

// Services is everything the HTTP surface calls into.
type Services struct {
	Catalog       *appinv.CatalogService
	Cart          *appcart.Service
	Checkout      *apporder.CheckoutUseCase
	Orders        *apporder.Queries
	Cancel        *apporder.CancelOrderUseCase
	Initialize    *apppay.InitializeUseCase
	Flow          *apppay.FlowUseCase
	Verify        *apppay.VerifyUseCase
	Webhook       *apppay.WebhookUseCase
	Notifications *appnotif.Service
	Delivery      config.DeliveryConfig
}

type Handler struct {
	svc     Services
	auth    Authenticator
	metrics http.Handler
	log     observability.Logger
	tel     observability.Observability
}

// NewHandler builds the handler. metricsHandler serves GET /metrics and may be nil.
func NewHandler(svc Services, auth Authenticator, metricsHandler http.Handler, tel observability.Observability) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{
		svc:     svc,
		auth:    auth,
		metrics: metricsHandler,
		log:     tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:     tel,
	}
}

// Router wires every route behind
// Trace → request logger → HTTP metrics → access log → recovery → (auth) → handler.
func (h *Handler) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(
		withTrace(),
		withRequestLogger(h.log),
		withHTTPMetrics(h.tel.Metrics()),
		withAccessLog(h.log),
		withRecovery(h.log),
	)
	r.NoRoute(func(c *gin.Context) { fail(c, http.StatusNotFound, "route not found") })
	r.NoMethod(func(c *gin.Context) { fail(c, http.StatusMethodNotAllowed, "method not allowed") })

	r.GET("/health", h.handleHealth)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics))
	}

	r.GET("/products", h.handleListProducts)
	r.GET("/products/:id", h.handleGetProduct)
	r.GET("/delivery-options", h.handleDeliveryOptions)

	// provider-facing: authenticated by signature or by re-verification, not by bearer token
	r.POST("/payments/webhook", h.handleWebhook)
	r.GET("/payments/redirect", h.handleRedirect)

	user := r.Group("/", requireAuth(h.auth))
	{
		user.GET("/cart", h.handleGetCart)
		user.POST("/cart/items", h.handleAddCartItem)
		user.PATCH("/cart/items/:productId", h.handleUpdateCartItem)
		user.DELETE("/cart/items/:productId", h.handleRemoveCartItem)

		user.POST("/orders", h.handleCheckout)
		user.GET("/orders/mine", h.handleMyOrders)
		user.GET("/orders/:id", h.handleGetOrder)
		user.POST("/orders/:id/cancel", h.handleCancelOrder)

		user.POST("/payments/initialize", h.handleInitializePayment)
		user.POST("/payments/authorize", h.handleAuthorizePayment)
		user.POST("/payments/validate", h.handleValidateOTP)
		user.GET("/payments/:id/verify", h.handleVerifyPayment)

		user.GET("/notifications/mine", h.handleMyNotifications)
		user.PATCH("/notifications/:id/read", h.handleMarkNotificationRead)
	}

	admin := r.Group("/", requireAuth(h.auth), requireAdmin())
	{
		admin.POST("/products", h.handleCreateProduct)
		admin.PATCH("/products/:id", h.handleUpdateProduct)
		admin.GET("/admin/orders", h.handleListAllOrders)
		admin.PATCH("/admin/orders/:id/status", h.handleSetOrderStatus)
	}

	return r
}

func (h *Handler) handleHealth(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"service": "ok"})
}

func (h *Handler) handleDeliveryOptions(c *gin.Context) {
	out := make([]deliveryOptionView, 0, len(h.svc.Delivery.Options))
	for _, o := range h.svc.Delivery.Options {
		out = append(out, deliveryOptionView{ID: o.ID, Type: o.Type, Text: o.Text, Price: o.Price})
	}
	ok(c, http.StatusOK, out)
}
