package httppresentation

import (
	"net/http"
	"strconv"

	"github.com/Zhima-Mochi/winestore/internal/application"
	apporder "github.com/Zhima-Mochi/winestore/internal/application/order"
	domorder "github.com/Zhima-Mochi/winestore/internal/domain/order"
	"github.com/gin-gonic/gin"
)

const headerIdempotencyKey = "Idempotency-Key"

type checkoutLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type checkoutRequest struct {
	IdempotencyKey string                `json:"idempotency_key"`
	Items          []checkoutLineRequest `json:"items"`
	Contact        addressView           `json:"contact"`
	DeliveryOption string                `json:"delivery_option"`
}

func (h *Handler) handleCheckout(c *gin.Context) {
	var req checkoutRequest
	if err := decodeJSON(c, &req); err != nil {
		writeDomainError(c, err)
		return
	}
	key := req.IdempotencyKey
	if key == "" {
		key = c.GetHeader(headerIdempotencyKey)
	}
	lines := make([]apporder.CheckoutLine, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, apporder.CheckoutLine{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}

	res, err := h.svc.Checkout.Execute(c.Request.Context(), apporder.CheckoutInput{
		UserID:         caller(c).UserID,
		IdempotencyKey: key,
		Lines:          lines,
		Address:        req.Contact.toDomain(),
		DeliveryOption: req.DeliveryOption,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	code := http.StatusCreated
	if res.Replayed {
		code = http.StatusOK
	}
	ok(c, code, toOrderView(res.Order))
}

func (h *Handler) handleMyOrders(c *gin.Context) {
	orders, err := h.svc.Orders.Mine(c.Request.Context(), caller(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	ok(c, http.StatusOK, toOrderViews(orders))
}

func (h *Handler) handleGetOrder(c *gin.Context) {
	o, err := h.svc.Orders.Get(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	ok(c, http.StatusOK, toOrderView(o))
}

func (h *Handler) handleCancelOrder(c *gin.Context) {
	o, err := h.svc.Cancel.Execute(c.Request.Context(), apporder.CancelInput{
		OrderID: c.Param("id"),
		Caller:  caller(c),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	ok(c, http.StatusOK, toOrderView(o))
}

func (h *Handler) handleListAllOrders(c *gin.Context) {
	page, err := queryInt(c, "page")
	if err != nil {
		writeDomainError(c, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		writeDomainError(c, err)
		return
	}
	orders, err := h.svc.Orders.All(c.Request.Context(), caller(c), apporder.ListInput{
		Page:   page,
		Limit:  limit,
		Status: c.Query("status"),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	ok(c, http.StatusOK, toOrderViews(orders))
}

type setOrderStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleSetOrderStatus(c *gin.Context) {
	var req setOrderStatusRequest
	if err := decodeJSON(c, &req); err != nil {
		writeDomainError(c, err)
		return
	}
	o, err := h.svc.Cancel.SetStatus(c.Request.Context(), apporder.SetStatusInput{
		OrderID: c.Param("id"),
		Status:  domorder.Status(req.Status),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	ok(c, http.StatusOK, toOrderView(o))
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, application.Validation(key + " must be a non-negative integer")
	}
	return n, nil
}
