package httppresentation

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) handleGetCart(c *gin.Context) {
	cart, err := h.svc.Cart.Get(c.Request.Context(), caller(c).UserID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	ok(c, http.StatusOK, toCartView(cart))
}

type addCartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) handleAddCartItem(c *gin.Context) {
	var req addCartItemRequest
	if err := decodeJSON(c, &req); err != nil {
		writeDomainError(c, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	cart, err := h.svc.Cart.AddItem(c.Request.Context(), caller(c).UserID, req.ProductID, req.Quantity)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	ok(c, http.StatusOK, toCartView(cart))
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) handleUpdateCartItem(c *gin.Context) {
	var req updateCartItemRequest
	if err := decodeJSON(c, &req); err != nil {
		writeDomainError(c, err)
		return
	}
	cart, err := h.svc.Cart.UpdateQuantity(c.Request.Context(), caller(c).UserID, c.Param("productId"), req.Quantity)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	ok(c, http.StatusOK, toCartView(cart))
}

func (h *Handler) handleRemoveCartItem(c *gin.Context) {
	cart, err := h.svc.Cart.RemoveItem(c.Request.Context(), caller(c).UserID, c.Param("productId"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	ok(c, http.StatusOK, toCartView(cart))
}
