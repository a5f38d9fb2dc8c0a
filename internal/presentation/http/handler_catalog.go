package httppresentation

import (
	"net/http"

	appinv "github.com/Zhima-Mochi/winestore/internal/application/inventory"
	"github.com/gin-gonic/gin"
)

func (h *Handler) handleListProducts(c *gin.Context) {
	ps, err := h.svc.Catalog.List(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]productView, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProductView(p))
	}
	ok(c, http.StatusOK, out)
}

func (h *Handler) handleGetProduct(c *gin.Context) {
	p, err := h.svc.Catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	ok(c, http.StatusOK, toProductView(p))
}

type createProductRequest struct {
	Name        string   `json:"name"`
	UnitPrice   int64    `json:"unit_price"`
	Quantity    int      `json:"quantity"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	Image       string   `json:"image"`
	Categories  []string `json:"categories"`
}

func (h *Handler) handleCreateProduct(c *gin.Context) {
	var req createProductRequest
	if err := decodeJSON(c, &req); err != nil {
		writeDomainError(c, err)
		return
	}
	p, err := h.svc.Catalog.Create(c.Request.Context(), appinv.ProductInput{
		Name:        req.Name,
		UnitPrice:   req.UnitPrice,
		Quantity:    req.Quantity,
		Summary:     req.Summary,
		Description: req.Description,
		Image:       req.Image,
		Categories:  req.Categories,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	ok(c, http.StatusCreated, toProductView(p))
}

type updateProductRequest struct {
	Name        *string  `json:"name"`
	UnitPrice   *int64   `json:"unit_price"`
	Quantity    *int     `json:"quantity"`
	Summary     *string  `json:"summary"`
	Description *string  `json:"description"`
	Image       *string  `json:"image"`
	Categories  []string `json:"categories"`
}

func (h *Handler) handleUpdateProduct(c *gin.Context) {
	var req updateProductRequest
	if err := decodeJSON(c, &req); err != nil {
		writeDomainError(c, err)
		return
	}
	p, err := h.svc.Catalog.Update(c.Request.Context(), c.Param("id"), appinv.ProductPatch{
		Name:        req.Name,
		UnitPrice:   req.UnitPrice,
		Quantity:    req.Quantity,
		Summary:     req.Summary,
		Description: req.Description,
		Image:       req.Image,
		Categories:  req.Categories,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	ok(c, http.StatusOK, toProductView(p))
}
