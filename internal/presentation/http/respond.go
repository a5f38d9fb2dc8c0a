package httppresentation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Zhima-Mochi/winestore/internal/application"
	domcart "github.com/Zhima-Mochi/winestore/internal/domain/cart"
	domorder "github.com/Zhima-Mochi/winestore/internal/domain/order"
	"github.com/Zhima-Mochi/winestore/internal/observability"
	"github.com/Zhima-Mochi/winestore/internal/observability/logctx"
	"github.com/gin-gonic/gin"
)

const (
	statusSuccess  = "success"
	statusPending  = "pending"
	statusRedirect = "redirect"
	statusError    = "error"

	maxBodyBytes = 1 << 20
)

// envelope is the body of every response.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func ok(c *gin.Context, code int, data any) {
	c.JSON(code, envelope{Status: statusSuccess, Data: data})
}

func fail(c *gin.Context, code int, msg string) {
	c.JSON(code, envelope{Status: statusError, Message: msg})
}

func abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, envelope{Status: statusError, Message: msg})
}

// decodeJSON reads a bounded body and rejects unknown fields.
func decodeJSON(c *gin.Context, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(c.Request.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", application.ErrValidation, err)
	}
	return nil
}

// writeDomainError maps the error taxonomy onto status codes. 5xx bodies never carry internals.
func writeDomainError(c *gin.Context, err error) {
	var invalid *domcart.InvalidError
	if errors.As(err, &invalid) {
		c.JSON(http.StatusBadRequest, envelope{
			Status:  statusError,
			Message: "cart is invalid for checkout",
			Data:    gin.H{"lines": invalid.Lines},
		})
		return
	}

	code := statusFor(err)
	msg := err.Error()
	switch {
	case errors.Is(err, domorder.ErrInvalidStateTransition):
		msg = "invalid state transition"
	case code >= 500:
		logctx.FromOr(c.Request.Context(), observability.NopLogger()).Error("http_request_failed",
			observability.F("status", code),
			observability.F("error", err.Error()),
		)
		msg = http.StatusText(code)
	}
	fail(c, code, msg)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, application.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, application.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, application.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, application.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, application.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, application.ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
