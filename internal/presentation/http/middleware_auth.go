package httppresentation

import (
	"net/http"

	"github.com/Zhima-Mochi/winestore/internal/domain/identity"
	"github.com/Zhima-Mochi/winestore/internal/observability"
	"github.com/Zhima-Mochi/winestore/internal/observability/logctx"
	"github.com/gin-gonic/gin"
)

const (
	ctxKeyIdentity = "identity"
	ctxKeyUserID   = "userId"
)

// Authenticator turns the Authorization header into a verified caller.
type Authenticator interface {
	FromHeader(header string) (identity.Identity, error)
}

func requireAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := auth.FromHeader(c.GetHeader("Authorization"))
		if err != nil {
			logctx.FromOr(c.Request.Context(), observability.NopLogger()).Debug("auth_rejected", observability.Err(err))
			abort(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		c.Set(ctxKeyIdentity, id)
		c.Set(ctxKeyUserID, id.UserID)

		ctx := logctx.Enrich(identity.WithContext(c.Request.Context(), id), observability.F("user_id", id.UserID))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !caller(c).IsAdmin() {
			abort(c, http.StatusForbidden, "Access denied: admin only")
			return
		}
		c.Next()
	}
}

func caller(c *gin.Context) identity.Identity {
	if v, ok := c.Get(ctxKeyIdentity); ok {
		if id, ok := v.(identity.Identity); ok {
			return id
		}
	}
	return identity.Identity{}
}
