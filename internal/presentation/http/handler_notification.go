package httppresentation

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) handleMyNotifications(c *gin.Context) {
	ns, err := h.svc.Notifications.Mine(c.Request.Context(), caller(c).UserID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	ok(c, http.StatusOK, toNotificationViews(ns))
}

func (h *Handler) handleMarkNotificationRead(c *gin.Context) {
	if err := h.svc.Notifications.MarkRead(c.Request.Context(), caller(c).UserID, c.Param("id")); err != nil {
		writeDomainError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": c.Param("id"), "read": true})
}
