package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary      List notifications
// @Description  Most recent change notifications, newest first.
// @Tags         notifications
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, notifications"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/notifications [get]
// @Security     BearerAuth
func (h *Handler) listNotifications(c *gin.Context) {
	items := h.services.Notifications.List()
	c.JSON(http.StatusOK, gin.H{
		"count":         len(items),
		"notifications": items,
	})
}

// @Summary      Dismiss notification
// @Tags         notifications
// @Param        id   path  string  true  "Notification id"
// @Success      204
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/notifications/{id} [delete]
// @Security     BearerAuth
func (h *Handler) dismissNotification(c *gin.Context) {
	if !h.services.Notifications.Dismiss(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
