package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary      Push connection status
// @Tags         connection
// @Produce      json
// @Success      200  {object}  models.ConnectionStatus
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/connection [get]
// @Security     BearerAuth
func (h *Handler) getConnection(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Connection.Status())
}

// @Summary      Connect to the push feed
// @Description  Starts dialing; from the failed state this resets the attempt counter. No-op while connecting or open.
// @Tags         connection
// @Produce      json
// @Success      202  {object}  models.ConnectionStatus
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/connection/connect [post]
// @Security     BearerAuth
func (h *Handler) connect(c *gin.Context) {
	h.services.Connection.Connect()
	if h.log != nil {
		h.log.Infow("push_connect_requested", "operator", c.GetString(operatorCtxKey))
	}
	c.JSON(http.StatusAccepted, h.services.Connection.Status())
}

// @Summary      Disconnect from the push feed
// @Tags         connection
// @Produce      json
// @Success      200  {object}  models.ConnectionStatus
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/connection/disconnect [post]
// @Security     BearerAuth
func (h *Handler) disconnect(c *gin.Context) {
	h.services.Connection.Disconnect()
	if h.log != nil {
		h.log.Infow("push_disconnect_requested", "operator", c.GetString(operatorCtxKey))
	}
	c.JSON(http.StatusOK, h.services.Connection.Status())
}
