package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	operatorCtxKey   = "operator"
	accessTokenQuery = "access_token"
)

var (
	errMissingAuth = errors.New("missing Authorization header")
	errBadAuth     = errors.New("invalid Authorization header format")
)

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingAuth
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || token == "" {
		return "", errBadAuth
	}
	return token, nil
}

func (h *Handler) operatorMiddleware(c *gin.Context) {
	token, err := bearerToken(c.GetHeader("Authorization"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	h.authorize(c, token)
}

// streamAuthMiddleware also accepts ?access_token= because browsers cannot
// set headers on a WebSocket handshake.
func (h *Handler) streamAuthMiddleware(c *gin.Context) {
	if token := c.Query(accessTokenQuery); token != "" {
		h.authorize(c, token)
		return
	}
	h.operatorMiddleware(c)
}

func (h *Handler) authorize(c *gin.Context, token string) {
	operator, err := h.services.ParseToken(token)
	if err != nil {
		if h.log != nil {
			h.log.Debugw("auth_token_rejected", "path", c.FullPath(), "err", err)
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}
	c.Set(operatorCtxKey, operator)
	c.Next()
}
