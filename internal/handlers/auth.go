package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type signInRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type signInResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
}

// bindJSON binds the request body into dst or answers 400. It reports whether
// the handler should continue.
func (h *Handler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if h.log != nil {
			h.log.Infow("bad_request_body", "path", c.FullPath(), "err", err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// @Summary      Sign in
// @Description  Exchange configured operator credentials for a bearer token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signInRequest  true  "credentials"
// @Success      200   {object}  signInResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /auth/sign-in [post]
func (h *Handler) signIn(c *gin.Context) {
	var input signInRequest
	if !h.bindJSON(c, &input) {
		return
	}

	token, err := h.services.GenerateToken(input.Username, input.Password)
	if err != nil {
		// one message for unknown user and wrong password
		if h.log != nil {
			h.log.Infow("auth_sign_in_failed", "username", input.Username, "err", err)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if h.log != nil {
		h.log.Infow("auth_signed_in", "username", input.Username)
	}
	c.JSON(http.StatusOK, signInResponse{Token: token, TokenType: "Bearer"})
}
