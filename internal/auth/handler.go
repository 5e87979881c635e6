package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	tokens *TokenManager
}

func NewHandler(tokens *TokenManager) *Handler {
	return &Handler{tokens: tokens}
}

// Ping endpoint
func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":      "auth service alive!",
		"auth_enabled": h.tokens.Enabled(),
	})
}

// Me returns the caller's identity from the verified token
func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user_id": UserID(c),
		"role":    Role(c),
	})
}
