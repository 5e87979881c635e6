package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	contextUserID = "user_id"
	contextRole   = "role"
)

// Middleware requires a valid bearer token and stores its subject in the context
func (m *TokenManager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.Enabled() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": ErrNotConfigured.Error()})
			return
		}

		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := m.Parse(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(contextUserID, claims.Subject)
		c.Set(contextRole, claims.Role)
		c.Next()
	}
}

// UserID returns the authenticated subject, or "" outside protected routes
func UserID(c *gin.Context) string {
	return c.GetString(contextUserID)
}

// Role returns the authenticated role, or ""
func Role(c *gin.Context) string {
	return c.GetString(contextRole)
}
