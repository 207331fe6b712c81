package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Middleware rejects requests without the configured API key.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.requireHTTPS && !isSecure(c) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "HTTPS required",
				"code":    "HTTPS_REQUIRED",
			})
			return
		}
		if !s.Valid(s.extractKey(c)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Invalid API key",
				"code":    "INVALID_API_KEY",
			})
			return
		}
		c.Next()
	}
}

func (s *Service) extractKey(c *gin.Context) string {
	if key := strings.TrimSpace(c.GetHeader(s.headerName)); key != "" {
		return key
	}
	return c.Query(s.queryName)
}

func isSecure(c *gin.Context) bool {
	return c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https")
}
