// Package security holds the HTTP hardening middleware: headers, CORS,
// suspicious-content filtering and per-client rate limiting.
package security

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the peer address.
func ClientIP(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if real := strings.TrimSpace(c.GetHeader("X-Real-IP")); real != "" {
		return real
	}
	return c.RemoteIP()
}
