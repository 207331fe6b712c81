package security

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"

	"veron/internal/config"
)

const (
	PermissionsPolicy = "microphone=(self), camera=(), geolocation=(), payment=(), usb=(), magnetometer=(), gyroscope=()"
	ContentPolicy     = "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; " +
		"img-src 'self' data: blob:; media-src 'self' blob:; connect-src 'self'; " +
		"frame-ancestors 'none'; object-src 'none'; base-uri 'self'; report-uri /api/security/csp-report"
)

// Headers applies the browser hardening headers. It is a no-op when secure
// headers are disabled.
func Headers(cfg config.SecurityConfig) gin.HandlerFunc {
	if !cfg.SecureHeaders {
		return func(c *gin.Context) { c.Next() }
	}
	opts := secure.Config{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        cfg.ForceHTTPS,
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:      false,
	}
	if cfg.ForceHTTPS {
		opts.STSSeconds = int64((365 * 24 * time.Hour).Seconds())
		opts.STSIncludeSubdomains = true
	}
	if cfg.CSPEnabled {
		opts.ContentSecurityPolicy = ContentPolicy
	}
	hardened := secure.New(opts)
	return func(c *gin.Context) {
		c.Header("Permissions-Policy", PermissionsPolicy)
		hardened(c)
	}
}

// CORS allows the configured origins. A "*" entry allows any origin.
func CORS(cfg config.SecurityConfig) gin.HandlerFunc {
	origins := cfg.AllowedOrigins
	allowAll := false
	for _, o := range origins {
		if o == "*" {
			allowAll = true
			origins = nil
			break
		}
	}
	if !allowAll && len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	return cors.New(cors.Config{
		AllowAllOrigins:  allowAll,
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-API-Key", "X-Requested-With"},
		ExposeHeaders:    []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: cfg.CORSCredentials && !allowAll,
		MaxAge:           12 * time.Hour,
	})
}
