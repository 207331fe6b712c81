package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"veron/internal/apperr"
	"veron/internal/models"
	"veron/internal/security"
)

const (
	maxCSPReportBytes = 64 << 10
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

type cspReport struct {
	Report map[string]any `json:"csp-report"`
}

func (h *Handler) cspReport(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCSPReportBytes))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	var report cspReport
	if err := json.Unmarshal(body, &report); err != nil || report.Report == nil {
		c.Status(http.StatusBadRequest)
		return
	}
	ip := security.ClientIP(c)
	directive, _ := report.Report["violated-directive"].(string)
	blocked, _ := report.Report["blocked-uri"].(string)
	h.log.WithFields(logrus.Fields{
		"ip":        ip,
		"route":     c.FullPath(),
		"category":  "csp_violation",
		"directive": directive,
		"blocked":   blocked,
	}).Warn("CSP violation reported")
	h.record(c.Request.Context(), models.AuditEvent{
		CreatedAt: h.now().UTC(),
		ClientIP:  ip,
		Method:    c.Request.Method,
		Route:     c.FullPath(),
		Status:    http.StatusNoContent,
		Category:  "csp_violation",
		Message:   directive + " blocked " + blocked,
	})
	c.Status(http.StatusNoContent)
}

func (h *Handler) auditLog(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultAuditLimit, 1, maxAuditLimit)
	if err != nil {
		h.fail(c, err, "Invalid request")
		return
	}
	offset, err := queryInt(c, "offset", 0, 0, -1)
	if err != nil {
		h.fail(c, err, "Invalid request")
		return
	}
	if h.audit == nil {
		h.ok(c, gin.H{"events": []models.AuditEvent{}, "total": 0, "limit": limit, "offset": offset})
		return
	}
	events, total, err := h.audit.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.fail(c, err, "Failed to read audit log")
		return
	}
	if events == nil {
		events = []models.AuditEvent{}
	}
	h.ok(c, gin.H{
		"events": events,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) securityHeaders(c *gin.Context) {
	headers := make(map[string]string)
	for _, name := range []string{
		"Content-Security-Policy",
		"X-Frame-Options",
		"X-Content-Type-Options",
		"X-XSS-Protection",
		"Referrer-Policy",
		"Strict-Transport-Security",
		"Permissions-Policy",
	} {
		if v := c.Writer.Header().Get(name); v != "" {
			headers[name] = v
		}
	}
	var recommendations []string
	if !h.cfg.Security.ForceHTTPS {
		recommendations = append(recommendations, "Enable force_https in production deployments")
	}
	if !h.cfg.Security.CSPEnabled {
		recommendations = append(recommendations, "Enable the Content-Security-Policy header")
	}
	if !h.auth.Enabled() {
		recommendations = append(recommendations, "Set an API key to protect the audit log")
	}
	if recommendations == nil {
		recommendations = []string{}
	}
	h.ok(c, gin.H{
		"security_headers": headers,
		"recommendations":  recommendations,
	})
}

func (h *Handler) securityHealth(c *gin.Context) {
	h.ok(c, gin.H{
		"status": "healthy",
		"security_features": gin.H{
			"cors":               true,
			"secure_headers":     h.cfg.Security.SecureHeaders,
			"csp":                h.cfg.Security.CSPEnabled,
			"force_https":        h.cfg.Security.ForceHTTPS,
			"suspicious_filter":  h.cfg.Security.BlockSuspicious,
			"rate_limit_backend": h.cfg.RateLimit.Backend,
			"api_key_required":   h.auth.Enabled(),
			"audit_log":          h.audit != nil,
		},
		"timestamp": h.now().UTC(),
	})
}

// queryInt parses an integer query parameter. A negative hi disables the upper bound.
func queryInt(c *gin.Context, name string, def, lo, hi int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo {
		return 0, apperr.Validation(name, "Must be an integer greater than or equal to "+strconv.Itoa(lo)+".")
	}
	if hi >= 0 && n > hi {
		return 0, apperr.Validation(name, "Must be less than or equal to "+strconv.Itoa(hi)+".")
	}
	return n, nil
}
