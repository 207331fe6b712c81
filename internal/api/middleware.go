package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"veron/internal/apperr"
	"veron/internal/models"
	"veron/internal/security"
)

const auditTimeout = 2 * time.Second

func (h *Handler) recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		err := fmt.Errorf("panic: %v", recovered)
		h.fail(c, err, "Internal server error")
		h.observe(c, http.StatusInternalServerError, err, 0)
	})
}

// requestLogger logs every request and audits every failure, including those
// rejected by middleware before reaching a handler.
func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		var err error
		if last := c.Errors.Last(); last != nil {
			err = last.Err
		}
		h.observe(c, c.Writer.Status(), err, time.Since(start))
	}
}

func (h *Handler) observe(c *gin.Context, status int, err error, latency time.Duration) {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	ip := security.ClientIP(c)
	entry := h.log.WithFields(logrus.Fields{
		"ip":      ip,
		"route":   route,
		"method":  c.Request.Method,
		"status":  status,
		"latency": latency,
	})
	if status < http.StatusBadRequest && err == nil {
		entry.Debug("request served")
		return
	}

	category, message := failureCategory(status, err)
	entry = entry.WithField("category", category)
	if status >= http.StatusInternalServerError {
		entry.Error(message)
	} else {
		entry.Warn(message)
	}
	h.record(c.Request.Context(), models.AuditEvent{
		CreatedAt: h.now().UTC(),
		ClientIP:  ip,
		Method:    c.Request.Method,
		Route:     route,
		Status:    status,
		Category:  category,
		Message:   message,
	})
}

func (h *Handler) record(ctx context.Context, ev models.AuditEvent) {
	if h.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if err := h.audit.Record(ctx, ev); err != nil {
		h.log.WithField("category", ev.Category).Errorf("audit record: %v", err)
	}
}

// failureCategory returns an audit category and a message free of upstream
// identifiers.
func failureCategory(status int, err error) (string, string) {
	var up *apperr.UpstreamError
	switch {
	case err == nil:
		return fmt.Sprintf("http_%d", status), http.StatusText(status)
	case errors.Is(err, security.ErrSuspicious):
		return "suspicious_content", err.Error()
	case errors.Is(err, security.ErrBodyTooLarge):
		return "payload_too_large", err.Error()
	case errors.As(err, &up):
		return apperr.Category(err), up.Service + ": " + up.PublicMessage()
	default:
		return apperr.Category(err), err.Error()
	}
}
