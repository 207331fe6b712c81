package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var suspiciousPatterns = compilePatterns(
	`<script`,
	`javascript:`,
	`select.*from`,
	`union.*select`,
	`drop.*table`,
	`insert.*into`,
	`update.*set`,
	`delete.*from`,
	`\.\./`,
	`etc/passwd`,
	`proc/self`,
	`cmd\.exe`,
	`powershell`,
	`bash`,
	`eval\(`,
	`exec\(`,
	`system\(`,
)

func compilePatterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(`(?is)`+e))
	}
	return out
}

// IsSuspicious reports whether s contains script, SQL, traversal or shell markers.
func IsSuspicious(s string) bool {
	if s == "" {
		return false
	}
	for _, re := range suspiciousPatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

const (
	maxInspectedBody = 1 << 20
	fileHeadBytes    = 1024
	formMemory       = 32 << 20
)

// ErrSuspicious marks a request rejected by the content filter.
var ErrSuspicious = errors.New("request contains suspicious content")

// ErrBodyTooLarge marks a form body that exceeded the filter's cap.
var ErrBodyTooLarge = errors.New("request body too large")

// SuspiciousFilter rejects JSON bodies, form values and upload heads that
// match a suspicious pattern. Form bodies larger than maxBody are refused
// before they are spooled; a non-positive maxBody disables the cap.
func SuspiciousFilter(log logrus.FieldLogger, maxBody int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		reason, err := inspect(c, maxBody)
		if errors.Is(err, ErrBodyTooLarge) {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"success": false,
				"error":   "Request body too large",
				"code":    "PAYLOAD_TOO_LARGE",
			})
			return
		}
		if reason != "" {
			log.WithFields(logrus.Fields{
				"ip":    ClientIP(c),
				"route": c.Request.URL.Path,
			}).Warnf("suspicious %s rejected", reason)
			_ = c.Error(ErrSuspicious)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "Request contains suspicious content",
				"code":    "SUSPICIOUS_CONTENT",
			})
			return
		}
		c.Next()
	}
}

func inspect(c *gin.Context, maxBody int64) (string, error) {
	req := c.Request
	if req.Body == nil || req.Method == http.MethodGet || req.Method == http.MethodOptions {
		return "", nil
	}
	switch ct := c.ContentType(); {
	case ct == gin.MIMEJSON:
		body, err := io.ReadAll(io.LimitReader(req.Body, maxInspectedBody))
		if err != nil {
			return "", nil
		}
		req.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), req.Body))
		if suspiciousJSON(body) {
			return "json body", nil
		}
	case ct == gin.MIMEPOSTForm || strings.HasPrefix(ct, gin.MIMEMultipartPOSTForm):
		if maxBody > 0 {
			req.Body = http.MaxBytesReader(c.Writer, req.Body, maxBody)
		}
		if err := req.ParseMultipartForm(formMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return "", ErrBodyTooLarge
			}
			return "", nil
		}
		for _, values := range req.PostForm {
			for _, v := range values {
				if IsSuspicious(v) {
					return "form value", nil
				}
			}
		}
		if req.MultipartForm != nil {
			for _, files := range req.MultipartForm.File {
				for _, fh := range files {
					if suspiciousFileHead(fh) {
						return "file upload", nil
					}
				}
			}
		}
	}
	return "", nil
}

// suspiciousJSON checks every decoded key and string value so escapes such
// as \u003c cannot hide a pattern. Bodies that do not decode are checked raw.
func suspiciousJSON(body []byte) bool {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return IsSuspicious(string(body))
	}
	return suspiciousValue(v)
}

func suspiciousValue(v any) bool {
	switch t := v.(type) {
	case string:
		return IsSuspicious(t)
	case []any:
		for _, e := range t {
			if suspiciousValue(e) {
				return true
			}
		}
	case map[string]any:
		for k, e := range t {
			if IsSuspicious(k) || suspiciousValue(e) {
				return true
			}
		}
	}
	return false
}

func suspiciousFileHead(fh *multipart.FileHeader) bool {
	f, err := fh.Open()
	if err != nil {
		return false
	}
	defer f.Close()
	head := make([]byte, fileHeadBytes)
	n, _ := io.ReadFull(f, head)
	return IsSuspicious(string(head[:n]))
}
