package security

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veron/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func okRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ip": ClientIP(c)}) }
	r.GET("/ping", ok)
	r.POST("/ping", ok)
	return r
}

func TestClientIPPrecedence(t *testing.T) {
	r := okRouter()

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set("X-Real-IP", "198.51.100.2")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Contains(t, rec.Body.String(), "203.0.113.7")

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Real-IP", "198.51.100.2")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Contains(t, rec.Body.String(), "198.51.100.2")

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "192.0.2.9:4444"
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Contains(t, rec.Body.String(), "192.0.2.9")
}

func TestHeadersApplied(t *testing.T) {
	cfg := config.SecurityConfig{SecureHeaders: true, CSPEnabled: true}
	r := okRouter(Headers(cfg))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	h := rec.Header()
	assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.Equal(t, "1; mode=block", h.Get("X-XSS-Protection"))
	assert.Equal(t, "strict-origin-when-cross-origin", h.Get("Referrer-Policy"))
	assert.Equal(t, PermissionsPolicy, h.Get("Permissions-Policy"))
	assert.Contains(t, h.Get("Content-Security-Policy"), "default-src 'self'")
	assert.Empty(t, h.Get("Strict-Transport-Security"))
}

func TestHeadersDisabled(t *testing.T) {
	r := okRouter(Headers(config.SecurityConfig{}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Empty(t, rec.Header().Get("X-Frame-Options"))
	assert.Empty(t, rec.Header().Get("Permissions-Policy"))
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	r := okRouter(CORS(config.SecurityConfig{AllowedOrigins: []string{"https://app.example"}, CORSCredentials: true}))

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestIsSuspicious(t *testing.T) {
	for _, s := range []string{
		`<SCRIPT>alert(1)</script>`,
		`1 UNION ALL SELECT password`,
		`../../etc/passwd`,
		`eval(atob(x))`,
		"DROP\nTABLE users",
	} {
		assert.True(t, IsSuspicious(s), s)
	}
	for _, s := range []string{"", "Explain photosynthesis for grade 5", "Plan a 45 minute lesson on fractions"} {
		assert.False(t, IsSuspicious(s), s)
	}
}

func TestSuspiciousFilterJSON(t *testing.T) {
	logger, hook := test.NewNullLogger()
	r := okRouter(SuspiciousFilter(logger, 0))

	req := httptest.NewRequest(http.MethodPost, "/ping", strings.NewReader(`{"message":"<script>x</script>"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "SUSPICIOUS_CONTENT")
	assert.Len(t, hook.Entries, 1)

	var seen string
	r2 := gin.New()
	r2.Use(SuspiciousFilter(logger, 0))
	r2.POST("/echo", func(c *gin.Context) {
		var body struct {
			Message string `json:"message"`
		}
		_ = c.ShouldBindJSON(&body)
		seen = body.Message
		c.Status(http.StatusNoContent)
	})
	req = httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"message":"hello there"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	r2.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "hello there", seen)
}

func TestSuspiciousFilterMultipart(t *testing.T) {
	logger, _ := test.NewNullLogger()
	r := okRouter(SuspiciousFilter(logger, 0))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("run powershell -enc AAAA"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/ping", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuspiciousFilterDecodesJSONEscapes(t *testing.T) {
	logger, _ := test.NewNullLogger()
	r := okRouter(SuspiciousFilter(logger, 0))

	for _, body := range []string{
		`{"m":"\u003cscript\u003ealert(1)\u003c/script\u003e"}`,
		`{"outer":{"list":["fine","..\u002f..\u002fetc/passwd"]}}`,
		`{"\u003cscript":"key carries it"}`,
		`{"m":"<script>` + "\n" + `broken json`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/ping", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	req := httptest.NewRequest(http.MethodPost, "/ping", strings.NewReader(`{"m":"\u0048ello","n":[1,2,{"ok":true}]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSuspiciousFilterCapsFormBody(t *testing.T) {
	logger, _ := test.NewNullLogger()
	reached := false
	r := gin.New()
	r.Use(SuspiciousFilter(logger, 512))
	r.POST("/upload", func(c *gin.Context) {
		reached = true
		c.Status(http.StatusOK)
	})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "big.txt")
	require.NoError(t, err)
	_, _ = fw.Write(bytes.Repeat([]byte("a"), 4096))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "PAYLOAD_TOO_LARGE")
	assert.False(t, reached)
}

func TestMemoryLimiterSlidingWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewMemoryLimiter(2, time.Minute)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	d, _ := l.Allow(ctx, "a")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
	now = now.Add(10 * time.Second)
	d, _ = l.Allow(ctx, "a")
	assert.True(t, d.Allowed)
	d, _ = l.Allow(ctx, "a")
	assert.False(t, d.Allowed)
	assert.Equal(t, 50*time.Second, d.Reset)

	d, _ = l.Allow(ctx, "b")
	assert.True(t, d.Allowed)

	now = now.Add(51 * time.Second)
	d, _ = l.Allow(ctx, "a")
	assert.True(t, d.Allowed)

	now = now.Add(2 * time.Minute)
	l.Sweep()
	assert.Empty(t, l.hits)
}

type fakeCounter struct {
	counts map[string]int64
	err    error
}

func (f *fakeCounter) IncrWindow(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if f.err != nil {
		return 0, 0, f.err
	}
	f.counts[key]++
	return f.counts[key], window, nil
}

func TestRedisLimiterFixedWindow(t *testing.T) {
	store := &fakeCounter{counts: map[string]int64{}}
	l := NewRedisLimiter(store, "rl:", 1, time.Minute)

	d, err := l.Allow(context.Background(), "ip")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	d, err = l.Allow(context.Background(), "ip")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, int64(2), store.counts["rl:ip"])
}

func TestRateLimitMiddleware(t *testing.T) {
	logger, _ := test.NewNullLogger()
	r := okRouter(RateLimit(NewMemoryLimiter(1, time.Minute), "api", logger))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestRateLimitFailsOpen(t *testing.T) {
	logger, hook := test.NewNullLogger()
	l := NewRedisLimiter(&fakeCounter{err: errors.New("connection refused")}, "rl:", 1, time.Minute)
	r := okRouter(RateLimit(l, "api", logger))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, hook.LastEntry())
}
