package security

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"veron/internal/apperr"
)

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Duration
}

// Limiter counts requests per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// MemoryLimiter is a sliding-window limiter for a single process.
type MemoryLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time
	mu     sync.Mutex
	hits   map[string][]time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{limit: limit, window: window, now: time.Now, hits: make(map[string][]time.Time)}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	queue := l.hits[key]
	cutoff := now.Add(-l.window)
	idx := 0
	for _, t := range queue {
		if t.After(cutoff) {
			break
		}
		idx++
	}
	if idx > 0 {
		queue = queue[idx:]
	}
	d := Decision{Limit: l.limit}
	if len(queue) >= l.limit {
		l.hits[key] = queue
		d.Reset = queue[0].Add(l.window).Sub(now)
		return d, nil
	}
	queue = append(queue, now)
	l.hits[key] = queue
	d.Allowed = true
	d.Remaining = l.limit - len(queue)
	d.Reset = queue[0].Add(l.window).Sub(now)
	return d, nil
}

// Sweep drops keys with no hits inside the window.
func (l *MemoryLimiter) Sweep() {
	cutoff := l.now().Add(-l.window)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, queue := range l.hits {
		if len(queue) == 0 || !queue[len(queue)-1].After(cutoff) {
			delete(l.hits, key)
		}
	}
}

// WindowCounter is the store behind RedisLimiter.
type WindowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RedisLimiter is a fixed-window limiter shared by every instance using the same redis.
type RedisLimiter struct {
	store  WindowCounter
	prefix string
	limit  int
	window time.Duration
}

func NewRedisLimiter(store WindowCounter, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{store: store, prefix: prefix, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	count, ttl, err := l.store.IncrWindow(ctx, l.prefix+key, l.window)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit counter: %w", err)
	}
	d := Decision{Limit: l.limit, Reset: ttl}
	if count > int64(l.limit) {
		return d, nil
	}
	d.Allowed = true
	d.Remaining = l.limit - int(count)
	return d, nil
}

// RateLimit rejects clients that exceed the limiter's budget. scope separates
// per-route budgets that share one limiter. Counter failures let the request through.
func RateLimit(l Limiter, scope string, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := ClientIP(c)
		d, err := l.Allow(c.Request.Context(), scope+":"+ip)
		if err != nil {
			log.WithFields(logrus.Fields{"ip": ip, "route": c.Request.URL.Path}).Errorf("rate limiter unavailable: %v", err)
			c.Next()
			return
		}
		reset := int(math.Ceil(d.Reset.Seconds()))
		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(reset))
		if !d.Allowed {
			log.WithFields(logrus.Fields{"ip": ip, "route": c.Request.URL.Path}).Warn("rate limit exceeded")
			c.Header("Retry-After", strconv.Itoa(reset))
			_ = c.Error(apperr.ErrRateLimited)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "Rate limit exceeded",
				"code":    "RATE_LIMIT",
			})
			return
		}
		c.Next()
	}
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func (l *MemoryLimiter) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = l.window
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Sweep()
			}
		}
	}()
}
