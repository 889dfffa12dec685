package services

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitMessage = "Rate limit exceeded. Please try again later."

// Counter increments the hit count of key inside the current window.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter shares fixed windows between instances with INCR + EXPIRE.
type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("rate limit counter: %w", err)
	}
	// the first hit opens the window
	if count == 1 {
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("rate limit expiry: %w", err)
		}
	}
	return count, nil
}

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

// MemoryCounter is the single-process fallback when no Redis is configured.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	now     func() time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{windows: make(map[string]*memoryWindow), now: time.Now}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	w, ok := c.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &memoryWindow{resetAt: now.Add(window)}
		c.windows[key] = w
	}
	w.count++
	return w.count, nil
}

// Prune drops expired windows.
func (c *MemoryCounter) Prune() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for key, w := range c.windows {
		if !now.Before(w.resetAt) {
			delete(c.windows, key)
		}
	}
}

type RateLimiter struct {
	counter  Counter
	requests int64
	window   time.Duration
}

func NewRateLimiter(counter Counter, requests int, window time.Duration) *RateLimiter {
	if requests <= 0 {
		requests = 100
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{counter: counter, requests: int64(requests), window: window}
}

// clientIP prefers the first X-Forwarded-For hop over the socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// applies limits anonymous traffic and every auth route.
func (l *RateLimiter) applies(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/v1/auth/") {
		return true
	}
	_, authenticated := UserFromContext(r.Context())
	return !authenticated
}

// Middleware must run after the optional auth middleware so the user is known. Counter
// errors let the request through.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.applies(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := fmt.Sprintf("rate_limit:%s:%s", clientIP(r), r.URL.Path)
		count, err := l.counter.Incr(r.Context(), key, l.window)
		if err != nil {
			slog.Error("Rate limiter unavailable", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		if count > l.requests {
			slog.Warn("Rate limit exceeded", "key", key, "count", count)
			writeError(w, http.StatusTooManyRequests, rateLimitMessage)
			return
		}
		next.ServeHTTP(w, r)
	})
}
