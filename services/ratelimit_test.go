package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/careerhub/backend/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitedHandler(limiter *RateLimiter, user *models.User) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user != nil {
			r = r.WithContext(withUser(r.Context(), user))
		}
		limiter.Middleware(ok).ServeHTTP(w, r)
	})
}

func hit(h http.Handler, path, ip string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = ip + ":40000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestMemoryCounterWindows(t *testing.T) {
	counter := NewMemoryCounter()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	counter.now = func() time.Time { return now }
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := counter.Incr(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	now = now.Add(time.Minute)
	got, err := counter.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)

	now = now.Add(2 * time.Minute)
	counter.Prune()
	assert.Empty(t, counter.windows)
}

func TestRateLimiterAnonymousTraffic(t *testing.T) {
	h := limitedHandler(NewRateLimiter(NewMemoryCounter(), 3, time.Minute), nil)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(h, "/api/v1/trainer/categories", "10.0.0.1"))
	}
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "/api/v1/trainer/categories", "10.0.0.1"))

	// keys are per client and per path
	assert.Equal(t, http.StatusOK, hit(h, "/api/v1/trainer/categories", "10.0.0.2"))
	assert.Equal(t, http.StatusOK, hit(h, "/api/v1/health", "10.0.0.1"))
}

func TestRateLimiterSkipsAuthenticatedUsersOutsideAuth(t *testing.T) {
	user := &models.User{ID: "u1", Email: "u@example.com", IsActive: true}
	h := limitedHandler(NewRateLimiter(NewMemoryCounter(), 1, time.Minute), user)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, hit(h, "/api/v1/cvs", "10.0.0.1"))
	}
	assert.Equal(t, http.StatusOK, hit(h, "/api/v1/auth/refresh", "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "/api/v1/auth/refresh", "10.0.0.1"))
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.10:5555"
	assert.Equal(t, "192.168.1.10", clientIP(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")
	assert.Equal(t, "203.0.113.7", clientIP(req))
}

func TestRedisCounter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	h := limitedHandler(NewRateLimiter(NewRedisCounter(client), 2, time.Minute), nil)
	assert.Equal(t, http.StatusOK, hit(h, "/api/v1/auth/login", "10.1.1.1"))
	assert.Equal(t, http.StatusOK, hit(h, "/api/v1/auth/login", "10.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "/api/v1/auth/login", "10.1.1.1"))

	key := "rate_limit:10.1.1.1:/api/v1/auth/login"
	assert.Equal(t, time.Minute, mr.TTL(key))

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, http.StatusOK, hit(h, "/api/v1/auth/login", "10.1.1.1"))
}

func TestRedisOutageFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	h := limitedHandler(NewRateLimiter(NewRedisCounter(client), 1, time.Minute), nil)
	assert.Equal(t, http.StatusOK, hit(h, "/api/v1/auth/login", "10.1.1.1"))
	assert.Equal(t, http.StatusOK, hit(h, "/api/v1/auth/login", "10.1.1.1"))
}
