package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/pressroom/pkg/httputil"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestMemoryLimiter(t *testing.T) {
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(&RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute})
	limiter.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		d, err := limiter.Allow(ctx, "ip:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}

	d, err := limiter.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, time.Minute, d.RetryAfter)

	other, err := limiter.Allow(ctx, "ip:5.6.7.8")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	now = now.Add(time.Minute)
	d, err = limiter.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "a new window starts once the old one ends")

	now = now.Add(2 * time.Minute)
	limiter.Cleanup()
	assert.Zero(t, limiter.Len())
}

func TestRedisLimiter(t *testing.T) {
	mr, client := setupRedis(t)
	limiter := NewRedisLimiter(client, &RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute}, "ratelimit:login")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := limiter.Allow(ctx, "ip:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := limiter.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:login:ip:1.2.3.4"))

	mr.FastForward(time.Minute)
	d, err = limiter.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	require.NoError(t, limiter.Reset(ctx, "ip:1.2.3.4"))
	assert.False(t, mr.Exists("ratelimit:login:ip:1.2.3.4"))
}

func TestRedisLimiter_ErrorFailsOpen(t *testing.T) {
	mr, client := setupRedis(t)
	limiter := NewRedisLimiter(client, nil, "")
	mr.Close()

	d, err := limiter.Allow(context.Background(), "ip:1.2.3.4")
	assert.Error(t, err)
	assert.True(t, d.Allowed)
}

func TestLoginRateLimit(t *testing.T) {
	_, client := setupRedis(t)
	limiter := NewRedisLimiter(client, &RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 30 * time.Second}, "ratelimit:login")

	handler := LoginRateLimit(limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/login", nil)
		req.RemoteAddr = ip + ":40000"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	rr := send("203.0.113.7")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))

	rr = send("203.0.113.7")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "30", rr.Header().Get("Retry-After"))
	assert.Contains(t, rr.Body.String(), "rate limit exceeded")

	assert.Equal(t, http.StatusOK, send("198.51.100.1").Code)
}

func TestLoginRateLimit_ForwardedHeadersNeedTrustedPeer(t *testing.T) {
	limiter := NewMemoryLimiter(&RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute})
	handler := LoginRateLimit(limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	proxies, err := httputil.ParseTrustedProxies([]string{"10.0.0.1"})
	require.NoError(t, err)
	send := func(remote, forwarded string) int {
		req := httptest.NewRequest("POST", "/login", nil)
		req.RemoteAddr = remote
		req.Header.Set("X-Forwarded-For", forwarded)
		rr := httptest.NewRecorder()
		httputil.ClientIPMiddleware(proxies)(handler).ServeHTTP(rr, req)
		return rr.Code
	}

	var codes []int
	for i := 0; i < 6; i++ {
		codes = append(codes, send("192.0.2.50:1000", fmt.Sprintf("203.0.113.%d", i)))
	}
	assert.Equal(t, []int{200, 200, 429, 429, 429, 429}, codes)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, send("10.0.0.1:1000", fmt.Sprintf("198.51.100.%d", i)))
	}
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{}, assert.AnError
}

func TestLoginRateLimit_FailsOpen(t *testing.T) {
	handler := LoginRateLimit(brokenLimiter{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("POST", "/login", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
