package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/pressroom/pkg/apperr"
	"github.com/platinummonkey/pressroom/pkg/httputil"
	"github.com/platinummonkey/pressroom/pkg/observability"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
}

// DefaultLoginRateLimitConfig allows 10 login attempts per IP per minute
func DefaultLoginRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Minute,
	}
}

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts requests per key in fixed windows
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

func decide(config *RateLimitConfig, count int64, ttl time.Duration) Decision {
	remaining := config.RequestsPerWindow - int(count)
	if remaining < 0 {
		remaining = 0
	}
	if ttl <= 0 {
		ttl = config.WindowDuration
	}
	return Decision{
		Allowed:    count <= int64(config.RequestsPerWindow),
		Limit:      config.RequestsPerWindow,
		Remaining:  remaining,
		RetryAfter: ttl,
	}
}

// DefaultMemoryLimiterKeys bounds how many clients a MemoryLimiter tracks
const DefaultMemoryLimiterKeys = 10000

// MemoryLimiter is a process-local fixed window limiter. Windows live in an
// expiring LRU, so the least recently seen clients are dropped first when it fills.
type MemoryLimiter struct {
	config  *RateLimitConfig
	now     func() time.Time
	mu      sync.Mutex
	windows *lru.LRU[string, *window]
}

type window struct {
	count   int64
	resetAt time.Time
}

// NewMemoryLimiter creates an in-memory limiter
func NewMemoryLimiter(config *RateLimitConfig) *MemoryLimiter {
	if config == nil {
		config = DefaultLoginRateLimitConfig()
	}
	return &MemoryLimiter{
		config:  config,
		now:     time.Now,
		windows: lru.NewLRU[string, *window](DefaultMemoryLimiterKeys, nil, config.WindowDuration),
	}
}

// Allow implements Limiter
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows.Get(key)
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.config.WindowDuration)}
		l.windows.Add(key, w)
	}
	w.count++

	return decide(l.config, w.count, w.resetAt.Sub(now)), nil
}

// Cleanup drops windows that have ended
func (l *MemoryLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for _, key := range l.windows.Keys() {
		if w, ok := l.windows.Peek(key); ok && !now.Before(w.resetAt) {
			l.windows.Remove(key)
		}
	}
}

// Len reports how many client windows are tracked
func (l *MemoryLimiter) Len() int {
	return l.windows.Len()
}

// RedisLimiter shares windows across instances through Redis
type RedisLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
}

// NewRedisLimiter creates a new Redis-backed rate limiter
func NewRedisLimiter(redisClient *redis.Client, config *RateLimitConfig, prefix string) *RedisLimiter {
	if config == nil {
		config = DefaultLoginRateLimitConfig()
	}
	if prefix == "" {
		prefix = "ratelimit"
	}

	return &RedisLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
	}
}

func (l *RedisLimiter) key(key string) string {
	return fmt.Sprintf("%s:%s", l.prefix, key)
}

// Allow implements Limiter. The window starts with the first request of a key.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := l.key(key)

	pipe := l.redis.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pttl := pipe.PTTL(ctx, redisKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{Allowed: true, Limit: l.config.RequestsPerWindow}, fmt.Errorf("redis error: %w", err)
	}

	ttl := pttl.Val()
	if ttl < 0 {
		// new key, or a key left without expiry by a failed earlier call
		if err := l.redis.PExpire(ctx, redisKey, l.config.WindowDuration).Err(); err != nil {
			return Decision{Allowed: true, Limit: l.config.RequestsPerWindow}, fmt.Errorf("redis error: %w", err)
		}
		ttl = l.config.WindowDuration
	}

	return decide(l.config, incr.Val(), ttl), nil
}

// Reset clears the counter for a key
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.redis.Del(ctx, l.key(key)).Err()
}

// LoginRateLimit limits requests per client IP. Limiter errors fail open.
func LoginRateLimit(limiter Limiter, logger *observability.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := httputil.ClientIP(r)

			decision, err := limiter.Allow(r.Context(), "ip:"+ip)
			if err != nil {
				logger.WithError(err).WithField("ip", ip).Warn("rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

			if !decision.Allowed {
				retryAfter := int(decision.RetryAfter.Round(time.Second).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				httputil.WriteAppError(w, apperr.New(apperr.KindTooManyRequests, "middleware.LoginRateLimit", "rate limit exceeded").
					WithDetail("retry_after", retryAfter))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
