package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/tenantry/pkg/httputil"
	"github.com/platinummonkey/tenantry/pkg/observability"
)

// DistributedRateLimiter is a fixed-window limiter shared through Redis, so
// every instance enforces the same budget
type DistributedRateLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
}

// NewDistributedRateLimiter creates a Redis-backed rate limiter
func NewDistributedRateLimiter(client *redis.Client, config *RateLimitConfig, prefix string) *DistributedRateLimiter {
	if config == nil {
		config = AnonymousRateLimitConfig()
	}
	if prefix == "" {
		prefix = "tenantry:ratelimit"
	}
	return &DistributedRateLimiter{redis: client, config: config, prefix: prefix}
}

func (rl *DistributedRateLimiter) key(key string) string {
	return fmt.Sprintf("%s:%s", rl.prefix, key)
}

// Allow counts a request for key and reports whether it is within the window
// budget
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := rl.key(key)

	count, err := rl.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return true, fmt.Errorf("failed to count request: %w", err)
	}
	if count == 1 {
		if err := rl.redis.Expire(ctx, redisKey, rl.config.WindowDuration).Err(); err != nil {
			return true, fmt.Errorf("failed to set window: %w", err)
		}
	}
	return count <= int64(rl.config.capacity()), nil
}

// Remaining returns the requests left in the current window
func (rl *DistributedRateLimiter) Remaining(ctx context.Context, key string) (int, error) {
	count, err := rl.redis.Get(ctx, rl.key(key)).Int()
	if errors.Is(err, redis.Nil) {
		return rl.config.capacity(), nil
	}
	if err != nil {
		return 0, err
	}
	return max(rl.config.capacity()-count, 0), nil
}

// TTL returns the time until the window resets
func (rl *DistributedRateLimiter) TTL(ctx context.Context, key string) (time.Duration, error) {
	return rl.redis.TTL(ctx, rl.key(key)).Result()
}

// Reset clears the window for key
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, rl.key(key)).Err()
}

// DistributedRateLimitMiddleware is RateLimitMiddleware backed by Redis
type DistributedRateLimitMiddleware struct {
	redis            *redis.Client
	userLimiter      *DistributedRateLimiter
	anonymousLimiter *DistributedRateLimiter
	failOpen         bool
	logger           *observability.Logger
}

// NewDistributedRateLimitMiddleware creates a Redis-backed rate limit
// middleware. Redis errors let requests through unless SetFailOpen(false)
// is called.
func NewDistributedRateLimitMiddleware(client *redis.Client, logger *observability.Logger) *DistributedRateLimitMiddleware {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &DistributedRateLimitMiddleware{
		redis:            client,
		userLimiter:      NewDistributedRateLimiter(client, UserRateLimitConfig(), "tenantry:ratelimit:user"),
		anonymousLimiter: NewDistributedRateLimiter(client, AnonymousRateLimitConfig(), "tenantry:ratelimit:anon"),
		failOpen:         true,
		logger:           logger,
	}
}

// SetFailOpen controls whether requests pass when Redis is unavailable
func (m *DistributedRateLimitMiddleware) SetFailOpen(enabled bool) {
	m.failOpen = enabled
}

// Handler wraps an HTTP handler with distributed rate limiting
func (m *DistributedRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key, authenticated := rateLimitKey(r)
		limiter := m.anonymousLimiter
		if authenticated {
			limiter = m.userLimiter
		}

		allowed, err := limiter.Allow(ctx, key)
		if err != nil {
			m.logger.WithError(err).Warn("rate limiter unavailable")
			if m.failOpen {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, "service temporarily unavailable")
			return
		}

		ttl, err := limiter.TTL(ctx, key)
		if err != nil || ttl <= 0 {
			ttl = limiter.config.WindowDuration
		}
		reset := time.Now().Add(ttl).Unix()

		if !allowed {
			rateLimitExceeded(w, limiter.config, ttl, reset)
			return
		}

		if remaining, err := limiter.Remaining(ctx, key); err == nil {
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.config.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", reset))
		}
		next.ServeHTTP(w, r)
	})
}

// HealthCheck verifies Redis connectivity
func (m *DistributedRateLimitMiddleware) HealthCheck(ctx context.Context) error {
	return m.redis.Ping(ctx).Err()
}
