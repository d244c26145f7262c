package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/platinummonkey/tenantry/pkg/httputil"
)

// RateLimitConfig defines a token bucket
type RateLimitConfig struct {
	// RequestsPerWindow is the refill rate of the bucket
	RequestsPerWindow int
	// WindowDuration is the refill period
	WindowDuration time.Duration
	// BurstSize is allowed on top of RequestsPerWindow
	BurstSize int
}

// AnonymousRateLimitConfig limits unauthenticated callers, which mostly hit
// login and invitation token endpoints
func AnonymousRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 30,
		WindowDuration:    time.Minute,
		BurstSize:         5,
	}
}

// UserRateLimitConfig limits authenticated users
func UserRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 600,
		WindowDuration:    time.Minute,
		BurstSize:         50,
	}
}

func (c *RateLimitConfig) capacity() int {
	return c.RequestsPerWindow + c.BurstSize
}

// RateLimiter is an in-process token bucket limiter
type RateLimiter struct {
	config  *RateLimitConfig
	buckets map[string]*bucket
	mu      sync.RWMutex
}

type bucket struct {
	tokens     int
	lastUpdate time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a rate limiter. A nil config uses
// AnonymousRateLimitConfig.
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = AnonymousRateLimitConfig()
	}
	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
	}
}

// Allow takes a token for key and reports whether one was available
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.config.capacity(), lastUpdate: time.Now()}
		rl.buckets[key] = b
	}
	rl.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	refill := int(now.Sub(b.lastUpdate).Seconds() * float64(rl.config.RequestsPerWindow) / rl.config.WindowDuration.Seconds())
	if refill > 0 {
		b.tokens = min(b.tokens+refill, rl.config.capacity())
		b.lastUpdate = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// Remaining returns the tokens left for key
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.RLock()
	b, ok := rl.buckets[key]
	rl.mu.RUnlock()
	if !ok {
		return rl.config.capacity()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}

// Cleanup drops buckets idle for two windows
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, b := range rl.buckets {
		b.mu.Lock()
		if now.Sub(b.lastUpdate) > rl.config.WindowDuration*2 {
			delete(rl.buckets, key)
		}
		b.mu.Unlock()
	}
}

// StartCleanup runs Cleanup every window until ctx is done
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.config.WindowDuration)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RateLimitMiddleware limits requests per authenticated user, or per client
// address for anonymous requests. It must run after AuthMiddleware.
type RateLimitMiddleware struct {
	userLimiter      *RateLimiter
	anonymousLimiter *RateLimiter
}

// NewRateLimitMiddleware creates a rate limit middleware with the default
// configurations
func NewRateLimitMiddleware() *RateLimitMiddleware {
	return &RateLimitMiddleware{
		userLimiter:      NewRateLimiter(UserRateLimitConfig()),
		anonymousLimiter: NewRateLimiter(AnonymousRateLimitConfig()),
	}
}

// rateLimitKey picks the bucket key and the configuration for r
func rateLimitKey(r *http.Request) (string, bool) {
	if u := UserFromContext(r.Context()); u != nil {
		return fmt.Sprintf("user:%d", u.ID), true
	}
	return "ip:" + clientIP(r), false
}

// Handler wraps an HTTP handler with rate limiting
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, authenticated := rateLimitKey(r)
		limiter := m.anonymousLimiter
		if authenticated {
			limiter = m.userLimiter
		}

		reset := time.Now().Add(limiter.config.WindowDuration).Unix()
		if !limiter.Allow(key) {
			rateLimitExceeded(w, limiter.config, limiter.config.WindowDuration, reset)
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.config.RequestsPerWindow))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", limiter.Remaining(key)))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", reset))
		next.ServeHTTP(w, r)
	})
}

type rateLimitBody struct {
	Error      string `json:"error"`
	RetryAfter int64  `json:"retry_after"`
}

func rateLimitExceeded(w http.ResponseWriter, config *RateLimitConfig, retryAfter time.Duration, reset int64) {
	seconds := int64(retryAfter.Round(time.Second).Seconds())
	w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", config.RequestsPerWindow))
	w.Header().Set("X-RateLimit-Remaining", "0")
	if reset > 0 {
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", reset))
	}
	httputil.WriteJSON(w, http.StatusTooManyRequests, rateLimitBody{Error: "rate limit exceeded", RetryAfter: seconds})
}

// clientIP returns the first X-Forwarded-For hop, X-Real-IP, or the remote
// host
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
