// Package middleware contains shared Gin middleware for the HTTP layer.
//
// This file is an in-memory token-bucket rate limiter with one bucket per
// caller and opportunistic eviction of idle buckets. It is process-local:
// good for abuse control on a single instance, not a substitute for a
// distributed limiter when the service scales out. Idempotent replays bypass
// it entirely so client retries are never charged tokens.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc maps a request to the identity owning its bucket. The returned key
// must be stable for the duration of the request.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP keys buckets by the authenticated user when Identity() set
// one, falling back to client IP. Keys are namespaced ("user:" / "ip:") so
// the two spaces cannot collide.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if v, ok := c.Get("userID"); ok {
			if s, ok := v.(string); ok && s != "" {
				return "user:" + s
			}
		}
		return "ip:" + c.ClientIP()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds per-key token buckets behind a mutex. Buckets idle past
// the TTL are swept during lookups, so memory stays bounded without a
// background goroutine. Safe for concurrent use.
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	keyFn    keyFunc
	mu       sync.Mutex
	visitors map[string]*visitor

	ttl      time.Duration
	every    uint64 // lookups between sweeps
	cleanupN uint64
	now      func() time.Time // swapped in tests
}

// NewRateLimiter builds a limiter replenishing rps tokens per second with the
// given burst, keyed by keyFn. A burst <= 0 is coerced to 1 so the limiter
// can never deadlock a caller out entirely.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
		every:    5000,
		now:      time.Now,
	}
}

// getVisitor returns the bucket for key, creating it on first sight. Every
// `every` lookups it sweeps idle entries first; sweeping before the fetch
// means a stale bucket is evicted even when it is the one being asked for.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	rl.cleanupN++
	if rl.cleanupN >= rl.every {
		for k, vv := range rl.visitors {
			if now.Sub(vv.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.cleanupN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		lim := v.limiter
		rl.mu.Unlock()
		return lim
	}

	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	rl.mu.Unlock()
	return lim
}

// IsRateBypass reports whether IdempotencyValidator flagged this request as a
// replay, in which case Handler skips limiting.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler enforces the per-key limit. Replays pass through unmetered; an
// exhausted bucket yields 429 with a Retry-After header and the stable
// "too_many_requests" error code.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		if rl.getVisitor(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
