// Package middleware contains shared Gin middleware used by the ops HTTP
// server.
//
// This file implements an in-memory token-bucket limiter for the operator
// API, with one bucket per client IP and opportunistic eviction of idle
// buckets.
//
// Notes:
//   - The limiter is process-local; limits apply per running binary.
//   - The router mounts it on the /admin group ahead of AdminAuth and on the
//     websocket upgrade. It is abuse control, not authorization.
//   - Rejections use the standard error envelope with code too_many_requests.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc maps a request to its rate-limit bucket.
type KeyFunc func(*gin.Context) string

// KeyByIP buckets requests by client IP.
func KeyByIP() KeyFunc {
	return func(c *gin.Context) string { return "ip:" + c.ClientIP() }
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a process-local, per-key token bucket. Idle buckets are
// evicted opportunistically. It is safe for concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn KeyFunc

	mu       sync.Mutex
	visitors map[string]*visitor
	ttl      time.Duration
	lookups  uint64
}

// NewRateLimiter returns a limiter allowing rps requests per second per key
// with the given burst (values <= 0 are coerced to 1).
func NewRateLimiter(rps float64, burst int, keyFn KeyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if keyFn == nil {
		keyFn = KeyByIP()
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// evict before touching key so a stale bucket for key is dropped too
	rl.lookups++
	if rl.lookups >= 5000 {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.lookups = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// Handler rejects requests over the limit with 429 and Retry-After: 1.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.limiter(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
