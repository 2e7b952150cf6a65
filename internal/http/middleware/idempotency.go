// Package middleware contains shared Gin middleware used by the ops HTTP
// server.
//
// This file validates the optional Idempotency-Key header on job-enqueue
// endpoints. It does not store or replay responses: the key is handed to the
// queue, whose partial unique index on idempotency keys makes a repeated
// request return the existing job with created=false.
package middleware

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey lets operators collapse repeated job requests: the
// validated value becomes the queue idempotency key of the enqueued job.
const HeaderIdempotencyKey = "Idempotency-Key"

const ctxKeyIdemKey = "idem.key"

var defaultIdemPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// IdempotencyOptions configures IdempotencyKey.
type IdempotencyOptions struct {
	MaxLen  int            // defaults to 200
	Pattern *regexp.Regexp // defaults to ^[A-Za-z0-9._~\-:]+$
}

// IdempotencyKey validates the Idempotency-Key header when present and
// stashes it for GetIdempotencyKey. Invalid keys are rejected with 400.
func IdempotencyKey(opts IdempotencyOptions) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultIdemPattern
	}
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_request",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)
		c.Next()
	}
}

// GetIdempotencyKey returns the key stored by IdempotencyKey.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	s := c.GetString(ctxKeyIdemKey)
	return s, s != ""
}
