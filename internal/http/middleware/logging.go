// Package middleware contains shared Gin middleware used by the ops HTTP
// server.
//
// This file provides request correlation, structured access logging with
// secret scrubbing, and panic recovery:
//
//   - RequestID() reuses or mints an X-Request-ID per request.
//   - Logger() emits one access log line per request and stores a
//     request-scoped zerolog.Logger both in the Gin context and in the
//     request's context.Context, so services reached from a handler log
//     with the same fields through zerolog.Ctx.
//   - Recovery() turns panics into the standard JSON 500 envelope.
//
// Recommended order: RequestID, Logger, Recovery.
package middleware

import (
	"net/http"
	"regexp"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey      = "requestID"
	requestIDHeader   = "X-Request-ID"
	loggerKey         = "logger"
	maxQueryLogLength = 1024
)

var (
	// bearer tokens and JWTs in query strings (the websocket accepts ?token=)
	tokenParamRE = regexp.MustCompile(`(?i)(token|access_token)=[^&]*`)
	jwtRE        = regexp.MustCompile(`eyJ[A-Za-z0-9_\-]+\.[A-Za-z0-9_\-]+\.[A-Za-z0-9_\-]*`)
	// AWS access key ids
	accessKeyRE = regexp.MustCompile(`\b(AKIA|ASIA)[A-Z0-9]{16}\b`)
)

// Scrub removes credentials from s before it is logged.
func Scrub(s string) string {
	if s == "" {
		return s
	}
	s = tokenParamRE.ReplaceAllString(s, "$1=[REDACTED]")
	s = jwtRE.ReplaceAllString(s, "[REDACTED:jwt]")
	return accessKeyRE.ReplaceAllString(s, "[REDACTED:key]")
}

// RequestID attaches (or propagates) a correlation identifier per request.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if rid == "" || len(rid) > 128 {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Logger writes a structured access log for each request. The level follows
// the outcome: error for 5xx or collected Gin errors, warn for 4xx, info
// otherwise. Query strings are scrubbed and truncated.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid, _ := c.Get(requestIDKey)
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		lc := log.With().
			Str("request_id", asString(rid)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP())
		if acct := c.Param("id"); acct != "" {
			lc = lc.Str("account_id", acct)
		}
		l := lc.Logger()

		c.Set(loggerKey, &l)
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))

		c.Next()

		ev := l.With().
			Str("query", truncate(Scrub(c.Request.URL.RawQuery), maxQueryLogLength)).
			Str("user_agent", c.Request.UserAgent()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size()).
			Logger()

		status := c.Writer.Status()
		switch {
		case len(c.Errors) > 0:
			ev.Error().Str("errors", c.Errors.String()).Msg("request")
		case status >= 500:
			ev.Error().Msg("request")
		case status >= 400:
			ev.Warn().Msg("request")
		default:
			ev.Info().Msg("request")
		}
	}
}

// Recovery intercepts panics, logs the stack, and answers 500 with the
// standard error envelope when nothing was written yet.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid := asString(c.GetString(requestIDKey))
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, rid)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global logger when
// Logger() did not run.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
