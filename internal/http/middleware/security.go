// Package middleware contains shared Gin middleware used by the ops HTTP
// server.
//
// This file provides SecurityHeaders, which attaches a conservative set of
// response headers to the operator API. The API serves JSON and the swagger
// UI only, usually behind a reverse proxy.
//
// Design notes:
//   - No Content-Security-Policy here; the swagger UI ships inline scripts.
//   - HSTS is opt-in and only sent when the request itself is HTTPS.
//   - Header values are computed once, when the middleware is built.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures SecurityHeaders.
//
// EnableHSTS emits Strict-Transport-Security for HTTPS requests, never for
// plain HTTP. Enable it only when traffic is HTTPS end-to-end, including the
// hop between proxy and app.
//
// HSTSMaxAge is the HSTS lifetime. Zero or negative means 180 days.
//
// NoStore adds Cache-Control: no-store and Pragma: no-cache. Account
// configuration and discrepancy listings should not sit in shared caches.
type SecurityOptions struct {
	EnableHSTS bool          // only honoured on HTTPS requests
	HSTSMaxAge time.Duration // defaults to 180 days
	NoStore    bool          // add Cache-Control: no-store
}

// SecurityHeaders returns a Gin middleware that hardens every response.
//
// Behavior:
//   - Always sets:
//     X-Content-Type-Options: nosniff
//     X-Frame-Options: DENY
//     Referrer-Policy: no-referrer
//     Permissions-Policy: geolocation=(), microphone=(), camera=(), payment=()
//   - When NoStore:
//     Cache-Control: no-store
//     Pragma: no-cache
//   - When EnableHSTS and the request is HTTPS (TLS on the connection, or
//     X-Forwarded-Proto: https from the proxy):
//     Strict-Transport-Security: max-age=<seconds>; includeSubDomains
//   - When X-Request-ID is already set on the response, lists it in
//     Access-Control-Expose-Headers so browser clients can quote it back
//     from error envelopes.
//
// Register it after RequestID so the request id is visible here.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	hsts := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		if h.Get("X-Request-ID") != "" {
			exposeHeader(h, "X-Request-ID")
		}
		c.Next()
	}
}

// exposeHeader appends name to Access-Control-Expose-Headers unless it is
// already listed. CORS may have set the header earlier in the chain.
func exposeHeader(h http.Header, name string) {
	const key = "Access-Control-Expose-Headers"
	cur := h.Get(key)
	switch {
	case cur == "":
		h.Set(key, name)
	case !strings.Contains(strings.ToLower(cur), strings.ToLower(name)):
		h.Set(key, cur+", "+name)
	}
}

// isHTTPS reports whether the request used HTTPS directly or through a proxy
// that set X-Forwarded-Proto.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
