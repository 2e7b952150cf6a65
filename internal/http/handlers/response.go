// Package handlers implements the operator HTTP API: account setup,
// on-demand jobs, discrepancy review and queue inspection.
//
// This file defines the response helpers every endpoint uses. Success bodies
// are plain JSON of the response type; every failure, including NoRoute,
// NoMethod, Recovery and the websocket 401, carries the same envelope so an
// operator can quote a request_id back against the server logs.
//
// Conventions:
//   - All error responses must return an ErrorResponse with a stable `code`.
//   - `fail()` centralizes error logging and formatting, ensuring 5xx responses
//     are logged with request context for observability.
//   - `ok()` and `noContent()` simplify writing success responses in a consistent
//     shape across handlers.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_configured",
//	  "message": "account is not configured"
//	}
//
// Example success response:
//
//	HTTP/1.1 202 Accepted
//	{ "jobId": "9b0f...", "queue": "inventory-scan", "created": true }
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-spend-reconciler/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
//
// Fields:
//   - RequestID: echoed from the X-Request-ID response header set by the
//     RequestID middleware. Empty only when that middleware is not mounted.
//   - Code: a stable, machine-readable string (see errors.go constants).
//   - Message: a human-readable description, safe to show to operators.
//     Provider and database error text never reaches it; failErr maps
//     unknown errors to a generic 500 message.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"resource not found"`
}

// fail aborts the request with a structured error.
//
// It builds an ErrorResponse, writes it with the given status, and calls
// gin.Context.AbortWithStatusJSON so later handlers in the chain do not run.
//
// Server errors (>=500) are logged through the request-scoped logger, which
// already carries the request id, method and path. 4xx responses are left to
// the access log.
func fail(c *gin.Context, status int, code, msg string) {
	reqID := c.Writer.Header().Get("X-Request-ID")
	resp := ErrorResponse{
		RequestID: reqID,
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("request failed")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is fail for the router's NoRoute and NoMethod handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes body as JSON.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes 204.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
