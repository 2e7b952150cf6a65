package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-spend-reconciler/internal/services"
)

// Stable error codes. Clients branch on these, never on messages.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	ErrCodeNotConfigured = "not_configured"
	ErrCodeInvalidStatus = "invalid_status"
	ErrCodeEnqueueFailed = "enqueue_failed"
)

// failErr maps a service error onto the envelope. Unknown errors become
// 500 with fallback as the code.
func failErr(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrAccountNotConfigured):
		fail(c, http.StatusNotFound, ErrCodeNotConfigured, "account is not configured")
	case errors.Is(err, services.ErrDiscrepancyNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "discrepancy not found")
	case errors.Is(err, services.ErrInvalidStatus):
		fail(c, http.StatusBadRequest, ErrCodeInvalidStatus, "status must be ACTIVE, RESOLVED or IGNORED")
	case errors.Is(err, services.ErrInvalidAccountConfig):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrJobNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "job not found")
	case errors.Is(err, services.ErrUnknownQueue), errors.Is(err, services.ErrInvalidJobStatus):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrExternalIDInUse):
		fail(c, http.StatusConflict, ErrCodeConflict, "externalId is already used by another account")
	default:
		fail(c, http.StatusInternalServerError, fallback, err.Error())
	}
}
