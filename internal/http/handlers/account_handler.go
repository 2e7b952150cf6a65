// Account HTTP handlers.
//
//   - PUT  /admin/accounts/{id}        (configure role)
//   - GET  /admin/accounts/{id}        (overview)
//   - POST /admin/accounts/{id}/costs  (enqueue cost collection)
//   - POST /admin/accounts/{id}/scan   (enqueue inventory scan)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
	"github.com/tbourn/go-spend-reconciler/internal/http/middleware"
)

// ConfigureAccountRequest is the role an account is read through.
type ConfigureAccountRequest struct {
	RoleARN    string `json:"roleArn"    binding:"required" example:"arn:aws:iam::111122223333:role/SpendReader"`
	ExternalID string `json:"externalId" binding:"required" example:"b7f5c2e0-4d1a-4a8e-9b1e-3f2d6c7a8e90"`
}

// JobAccepted reports the job a request landed on. Created is false when
// the request collapsed into an existing job.
type JobAccepted struct {
	JobID   string           `json:"jobId"   example:"9b0f6f0e-6a7c-4c1e-8a57-2b8d3d6c9f11"`
	Queue   string           `json:"queue"   example:"inventory-scan"`
	Status  domain.JobStatus `json:"status"  example:"waiting"`
	Created bool             `json:"created" example:"true"`
}

func accepted(j *domain.Job, created bool) JobAccepted {
	return JobAccepted{JobID: j.ID, Queue: j.Queue, Status: j.Status, Created: created}
}

// ConfigureAccount godoc
// @ID          configureAccount
// @Summary     Configure an account
// @Description Creates or replaces the role reference used to read the account's billing and inventory.
// @Tags        Accounts
// @Accept      json
// @Produce     json
// @Security    AdminToken
// @Param       id    path  string                            true "Account ID"
// @Param       body  body  handlers.ConfigureAccountRequest  true "Role reference"
// @Success     200  {object}  domain.AccountConfig
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid payload"
// @Failure     409  {object}  handlers.ErrorResponse  "External id already in use"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/accounts/{id} [put]
func (h *Handlers) ConfigureAccount(c *gin.Context) {
	var req ConfigureAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "roleArn and externalId are required")
		return
	}
	cfg, err := h.accounts.Configure(c.Request.Context(), c.Param("id"), req.RoleARN, req.ExternalID)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, cfg)
}

// GetAccount godoc
// @ID          getAccount
// @Summary     Account overview
// @Description Returns the configuration, latest cost snapshot, inventory size and open findings of an account.
// @Tags        Accounts
// @Produce     json
// @Security    AdminToken
// @Param       id  path  string  true  "Account ID"
// @Success     200  {object}  services.AccountOverview
// @Failure     404  {object}  handlers.ErrorResponse  "Account not configured"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/accounts/{id} [get]
func (h *Handlers) GetAccount(c *gin.Context) {
	ov, err := h.ops.Overview(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, ov)
}

// RequestCosts godoc
// @ID          requestCosts
// @Summary     Collect costs now
// @Description Enqueues a cost collection. Without Idempotency-Key, repeated requests on the same UTC day share one job with the daily schedule.
// @Tags        Jobs
// @Produce     json
// @Security    AdminToken
// @Param       id               path    string  true   "Account ID"
// @Param       Idempotency-Key  header  string  false  "Caller-chosen deduplication key"
// @Success     202  {object}  handlers.JobAccepted
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid Idempotency-Key"
// @Failure     404  {object}  handlers.ErrorResponse  "Account not configured"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/accounts/{id}/costs [post]
func (h *Handlers) RequestCosts(c *gin.Context) {
	key, _ := middleware.GetIdempotencyKey(c)
	j, created, err := h.ops.RequestCosts(c.Request.Context(), c.Param("id"), key)
	if err != nil {
		failErr(c, err, ErrCodeEnqueueFailed)
		return
	}
	ok(c, http.StatusAccepted, accepted(j, created))
}

// RequestScan godoc
// @ID          requestScan
// @Summary     Scan inventory now
// @Description Enqueues an inventory scan. A completed scan chains a discrepancy analysis.
// @Tags        Jobs
// @Produce     json
// @Security    AdminToken
// @Param       id               path    string  true   "Account ID"
// @Param       Idempotency-Key  header  string  false  "Caller-chosen deduplication key"
// @Success     202  {object}  handlers.JobAccepted
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid Idempotency-Key"
// @Failure     404  {object}  handlers.ErrorResponse  "Account not configured"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/accounts/{id}/scan [post]
func (h *Handlers) RequestScan(c *gin.Context) {
	key, _ := middleware.GetIdempotencyKey(c)
	j, created, err := h.ops.RequestScan(c.Request.Context(), c.Param("id"), key)
	if err != nil {
		failErr(c, err, ErrCodeEnqueueFailed)
		return
	}
	ok(c, http.StatusAccepted, accepted(j, created))
}
