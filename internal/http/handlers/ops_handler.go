package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
	"github.com/tbourn/go-spend-reconciler/internal/services"
	"github.com/tbourn/go-spend-reconciler/internal/utils"
)

const (
	defaultDeadLetterLimit = 50
	maxDeadLetterLimit     = 500

	defaultJobLimit = 100
	maxJobLimit     = 1000
)

// DeadLettersResponse wraps a page of dead letters.
type DeadLettersResponse struct {
	DeadLetters []domain.DeadLetter `json:"deadLetters"`
	Count       int                 `json:"count"`
}

// QueuesResponse lists job counts per queue.
type QueuesResponse struct {
	Queues []services.QueueDepth `json:"queues"`
}

// JobsResponse wraps a page of jobs of one queue.
type JobsResponse struct {
	Jobs  []domain.Job `json:"jobs"`
	Count int          `json:"count"`
}

// SchedulesResponse lists the registered recurring triggers.
type SchedulesResponse struct {
	Schedules []domain.Schedule `json:"schedules"`
}

// ListDeadLetters godoc
// @ID          listDeadLetters
// @Summary     List dead letters
// @Description Jobs that exhausted their attempts, newest first.
// @Tags        Queues
// @Produce     json
// @Security    AdminToken
// @Param       queue  query  string  false  "Source queue"
// @Param       limit  query  int     false  "Max rows (1-500)"  default(50)
// @Success     200  {object}  handlers.DeadLettersResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/dead-letters [get]
func (h *Handlers) ListDeadLetters(c *gin.Context) {
	limit := utils.BoundedInt(c.Query("limit"), defaultDeadLetterLimit, 1, maxDeadLetterLimit)
	dls, err := h.ops.DeadLetters(c.Request.Context(), c.Query("queue"), limit)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	if dls == nil {
		dls = []domain.DeadLetter{}
	}
	ok(c, http.StatusOK, DeadLettersResponse{DeadLetters: dls, Count: len(dls)})
}

// ListQueues godoc
// @ID          listQueues
// @Summary     Queue depth
// @Description Job counts per status for every work queue.
// @Tags        Queues
// @Produce     json
// @Security    AdminToken
// @Success     200  {object}  handlers.QueuesResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/queues [get]
func (h *Handlers) ListQueues(c *gin.Context) {
	qs, err := h.ops.QueueDepths(c.Request.Context())
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, QueuesResponse{Queues: qs})
}

// ListJobs godoc
// @ID          listJobs
// @Summary     List jobs of a queue
// @Description Jobs of one work queue, oldest first. The status filter is
// @Description case-insensitive; omit it to list every state.
// @Tags        Queues
// @Produce     json
// @Security    AdminToken
// @Param       queue   query  string  true   "Work queue"
// @Param       status  query  string  false  "waiting | active | completed | failed"
// @Param       limit   query  int     false  "Max rows (1-1000)"  default(100)
// @Success     200  {object}  handlers.JobsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown queue or status"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/jobs [get]
func (h *Handlers) ListJobs(c *gin.Context) {
	status := domain.JobStatus(strings.ToLower(strings.TrimSpace(c.Query("status"))))
	limit := utils.BoundedInt(c.Query("limit"), defaultJobLimit, 1, maxJobLimit)
	jobs, err := h.ops.Jobs(c.Request.Context(), c.Query("queue"), status, limit)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	if jobs == nil {
		jobs = []domain.Job{}
	}
	ok(c, http.StatusOK, JobsResponse{Jobs: jobs, Count: len(jobs)})
}

// GetJob godoc
// @ID          getJob
// @Summary     Get a job
// @Description One job with its attempts, last error and stored result.
// @Tags        Queues
// @Produce     json
// @Security    AdminToken
// @Param       jid  path  string  true  "Job ID"
// @Success     200  {object}  domain.Job
// @Failure     404  {object}  handlers.ErrorResponse  "Job not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/jobs/{jid} [get]
func (h *Handlers) GetJob(c *gin.Context) {
	j, err := h.ops.Job(c.Request.Context(), c.Param("jid"))
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, j)
}

// ListSchedules godoc
// @ID          listSchedules
// @Summary     Registered schedules
// @Description Recurring triggers registered at process start.
// @Tags        Queues
// @Produce     json
// @Security    AdminToken
// @Success     200  {object}  handlers.SchedulesResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/schedules [get]
func (h *Handlers) ListSchedules(c *gin.Context) {
	ss, err := h.ops.Schedules(c.Request.Context())
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	if ss == nil {
		ss = []domain.Schedule{}
	}
	ok(c, http.StatusOK, SchedulesResponse{Schedules: ss})
}
