// Discrepancy HTTP handlers.
//
//   - GET /admin/accounts/{id}/discrepancies                 (list, ?status=)
//   - PUT /admin/accounts/{id}/discrepancies/{did}/status    (resolve / ignore / reopen)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
)

// SetStatusRequest moves a finding to a new status.
type SetStatusRequest struct {
	Status string `json:"status" binding:"required" example:"RESOLVED"`
}

// ListDiscrepanciesResponse wraps the findings of one account.
type ListDiscrepanciesResponse struct {
	Discrepancies []domain.Discrepancy `json:"discrepancies"`
	Count         int                  `json:"count"`
}

// ListDiscrepancies godoc
// @ID          listDiscrepancies
// @Summary     List findings
// @Description Lists the account's discrepancies, newest first, optionally filtered by status.
// @Tags        Discrepancies
// @Produce     json
// @Security    AdminToken
// @Param       id      path   string  true   "Account ID"
// @Param       status  query  string  false  "ACTIVE, RESOLVED or IGNORED"
// @Success     200  {object}  handlers.ListDiscrepanciesResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid status"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/accounts/{id}/discrepancies [get]
func (h *Handlers) ListDiscrepancies(c *gin.Context) {
	status := domain.Status(strings.ToUpper(strings.TrimSpace(c.Query("status"))))
	ds, err := h.discrepancies.List(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	if ds == nil {
		ds = []domain.Discrepancy{}
	}
	ok(c, http.StatusOK, ListDiscrepanciesResponse{Discrepancies: ds, Count: len(ds)})
}

// SetDiscrepancyStatus godoc
// @ID          setDiscrepancyStatus
// @Summary     Update finding status
// @Description RESOLVED and IGNORED suppress the finding on later analyses; ACTIVE lifts the suppression.
// @Tags        Discrepancies
// @Accept      json
// @Security    AdminToken
// @Param       id    path  string                     true  "Account ID"
// @Param       did   path  string                     true  "Discrepancy ID"
// @Param       body  body  handlers.SetStatusRequest  true  "New status"
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid status"
// @Failure     404  {object}  handlers.ErrorResponse  "Discrepancy not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/accounts/{id}/discrepancies/{did}/status [put]
func (h *Handlers) SetDiscrepancyStatus(c *gin.Context) {
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status is required")
		return
	}
	err := h.discrepancies.SetStatus(c.Request.Context(), c.Param("id"), c.Param("did"), domain.Status(req.Status))
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}
