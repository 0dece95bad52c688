package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/loan-query-api/internal/dto"
	"github.com/noah-isme/loan-query-api/internal/models"
	appErrors "github.com/noah-isme/loan-query-api/pkg/errors"
	"github.com/noah-isme/loan-query-api/pkg/response"
)

// ResetKeyHeader carries the plaintext reset key checked against the configured hash.
const ResetKeyHeader = "X-Reset-Key"

type approvalService interface {
	List(ctx context.Context, query dto.ApprovalListQuery) ([]models.ApprovalRequest, error)
	BulkAct(ctx context.Context, req dto.BulkApprovalRequest, approver models.Actor) ([]models.BulkActionResult, error)
	AuthorizeReset(confirm bool, key string) error
	ClearAll(ctx context.Context) (int64, error)
	RemoveByCriteria(ctx context.Context, criteria models.ApprovalCriteria) (int64, error)
}

// ApprovalHandler serves the approver dashboard and the administrative reset.
type ApprovalHandler struct {
	service approvalService
}

// NewApprovalHandler constructs the handler.
func NewApprovalHandler(service approvalService) *ApprovalHandler {
	return &ApprovalHandler{service: service}
}

func (h *ApprovalHandler) ready(c *gin.Context) bool {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "approval service not configured"))
		return false
	}
	return true
}

// List godoc
// @Summary List approval requests
// @Tags Approvals
// @Produce json
// @Param status query string false "pending, approved or rejected"
// @Param queryId query string false "Query ID"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /approvals [get]
func (h *ApprovalHandler) List(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	var query dto.ApprovalListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	items, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, items, len(items))
}

// BulkAct godoc
// @Summary Approve or reject approval requests
// @Description Each request is processed independently; per-request failures are reported in the result list.
// @Tags Approvals
// @Accept json
// @Produce json
// @Param payload body dto.BulkApprovalRequest true "Bulk action"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /approvals [post]
func (h *ApprovalHandler) BulkAct(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	var req dto.BulkApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid approval payload"))
		return
	}
	results, err := h.service.BulkAct(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, results, len(results))
}

// ClearAll godoc
// @Summary Delete every approval request
// @Tags Approvals
// @Accept json
// @Produce json
// @Param confirm query bool false "Must be true unless sent in the body"
// @Param X-Reset-Key header string false "Reset key"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /clear-approvals [delete]
func (h *ApprovalHandler) ClearAll(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	req, ok := bindReset(c)
	if !ok {
		return
	}
	if err := h.service.AuthorizeReset(req.Confirm, c.GetHeader(ResetKeyHeader)); err != nil {
		response.Error(c, err)
		return
	}
	deleted, err := h.service.ClearAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": deleted})
}

// RemoveByCriteria godoc
// @Summary Delete approval requests matching criteria
// @Tags Approvals
// @Accept json
// @Produce json
// @Param payload body dto.ClearApprovalsRequest true "Criteria"
// @Param X-Reset-Key header string false "Reset key"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /clear-approvals [post]
func (h *ApprovalHandler) RemoveByCriteria(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	req, ok := bindReset(c)
	if !ok {
		return
	}
	if err := h.service.AuthorizeReset(req.Confirm, c.GetHeader(ResetKeyHeader)); err != nil {
		response.Error(c, err)
		return
	}
	deleted, err := h.service.RemoveByCriteria(c.Request.Context(), req.Criteria)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": deleted})
}

// bindReset reads the optional body; a confirm query parameter also counts.
func bindReset(c *gin.Context) (dto.ClearApprovalsRequest, bool) {
	var req dto.ClearApprovalsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid reset payload"))
			return req, false
		}
	}
	if raw := c.Query("confirm"); raw != "" {
		confirm, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "confirm must be a boolean"))
			return req, false
		}
		req.Confirm = req.Confirm || confirm
	}
	return req, true
}
