package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/loan-query-api/internal/dto"
	"github.com/noah-isme/loan-query-api/internal/models"
	appErrors "github.com/noah-isme/loan-query-api/pkg/errors"
	"github.com/noah-isme/loan-query-api/pkg/response"
)

type queryService interface {
	Create(ctx context.Context, req dto.CreateQueryRequest, actor models.Actor) (*models.Query, error)
	Get(ctx context.Context, id string) (*models.Query, error)
	List(ctx context.Context, query dto.QueryListQuery) ([]models.Query, int, error)
	ProposeAction(ctx context.Context, queryID string, req dto.ProposeActionRequest, actor models.Actor) (*models.Query, error)
	Revert(ctx context.Context, queryID string, req dto.RemarkRequest, actor models.Actor) (*models.Query, error)
	Resolve(ctx context.Context, queryID string, req dto.RemarkRequest, actor models.Actor) (*models.Query, error)
}

// QueryHandler serves the operations dashboard query endpoints.
type QueryHandler struct {
	service queryService
}

// NewQueryHandler constructs the handler.
func NewQueryHandler(service queryService) *QueryHandler {
	return &QueryHandler{service: service}
}

func (h *QueryHandler) ready(c *gin.Context) bool {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "query service not configured"))
		return false
	}
	return true
}

// List godoc
// @Summary List queries
// @Tags Queries
// @Produce json
// @Param team query string false "Team filter (includes queries marked for both)"
// @Param status query string false "Comma separated statuses"
// @Param appNo query string false "Application number"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /queries [get]
func (h *QueryHandler) List(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	var query dto.QueryListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	items, total, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, items, total)
}

// Create godoc
// @Summary Raise a query
// @Tags Queries
// @Accept json
// @Produce json
// @Param payload body dto.CreateQueryRequest true "Query payload"
// @Success 201 {object} response.Envelope
// @Router /queries [post]
func (h *QueryHandler) Create(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	var req dto.CreateQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query payload"))
		return
	}
	q, err := h.service.Create(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, q)
}

// Get godoc
// @Summary Query detail
// @Tags Queries
// @Produce json
// @Param queryId path string true "Query ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /queries/{queryId} [get]
func (h *QueryHandler) Get(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	q, err := h.service.Get(c.Request.Context(), c.Param("queryId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, q)
}

// Propose godoc
// @Summary Propose an action for approval
// @Tags Queries
// @Accept json
// @Produce json
// @Param queryId path string true "Query ID"
// @Param payload body dto.ProposeActionRequest true "Proposal"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /queries/{queryId}/propose [post]
func (h *QueryHandler) Propose(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	var req dto.ProposeActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid proposal payload"))
		return
	}
	q, err := h.service.ProposeAction(c.Request.Context(), c.Param("queryId"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, q)
}

// Revert godoc
// @Summary Revert a deferred or OTC query to pending
// @Tags Queries
// @Accept json
// @Produce json
// @Param queryId path string true "Query ID"
// @Param payload body dto.RemarkRequest false "Remarks"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /queries/{queryId}/revert [post]
func (h *QueryHandler) Revert(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	req, ok := bindRemark(c)
	if !ok {
		return
	}
	q, err := h.service.Revert(c.Request.Context(), c.Param("queryId"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, q)
}

// Resolve godoc
// @Summary Resolve a pending query
// @Tags Queries
// @Accept json
// @Produce json
// @Param queryId path string true "Query ID"
// @Param payload body dto.RemarkRequest false "Remarks"
// @Success 200 {object} response.Envelope
// @Router /queries/{queryId}/resolve [post]
func (h *QueryHandler) Resolve(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	req, ok := bindRemark(c)
	if !ok {
		return
	}
	q, err := h.service.Resolve(c.Request.Context(), c.Param("queryId"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, q)
}

// bindRemark accepts an empty body.
func bindRemark(c *gin.Context) (dto.RemarkRequest, bool) {
	var req dto.RemarkRequest
	if c.Request.ContentLength == 0 {
		return req, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid remarks payload"))
		return req, false
	}
	return req, true
}
