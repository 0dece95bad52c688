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

type salesQueryService interface {
	ListByTeam(ctx context.Context, team models.Team, statusFilter string) ([]models.Query, int, error)
	SalesAction(ctx context.Context, req dto.SalesActionRequest, actor models.Actor) (*models.Query, error)
}

// SalesHandler serves the sales dashboard.
type SalesHandler struct {
	service salesQueryService
}

// NewSalesHandler constructs the handler.
func NewSalesHandler(service salesQueryService) *SalesHandler {
	return &SalesHandler{service: service}
}

// List godoc
// @Summary Queries routed to sales
// @Tags Sales
// @Produce json
// @Param status query string false "Comma separated statuses, legacy names accepted"
// @Success 200 {object} response.Envelope
// @Router /queries/sales [get]
func (h *SalesHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "query service not configured"))
		return
	}
	items, total, err := h.service.ListByTeam(c.Request.Context(), models.TeamSales, c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, items, total)
}

// Act godoc
// @Summary Propose a sales decision
// @Tags Sales
// @Accept json
// @Produce json
// @Param payload body dto.SalesActionRequest true "Sales action"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /queries/sales [patch]
func (h *SalesHandler) Act(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "query service not configured"))
		return
	}
	var req dto.SalesActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sales action payload"))
		return
	}
	q, err := h.service.SalesAction(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, q)
}
