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

type workflowService interface {
	List(ctx context.Context) ([]models.WorkflowRule, error)
	Create(ctx context.Context, req dto.CreateWorkflowRuleRequest) (*models.WorkflowRule, error)
}

// WorkflowHandler exposes approval routing rules.
type WorkflowHandler struct {
	service workflowService
}

// NewWorkflowHandler constructs the handler.
func NewWorkflowHandler(service workflowService) *WorkflowHandler {
	return &WorkflowHandler{service: service}
}

// List godoc
// @Summary List workflow rules
// @Tags Workflows
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /workflows [get]
func (h *WorkflowHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "workflow service not configured"))
		return
	}
	rules, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, rules, len(rules))
}

// Create godoc
// @Summary Create a workflow rule
// @Tags Workflows
// @Accept json
// @Produce json
// @Param payload body dto.CreateWorkflowRuleRequest true "Rule"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /workflows [post]
func (h *WorkflowHandler) Create(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "workflow service not configured"))
		return
	}
	var req dto.CreateWorkflowRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid workflow payload"))
		return
	}
	rule, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, rule)
}
