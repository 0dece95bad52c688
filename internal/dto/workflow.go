package dto

import "github.com/noah-isme/loan-query-api/internal/models"

// CreateWorkflowRuleRequest defines a workflow routing rule.
type CreateWorkflowRuleRequest struct {
	Name        string                   `json:"name" validate:"required"`
	Description string                   `json:"description"`
	Triggers    []models.WorkflowTrigger `json:"triggers" validate:"dive"`
	Approvers   []string                 `json:"approvers" validate:"required,min=1,dive,required"`
	SLAHours    int                      `json:"slaHours" validate:"omitempty,min=1"`
	Priority    string                   `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Active      *bool                    `json:"active"`
	Position    int                      `json:"position"`
}
