package dto

import "github.com/noah-isme/loan-query-api/internal/models"

// CreateQueryRequest payload raised by operations.
type CreateQueryRequest struct {
	AppNo         string `json:"appNo" validate:"required"`
	CustomerName  string `json:"customerName" validate:"required"`
	Branch        string `json:"branch"`
	QueryText     string `json:"queryText" validate:"required"`
	MarkedForTeam string `json:"markedForTeam" validate:"required,oneof=sales credit both operations"`
	Priority      string `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	CreatedBy     string `json:"createdBy"`
}

// ProposeActionRequest proposes a decision for approval.
type ProposeActionRequest struct {
	Action  string `json:"action" validate:"required"`
	Remarks string `json:"remarks"`
	Actor   string `json:"actor"`
	Team    string `json:"team"`
}

// SalesActionRequest is the sales dashboard PATCH payload.
type SalesActionRequest struct {
	QueryID  models.QueryRef `json:"queryId" validate:"required"`
	Action   string          `json:"action" validate:"required,oneof=approve defer otc"`
	Remarks  string          `json:"remarks"`
	AssignTo string          `json:"assignTo" validate:"omitempty,oneof=sales credit both operations"`
	Actor    string          `json:"actor"`
}

// RemarkRequest carries the free-text remark of revert/resolve actions.
type RemarkRequest struct {
	Remarks string `json:"remarks"`
	Actor   string `json:"actor"`
}

// QueryListQuery mirrors supported listing filters.
type QueryListQuery struct {
	Team   string `form:"team"`
	Status string `form:"status"`
	AppNo  string `form:"appNo"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}
