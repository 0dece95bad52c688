package dto

import "github.com/noah-isme/loan-query-api/internal/models"

// BulkApprovalRequest acts on several approval requests at once.
type BulkApprovalRequest struct {
	Action       string   `json:"action" validate:"required,oneof=approve reject"`
	RequestIDs   []string `json:"requestIds" validate:"required,min=1,dive,required"`
	Comment      string   `json:"comment"`
	ApproverName string   `json:"approverName"`
}

// ApprovalListQuery mirrors supported listing filters.
type ApprovalListQuery struct {
	Status  string `form:"status"`
	QueryID string `form:"queryId"`
	Limit   int    `form:"limit"`
}

// ClearApprovalsRequest is the administrative reset payload.
type ClearApprovalsRequest struct {
	Confirm  bool                    `json:"confirm"`
	Criteria models.ApprovalCriteria `json:"criteria"`
}
