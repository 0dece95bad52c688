package models

import "time"

// ApprovalStatus captures approval request states.
type ApprovalStatus string

const (
	ApprovalStatusPending     ApprovalStatus = "pending"
	ApprovalStatusApproved    ApprovalStatus = "approved"
	ApprovalStatusRejected    ApprovalStatus = "rejected"
	ApprovalStatusUnderReview ApprovalStatus = "under_review"
)

// IsTerminal reports whether the request can no longer be acted on.
func (s ApprovalStatus) IsTerminal() bool {
	return s == ApprovalStatusApproved || s == ApprovalStatusRejected
}

// SLAStatus is the derived urgency of a request.
type SLAStatus string

const (
	SLAOnTime  SLAStatus = "on-time"
	SLADueSoon SLAStatus = "due-soon"
	SLAOverdue SLAStatus = "overdue"
)

// ClassifySLA derives the SLA status of a request due at due.
func ClassifySLA(now, due time.Time, warn time.Duration) SLAStatus {
	switch {
	case !now.Before(due):
		return SLAOverdue
	case !now.Before(due.Add(-warn)):
		return SLADueSoon
	default:
		return SLAOnTime
	}
}

// ApprovalRequestType is the kind of decision requested.
const ApprovalRequestTypeQueryAction = "query_action"

// ApprovalRequest is a pending decision on a query's proposed action.
type ApprovalRequest struct {
	ID             string         `db:"id" json:"id"`
	QueryID        string         `db:"query_id" json:"queryId"`
	Type           string         `db:"type" json:"type"`
	ProposedAction ProposedAction `db:"proposed_action" json:"proposedAction"`
	RequestedBy    string         `db:"requested_by" json:"requestedBy"`
	RequesterTeam  string         `db:"requester_team" json:"requesterTeam"`
	Priority       Priority       `db:"priority" json:"priority"`
	Status         ApprovalStatus `db:"status" json:"status"`
	SubmittedAt    time.Time      `db:"submitted_at" json:"submittedAt"`
	DueDate        time.Time      `db:"due_date" json:"dueDate"`
	SLAStatus      SLAStatus      `db:"-" json:"slaStatus"`
	WorkflowID     *string        `db:"workflow_id" json:"workflowId,omitempty"`
	Approvers      StringList     `db:"approvers" json:"approvers"`
	ActedBy        *string        `db:"acted_by" json:"actedBy,omitempty"`
	ActedAt        *time.Time     `db:"acted_at" json:"actedAt,omitempty"`
	Comment        *string        `db:"comment" json:"comment,omitempty"`
	AppNo          string         `db:"app_no" json:"appNo"`
	CustomerName   string         `db:"customer_name" json:"customerName"`
}

// ApprovalFilter constrains approval listings.
type ApprovalFilter struct {
	Statuses []ApprovalStatus
	QueryID  string
	Limit    int
	Offset   int
}

// Matches applies the filter to an in-memory request.
func (f ApprovalFilter) Matches(req ApprovalRequest) bool {
	if f.QueryID != "" && req.QueryID != f.QueryID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, status := range f.Statuses {
		if req.Status == status {
			return true
		}
	}
	return false
}

// ApprovalCriteria selects requests for administrative removal. At least one
// field must be set.
type ApprovalCriteria struct {
	QueryID         string           `json:"queryId"`
	Statuses        []ApprovalStatus `json:"statuses"`
	RequestedBy     string           `json:"requestedBy"`
	SubmittedBefore *time.Time       `json:"submittedBefore"`
}

// Empty reports whether no criterion was given.
func (c ApprovalCriteria) Empty() bool {
	return c.QueryID == "" && len(c.Statuses) == 0 && c.RequestedBy == "" && c.SubmittedBefore == nil
}

// Matches applies the criteria to an in-memory request.
func (c ApprovalCriteria) Matches(req ApprovalRequest) bool {
	if c.Empty() {
		return false
	}
	if c.QueryID != "" && req.QueryID != c.QueryID {
		return false
	}
	if c.RequestedBy != "" && req.RequestedBy != c.RequestedBy {
		return false
	}
	if c.SubmittedBefore != nil && !req.SubmittedAt.Before(*c.SubmittedBefore) {
		return false
	}
	if len(c.Statuses) > 0 {
		for _, status := range c.Statuses {
			if req.Status == status {
				return true
			}
		}
		return false
	}
	return true
}

// ApprovalAct is the compare-and-set update that closes a request.
type ApprovalAct struct {
	ID      string
	Status  ApprovalStatus
	ActedBy string
	ActedAt time.Time
	Comment *string
}

// BulkActionResult reports the outcome for one request id of a bulk action.
type BulkActionResult struct {
	RequestID    string         `json:"requestId"`
	Success      bool           `json:"success"`
	Status       ApprovalStatus `json:"status,omitempty"`
	QueryID      string         `json:"queryId,omitempty"`
	QueryStatus  QueryStatus    `json:"queryStatus,omitempty"`
	QueryUpdated bool           `json:"queryUpdated"`
	Error        string         `json:"error,omitempty"`
}
