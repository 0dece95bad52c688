package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// QueryStatus is the canonical lifecycle state of a query.
type QueryStatus string

const (
	QueryStatusPending            QueryStatus = "pending"
	QueryStatusWaitingForApproval QueryStatus = "waiting-for-approval"
	QueryStatusApproved           QueryStatus = "approved"
	QueryStatusDeferred           QueryStatus = "deferred"
	QueryStatusOTC                QueryStatus = "otc"
	QueryStatusResolved           QueryStatus = "resolved"
	QueryStatusRejected           QueryStatus = "rejected"
)

var queryStatuses = map[string]QueryStatus{
	"pending":              QueryStatusPending,
	"waiting-for-approval": QueryStatusWaitingForApproval,
	"approved":             QueryStatusApproved,
	"deferred":             QueryStatusDeferred,
	"otc":                  QueryStatusOTC,
	"resolved":             QueryStatusResolved,
	"rejected":             QueryStatusRejected,

	// legacy spellings still present in stored documents and older clients
	"pending-approval": QueryStatusWaitingForApproval,
	"deferral":         QueryStatusDeferred,
}

// ParseQueryStatus maps raw (possibly legacy) status strings to the canonical set.
func ParseQueryStatus(raw string) (QueryStatus, bool) {
	status, ok := queryStatuses[strings.ToLower(strings.TrimSpace(raw))]
	return status, ok
}

// IsTerminal reports whether the status ends the approval flow and triggers archival.
func (s QueryStatus) IsTerminal() bool {
	switch s {
	case QueryStatusApproved, QueryStatusDeferred, QueryStatusOTC, QueryStatusResolved, QueryStatusRejected:
		return true
	default:
		return false
	}
}

// Revertible reports whether an authorised actor may send the query back to pending.
func (s QueryStatus) Revertible() bool {
	return s == QueryStatusDeferred || s == QueryStatusOTC
}

// Scan translates legacy values read from storage.
func (s *QueryStatus) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*s = ""
		return nil
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return fmt.Errorf("unsupported query status source %T", src)
	}
	if status, ok := ParseQueryStatus(raw); ok {
		*s = status
		return nil
	}
	*s = QueryStatus(raw)
	return nil
}

// Value implements driver.Valuer.
func (s QueryStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Team is the routing target of a query.
type Team string

const (
	TeamSales      Team = "sales"
	TeamCredit     Team = "credit"
	TeamBoth       Team = "both"
	TeamOperations Team = "operations"
)

// ProposedAction is the decision a team proposes for approval.
type ProposedAction string

const (
	ProposedActionApprove  ProposedAction = "approve"
	ProposedActionDeferral ProposedAction = "deferral"
	ProposedActionOTC      ProposedAction = "otc"
)

// ParseProposedAction accepts the dashboard verbs (approve, defer, otc) and stored values.
func ParseProposedAction(raw string) (ProposedAction, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approve", "approved":
		return ProposedActionApprove, true
	case "defer", "deferral", "deferred":
		return ProposedActionDeferral, true
	case "otc":
		return ProposedActionOTC, true
	default:
		return "", false
	}
}

// ApprovalOutcome is the result applied to a query once an approver acts.
type ApprovalOutcome string

const (
	OutcomeApprove ApprovalOutcome = "approve"
	OutcomeDefer   ApprovalOutcome = "defer"
	OutcomeOTC     ApprovalOutcome = "otc"
	OutcomeReject  ApprovalOutcome = "reject"
)

// OutcomeFor maps an approved proposal to the outcome it produces.
func OutcomeFor(action ProposedAction) ApprovalOutcome {
	switch action {
	case ProposedActionDeferral:
		return OutcomeDefer
	case ProposedActionOTC:
		return OutcomeOTC
	default:
		return OutcomeApprove
	}
}

// Status returns the query status an outcome leads to.
func (o ApprovalOutcome) Status() (QueryStatus, bool) {
	switch o {
	case OutcomeApprove:
		return QueryStatusApproved, true
	case OutcomeDefer:
		return QueryStatusDeferred, true
	case OutcomeOTC:
		return QueryStatusOTC, true
	case OutcomeReject:
		return QueryStatusRejected, true
	default:
		return "", false
	}
}

// Priority ranks queries and approval requests.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Remark is one entry of the ordered remark trail of a query.
type Remark struct {
	By     string    `json:"by"`
	Role   string    `json:"role,omitempty"`
	Team   string    `json:"team,omitempty"`
	Action string    `json:"action"`
	Text   string    `json:"text,omitempty"`
	At     time.Time `json:"at"`
}

// Remarks is stored as a JSONB array.
type Remarks []Remark

// Value implements driver.Valuer.
func (r Remarks) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	return jsonValue([]Remark(r))
}

// Scan implements sql.Scanner.
func (r *Remarks) Scan(src interface{}) error {
	var out []Remark
	if err := jsonScan(src, &out); err != nil {
		return err
	}
	*r = out
	return nil
}

// Query is a unit of work raised by operations against a loan application.
type Query struct {
	ID                string          `db:"id" json:"id"`
	AppNo             string          `db:"app_no" json:"appNo"`
	CustomerName      string          `db:"customer_name" json:"customerName"`
	Branch            string          `db:"branch" json:"branch"`
	QueryText         string          `db:"query_text" json:"queryText"`
	Status            QueryStatus     `db:"status" json:"status"`
	MarkedForTeam     Team            `db:"marked_for_team" json:"markedForTeam"`
	Remarks           Remarks         `db:"remarks" json:"remarks"`
	ProposedAction    *ProposedAction `db:"proposed_action" json:"proposedAction,omitempty"`
	Priority          Priority        `db:"priority" json:"priority"`
	CreatedBy         string          `db:"created_by" json:"createdBy"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updatedAt"`
	ResolvedBy        *string         `db:"resolved_by" json:"resolvedBy,omitempty"`
	ResolvedAt        *time.Time      `db:"resolved_at" json:"resolvedAt,omitempty"`
	ApprovedBy        *string         `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovalDate      *time.Time      `db:"approval_date" json:"approvalDate,omitempty"`
	ApprovalStatus    *string         `db:"approval_status" json:"approvalStatus,omitempty"`
	ApprovalRequestID *string         `db:"approval_request_id" json:"approvalRequestId,omitempty"`
}

// QueryFilter constrains query listings.
type QueryFilter struct {
	Team        Team
	IncludeBoth bool
	Statuses    []QueryStatus
	AppNo       string
	Limit       int
	Offset      int
}

// QueryTransition describes one compare-and-set status change. It applies
// only while the stored status is one of From. An empty To keeps the status.
type QueryTransition struct {
	ID                string
	From              []QueryStatus
	To                QueryStatus
	Remark            *Remark
	ProposedAction    *ProposedAction
	MarkedForTeam     *Team
	ApprovedBy        *string
	ApprovalDate      *time.Time
	ApprovalStatus    *string
	ApprovalRequestID *string
	ResolvedBy        *string
	ResolvedAt        *time.Time
	ClearApproval     bool
	At                time.Time
}

// Apply mutates q in memory the same way the SQL transition does.
func (t QueryTransition) Apply(q *Query) {
	if t.To != "" {
		q.Status = t.To
	}
	if t.Remark != nil {
		q.Remarks = append(q.Remarks, *t.Remark)
	}
	if t.ClearApproval {
		q.ProposedAction = nil
		q.ApprovedBy = nil
		q.ApprovalDate = nil
		q.ApprovalStatus = nil
		q.ApprovalRequestID = nil
	}
	if t.ProposedAction != nil {
		action := *t.ProposedAction
		q.ProposedAction = &action
	}
	if t.MarkedForTeam != nil {
		q.MarkedForTeam = *t.MarkedForTeam
	}
	if t.ApprovedBy != nil {
		q.ApprovedBy = t.ApprovedBy
	}
	if t.ApprovalDate != nil {
		q.ApprovalDate = t.ApprovalDate
	}
	if t.ApprovalStatus != nil {
		q.ApprovalStatus = t.ApprovalStatus
	}
	if t.ApprovalRequestID != nil {
		q.ApprovalRequestID = t.ApprovalRequestID
	}
	if t.ResolvedBy != nil {
		q.ResolvedBy = t.ResolvedBy
	}
	if t.ResolvedAt != nil {
		q.ResolvedAt = t.ResolvedAt
	}
	q.UpdatedAt = t.At
}

// Allows reports whether the transition may run against status.
func (t QueryTransition) Allows(status QueryStatus) bool {
	for _, from := range t.From {
		if from == status {
			return true
		}
	}
	return false
}
