package models

import (
	"database/sql/driver"
	"strings"
	"time"
)

// TriggerOperator compares a request field against a trigger value.
type TriggerOperator string

const (
	OperatorEquals    TriggerOperator = "equals"
	OperatorNotEquals TriggerOperator = "not_equals"
	OperatorContains  TriggerOperator = "contains"
	OperatorIn        TriggerOperator = "in"
)

// WorkflowTrigger is one predicate of a workflow rule.
type WorkflowTrigger struct {
	Field    string          `json:"field" yaml:"field" validate:"required,oneof=proposedAction markedForTeam branch type priority"`
	Operator TriggerOperator `json:"operator" yaml:"operator" validate:"required,oneof=equals not_equals contains in"`
	Value    string          `json:"value" yaml:"value"`
}

// Matches evaluates the trigger against the request fields. Comparison is
// case-insensitive; "in" takes a comma separated list.
func (t WorkflowTrigger) Matches(fields map[string]string) bool {
	actual := strings.ToLower(strings.TrimSpace(fields[t.Field]))
	expected := strings.ToLower(strings.TrimSpace(t.Value))
	switch t.Operator {
	case OperatorEquals:
		return actual == expected
	case OperatorNotEquals:
		return actual != expected
	case OperatorContains:
		return strings.Contains(actual, expected)
	case OperatorIn:
		for _, candidate := range strings.Split(expected, ",") {
			if strings.TrimSpace(candidate) == actual {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// WorkflowTriggers is stored as a JSONB array.
type WorkflowTriggers []WorkflowTrigger

// Value implements driver.Valuer.
func (t WorkflowTriggers) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	return jsonValue([]WorkflowTrigger(t))
}

// Scan implements sql.Scanner.
func (t *WorkflowTriggers) Scan(src interface{}) error {
	var out []WorkflowTrigger
	if err := jsonScan(src, &out); err != nil {
		return err
	}
	*t = out
	return nil
}

// WorkflowRule routes approval requests to an approver chain with an SLA.
type WorkflowRule struct {
	ID          string           `db:"id" json:"id" yaml:"id"`
	Name        string           `db:"name" json:"name" yaml:"name"`
	Description string           `db:"description" json:"description" yaml:"description"`
	Triggers    WorkflowTriggers `db:"triggers" json:"triggers" yaml:"triggers"`
	Approvers   StringList       `db:"approvers" json:"approvers" yaml:"approvers"`
	SLAHours    int              `db:"sla_hours" json:"slaHours" yaml:"slaHours"`
	Priority    Priority         `db:"priority" json:"priority" yaml:"priority"`
	Active      bool             `db:"active" json:"active" yaml:"active"`
	Position    int              `db:"position" json:"position" yaml:"position"`
	CreatedAt   time.Time        `db:"created_at" json:"createdAt" yaml:"-"`
}

// Matches reports whether the rule is active and every trigger holds.
func (r WorkflowRule) Matches(fields map[string]string) bool {
	if !r.Active {
		return false
	}
	for _, trigger := range r.Triggers {
		if !trigger.Matches(fields) {
			return false
		}
	}
	return true
}
