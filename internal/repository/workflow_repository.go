package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/loan-query-api/internal/models"
)

const workflowColumns = `id, name, description, triggers, approvers, sla_hours, priority, active, position, created_at`

// WorkflowRepository persists workflow rules.
type WorkflowRepository struct {
	db *sqlx.DB
}

// NewWorkflowRepository constructs the repository.
func NewWorkflowRepository(db *sqlx.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// ListRules returns rules in evaluation order.
func (r *WorkflowRepository) ListRules(ctx context.Context, activeOnly bool) ([]models.WorkflowRule, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflow_rules`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY position ASC, created_at ASC`
	var rules []models.WorkflowRule
	if err := r.db.SelectContext(ctx, &rules, query); err != nil {
		return nil, fmt.Errorf("list workflow rules: %w", err)
	}
	return rules, nil
}

// UpsertRule inserts a rule or replaces the rule with the same name.
func (r *WorkflowRepository) UpsertRule(ctx context.Context, rule *models.WorkflowRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO workflow_rules (` + workflowColumns + `)
	VALUES (:id, :name, :description, :triggers, :approvers, :sla_hours, :priority, :active, :position, :created_at)
	ON CONFLICT (name) DO UPDATE SET
		description = EXCLUDED.description,
		triggers = EXCLUDED.triggers,
		approvers = EXCLUDED.approvers,
		sla_hours = EXCLUDED.sla_hours,
		priority = EXCLUDED.priority,
		active = EXCLUDED.active,
		position = EXCLUDED.position`
	if _, err := r.db.NamedExecContext(ctx, query, rule); err != nil {
		return fmt.Errorf("upsert workflow rule: %w", err)
	}
	return nil
}
