package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/loan-query-api/internal/models"
)

const queryColumns = `id, app_no, customer_name, branch, query_text, status, marked_for_team, remarks,
       proposed_action, priority, created_by, created_at, updated_at, resolved_by, resolved_at,
       approved_by, approval_date, approval_status, approval_request_id`

// QueryRepository persists queries.
type QueryRepository struct {
	db *sqlx.DB
}

// NewQueryRepository constructs the repository.
func NewQueryRepository(db *sqlx.DB) *QueryRepository {
	return &QueryRepository{db: db}
}

// Create inserts a new query row.
func (r *QueryRepository) Create(ctx context.Context, q *models.Query) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now
	}
	if q.UpdatedAt.IsZero() {
		q.UpdatedAt = q.CreatedAt
	}
	if q.Status == "" {
		q.Status = models.QueryStatusPending
	}
	const query = `INSERT INTO queries
	(id, app_no, customer_name, branch, query_text, status, marked_for_team, remarks, proposed_action, priority, created_by, created_at, updated_at)
	VALUES (:id, :app_no, :customer_name, :branch, :query_text, :status, :marked_for_team, :remarks, :proposed_action, :priority, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, q); err != nil {
		return fmt.Errorf("create query: %w", err)
	}
	return nil
}

// FindByID fetches a query by identifier.
func (r *QueryRepository) FindByID(ctx context.Context, id string) (*models.Query, error) {
	var q models.Query
	if err := r.db.GetContext(ctx, &q, `SELECT `+queryColumns+` FROM queries WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &q, nil
}

// List returns queries matching the filter (newest first) and the total count.
func (r *QueryRepository) List(ctx context.Context, filter models.QueryFilter) ([]models.Query, int, error) {
	args := make([]interface{}, 0, 6)
	conditions := make([]string, 0, 3)

	if filter.Team != "" {
		args = append(args, filter.Team)
		if filter.IncludeBoth {
			args = append(args, models.TeamBoth)
			conditions = append(conditions, fmt.Sprintf("marked_for_team IN ($%d, $%d)", len(args)-1, len(args)))
		} else {
			conditions = append(conditions, fmt.Sprintf("marked_for_team = $%d", len(args)))
		}
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.AppNo != "" {
		args = append(args, filter.AppNo)
		conditions = append(conditions, fmt.Sprintf("app_no = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM queries"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count queries: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf("SELECT %s FROM queries%s ORDER BY created_at DESC LIMIT %d OFFSET %d", queryColumns, where, limit, offset)

	var queries []models.Query
	if err := r.db.SelectContext(ctx, &queries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list queries: %w", err)
	}
	return queries, total, nil
}

// Transition applies a compare-and-set status change and returns the updated
// row. It returns sql.ErrNoRows when the query is missing or its status is not
// in t.From.
func (r *QueryRepository) Transition(ctx context.Context, t models.QueryTransition) (*models.Query, error) {
	if len(t.From) == 0 {
		return nil, fmt.Errorf("transition %s: no source status", t.ID)
	}
	args := make([]interface{}, 0, 16)
	set := make([]string, 0, 12)
	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	at := t.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	add("updated_at", at)
	if t.To != "" {
		add("status", t.To)
	}
	if t.Remark != nil {
		remark, err := models.Remarks{*t.Remark}.Value()
		if err != nil {
			return nil, fmt.Errorf("encode remark: %w", err)
		}
		args = append(args, remark)
		set = append(set, fmt.Sprintf("remarks = COALESCE(remarks, '[]'::jsonb) || $%d::jsonb", len(args)))
	}
	if t.ClearApproval {
		set = append(set, "proposed_action = NULL", "approved_by = NULL", "approval_date = NULL", "approval_status = NULL", "approval_request_id = NULL")
	}
	if t.ProposedAction != nil {
		add("proposed_action", *t.ProposedAction)
	}
	if t.MarkedForTeam != nil {
		add("marked_for_team", *t.MarkedForTeam)
	}
	if t.ApprovedBy != nil {
		add("approved_by", *t.ApprovedBy)
	}
	if t.ApprovalDate != nil {
		add("approval_date", *t.ApprovalDate)
	}
	if t.ApprovalStatus != nil {
		add("approval_status", *t.ApprovalStatus)
	}
	if t.ApprovalRequestID != nil {
		add("approval_request_id", *t.ApprovalRequestID)
	}
	if t.ResolvedBy != nil {
		add("resolved_by", *t.ResolvedBy)
	}
	if t.ResolvedAt != nil {
		add("resolved_at", *t.ResolvedAt)
	}

	args = append(args, t.ID)
	idPos := len(args)
	placeholders := make([]string, len(t.From))
	for i, status := range t.From {
		args = append(args, status)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}

	query := fmt.Sprintf("UPDATE queries SET %s WHERE id = $%d AND status IN (%s) RETURNING %s",
		strings.Join(set, ", "), idPos, strings.Join(placeholders, ","), queryColumns)

	var q models.Query
	if err := r.db.GetContext(ctx, &q, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("transition query %s: %w", t.ID, err)
	}
	return &q, nil
}
