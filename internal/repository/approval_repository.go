package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/loan-query-api/internal/models"
)

const approvalColumns = `id, query_id, type, proposed_action, requested_by, requester_team, priority, status,
       submitted_at, due_date, workflow_id, approvers, acted_by, acted_at, comment, app_no, customer_name`

// ApprovalRepository persists approval requests.
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository constructs the repository.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// CreateApproval inserts a request.
func (r *ApprovalRepository) CreateApproval(ctx context.Context, req *models.ApprovalRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO approval_requests
	(id, query_id, type, proposed_action, requested_by, requester_team, priority, status, submitted_at, due_date, workflow_id, approvers, app_no, customer_name)
	VALUES (:id, :query_id, :type, :proposed_action, :requested_by, :requester_team, :priority, :status, :submitted_at, :due_date, :workflow_id, :approvers, :app_no, :customer_name)
	ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create approval request: %w", err)
	}
	return nil
}

// FindApproval fetches a request by id.
func (r *ApprovalRepository) FindApproval(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	var req models.ApprovalRequest
	if err := r.db.GetContext(ctx, &req, `SELECT `+approvalColumns+` FROM approval_requests WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// LatestPendingApproval returns the newest non-terminal request for a query.
func (r *ApprovalRepository) LatestPendingApproval(ctx context.Context, queryID string) (*models.ApprovalRequest, error) {
	const query = `SELECT ` + approvalColumns + ` FROM approval_requests
	WHERE query_id = $1 AND status IN ('pending', 'under_review')
	ORDER BY submitted_at DESC LIMIT 1`
	var req models.ApprovalRequest
	if err := r.db.GetContext(ctx, &req, query, queryID); err != nil {
		return nil, err
	}
	return &req, nil
}

// ListApprovals returns requests matching the filter, newest first.
func (r *ApprovalRepository) ListApprovals(ctx context.Context, filter models.ApprovalFilter) ([]models.ApprovalRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(`SELECT ` + approvalColumns + ` FROM approval_requests`)

	conditions := make([]string, 0, 2)
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.QueryID != "" {
		args = append(args, filter.QueryID)
		conditions = append(conditions, fmt.Sprintf("query_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY submitted_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d", limit))

	var out []models.ApprovalRequest
	if err := r.db.SelectContext(ctx, &out, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list approval requests: %w", err)
	}
	return out, nil
}

// MarkApprovalActed closes a pending request. It returns sql.ErrNoRows when
// the request is missing or already terminal.
func (r *ApprovalRepository) MarkApprovalActed(ctx context.Context, act models.ApprovalAct) (*models.ApprovalRequest, error) {
	const query = `UPDATE approval_requests
	SET status = $1, acted_by = $2, acted_at = $3, comment = $4
	WHERE id = $5 AND status IN ('pending', 'under_review')
	RETURNING ` + approvalColumns
	var req models.ApprovalRequest
	if err := r.db.GetContext(ctx, &req, query, act.Status, act.ActedBy, act.ActedAt, act.Comment, act.ID); err != nil {
		return nil, err
	}
	return &req, nil
}

// DeleteAllApprovals removes every request.
func (r *ApprovalRepository) DeleteAllApprovals(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM approval_requests`)
	if err != nil {
		return 0, fmt.Errorf("clear approval requests: %w", err)
	}
	return res.RowsAffected()
}

// DeleteApprovalsByCriteria removes requests matching every given criterion.
func (r *ApprovalRepository) DeleteApprovalsByCriteria(ctx context.Context, criteria models.ApprovalCriteria) (int64, error) {
	if criteria.Empty() {
		return 0, nil
	}
	args := make([]interface{}, 0, 6)
	conditions := make([]string, 0, 4)
	if criteria.QueryID != "" {
		args = append(args, criteria.QueryID)
		conditions = append(conditions, fmt.Sprintf("query_id = $%d", len(args)))
	}
	if criteria.RequestedBy != "" {
		args = append(args, criteria.RequestedBy)
		conditions = append(conditions, fmt.Sprintf("requested_by = $%d", len(args)))
	}
	if criteria.SubmittedBefore != nil {
		args = append(args, *criteria.SubmittedBefore)
		conditions = append(conditions, fmt.Sprintf("submitted_at < $%d", len(args)))
	}
	if len(criteria.Statuses) > 0 {
		placeholders := make([]string, len(criteria.Statuses))
		for i, status := range criteria.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM approval_requests WHERE "+strings.Join(conditions, " AND "), args...)
	if err != nil {
		return 0, fmt.Errorf("remove approval requests: %w", err)
	}
	return res.RowsAffected()
}
