package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/loan-query-api/internal/models"
)

const (
	chatMessageColumns = `id, query_id, message, sender, sender_role, team, timestamp, is_system_message, action_type`
	chatArchiveColumns = `id, query_id, app_no, customer_name, branch, marked_for_team, query_status, archive_reason,
       archived_by, messages, message_count, archived_at`
)

// ChatRepository persists chat messages and their per-query archives.
type ChatRepository struct {
	db *sqlx.DB
}

// NewChatRepository constructs the repository.
func NewChatRepository(db *sqlx.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// FindDuplicateMessage returns a stored message with the same query, text and
// sender within the window around msg.Timestamp.
func (r *ChatRepository) FindDuplicateMessage(ctx context.Context, msg models.ChatMessage, within time.Duration) (*models.ChatMessage, error) {
	const query = `SELECT ` + chatMessageColumns + ` FROM chat_messages
	WHERE query_id = $1 AND message = $2 AND sender = $3 AND timestamp BETWEEN $4 AND $5
	ORDER BY timestamp LIMIT 1`
	var existing models.ChatMessage
	err := r.db.GetContext(ctx, &existing, query,
		models.NormalizeQueryID(msg.QueryID), msg.Message, msg.Sender,
		msg.Timestamp.Add(-within), msg.Timestamp.Add(within))
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

// SaveMessage inserts msg unless a duplicate exists within the window; the
// duplicate is then returned with duplicate=true.
func (r *ChatRepository) SaveMessage(ctx context.Context, msg *models.ChatMessage, within time.Duration) (*models.ChatMessage, bool, error) {
	existing, err := r.FindDuplicateMessage(ctx, *msg, within)
	if err == nil {
		return existing, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("find duplicate chat message: %w", err)
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.QueryID = models.NormalizeQueryID(msg.QueryID)
	const query = `INSERT INTO chat_messages (` + chatMessageColumns + `)
	VALUES (:id, :query_id, :message, :sender, :sender_role, :team, :timestamp, :is_system_message, :action_type)
	ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, msg); err != nil {
		return nil, false, fmt.Errorf("insert chat message: %w", err)
	}
	stored := *msg
	return &stored, false, nil
}

// ListMessages returns the thread of one query in timestamp order.
func (r *ChatRepository) ListMessages(ctx context.Context, queryID string) ([]models.ChatMessage, error) {
	var out []models.ChatMessage
	query := `SELECT ` + chatMessageColumns + ` FROM chat_messages WHERE query_id = $1 ORDER BY timestamp ASC`
	if err := r.db.SelectContext(ctx, &out, query, models.NormalizeQueryID(queryID)); err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	return out, nil
}

// UpsertArchive stores the archive of a query, replacing any previous snapshot.
func (r *ChatRepository) UpsertArchive(ctx context.Context, archive *models.QueryChatHistory) error {
	if archive.ID == "" {
		archive.ID = uuid.NewString()
	}
	archive.QueryID = models.NormalizeQueryID(archive.QueryID)
	const query = `INSERT INTO query_chat_histories (` + chatArchiveColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (query_id) DO UPDATE SET
		app_no = EXCLUDED.app_no,
		customer_name = EXCLUDED.customer_name,
		branch = EXCLUDED.branch,
		marked_for_team = EXCLUDED.marked_for_team,
		query_status = EXCLUDED.query_status,
		archive_reason = EXCLUDED.archive_reason,
		archived_by = EXCLUDED.archived_by,
		messages = EXCLUDED.messages,
		message_count = EXCLUDED.message_count,
		archived_at = EXCLUDED.archived_at
	RETURNING id`
	var id string
	err := r.db.GetContext(ctx, &id, query,
		archive.ID, archive.QueryID, archive.AppNo, archive.CustomerName, archive.Branch,
		archive.MarkedForTeam, archive.QueryStatus, archive.ArchiveReason, archive.ArchivedBy,
		archive.Messages, archive.MessageCount, archive.ArchivedAt)
	if err != nil {
		return fmt.Errorf("upsert chat archive: %w", err)
	}
	archive.ID = id
	return nil
}

// FindArchive fetches the archive of a query.
func (r *ChatRepository) FindArchive(ctx context.Context, queryID string) (*models.QueryChatHistory, error) {
	var archive models.QueryChatHistory
	query := `SELECT ` + chatArchiveColumns + ` FROM query_chat_histories WHERE query_id = $1`
	if err := r.db.GetContext(ctx, &archive, query, models.NormalizeQueryID(queryID)); err != nil {
		return nil, err
	}
	return &archive, nil
}

// ListArchives returns archives newest first together with the total count.
func (r *ChatRepository) ListArchives(ctx context.Context, filter models.ArchiveFilter) ([]models.QueryChatHistory, int, error) {
	args := make([]interface{}, 0, 4)
	conditions := make([]string, 0, 4)
	if filter.AppNo != "" {
		args = append(args, filter.AppNo)
		conditions = append(conditions, fmt.Sprintf("app_no ILIKE '%%' || $%d || '%%'", len(args)))
	}
	if filter.CustomerName != "" {
		args = append(args, filter.CustomerName)
		conditions = append(conditions, fmt.Sprintf("customer_name ILIKE '%%' || $%d || '%%'", len(args)))
	}
	if filter.MarkedForTeam != "" {
		args = append(args, filter.MarkedForTeam)
		conditions = append(conditions, fmt.Sprintf("marked_for_team = $%d", len(args)))
	}
	if filter.ArchiveReason != "" {
		args = append(args, filter.ArchiveReason)
		conditions = append(conditions, fmt.Sprintf("archive_reason = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM query_chat_histories"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count chat archives: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf("SELECT %s FROM query_chat_histories%s ORDER BY archived_at DESC LIMIT %d OFFSET %d",
		chatArchiveColumns, where, limit, offset)

	var out []models.QueryChatHistory
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list chat archives: %w", err)
	}
	return out, total, nil
}
