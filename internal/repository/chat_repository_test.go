package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/loan-query-api/internal/models"
)

var chatRowColumns = []string{"id", "query_id", "message", "sender", "sender_role", "team", "timestamp", "is_system_message", "action_type"}

func TestChatRepositorySaveMessageReturnsDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewChatRepository(db)
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, query_id, message")).
		WithArgs("123", "hello", "alice", now.Add(-5*time.Second), now.Add(5*time.Second)).
		WillReturnRows(sqlmock.NewRows(chatRowColumns).
			AddRow("m1", "123", "hello", "alice", "sales", "sales", now.Add(-time.Second), false, "message"))

	stored, dup, err := repo.SaveMessage(context.Background(), &models.ChatMessage{
		QueryID: "123.0", Message: "hello", Sender: "alice", Timestamp: now,
	}, 5*time.Second)
	require.NoError(t, err)
	require.True(t, dup)
	require.Equal(t, "m1", stored.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChatRepositorySaveMessageInserts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewChatRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, query_id, message")).
		WillReturnRows(sqlmock.NewRows(chatRowColumns))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO chat_messages")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	msg := &models.ChatMessage{QueryID: " 42 ", Message: "hi", Sender: "bob", Timestamp: time.Now()}
	stored, dup, err := repo.SaveMessage(context.Background(), msg, 5*time.Second)
	require.NoError(t, err)
	require.False(t, dup)
	require.Equal(t, "42", stored.QueryID)
	require.NotEmpty(t, stored.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChatRepositoryUpsertArchive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewChatRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (query_id) DO UPDATE SET")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("arch-1"))

	archive := &models.QueryChatHistory{QueryID: "q1", ArchiveReason: "approved", ArchivedAt: time.Now()}
	require.NoError(t, repo.UpsertArchive(context.Background(), archive))
	require.Equal(t, "arch-1", archive.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChatRepositoryListArchivesFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewChatRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM query_chat_histories WHERE app_no ILIKE '%' || $1 || '%' AND archive_reason = $2")).
		WithArgs("app", "approved").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY archived_at DESC LIMIT 10 OFFSET 0")).
		WithArgs("app", "approved").
		WillReturnRows(sqlmock.NewRows([]string{"id", "query_id", "app_no", "customer_name", "branch", "marked_for_team", "query_status",
			"archive_reason", "archived_by", "messages", "message_count", "archived_at"}).
			AddRow("a1", "q1", "APP-1", "Asha", "Pune", "sales", "approved", "approved", "system",
				`[{"id":"m1","queryId":"q1","message":"hi","sender":"bob"}]`, 1, time.Now()))

	list, total, err := repo.ListArchives(context.Background(), models.ArchiveFilter{AppNo: "app", ArchiveReason: "approved", Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, list[0].Messages, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
