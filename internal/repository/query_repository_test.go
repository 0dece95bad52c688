package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/loan-query-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var queryRowColumns = []string{"id", "app_no", "customer_name", "branch", "query_text", "status", "marked_for_team", "remarks",
	"proposed_action", "priority", "created_by", "created_at", "updated_at", "resolved_by", "resolved_at",
	"approved_by", "approval_date", "approval_status", "approval_request_id"}

func TestQueryRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewQueryRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO queries")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	q := &models.Query{AppNo: "APP-1", CustomerName: "Asha", QueryText: "missing KYC", MarkedForTeam: models.TeamSales}
	require.NoError(t, repo.Create(context.Background(), q))
	require.NotEmpty(t, q.ID)
	require.Equal(t, models.QueryStatusPending, q.Status)

	rows := sqlmock.NewRows(queryRowColumns).
		AddRow(q.ID, "APP-1", "Asha", "", "missing KYC", "pending-approval", "sales", `[]`,
			"approve", "medium", "ops", time.Now(), time.Now(), nil, nil, nil, nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, app_no")).
		WithArgs(q.ID).
		WillReturnRows(rows)

	found, err := repo.FindByID(context.Background(), q.ID)
	require.NoError(t, err)
	require.Equal(t, models.QueryStatusWaitingForApproval, found.Status)
	require.NotNil(t, found.ProposedAction)
	require.Equal(t, models.ProposedActionApprove, *found.ProposedAction)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryRepositoryListByTeamIncludesBoth(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewQueryRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM queries WHERE marked_for_team IN ($1, $2) AND status IN ($3)")).
		WithArgs(models.TeamSales, models.TeamBoth, models.QueryStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, app_no")).
		WithArgs(models.TeamSales, models.TeamBoth, models.QueryStatusPending).
		WillReturnRows(sqlmock.NewRows(queryRowColumns).
			AddRow("q1", "APP-1", "Asha", "", "text", "pending", "both", `[]`,
				nil, "medium", "ops", time.Now(), time.Now(), nil, nil, nil, nil, nil, nil))

	list, total, err := repo.List(context.Background(), models.QueryFilter{
		Team:        models.TeamSales,
		IncludeBoth: true,
		Statuses:    []models.QueryStatus{models.QueryStatusPending},
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, list, 1)
	require.Equal(t, models.TeamBoth, list[0].MarkedForTeam)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryRepositoryTransition(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewQueryRepository(db)
	action := models.ProposedActionOTC
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE queries SET updated_at = $1, status = $2, remarks = COALESCE(remarks, '[]'::jsonb) || $3::jsonb, proposed_action = $4 WHERE id = $5 AND status IN ($6)")).
		WillReturnRows(sqlmock.NewRows(queryRowColumns).
			AddRow("q1", "APP-1", "Asha", "", "text", "waiting-for-approval", "sales", `[{"by":"sam","action":"propose","at":"2024-05-01T10:00:00Z"}]`,
				"otc", "medium", "ops", time.Now(), time.Now(), nil, nil, nil, nil, nil, nil))

	updated, err := repo.Transition(context.Background(), models.QueryTransition{
		ID:             "q1",
		From:           []models.QueryStatus{models.QueryStatusPending},
		To:             models.QueryStatusWaitingForApproval,
		Remark:         &models.Remark{By: "sam", Action: "propose"},
		ProposedAction: &action,
		At:             time.Now(),
	})
	require.NoError(t, err)
	require.Equal(t, models.QueryStatusWaitingForApproval, updated.Status)
	require.Len(t, updated.Remarks, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryRepositoryTransitionConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewQueryRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE queries SET")).
		WillReturnRows(sqlmock.NewRows(queryRowColumns))

	_, err := repo.Transition(context.Background(), models.QueryTransition{
		ID:   "q1",
		From: []models.QueryStatus{models.QueryStatusWaitingForApproval},
		To:   models.QueryStatusApproved,
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
