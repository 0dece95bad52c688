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

func TestWorkflowRepositoryListActiveRulesInOrder(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewWorkflowRepository(db)
	rows := sqlmock.NewRows([]string{"id", "name", "description", "triggers", "approvers", "sla_hours", "priority", "active", "position", "created_at"}).
		AddRow("w1", "otc-credit-review", "", `[{"field":"proposedAction","operator":"equals","value":"otc"}]`, `["credit-head"]`, 8, "high", true, 1, time.Now()).
		AddRow("w2", "default-approval", "", `[]`, `["approver"]`, 24, "medium", true, 2, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM workflow_rules WHERE active = TRUE ORDER BY position ASC")).
		WillReturnRows(rows)

	rules, err := repo.ListRules(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	require.Equal(t, "otc-credit-review", rules[0].Name)
	require.Len(t, rules[0].Triggers, 1)
	require.Equal(t, models.StringList{"credit-head"}, rules[0].Approvers)
	require.True(t, rules[0].Matches(map[string]string{"proposedAction": "OTC"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowRepositoryUpsertAssignsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewWorkflowRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (name) DO UPDATE")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rule := &models.WorkflowRule{Name: "deferral-review", Approvers: models.StringList{"operations-head"}, Active: true}
	require.NoError(t, repo.UpsertRule(context.Background(), rule))
	require.NotEmpty(t, rule.ID)
	require.False(t, rule.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}
