package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/loan-query-api/internal/models"
)

func TestTransitionIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Create(ctx, &models.Query{ID: "q1", Status: models.QueryStatusPending}))

	var wg sync.WaitGroup
	wins := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Transition(ctx, models.QueryTransition{
				ID:     "q1",
				From:   []models.QueryStatus{models.QueryStatusPending},
				To:     models.QueryStatusWaitingForApproval,
				Remark: &models.Remark{By: fmt.Sprintf("user-%d", i), Action: "propose"},
				At:     time.Now(),
			})
			if err == nil {
				wins <- struct{}{}
			}
		}(i)
	}
	wg.Wait()
	close(wins)
	assert.Len(t, wins, 1)

	q, err := s.FindByID(ctx, "q1")
	require.NoError(t, err)
	assert.Len(t, q.Remarks, 1)
}

func TestSaveMessageDeduplicates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	first := &models.ChatMessage{QueryID: "123", Message: "hi", Sender: "alice", Timestamp: now}
	stored, dup, err := s.SaveMessage(ctx, first, 5*time.Second)
	require.NoError(t, err)
	require.False(t, dup)

	again := &models.ChatMessage{QueryID: "123.0", Message: "hi", Sender: "alice", Timestamp: now.Add(3 * time.Second)}
	existing, dup, err := s.SaveMessage(ctx, again, 5*time.Second)
	require.NoError(t, err)
	require.True(t, dup)
	assert.Equal(t, stored.ID, existing.ID)

	list, err := s.ListMessages(ctx, " 123 ")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUpsertArchiveKeepsOneRecord(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.UpsertArchive(ctx, &models.QueryChatHistory{QueryID: "q1", ArchiveReason: "approved", AppNo: "APP-1"}))
	require.NoError(t, s.UpsertArchive(ctx, &models.QueryChatHistory{QueryID: "q1", ArchiveReason: "rejected", AppNo: "APP-1"}))

	list, total, err := s.ListArchives(ctx, models.ArchiveFilter{AppNo: "app"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, "rejected", list[0].ArchiveReason)
}

func TestDeleteApprovalsByCriteria(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateApproval(ctx, &models.ApprovalRequest{ID: "r1", QueryID: "q1", Status: models.ApprovalStatusPending}))
	require.NoError(t, s.CreateApproval(ctx, &models.ApprovalRequest{ID: "r2", QueryID: "q2", Status: models.ApprovalStatusPending}))

	removed, err := s.DeleteApprovalsByCriteria(ctx, models.ApprovalCriteria{QueryID: "q1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = s.FindApproval(ctx, "r1")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	removed, err = s.DeleteApprovalsByCriteria(ctx, models.ApprovalCriteria{})
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestMarkApprovalActedRejectsTerminal(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateApproval(ctx, &models.ApprovalRequest{ID: "r1", QueryID: "q1", Status: models.ApprovalStatusPending}))

	act := models.ApprovalAct{ID: "r1", Status: models.ApprovalStatusApproved, ActedBy: "boss", ActedAt: time.Now()}
	req, err := s.MarkApprovalActed(ctx, act)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, req.Status)

	_, err = s.MarkApprovalActed(ctx, act)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
