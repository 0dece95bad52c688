package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/loan-query-api/internal/models"
	"github.com/noah-isme/loan-query-api/internal/store"
)

func TestReconcileServiceMovesFallbackRecordsIntoPersistence(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	primary := store.NewMemoryStore()
	memory := store.NewMemoryStore()
	svc := NewReconcileService(primary, primary, memory, nil, nil, ReconcileConfig{Workers: 1, RetryDelay: 10 * time.Millisecond})
	svc.Start(ctx)
	defer svc.Stop()

	now := time.Now().UTC()
	msg := &models.ChatMessage{ID: "m1", QueryID: "7", Message: "queued while offline", Sender: "ops", Timestamp: now}
	_, _, err := memory.SaveMessage(ctx, msg, 0)
	require.NoError(t, err)
	require.NoError(t, memory.UpsertArchive(ctx, &models.QueryChatHistory{QueryID: "7", ArchiveReason: "approved", ArchivedAt: now}))
	actedBy := "alice"
	require.NoError(t, memory.CreateApproval(ctx, &models.ApprovalRequest{
		ID: "r1", QueryID: "7", Status: models.ApprovalStatusApproved, SubmittedAt: now, ActedBy: &actedBy, ActedAt: &now,
	}))

	assert.Equal(t, 3, svc.Sweep())

	require.Eventually(t, func() bool {
		snap := memory.Pending()
		return len(snap.Messages) == 0 && len(snap.Archives) == 0 && len(snap.Approvals) == 0
	}, time.Second, 10*time.Millisecond)

	messages, err := primary.ListMessages(ctx, "7")
	require.NoError(t, err)
	require.Len(t, messages, 1)

	archive, err := primary.FindArchive(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "approved", archive.ArchiveReason)

	req, err := primary.FindApproval(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, req.Status)
}
