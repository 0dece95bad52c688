package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/loan-query-api/internal/dto"
	"github.com/noah-isme/loan-query-api/internal/models"
	"github.com/noah-isme/loan-query-api/internal/store"
	appErrors "github.com/noah-isme/loan-query-api/pkg/errors"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *eventRecorder) Publish(ctx context.Context, event models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type scheduleCall struct {
	kind    string
	key     string
	payload interface{}
}

type schedulerStub struct {
	calls []scheduleCall
}

func (s *schedulerStub) Schedule(kind, key string, payload interface{}) {
	s.calls = append(s.calls, scheduleCall{kind: kind, key: key, payload: payload})
}

type failingChatStore struct {
	err error
}

func (f *failingChatStore) SaveMessage(ctx context.Context, msg *models.ChatMessage, within time.Duration) (*models.ChatMessage, bool, error) {
	return nil, false, f.err
}

func (f *failingChatStore) FindDuplicateMessage(ctx context.Context, msg models.ChatMessage, within time.Duration) (*models.ChatMessage, error) {
	return nil, f.err
}

func (f *failingChatStore) ListMessages(ctx context.Context, queryID string) ([]models.ChatMessage, error) {
	return nil, f.err
}

func (f *failingChatStore) UpsertArchive(ctx context.Context, archive *models.QueryChatHistory) error {
	return f.err
}

func (f *failingChatStore) FindArchive(ctx context.Context, queryID string) (*models.QueryChatHistory, error) {
	return nil, f.err
}

func (f *failingChatStore) ListArchives(ctx context.Context, filter models.ArchiveFilter) ([]models.QueryChatHistory, int, error) {
	return nil, 0, f.err
}

type legacyCacheStub struct {
	messages []models.ChatMessage
	pushed   []models.ChatMessage
}

func (l *legacyCacheStub) Push(ctx context.Context, msg models.ChatMessage) error {
	l.pushed = append(l.pushed, msg)
	return nil
}

func (l *legacyCacheStub) Messages(ctx context.Context, queryID string) ([]models.ChatMessage, error) {
	if len(l.messages) == 0 {
		return nil, appErrors.ErrCacheMiss
	}
	return l.messages, nil
}

func TestChatServiceIsolatesThreadsByQuery(t *testing.T) {
	ctx := context.Background()
	svc := NewChatService(nil, store.NewMemoryStore(), nil, nil, ChatConfig{})

	_, _, err := svc.StoreMessage(ctx, "123", dto.PostChatMessageRequest{Message: "hello", Sender: "alice", SenderRole: "sales"})
	require.NoError(t, err)
	_, _, err = svc.StoreMessage(ctx, "456", dto.PostChatMessageRequest{Message: "other thread", Sender: "bob", SenderRole: "credit"})
	require.NoError(t, err)

	messages, err := svc.GetMessages(ctx, " 123.0 ")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "hello", messages[0].Message)
	assert.Equal(t, "123", messages[0].QueryID)
}

func TestChatServiceReturnsExistingMessageOnDuplicate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	events := &eventRecorder{}
	svc := NewChatService(nil, store.NewMemoryStore(), nil, nil, ChatConfig{},
		WithChatClock(func() time.Time { return now }),
		WithChatEvents(events),
	)
	req := dto.PostChatMessageRequest{Message: "docs uploaded", Sender: "alice", SenderRole: "sales"}

	first, dup, err := svc.StoreMessage(ctx, "77", req)
	require.NoError(t, err)
	require.False(t, dup)

	now = now.Add(3 * time.Second)
	second, dup, err := svc.StoreMessage(ctx, "77", req)
	require.NoError(t, err)
	require.True(t, dup)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, events.count(models.EventChatMessage))

	now = now.Add(10 * time.Second)
	third, dup, err := svc.StoreMessage(ctx, "77", req)
	require.NoError(t, err)
	require.False(t, dup)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestChatServiceRejectsInvalidMessage(t *testing.T) {
	svc := NewChatService(nil, store.NewMemoryStore(), nil, nil, ChatConfig{})
	_, _, err := svc.StoreMessage(context.Background(), "1", dto.PostChatMessageRequest{Message: "hi"})
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, _, err = svc.StoreMessage(context.Background(), "  ", dto.PostChatMessageRequest{Message: "hi", Sender: "a", SenderRole: "sales"})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestChatServiceRejectsUnknownQuery(t *testing.T) {
	mem := store.NewMemoryStore()
	svc := NewChatService(nil, mem, nil, nil, ChatConfig{}, WithChatQueryLookup(mem))
	_, _, err := svc.StoreMessage(context.Background(), "missing", dto.PostChatMessageRequest{Message: "hi", Sender: "a", SenderRole: "sales"})
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestChatServiceFallsBackToMemoryWhenPersistenceFails(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	sched := &schedulerStub{}
	svc := NewChatService(&failingChatStore{err: errors.New("connection refused")}, mem, nil, nil, ChatConfig{},
		WithChatReconciler(sched),
	)

	msg, dup, err := svc.StoreMessage(ctx, "9", dto.PostChatMessageRequest{Message: "ping", Sender: "ops", SenderRole: "operations"})
	require.NoError(t, err)
	require.False(t, dup)

	stored, err := mem.ListMessages(ctx, "9")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Len(t, sched.calls, 1)
	assert.Equal(t, ReconcileChatMessage, sched.calls[0].kind)
	assert.Equal(t, msg.ID, sched.calls[0].key)

	messages, err := svc.GetMessages(ctx, "9")
	require.NoError(t, err)
	require.Len(t, messages, 1)
}

func TestChatServiceMergesLegacyCache(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	legacy := &legacyCacheStub{messages: []models.ChatMessage{
		{ID: "legacy-1", QueryID: "5", Message: "hello", Sender: "alice", Timestamp: base.Add(400 * time.Millisecond)},
		{ID: "legacy-2", QueryID: "5", Message: "from before the migration", Sender: "bob", Timestamp: base.Add(-time.Hour)},
		{ID: "legacy-3", QueryID: "6", Message: "not ours", Sender: "carol", Timestamp: base},
	}}
	svc := NewChatService(nil, store.NewMemoryStore(), nil, nil, ChatConfig{},
		WithLegacyChatCache(legacy),
		WithChatClock(func() time.Time { return base }),
	)

	_, _, err := svc.StoreMessage(ctx, "5", dto.PostChatMessageRequest{Message: "hello", Sender: "alice", SenderRole: "sales"})
	require.NoError(t, err)
	require.Len(t, legacy.pushed, 1)

	messages, err := svc.GetMessages(ctx, "5")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "from before the migration", messages[0].Message)
	assert.Equal(t, "hello", messages[1].Message)
	assert.NotEqual(t, "legacy-1", messages[1].ID)
}

func TestChatServiceArchiveIsIdempotentPerQuery(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	svc := NewChatService(nil, mem, nil, nil, ChatConfig{})
	meta := models.ArchiveMeta{AppNo: "APP-1", CustomerName: "Jane Doe", MarkedForTeam: "sales", QueryStatus: "approved"}

	_, _, err := svc.StoreMessage(ctx, "42", dto.PostChatMessageRequest{Message: "first", Sender: "a", SenderRole: "sales"})
	require.NoError(t, err)
	first, err := svc.ArchiveQuery(ctx, "42", meta, "approved")
	require.NoError(t, err)
	assert.Equal(t, 1, first.MessageCount)
	assert.Equal(t, "system", first.ArchivedBy)

	_, _, err = svc.StoreMessage(ctx, "42", dto.PostChatMessageRequest{Message: "second", Sender: "b", SenderRole: "credit"})
	require.NoError(t, err)
	second, err := svc.ArchiveQuery(ctx, "42", meta, "approved")
	require.NoError(t, err)

	archives, total, err := svc.ListArchives(ctx, dto.ArchiveListQuery{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, archives[0].MessageCount)

	filtered, total, err := svc.ListArchives(ctx, dto.ArchiveListQuery{CustomerName: "jane"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, filtered, 1)

	_, total, err = svc.ListArchives(ctx, dto.ArchiveListQuery{ArchiveReason: "rejected"})
	require.NoError(t, err)
	assert.Zero(t, total)
}
