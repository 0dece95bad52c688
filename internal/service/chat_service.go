package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/loan-query-api/internal/dto"
	"github.com/noah-isme/loan-query-api/internal/models"
	appErrors "github.com/noah-isme/loan-query-api/pkg/errors"
)

type chatStore interface {
	SaveMessage(ctx context.Context, msg *models.ChatMessage, within time.Duration) (*models.ChatMessage, bool, error)
	FindDuplicateMessage(ctx context.Context, msg models.ChatMessage, within time.Duration) (*models.ChatMessage, error)
	ListMessages(ctx context.Context, queryID string) ([]models.ChatMessage, error)
	UpsertArchive(ctx context.Context, archive *models.QueryChatHistory) error
	FindArchive(ctx context.Context, queryID string) (*models.QueryChatHistory, error)
	ListArchives(ctx context.Context, filter models.ArchiveFilter) ([]models.QueryChatHistory, int, error)
}

type legacyChatCache interface {
	Push(ctx context.Context, msg models.ChatMessage) error
	Messages(ctx context.Context, queryID string) ([]models.ChatMessage, error)
}

type queryLookup interface {
	FindByID(ctx context.Context, id string) (*models.Query, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, event models.Event)
}

type reconcileScheduler interface {
	Schedule(kind, key string, payload interface{})
}

// ChatConfig tunes deduplication.
type ChatConfig struct {
	DedupWindow time.Duration
	MergeWindow time.Duration
}

// ChatService stores query-scoped chat threads and their archives.
type ChatService struct {
	primary   chatStore
	fallback  chatStore
	legacy    legacyChatCache
	queries   queryLookup
	events    eventPublisher
	reconcile reconcileScheduler
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    ChatConfig
	now       func() time.Time
}

// ChatServiceOption configures the service.
type ChatServiceOption func(*ChatService)

// WithLegacyChatCache enables mirroring to and reading from the legacy cache.
func WithLegacyChatCache(cache legacyChatCache) ChatServiceOption {
	return func(s *ChatService) { s.legacy = cache }
}

// WithChatQueryLookup rejects messages for unknown queries.
func WithChatQueryLookup(lookup queryLookup) ChatServiceOption {
	return func(s *ChatService) { s.queries = lookup }
}

// WithChatEvents sets the realtime publisher.
func WithChatEvents(events eventPublisher) ChatServiceOption {
	return func(s *ChatService) { s.events = events }
}

// WithChatReconciler schedules fallback writes for persistence.
func WithChatReconciler(r reconcileScheduler) ChatServiceOption {
	return func(s *ChatService) { s.reconcile = r }
}

// WithChatMetrics attaches instrumentation.
func WithChatMetrics(m *MetricsService) ChatServiceOption {
	return func(s *ChatService) { s.metrics = m }
}

// WithChatClock overrides the time source.
func WithChatClock(now func() time.Time) ChatServiceOption {
	return func(s *ChatService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewChatService constructs the service. primary may be nil when no database
// is configured; fallback must not be nil.
func NewChatService(primary, fallback chatStore, validate *validator.Validate, logger *zap.Logger, config ChatConfig, opts ...ChatServiceOption) *ChatService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.DedupWindow <= 0 {
		config.DedupWindow = 5 * time.Second
	}
	if config.MergeWindow <= 0 {
		config.MergeWindow = DefaultMergeWindow
	}
	svc := &ChatService{
		primary:   primary,
		fallback:  fallback,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// StoreMessage appends a user message to a query thread. A repeat of the same
// text by the same sender within the dedup window returns the existing
// message with duplicate=true.
func (s *ChatService) StoreMessage(ctx context.Context, queryID string, req dto.PostChatMessageRequest) (*models.ChatMessage, bool, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "message, sender and senderRole are required")
	}
	msg := &models.ChatMessage{
		QueryID:    queryID,
		Message:    strings.TrimSpace(req.Message),
		Sender:     strings.TrimSpace(req.Sender),
		SenderRole: strings.TrimSpace(req.SenderRole),
		Team:       strings.TrimSpace(req.Team),
		ActionType: models.ChatActionMessage,
	}
	return s.store(ctx, msg)
}

// PostSystemMessage records a lifecycle event in the thread of a query.
func (s *ChatService) PostSystemMessage(ctx context.Context, queryID, text string, action models.ChatActionType, actor models.Actor) error {
	sender := actor.Name
	if sender == "" {
		sender = "system"
	}
	_, _, err := s.store(ctx, &models.ChatMessage{
		QueryID:         queryID,
		Message:         text,
		Sender:          sender,
		SenderRole:      string(actor.Role),
		Team:            string(actor.Team),
		IsSystemMessage: true,
		ActionType:      action,
	})
	return err
}

func (s *ChatService) store(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, bool, error) {
	msg.QueryID = models.NormalizeQueryID(msg.QueryID)
	if msg.QueryID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "queryId is required")
	}
	if err := s.ensureQuery(ctx, msg.QueryID); err != nil {
		return nil, false, err
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	if msg.ActionType == "" {
		msg.ActionType = models.ChatActionMessage
	}

	if existing, err := s.fallback.FindDuplicateMessage(ctx, *msg, s.config.DedupWindow); err == nil {
		s.metrics.RecordChatMessage("duplicate")
		return existing, true, nil
	}

	stored, duplicate, err := s.save(ctx, msg)
	if err != nil {
		return nil, false, err
	}
	if duplicate {
		s.metrics.RecordChatMessage("duplicate")
		return stored, true, nil
	}

	if s.legacy != nil {
		if err := s.legacy.Push(ctx, *stored); err != nil {
			s.logger.Warn("legacy chat cache mirror failed", zap.String("query_id", stored.QueryID), zap.Error(err))
		}
	}
	s.publish(ctx, models.EventChatMessage, stored.QueryID, stored)
	return stored, false, nil
}

func (s *ChatService) save(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, bool, error) {
	if s.primary != nil {
		stored, duplicate, err := s.primary.SaveMessage(ctx, msg, s.config.DedupWindow)
		if err == nil {
			if !duplicate {
				s.metrics.RecordChatMessage("persisted")
			}
			return stored, duplicate, nil
		}
		s.logger.Warn("chat message persistence unavailable, using memory fallback",
			zap.String("query_id", msg.QueryID), zap.Error(err))
		s.metrics.RecordFallbackWrite("chat_message")
	}
	stored, duplicate, err := s.fallback.SaveMessage(ctx, msg, s.config.DedupWindow)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store chat message")
	}
	if !duplicate {
		s.metrics.RecordChatMessage("fallback")
		if s.primary != nil && s.reconcile != nil {
			s.reconcile.Schedule(ReconcileChatMessage, stored.ID, *stored)
		}
	}
	return stored, duplicate, nil
}

func (s *ChatService) ensureQuery(ctx context.Context, queryID string) error {
	if s.queries == nil {
		return nil
	}
	if _, err := s.queries.FindByID(ctx, queryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "query not found")
		}
		s.logger.Warn("query lookup failed, accepting message", zap.String("query_id", queryID), zap.Error(err))
	}
	return nil
}

// GetMessages returns the isolated thread of a query merged from the
// persisted store, the memory fallback and the legacy cache.
func (s *ChatService) GetMessages(ctx context.Context, queryID string) ([]models.ChatMessage, error) {
	key := models.NormalizeQueryID(queryID)
	if key == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "queryId is required")
	}

	sources := make([][]models.ChatMessage, 0, 3)
	if s.primary != nil {
		persisted, err := s.primary.ListMessages(ctx, key)
		if err != nil {
			s.logger.Warn("persisted chat read failed", zap.String("query_id", key), zap.Error(err))
		}
		sources = append(sources, persisted)
	}

	memory, err := s.fallback.ListMessages(ctx, key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read chat messages")
	}
	sources = append(sources, memory)

	if s.legacy != nil {
		cached, err := s.legacy.Messages(ctx, key)
		switch {
		case err == nil:
			s.metrics.RecordCacheOperation(true)
			sources = append(sources, cached)
		case errors.Is(err, appErrors.ErrCacheMiss):
			s.metrics.RecordCacheOperation(false)
		default:
			s.logger.Warn("legacy chat cache read failed", zap.String("query_id", key), zap.Error(err))
		}
	}

	return MergeMessagesWithin(key, s.config.MergeWindow, sources...), nil
}

// ArchiveQuery snapshots the current thread of a query. Repeated calls
// overwrite the previous snapshot.
func (s *ChatService) ArchiveQuery(ctx context.Context, queryID string, meta models.ArchiveMeta, reason string) (*models.QueryChatHistory, error) {
	messages, err := s.GetMessages(ctx, queryID)
	if err != nil {
		return nil, err
	}
	archivedBy := meta.ArchivedBy
	if archivedBy == "" {
		archivedBy = "system"
	}
	if reason == "" {
		reason = meta.QueryStatus
	}
	archive := &models.QueryChatHistory{
		QueryID:       models.NormalizeQueryID(queryID),
		AppNo:         meta.AppNo,
		CustomerName:  meta.CustomerName,
		Branch:        meta.Branch,
		MarkedForTeam: meta.MarkedForTeam,
		QueryStatus:   meta.QueryStatus,
		ArchiveReason: reason,
		ArchivedBy:    archivedBy,
		Messages:      messages,
		MessageCount:  len(messages),
		ArchivedAt:    s.now(),
	}

	if s.primary != nil {
		err := s.primary.UpsertArchive(ctx, archive)
		if err == nil {
			s.publish(ctx, models.EventChatArchived, archive.QueryID, archive)
			return archive, nil
		}
		s.logger.Warn("chat archive persistence unavailable, using memory fallback",
			zap.String("query_id", archive.QueryID), zap.Error(err))
		s.metrics.RecordFallbackWrite("chat_archive")
	}
	if err := s.fallback.UpsertArchive(ctx, archive); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive chat")
	}
	if s.primary != nil && s.reconcile != nil {
		s.reconcile.Schedule(ReconcileChatArchive, archive.QueryID, archive.QueryID)
	}
	s.publish(ctx, models.EventChatArchived, archive.QueryID, archive)
	return archive, nil
}

// ListArchives returns archived threads newest first with the total count.
func (s *ChatService) ListArchives(ctx context.Context, query dto.ArchiveListQuery) ([]models.QueryChatHistory, int, error) {
	filter := models.ArchiveFilter{
		AppNo:         strings.TrimSpace(query.AppNo),
		CustomerName:  strings.TrimSpace(query.CustomerName),
		MarkedForTeam: strings.TrimSpace(query.MarkedForTeam),
		ArchiveReason: strings.TrimSpace(query.ArchiveReason),
		Limit:         query.Limit,
		Offset:        query.Offset,
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, 0, appErrors.Clone(appErrors.ErrValidation, "limit and offset must not be negative")
	}
	if s.primary != nil {
		archives, total, err := s.primary.ListArchives(ctx, filter)
		if err == nil {
			return archives, total, nil
		}
		s.logger.Warn("archive listing fell back to memory", zap.Error(err))
	}
	archives, total, err := s.fallback.ListArchives(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list chat archives")
	}
	return archives, total, nil
}

func (s *ChatService) publish(ctx context.Context, eventType, queryID string, data interface{}) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, models.Event{Type: eventType, QueryID: queryID, Data: data, At: s.now()})
}
