package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/loan-query-api/internal/models"
	"github.com/noah-isme/loan-query-api/internal/store"
	"github.com/noah-isme/loan-query-api/pkg/jobs"
)

// Reconcile job kinds.
const (
	ReconcileChatMessage     = "chat.message"
	ReconcileChatArchive     = "chat.archive"
	ReconcileApprovalRequest = "approval.request"
)

type reconcileChatTarget interface {
	SaveMessage(ctx context.Context, msg *models.ChatMessage, within time.Duration) (*models.ChatMessage, bool, error)
	UpsertArchive(ctx context.Context, archive *models.QueryChatHistory) error
}

type reconcileApprovalTarget interface {
	CreateApproval(ctx context.Context, req *models.ApprovalRequest) error
	MarkApprovalActed(ctx context.Context, act models.ApprovalAct) (*models.ApprovalRequest, error)
}

type reconcileSource interface {
	FindApproval(ctx context.Context, id string) (*models.ApprovalRequest, error)
	FindArchive(ctx context.Context, queryID string) (*models.QueryChatHistory, error)
	ForgetApproval(id string)
	ForgetMessage(id string)
	ForgetArchive(queryID string)
	Pending() store.Snapshot
}

// ReconcileConfig sizes the worker pool.
type ReconcileConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
	Interval   time.Duration
}

// ReconcileService moves records written to the memory fallback into
// persistence once it is reachable again.
type ReconcileService struct {
	chat      reconcileChatTarget
	approvals reconcileApprovalTarget
	memory    reconcileSource
	queue     *jobs.Queue
	metrics   *MetricsService
	logger    *zap.Logger
	interval  time.Duration
}

// NewReconcileService constructs the reconciler. Call Start before scheduling.
func NewReconcileService(chat reconcileChatTarget, approvals reconcileApprovalTarget, memory reconcileSource, metrics *MetricsService, logger *zap.Logger, cfg ReconcileConfig) *ReconcileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	svc := &ReconcileService{
		chat:      chat,
		approvals: approvals,
		memory:    memory,
		metrics:   metrics,
		logger:    logger,
		interval:  cfg.Interval,
	}
	svc.queue = jobs.NewQueue("reconcile", svc.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return svc
}

// Start launches the workers.
func (s *ReconcileService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *ReconcileService) Stop() {
	s.queue.Stop()
}

// Schedule enqueues a record for persistence. Jobs for the same record are
// collapsed while one is pending.
func (s *ReconcileService) Schedule(kind, key string, payload interface{}) {
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Kind:    kind,
		Key:     kind + ":" + key,
		Payload: payload,
	})
	if err != nil {
		s.logger.Warn("reconcile job not queued, next sweep will retry",
			zap.String("kind", kind), zap.String("key", key), zap.Error(err))
	}
}

// Sweep schedules every record still held in the memory fallback.
func (s *ReconcileService) Sweep() int {
	snap := s.memory.Pending()
	for _, req := range snap.Approvals {
		s.Schedule(ReconcileApprovalRequest, req.ID, req.ID)
	}
	for _, msg := range snap.Messages {
		s.Schedule(ReconcileChatMessage, msg.ID, msg)
	}
	for _, archive := range snap.Archives {
		s.Schedule(ReconcileChatArchive, archive.QueryID, archive.QueryID)
	}
	return len(snap.Approvals) + len(snap.Messages) + len(snap.Archives)
}

// Run sweeps on the configured interval until ctx is done.
func (s *ReconcileService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Info("reconcile sweep scheduled fallback records", zap.Int("count", n))
			}
		}
	}
}

func (s *ReconcileService) handle(ctx context.Context, job jobs.Job) error {
	var err error
	switch job.Kind {
	case ReconcileChatMessage:
		err = s.reconcileMessage(ctx, job.Payload)
	case ReconcileChatArchive:
		err = s.reconcileArchive(ctx, job.Payload)
	case ReconcileApprovalRequest:
		err = s.reconcileApproval(ctx, job.Payload)
	default:
		err = fmt.Errorf("unknown reconcile job kind %q", job.Kind)
	}
	s.metrics.RecordReconcile(job.Kind, err)
	return err
}

func (s *ReconcileService) reconcileMessage(ctx context.Context, payload interface{}) error {
	msg, ok := payload.(models.ChatMessage)
	if !ok {
		return fmt.Errorf("chat message payload has type %T", payload)
	}
	if _, _, err := s.chat.SaveMessage(ctx, &msg, 0); err != nil {
		return err
	}
	s.memory.ForgetMessage(msg.ID)
	return nil
}

func (s *ReconcileService) reconcileArchive(ctx context.Context, payload interface{}) error {
	queryID, ok := payload.(string)
	if !ok {
		return fmt.Errorf("chat archive payload has type %T", payload)
	}
	archive, err := s.memory.FindArchive(ctx, queryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	if err := s.chat.UpsertArchive(ctx, archive); err != nil {
		return err
	}
	s.memory.ForgetArchive(queryID)
	return nil
}

func (s *ReconcileService) reconcileApproval(ctx context.Context, payload interface{}) error {
	var id string
	switch v := payload.(type) {
	case string:
		id = v
	case models.ApprovalRequest:
		id = v.ID
	default:
		return fmt.Errorf("approval payload has type %T", payload)
	}
	req, err := s.memory.FindApproval(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	if err := s.approvals.CreateApproval(ctx, req); err != nil {
		return err
	}
	if req.Status.IsTerminal() && req.ActedBy != nil && req.ActedAt != nil {
		_, err := s.approvals.MarkApprovalActed(ctx, models.ApprovalAct{
			ID:      req.ID,
			Status:  req.Status,
			ActedBy: *req.ActedBy,
			ActedAt: *req.ActedAt,
			Comment: req.Comment,
		})
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
	}
	s.memory.ForgetApproval(req.ID)
	return nil
}
