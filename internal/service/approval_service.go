package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/loan-query-api/internal/dto"
	"github.com/noah-isme/loan-query-api/internal/models"
	appErrors "github.com/noah-isme/loan-query-api/pkg/errors"
)

type approvalStore interface {
	CreateApproval(ctx context.Context, req *models.ApprovalRequest) error
	FindApproval(ctx context.Context, id string) (*models.ApprovalRequest, error)
	LatestPendingApproval(ctx context.Context, queryID string) (*models.ApprovalRequest, error)
	ListApprovals(ctx context.Context, filter models.ApprovalFilter) ([]models.ApprovalRequest, error)
	MarkApprovalActed(ctx context.Context, act models.ApprovalAct) (*models.ApprovalRequest, error)
	DeleteAllApprovals(ctx context.Context) (int64, error)
	DeleteApprovalsByCriteria(ctx context.Context, criteria models.ApprovalCriteria) (int64, error)
}

type approvalResultApplier interface {
	ApplyApprovalResult(ctx context.Context, queryID string, outcome models.ApprovalOutcome, approver, comment string) (*models.Query, error)
}

type workflowMatcher interface {
	Match(ctx context.Context, fields map[string]string) (*models.WorkflowRule, error)
}

// ApprovalConfig holds SLA defaults and the reset guard.
type ApprovalConfig struct {
	DefaultSLA   time.Duration
	WarnWindow   time.Duration
	AllowReset   bool
	ResetKeyHash string
}

// ApprovalService routes proposed actions to approvers and applies their decisions.
type ApprovalService struct {
	primary   approvalStore
	fallback  approvalStore
	queries   approvalResultApplier
	workflows workflowMatcher
	events    eventPublisher
	reconcile reconcileScheduler
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    ApprovalConfig
	now       func() time.Time
}

// ApprovalServiceOption configures the service.
type ApprovalServiceOption func(*ApprovalService)

// WithWorkflowMatcher sets the rule matcher used to route new requests.
func WithWorkflowMatcher(m workflowMatcher) ApprovalServiceOption {
	return func(s *ApprovalService) { s.workflows = m }
}

// WithApprovalEvents sets the realtime publisher.
func WithApprovalEvents(events eventPublisher) ApprovalServiceOption {
	return func(s *ApprovalService) { s.events = events }
}

// WithApprovalReconciler schedules fallback writes for persistence.
func WithApprovalReconciler(r reconcileScheduler) ApprovalServiceOption {
	return func(s *ApprovalService) { s.reconcile = r }
}

// WithApprovalMetrics attaches instrumentation.
func WithApprovalMetrics(m *MetricsService) ApprovalServiceOption {
	return func(s *ApprovalService) { s.metrics = m }
}

// WithApprovalClock overrides the time source.
func WithApprovalClock(now func() time.Time) ApprovalServiceOption {
	return func(s *ApprovalService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewApprovalService constructs the approval engine. primary may be nil when
// no database is configured.
func NewApprovalService(primary, fallback approvalStore, queries approvalResultApplier, validate *validator.Validate, logger *zap.Logger, config ApprovalConfig, opts ...ApprovalServiceOption) *ApprovalService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.DefaultSLA <= 0 {
		config.DefaultSLA = 24 * time.Hour
	}
	if config.WarnWindow <= 0 {
		config.WarnWindow = 4 * time.Hour
	}
	svc := &ApprovalService{
		primary:   primary,
		fallback:  fallback,
		queries:   queries,
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

// CreateRequest opens a pending approval request for a query waiting on approval.
func (s *ApprovalService) CreateRequest(ctx context.Context, q *models.Query, requester models.Actor) (*models.ApprovalRequest, error) {
	if q == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "query is required")
	}
	if q.Status != models.QueryStatusWaitingForApproval {
		return nil, invalidState(q.Status, "request approval for")
	}
	if q.ProposedAction == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "query has no proposed action")
	}
	action := *q.ProposedAction

	now := s.now()
	req := &models.ApprovalRequest{
		ID:             uuid.NewString(),
		QueryID:        q.ID,
		Type:           models.ApprovalRequestTypeQueryAction,
		ProposedAction: action,
		RequestedBy:    displayName(requester),
		RequesterTeam:  string(requester.Team),
		Priority:       q.Priority,
		Status:         models.ApprovalStatusPending,
		SubmittedAt:    now,
		Approvers:      models.StringList{},
		AppNo:          q.AppNo,
		CustomerName:   q.CustomerName,
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	sla := s.config.DefaultSLA

	if rule := s.matchRule(ctx, q, action); rule != nil {
		id := rule.ID
		req.WorkflowID = &id
		req.Approvers = append(models.StringList{}, rule.Approvers...)
		if rule.SLAHours > 0 {
			sla = time.Duration(rule.SLAHours) * time.Hour
		}
		if rule.Priority != "" {
			req.Priority = rule.Priority
		}
	}
	req.DueDate = now.Add(sla)
	req.SLAStatus = models.ClassifySLA(now, req.DueDate, s.config.WarnWindow)

	if err := s.persist(ctx, req); err != nil {
		return nil, err
	}
	s.publish(ctx, models.EventApprovalCreated, req.QueryID, req)
	return req, nil
}

func (s *ApprovalService) matchRule(ctx context.Context, q *models.Query, action models.ProposedAction) *models.WorkflowRule {
	if s.workflows == nil {
		return nil
	}
	fields := map[string]string{
		"proposedAction": string(action),
		"markedForTeam":  string(q.MarkedForTeam),
		"branch":         q.Branch,
		"type":           models.ApprovalRequestTypeQueryAction,
		"priority":       string(q.Priority),
	}
	rule, err := s.workflows.Match(ctx, fields)
	if err != nil {
		s.logger.Warn("workflow rule lookup failed, using defaults", zap.String("query_id", q.ID), zap.Error(err))
		return nil
	}
	return rule
}

func (s *ApprovalService) persist(ctx context.Context, req *models.ApprovalRequest) error {
	if s.primary != nil {
		err := s.primary.CreateApproval(ctx, req)
		if err == nil {
			return nil
		}
		s.logger.Warn("approval persistence unavailable, using memory fallback",
			zap.String("request_id", req.ID), zap.String("query_id", req.QueryID), zap.Error(err))
		s.metrics.RecordFallbackWrite("approval_request")
	}
	if err := s.fallback.CreateApproval(ctx, req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create approval request")
	}
	if s.primary != nil && s.reconcile != nil {
		s.reconcile.Schedule(ReconcileApprovalRequest, req.ID, *req)
	}
	return nil
}

// BulkAct approves or rejects several requests. Individual failures are
// reported per item; the call itself only fails on invalid input.
func (s *ApprovalService) BulkAct(ctx context.Context, req dto.BulkApprovalRequest, approver models.Actor) ([]models.BulkActionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "action must be approve or reject and requestIds must not be empty")
	}
	name := strings.TrimSpace(req.ApproverName)
	if name == "" {
		name = displayName(approver)
	}
	comment := strings.TrimSpace(req.Comment)

	results := make([]models.BulkActionResult, 0, len(req.RequestIDs))
	for _, id := range req.RequestIDs {
		result := s.act(ctx, strings.TrimSpace(id), req.Action, name, comment)
		s.metrics.RecordApprovalAction(req.Action, result.Success)
		results = append(results, result)
	}
	return results, nil
}

func (s *ApprovalService) act(ctx context.Context, id, action, approver, comment string) models.BulkActionResult {
	result := models.BulkActionResult{RequestID: id}

	current, store, err := s.find(ctx, id)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.QueryID = current.QueryID
	if current.Status.IsTerminal() {
		result.Status = current.Status
		result.Error = fmt.Sprintf("approval request already %s", current.Status)
		return result
	}
	if latest := s.latestPending(ctx, current.QueryID); latest != nil && latest.ID != current.ID && latest.SubmittedAt.After(current.SubmittedAt) {
		result.Status = current.Status
		result.Error = "superseded by a newer approval request"
		return result
	}

	status := models.ApprovalStatusApproved
	outcome := models.OutcomeFor(current.ProposedAction)
	if action == "reject" {
		status = models.ApprovalStatusRejected
		outcome = models.OutcomeReject
	}
	act := models.ApprovalAct{ID: id, Status: status, ActedBy: approver, ActedAt: s.now()}
	if comment != "" {
		act.Comment = &comment
	}
	acted, err := store.MarkApprovalActed(ctx, act)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			result.Error = "approval request already acted on"
		} else {
			s.logger.Error("failed to mark approval request", zap.String("request_id", id), zap.Error(err))
			result.Error = "failed to update approval request"
		}
		return result
	}
	result.Success = true
	result.Status = acted.Status
	s.publish(ctx, models.EventApprovalActed, acted.QueryID, acted)

	if s.queries == nil {
		return result
	}
	q, err := s.queries.ApplyApprovalResult(ctx, acted.QueryID, outcome, approver, comment)
	if err != nil {
		s.logger.Error("approval recorded but query update failed",
			zap.String("request_id", id), zap.String("query_id", acted.QueryID), zap.Error(err))
		result.Error = "query update failed: " + err.Error()
		return result
	}
	result.QueryUpdated = true
	result.QueryStatus = q.Status
	return result
}

// find looks a request up in the persisted store first, then the fallback,
// and returns the store that holds it.
func (s *ApprovalService) find(ctx context.Context, id string) (*models.ApprovalRequest, approvalStore, error) {
	if id == "" {
		return nil, nil, errors.New("approval request id is required")
	}
	if s.primary != nil {
		req, err := s.primary.FindApproval(ctx, id)
		if err == nil {
			return req, s.primary, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("persisted approval lookup failed, checking fallback", zap.String("request_id", id), zap.Error(err))
		}
	}
	req, err := s.fallback.FindApproval(ctx, id)
	if err != nil {
		return nil, nil, errors.New("approval request not found")
	}
	return req, s.fallback, nil
}

func (s *ApprovalService) latestPending(ctx context.Context, queryID string) *models.ApprovalRequest {
	var latest *models.ApprovalRequest
	for _, store := range s.stores() {
		req, err := store.LatestPendingApproval(ctx, queryID)
		if err != nil {
			continue
		}
		if latest == nil || req.SubmittedAt.After(latest.SubmittedAt) {
			latest = req
		}
	}
	return latest
}

func (s *ApprovalService) stores() []approvalStore {
	if s.primary == nil {
		return []approvalStore{s.fallback}
	}
	return []approvalStore{s.primary, s.fallback}
}

// List returns requests from persistence and the fallback, newest first,
// with the SLA status derived at read time.
func (s *ApprovalService) List(ctx context.Context, query dto.ApprovalListQuery) ([]models.ApprovalRequest, error) {
	filter := models.ApprovalFilter{
		QueryID: models.NormalizeQueryID(query.QueryID),
		Limit:   query.Limit,
	}
	for _, part := range strings.Split(query.Status, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" || part == "all" {
			continue
		}
		switch status := models.ApprovalStatus(part); status {
		case models.ApprovalStatusPending, models.ApprovalStatusApproved, models.ApprovalStatusRejected, models.ApprovalStatusUnderReview:
			filter.Statuses = append(filter.Statuses, status)
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown approval status %q", part))
		}
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}

	seen := make(map[string]struct{})
	merged := make([]models.ApprovalRequest, 0)
	for i, store := range s.stores() {
		items, err := store.ListApprovals(ctx, filter)
		if err != nil {
			if i == 0 && s.primary != nil {
				s.logger.Warn("persisted approval listing failed, serving fallback only", zap.Error(err))
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list approval requests")
		}
		for _, item := range items {
			if _, dup := seen[item.ID]; dup {
				continue
			}
			seen[item.ID] = struct{}{}
			merged = append(merged, item)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].SubmittedAt.After(merged[j].SubmittedAt)
	})
	if len(merged) > filter.Limit {
		merged = merged[:filter.Limit]
	}
	now := s.now()
	for i := range merged {
		at := now
		if merged[i].Status.IsTerminal() && merged[i].ActedAt != nil {
			at = *merged[i].ActedAt
		}
		merged[i].SLAStatus = models.ClassifySLA(at, merged[i].DueDate, s.config.WarnWindow)
	}
	return merged, nil
}

// AuthorizeReset checks the administrative reset guard.
func (s *ApprovalService) AuthorizeReset(confirm bool, key string) error {
	if !s.config.AllowReset {
		return appErrors.Clone(appErrors.ErrForbidden, "approval reset is disabled")
	}
	if !confirm {
		return appErrors.Clone(appErrors.ErrValidation, "confirm must be true")
	}
	if s.config.ResetKeyHash == "" {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.config.ResetKeyHash), []byte(key)); err != nil {
		return appErrors.Clone(appErrors.ErrForbidden, "invalid reset key")
	}
	return nil
}

// ClearAll removes every approval request and reports how many were removed.
func (s *ApprovalService) ClearAll(ctx context.Context) (int64, error) {
	var total int64
	for _, store := range s.stores() {
		n, err := store.DeleteAllApprovals(ctx)
		if err != nil {
			return total, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear approval requests")
		}
		total += n
	}
	s.logger.Warn("approval requests cleared", zap.Int64("removed", total))
	s.publish(ctx, models.EventApprovalsCleared, "", map[string]int64{"removed": total})
	return total, nil
}

// RemoveByCriteria removes requests matching criteria. Empty criteria are rejected.
func (s *ApprovalService) RemoveByCriteria(ctx context.Context, criteria models.ApprovalCriteria) (int64, error) {
	if criteria.Empty() {
		return 0, appErrors.Clone(appErrors.ErrValidation, "at least one criterion is required")
	}
	criteria.QueryID = models.NormalizeQueryID(criteria.QueryID)
	var total int64
	for _, store := range s.stores() {
		n, err := store.DeleteApprovalsByCriteria(ctx, criteria)
		if err != nil {
			return total, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove approval requests")
		}
		total += n
	}
	s.logger.Warn("approval requests removed by criteria", zap.Int64("removed", total), zap.Any("criteria", criteria))
	s.publish(ctx, models.EventApprovalsCleared, criteria.QueryID, map[string]int64{"removed": total})
	return total, nil
}

func (s *ApprovalService) publish(ctx context.Context, eventType, queryID string, data interface{}) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, models.Event{Type: eventType, QueryID: queryID, Data: data, At: s.now()})
}
