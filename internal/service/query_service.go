package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/loan-query-api/internal/dto"
	"github.com/noah-isme/loan-query-api/internal/models"
	appErrors "github.com/noah-isme/loan-query-api/pkg/errors"
)

type queryStore interface {
	Create(ctx context.Context, q *models.Query) error
	FindByID(ctx context.Context, id string) (*models.Query, error)
	List(ctx context.Context, filter models.QueryFilter) ([]models.Query, int, error)
	Transition(ctx context.Context, t models.QueryTransition) (*models.Query, error)
}

type queryChat interface {
	PostSystemMessage(ctx context.Context, queryID, text string, action models.ChatActionType, actor models.Actor) error
	ArchiveQuery(ctx context.Context, queryID string, meta models.ArchiveMeta, reason string) (*models.QueryChatHistory, error)
}

type approvalCreator interface {
	CreateRequest(ctx context.Context, q *models.Query, requester models.Actor) (*models.ApprovalRequest, error)
}

// QueryService owns the query lifecycle and its status transitions.
type QueryService struct {
	store     queryStore
	chat      queryChat
	approvals approvalCreator
	events    eventPublisher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// QueryServiceOption configures the service.
type QueryServiceOption func(*QueryService)

// WithQueryEvents sets the realtime publisher.
func WithQueryEvents(events eventPublisher) QueryServiceOption {
	return func(s *QueryService) { s.events = events }
}

// WithQueryMetrics attaches instrumentation.
func WithQueryMetrics(m *MetricsService) QueryServiceOption {
	return func(s *QueryService) { s.metrics = m }
}

// WithQueryClock overrides the time source.
func WithQueryClock(now func() time.Time) QueryServiceOption {
	return func(s *QueryService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewQueryService constructs the lifecycle manager.
func NewQueryService(store queryStore, chat queryChat, validate *validator.Validate, logger *zap.Logger, opts ...QueryServiceOption) *QueryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &QueryService{
		store:     store,
		chat:      chat,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// AttachApprovals wires the approval engine. The engine itself depends on
// this service to apply results, so it is attached after construction.
func (s *QueryService) AttachApprovals(approvals approvalCreator) {
	s.approvals = approvals
}

// Create raises a new pending query.
func (s *QueryService) Create(ctx context.Context, req dto.CreateQueryRequest, actor models.Actor) (*models.Query, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "appNo, customerName, queryText and markedForTeam are required")
	}
	createdBy := strings.TrimSpace(req.CreatedBy)
	if createdBy == "" {
		createdBy = actor.Name
	}
	if createdBy == "" {
		createdBy = "operations"
	}
	priority := models.Priority(req.Priority)
	if priority == "" {
		priority = models.PriorityMedium
	}
	now := s.now()
	q := &models.Query{
		ID:            uuid.NewString(),
		AppNo:         strings.TrimSpace(req.AppNo),
		CustomerName:  strings.TrimSpace(req.CustomerName),
		Branch:        strings.TrimSpace(req.Branch),
		QueryText:     strings.TrimSpace(req.QueryText),
		Status:        models.QueryStatusPending,
		MarkedForTeam: models.Team(req.MarkedForTeam),
		Priority:      priority,
		CreatedBy:     createdBy,
		CreatedAt:     now,
		UpdatedAt:     now,
		Remarks: models.Remarks{{
			By:     createdBy,
			Role:   string(actor.Role),
			Team:   string(actor.Team),
			Action: "created",
			Text:   strings.TrimSpace(req.QueryText),
			At:     now,
		}},
	}
	if err := s.store.Create(ctx, q); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create query")
	}
	s.metrics.RecordTransition(q.Status)
	s.postSystem(ctx, q.ID, fmt.Sprintf("Query raised by %s for %s team", createdBy, q.MarkedForTeam), models.ChatActionMessage, models.Actor{Name: createdBy, Role: actor.Role, Team: actor.Team})
	s.publish(ctx, models.EventQueryCreated, q)
	return q, nil
}

// Get returns a single query.
func (s *QueryService) Get(ctx context.Context, id string) (*models.Query, error) {
	key := models.NormalizeQueryID(id)
	if key == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "queryId is required")
	}
	q, err := s.store.FindByID(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "query not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load query")
	}
	return q, nil
}

// List returns queries for the operations dashboard.
func (s *QueryService) List(ctx context.Context, query dto.QueryListQuery) ([]models.Query, int, error) {
	statuses, err := parseStatuses(query.Status)
	if err != nil {
		return nil, 0, err
	}
	filter := models.QueryFilter{
		Statuses: statuses,
		AppNo:    strings.TrimSpace(query.AppNo),
		Limit:    query.Limit,
		Offset:   query.Offset,
	}
	if team := strings.TrimSpace(query.Team); team != "" {
		filter.Team = models.Team(strings.ToLower(team))
		filter.IncludeBoth = filter.Team != models.TeamBoth
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, 0, appErrors.Clone(appErrors.ErrValidation, "limit and offset must not be negative")
	}
	queries, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list queries")
	}
	return queries, total, nil
}

// ListByTeam returns queries routed to team or to both teams.
func (s *QueryService) ListByTeam(ctx context.Context, team models.Team, statusFilter string) ([]models.Query, int, error) {
	statuses, err := parseStatuses(statusFilter)
	if err != nil {
		return nil, 0, err
	}
	queries, total, err := s.store.List(ctx, models.QueryFilter{
		Team:        team,
		IncludeBoth: true,
		Statuses:    statuses,
		Limit:       200,
	})
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list team queries")
	}
	return queries, total, nil
}

func parseStatuses(raw string) ([]models.QueryStatus, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "all") {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]models.QueryStatus, 0, len(parts))
	seen := make(map[models.QueryStatus]struct{}, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		status, ok := models.ParseQueryStatus(part)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", strings.TrimSpace(part)))
		}
		if _, dup := seen[status]; dup {
			continue
		}
		seen[status] = struct{}{}
		out = append(out, status)
	}
	return out, nil
}

// ProposeAction moves a pending query to waiting-for-approval and opens an
// approval request for the proposed decision.
func (s *QueryService) ProposeAction(ctx context.Context, queryID string, req dto.ProposeActionRequest, actor models.Actor) (*models.Query, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "action is required")
	}
	action, ok := models.ParseProposedAction(req.Action)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "action must be one of approve, defer, otc")
	}
	if s.approvals == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "approval engine is not configured")
	}
	actor = actorWithOverrides(actor, req.Actor, req.Team)

	current, err := s.Get(ctx, queryID)
	if err != nil {
		return nil, err
	}
	if current.Status != models.QueryStatusPending {
		return nil, invalidState(current.Status, "propose an action")
	}

	now := s.now()
	updated, err := s.store.Transition(ctx, models.QueryTransition{
		ID:             current.ID,
		From:           []models.QueryStatus{models.QueryStatusPending},
		To:             models.QueryStatusWaitingForApproval,
		ProposedAction: &action,
		Remark:         newRemark(actor, "propose:"+string(action), req.Remarks, now),
		At:             now,
	})
	if err != nil {
		return nil, s.transitionError(ctx, current.ID, err, "propose an action")
	}

	request, err := s.approvals.CreateRequest(ctx, updated, actor)
	if err != nil {
		s.logger.Warn("approval request creation failed, rolling back proposal",
			zap.String("query_id", updated.ID), zap.Error(err))
		if _, rbErr := s.store.Transition(ctx, models.QueryTransition{
			ID:            updated.ID,
			From:          []models.QueryStatus{models.QueryStatusWaitingForApproval},
			To:            models.QueryStatusPending,
			ClearApproval: true,
			Remark:        newRemark(models.Actor{Name: "system"}, "propose:rollback", "", s.now()),
			At:            s.now(),
		}); rbErr != nil {
			s.logger.Error("failed to roll back proposal", zap.String("query_id", updated.ID), zap.Error(rbErr))
		}
		return nil, err
	}

	requestID := request.ID
	if stamped, err := s.store.Transition(ctx, models.QueryTransition{
		ID:                updated.ID,
		From:              []models.QueryStatus{models.QueryStatusWaitingForApproval},
		ApprovalRequestID: &requestID,
		At:                s.now(),
	}); err == nil {
		updated = stamped
	} else {
		s.logger.Warn("failed to link approval request to query",
			zap.String("query_id", updated.ID), zap.String("request_id", requestID), zap.Error(err))
	}

	s.metrics.RecordTransition(updated.Status)
	s.postSystem(ctx, updated.ID, fmt.Sprintf("%s proposed %s, awaiting approval", displayName(actor), action), models.ChatActionMessage, actor)
	s.publish(ctx, models.EventQueryStatusChanged, updated)
	return updated, nil
}

// SalesAction applies the sales dashboard PATCH: an optional reassignment
// followed by a proposal.
func (s *QueryService) SalesAction(ctx context.Context, req dto.SalesActionRequest, actor models.Actor) (*models.Query, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "queryId and action (approve, defer, otc) are required")
	}
	actor = actorWithOverrides(actor, req.Actor, "")
	if actor.Team == "" {
		actor.Team = models.TeamSales
	}
	if req.AssignTo != "" {
		if _, err := s.Reassign(ctx, req.QueryID.String(), models.Team(req.AssignTo), actor); err != nil {
			return nil, err
		}
	}
	return s.ProposeAction(ctx, req.QueryID.String(), dto.ProposeActionRequest{
		Action:  req.Action,
		Remarks: req.Remarks,
	}, actor)
}

// ApplyApprovalResult finalizes a waiting query with the approver's outcome.
// A query that is already terminal is returned unchanged.
func (s *QueryService) ApplyApprovalResult(ctx context.Context, queryID string, outcome models.ApprovalOutcome, approver, comment string) (*models.Query, error) {
	target, ok := outcome.Status()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown approval outcome %q", outcome))
	}
	current, err := s.Get(ctx, queryID)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return current, nil
	}
	if approver == "" {
		approver = "approver"
	}

	now := s.now()
	approvalStatus := string(models.ApprovalStatusApproved)
	if outcome == models.OutcomeReject {
		approvalStatus = string(models.ApprovalStatusRejected)
	}
	updated, err := s.store.Transition(ctx, models.QueryTransition{
		ID:             current.ID,
		From:           []models.QueryStatus{models.QueryStatusWaitingForApproval},
		To:             target,
		ApprovedBy:     &approver,
		ApprovalDate:   &now,
		ApprovalStatus: &approvalStatus,
		Remark:         newRemark(models.Actor{Name: approver, Role: models.RoleApprover}, "approval:"+string(outcome), comment, now),
		At:             now,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if latest, getErr := s.Get(ctx, current.ID); getErr == nil && latest.Status.IsTerminal() {
				return latest, nil
			}
		}
		return nil, s.transitionError(ctx, current.ID, err, "apply an approval result")
	}

	text := fmt.Sprintf("%s marked the query %s", approver, target)
	if comment = strings.TrimSpace(comment); comment != "" {
		text += ": " + comment
	}
	s.postSystem(ctx, updated.ID, text, models.ChatActionApproval, models.Actor{Name: approver, Role: models.RoleApprover})
	s.onTerminal(ctx, updated, approver)
	return updated, nil
}

// Revert sends a deferred or OTC query back to pending.
func (s *QueryService) Revert(ctx context.Context, queryID string, req dto.RemarkRequest, actor models.Actor) (*models.Query, error) {
	if actor.Role != models.RoleOperations && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only operations or admin may revert a query")
	}
	actor = actorWithOverrides(actor, req.Actor, "")
	current, err := s.Get(ctx, queryID)
	if err != nil {
		return nil, err
	}
	if !current.Status.Revertible() {
		return nil, invalidState(current.Status, "revert")
	}
	now := s.now()
	updated, err := s.store.Transition(ctx, models.QueryTransition{
		ID:            current.ID,
		From:          []models.QueryStatus{models.QueryStatusDeferred, models.QueryStatusOTC},
		To:            models.QueryStatusPending,
		ClearApproval: true,
		Remark:        newRemark(actor, "revert", req.Remarks, now),
		At:            now,
	})
	if err != nil {
		return nil, s.transitionError(ctx, current.ID, err, "revert")
	}
	s.metrics.RecordTransition(updated.Status)
	s.postSystem(ctx, updated.ID, fmt.Sprintf("%s reverted the query from %s to pending", displayName(actor), current.Status), models.ChatActionRevert, actor)
	s.publish(ctx, models.EventQueryStatusChanged, updated)
	return updated, nil
}

// Resolve closes a pending query directly.
func (s *QueryService) Resolve(ctx context.Context, queryID string, req dto.RemarkRequest, actor models.Actor) (*models.Query, error) {
	actor = actorWithOverrides(actor, req.Actor, "")
	current, err := s.Get(ctx, queryID)
	if err != nil {
		return nil, err
	}
	if current.Status != models.QueryStatusPending {
		return nil, invalidState(current.Status, "resolve")
	}
	now := s.now()
	resolvedBy := displayName(actor)
	updated, err := s.store.Transition(ctx, models.QueryTransition{
		ID:         current.ID,
		From:       []models.QueryStatus{models.QueryStatusPending},
		To:         models.QueryStatusResolved,
		ResolvedBy: &resolvedBy,
		ResolvedAt: &now,
		Remark:     newRemark(actor, "resolve", req.Remarks, now),
		At:         now,
	})
	if err != nil {
		return nil, s.transitionError(ctx, current.ID, err, "resolve")
	}
	text := fmt.Sprintf("%s resolved the query", resolvedBy)
	if remarks := strings.TrimSpace(req.Remarks); remarks != "" {
		text += ": " + remarks
	}
	s.postSystem(ctx, updated.ID, text, models.ChatActionResolution, actor)
	s.onTerminal(ctx, updated, resolvedBy)
	return updated, nil
}

// Reassign routes an open query to another team.
func (s *QueryService) Reassign(ctx context.Context, queryID string, team models.Team, actor models.Actor) (*models.Query, error) {
	switch team {
	case models.TeamSales, models.TeamCredit, models.TeamBoth, models.TeamOperations:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "team must be one of sales, credit, both, operations")
	}
	current, err := s.Get(ctx, queryID)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return nil, invalidState(current.Status, "reassign")
	}
	now := s.now()
	updated, err := s.store.Transition(ctx, models.QueryTransition{
		ID:            current.ID,
		From:          []models.QueryStatus{models.QueryStatusPending, models.QueryStatusWaitingForApproval},
		MarkedForTeam: &team,
		Remark:        newRemark(actor, "reassign:"+string(team), "", now),
		At:            now,
	})
	if err != nil {
		return nil, s.transitionError(ctx, current.ID, err, "reassign")
	}
	s.publish(ctx, models.EventQueryReassigned, updated)
	return updated, nil
}

// ArchiveChat archives the thread of a query on demand. The reason defaults
// to the current query status.
func (s *QueryService) ArchiveChat(ctx context.Context, req dto.ArchiveChatRequest) (*models.QueryChatHistory, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "queryId is required")
	}
	q, err := s.Get(ctx, req.QueryID.String())
	if err != nil {
		return nil, err
	}
	meta := models.MetaFromQuery(q)
	meta.ArchivedBy = strings.TrimSpace(req.ArchivedBy)
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = string(q.Status)
	}
	return s.chat.ArchiveQuery(ctx, q.ID, meta, reason)
}

// onTerminal runs once per entry into a terminal status.
func (s *QueryService) onTerminal(ctx context.Context, q *models.Query, actor string) {
	s.metrics.RecordTransition(q.Status)
	if s.chat != nil {
		meta := models.MetaFromQuery(q)
		meta.ArchivedBy = actor
		if _, err := s.chat.ArchiveQuery(ctx, q.ID, meta, string(q.Status)); err != nil {
			s.logger.Warn("failed to archive chat on terminal status",
				zap.String("query_id", q.ID), zap.String("status", string(q.Status)), zap.Error(err))
		}
	}
	s.publish(ctx, models.EventQueryStatusChanged, q)
}

func (s *QueryService) transitionError(ctx context.Context, id string, err error, verb string) error {
	if !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update query")
	}
	latest, getErr := s.store.FindByID(ctx, id)
	if getErr != nil {
		return appErrors.Clone(appErrors.ErrNotFound, "query not found")
	}
	return invalidState(latest.Status, verb)
}

func (s *QueryService) postSystem(ctx context.Context, queryID, text string, action models.ChatActionType, actor models.Actor) {
	if s.chat == nil {
		return
	}
	if err := s.chat.PostSystemMessage(ctx, queryID, text, action, actor); err != nil {
		s.logger.Warn("failed to post system chat message", zap.String("query_id", queryID), zap.Error(err))
	}
}

func (s *QueryService) publish(ctx context.Context, eventType string, q *models.Query) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, models.Event{Type: eventType, QueryID: q.ID, Data: q, At: s.now()})
}

func invalidState(status models.QueryStatus, verb string) error {
	return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("cannot %s a query in status %s", verb, status))
}

func newRemark(actor models.Actor, action, text string, at time.Time) *models.Remark {
	return &models.Remark{
		By:     displayName(actor),
		Role:   string(actor.Role),
		Team:   string(actor.Team),
		Action: action,
		Text:   strings.TrimSpace(text),
		At:     at,
	}
}

func displayName(actor models.Actor) string {
	if actor.Name == "" {
		return "system"
	}
	return actor.Name
}

// actorWithOverrides lets dashboards without auth name the acting user.
func actorWithOverrides(actor models.Actor, name, team string) models.Actor {
	if actor.Name == "" {
		actor.Name = strings.TrimSpace(name)
	}
	if actor.Team == "" && strings.TrimSpace(team) != "" {
		actor.Team = models.Team(strings.ToLower(strings.TrimSpace(team)))
	}
	return actor
}
