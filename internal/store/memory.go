// Package store holds the process-local fallback used when persistence is
// unavailable. Every exported method is one atomic operation under the lock.
package store

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/loan-query-api/internal/models"
)

// MemoryStore keeps queries, approval requests, chat messages, archives and
// workflow rules in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	queries   map[string]models.Query
	approvals map[string]models.ApprovalRequest
	messages  []models.ChatMessage
	archives  map[string]models.QueryChatHistory
	rules     []models.WorkflowRule
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		queries:   make(map[string]models.Query),
		approvals: make(map[string]models.ApprovalRequest),
		archives:  make(map[string]models.QueryChatHistory),
	}
}

func window(limit, offset, total int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return offset, end
}

func cloneQuery(q models.Query) *models.Query {
	q.Remarks = append(models.Remarks(nil), q.Remarks...)
	return &q
}

// Create stores a new query.
func (s *MemoryStore) Create(ctx context.Context, q *models.Query) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries[q.ID] = *cloneQuery(*q)
	return nil
}

// FindByID returns a query or sql.ErrNoRows.
func (s *MemoryStore) FindByID(ctx context.Context, id string) (*models.Query, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queries[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cloneQuery(q), nil
}

// List returns queries matching filter, newest first, with the total count.
func (s *MemoryStore) List(ctx context.Context, filter models.QueryFilter) ([]models.Query, int, error) {
	s.mu.RLock()
	matched := make([]models.Query, 0, len(s.queries))
	for _, q := range s.queries {
		if queryMatches(q, filter) {
			matched = append(matched, *cloneQuery(q))
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	start, end := window(filter.Limit, filter.Offset, len(matched))
	return matched[start:end], len(matched), nil
}

func queryMatches(q models.Query, filter models.QueryFilter) bool {
	if filter.Team != "" {
		if q.MarkedForTeam != filter.Team && !(filter.IncludeBoth && q.MarkedForTeam == models.TeamBoth) {
			return false
		}
	}
	if filter.AppNo != "" && q.AppNo != filter.AppNo {
		return false
	}
	if len(filter.Statuses) == 0 {
		return true
	}
	for _, status := range filter.Statuses {
		if q.Status == status {
			return true
		}
	}
	return false
}

// Transition applies t when the stored status is allowed, else sql.ErrNoRows.
func (s *MemoryStore) Transition(ctx context.Context, t models.QueryTransition) (*models.Query, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queries[t.ID]
	if !ok || !t.Allows(q.Status) {
		return nil, sql.ErrNoRows
	}
	updated := cloneQuery(q)
	t.Apply(updated)
	s.queries[t.ID] = *updated
	return cloneQuery(*updated), nil
}

// CreateApproval stores a request.
func (s *MemoryStore) CreateApproval(ctx context.Context, req *models.ApprovalRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approvals[req.ID] = *req
	return nil
}

// FindApproval returns a request or sql.ErrNoRows.
func (s *MemoryStore) FindApproval(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.approvals[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &req, nil
}

// LatestPendingApproval returns the newest actionable request for a query.
func (s *MemoryStore) LatestPendingApproval(ctx context.Context, queryID string) (*models.ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.ApprovalRequest
	for _, req := range s.approvals {
		if req.QueryID != queryID || req.Status.IsTerminal() {
			continue
		}
		if latest == nil || req.SubmittedAt.After(latest.SubmittedAt) {
			r := req
			latest = &r
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	return latest, nil
}

// ListApprovals returns requests matching filter, newest first.
func (s *MemoryStore) ListApprovals(ctx context.Context, filter models.ApprovalFilter) ([]models.ApprovalRequest, error) {
	s.mu.RLock()
	out := make([]models.ApprovalRequest, 0, len(s.approvals))
	for _, req := range s.approvals {
		if filter.Matches(req) {
			out = append(out, req)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	return out, nil
}

// MarkApprovalActed closes a non-terminal request, else sql.ErrNoRows.
func (s *MemoryStore) MarkApprovalActed(ctx context.Context, act models.ApprovalAct) (*models.ApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.approvals[act.ID]
	if !ok || req.Status.IsTerminal() {
		return nil, sql.ErrNoRows
	}
	actedBy := act.ActedBy
	actedAt := act.ActedAt
	req.Status = act.Status
	req.ActedBy = &actedBy
	req.ActedAt = &actedAt
	req.Comment = act.Comment
	s.approvals[act.ID] = req
	return &req, nil
}

// DeleteAllApprovals removes every request and reports how many were held.
func (s *MemoryStore) DeleteAllApprovals(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.approvals))
	s.approvals = make(map[string]models.ApprovalRequest)
	return n, nil
}

// DeleteApprovalsByCriteria removes matching requests in a single replace.
func (s *MemoryStore) DeleteApprovalsByCriteria(ctx context.Context, criteria models.ApprovalCriteria) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make(map[string]models.ApprovalRequest, len(s.approvals))
	var removed int64
	for id, req := range s.approvals {
		if criteria.Matches(req) {
			removed++
			continue
		}
		kept[id] = req
	}
	s.approvals = kept
	return removed, nil
}

// ForgetApproval drops a request once it has been reconciled into persistence.
func (s *MemoryStore) ForgetApproval(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.approvals, id)
}

// FindDuplicateMessage returns a message repeating msg within window, or sql.ErrNoRows.
func (s *MemoryStore) FindDuplicateMessage(ctx context.Context, msg models.ChatMessage, within time.Duration) (*models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if existing := s.duplicateLocked(msg, within); existing != nil {
		return existing, nil
	}
	return nil, sql.ErrNoRows
}

func (s *MemoryStore) duplicateLocked(msg models.ChatMessage, within time.Duration) *models.ChatMessage {
	for i := range s.messages {
		if msg.DuplicateOf(s.messages[i], within) {
			existing := s.messages[i]
			return &existing
		}
	}
	return nil
}

// SaveMessage appends msg unless a duplicate exists within window, in which
// case the existing message is returned with duplicate=true.
func (s *MemoryStore) SaveMessage(ctx context.Context, msg *models.ChatMessage, within time.Duration) (*models.ChatMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing := s.duplicateLocked(*msg, within); existing != nil {
		return existing, true, nil
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	s.messages = append(s.messages, *msg)
	stored := *msg
	return &stored, false, nil
}

// ListMessages returns the messages of one query in insertion order.
func (s *MemoryStore) ListMessages(ctx context.Context, queryID string) ([]models.ChatMessage, error) {
	key := models.NormalizeQueryID(queryID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ChatMessage, 0)
	for _, msg := range s.messages {
		if models.NormalizeQueryID(msg.QueryID) == key {
			out = append(out, msg)
		}
	}
	return out, nil
}

// ForgetMessage drops a message once it has been reconciled into persistence.
func (s *MemoryStore) ForgetMessage(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.messages[:0:0]
	for _, msg := range s.messages {
		if msg.ID != id {
			kept = append(kept, msg)
		}
	}
	s.messages = kept
}

// UpsertArchive replaces the archive of a query.
func (s *MemoryStore) UpsertArchive(ctx context.Context, archive *models.QueryChatHistory) error {
	key := models.NormalizeQueryID(archive.QueryID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.archives[key]; ok {
		archive.ID = existing.ID
	} else if archive.ID == "" {
		archive.ID = uuid.NewString()
	}
	s.archives[key] = *archive
	return nil
}

// FindArchive returns the archive of a query or sql.ErrNoRows.
func (s *MemoryStore) FindArchive(ctx context.Context, queryID string) (*models.QueryChatHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	archive, ok := s.archives[models.NormalizeQueryID(queryID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &archive, nil
}

// ListArchives returns matching archives newest first with the total count.
func (s *MemoryStore) ListArchives(ctx context.Context, filter models.ArchiveFilter) ([]models.QueryChatHistory, int, error) {
	s.mu.RLock()
	matched := make([]models.QueryChatHistory, 0, len(s.archives))
	for _, archive := range s.archives {
		if archiveMatches(archive, filter) {
			matched = append(matched, archive)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].ArchivedAt.After(matched[j].ArchivedAt)
	})
	start, end := window(filter.Limit, filter.Offset, len(matched))
	return matched[start:end], len(matched), nil
}

func archiveMatches(a models.QueryChatHistory, f models.ArchiveFilter) bool {
	if f.AppNo != "" && !strings.Contains(strings.ToLower(a.AppNo), strings.ToLower(f.AppNo)) {
		return false
	}
	if f.CustomerName != "" && !strings.Contains(strings.ToLower(a.CustomerName), strings.ToLower(f.CustomerName)) {
		return false
	}
	if f.MarkedForTeam != "" && a.MarkedForTeam != f.MarkedForTeam {
		return false
	}
	if f.ArchiveReason != "" && a.ArchiveReason != f.ArchiveReason {
		return false
	}
	return true
}

// ListRules returns workflow rules in evaluation order.
func (s *MemoryStore) ListRules(ctx context.Context, activeOnly bool) ([]models.WorkflowRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.WorkflowRule, 0, len(s.rules))
	for _, rule := range s.rules {
		if activeOnly && !rule.Active {
			continue
		}
		out = append(out, rule)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// UpsertRule inserts or replaces a rule keyed by name.
func (s *MemoryStore) UpsertRule(ctx context.Context, rule *models.WorkflowRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rules {
		if s.rules[i].Name == rule.Name {
			rule.ID = s.rules[i].ID
			s.rules[i] = *rule
			return nil
		}
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	s.rules = append(s.rules, *rule)
	return nil
}

// ForgetArchive drops an archive once it has been reconciled into persistence.
func (s *MemoryStore) ForgetArchive(queryID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.archives, models.NormalizeQueryID(queryID))
}

// Snapshot is a copy of the fallback records awaiting reconciliation.
type Snapshot struct {
	Approvals []models.ApprovalRequest
	Messages  []models.ChatMessage
	Archives  []models.QueryChatHistory
}

// Pending copies every approval request, chat message and archive held in memory.
func (s *MemoryStore) Pending() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Approvals: make([]models.ApprovalRequest, 0, len(s.approvals)),
		Messages:  append([]models.ChatMessage(nil), s.messages...),
		Archives:  make([]models.QueryChatHistory, 0, len(s.archives)),
	}
	for _, req := range s.approvals {
		snap.Approvals = append(snap.Approvals, req)
	}
	for _, archive := range s.archives {
		snap.Archives = append(snap.Archives, archive)
	}
	return snap
}
