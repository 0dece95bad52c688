package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/loan-query-api/internal/dto"
	"github.com/noah-isme/loan-query-api/internal/middleware"
	"github.com/noah-isme/loan-query-api/internal/models"
	appErrors "github.com/noah-isme/loan-query-api/pkg/errors"
)

type approvalServiceMock struct {
	approver     models.Actor
	confirm      bool
	resetKey     string
	resetErr     error
	criteria     models.ApprovalCriteria
	clearedAll   bool
	removeCalled bool
}

func (m *approvalServiceMock) List(ctx context.Context, query dto.ApprovalListQuery) ([]models.ApprovalRequest, error) {
	return []models.ApprovalRequest{{ID: "r1"}}, nil
}

func (m *approvalServiceMock) BulkAct(ctx context.Context, req dto.BulkApprovalRequest, approver models.Actor) ([]models.BulkActionResult, error) {
	m.approver = approver
	results := make([]models.BulkActionResult, 0, len(req.RequestIDs))
	for _, id := range req.RequestIDs {
		results = append(results, models.BulkActionResult{RequestID: id, Success: id != "missing"})
	}
	return results, nil
}

func (m *approvalServiceMock) AuthorizeReset(confirm bool, key string) error {
	m.confirm = confirm
	m.resetKey = key
	return m.resetErr
}

func (m *approvalServiceMock) ClearAll(ctx context.Context) (int64, error) {
	m.clearedAll = true
	return 3, nil
}

func (m *approvalServiceMock) RemoveByCriteria(ctx context.Context, criteria models.ApprovalCriteria) (int64, error) {
	m.removeCalled = true
	m.criteria = criteria
	return 1, nil
}

func TestApprovalHandlerBulkActReportsEveryRequest(t *testing.T) {
	svc := &approvalServiceMock{}
	c, w := newJSONContext(t, http.MethodPost, "/approvals", dto.BulkApprovalRequest{
		Action: "approve", RequestIDs: []string{"r1", "missing"},
	})
	c.Set(middleware.ContextUserKey, &models.JWTClaims{Name: "Approver One", Role: models.RoleApprover})

	NewApprovalHandler(svc).BulkAct(c)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeEnvelope(t, w)
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, "Approver One", svc.approver.Name)
}

func TestApprovalHandlerClearAllReadsConfirmAndKey(t *testing.T) {
	svc := &approvalServiceMock{}
	c, w := newJSONContext(t, http.MethodDelete, "/clear-approvals?confirm=true", nil)
	c.Request.Header.Set(ResetKeyHeader, "s3cret")

	NewApprovalHandler(svc).ClearAll(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.confirm)
	assert.Equal(t, "s3cret", svc.resetKey)
	assert.True(t, svc.clearedAll)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(3), data["deleted"])
}

func TestApprovalHandlerResetDenied(t *testing.T) {
	svc := &approvalServiceMock{resetErr: appErrors.Clone(appErrors.ErrForbidden, "reset key mismatch")}
	c, w := newJSONContext(t, http.MethodDelete, "/clear-approvals", dto.ClearApprovalsRequest{Confirm: true})

	NewApprovalHandler(svc).ClearAll(c)

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, svc.clearedAll)
}

func TestApprovalHandlerRemoveByCriteria(t *testing.T) {
	svc := &approvalServiceMock{}
	c, w := newJSONContext(t, http.MethodPost, "/clear-approvals", dto.ClearApprovalsRequest{
		Confirm:  true,
		Criteria: models.ApprovalCriteria{QueryID: "5"},
	})

	NewApprovalHandler(svc).RemoveByCriteria(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.removeCalled)
	assert.Equal(t, "5", svc.criteria.QueryID)
}

func TestApprovalHandlerRejectsBadConfirm(t *testing.T) {
	svc := &approvalServiceMock{}
	c, w := newJSONContext(t, http.MethodDelete, "/clear-approvals?confirm=maybe", nil)

	NewApprovalHandler(svc).ClearAll(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, svc.clearedAll)
}

func TestMetricsHandlerReadyReportsDegradedComponents(t *testing.T) {
	handler := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"postgres": func(ctx context.Context) error { return errors.New("connection refused") },
		"redis":    func(ctx context.Context) error { return nil },
	})
	c, w := newJSONContext(t, http.MethodGet, "/ready", nil)

	handler.Ready(c)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeEnvelope(t, w)
	assert.Equal(t, true, body["degraded"])
	components := body["components"].(map[string]interface{})
	assert.Equal(t, "connection refused", components["postgres"])
	assert.Equal(t, "ok", components["redis"])
}

func TestRealtimeHandlerWithoutHub(t *testing.T) {
	c, w := newJSONContext(t, http.MethodGet, "/events", nil)

	NewRealtimeHandler(nil, 0, nil).Events(c)

	require.Equal(t, http.StatusInternalServerError, w.Code)
}
