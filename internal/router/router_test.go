package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/loan-query-api/internal/handler"
	internalmiddleware "github.com/noah-isme/loan-query-api/internal/middleware"
	"github.com/noah-isme/loan-query-api/internal/models"
	"github.com/noah-isme/loan-query-api/internal/realtime"
	"github.com/noah-isme/loan-query-api/internal/service"
	"github.com/noah-isme/loan-query-api/internal/store"
	"github.com/noah-isme/loan-query-api/pkg/config"
)

const testSecret = "router-test-secret"

func buildRouter(t *testing.T, withAuth bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{Env: config.EnvProduction, APIPrefix: "/api/v1"}
	mem := store.NewMemoryStore()
	metrics := service.NewMetricsService()
	hub := realtime.NewHub(nil)

	chat := service.NewChatService(nil, mem, nil, nil, service.ChatConfig{},
		service.WithChatQueryLookup(mem), service.WithChatEvents(hub), service.WithChatMetrics(metrics))
	queries := service.NewQueryService(mem, chat, nil, nil, service.WithQueryEvents(hub), service.WithQueryMetrics(metrics))
	workflows := service.NewWorkflowService(mem, nil, nil)
	approvals := service.NewApprovalService(nil, mem, queries, nil, nil, service.ApprovalConfig{},
		service.WithWorkflowMatcher(workflows), service.WithApprovalEvents(hub), service.WithApprovalMetrics(metrics))
	queries.AttachApprovals(approvals)

	deps := Dependencies{Config: cfg, Metrics: metrics}
	if withAuth {
		deps.Auth = service.NewAuthService(nil, service.AuthConfig{Secret: testSecret})
	}
	return New(deps, Handlers{
		Queries:      handler.NewQueryHandler(queries),
		Sales:        handler.NewSalesHandler(queries),
		Chat:         handler.NewChatHandler(chat),
		ChatArchives: handler.NewChatArchiveHandler(chat, queries),
		Approvals:    handler.NewApprovalHandler(approvals),
		Workflows:    handler.NewWorkflowHandler(workflows),
		Realtime:     handler.NewRealtimeHandler(hub, 0, nil),
		Ops:          handler.NewMetricsHandler(metrics, nil),
	})
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
	Count   *int            `json:"count"`
}

func do(t *testing.T, r *gin.Engine, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func identity(name string, role models.UserRole) map[string]string {
	return map[string]string{
		internalmiddleware.HeaderUserName: name,
		internalmiddleware.HeaderUserRole: string(role),
	}
}

func TestRouterApprovalLifecycleArchivesThread(t *testing.T) {
	r := buildRouter(t, false)

	w, env := do(t, r, http.MethodPost, "/api/v1/queries", map[string]string{
		"appNo": "APP-77", "customerName": "Meera", "queryText": "Bank statement unclear", "markedForTeam": "sales",
	}, identity("ops-1", models.RoleOperations))
	require.Equal(t, http.StatusCreated, w.Code)
	var q models.Query
	require.NoError(t, json.Unmarshal(env.Data, &q))

	w, _ = do(t, r, http.MethodPost, "/api/v1/queries/"+q.ID+"/chat", map[string]string{
		"message": "please re-upload", "sender": "ops-1", "senderRole": "operations",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = do(t, r, http.MethodPatch, "/api/v1/queries/sales", map[string]interface{}{
		"queryId": q.ID, "action": "approve", "remarks": "verified",
	}, identity("sam", models.RoleSales))
	require.Equal(t, http.StatusOK, w.Code)

	w, env = do(t, r, http.MethodGet, "/api/v1/approvals?status=pending", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pending []models.ApprovalRequest
	require.NoError(t, json.Unmarshal(env.Data, &pending))
	require.Len(t, pending, 1)

	w, env = do(t, r, http.MethodPost, "/api/v1/approvals", map[string]interface{}{
		"action": "approve", "requestIds": []string{pending[0].ID, "unknown"},
	}, identity("anita", models.RoleApprover))
	require.Equal(t, http.StatusOK, w.Code)
	var results []models.BulkActionResult
	require.NoError(t, json.Unmarshal(env.Data, &results))
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)

	w, env = do(t, r, http.MethodGet, "/api/v1/queries/"+q.ID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &q))
	assert.Equal(t, models.QueryStatusApproved, q.Status)

	w, env = do(t, r, http.MethodGet, "/api/v1/chat-archives?archiveReason=approved", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, env.Count)
	assert.Equal(t, 1, *env.Count)
}

func TestRouterEnforcesTokensAndRoles(t *testing.T) {
	r := buildRouter(t, true)

	w, env := do(t, r, http.MethodGet, "/api/v1/queries", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", env.Code)

	token := signToken(t, models.RoleSales)
	w, env = do(t, r, http.MethodPost, "/api/v1/queries", map[string]string{
		"appNo": "APP-1", "customerName": "X", "queryText": "Y", "markedForTeam": "sales",
	}, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", env.Code)

	w, _ = do(t, r, http.MethodGet, "/api/v1/queries?access_token="+token, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouterOpsEndpoints(t *testing.T) {
	r := buildRouter(t, true)

	w, _ := do(t, r, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, r, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env := do(t, r, http.MethodGet, "/api/v1/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Code)
}

func signToken(t *testing.T, role models.UserRole) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{UserID: "u-1", Name: "tester", Role: role})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}
