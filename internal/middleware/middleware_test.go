package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/loan-query-api/internal/models"
	"github.com/noah-isme/loan-query-api/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, secret string, role models.UserRole) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{
		UserID: "u-1",
		Name:   "Olga",
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newAuthRouter(auth *service.AuthService) *gin.Engine {
	r := gin.New()
	r.GET("/ops", JWT(auth), RequireRoles(models.RoleOperations), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestJWTAndRequireRoles(t *testing.T) {
	auth := service.NewAuthService(nil, service.AuthConfig{Secret: "secret"})
	r := newAuthRouter(auth)

	cases := []struct {
		name   string
		target string
		header string
		status int
	}{
		{name: "missing token", target: "/ops", status: http.StatusUnauthorized},
		{name: "malformed header", target: "/ops", header: "Token abc", status: http.StatusUnauthorized},
		{name: "wrong role", target: "/ops", header: "Bearer " + signToken(t, "secret", models.RoleSales), status: http.StatusForbidden},
		{name: "allowed role", target: "/ops", header: "Bearer " + signToken(t, "secret", models.RoleOperations), status: http.StatusNoContent},
		{name: "admin always allowed", target: "/ops", header: "Bearer " + signToken(t, "secret", models.RoleAdmin), status: http.StatusNoContent},
		{name: "query param token", target: "/ops?access_token=" + signToken(t, "secret", models.RoleOperations), status: http.StatusNoContent},
		{name: "bad signature", target: "/ops", header: "Bearer " + signToken(t, "other", models.RoleOperations), status: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestHeaderIdentity(t *testing.T) {
	r := gin.New()
	var got *models.JWTClaims
	r.GET("/", HeaderIdentity(), func(c *gin.Context) {
		if v, ok := c.Get(ContextUserKey); ok {
			got = v.(*models.JWTClaims)
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserName, "Sam")
	req.Header.Set(HeaderUserRole, "Sales")
	req.Header.Set(HeaderUserTeam, "sales")
	r.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, got)
	assert.Equal(t, "Sam", got.Actor())
	assert.Equal(t, models.RoleSales, got.Role)
	assert.Equal(t, models.TeamSales, got.Team)

	got = nil
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Nil(t, got)
}

func TestAuditLogsSuccessfulMutations(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(HeaderIdentity())
	r.POST("/queries/:queryId/resolve", Audit(zap.New(core), "query.resolve"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.POST("/fail", Audit(zap.New(core), "fail"), func(c *gin.Context) {
		c.Status(http.StatusBadRequest)
	})

	req := httptest.NewRequest(http.MethodPost, "/queries/42/resolve", nil)
	req.Header.Set(HeaderUserName, "Olga")
	r.ServeHTTP(httptest.NewRecorder(), req)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/fail", nil))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "query.resolve", fields["action"])
	assert.Equal(t, "Olga", fields["actor"])
	assert.Equal(t, "42", fields["query_id"])
}
