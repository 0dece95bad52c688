package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/loan-query-api/internal/models"
	"github.com/noah-isme/loan-query-api/internal/service"
	appErrors "github.com/noah-isme/loan-query-api/pkg/errors"
	"github.com/noah-isme/loan-query-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// Dashboards without auth identify themselves with these headers.
const (
	HeaderUserName = "X-User-Name"
	HeaderUserRole = "X-User-Role"
	HeaderUserTeam = "X-User-Team"
)

// JWT protects routes by requiring a valid access token. Browsers cannot set
// headers on EventSource or WebSocket requests, so an access_token query
// parameter is accepted as well.
func JWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// HeaderIdentity attaches claims built from the X-User-* headers. It is used
// when token auth is disabled; requests without headers stay anonymous.
func HeaderIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := strings.TrimSpace(c.GetHeader(HeaderUserName))
		role := strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderUserRole)))
		if name == "" && role == "" {
			c.Next()
			return
		}
		c.Set(ContextUserKey, &models.JWTClaims{
			UserID: name,
			Name:   name,
			Role:   models.UserRole(role),
			Team:   models.Team(strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderUserTeam)))),
		})
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if token := c.Query("access_token"); token != "" {
			return token, nil
		}
		return "", appErrors.ErrUnauthorized
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}
	return parts[1], nil
}
