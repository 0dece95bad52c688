package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/loan-query-api/internal/models"
	appErrors "github.com/noah-isme/loan-query-api/pkg/errors"
)

func signToken(t *testing.T, secret string, claims *models.JWTClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuthServiceValidateToken(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{Secret: "secret", Issuer: "loan-idp"})
	token := signToken(t, "secret", &models.JWTClaims{
		UserID: "u1",
		Name:   "Priya",
		Role:   models.RoleApprover,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "loan-idp",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "Priya", claims.Actor())
	assert.Equal(t, models.RoleApprover, claims.Role)
}

func TestAuthServiceRejectsBadTokens(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{Secret: "secret", Issuer: "loan-idp"})

	expired := signToken(t, "secret", &models.JWTClaims{
		Role: models.RoleSales,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "loan-idp",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	wrongSecret := signToken(t, "other", &models.JWTClaims{Role: models.RoleSales, RegisteredClaims: jwt.RegisteredClaims{Issuer: "loan-idp"}})
	wrongIssuer := signToken(t, "secret", &models.JWTClaims{Role: models.RoleSales, RegisteredClaims: jwt.RegisteredClaims{Issuer: "elsewhere"}})
	noRole := signToken(t, "secret", &models.JWTClaims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{Issuer: "loan-idp"}})

	for name, token := range map[string]string{"expired": expired, "secret": wrongSecret, "issuer": wrongIssuer, "role": noRole, "garbage": "abc"} {
		_, err := svc.ValidateToken(token)
		require.Error(t, err, name)
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code, name)
	}
}
