package models

import "github.com/golang-jwt/jwt/v5"

// UserRole identifies which dashboard a caller acts from.
type UserRole string

const (
	RoleOperations UserRole = "operations"
	RoleSales      UserRole = "sales"
	RoleCredit     UserRole = "credit"
	RoleApprover   UserRole = "approver"
	RoleAdmin      UserRole = "admin"
)

// JWTClaims represents the JWT payload issued by the identity provider.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Name   string   `json:"name"`
	Role   UserRole `json:"role"`
	Team   Team     `json:"team,omitempty"`
	jwt.RegisteredClaims
}

// Actor returns the display identity used in remarks and stamps.
func (c *JWTClaims) Actor() string {
	if c == nil {
		return ""
	}
	if c.Name != "" {
		return c.Name
	}
	return c.UserID
}
