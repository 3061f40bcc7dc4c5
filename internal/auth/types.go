package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Bugian/Sign-up-Log-in-page/internal/domain"
)

// =============================================================================
// Token Types
// =============================================================================

// Claims is the payload carried by a session token.
// The subject is the username.
type Claims struct {
	// Roles holds the role names granted at issue time. Order is not significant.
	Roles []string `json:"roles"`

	// UserID is the numeric id of the subject.
	UserID int64 `json:"userId"`

	jwt.RegisteredClaims
}

// RoleSet returns the roles as a set.
func (c *Claims) RoleSet() domain.RoleSet {
	return domain.RoleSetFromNames(c.Roles)
}

// SessionToken is an issued token together with the values it encodes.
type SessionToken struct {
	// Value is the signed, encoded token.
	Value string

	// Subject is the username the token was issued to.
	Subject string

	// IssuedAt is when the token was issued, at second precision.
	IssuedAt time.Time

	// ExpiresAt is the first instant at which the token is expired.
	ExpiresAt time.Time
}

// ExpiresIn returns the token lifetime in whole seconds.
func (t *SessionToken) ExpiresIn() int64 {
	return int64(t.ExpiresAt.Sub(t.IssuedAt) / time.Second)
}

// =============================================================================
// Request Context
// =============================================================================

// AuthContext holds the authenticated principal of a request.
type AuthContext struct {
	// User is the live user record the token resolved to.
	User *domain.User

	// Token is the raw bearer token presented.
	Token string
}

// Has reports whether the principal holds the role.
func (a *AuthContext) Has(role domain.Role) bool {
	return a != nil && a.User != nil && a.User.Roles.Has(role)
}

// contextKey is the type for context keys.
type contextKey string

// AuthContextKey is the context key for the AuthContext.
const AuthContextKey contextKey = "auth"
