// Package domain contains the core business entities for the auth service.
// These are plain Go structs with no external dependencies, representing
// accounts and the roles granted to them.
package domain

import (
	"time"
)

// User represents a registered account.
// The four state flags are independent; each one defaults to true.
type User struct {
	// ID is the unique identifier for the user (auto-generated).
	ID int64 `json:"id"`

	// Username is the unique login name and the subject of issued tokens.
	// Constraints: 3-30 characters of letters, digits and underscore.
	Username string `json:"username"`

	// Email is the unique email address for the user.
	Email string `json:"email"`

	// PasswordHash is the salted hash produced by the configured hasher.
	// This should never be exposed in API responses.
	PasswordHash string `json:"-"`

	// Roles is the set of granted roles.
	Roles RoleSet `json:"roles"`

	// Enabled indicates the account may authenticate at all.
	Enabled bool `json:"enabled"`

	// AccountNonExpired is false once the account has passed its end date.
	AccountNonExpired bool `json:"account_non_expired"`

	// CredentialsNonExpired is false when the password must be rotated.
	CredentialsNonExpired bool `json:"credentials_non_expired"`

	// AccountNonLocked is false while an administrator has locked the account.
	AccountNonLocked bool `json:"account_non_locked"`

	// LastLoginAt is the time of the most recent successful login.
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	// CreatedAt is the timestamp when the user was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp when the user was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUser creates a new User with every state flag set and no roles.
func NewUser(username, email, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		Username:              username,
		Email:                 email,
		PasswordHash:          passwordHash,
		Roles:                 NewRoleSet(),
		Enabled:               true,
		AccountNonExpired:     true,
		CredentialsNonExpired: true,
		AccountNonLocked:      true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// RecordLogin stamps the last login time.
func (u *User) RecordLogin(at time.Time) {
	at = at.UTC()
	u.LastLoginAt = &at
}

// Clone returns a deep copy of the user.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Roles = u.Roles.Clone()
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}
