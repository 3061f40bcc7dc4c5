package auth

import "time"

// =============================================================================
// Token Constants
// =============================================================================

const (
	// MinSecretLength is the minimum length of the token signing secret.
	MinSecretLength = 32

	// DefaultTokenValidity is the lifetime of a session token when none is configured.
	DefaultTokenValidity = 10 * 24 * time.Hour

	// SigningAlgorithm is the only accepted token algorithm.
	SigningAlgorithm = "HS256"
)

// =============================================================================
// Authorization Header Constants
// =============================================================================

const (
	// AuthorizationHeader is the HTTP header for authorization.
	AuthorizationHeader = "Authorization"

	// BearerScheme is the scheme prefix of a bearer Authorization header.
	BearerScheme = "Bearer"
)
