// Package auth provides password policy, credential hashing and session
// token handling for the auth service.
package auth

import (
	"errors"
	"net/http"
)

// Kind classifies an authentication failure. The set is closed; callers
// switch on it to decide the outward response.
type Kind string

const (
	// KindMissingCredentials means the username or password was empty.
	KindMissingCredentials Kind = "MissingCredentials"

	// KindInvalidCredentials means the username/password pair did not match.
	KindInvalidCredentials Kind = "InvalidCredentials"

	// KindUserAlreadyExists means the username or email is taken.
	KindUserAlreadyExists Kind = "UserAlreadyExists"

	// KindUserNotFound means a referenced user does not exist.
	KindUserNotFound Kind = "UserNotFound"

	// KindTokenExpired means a token's expiry has passed.
	KindTokenExpired Kind = "TokenExpired"

	// KindInvalidToken means a token's signature did not verify.
	KindInvalidToken Kind = "InvalidToken"

	// KindUnauthorized means the token or account state forbids access.
	KindUnauthorized Kind = "Unauthorized"

	// KindPolicyViolation means input failed a password, username or email rule.
	KindPolicyViolation Kind = "PolicyViolation"

	// KindInternal means a storage or hashing fault. The message is generic.
	KindInternal Kind = "Internal"
)

// Sentinels for errors.Is. An *Error matches the sentinel of the same Kind.
var (
	ErrMissingCredentials = &Error{Kind: KindMissingCredentials, Message: "username and password are required"}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Message: "invalid username or password"}
	ErrUserAlreadyExists  = &Error{Kind: KindUserAlreadyExists, Message: "user already exists"}
	ErrUserNotFound       = &Error{Kind: KindUserNotFound, Message: "user not found"}
	ErrTokenExpired       = &Error{Kind: KindTokenExpired, Message: "authentication token has expired"}
	ErrInvalidToken       = &Error{Kind: KindInvalidToken, Message: "invalid authentication token"}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrPolicyViolation    = &Error{Kind: KindPolicyViolation, Message: "policy violation"}
	ErrInternal           = &Error{Kind: KindInternal, Message: "internal error"}
)

// Error is the single caller-facing error type of the auth service.
// Message is safe to show to clients and never contains a password, hash
// or key. Err holds the underlying cause for logging.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// NewError creates an Error of the given kind.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError creates an Error of the given kind carrying a cause.
func WrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Internal wraps an infrastructure fault. The cause is kept for logs only.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: ErrInternal.Message, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps a Kind to the HTTP status used by the transport layer.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindMissingCredentials, KindInvalidCredentials, KindTokenExpired,
		KindInvalidToken, KindUnauthorized, KindUserNotFound:
		return http.StatusUnauthorized
	case KindPolicyViolation:
		return http.StatusBadRequest
	case KindUserAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
