// Package service provides the authentication engine and user administration.
package service

import (
	"errors"

	"github.com/Bugian/Sign-up-Log-in-page/internal/auth"
	"github.com/Bugian/Sign-up-Log-in-page/internal/domain"
	"github.com/Bugian/Sign-up-Log-in-page/internal/metrics"
)

// Caller-facing messages shared by the services.
const (
	msgUsernameTaken     = "username already registered"
	msgEmailTaken        = "email already registered"
	msgPasswordsMismatch = "passwords do not match"
	msgAccountDisabled   = "account is disabled"
	msgAccountLocked     = "account is locked"
	msgAccountExpired    = "account has expired"
	msgCredsExpired      = "credentials have expired"
	msgWrongPassword     = "current password is incorrect"
	msgSamePassword      = "new password must differ from the current password"
)

// toAuthError maps a repository error to the auth taxonomy. An error that
// already is an *auth.Error passes through unchanged.
func toAuthError(err error) error {
	if err == nil {
		return nil
	}

	var ae *auth.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, domain.ErrUserNotFound):
		return auth.ErrUserNotFound
	case errors.Is(err, domain.ErrUserAlreadyExists):
		return auth.WrapError(auth.KindUserAlreadyExists, auth.ErrUserAlreadyExists.Message, err)
	case errors.Is(err, domain.ErrInvalidRole):
		return auth.WrapError(auth.KindPolicyViolation, err.Error(), err)
	default:
		return auth.Internal(err)
	}
}

// outcome labels err for metrics.
func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	return string(auth.KindOf(err))
}

// checkAccountState rejects users whose account flags forbid any access.
// Expired credentials are checked separately by checkCredentials.
func checkAccountState(user *domain.User) error {
	switch {
	case !user.Enabled:
		return auth.NewError(auth.KindUnauthorized, msgAccountDisabled)
	case !user.AccountNonLocked:
		return auth.NewError(auth.KindUnauthorized, msgAccountLocked)
	case !user.AccountNonExpired:
		return auth.NewError(auth.KindUnauthorized, msgAccountExpired)
	}
	return nil
}

// checkCredentials rejects users who must change their password first.
func checkCredentials(user *domain.User) error {
	if !user.CredentialsNonExpired {
		return auth.NewError(auth.KindUnauthorized, msgCredsExpired)
	}
	return nil
}
