package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Bugian/Sign-up-Log-in-page/internal/auth"
	"github.com/Bugian/Sign-up-Log-in-page/internal/domain"
	"github.com/Bugian/Sign-up-Log-in-page/internal/lock"
	"github.com/Bugian/Sign-up-Log-in-page/internal/metrics"
	"github.com/Bugian/Sign-up-Log-in-page/internal/repository"
)

// Registration lock defaults.
const (
	DefaultLockTTL        = 10 * time.Second
	registerLockRetries   = 20
	registerLockRetryWait = 50 * time.Millisecond
)

// dummyPassword is hashed once at start-up; unknown usernames are verified
// against it so a failed login costs the same whether or not the user exists.
const dummyPassword = "dummy-password-for-timing-equalisation"

// AuthServiceConfig holds the collaborators of an AuthService.
type AuthServiceConfig struct {
	Users   repository.UserRepository
	Hasher  auth.CredentialHasher
	Codec   *auth.TokenCodec
	Locker  lock.Locker // nil disables registration locking
	LockTTL time.Duration
	Metrics *metrics.Auth // nil disables metrics
	Logger  zerolog.Logger
}

// AuthService implements login, registration, token validation and refresh,
// and password change. It keeps no per-request state and is safe for
// concurrent use.
type AuthService struct {
	users     repository.UserRepository
	hasher    auth.CredentialHasher
	codec     *auth.TokenCodec
	policy    auth.PasswordPolicy
	locker    lock.Locker
	lockTTL   time.Duration
	metrics   *metrics.Auth
	logger    zerolog.Logger
	now       func() time.Time
	dummyHash string
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg AuthServiceConfig) (*AuthService, error) {
	if cfg.Users == nil || cfg.Hasher == nil || cfg.Codec == nil {
		return nil, errors.New("auth service requires a user repository, hasher and token codec")
	}

	dummyHash, err := cfg.Hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	locker := cfg.Locker
	if locker == nil {
		locker = lock.NewNoOpLocker()
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}

	return &AuthService{
		users:     cfg.Users,
		hasher:    cfg.Hasher,
		codec:     cfg.Codec,
		policy:    auth.NewPasswordPolicy(),
		locker:    locker,
		lockTTL:   lockTTL,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.With().Str("service", "auth").Logger(),
		now:       time.Now,
		dummyHash: dummyHash,
	}, nil
}

// =============================================================================
// Login
// =============================================================================

// LoginInput contains the credentials presented at login.
type LoginInput struct {
	Username string
	Password string
}

// LoginOutput contains an issued session token.
type LoginOutput struct {
	Token     string
	Username  string
	ExpiresAt time.Time
	ExpiresIn int64 // seconds
	User      *domain.User

	// PasswordChangeRequired is set when the user's credentials have
	// expired. The token is then accepted only by ValidateTokenForPasswordChange.
	PasswordChangeRequired bool
}

// Login authenticates a username and password and issues a session token.
// Unknown usernames and wrong passwords fail with the same error. A user
// whose credentials have expired still gets a token, flagged as usable only
// for changing the password.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginOutput, error) {
	out, err := s.login(ctx, input)
	s.metrics.RecordLogin(outcome(err))
	return out, err
}

func (s *AuthService) login(ctx context.Context, input LoginInput) (*LoginOutput, error) {
	if strings.TrimSpace(input.Username) == "" || input.Password == "" {
		return nil, auth.ErrMissingCredentials
	}

	// Credentials are checked against the store, never a cached copy.
	user, err := s.users.FindByUsername(repository.BypassCache(ctx), input.Username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			_, _ = s.hasher.Verify(input.Password, s.dummyHash)
			s.logger.Debug().Str("username", input.Username).Msg("login for unknown username")
			return nil, auth.ErrInvalidCredentials
		}
		s.logger.Error().Err(err).Str("username", input.Username).Msg("failed to look up user")
		return nil, auth.Internal(err)
	}

	ok, err := s.hasher.Verify(input.Password, user.PasswordHash)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("stored password hash is unreadable")
		return nil, auth.Internal(err)
	}
	if !ok {
		s.logger.Debug().Int64("user_id", user.ID).Msg("invalid password during login")
		return nil, auth.ErrInvalidCredentials
	}

	if err := checkAccountState(user); err != nil {
		s.logger.Debug().Int64("user_id", user.ID).Str("reason", err.Error()).Msg("login refused by account state")
		return nil, err
	}

	user.RecordLogin(s.now())
	if err := s.users.UpdateLastLogin(ctx, user.ID, *user.LastLoginAt); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to record last login")
	}

	out, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	out.PasswordChangeRequired = !user.CredentialsNonExpired

	s.logger.Info().
		Int64("user_id", user.ID).
		Str("username", user.Username).
		Bool("password_change_required", out.PasswordChangeRequired).
		Msg("user logged in")

	return out, nil
}

func (s *AuthService) issue(user *domain.User) (*LoginOutput, error) {
	token, err := s.codec.Issue(user)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to issue token")
		return nil, auth.Internal(err)
	}
	s.metrics.RecordTokenIssued()

	return &LoginOutput{
		Token:     token.Value,
		Username:  token.Subject,
		ExpiresAt: token.ExpiresAt,
		ExpiresIn: token.ExpiresIn(),
		User:      user,
	}, nil
}

// =============================================================================
// Registration
// =============================================================================

// SignupInput contains the data needed to register a new account.
type SignupInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// RegisterOutput contains the registered user.
type RegisterOutput struct {
	User *domain.User
}

// Register validates the input, checks availability and stores a new user
// holding ROLE_USER.
func (s *AuthService) Register(ctx context.Context, input SignupInput) (*RegisterOutput, error) {
	out, err := s.register(ctx, input)
	s.metrics.RecordRegistration(outcome(err))
	return out, err
}

func (s *AuthService) register(ctx context.Context, input SignupInput) (*RegisterOutput, error) {
	if err := auth.ValidateEmail(input.Email); err != nil {
		return nil, err
	}
	if err := auth.ValidateUsername(input.Username); err != nil {
		return nil, err
	}
	if err := s.checkPassword(input.Password); err != nil {
		return nil, err
	}
	if input.Password != input.ConfirmPassword {
		return nil, auth.NewError(auth.KindPolicyViolation, msgPasswordsMismatch)
	}

	l := lock.NewLock(s.locker, lock.Keys.Registration(input.Username))
	acquired, err := l.AcquireWithRetry(ctx, s.lockTTL, registerLockRetries, registerLockRetryWait)
	if err != nil {
		s.logger.Error().Err(err).Str("username", input.Username).Msg("failed to acquire registration lock")
		return nil, auth.Internal(err)
	}
	if !acquired {
		return nil, auth.WrapError(auth.KindUserAlreadyExists, msgUsernameTaken, lock.ErrNotAcquired)
	}
	defer func() {
		if err := l.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn().Err(err).Str("key", l.Key()).Msg("failed to release registration lock")
		}
	}()

	if err := ensureAvailable(ctx, s.users, input.Username, input.Email); err != nil {
		if auth.KindOf(err) == auth.KindInternal {
			s.logger.Error().Err(errors.Unwrap(err)).Str("username", input.Username).Msg("failed to check availability")
		}
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return nil, auth.Internal(err)
	}

	user := domain.NewUser(input.Username, input.Email, hash)
	user.Roles.Add(domain.RoleUser)

	saved, err := s.users.Save(ctx, user)
	if err != nil {
		mapped := toAuthError(err)
		if auth.KindOf(mapped) == auth.KindInternal {
			s.logger.Error().Err(err).Str("username", input.Username).Msg("failed to create user")
		}
		return nil, mapped
	}

	s.logger.Info().
		Int64("user_id", saved.ID).
		Str("username", saved.Username).
		Msg("user registered")

	return &RegisterOutput{User: saved}, nil
}

// ensureAvailable fails with UserAlreadyExists when the username or email is taken.
func ensureAvailable(ctx context.Context, users repository.UserRepository, username, email string) error {
	exists, err := users.ExistsByUsername(ctx, username)
	if err != nil {
		return auth.Internal(err)
	}
	if exists {
		return auth.NewError(auth.KindUserAlreadyExists, msgUsernameTaken)
	}

	exists, err = users.ExistsByEmail(ctx, email)
	if err != nil {
		return auth.Internal(err)
	}
	if exists {
		return auth.NewError(auth.KindUserAlreadyExists, msgEmailTaken)
	}
	return nil
}

// =============================================================================
// Tokens
// =============================================================================

// ValidateToken verifies a session token and returns the live user it names.
// The signature is checked before the expiry; the user must still exist and
// be allowed to authenticate, and their credentials must not have expired.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*domain.User, error) {
	user, err := s.validate(ctx, token)
	if err == nil {
		err = checkCredentials(user)
	}
	s.metrics.RecordTokenValidation(outcome(err))
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ValidateTokenForPasswordChange is ValidateToken without the
// expired-credentials check, so a user told to rotate their password can do so.
func (s *AuthService) ValidateTokenForPasswordChange(ctx context.Context, token string) (*domain.User, error) {
	user, err := s.validate(ctx, token)
	s.metrics.RecordTokenValidation(outcome(err))
	return user, err
}

func (s *AuthService) validate(ctx context.Context, token string) (*domain.User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, auth.NewError(auth.KindUnauthorized, "token cannot be empty")
	}

	claims, err := s.codec.Decode(token)
	if err != nil {
		switch auth.ReasonOf(err) {
		case auth.ReasonSignatureInvalid:
			return nil, auth.WrapError(auth.KindInvalidToken, auth.ErrInvalidToken.Message, err)
		case auth.ReasonExpired:
			return nil, auth.WrapError(auth.KindTokenExpired, auth.ErrTokenExpired.Message, err)
		default:
			return nil, auth.WrapError(auth.KindUnauthorized, "invalid token format", err)
		}
	}

	user, err := s.users.FindByUsername(ctx, claims.Subject)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.logger.Error().Err(err).Str("username", claims.Subject).Msg("failed to look up token subject")
		}
		return nil, toAuthError(err)
	}

	if err := checkAccountState(user); err != nil {
		return nil, err
	}
	return user, nil
}

// RefreshToken validates a token exactly like ValidateToken and issues a new
// one from the user's current roles.
func (s *AuthService) RefreshToken(ctx context.Context, token string) (*LoginOutput, error) {
	user, err := s.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}

	out, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Int64("user_id", user.ID).Msg("token refreshed")
	return out, nil
}

// =============================================================================
// Password Change
// =============================================================================

// checkPassword applies the password policy and counts rejections by rule.
func (s *AuthService) checkPassword(password string) error {
	err := s.policy.Check(password)
	if err != nil {
		s.metrics.RecordPasswordRejected(string(auth.ViolatedRule(err)))
	}
	return err
}

// ChangePasswordInput contains the data needed to change a password.
type ChangePasswordInput struct {
	UserID      int64
	OldPassword string
	NewPassword string
}

// ChangePassword replaces a user's password after verifying the current one.
// A successful change also clears an expired-credentials flag.
func (s *AuthService) ChangePassword(ctx context.Context, input ChangePasswordInput) error {
	err := s.changePassword(ctx, input)
	s.metrics.RecordPasswordChange(outcome(err))
	return err
}

func (s *AuthService) changePassword(ctx context.Context, input ChangePasswordInput) error {
	user, err := s.users.FindByID(repository.BypassCache(ctx), input.UserID)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.logger.Error().Err(err).Int64("user_id", input.UserID).Msg("failed to get user")
		}
		return toAuthError(err)
	}

	ok, err := s.hasher.Verify(input.OldPassword, user.PasswordHash)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("stored password hash is unreadable")
		return auth.Internal(err)
	}
	if !ok {
		return auth.NewError(auth.KindInvalidCredentials, msgWrongPassword)
	}

	if err := s.checkPassword(input.NewPassword); err != nil {
		return err
	}

	same, err := s.hasher.Verify(input.NewPassword, user.PasswordHash)
	if err != nil {
		return auth.Internal(err)
	}
	if same {
		return auth.NewError(auth.KindPolicyViolation, msgSamePassword)
	}

	hash, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return auth.Internal(err)
	}

	user.PasswordHash = hash
	user.CredentialsNonExpired = true

	if _, err := s.users.Save(ctx, user); err != nil {
		mapped := toAuthError(err)
		if auth.KindOf(mapped) == auth.KindInternal {
			s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to store new password")
		}
		return mapped
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("password changed")
	return nil
}
