package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Bugian/Sign-up-Log-in-page/internal/auth"
	"github.com/Bugian/Sign-up-Log-in-page/internal/domain"
	"github.com/Bugian/Sign-up-Log-in-page/internal/repository"
)

// List pagination bounds.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// UserService handles user administration. Errors use the auth taxonomy.
type UserService struct {
	users  repository.UserRepository
	hasher auth.CredentialHasher
	policy auth.PasswordPolicy
	logger zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(users repository.UserRepository, hasher auth.CredentialHasher, logger zerolog.Logger) *UserService {
	return &UserService{
		users:  users,
		hasher: hasher,
		policy: auth.NewPasswordPolicy(),
		logger: logger.With().Str("service", "user").Logger(),
	}
}

// CreateUserInput contains the data needed to create a user as an administrator.
type CreateUserInput struct {
	Username string
	Email    string
	Password string

	// Roles are parsed with domain.ParseRole. Empty grants ROLE_USER.
	Roles []string
}

// CreateUser creates an account with explicit roles. Username, email and
// password follow the same rules as registration.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	if err := auth.ValidateEmail(input.Email); err != nil {
		return nil, err
	}
	if err := auth.ValidateUsername(input.Username); err != nil {
		return nil, err
	}
	if err := s.policy.Check(input.Password); err != nil {
		return nil, err
	}

	roles := domain.NewRoleSet()
	for _, name := range input.Roles {
		role, err := domain.ParseRole(name)
		if err != nil {
			return nil, toAuthError(err)
		}
		roles.Add(role)
	}
	if roles.Len() == 0 {
		roles.Add(domain.RoleUser)
	}

	if err := ensureAvailable(ctx, s.users, input.Username, input.Email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return nil, auth.Internal(err)
	}

	user := domain.NewUser(input.Username, input.Email, hash)
	user.Roles = roles

	saved, err := s.users.Save(ctx, user)
	if err != nil {
		return nil, s.storeError(err, user.ID, "failed to create user")
	}

	s.logger.Info().
		Int64("user_id", saved.ID).
		Str("username", saved.Username).
		Strs("roles", saved.Roles.Names()).
		Msg("user created")

	return saved, nil
}

// GetByID retrieves a user by ID. Administrative reads never use the cache.
func (s *UserService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.FindByID(repository.BypassCache(ctx), id)
	if err != nil {
		return nil, s.storeError(err, id, "failed to get user")
	}
	return user, nil
}

// GetByUsername retrieves a user by username.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.users.FindByUsername(repository.BypassCache(ctx), username)
	if err != nil {
		return nil, s.storeError(err, 0, "failed to get user")
	}
	return user, nil
}

// ListUsersInput contains pagination options for listing users.
type ListUsersInput struct {
	Limit  int
	Offset int
}

// ListUsersOutput contains the result of listing users.
type ListUsersOutput struct {
	Users      []*domain.User
	TotalCount int64
}

// List returns users with pagination.
func (s *UserService) List(ctx context.Context, input ListUsersInput) (*ListUsersOutput, error) {
	if input.Limit <= 0 {
		input.Limit = DefaultListLimit
	}
	if input.Limit > MaxListLimit {
		input.Limit = MaxListLimit
	}
	if input.Offset < 0 {
		input.Offset = 0
	}

	result, err := s.users.FindAll(ctx, repository.ListOptions{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list users")
		return nil, auth.Internal(err)
	}

	return &ListUsersOutput{
		Users:      result.Items,
		TotalCount: result.Total,
	}, nil
}

// Delete deletes a user account and its roles.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	if err := s.users.DeleteByID(ctx, id); err != nil {
		return s.storeError(err, id, "failed to delete user")
	}

	s.logger.Info().Int64("user_id", id).Msg("user deleted")
	return nil
}

// SetEnabled enables or disables an account.
func (s *UserService) SetEnabled(ctx context.Context, id int64, enabled bool) (*domain.User, error) {
	return s.update(ctx, id, "enabled", func(u *domain.User) error {
		u.Enabled = enabled
		return nil
	})
}

// SetLocked locks or unlocks an account.
func (s *UserService) SetLocked(ctx context.Context, id int64, locked bool) (*domain.User, error) {
	return s.update(ctx, id, "locked", func(u *domain.User) error {
		u.AccountNonLocked = !locked
		return nil
	})
}

// AddRole grants a role. Granting a held role is a no-op.
func (s *UserService) AddRole(ctx context.Context, id int64, roleName string) (*domain.User, error) {
	role, err := domain.ParseRole(roleName)
	if err != nil {
		return nil, toAuthError(err)
	}
	return s.update(ctx, id, "role_added", func(u *domain.User) error {
		u.Roles.Add(role)
		return nil
	})
}

// RemoveRole revokes a role. Revoking a role that is not held is a no-op.
func (s *UserService) RemoveRole(ctx context.Context, id int64, roleName string) (*domain.User, error) {
	role, err := domain.ParseRole(roleName)
	if err != nil {
		return nil, toAuthError(err)
	}
	return s.update(ctx, id, "role_removed", func(u *domain.User) error {
		u.Roles.Remove(role)
		return nil
	})
}

// ResetPassword replaces a password without the current one. The new
// password must satisfy the policy; expired credentials are cleared.
func (s *UserService) ResetPassword(ctx context.Context, id int64, newPassword string) (*domain.User, error) {
	if err := s.policy.Check(newPassword); err != nil {
		return nil, err
	}
	return s.update(ctx, id, "password_reset", func(u *domain.User) error {
		hash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return auth.Internal(err)
		}
		u.PasswordHash = hash
		u.CredentialsNonExpired = true
		return nil
	})
}

// ExpireCredentials marks a user's credentials expired. Until the password is
// changed or reset, the user's tokens are accepted only for a password change.
func (s *UserService) ExpireCredentials(ctx context.Context, id int64) (*domain.User, error) {
	return s.update(ctx, id, "credentials_expired", func(u *domain.User) error {
		u.CredentialsNonExpired = false
		return nil
	})
}

// update loads a user from the store, applies fn and stores the result.
func (s *UserService) update(ctx context.Context, id int64, change string, fn func(u *domain.User) error) (*domain.User, error) {
	user, err := s.users.FindByID(repository.BypassCache(ctx), id)
	if err != nil {
		return nil, s.storeError(err, id, "failed to get user")
	}

	if err := fn(user); err != nil {
		return nil, err
	}

	saved, err := s.users.Save(ctx, user)
	if err != nil {
		return nil, s.storeError(err, id, "failed to update user")
	}

	s.logger.Info().
		Int64("user_id", saved.ID).
		Str("change", change).
		Msg("user updated")

	return saved, nil
}

// storeError maps a repository error and logs infrastructure faults.
func (s *UserService) storeError(err error, id int64, msg string) error {
	mapped := toAuthError(err)
	if auth.KindOf(mapped) == auth.KindInternal {
		s.logger.Error().Err(err).Int64("user_id", id).Msg(msg)
	}
	return mapped
}
