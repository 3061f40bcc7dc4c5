package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Bugian/Sign-up-Log-in-page/internal/auth"
	"github.com/Bugian/Sign-up-Log-in-page/internal/domain"
	"github.com/Bugian/Sign-up-Log-in-page/internal/repository"
)

func TestUserService_CreateUser(t *testing.T) {
	env := newEnv(t)

	u, err := env.users.CreateUser(context.Background(), CreateUserInput{
		Username: "root",
		Email:    "root@example.com",
		Password: goodPassword,
		Roles:    []string{"admin", "ROLE_USER", " moderator "},
	})
	require.NoError(t, err)
	assert.True(t, u.Roles.Equal(domain.NewRoleSet(domain.RoleAdmin, domain.RoleUser, domain.RoleModerator)))

	// Default role
	u, err = env.users.CreateUser(context.Background(), CreateUserInput{
		Username: "plain",
		Email:    "plain@example.com",
		Password: goodPassword,
	})
	require.NoError(t, err)
	assert.True(t, u.Roles.Equal(domain.NewRoleSet(domain.RoleUser)))

	out := env.login(t, "root", goodPassword)
	claims, err := env.codec.Decode(out.Token)
	require.NoError(t, err)
	assert.Contains(t, claims.Roles, "ROLE_ADMIN")
}

func TestUserService_CreateUser_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input CreateUserInput
		want  error
	}{
		{
			name:  "invalid role",
			input: CreateUserInput{Username: "root", Email: "root@example.com", Password: goodPassword, Roles: []string{"  "}},
			want:  auth.ErrPolicyViolation,
		},
		{
			name:  "weak password",
			input: CreateUserInput{Username: "root", Email: "root@example.com", Password: "password"},
			want:  auth.ErrPolicyViolation,
		},
		{
			name:  "bad email",
			input: CreateUserInput{Username: "root", Email: "root", Password: goodPassword},
			want:  auth.ErrPolicyViolation,
		},
		{
			name:  "username taken",
			input: CreateUserInput{Username: "ana", Email: "root@example.com", Password: goodPassword},
			want:  auth.ErrUserAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t)
			env.register(t, "ana", goodPassword)

			_, err := env.users.CreateUser(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUserService_List(t *testing.T) {
	env := newEnv(t)
	for i := 0; i < 5; i++ {
		env.register(t, fmt.Sprintf("user_%d", i), goodPassword)
	}

	out, err := env.users.List(context.Background(), ListUsersInput{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(5), out.TotalCount)
	require.Len(t, out.Users, 2)
	assert.Equal(t, "user_1", out.Users[0].Username)
	assert.Equal(t, "user_2", out.Users[1].Username)

	out, err = env.users.List(context.Background(), ListUsersInput{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, out.Users)
}

func TestUserService_List_Limits(t *testing.T) {
	tests := []struct {
		name   string
		input  ListUsersInput
		expect repository.ListOptions
	}{
		{"default limit", ListUsersInput{}, repository.ListOptions{Limit: DefaultListLimit}},
		{"capped limit", ListUsersInput{Limit: 1000}, repository.ListOptions{Limit: MaxListLimit}},
		{"negative offset", ListUsersInput{Limit: 5, Offset: -3}, repository.ListOptions{Limit: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &FailingUserRepository{}
			repo.On("FindAll", mock.Anything, tt.expect).
				Return(&repository.ListResult[domain.User]{}, nil)

			svc := NewUserService(repo, newTestHasher(t), zerolog.Nop())
			_, err := svc.List(context.Background(), tt.input)
			require.NoError(t, err)
			repo.AssertExpectations(t)
		})
	}
}

func TestUserService_AccountFlags(t *testing.T) {
	env := newEnv(t)
	u := env.register(t, "ana", goodPassword)
	ctx := context.Background()

	updated, err := env.users.SetEnabled(ctx, u.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.Enabled)
	_, err = env.svc.Login(ctx, LoginInput{Username: "ana", Password: goodPassword})
	assert.EqualError(t, err, "account is disabled")

	_, err = env.users.SetEnabled(ctx, u.ID, true)
	require.NoError(t, err)

	updated, err = env.users.SetLocked(ctx, u.ID, true)
	require.NoError(t, err)
	assert.False(t, updated.AccountNonLocked)
	_, err = env.svc.Login(ctx, LoginInput{Username: "ana", Password: goodPassword})
	assert.EqualError(t, err, "account is locked")

	updated, err = env.users.SetLocked(ctx, u.ID, false)
	require.NoError(t, err)
	assert.True(t, updated.AccountNonLocked)
	env.login(t, "ana", goodPassword)
}

func TestUserService_Roles(t *testing.T) {
	env := newEnv(t)
	u := env.register(t, "ana", goodPassword)
	ctx := context.Background()

	updated, err := env.users.AddRole(ctx, u.ID, "admin")
	require.NoError(t, err)
	assert.True(t, updated.Roles.Has(domain.RoleAdmin))

	updated, err = env.users.AddRole(ctx, u.ID, "ROLE_ADMIN")
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Roles.Len())

	updated, err = env.users.RemoveRole(ctx, u.ID, "role_user")
	require.NoError(t, err)
	assert.True(t, updated.Roles.Equal(domain.NewRoleSet(domain.RoleAdmin)))

	updated, err = env.users.RemoveRole(ctx, u.ID, "moderator")
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Roles.Len())

	_, err = env.users.AddRole(ctx, u.ID, "")
	assert.ErrorIs(t, err, auth.ErrPolicyViolation)

	_, err = env.users.AddRole(ctx, 999, "admin")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestUserService_ResetPassword(t *testing.T) {
	env := newEnv(t)
	u := env.register(t, "ana", goodPassword)
	ctx := context.Background()

	_, err := env.users.ExpireCredentials(ctx, u.ID)
	require.NoError(t, err)

	_, err = env.users.ResetPassword(ctx, u.ID, "weak")
	assert.ErrorIs(t, err, auth.ErrPolicyViolation)

	updated, err := env.users.ResetPassword(ctx, u.ID, "R3setPass!")
	require.NoError(t, err)
	assert.True(t, updated.CredentialsNonExpired)

	env.login(t, "ana", "R3setPass!")
	_, err = env.svc.Login(ctx, LoginInput{Username: "ana", Password: goodPassword})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestUserService_ExpireCredentials(t *testing.T) {
	env := newEnv(t)
	u := env.register(t, "ana", goodPassword)
	out := env.login(t, "ana", goodPassword)

	updated, err := env.users.ExpireCredentials(context.Background(), u.ID)
	require.NoError(t, err)
	assert.False(t, updated.CredentialsNonExpired)

	_, err = env.svc.ValidateToken(context.Background(), out.Token)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
	assert.EqualError(t, err, "credentials have expired")
}

func TestUserService_GetAndDelete(t *testing.T) {
	env := newEnv(t)
	u := env.register(t, "ana", goodPassword)
	ctx := context.Background()

	got, err := env.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana", got.Username)

	got, err = env.users.GetByUsername(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	require.NoError(t, env.users.Delete(ctx, u.ID))

	err = env.users.Delete(ctx, u.ID)
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	_, err = env.users.GetByUsername(ctx, "ana")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestUserService_StoreFailureIsInternal(t *testing.T) {
	repo := &FailingUserRepository{}
	repo.On("FindByID", mock.Anything, int64(7)).Return(nil, errors.New("connection reset"))

	svc := NewUserService(repo, newTestHasher(t), zerolog.Nop())

	_, err := svc.SetEnabled(context.Background(), 7, false)
	assert.ErrorIs(t, err, auth.ErrInternal)
	assert.EqualError(t, err, "internal error")
	repo.AssertExpectations(t)
}
