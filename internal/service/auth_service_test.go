package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Bugian/Sign-up-Log-in-page/internal/auth"
	"github.com/Bugian/Sign-up-Log-in-page/internal/domain"
	"github.com/Bugian/Sign-up-Log-in-page/internal/lock"
	"github.com/Bugian/Sign-up-Log-in-page/internal/metrics"
)

const goodPassword = "Secret1!"

// =============================================================================
// Login
// =============================================================================

func TestAuthService_Login(t *testing.T) {
	env := newEnv(t)
	registered := env.register(t, "ana", goodPassword)

	out := env.login(t, "ana", goodPassword)

	assert.NotEmpty(t, out.Token)
	assert.Equal(t, "ana", out.Username)
	assert.Equal(t, int64(auth.DefaultTokenValidity/time.Second), out.ExpiresIn)
	assert.Equal(t, env.clock.Now().Add(auth.DefaultTokenValidity), out.ExpiresAt)

	claims, err := env.codec.Decode(out.Token)
	require.NoError(t, err)
	assert.Equal(t, "ana", claims.Subject)
	assert.Equal(t, registered.ID, claims.UserID)
	assert.True(t, claims.RoleSet().Equal(domain.NewRoleSet(domain.RoleUser)))

	stored, err := env.repo.FindByID(context.Background(), registered.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)
	assert.True(t, env.clock.Now().Equal(*stored.LastLoginAt))
}

func TestAuthService_Login_FailuresAreIndistinguishable(t *testing.T) {
	env := newEnv(t)
	env.register(t, "ana", goodPassword)

	_, unknownErr := env.svc.Login(context.Background(), LoginInput{Username: "bob", Password: goodPassword})
	_, wrongErr := env.svc.Login(context.Background(), LoginInput{Username: "ana", Password: "Wrong1!x"})

	require.Error(t, unknownErr)
	require.Error(t, wrongErr)
	assert.ErrorIs(t, unknownErr, auth.ErrInvalidCredentials)
	assert.ErrorIs(t, wrongErr, auth.ErrInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
	assert.Equal(t, auth.KindOf(unknownErr), auth.KindOf(wrongErr))
}

func TestAuthService_Login_MissingCredentials(t *testing.T) {
	env := newEnv(t)

	tests := []LoginInput{
		{Username: "", Password: goodPassword},
		{Username: "   ", Password: goodPassword},
		{Username: "ana", Password: ""},
		{},
	}
	for _, in := range tests {
		_, err := env.svc.Login(context.Background(), in)
		assert.ErrorIs(t, err, auth.ErrMissingCredentials, "%+v", in)
	}
}

func TestAuthService_Login_AccountState(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(u *domain.User)
		message string
	}{
		{"disabled", func(u *domain.User) { u.Enabled = false }, "account is disabled"},
		{"locked", func(u *domain.User) { u.AccountNonLocked = false }, "account is locked"},
		{"account expired", func(u *domain.User) { u.AccountNonExpired = false }, "account has expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t)
			env.register(t, "ana", goodPassword)
			env.repo.update(t, "ana", tt.mutate)

			_, err := env.svc.Login(context.Background(), LoginInput{Username: "ana", Password: goodPassword})
			assert.ErrorIs(t, err, auth.ErrUnauthorized)
			assert.EqualError(t, err, tt.message)

			// Without the password the account state is not revealed.
			_, err = env.svc.Login(context.Background(), LoginInput{Username: "ana", Password: "Wrong1!x"})
			assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		})
	}
}

func TestAuthService_Login_LastLoginFailureIsTolerated(t *testing.T) {
	env := newEnv(t)
	env.register(t, "ana", goodPassword)
	env.repo.lastLoginErr = errors.New("disk full")

	out, err := env.svc.Login(context.Background(), LoginInput{Username: "ana", Password: goodPassword})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Token)
}

func TestAuthService_Login_DoesNotRewriteUser(t *testing.T) {
	env := newEnv(t)
	env.register(t, "ana", goodPassword)
	saves := env.repo.saves

	env.login(t, "ana", goodPassword)

	assert.Equal(t, saves, env.repo.saves, "login must only stamp the last login time")
}

// An expired password still logs in, but the token only reaches the
// password change until the password is rotated.
func TestAuthService_ExpiredCredentialsRotation(t *testing.T) {
	ctx := context.Background()
	env := newEnv(t)
	u := env.register(t, "ana", goodPassword)
	_, err := env.users.ExpireCredentials(ctx, u.ID)
	require.NoError(t, err)

	out := env.login(t, "ana", goodPassword)
	assert.True(t, out.PasswordChangeRequired)

	_, err = env.svc.ValidateToken(ctx, out.Token)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
	assert.EqualError(t, err, "credentials have expired")

	_, err = env.svc.RefreshToken(ctx, out.Token)
	assert.EqualError(t, err, "credentials have expired")

	user, err := env.svc.ValidateTokenForPasswordChange(ctx, out.Token)
	require.NoError(t, err)
	require.NoError(t, env.svc.ChangePassword(ctx, ChangePasswordInput{
		UserID:      user.ID,
		OldPassword: goodPassword,
		NewPassword: "N3wSecret!",
	}))

	// The same token is accepted again once the password has changed.
	user, err = env.svc.ValidateToken(ctx, out.Token)
	require.NoError(t, err)
	assert.True(t, user.CredentialsNonExpired)
	assert.False(t, env.login(t, "ana", "N3wSecret!").PasswordChangeRequired)
}

func TestAuthService_ValidateTokenForPasswordChange_AccountState(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(u *domain.User)
		message string
	}{
		{"disabled", func(u *domain.User) { u.Enabled = false }, "account is disabled"},
		{"locked", func(u *domain.User) { u.AccountNonLocked = false }, "account is locked"},
		{"account expired", func(u *domain.User) { u.AccountNonExpired = false }, "account has expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t)
			env.register(t, "ana", goodPassword)
			out := env.login(t, "ana", goodPassword)
			env.repo.update(t, "ana", tt.mutate)

			_, err := env.svc.ValidateTokenForPasswordChange(context.Background(), out.Token)
			assert.ErrorIs(t, err, auth.ErrUnauthorized)
			assert.EqualError(t, err, tt.message)
		})
	}
}

func TestAuthService_Login_StoreFailureIsInternal(t *testing.T) {
	repo := &FailingUserRepository{}
	repo.On("FindByUsername", mock.Anything, "ana").Return(nil, errors.New("connection refused"))

	env := newTestEnv(t, repo, nil, nil)

	_, err := env.svc.Login(context.Background(), LoginInput{Username: "ana", Password: goodPassword})
	assert.ErrorIs(t, err, auth.ErrInternal)
	assert.EqualError(t, err, "internal error")
	assert.NotContains(t, err.Error(), "connection refused")
	repo.AssertExpectations(t)
}

// =============================================================================
// Registration
// =============================================================================

func TestAuthService_Register(t *testing.T) {
	env := newEnv(t)

	out, err := env.svc.Register(context.Background(), SignupInput{
		Username:        "ana",
		Email:           "ana@example.com",
		Password:        goodPassword,
		ConfirmPassword: goodPassword,
	})
	require.NoError(t, err)

	u := out.User
	assert.NotZero(t, u.ID)
	assert.Equal(t, "ana", u.Username)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.NotEqual(t, goodPassword, u.PasswordHash)
	assert.NotContains(t, u.PasswordHash, goodPassword)
	assert.True(t, u.Roles.Equal(domain.NewRoleSet(domain.RoleUser)))
	assert.True(t, u.Enabled)
	assert.True(t, u.AccountNonExpired)
	assert.True(t, u.CredentialsNonExpired)
	assert.True(t, u.AccountNonLocked)

	// register then login with the same credentials
	login := env.login(t, "ana", goodPassword)
	assert.Equal(t, "ana", login.Username)
}

func TestAuthService_Register_Validation(t *testing.T) {
	valid := SignupInput{
		Username:        "ana",
		Email:           "ana@example.com",
		Password:        goodPassword,
		ConfirmPassword: goodPassword,
	}

	tests := []struct {
		name     string
		mutate   func(in *SignupInput)
		wantKind auth.Kind
		message  string
		rule     auth.Rule
	}{
		{
			name:     "invalid email is checked first",
			mutate:   func(in *SignupInput) { in.Email = "nope"; in.Username = "a" },
			wantKind: auth.KindPolicyViolation,
			message:  "invalid email format",
		},
		{
			name:     "empty email",
			mutate:   func(in *SignupInput) { in.Email = "" },
			wantKind: auth.KindPolicyViolation,
			message:  "email cannot be empty",
		},
		{
			name:     "username too short",
			mutate:   func(in *SignupInput) { in.Username = "an" },
			wantKind: auth.KindPolicyViolation,
			message:  "username must be between 3 and 30 characters",
		},
		{
			name:     "username charset",
			mutate:   func(in *SignupInput) { in.Username = "ana-maria" },
			wantKind: auth.KindPolicyViolation,
			message:  "username can only contain letters, numbers and underscores",
		},
		{
			name: "weak password",
			mutate: func(in *SignupInput) {
				in.Password = "secret12"
				in.ConfirmPassword = "secret12"
			},
			wantKind: auth.KindPolicyViolation,
			rule:     auth.RuleUppercase,
		},
		{
			name:     "passwords do not match",
			mutate:   func(in *SignupInput) { in.ConfirmPassword = "Secret1?" },
			wantKind: auth.KindPolicyViolation,
			message:  "passwords do not match",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t)
			in := valid
			tt.mutate(&in)

			_, err := env.svc.Register(context.Background(), in)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, auth.KindOf(err))
			if tt.message != "" {
				assert.EqualError(t, err, tt.message)
			}
			if tt.rule != "" {
				assert.Equal(t, tt.rule, auth.ViolatedRule(err))
			}
			assert.Zero(t, env.repo.saves, "nothing is stored on validation failure")
		})
	}
}

func TestAuthService_Register_Duplicates(t *testing.T) {
	env := newEnv(t)
	env.register(t, "ana", goodPassword)

	_, err := env.svc.Register(context.Background(), SignupInput{
		Username: "ana", Email: "other@example.com",
		Password: goodPassword, ConfirmPassword: goodPassword,
	})
	assert.ErrorIs(t, err, auth.ErrUserAlreadyExists)
	assert.EqualError(t, err, "username already registered")

	_, err = env.svc.Register(context.Background(), SignupInput{
		Username: "bob", Email: "ana@example.com",
		Password: goodPassword, ConfirmPassword: goodPassword,
	})
	assert.ErrorIs(t, err, auth.ErrUserAlreadyExists)
	assert.EqualError(t, err, "email already registered")
}

func TestAuthService_Register_StoreDuplicateAfterCheck(t *testing.T) {
	env := newEnv(t)
	env.repo.saveErr = domain.ErrUserAlreadyExists

	_, err := env.svc.Register(context.Background(), SignupInput{
		Username: "ana", Email: "ana@example.com",
		Password: goodPassword, ConfirmPassword: goodPassword,
	})
	assert.ErrorIs(t, err, auth.ErrUserAlreadyExists)
}

func TestAuthService_Register_StoreFailureIsInternal(t *testing.T) {
	repo := &FailingUserRepository{}
	repo.On("ExistsByUsername", mock.Anything, "ana").Return(false, nil)
	repo.On("ExistsByEmail", mock.Anything, "ana@example.com").Return(false, nil)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil, errors.New("disk full"))

	env := newTestEnv(t, repo, nil, nil)

	_, err := env.svc.Register(context.Background(), SignupInput{
		Username: "ana", Email: "ana@example.com",
		Password: goodPassword, ConfirmPassword: goodPassword,
	})
	assert.ErrorIs(t, err, auth.ErrInternal)
	repo.AssertExpectations(t)
}

func TestAuthService_Register_LockHeld(t *testing.T) {
	locker := lock.NewMemoryLocker(0)
	defer locker.Stop()
	env := newTestEnv(t, NewMockUserRepository(), locker, nil)

	ok, err := lock.NewLock(locker, lock.Keys.Registration("ana")).Acquire(context.Background(), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = env.svc.Register(context.Background(), SignupInput{
		Username: "ana", Email: "ana@example.com",
		Password: goodPassword, ConfirmPassword: goodPassword,
	})
	assert.ErrorIs(t, err, auth.ErrUserAlreadyExists)
	assert.ErrorIs(t, err, lock.ErrNotAcquired)
}

func TestAuthService_Register_Concurrent(t *testing.T) {
	locker := lock.NewMemoryLocker(0)
	defer locker.Stop()
	env := newTestEnv(t, NewMockUserRepository(), locker, nil)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.Register(context.Background(), SignupInput{
				Username: "ana", Email: "ana@example.com",
				Password: goodPassword, ConfirmPassword: goodPassword,
			})
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, auth.ErrUserAlreadyExists)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 0, locker.Len(), "every registration lock is released")
}

// =============================================================================
// Token validation
// =============================================================================

func TestAuthService_ValidateToken(t *testing.T) {
	env := newEnv(t)
	registered := env.register(t, "ana", goodPassword)
	out := env.login(t, "ana", goodPassword)

	user, err := env.svc.ValidateToken(context.Background(), out.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.Equal(t, "ana", user.Username)
}

func TestAuthService_ValidateToken_Failures(t *testing.T) {
	env := newEnv(t)
	env.register(t, "ana", goodPassword)
	out := env.login(t, "ana", goodPassword)

	otherCodec, err := auth.NewTokenCodec(strings.Repeat("z", auth.MinSecretLength), time.Hour, auth.WithClock(env.clock.Now))
	require.NoError(t, err)
	foreign, err := otherCodec.Issue(&domain.User{ID: 1, Username: "ana", Roles: domain.NewRoleSet()})
	require.NoError(t, err)

	parts := strings.Split(out.Token, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	tests := []struct {
		name    string
		token   string
		want    error
		message string
	}{
		{"empty", "", auth.ErrUnauthorized, "token cannot be empty"},
		{"blank", "   ", auth.ErrUnauthorized, "token cannot be empty"},
		{"garbage", "not-a-token", auth.ErrUnauthorized, "invalid token format"},
		{"tampered signature", tampered, auth.ErrInvalidToken, "invalid authentication token"},
		{"foreign secret", foreign.Value, auth.ErrInvalidToken, "invalid authentication token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.ValidateToken(context.Background(), tt.token)
			assert.ErrorIs(t, err, tt.want)
			assert.EqualError(t, err, tt.message)
		})
	}
}

func TestAuthService_ValidateToken_ExpiryBoundary(t *testing.T) {
	env := newEnv(t)
	env.register(t, "ana", goodPassword)
	out := env.login(t, "ana", goodPassword)

	env.clock.Advance(auth.DefaultTokenValidity - time.Second)
	_, err := env.svc.ValidateToken(context.Background(), out.Token)
	require.NoError(t, err, "valid strictly before exp")

	env.clock.Advance(time.Second)
	_, err = env.svc.ValidateToken(context.Background(), out.Token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired, "expired at exp")
	assert.EqualError(t, err, "authentication token has expired")
}

func TestAuthService_ValidateToken_SignatureCheckedBeforeExpiry(t *testing.T) {
	env := newEnv(t)

	otherCodec, err := auth.NewTokenCodec(strings.Repeat("z", auth.MinSecretLength), time.Hour, auth.WithClock(env.clock.Now))
	require.NoError(t, err)
	foreign, err := otherCodec.Issue(&domain.User{ID: 1, Username: "ana", Roles: domain.NewRoleSet()})
	require.NoError(t, err)

	env.clock.Advance(2 * time.Hour)
	_, err = env.svc.ValidateToken(context.Background(), foreign.Value)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestAuthService_ValidateToken_UserState(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(env *testEnv, t *testing.T)
		want    error
		message string
	}{
		{
			name: "deleted user",
			mutate: func(env *testEnv, t *testing.T) {
				u, err := env.repo.FindByUsername(context.Background(), "ana")
				require.NoError(t, err)
				require.NoError(t, env.repo.DeleteByID(context.Background(), u.ID))
			},
			want:    auth.ErrUserNotFound,
			message: "user not found",
		},
		{
			name: "disabled",
			mutate: func(env *testEnv, t *testing.T) {
				env.repo.update(t, "ana", func(u *domain.User) { u.Enabled = false })
			},
			want:    auth.ErrUnauthorized,
			message: "account is disabled",
		},
		{
			name: "locked",
			mutate: func(env *testEnv, t *testing.T) {
				env.repo.update(t, "ana", func(u *domain.User) { u.AccountNonLocked = false })
			},
			want:    auth.ErrUnauthorized,
			message: "account is locked",
		},
		{
			name: "account expired",
			mutate: func(env *testEnv, t *testing.T) {
				env.repo.update(t, "ana", func(u *domain.User) { u.AccountNonExpired = false })
			},
			want:    auth.ErrUnauthorized,
			message: "account has expired",
		},
		{
			name: "credentials expired",
			mutate: func(env *testEnv, t *testing.T) {
				env.repo.update(t, "ana", func(u *domain.User) { u.CredentialsNonExpired = false })
			},
			want:    auth.ErrUnauthorized,
			message: "credentials have expired",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t)
			env.register(t, "ana", goodPassword)
			out := env.login(t, "ana", goodPassword)

			tt.mutate(env, t)

			_, err := env.svc.ValidateToken(context.Background(), out.Token)
			assert.ErrorIs(t, err, tt.want)
			assert.EqualError(t, err, tt.message)
		})
	}
}

func TestAuthService_RefreshToken(t *testing.T) {
	env := newEnv(t)
	registered := env.register(t, "ana", goodPassword)
	out := env.login(t, "ana", goodPassword)

	_, err := env.users.AddRole(context.Background(), registered.ID, "admin")
	require.NoError(t, err)

	env.clock.Advance(time.Hour)
	refreshed, err := env.svc.RefreshToken(context.Background(), out.Token)
	require.NoError(t, err)
	assert.NotEqual(t, out.Token, refreshed.Token)
	assert.True(t, refreshed.ExpiresAt.After(out.ExpiresAt))

	claims, err := env.codec.Decode(refreshed.Token)
	require.NoError(t, err)
	assert.True(t, claims.RoleSet().Equal(domain.NewRoleSet(domain.RoleUser, domain.RoleAdmin)))

	env.clock.Advance(auth.DefaultTokenValidity)
	_, err = env.svc.RefreshToken(context.Background(), out.Token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

// =============================================================================
// Password change
// =============================================================================

func TestAuthService_ChangePassword(t *testing.T) {
	env := newEnv(t)
	u := env.register(t, "ana", goodPassword)
	env.repo.update(t, "ana", func(u *domain.User) { u.CredentialsNonExpired = false })

	err := env.svc.ChangePassword(context.Background(), ChangePasswordInput{
		UserID:      u.ID,
		OldPassword: goodPassword,
		NewPassword: "N3wSecret!",
	})
	require.NoError(t, err)

	_, err = env.svc.Login(context.Background(), LoginInput{Username: "ana", Password: goodPassword})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	out := env.login(t, "ana", "N3wSecret!")
	_, err = env.svc.ValidateToken(context.Background(), out.Token)
	assert.NoError(t, err, "password change clears expired credentials")
}

func TestAuthService_ChangePassword_Failures(t *testing.T) {
	tests := []struct {
		name    string
		input   func(id int64) ChangePasswordInput
		want    error
		message string
	}{
		{
			name: "unknown user",
			input: func(int64) ChangePasswordInput {
				return ChangePasswordInput{UserID: 999, OldPassword: goodPassword, NewPassword: "N3wSecret!"}
			},
			want:    auth.ErrUserNotFound,
			message: "user not found",
		},
		{
			name: "wrong current password",
			input: func(id int64) ChangePasswordInput {
				return ChangePasswordInput{UserID: id, OldPassword: "Wrong1!x", NewPassword: "N3wSecret!"}
			},
			want:    auth.ErrInvalidCredentials,
			message: "current password is incorrect",
		},
		{
			name: "weak new password",
			input: func(id int64) ChangePasswordInput {
				return ChangePasswordInput{UserID: id, OldPassword: goodPassword, NewPassword: "short"}
			},
			want:    auth.ErrPolicyViolation,
			message: "password must be between 8 and 100 characters",
		},
		{
			name: "same password",
			input: func(id int64) ChangePasswordInput {
				return ChangePasswordInput{UserID: id, OldPassword: goodPassword, NewPassword: goodPassword}
			},
			want:    auth.ErrPolicyViolation,
			message: "new password must differ from the current password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t)
			u := env.register(t, "ana", goodPassword)

			err := env.svc.ChangePassword(context.Background(), tt.input(u.ID))
			assert.ErrorIs(t, err, tt.want)
			assert.EqualError(t, err, tt.message)

			// The old password still works.
			env.login(t, "ana", goodPassword)
		})
	}
}

// =============================================================================
// Metrics
// =============================================================================

func TestAuthService_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	env := newTestEnv(t, NewMockUserRepository(), nil, metrics.NewAuth(reg))

	ana := env.register(t, "ana", goodPassword)
	env.login(t, "ana", goodPassword)
	_, _ = env.svc.Login(context.Background(), LoginInput{Username: "ana", Password: "Wrong1!x"})

	got := counterValues(t, reg, "authd_login_total")
	assert.Equal(t, 1.0, got[metrics.OutcomeSuccess])
	assert.Equal(t, 1.0, got[string(auth.KindInvalidCredentials)])

	got = counterValues(t, reg, "authd_register_total")
	assert.Equal(t, 1.0, got[metrics.OutcomeSuccess])

	_, _ = env.svc.Register(context.Background(), SignupInput{
		Username: "bob", Email: "bob@example.com", Password: "secret1!", ConfirmPassword: "secret1!",
	})
	err := env.svc.ChangePassword(context.Background(), ChangePasswordInput{
		UserID: ana.ID, OldPassword: goodPassword, NewPassword: "Secret!!",
	})
	require.Error(t, err)

	got = counterValues(t, reg, "authd_password_rejected_total")
	assert.Equal(t, 1.0, got[string(auth.RuleUppercase)])
	assert.Equal(t, 1.0, got[string(auth.RuleDigit)])
}

// counterValues returns a counter family's values keyed by its single label.
func counterValues(t *testing.T, reg *prometheus.Registry, name string) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]float64)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				out[l.GetValue()] = m.GetCounter().GetValue()
			}
		}
	}
	return out
}
