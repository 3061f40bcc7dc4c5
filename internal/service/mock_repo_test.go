package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Bugian/Sign-up-Log-in-page/internal/auth"
	"github.com/Bugian/Sign-up-Log-in-page/internal/domain"
	"github.com/Bugian/Sign-up-Log-in-page/internal/lock"
	"github.com/Bugian/Sign-up-Log-in-page/internal/metrics"
	"github.com/Bugian/Sign-up-Log-in-page/internal/repository"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// MockUserRepository is an in-memory repository.UserRepository enforcing
// username and email uniqueness. It stores and returns copies.
type MockUserRepository struct {
	mu      sync.Mutex
	users   map[int64]*domain.User
	nextID  int64
	saveErr error
	saves   int

	lastLoginErr error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users:  make(map[int64]*domain.User),
		nextID: 1,
	}
}

func (m *MockUserRepository) Save(ctx context.Context, user *domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saves++
	if m.saveErr != nil {
		return nil, m.saveErr
	}

	u := user.Clone()
	for id, existing := range m.users {
		if id == u.ID {
			continue
		}
		if existing.Username == u.Username || existing.Email == u.Email {
			return nil, domain.ErrUserAlreadyExists
		}
	}
	for role := range u.Roles {
		if err := role.Validate(); err != nil {
			return nil, err
		}
	}

	u.UpdatedAt = time.Now().UTC()
	if u.ID == 0 {
		u.ID = m.nextID
		m.nextID++
		u.CreatedAt = u.UpdatedAt
	} else if _, ok := m.users[u.ID]; !ok {
		return nil, domain.ErrUserNotFound
	}

	m.users[u.ID] = u
	return u.Clone(), nil
}

func (m *MockUserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u.Clone(), nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u.Clone(), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastLoginErr != nil {
		return m.lastLoginErr
	}
	u, ok := m.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	at = at.UTC()
	u.LastLoginAt = &at
	return nil
}

func (m *MockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := m.FindByUsername(ctx, username)
	return err == nil, nil
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockUserRepository) DeleteByID(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *MockUserRepository) FindAll(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.User], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]*domain.User, 0, len(m.users))
	for _, u := range m.users {
		all = append(all, u.Clone())
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	start := opts.Offset
	if start > len(all) {
		start = len(all)
	}
	end := len(all)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}

	return &repository.ListResult[domain.User]{
		Items:  all[start:end],
		Total:  int64(len(all)),
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

// update mutates a stored user directly.
func (m *MockUserRepository) update(t *testing.T, username string, fn func(u *domain.User)) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			fn(u)
			return
		}
	}
	t.Fatalf("user %s not in repository", username)
}

// FailingUserRepository is a testify mock for injecting storage faults.
type FailingUserRepository struct {
	mock.Mock
}

func (m *FailingUserRepository) Save(ctx context.Context, user *domain.User) (*domain.User, error) {
	args := m.Called(ctx, user)
	if u := args.Get(0); u != nil {
		return u.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *FailingUserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *FailingUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if u := args.Get(0); u != nil {
		return u.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *FailingUserRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *FailingUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *FailingUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *FailingUserRepository) DeleteByID(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *FailingUserRepository) FindAll(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.User], error) {
	args := m.Called(ctx, opts)
	if r := args.Get(0); r != nil {
		return r.(*repository.ListResult[domain.User]), args.Error(1)
	}
	return nil, args.Error(1)
}

// =============================================================================
// Fixtures
// =============================================================================

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	repo    *MockUserRepository
	hasher  auth.CredentialHasher
	codec   *auth.TokenCodec
	clock   *fakeClock
	svc     *AuthService
	users   *UserService
	metrics *metrics.Auth
}

func newTestHasher(t *testing.T) auth.CredentialHasher {
	t.Helper()
	h, err := auth.NewBcryptHasher(4)
	require.NoError(t, err)
	return h
}

func newTestEnv(t *testing.T, repo repository.UserRepository, locker lock.Locker, m *metrics.Auth) *testEnv {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)}
	codec, err := auth.NewTokenCodec(testSecret, auth.DefaultTokenValidity, auth.WithClock(clock.Now))
	require.NoError(t, err)

	hasher := newTestHasher(t)
	svc, err := NewAuthService(AuthServiceConfig{
		Users:   repo,
		Hasher:  hasher,
		Codec:   codec,
		Locker:  locker,
		Metrics: m,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	svc.now = clock.Now

	env := &testEnv{
		hasher:  hasher,
		codec:   codec,
		clock:   clock,
		svc:     svc,
		users:   NewUserService(repo, hasher, zerolog.Nop()),
		metrics: m,
	}
	if mr, ok := repo.(*MockUserRepository); ok {
		env.repo = mr
	}
	return env
}

func newEnv(t *testing.T) *testEnv {
	return newTestEnv(t, NewMockUserRepository(), lock.NewNoOpLocker(), nil)
}

// register stores a user through the service.
func (e *testEnv) register(t *testing.T, username, password string) *domain.User {
	t.Helper()
	out, err := e.svc.Register(context.Background(), SignupInput{
		Username:        username,
		Email:           username + "@example.com",
		Password:        password,
		ConfirmPassword: password,
	})
	require.NoError(t, err)
	return out.User
}

func (e *testEnv) login(t *testing.T, username, password string) *LoginOutput {
	t.Helper()
	out, err := e.svc.Login(context.Background(), LoginInput{Username: username, Password: password})
	require.NoError(t, err)
	return out
}
