package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Bugian/Sign-up-Log-in-page/internal/domain"
)

// cachedUser is the cache encoding of a user. It keeps the password hash,
// which the public JSON form of domain.User omits.
type cachedUser struct {
	ID                    int64      `json:"id"`
	Username              string     `json:"username"`
	Email                 string     `json:"email"`
	PasswordHash          string     `json:"password_hash"`
	Roles                 []string   `json:"roles"`
	Enabled               bool       `json:"enabled"`
	AccountNonExpired     bool       `json:"account_non_expired"`
	CredentialsNonExpired bool       `json:"credentials_non_expired"`
	AccountNonLocked      bool       `json:"account_non_locked"`
	LastLoginAt           *time.Time `json:"last_login_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func toCached(u *domain.User) cachedUser {
	return cachedUser{
		ID:                    u.ID,
		Username:              u.Username,
		Email:                 u.Email,
		PasswordHash:          u.PasswordHash,
		Roles:                 u.Roles.Names(),
		Enabled:               u.Enabled,
		AccountNonExpired:     u.AccountNonExpired,
		CredentialsNonExpired: u.CredentialsNonExpired,
		AccountNonLocked:      u.AccountNonLocked,
		LastLoginAt:           u.LastLoginAt,
		CreatedAt:             u.CreatedAt,
		UpdatedAt:             u.UpdatedAt,
	}
}

func (c cachedUser) toDomain() *domain.User {
	return &domain.User{
		ID:                    c.ID,
		Username:              c.Username,
		Email:                 c.Email,
		PasswordHash:          c.PasswordHash,
		Roles:                 domain.RoleSetFromNames(c.Roles),
		Enabled:               c.Enabled,
		AccountNonExpired:     c.AccountNonExpired,
		CredentialsNonExpired: c.CredentialsNonExpired,
		AccountNonLocked:      c.AccountNonLocked,
		LastLoginAt:           c.LastLoginAt,
		CreatedAt:             c.CreatedAt,
		UpdatedAt:             c.UpdatedAt,
	}
}

type bypassKey struct{}

// BypassCache returns a context under which CachedUserRepository reads go
// straight to the underlying repository. Read-modify-write sequences use it
// so a stale entry is never written back.
func BypassCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassKey{}, true)
}

func cacheBypassed(ctx context.Context) bool {
	bypass, _ := ctx.Value(bypassKey{}).(bool)
	return bypass
}

// CachedUserRepository is a read-through cache in front of a UserRepository.
// Users are cached by ID; usernames map to IDs. Writes through this
// repository invalidate the affected entries. Cache faults fall through to
// the underlying repository.
type CachedUserRepository struct {
	next   UserRepository
	cache  Cache
	ttl    time.Duration
	keys   CacheKey
	logger zerolog.Logger
}

// NewCachedUserRepository wraps next with cache.
func NewCachedUserRepository(next UserRepository, cache Cache, ttl time.Duration, logger zerolog.Logger) *CachedUserRepository {
	return &CachedUserRepository{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "user_cache").Logger(),
	}
}

// Save writes through and invalidates the user's entries.
func (r *CachedUserRepository) Save(ctx context.Context, user *domain.User) (*domain.User, error) {
	saved, err := r.next.Save(ctx, user)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, saved.ID, saved.Username)
	return saved, nil
}

// FindByID returns the cached user or loads and caches it.
func (r *CachedUserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	if !cacheBypassed(ctx) {
		if u, ok := r.getUser(ctx, id); ok {
			return u, nil
		}
	}

	u, err := r.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.put(ctx, u)
	return u, nil
}

// FindByUsername resolves the username to an ID through the cache. A cached
// user whose username no longer matches is treated as a miss.
func (r *CachedUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	if !cacheBypassed(ctx) {
		if u, ok := r.getUserByName(ctx, username); ok {
			return u, nil
		}
	}

	u, err := r.next.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	r.put(ctx, u)
	return u, nil
}

// UpdateLastLogin writes through and invalidates the user's entry.
func (r *CachedUserRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	if err := r.next.UpdateLastLogin(ctx, id, at); err != nil {
		return err
	}
	r.invalidate(ctx, id, "")
	return nil
}

// ExistsByUsername always consults the underlying repository.
func (r *CachedUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.next.ExistsByUsername(ctx, username)
}

// ExistsByEmail always consults the underlying repository.
func (r *CachedUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.next.ExistsByEmail(ctx, email)
}

// DeleteByID deletes through and invalidates the user's entries.
func (r *CachedUserRepository) DeleteByID(ctx context.Context, id int64) error {
	var username string
	if u, ok := r.getUser(ctx, id); ok {
		username = u.Username
	}
	if err := r.next.DeleteByID(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id, username)
	return nil
}

// FindAll is not cached.
func (r *CachedUserRepository) FindAll(ctx context.Context, opts ListOptions) (*ListResult[domain.User], error) {
	return r.next.FindAll(ctx, opts)
}

func (r *CachedUserRepository) getUser(ctx context.Context, id int64) (*domain.User, bool) {
	raw, err := r.cache.Get(ctx, r.keys.UserByID(id))
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			r.logger.Warn().Err(err).Int64("user_id", id).Msg("cache read failed")
		}
		return nil, false
	}

	var c cachedUser
	if err := json.Unmarshal(raw, &c); err != nil {
		r.logger.Warn().Err(err).Int64("user_id", id).Msg("discarding undecodable cache entry")
		_ = r.cache.Delete(ctx, r.keys.UserByID(id))
		return nil, false
	}
	return c.toDomain(), true
}

func (r *CachedUserRepository) getUserByName(ctx context.Context, username string) (*domain.User, bool) {
	raw, err := r.cache.Get(ctx, r.keys.UserByUsername(username))
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			r.logger.Warn().Err(err).Str("username", username).Msg("cache read failed")
		}
		return nil, false
	}

	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return nil, false
	}
	u, ok := r.getUser(ctx, id)
	if !ok || u.Username != username {
		return nil, false
	}
	return u, true
}

func (r *CachedUserRepository) put(ctx context.Context, u *domain.User) {
	raw, err := json.Marshal(toCached(u))
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, r.keys.UserByID(u.ID), raw, r.ttl); err != nil {
		r.logger.Warn().Err(err).Int64("user_id", u.ID).Msg("cache write failed")
		return
	}
	idStr := strconv.FormatInt(u.ID, 10)
	if err := r.cache.Set(ctx, r.keys.UserByUsername(u.Username), []byte(idStr), r.ttl); err != nil {
		r.logger.Warn().Err(err).Int64("user_id", u.ID).Msg("cache write failed")
	}
}

func (r *CachedUserRepository) invalidate(ctx context.Context, id int64, username string) {
	keys := []string{r.keys.UserByID(id)}
	if username != "" {
		keys = append(keys, r.keys.UserByUsername(username))
	}
	if err := r.cache.DeleteMulti(ctx, keys...); err != nil {
		r.logger.Warn().Err(err).Int64("user_id", id).Msg("cache invalidation failed")
	}
}

// Ensure CachedUserRepository implements UserRepository.
var _ UserRepository = (*CachedUserRepository)(nil)
