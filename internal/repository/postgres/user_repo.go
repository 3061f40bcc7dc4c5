package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Bugian/Sign-up-Log-in-page/internal/domain"
	"github.com/Bugian/Sign-up-Log-in-page/internal/repository"
)

// PostgreSQL error codes.
const (
	uniqueViolation = "23505"
	checkViolation  = "23514"
)

const selectUser = `
	SELECT u.id, u.username, u.email, u.password_hash, u.enabled, u.account_non_expired,
		u.credentials_non_expired, u.account_non_locked, u.last_login_at, u.created_at, u.updated_at,
		COALESCE(array_agg(ur.role ORDER BY ur.role) FILTER (WHERE ur.role IS NOT NULL), '{}') AS roles
	FROM users u
	LEFT JOIN user_roles ur ON ur.user_id = u.id
`

// userRepository implements repository.UserRepository for PostgreSQL.
type userRepository struct {
	pool Pool
}

// NewUserRepository creates a new PostgreSQL user repository.
func NewUserRepository(pool Pool) repository.UserRepository {
	return &userRepository{pool: pool}
}

// Save inserts or updates the user and replaces its roles in one transaction.
func (r *userRepository) Save(ctx context.Context, user *domain.User) (*domain.User, error) {
	u := user.Clone()
	now := time.Now().UTC()
	u.UpdatedAt = now
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}

	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		if u.ID == 0 {
			id, err := insertUser(ctx, tx, u)
			if err != nil {
				return err
			}
			u.ID = id
		} else if err := updateUser(ctx, tx, u); err != nil {
			return err
		}
		return replaceRoles(ctx, tx, u.ID, u.Roles)
	})
	if err != nil {
		return nil, err
	}

	return u, nil
}

func insertUser(ctx context.Context, tx pgx.Tx, u *domain.User) (int64, error) {
	query := `
		INSERT INTO users (username, email, password_hash, enabled, account_non_expired,
			credentials_non_expired, account_non_locked, last_login_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	var id int64
	err := tx.QueryRow(ctx, query,
		u.Username,
		u.Email,
		u.PasswordHash,
		u.Enabled,
		u.AccountNonExpired,
		u.CredentialsNonExpired,
		u.AccountNonLocked,
		u.LastLoginAt,
		u.CreatedAt,
		u.UpdatedAt,
	).Scan(&id)
	if err != nil {
		if hasCode(err, uniqueViolation) {
			return 0, fmt.Errorf("%w: username or email already exists", domain.ErrUserAlreadyExists)
		}
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return id, nil
}

func updateUser(ctx context.Context, tx pgx.Tx, u *domain.User) error {
	query := `
		UPDATE users
		SET username = $2, email = $3, password_hash = $4, enabled = $5, account_non_expired = $6,
			credentials_non_expired = $7, account_non_locked = $8, last_login_at = $9, updated_at = $10
		WHERE id = $1
	`

	tag, err := tx.Exec(ctx, query,
		u.ID,
		u.Username,
		u.Email,
		u.PasswordHash,
		u.Enabled,
		u.AccountNonExpired,
		u.CredentialsNonExpired,
		u.AccountNonLocked,
		u.LastLoginAt,
		u.UpdatedAt,
	)
	if err != nil {
		if hasCode(err, uniqueViolation) {
			return fmt.Errorf("%w: username or email already exists", domain.ErrUserAlreadyExists)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func replaceRoles(ctx context.Context, tx pgx.Tx, userID int64, roles domain.RoleSet) error {
	if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to clear roles: %w", err)
	}
	if roles.Len() == 0 {
		return nil
	}

	_, err := tx.Exec(ctx,
		`INSERT INTO user_roles (user_id, role) SELECT $1, unnest($2::text[])`,
		userID, roles.Names())
	if err != nil {
		if hasCode(err, checkViolation) {
			return domain.NewDomainError(domain.ErrInvalidRole, "role name must start with "+domain.RolePrefix, "")
		}
		return fmt.Errorf("failed to insert roles: %w", err)
	}
	return nil
}

// FindByID retrieves a user by ID.
func (r *userRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.findOne(ctx, selectUser+` WHERE u.id = $1 GROUP BY u.id`, id)
}

// FindByUsername retrieves a user by username.
func (r *userRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, selectUser+` WHERE u.username = $1 GROUP BY u.id`, username)
}

func (r *userRepository) findOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpdateLastLogin sets last_login_at only.
func (r *userRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = $1 WHERE id = $2`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to record last login: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// DeleteByID deletes a user by ID. Roles are removed by the foreign key cascade.
func (r *userRepository) DeleteByID(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

// FindAll returns users ordered by ID.
func (r *userRepository) FindAll(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.User], error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	query := selectUser + ` GROUP BY u.id ORDER BY u.id`
	args := []any{opts.Offset}
	if opts.Limit > 0 {
		query += ` LIMIT $2 OFFSET $1`
		args = append(args, opts.Limit)
	} else {
		query += ` OFFSET $1`
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return &repository.ListResult[domain.User]{
		Items:  users,
		Total:  total,
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

// ExistsByUsername checks if a user with the given username exists.
func (r *userRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check username existence: %w", err)
	}
	return exists, nil
}

// ExistsByEmail checks if a user with the given email exists.
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return exists, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	user := &domain.User{}
	var lastLogin pgtype.Timestamptz
	var roles []string

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Enabled,
		&user.AccountNonExpired,
		&user.CredentialsNonExpired,
		&user.AccountNonLocked,
		&lastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
		&roles,
	)
	if err != nil {
		return nil, err
	}

	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLoginAt = &t
	}
	user.Roles = domain.RoleSetFromNames(roles)
	return user, nil
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// Ensure userRepository implements repository.UserRepository.
var _ repository.UserRepository = (*userRepository)(nil)
