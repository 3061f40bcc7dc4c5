package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Bugian/Sign-up-Log-in-page/internal/domain"
	"github.com/Bugian/Sign-up-Log-in-page/internal/repository"
)

const userColumns = `id, username, email, password_hash, enabled, account_non_expired,
	credentials_non_expired, account_non_locked, last_login_at, created_at, updated_at`

// userRepository implements repository.UserRepository for SQLite.
type userRepository struct {
	db *DB
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{db: db}
}

// Save inserts or updates the user and replaces its roles in one transaction.
func (r *userRepository) Save(ctx context.Context, user *domain.User) (*domain.User, error) {
	u := user.Clone()
	now := time.Now().UTC()
	u.UpdatedAt = now
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
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

func insertUser(ctx context.Context, tx *sql.Tx, u *domain.User) (int64, error) {
	query := `
		INSERT INTO users (username, email, password_hash, enabled, account_non_expired,
			credentials_non_expired, account_non_locked, last_login_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := tx.ExecContext(ctx, query,
		u.Username,
		u.Email,
		u.PasswordHash,
		boolToInt(u.Enabled),
		boolToInt(u.AccountNonExpired),
		boolToInt(u.CredentialsNonExpired),
		boolToInt(u.AccountNonLocked),
		formatNullTime(u.LastLoginAt),
		formatTime(u.CreatedAt),
		formatTime(u.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: username or email already exists", domain.ErrUserAlreadyExists)
		}
		return 0, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}

func updateUser(ctx context.Context, tx *sql.Tx, u *domain.User) error {
	query := `
		UPDATE users
		SET username = ?, email = ?, password_hash = ?, enabled = ?, account_non_expired = ?,
			credentials_non_expired = ?, account_non_locked = ?, last_login_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := tx.ExecContext(ctx, query,
		u.Username,
		u.Email,
		u.PasswordHash,
		boolToInt(u.Enabled),
		boolToInt(u.AccountNonExpired),
		boolToInt(u.CredentialsNonExpired),
		boolToInt(u.AccountNonLocked),
		formatNullTime(u.LastLoginAt),
		formatTime(u.UpdatedAt),
		u.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username or email already exists", domain.ErrUserAlreadyExists)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func replaceRoles(ctx context.Context, tx *sql.Tx, userID int64, roles domain.RoleSet) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear roles: %w", err)
	}
	for _, name := range roles.Names() {
		if _, err := tx.ExecContext(ctx, `INSERT INTO user_roles (user_id, role) VALUES (?, ?)`, userID, name); err != nil {
			if isCheckViolation(err) {
				return domain.NewDomainError(domain.ErrInvalidRole, "role name must start with "+domain.RolePrefix, name)
			}
			return fmt.Errorf("failed to insert role: %w", err)
		}
	}
	return nil
}

// FindByID retrieves a user by ID.
func (r *userRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// FindByUsername retrieves a user by username.
func (r *userRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (r *userRepository) findOne(ctx context.Context, query string, arg interface{}) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT role FROM user_roles WHERE user_id = ?`, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get roles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		user.Roles.Add(domain.Role(role))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating roles: %w", err)
	}

	return user, nil
}

// UpdateLastLogin sets last_login_at only.
func (r *userRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("failed to record last login: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// DeleteByID deletes a user by ID. Roles are removed by the foreign key cascade.
func (r *userRepository) DeleteByID(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

// FindAll returns users ordered by ID.
func (r *userRepository) FindAll(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.User], error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	// SQLite treats a negative LIMIT as unbounded.
	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY id LIMIT ? OFFSET ?`, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]*domain.User, 0)
	byID := make(map[int64]*domain.User)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
		byID[user.ID] = user
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	rows.Close()

	if len(users) > 0 {
		roleRows, err := r.db.QueryContext(ctx, `
			SELECT ur.user_id, ur.role
			FROM user_roles ur
			JOIN (SELECT id FROM users ORDER BY id LIMIT ? OFFSET ?) page ON page.id = ur.user_id
		`, limit, opts.Offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list roles: %w", err)
		}
		defer roleRows.Close()

		for roleRows.Next() {
			var userID int64
			var role string
			if err := roleRows.Scan(&userID, &role); err != nil {
				return nil, fmt.Errorf("failed to scan role: %w", err)
			}
			if u, ok := byID[userID]; ok {
				u.Roles.Add(domain.Role(role))
			}
		}
		if err := roleRows.Err(); err != nil {
			return nil, fmt.Errorf("error iterating roles: %w", err)
		}
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
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE username = ?`, username).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check username existence: %w", err)
	}
	return count > 0, nil
}

// ExistsByEmail checks if a user with the given email exists.
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE email = ?`, email).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return count > 0, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{Roles: domain.NewRoleSet()}
	var enabled, nonExpired, credsNonExpired, nonLocked int
	var lastLogin sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&enabled,
		&nonExpired,
		&credsNonExpired,
		&nonLocked,
		&lastLogin,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.Enabled = enabled != 0
	user.AccountNonExpired = nonExpired != 0
	user.CredentialsNonExpired = credsNonExpired != 0
	user.AccountNonLocked = nonLocked != 0
	user.LastLoginAt = parseNullTime(lastLogin)
	user.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	user.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	return user, nil
}

// boolToInt converts a boolean to an integer (SQLite doesn't have native boolean).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

// Ensure userRepository implements repository.UserRepository.
var _ repository.UserRepository = (*userRepository)(nil)

// modernc reports constraint failures only through the message text.

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isCheckViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "CHECK constraint failed")
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
