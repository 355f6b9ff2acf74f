package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/pressroom/pkg/auth"
)

const userColumns = `id, username, email, password, role, tries, blocked_at, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row scanner) (*auth.User, error) {
	var (
		u         auth.User
		email     sql.NullString
		role      string
		blockedAt sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &email, &u.PasswordHash, &role, &u.Tries, &blockedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Email = email.String
	u.Role = auth.Role(role)
	if blockedAt.Valid {
		t := blockedAt.Time
		u.BlockedAt = &t
	}
	return &u, nil
}

// FindUserByIdentifier implements auth.CredentialStore
func (s *Store) FindUserByIdentifier(ctx context.Context, field auth.IdentifierField, identifier string) (*auth.User, error) {
	column := "username"
	if field == auth.IdentifyByEmail {
		column = "email"
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1`
	user, err := scanUser(s.q.QueryRowContext(ctx, query, identifier))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// FindUserByID implements auth.CredentialStore
func (s *Store) FindUserByID(ctx context.Context, id int64) (*auth.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(s.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListUsers implements auth.CredentialStore
func (s *Store) ListUsers(ctx context.Context) ([]*auth.User, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*auth.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// CreateUser implements auth.CredentialStore
func (s *Store) CreateUser(ctx context.Context, user *auth.User) error {
	query := `
		INSERT INTO users (username, email, password, role, tries, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6)
		RETURNING id
	`

	err := s.q.QueryRowContext(ctx, query,
		user.Username,
		nullString(user.Email),
		user.PasswordHash,
		string(user.Role),
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
	if pqCode(err) == uniqueViolation {
		return auth.ErrDuplicateUser
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// UpdateLoginState implements auth.CredentialStore
func (s *Store) UpdateLoginState(ctx context.Context, user *auth.User) error {
	query := `UPDATE users SET tries = $1, blocked_at = $2, updated_at = $3 WHERE id = $4`

	var blockedAt sql.NullTime
	if user.BlockedAt != nil {
		blockedAt = sql.NullTime{Time: *user.BlockedAt, Valid: true}
	}

	result, err := s.q.ExecContext(ctx, query, user.Tries, blockedAt, user.UpdatedAt, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update login state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update login state: %w", err)
	}
	if affected == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}
