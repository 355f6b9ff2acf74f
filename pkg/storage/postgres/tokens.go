package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/pressroom/pkg/auth"
)

// CreateToken implements auth.TokenStore
func (s *Store) CreateToken(ctx context.Context, token *auth.Token) error {
	query := `
		INSERT INTO tokens (user_id, token, type, is_revoked, expires_at, ip, user_agent, created_at)
		VALUES ($1, $2, $3, false, $4, $5, $6, $7)
		RETURNING id
	`

	tokenType := token.Type
	if tokenType == "" {
		tokenType = auth.TokenTypeJWT
	}

	err := s.q.QueryRowContext(ctx, query,
		token.UserID,
		token.TokenHash,
		tokenType,
		token.ExpiresAt,
		nullString(token.IP),
		nullString(token.UserAgent),
		token.CreatedAt,
	).Scan(&token.ID)
	if pqCode(err) == foreignKeyViolation {
		return auth.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}
	token.Type = tokenType
	return nil
}

// FindTokenByHash implements auth.TokenStore
func (s *Store) FindTokenByHash(ctx context.Context, tokenHash string) (*auth.Token, error) {
	query := `
		SELECT id, user_id, token, type, is_revoked, expires_at, revoked_at, ip, user_agent, created_at
		FROM tokens
		WHERE token = $1
	`

	var (
		t         auth.Token
		expiresAt sql.NullTime
		revokedAt sql.NullTime
		ip        sql.NullString
		userAgent sql.NullString
	)
	err := s.q.QueryRowContext(ctx, query, tokenHash).Scan(
		&t.ID, &t.UserID, &t.TokenHash, &t.Type, &t.IsRevoked,
		&expiresAt, &revokedAt, &ip, &userAgent, &t.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	if expiresAt.Valid {
		v := expiresAt.Time
		t.ExpiresAt = &v
	}
	if revokedAt.Valid {
		v := revokedAt.Time
		t.RevokedAt = &v
	}
	t.IP = ip.String
	t.UserAgent = userAgent.String
	return &t, nil
}

// RevokeToken implements auth.TokenStore. The first revocation time is kept.
func (s *Store) RevokeToken(ctx context.Context, id int64, revokedAt time.Time) error {
	query := `UPDATE tokens SET is_revoked = true, revoked_at = COALESCE(revoked_at, $2) WHERE id = $1`

	result, err := s.q.ExecContext(ctx, query, id, revokedAt)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	if affected == 0 {
		return auth.ErrTokenNotFound
	}
	return nil
}

// DeleteExpiredTokens implements auth.TokenStore. Tokens without expiry are kept.
func (s *Store) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.q.ExecContext(ctx, `DELETE FROM tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	return deleted, nil
}
