package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order by EnsureSchema. Every statement is idempotent.
// log_errors is owned by errorlog.DBSink.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         BIGSERIAL PRIMARY KEY,
		username   VARCHAR(255) NOT NULL UNIQUE,
		email      VARCHAR(255) UNIQUE,
		password   VARCHAR(255) NOT NULL,
		role       VARCHAR(32)  NOT NULL DEFAULT 'editor',
		tries      INT          NOT NULL DEFAULT 0,
		blocked_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS tokens (
		id         BIGSERIAL PRIMARY KEY,
		user_id    BIGINT       NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token      VARCHAR(255) NOT NULL UNIQUE,
		type       VARCHAR(32)  NOT NULL DEFAULT 'jwt',
		is_revoked BOOLEAN      NOT NULL DEFAULT false,
		expires_at TIMESTAMPTZ,
		revoked_at TIMESTAMPTZ,
		ip         VARCHAR(45),
		user_agent TEXT,
		created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tokens_user_id ON tokens(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tokens_expires_at ON tokens(expires_at)`,
	`CREATE TABLE IF NOT EXISTS unities (
		id         BIGSERIAL PRIMARY KEY,
		name       VARCHAR(255) NOT NULL,
		address    TEXT,
		cep        VARCHAR(16),
		latitude   DOUBLE PRECISION,
		longitude  DOUBLE PRECISION,
		phones     JSONB        NOT NULL DEFAULT '[]',
		emails     JSONB        NOT NULL DEFAULT '[]',
		banner     VARCHAR(512),
		created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema creates the tables used by Store
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
