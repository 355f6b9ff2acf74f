package errorlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DBSink persists entries in the log_errors table
type DBSink struct {
	db *sql.DB
}

// NewDBSink creates a database-backed sink, creating the table when missing
func NewDBSink(db *sql.DB) (*DBSink, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	sink := &DBSink{db: db}
	if err := sink.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure log_errors table: %w", err)
	}

	return sink, nil
}

func (s *DBSink) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS log_errors (
		id BIGSERIAL PRIMARY KEY,
		controller VARCHAR(255) NOT NULL,
		function VARCHAR(255) NOT NULL,
		message TEXT NOT NULL,
		json_error JSONB,
		request_id VARCHAR(100),
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		solutioned_at TIMESTAMP WITH TIME ZONE
	);

	CREATE INDEX IF NOT EXISTS idx_log_errors_created_at ON log_errors(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_log_errors_open ON log_errors(solutioned_at) WHERE solutioned_at IS NULL;
	`

	_, err := s.db.Exec(query)
	return err
}

// Record implements Sink
func (s *DBSink) Record(ctx context.Context, entry Entry) error {
	createdAt := entry.OccurredAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var jsonError interface{}
	if data := SerializeError(entry.Err); data != nil {
		jsonError = string(data)
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO log_errors (controller, function, message, json_error, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, entry.Controller, entry.Function, entry.Message, jsonError, nullString(entry.RequestID), createdAt).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to insert log error: %w", err)
	}

	return nil
}

const selectColumns = `id, controller, function, message, json_error, request_id, created_at, solutioned_at`

// List returns entries newest first
func (s *DBSink) List(ctx context.Context, filter Filter) ([]*Record, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := `SELECT ` + selectColumns + ` FROM log_errors`
	if filter.OnlyOpen {
		query += ` WHERE solutioned_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`

	rows, err := s.db.QueryContext(ctx, query, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list log errors: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate log errors: %w", err)
	}

	return records, nil
}

// Get returns one entry by id
func (s *DBSink) Get(ctx context.Context, id int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM log_errors WHERE id = $1`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	return record, err
}

// MarkSolutioned sets or clears solutioned_at
func (s *DBSink) MarkSolutioned(ctx context.Context, id int64, at *time.Time) error {
	result, err := s.db.ExecContext(ctx, `UPDATE log_errors SET solutioned_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("failed to update log error: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update log error: %w", err)
	}
	if affected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		record    Record
		jsonError []byte
		requestID sql.NullString
		solved    sql.NullTime
	)

	err := row.Scan(&record.ID, &record.Controller, &record.Function, &record.Message,
		&jsonError, &requestID, &record.CreatedAt, &solved)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan log error: %w", err)
	}

	if len(jsonError) > 0 {
		record.JSONError = jsonError
	}
	record.RequestID = requestID.String
	if solved.Valid {
		t := solved.Time
		record.SolutionedAt = &t
	}

	return &record, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
