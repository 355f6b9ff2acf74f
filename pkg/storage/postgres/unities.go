package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/platinummonkey/pressroom/pkg/unity"
)

const unityColumns = `id, name, address, cep, latitude, longitude, phones, emails, banner, created_at, updated_at`

// UnityStore implements unity.Store on PostgreSQL
type UnityStore struct {
	s *Store
}

// Unities returns the unity store sharing s's connection
func (s *Store) Unities() *UnityStore {
	return &UnityStore{s: s}
}

// WithTx implements unity.Store
func (u *UnityStore) WithTx(ctx context.Context, fn func(tx unity.Store) error) error {
	return u.s.withTx(ctx, func(tx *Store) error { return fn(tx.Unities()) })
}

func scanUnity(row scanner) (*unity.Unity, error) {
	var (
		out       unity.Unity
		address   sql.NullString
		cep       sql.NullString
		latitude  sql.NullFloat64
		longitude sql.NullFloat64
		phones    []byte
		emails    []byte
		banner    sql.NullString
	)
	err := row.Scan(&out.ID, &out.Name, &address, &cep, &latitude, &longitude,
		&phones, &emails, &banner, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, err
	}

	out.Address = address.String
	out.CEP = cep.String
	out.Banner = banner.String
	if latitude.Valid {
		v := latitude.Float64
		out.Latitude = &v
	}
	if longitude.Valid {
		v := longitude.Float64
		out.Longitude = &v
	}
	if out.Phones, err = decodeList(phones); err != nil {
		return nil, fmt.Errorf("failed to decode phones: %w", err)
	}
	if out.Emails, err = decodeList(emails); err != nil {
		return nil, fmt.Errorf("failed to decode emails: %w", err)
	}
	return &out, nil
}

func decodeList(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return []string{}, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}

func encodeList(list []string) string {
	if list == nil {
		list = []string{}
	}
	data, _ := json.Marshal(list)
	return string(data)
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// ListUnities implements unity.Store
func (u *UnityStore) ListUnities(ctx context.Context) ([]*unity.Unity, error) {
	rows, err := u.s.q.QueryContext(ctx, `SELECT `+unityColumns+` FROM unities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unities: %w", err)
	}
	defer rows.Close()

	out := make([]*unity.Unity, 0)
	for rows.Next() {
		row, err := scanUnity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unity: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list unities: %w", err)
	}
	return out, nil
}

// GetUnity implements unity.Store
func (u *UnityStore) GetUnity(ctx context.Context, id int64) (*unity.Unity, error) {
	row, err := scanUnity(u.s.q.QueryRowContext(ctx, `SELECT `+unityColumns+` FROM unities WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, unity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get unity: %w", err)
	}
	return row, nil
}

// CreateUnity implements unity.Store
func (u *UnityStore) CreateUnity(ctx context.Context, row *unity.Unity) error {
	query := `
		INSERT INTO unities (name, address, cep, latitude, longitude, phones, emails, banner, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	err := u.s.q.QueryRowContext(ctx, query,
		row.Name,
		nullString(row.Address),
		nullString(row.CEP),
		nullFloat(row.Latitude),
		nullFloat(row.Longitude),
		encodeList(row.Phones),
		encodeList(row.Emails),
		nullString(row.Banner),
		row.CreatedAt,
		row.UpdatedAt,
	).Scan(&row.ID)
	if err != nil {
		return fmt.Errorf("failed to create unity: %w", err)
	}
	return nil
}

// UpdateUnity implements unity.Store
func (u *UnityStore) UpdateUnity(ctx context.Context, row *unity.Unity) error {
	query := `
		UPDATE unities
		SET name = $1, address = $2, cep = $3, latitude = $4, longitude = $5,
		    phones = $6, emails = $7, banner = $8, updated_at = $9
		WHERE id = $10
	`

	result, err := u.s.q.ExecContext(ctx, query,
		row.Name,
		nullString(row.Address),
		nullString(row.CEP),
		nullFloat(row.Latitude),
		nullFloat(row.Longitude),
		encodeList(row.Phones),
		encodeList(row.Emails),
		nullString(row.Banner),
		row.UpdatedAt,
		row.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update unity: %w", err)
	}
	return expectOne(result, unity.ErrNotFound, "failed to update unity")
}

// DeleteUnity implements unity.Store
func (u *UnityStore) DeleteUnity(ctx context.Context, id int64) error {
	result, err := u.s.q.ExecContext(ctx, `DELETE FROM unities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete unity: %w", err)
	}
	return expectOne(result, unity.ErrNotFound, "failed to delete unity")
}

func expectOne(result sql.Result, notFound error, msg string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
