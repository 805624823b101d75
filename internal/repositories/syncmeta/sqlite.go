package syncmeta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/orcafacil/internal/dbx"
	"github.com/dmitrijs2005/orcafacil/internal/timex"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) (*string, error) {
	var value sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT value FROM sync_meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync_meta[%s]: %w", key, err)
	}
	if !value.Valid {
		return nil, nil
	}
	return &value.String, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, key string, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set sync_meta[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sync_meta WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete sync_meta[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sync_meta`)
	if err != nil {
		return fmt.Errorf("failed to clear sync_meta: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM sync_meta`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync_meta: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var key string
		var value sql.NullString
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan sync_meta row: %w", err)
		}
		result[key] = value.String
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sync_meta rows: %w", err)
	}

	return result, nil
}

func (r *SQLiteRepository) GetTime(ctx context.Context, key string, def time.Time) (time.Time, error) {
	v, err := r.Get(ctx, key)
	if err != nil {
		return time.Time{}, err
	}
	if v == nil || *v == "" {
		return def, nil
	}
	t, err := timex.ParseISO(*v)
	if err != nil {
		return time.Time{}, fmt.Errorf("sync_meta[%s] is not a timestamp: %w", key, err)
	}
	return t, nil
}

func (r *SQLiteRepository) SetTime(ctx context.Context, key string, t time.Time) error {
	return r.Set(ctx, key, timex.FormatISO(t))
}
