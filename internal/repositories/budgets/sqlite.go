package budgets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/orcafacil/internal/common"
	"github.com/dmitrijs2005/orcafacil/internal/dbx"
	"github.com/dmitrijs2005/orcafacil/internal/models"
	"github.com/dmitrijs2005/orcafacil/internal/timex"
)

// discount and extra_fee may be NULL in rows written by the first release.
const selectColumns = `id, owner_id, title, client_name, address,
	COALESCE(discount, 0), COALESCE(extra_fee, 0),
	status, created_at, updated_at, deleted_at, dirty, rev`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, b *models.Budget) error {
	query := `INSERT INTO budgets (id, owner_id, title, client_name, address, discount, extra_fee,
			status, created_at, updated_at, deleted_at, dirty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, insertArgs(b)...)
	if err != nil {
		return fmt.Errorf("failed to insert budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, id string, p models.BudgetPatch, now time.Time) error {
	var (
		sets []string
		args []any
	)
	if p.Title != nil {
		sets, args = append(sets, "title = ?"), append(args, *p.Title)
	}
	if p.ClientName != nil {
		sets, args = append(sets, "client_name = ?"), append(args, *p.ClientName)
	}
	if p.Address != nil {
		sets, args = append(sets, "address = ?"), append(args, *p.Address)
	}
	if p.Discount != nil {
		sets, args = append(sets, "discount = ?"), append(args, *p.Discount)
	}
	if p.ExtraFee != nil {
		sets, args = append(sets, "extra_fee = ?"), append(args, *p.ExtraFee)
	}
	if p.Status != nil {
		sets, args = append(sets, "status = ?"), append(args, string(*p.Status))
	}
	sets = append(sets, "updated_at = MAX(?, created_at)", "dirty = 1", "rev = rev + 1")
	args = append(args, timex.FormatISO(now), id)

	query := `UPDATE budgets SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update budget: %w", err)
	}
	return dbx.ExpectAffected(res)
}

func (r *SQLiteRepository) SoftDelete(ctx context.Context, id string, now time.Time) error {
	ts := timex.FormatISO(now)
	query := `UPDATE budgets SET deleted_at = ?, updated_at = MAX(?, created_at), dirty = 1, rev = rev + 1
		WHERE id = ? AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, ts, ts, id)
	if err != nil {
		return fmt.Errorf("failed to delete budget: %w", err)
	}
	return dbx.ExpectAffected(res)
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Budget, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM budgets WHERE id = ?`, id)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get budget %s: %w", id, err)
	}
	return b, nil
}

func (r *SQLiteRepository) List(ctx context.Context, f models.BudgetFilter) ([]*models.Budget, error) {
	query := `SELECT ` + selectColumns + ` FROM budgets WHERE owner_id = ? AND deleted_at IS NULL`
	args := []any{f.OwnerID}
	if f.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*f.Status))
	}
	query += ` ORDER BY updated_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	return r.query(ctx, query, args...)
}

func (r *SQLiteRepository) ListDirty(ctx context.Context, ownerID string) ([]*models.Budget, error) {
	query := `SELECT ` + selectColumns + ` FROM budgets WHERE owner_id = ? AND dirty = 1 ORDER BY updated_at`
	return r.query(ctx, query, ownerID)
}

func (r *SQLiteRepository) ClearDirty(ctx context.Context, id string, revision int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE budgets SET dirty = 0 WHERE id = ? AND rev = ? AND dirty = 1`,
		id, revision)
	if err != nil {
		return false, fmt.Errorf("failed to clear dirty flag on budget %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, b *models.Budget) error {
	query := `INSERT INTO budgets (id, owner_id, title, client_name, address, discount, extra_fee,
			status, created_at, updated_at, deleted_at, dirty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			title = excluded.title,
			client_name = excluded.client_name,
			address = excluded.address,
			discount = excluded.discount,
			extra_fee = excluded.extra_fee,
			status = excluded.status,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at,
			dirty = 0`

	args := insertArgs(b)
	_, err := r.db.ExecContext(ctx, query, args[:len(args)-1]...)
	if err != nil {
		return fmt.Errorf("failed to upsert budget %s: %w", b.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) ClaimOwnerless(ctx context.Context, ownerID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE budgets SET owner_id = ? WHERE owner_id IS NULL OR owner_id = ''`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to claim ownerless budgets: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]*models.Budget, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select budgets: %w", err)
	}
	defer rows.Close()

	var result []*models.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// insertArgs follows the column order of Insert; dirty is last.
func insertArgs(b *models.Budget) []any {
	var deletedAt any
	if b.DeletedAt != nil {
		deletedAt = timex.FormatISO(*b.DeletedAt)
	}
	status := b.Status
	if status == "" {
		status = models.StatusInAnalysis
	}
	return []any{
		b.ID, b.OwnerID, b.Title, b.ClientName, b.Address, b.Discount, b.ExtraFee,
		string(status), timex.FormatISO(b.CreatedAt), timex.FormatISO(b.UpdatedAt), deletedAt,
		dbx.BoolInt(b.Dirty),
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBudget(s scanner) (*models.Budget, error) {
	var (
		b                    models.Budget
		address, deletedAt   sql.NullString
		status               sql.NullString
		createdAt, updatedAt string
	)
	if err := s.Scan(&b.ID, &b.OwnerID, &b.Title, &b.ClientName, &address, &b.Discount, &b.ExtraFee,
		&status, &createdAt, &updatedAt, &deletedAt, &b.Dirty, &b.Revision); err != nil {
		return nil, err
	}

	var err error
	if b.Status, err = models.ParseStatus(status.String); err != nil {
		// written by another release; kept verbatim so the row stays readable
		b.Status = models.Status(status.String)
	}
	if b.CreatedAt, err = timex.ParseISO(createdAt); err != nil {
		return nil, fmt.Errorf("budget %s created_at: %w", b.ID, err)
	}
	if b.UpdatedAt, err = timex.ParseISO(updatedAt); err != nil {
		return nil, fmt.Errorf("budget %s updated_at: %w", b.ID, err)
	}
	if address.Valid {
		b.Address = &address.String
	}
	if deletedAt.Valid {
		t, err := timex.ParseISO(deletedAt.String)
		if err != nil {
			return nil, fmt.Errorf("budget %s deleted_at: %w", b.ID, err)
		}
		b.DeletedAt = &t
	}
	return &b, nil
}
