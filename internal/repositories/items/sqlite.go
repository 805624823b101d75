package items

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

const selectColumns = `id, budget_id, owner_id, type, name, qty, unit_price,
	created_at, updated_at, deleted_at, dirty, rev`

// legacy codes required by the CHECK constraint of first-release databases
var legacyTypeCodes = map[models.ItemType]string{
	models.ItemTypeLabor:   "MAO_DE_OBRA",
	models.ItemTypeService: "SERVICO",
}

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db          dbx.DBTX
	legacyCodes bool
}

type Option func(*SQLiteRepository)

// WithLegacyTypeCodes stores item types with the first-release codes
// (see storage.Store.LegacyItemTypeCodes). Reading accepts both forms anyway.
func WithLegacyTypeCodes(enabled bool) Option {
	return func(r *SQLiteRepository) { r.legacyCodes = enabled }
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX, opts ...Option) *SQLiteRepository {
	r := &SQLiteRepository{db: db}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *SQLiteRepository) encodeType(t models.ItemType) string {
	if r.legacyCodes {
		if code, ok := legacyTypeCodes[t]; ok {
			return code
		}
	}
	return string(t)
}

func (r *SQLiteRepository) Insert(ctx context.Context, it *models.Item) error {
	query := `INSERT INTO items (id, budget_id, owner_id, type, name, qty, unit_price,
			created_at, updated_at, deleted_at, dirty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, r.insertArgs(it)...)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, id string, p models.ItemPatch, now time.Time) error {
	var (
		sets []string
		args []any
	)
	if p.Type != nil {
		sets, args = append(sets, "type = ?"), append(args, r.encodeType(*p.Type))
	}
	if p.Name != nil {
		sets, args = append(sets, "name = ?"), append(args, *p.Name)
	}
	if p.Qty != nil {
		sets, args = append(sets, "qty = ?"), append(args, *p.Qty)
	}
	if p.UnitPrice != nil {
		sets, args = append(sets, "unit_price = ?"), append(args, *p.UnitPrice)
	}
	sets = append(sets, "updated_at = MAX(?, created_at)", "dirty = 1", "rev = rev + 1")
	args = append(args, timex.FormatISO(now), id)

	query := `UPDATE items SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	return dbx.ExpectAffected(res)
}

func (r *SQLiteRepository) SoftDelete(ctx context.Context, id string, now time.Time) error {
	ts := timex.FormatISO(now)
	res, err := r.db.ExecContext(ctx, `UPDATE items SET deleted_at = ?, updated_at = MAX(?, created_at), dirty = 1, rev = rev + 1
		WHERE id = ? AND deleted_at IS NULL`, ts, ts, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return dbx.ExpectAffected(res)
}

func (r *SQLiteRepository) SoftDeleteByBudget(ctx context.Context, budgetID string, now time.Time) (int64, error) {
	ts := timex.FormatISO(now)
	res, err := r.db.ExecContext(ctx, `UPDATE items SET deleted_at = ?, updated_at = MAX(?, created_at), dirty = 1, rev = rev + 1
		WHERE budget_id = ? AND deleted_at IS NULL`, ts, ts, budgetID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete items of budget %s: %w", budgetID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Item, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM items WHERE id = ?`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item %s: %w", id, err)
	}
	return it, nil
}

func (r *SQLiteRepository) ListByBudget(ctx context.Context, budgetID string) ([]*models.Item, error) {
	return r.query(ctx, `SELECT `+selectColumns+` FROM items
		WHERE budget_id = ? AND deleted_at IS NULL ORDER BY created_at, id`, budgetID)
}

func (r *SQLiteRepository) List(ctx context.Context, ownerID string) ([]*models.Item, error) {
	return r.query(ctx, `SELECT `+selectColumns+` FROM items
		WHERE owner_id = ? AND deleted_at IS NULL ORDER BY updated_at DESC, id DESC`, ownerID)
}

func (r *SQLiteRepository) ListDirty(ctx context.Context, ownerID string) ([]*models.Item, error) {
	return r.query(ctx, `SELECT `+selectColumns+` FROM items WHERE owner_id = ? AND dirty = 1 ORDER BY updated_at`, ownerID)
}

func (r *SQLiteRepository) ClearDirty(ctx context.Context, id string, revision int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE items SET dirty = 0 WHERE id = ? AND rev = ? AND dirty = 1`,
		id, revision)
	if err != nil {
		return false, fmt.Errorf("failed to clear dirty flag on item %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, it *models.Item) error {
	query := `INSERT INTO items (id, budget_id, owner_id, type, name, qty, unit_price,
			created_at, updated_at, deleted_at, dirty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(id) DO UPDATE SET
			budget_id = excluded.budget_id,
			owner_id = excluded.owner_id,
			type = excluded.type,
			name = excluded.name,
			qty = excluded.qty,
			unit_price = excluded.unit_price,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at,
			dirty = 0`

	args := r.insertArgs(it)
	_, err := r.db.ExecContext(ctx, query, args[:len(args)-1]...)
	if err != nil {
		return fmt.Errorf("failed to upsert item %s: %w", it.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) ClaimOwnerless(ctx context.Context, ownerID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE items SET owner_id = ? WHERE owner_id IS NULL OR owner_id = ''`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to claim ownerless items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]*models.Item, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select items: %w", err)
	}
	defer rows.Close()

	var result []*models.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// insertArgs follows the column order of Insert; dirty is last.
func (r *SQLiteRepository) insertArgs(it *models.Item) []any {
	var deletedAt any
	if it.DeletedAt != nil {
		deletedAt = timex.FormatISO(*it.DeletedAt)
	}
	return []any{
		it.ID, it.BudgetID, it.OwnerID, r.encodeType(it.Type), it.Name, it.Qty, it.UnitPrice,
		timex.FormatISO(it.CreatedAt), timex.FormatISO(it.UpdatedAt), deletedAt,
		dbx.BoolInt(it.Dirty),
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (*models.Item, error) {
	var (
		it                   models.Item
		typ                  string
		budgetID, deletedAt  sql.NullString
		createdAt, updatedAt string
	)
	if err := s.Scan(&it.ID, &budgetID, &it.OwnerID, &typ, &it.Name, &it.Qty, &it.UnitPrice,
		&createdAt, &updatedAt, &deletedAt, &it.Dirty, &it.Revision); err != nil {
		return nil, err
	}
	it.BudgetID = budgetID.String

	var err error
	if it.Type, err = models.ParseItemType(typ); err != nil {
		return nil, fmt.Errorf("item %s: %w", it.ID, err)
	}
	if it.CreatedAt, err = timex.ParseISO(createdAt); err != nil {
		return nil, fmt.Errorf("item %s created_at: %w", it.ID, err)
	}
	if it.UpdatedAt, err = timex.ParseISO(updatedAt); err != nil {
		return nil, fmt.Errorf("item %s updated_at: %w", it.ID, err)
	}
	if deletedAt.Valid {
		t, err := timex.ParseISO(deletedAt.String)
		if err != nil {
			return nil, fmt.Errorf("item %s deleted_at: %w", it.ID, err)
		}
		it.DeletedAt = &t
	}
	return &it, nil
}
