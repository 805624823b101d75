// Package budgets persists budgets in the local SQLite database.
//
// Rows are never hard-deleted: Delete stamps deleted_at (a tombstone) and the
// row stays until the deletion has been pushed. Every mutation made through
// Insert/Update/SoftDelete marks the row dirty; only ClearDirty and Upsert
// (both driven by sync) store a clean row. Each local write also bumps the
// row's revision, which ClearDirty compares instead of updated_at.
//
// The SQLiteRepository works over dbx.DBTX, so the same code runs against a
// *sql.DB or inside a transaction started with dbx.WithTx.
package budgets

import (
	"context"
	"time"

	"github.com/dmitrijs2005/orcafacil/internal/models"
)

// Repository describes storage operations on budgets.
type Repository interface {
	// Insert stores a new budget exactly as given (timestamps and dirty included).
	Insert(ctx context.Context, b *models.Budget) error

	// Update applies the non-nil patch fields to a live budget, refreshes
	// updated_at to now (never earlier than created_at) and marks it dirty.
	// Returns common.ErrNotFound if no live budget has that id.
	Update(ctx context.Context, id string, patch models.BudgetPatch, now time.Time) error

	// SoftDelete tombstones a live budget. Returns common.ErrNotFound otherwise.
	SoftDelete(ctx context.Context, id string, now time.Time) error

	// GetByID returns a budget including tombstones, or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Budget, error)

	// List returns live budgets, most recently updated first.
	List(ctx context.Context, filter models.BudgetFilter) ([]*models.Budget, error)

	// ListDirty returns every dirty budget of the owner, tombstones included.
	ListDirty(ctx context.Context, ownerID string) ([]*models.Budget, error)

	// ClearDirty marks the budget clean if its revision still equals the
	// pushed one. updated_at is left untouched. Reports whether the row was
	// cleared.
	ClearDirty(ctx context.Context, id string, revision int64) (bool, error)

	// Upsert stores a remote version over any local one and marks it clean.
	Upsert(ctx context.Context, b *models.Budget) error

	// ClaimOwnerless assigns ownerID to budgets stored without an owner and
	// returns how many were claimed. Dirty flags and timestamps are kept.
	ClaimOwnerless(ctx context.Context, ownerID string) (int64, error)
}
