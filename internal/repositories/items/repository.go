// Package items persists budget line items in the local SQLite database.
// It follows the same tombstone and dirty-flag rules as package budgets.
package items

import (
	"context"
	"time"

	"github.com/dmitrijs2005/orcafacil/internal/models"
)

// Repository describes storage operations on items.
type Repository interface {
	Insert(ctx context.Context, it *models.Item) error

	// Update applies the non-nil patch fields to a live item, refreshes
	// updated_at and marks it dirty. Returns common.ErrNotFound otherwise.
	Update(ctx context.Context, id string, patch models.ItemPatch, now time.Time) error

	SoftDelete(ctx context.Context, id string, now time.Time) error

	// SoftDeleteByBudget tombstones every live item of a budget and returns
	// how many were affected. Callers run it in the same transaction as the
	// budget deletion.
	SoftDeleteByBudget(ctx context.Context, budgetID string, now time.Time) (int64, error)

	// GetByID returns an item including tombstones, or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Item, error)

	// ListByBudget returns the live items of a budget in creation order.
	ListByBudget(ctx context.Context, budgetID string) ([]*models.Item, error)

	// List returns the live items of an owner, most recently updated first.
	List(ctx context.Context, ownerID string) ([]*models.Item, error)

	ListDirty(ctx context.Context, ownerID string) ([]*models.Item, error)
	ClearDirty(ctx context.Context, id string, revision int64) (bool, error)
	Upsert(ctx context.Context, it *models.Item) error

	// ClaimOwnerless assigns ownerID to items stored without an owner.
	ClaimOwnerless(ctx context.Context, ownerID string) (int64, error)
}
