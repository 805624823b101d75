// Package models defines the records persisted locally and exchanged with the
// remote authority: budgets, their items and the sync batch envelope.
package models

import (
	"database/sql"
	"time"
)

// Budget is a quote prepared for a client.
type Budget struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Title      string    `json:"title"`
	ClientName string    `json:"client_name"`
	Address    *string   `json:"address,omitempty"`
	Discount   float64   `json:"discount"`
	ExtraFee   float64   `json:"extra_fee"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	// DeletedAt marks a tombstone kept until the deletion has been pushed.
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	// Dirty means local changes not yet confirmed by the remote.
	Dirty bool `json:"dirty"`
	// Revision counts local writes; push compares it to spot edits made
	// while the request was in flight. It never leaves the device.
	Revision int64 `json:"-"`
}

func (b *Budget) Deleted() bool { return b.DeletedAt != nil }

// NewBudget carries the caller-supplied fields of a budget to create.
type NewBudget struct {
	OwnerID    string
	Title      string
	ClientName string
	Address    *string
	Discount   float64
	ExtraFee   float64
	// Status may be left empty for EM_ANALISE.
	Status Status
}

// BudgetPatch lists the fields to change. Nil pointers are left untouched;
// Address is tri-state: nil keeps it, {Valid: false} clears it.
type BudgetPatch struct {
	Title      *string
	ClientName *string
	Address    *sql.NullString
	Discount   *float64
	ExtraFee   *float64
	Status     *Status
}

// BudgetFilter narrows List. OwnerID is required.
type BudgetFilter struct {
	OwnerID string
	Status  *Status
	// Limit caps the result when > 0.
	Limit int
}

// SetAddress and ClearAddress build the tri-state address patch value.
func SetAddress(s string) *sql.NullString { return &sql.NullString{String: s, Valid: true} }

func ClearAddress() *sql.NullString { return &sql.NullString{} }

// Ptr returns a pointer to v, for filling patches.
func Ptr[T any](v T) *T { return &v }
