package models

import "time"

// Item is one line of a budget.
type Item struct {
	ID        string     `json:"id"`
	BudgetID  string     `json:"budget_id"`
	OwnerID   string     `json:"owner_id"`
	Type      ItemType   `json:"type"`
	Name      string     `json:"name"`
	Qty       float64    `json:"qty"`
	UnitPrice float64    `json:"unit_price"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	Dirty     bool       `json:"dirty"`
	Revision  int64      `json:"-"`
}

func (i *Item) Deleted() bool { return i.DeletedAt != nil }

// Total is qty × unit price as stored (float); reports use decimal arithmetic.
func (i *Item) Total() float64 { return i.Qty * i.UnitPrice }

type NewItem struct {
	BudgetID  string
	OwnerID   string
	Type      ItemType
	Name      string
	Qty       float64
	UnitPrice float64
}

// ItemPatch lists the item fields to change; nil means unchanged. The budget
// an item belongs to is fixed at creation.
type ItemPatch struct {
	Type      *ItemType
	Name      *string
	Qty       *float64
	UnitPrice *float64
}
