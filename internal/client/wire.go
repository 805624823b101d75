package client

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/orcafacil/internal/models"
	"github.com/dmitrijs2005/orcafacil/internal/timex"
)

// wireBatch is the JSON document of both push requests and pull responses.
type wireBatch struct {
	OwnerID string       `json:"owner_id,omitempty"`
	Budgets []wireBudget `json:"budgets"`
	Items   []wireItem   `json:"items"`
}

type wireBudget struct {
	ID         string  `json:"id"`
	OwnerID    string  `json:"owner_id"`
	Title      string  `json:"title"`
	ClientName string  `json:"client_name"`
	Address    *string `json:"address"`
	Discount   float64 `json:"discount"`
	ExtraFee   float64 `json:"extra_fee"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
	DeletedAt  *string `json:"deleted_at"`
}

type wireItem struct {
	ID        string  `json:"id"`
	BudgetID  string  `json:"budget_id"`
	OwnerID   string  `json:"owner_id"`
	Type      string  `json:"type"`
	Name      string  `json:"name"`
	Qty       float64 `json:"qty"`
	UnitPrice float64 `json:"unit_price"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
	DeletedAt *string `json:"deleted_at"`
}

func encodeBatch(b *models.Batch) wireBatch {
	w := wireBatch{
		OwnerID: b.OwnerID,
		Budgets: make([]wireBudget, 0, len(b.Budgets)),
		Items:   make([]wireItem, 0, len(b.Items)),
	}
	for _, m := range b.Budgets {
		w.Budgets = append(w.Budgets, wireBudget{
			ID:         m.ID,
			OwnerID:    m.OwnerID,
			Title:      m.Title,
			ClientName: m.ClientName,
			Address:    m.Address,
			Discount:   m.Discount,
			ExtraFee:   m.ExtraFee,
			Status:     string(m.Status),
			CreatedAt:  timex.FormatISO(m.CreatedAt),
			UpdatedAt:  timex.FormatISO(m.UpdatedAt),
			DeletedAt:  formatOptional(m.DeletedAt),
		})
	}
	for _, m := range b.Items {
		w.Items = append(w.Items, wireItem{
			ID:        m.ID,
			BudgetID:  m.BudgetID,
			OwnerID:   m.OwnerID,
			Type:      string(m.Type),
			Name:      m.Name,
			Qty:       m.Qty,
			UnitPrice: m.UnitPrice,
			CreatedAt: timex.FormatISO(m.CreatedAt),
			UpdatedAt: timex.FormatISO(m.UpdatedAt),
			DeletedAt: formatOptional(m.DeletedAt),
		})
	}
	return w
}

// decodeBatch converts a pull response. Records missing the owner id take
// ownerID, since the remote scopes the response already.
func decodeBatch(w wireBatch, ownerID string) *models.Batch {
	b := &models.Batch{OwnerID: ownerID}

	for _, r := range w.Budgets {
		created, updated, deleted, err := parseTimes(r.CreatedAt, r.UpdatedAt, r.DeletedAt)
		if err != nil {
			b.Rejected = append(b.Rejected, models.Rejected{Kind: "budget", ID: r.ID, Err: err})
			continue
		}
		owner := r.OwnerID
		if owner == "" {
			owner = ownerID
		}
		b.Budgets = append(b.Budgets, &models.Budget{
			ID:         r.ID,
			OwnerID:    owner,
			Title:      r.Title,
			ClientName: r.ClientName,
			Address:    r.Address,
			Discount:   r.Discount,
			ExtraFee:   r.ExtraFee,
			Status:     models.Status(r.Status),
			CreatedAt:  created,
			UpdatedAt:  updated,
			DeletedAt:  deleted,
		})
	}

	for _, r := range w.Items {
		created, updated, deleted, err := parseTimes(r.CreatedAt, r.UpdatedAt, r.DeletedAt)
		if err != nil {
			b.Rejected = append(b.Rejected, models.Rejected{Kind: "item", ID: r.ID, Err: err})
			continue
		}
		owner := r.OwnerID
		if owner == "" {
			owner = ownerID
		}
		b.Items = append(b.Items, &models.Item{
			ID:        r.ID,
			BudgetID:  r.BudgetID,
			OwnerID:   owner,
			Type:      models.ItemType(r.Type),
			Name:      r.Name,
			Qty:       r.Qty,
			UnitPrice: r.UnitPrice,
			CreatedAt: created,
			UpdatedAt: updated,
			DeletedAt: deleted,
		})
	}

	return b
}

func parseTimes(created, updated string, deleted *string) (c, u time.Time, d *time.Time, err error) {
	if c, err = timex.ParseISO(created); err != nil {
		return c, u, nil, fmt.Errorf("created_at: %w", err)
	}
	if u, err = timex.ParseISO(updated); err != nil {
		return c, u, nil, fmt.Errorf("updated_at: %w", err)
	}
	if deleted != nil && *deleted != "" {
		t, err := timex.ParseISO(*deleted)
		if err != nil {
			return c, u, nil, fmt.Errorf("deleted_at: %w", err)
		}
		d = &t
	}
	return c, u, d, nil
}

func formatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := timex.FormatISO(*t)
	return &s
}
