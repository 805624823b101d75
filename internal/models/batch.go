package models

import "fmt"

// Batch is the unit exchanged with the remote: pushed dirty records, or the
// records changed since a watermark on pull. Tombstones are included.
type Batch struct {
	OwnerID string
	Budgets []*Budget
	Items   []*Item

	// Rejected lists pulled records the transport could not decode. They are
	// never applied.
	Rejected []Rejected
}

// Rejected identifies a remote record that was dropped and why.
type Rejected struct {
	Kind string
	ID   string
	Err  error
}

func (r Rejected) Error() string {
	return fmt.Sprintf("%s %s: %v", r.Kind, r.ID, r.Err)
}

func (r Rejected) Unwrap() error { return r.Err }

func (b *Batch) Empty() bool {
	return b == nil || (len(b.Budgets) == 0 && len(b.Items) == 0)
}

func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Budgets) + len(b.Items)
}
