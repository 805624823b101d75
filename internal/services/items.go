package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/orcafacil/internal/common"
	"github.com/dmitrijs2005/orcafacil/internal/dbx"
	"github.com/dmitrijs2005/orcafacil/internal/logging"
	"github.com/dmitrijs2005/orcafacil/internal/models"
	"github.com/dmitrijs2005/orcafacil/internal/repositories/repomanager"
)

type ItemService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	logger logging.Logger
	opts   options
}

func NewItemService(db *sql.DB, repos repomanager.RepositoryManager, logger logging.Logger, opts ...Option) *ItemService {
	return &ItemService{
		db:     db,
		repos:  repos,
		logger: logger.With("module", "items"),
		opts:   buildOptions(opts),
	}
}

// Create stores a new dirty item. The budget must exist, be live and belong
// to the same owner; otherwise common.ErrConstraint is returned.
func (s *ItemService) Create(ctx context.Context, in models.NewItem) (string, error) {
	if err := firstErr(
		required("owner_id", in.OwnerID),
		required("budget_id", in.BudgetID),
		required("name", in.Name),
		nonNegative("qty", in.Qty),
		nonNegative("unit_price", in.UnitPrice),
	); err != nil {
		return "", err
	}
	typ, err := models.ParseItemType(string(in.Type))
	if err != nil {
		return "", err
	}

	now := s.opts.timestamp()
	it := &models.Item{
		ID:        s.opts.newID(),
		BudgetID:  in.BudgetID,
		OwnerID:   in.OwnerID,
		Type:      typ,
		Name:      in.Name,
		Qty:       in.Qty,
		UnitPrice: in.UnitPrice,
		CreatedAt: now,
		UpdatedAt: now,
		Dirty:     true,
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		b, err := s.repos.Budgets(tx).GetByID(ctx, in.BudgetID)
		if errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("%w: budget %s does not exist", common.ErrConstraint, in.BudgetID)
		}
		if err != nil {
			return err
		}
		if b.Deleted() {
			return fmt.Errorf("%w: budget %s is deleted", common.ErrConstraint, in.BudgetID)
		}
		if b.OwnerID != in.OwnerID {
			return fmt.Errorf("%w: budget %s belongs to another owner", common.ErrConstraint, in.BudgetID)
		}
		return s.repos.Items(tx).Insert(ctx, it)
	})
	if err != nil {
		return "", err
	}

	s.logger.Debug(ctx, "item created", "item_id", it.ID, "budget_id", it.BudgetID)
	return it.ID, nil
}

// Update applies p to a live item.
func (s *ItemService) Update(ctx context.Context, id string, p models.ItemPatch) error {
	var errs []error
	if p.Name != nil {
		errs = append(errs, required("name", *p.Name))
	}
	if p.Qty != nil {
		errs = append(errs, nonNegative("qty", *p.Qty))
	}
	if p.UnitPrice != nil {
		errs = append(errs, nonNegative("unit_price", *p.UnitPrice))
	}
	if err := firstErr(errs...); err != nil {
		return err
	}
	if p.Type != nil {
		typ, err := models.ParseItemType(string(*p.Type))
		if err != nil {
			return err
		}
		p.Type = &typ
	}
	return s.repos.Items(s.db).Update(ctx, id, p, s.opts.timestamp())
}

func (s *ItemService) Delete(ctx context.Context, id string) error {
	return s.repos.Items(s.db).SoftDelete(ctx, id, s.opts.timestamp())
}

// Get returns a live item; tombstones are reported as common.ErrNotFound.
func (s *ItemService) Get(ctx context.Context, id string) (*models.Item, error) {
	it, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if it.Deleted() {
		return nil, common.ErrNotFound
	}
	return it, nil
}

// GetByID returns an item including tombstones.
func (s *ItemService) GetByID(ctx context.Context, id string) (*models.Item, error) {
	return s.repos.Items(s.db).GetByID(ctx, id)
}

// List returns the live items of the owner, most recently updated first.
func (s *ItemService) List(ctx context.Context, ownerID string) ([]*models.Item, error) {
	if err := required("owner_id", ownerID); err != nil {
		return nil, err
	}
	return s.repos.Items(s.db).List(ctx, ownerID)
}

// ListByBudget returns the live items of a budget in creation order.
func (s *ItemService) ListByBudget(ctx context.Context, budgetID string) ([]*models.Item, error) {
	if err := required("budget_id", budgetID); err != nil {
		return nil, err
	}
	return s.repos.Items(s.db).ListByBudget(ctx, budgetID)
}

// ListUnsynced returns the dirty items of the owner, tombstones included.
func (s *ItemService) ListUnsynced(ctx context.Context, ownerID string) ([]*models.Item, error) {
	if err := required("owner_id", ownerID); err != nil {
		return nil, err
	}
	return s.repos.Items(s.db).ListDirty(ctx, ownerID)
}
