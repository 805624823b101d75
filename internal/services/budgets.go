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

type BudgetService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	logger logging.Logger
	opts   options
}

func NewBudgetService(db *sql.DB, repos repomanager.RepositoryManager, logger logging.Logger, opts ...Option) *BudgetService {
	return &BudgetService{
		db:     db,
		repos:  repos,
		logger: logger.With("module", "budgets"),
		opts:   buildOptions(opts),
	}
}

// Create validates and stores a new dirty budget and returns its id.
func (s *BudgetService) Create(ctx context.Context, in models.NewBudget) (string, error) {
	status := models.StatusInAnalysis
	if in.Status != "" {
		st, err := models.ParseStatus(string(in.Status))
		if err != nil {
			return "", err
		}
		status = st
	}

	if err := firstErr(
		required("owner_id", in.OwnerID),
		required("title", in.Title),
		required("client_name", in.ClientName),
		nonNegative("discount", in.Discount),
		nonNegative("extra_fee", in.ExtraFee),
	); err != nil {
		return "", err
	}

	now := s.opts.timestamp()
	b := &models.Budget{
		ID:         s.opts.newID(),
		OwnerID:    in.OwnerID,
		Title:      in.Title,
		ClientName: in.ClientName,
		Address:    in.Address,
		Discount:   in.Discount,
		ExtraFee:   in.ExtraFee,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
		Dirty:      true,
	}

	if err := s.repos.Budgets(s.db).Insert(ctx, b); err != nil {
		return "", err
	}
	return b.ID, nil
}

// Update applies p to a live budget. Omitted fields are left as they are.
func (s *BudgetService) Update(ctx context.Context, id string, p models.BudgetPatch) error {
	if err := validateBudgetPatch(&p); err != nil {
		return err
	}
	return s.repos.Budgets(s.db).Update(ctx, id, p, s.opts.timestamp())
}

func validateBudgetPatch(p *models.BudgetPatch) error {
	var errs []error
	if p.Title != nil {
		errs = append(errs, required("title", *p.Title))
	}
	if p.ClientName != nil {
		errs = append(errs, required("client_name", *p.ClientName))
	}
	if p.Discount != nil {
		errs = append(errs, nonNegative("discount", *p.Discount))
	}
	if p.ExtraFee != nil {
		errs = append(errs, nonNegative("extra_fee", *p.ExtraFee))
	}
	if p.Status != nil {
		st, err := models.ParseStatus(string(*p.Status))
		if err != nil {
			return err
		}
		p.Status = &st
	}
	return firstErr(errs...)
}

// Delete tombstones the budget and all of its live items in one transaction.
func (s *BudgetService) Delete(ctx context.Context, id string) error {
	now := s.opts.timestamp()
	var cascaded int64

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Budgets(tx).SoftDelete(ctx, id, now); err != nil {
			return err
		}
		n, err := s.repos.Items(tx).SoftDeleteByBudget(ctx, id, now)
		if err != nil {
			return err
		}
		cascaded = n
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete budget %s: %w", id, err)
	}

	s.logger.Debug(ctx, "budget deleted", "budget_id", id, "items_deleted", cascaded)
	return nil
}

// List returns live budgets, most recently updated first.
func (s *BudgetService) List(ctx context.Context, f models.BudgetFilter) ([]*models.Budget, error) {
	if err := required("owner_id", f.OwnerID); err != nil {
		return nil, err
	}
	if f.Status != nil {
		st, err := models.ParseStatus(string(*f.Status))
		if err != nil {
			return nil, err
		}
		f.Status = &st
	}
	return s.repos.Budgets(s.db).List(ctx, f)
}

// Get returns a live budget; tombstones are reported as common.ErrNotFound.
func (s *BudgetService) Get(ctx context.Context, id string) (*models.Budget, error) {
	b, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Deleted() {
		return nil, common.ErrNotFound
	}
	return b, nil
}

// GetByID returns a budget including tombstones.
func (s *BudgetService) GetByID(ctx context.Context, id string) (*models.Budget, error) {
	return s.repos.Budgets(s.db).GetByID(ctx, id)
}

// ListUnsynced returns the dirty budgets of the owner, tombstones included.
func (s *BudgetService) ListUnsynced(ctx context.Context, ownerID string) ([]*models.Budget, error) {
	if err := required("owner_id", ownerID); err != nil {
		return nil, err
	}
	return s.repos.Budgets(s.db).ListDirty(ctx, ownerID)
}

// ClaimOwnerless assigns ownerID to every budget and item stored without an
// owner, in one transaction. Databases written by the first app release never
// recorded an owner; until claimed, their rows are invisible to List and are
// never pushed. Dirty flags and timestamps are kept, so unsynced legacy work
// goes out with the next sync.
func (s *BudgetService) ClaimOwnerless(ctx context.Context, ownerID string) (budgets, items int64, err error) {
	if err := required("owner_id", ownerID); err != nil {
		return 0, 0, err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		if budgets, err = s.repos.Budgets(tx).ClaimOwnerless(ctx, ownerID); err != nil {
			return err
		}
		items, err = s.repos.Items(tx).ClaimOwnerless(ctx, ownerID)
		return err
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to claim ownerless records: %w", err)
	}

	if budgets+items > 0 {
		s.logger.Info(ctx, "ownerless records claimed", "owner", ownerID, "budgets", budgets, "items", items)
	}
	return budgets, items, nil
}
