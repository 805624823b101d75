package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/orcafacil/internal/client"
	"github.com/dmitrijs2005/orcafacil/internal/common"
	"github.com/dmitrijs2005/orcafacil/internal/dbx"
	"github.com/dmitrijs2005/orcafacil/internal/logging"
	"github.com/dmitrijs2005/orcafacil/internal/models"
	"github.com/dmitrijs2005/orcafacil/internal/repositories/budgets"
	"github.com/dmitrijs2005/orcafacil/internal/repositories/repomanager"
	"github.com/dmitrijs2005/orcafacil/internal/repositories/syncmeta"
	"github.com/dmitrijs2005/orcafacil/internal/timex"
	"golang.org/x/sync/singleflight"
)

// DefaultRemoteTimeout bounds each remote call when none is configured.
const DefaultRemoteTimeout = 15 * time.Second

// Phase is the sync state of an owner.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhasePushing Phase = "pushing"
	PhasePulling Phase = "pulling"
)

// SyncResult reports what one sync run did. On failure FailedPhase names the
// phase that failed and the counters cover the phases that completed.
type SyncResult struct {
	Owner string `json:"owner"`

	PushedBudgets int `json:"pushed_budgets"`
	PushedItems   int `json:"pushed_items"`
	// StillDirty counts pushed records edited while the push was in flight.
	StillDirty int `json:"still_dirty"`

	PulledBudgets int `json:"pulled_budgets"`
	PulledItems   int `json:"pulled_items"`
	// Skipped counts pulled records that were not applied.
	Skipped int `json:"skipped"`
	// Tombstoned counts live local items deleted because the pull delivered
	// their budget as deleted.
	Tombstoned int `json:"tombstoned"`

	// Watermark is the new lastSyncAt; zero when the pull did not complete.
	Watermark   time.Time `json:"watermark"`
	FailedPhase Phase     `json:"failed_phase,omitempty"`
	// Shared is set when the result came from a run started by another caller.
	Shared bool `json:"shared"`
}

// SyncService reconciles local records with the remote: push dirty records,
// then pull everything changed since the watermark, remote wins.
type SyncService struct {
	db      *sql.DB
	repos   repomanager.RepositoryManager
	client  client.Client
	logger  logging.Logger
	opts    options
	timeout time.Duration

	group singleflight.Group

	mu     sync.Mutex
	phases map[string]Phase
}

func NewSyncService(db *sql.DB, repos repomanager.RepositoryManager, c client.Client, logger logging.Logger, timeout time.Duration, opts ...Option) *SyncService {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &SyncService{
		db:      db,
		repos:   repos,
		client:  c,
		logger:  logger.With("module", "sync"),
		opts:    buildOptions(opts),
		timeout: timeout,
		phases:  make(map[string]Phase),
	}
}

// State returns the current phase for the owner.
func (s *SyncService) State(ownerID string) Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.phases[ownerID]; ok {
		return p
	}
	return PhaseIdle
}

func (s *SyncService) setPhase(ownerID string, p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p == PhaseIdle {
		delete(s.phases, ownerID)
		return
	}
	s.phases[ownerID] = p
}

// Sync runs one push+pull for the owner. A call made while a run for the same
// owner is in flight joins it and receives its result; the joined run uses the
// context of the caller that started it.
//
// Remote failures wrap common.ErrSyncTransport. After a failed push nothing
// is pulled; after a failed pull the push stays acknowledged and the watermark
// is left as it was.
func (s *SyncService) Sync(ctx context.Context, ownerID string) (*SyncResult, error) {
	if err := required("owner_id", ownerID); err != nil {
		return nil, err
	}

	v, err, shared := s.group.Do(ownerID, func() (any, error) {
		return s.run(ctx, ownerID)
	})

	res := *v.(*SyncResult)
	res.Shared = shared
	return &res, err
}

func (s *SyncService) run(ctx context.Context, ownerID string) (*SyncResult, error) {
	res := &SyncResult{Owner: ownerID}
	log := s.logger.With("owner", ownerID)
	defer s.setPhase(ownerID, PhaseIdle)

	s.setPhase(ownerID, PhasePushing)
	if err := s.push(ctx, ownerID, res); err != nil {
		res.FailedPhase = PhasePushing
		log.Warn(ctx, "sync push failed", "error", err)
		return res, err
	}

	s.setPhase(ownerID, PhasePulling)
	if err := s.pull(ctx, ownerID, res); err != nil {
		res.FailedPhase = PhasePulling
		log.Warn(ctx, "sync pull failed", "error", err)
		return res, err
	}

	log.Info(ctx, "sync finished",
		"pushed_budgets", res.PushedBudgets, "pushed_items", res.PushedItems,
		"pulled_budgets", res.PulledBudgets, "pulled_items", res.PulledItems,
		"skipped", res.Skipped, "watermark", timex.FormatISO(res.Watermark))
	return res, nil
}

func (s *SyncService) remote(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *SyncService) push(ctx context.Context, ownerID string, res *SyncResult) error {
	dirtyBudgets, err := s.repos.Budgets(s.db).ListDirty(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to list dirty budgets: %w", err)
	}
	dirtyItems, err := s.repos.Items(s.db).ListDirty(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to list dirty items: %w", err)
	}

	batch := &models.Batch{OwnerID: ownerID, Budgets: dirtyBudgets, Items: dirtyItems}
	if batch.Empty() {
		s.logger.Debug(ctx, "nothing to push", "owner", ownerID)
		return nil
	}

	callCtx, cancel := s.remote(ctx)
	err = s.client.Push(callCtx, batch)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: push: %w", common.ErrSyncTransport, err)
	}

	stale := 0
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		stale = 0
		br := s.repos.Budgets(tx)
		for _, b := range dirtyBudgets {
			ok, err := br.ClearDirty(ctx, b.ID, b.Revision)
			if err != nil {
				return err
			}
			if !ok {
				stale++
			}
		}
		ir := s.repos.Items(tx)
		for _, it := range dirtyItems {
			ok, err := ir.ClearDirty(ctx, it.ID, it.Revision)
			if err != nil {
				return err
			}
			if !ok {
				stale++
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear dirty flags: %w", err)
	}

	res.PushedBudgets = len(dirtyBudgets)
	res.PushedItems = len(dirtyItems)
	res.StillDirty = stale
	if stale > 0 {
		s.logger.Info(ctx, "records changed during push stay dirty", "owner", ownerID, "count", stale)
	}
	return nil
}

func (s *SyncService) pull(ctx context.Context, ownerID string, res *SyncResult) error {
	since, err := s.repos.SyncMeta(s.db).GetTime(ctx, syncmeta.KeyLastSyncAt, timex.Epoch)
	if err != nil {
		return fmt.Errorf("failed to read watermark: %w", err)
	}

	requestedAt := s.opts.timestamp()

	callCtx, cancel := s.remote(ctx)
	batch, err := s.client.Pull(callCtx, ownerID, since)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: pull: %w", common.ErrSyncTransport, err)
	}
	if batch == nil {
		batch = &models.Batch{}
	}

	var pulledBudgets, pulledItems, skipped, tombstoned int
	for _, r := range batch.Rejected {
		s.logger.Warn(ctx, "remote record skipped", "kind", r.Kind, "id", r.ID, "error", r.Err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		pulledBudgets, pulledItems, skipped, tombstoned = 0, 0, len(batch.Rejected), 0
		br := s.repos.Budgets(tx)
		ir := s.repos.Items(tx)

		// budgets stored as deleted after this pull whose items must follow
		var deleted []string
		seen := make(map[string]struct{})
		markDeleted := func(id string) {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				deleted = append(deleted, id)
			}
		}

		for _, b := range batch.Budgets {
			if err := s.acceptBudget(b, ownerID); err != nil {
				s.logger.Warn(ctx, "remote budget skipped", "id", b.ID, "error", err)
				skipped++
				continue
			}
			if err := br.Upsert(ctx, b); err != nil {
				return err
			}
			pulledBudgets++
			if b.Deleted() {
				markDeleted(b.ID)
			}
		}

		for _, it := range batch.Items {
			parent, err := s.acceptItem(ctx, br, it, ownerID)
			if err != nil {
				if !errors.Is(err, common.ErrValidation) && !errors.Is(err, common.ErrConstraint) {
					return err
				}
				s.logger.Warn(ctx, "remote item skipped", "id", it.ID, "budget_id", it.BudgetID, "error", err)
				skipped++
				continue
			}
			if err := ir.Upsert(ctx, it); err != nil {
				return err
			}
			pulledItems++
			if parent.Deleted() && !it.Deleted() {
				markDeleted(parent.ID)
			}
		}

		now := s.opts.timestamp()
		for _, id := range deleted {
			n, err := ir.SoftDeleteByBudget(ctx, id, now)
			if err != nil {
				return err
			}
			tombstoned += int(n)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to apply pulled records: %w", err)
	}
	if tombstoned > 0 {
		s.logger.Info(ctx, "items of deleted budgets tombstoned", "owner", ownerID, "count", tombstoned)
	}

	res.PulledBudgets = pulledBudgets
	res.PulledItems = pulledItems
	res.Skipped = skipped
	res.Tombstoned = tombstoned

	if err := s.repos.SyncMeta(s.db).SetTime(ctx, syncmeta.KeyLastSyncAt, requestedAt); err != nil {
		return fmt.Errorf("failed to store watermark: %w", err)
	}
	res.Watermark = requestedAt
	return nil
}

// acceptBudget normalizes a pulled budget in place, or explains why it cannot
// be stored.
func (s *SyncService) acceptBudget(b *models.Budget, ownerID string) error {
	st, err := models.ParseStatus(string(b.Status))
	if err != nil {
		return err
	}
	b.Status = st
	b.Dirty = false

	if b.OwnerID != ownerID {
		return fmt.Errorf("%w: owned by %q", common.ErrConstraint, b.OwnerID)
	}
	if b.UpdatedAt.Before(b.CreatedAt) {
		b.UpdatedAt = b.CreatedAt
	}
	return firstErr(
		required("id", b.ID),
		nonNegative("discount", b.Discount),
		nonNegative("extra_fee", b.ExtraFee),
	)
}

// acceptItem is acceptBudget for items; the budget must already be stored,
// either from an earlier sync or from this batch. It returns that budget.
func (s *SyncService) acceptItem(ctx context.Context, br budgets.Repository, it *models.Item, ownerID string) (*models.Budget, error) {
	typ, err := models.ParseItemType(string(it.Type))
	if err != nil {
		return nil, err
	}
	it.Type = typ
	it.Dirty = false

	if it.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: owned by %q", common.ErrConstraint, it.OwnerID)
	}
	if it.UpdatedAt.Before(it.CreatedAt) {
		it.UpdatedAt = it.CreatedAt
	}
	if err := firstErr(
		required("id", it.ID),
		nonNegative("qty", it.Qty),
		nonNegative("unit_price", it.UnitPrice),
	); err != nil {
		return nil, err
	}

	b, err := br.GetByID(ctx, it.BudgetID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown budget %q", common.ErrConstraint, it.BudgetID)
	}
	if err != nil {
		return nil, err
	}
	if b.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: budget %q owned by %q", common.ErrConstraint, it.BudgetID, b.OwnerID)
	}
	return b, nil
}
