// Package reports computes read-only rollups over the local store: the
// dashboard of an owner and the totals of a single budget. Deleted budgets
// and items never contribute.
package reports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/orcafacil/internal/common"
	"github.com/dmitrijs2005/orcafacil/internal/logging"
	"github.com/dmitrijs2005/orcafacil/internal/models"
	"github.com/dmitrijs2005/orcafacil/internal/repositories/budgets"
	"github.com/dmitrijs2005/orcafacil/internal/timex"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// DefaultRecentLimit is how many budgets the dashboard lists when not configured.
const DefaultRecentLimit = 5

type Engine struct {
	db          *sqlx.DB
	budgets     budgets.Repository
	logger      logging.Logger
	now         func() time.Time
	loc         *time.Location
	recentLimit int
}

type Option func(*Engine)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the zone in which "this month" starts. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.loc = loc }
}

func WithLogger(l logging.Logger) Option {
	return func(e *Engine) { e.logger = l.With("module", "reports") }
}

func WithRecentLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.recentLimit = n
		}
	}
}

func NewEngine(db *sql.DB, opts ...Option) *Engine {
	e := &Engine{
		// sqlite3 selects '?' placeholders in sqlx
		db:          sqlx.NewDb(db, "sqlite3"),
		budgets:     budgets.NewSQLiteRepository(db),
		logger:      logging.Discard(),
		now:         time.Now,
		loc:         time.Local,
		recentLimit: DefaultRecentLimit,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// StatusCounts holds the number of live budgets per status.
type StatusCounts struct {
	InAnalysis int `json:"em_analise"`
	Sent       int `json:"enviado"`
	Approved   int `json:"aprovado"`
	Rejected   int `json:"recusado"`
	Total      int `json:"total"`
}

type Dashboard struct {
	Counts StatusCounts `json:"counts"`
	// ApprovalRate is approved/total as a whole percentage, rounded half up.
	ApprovalRate     int64            `json:"approval_rate"`
	RevenueTotal     decimal.Decimal  `json:"revenue_total"`
	RevenueThisWeek  decimal.Decimal  `json:"revenue_this_week"`
	RevenueThisMonth decimal.Decimal  `json:"revenue_this_month"`
	AverageTicket    decimal.Decimal  `json:"average_ticket"`
	RecentBudgets    []*models.Budget `json:"recent_budgets"`
}

type statusRow struct {
	Status sql.NullString `db:"status"`
	N      int            `db:"n"`
}

type revenueRow struct {
	UpdatedAt string  `db:"updated_at"`
	Qty       float64 `db:"qty"`
	UnitPrice float64 `db:"unit_price"`
}

// Dashboard returns the rollup for one owner.
func (e *Engine) Dashboard(ctx context.Context, ownerID string) (*Dashboard, error) {
	if ownerID == "" {
		return nil, common.Invalid("owner_id", "is required")
	}

	var d Dashboard

	var rows []statusRow
	err := e.db.SelectContext(ctx, &rows, `
		SELECT status, COUNT(*) AS n FROM budgets
		WHERE owner_id = ? AND deleted_at IS NULL
		GROUP BY status`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count budgets: %w", err)
	}
	var unknown int
	d.Counts, unknown = countStatuses(rows)
	if unknown > 0 {
		e.logger.Warn(ctx, "budgets with unknown status left out of counts", "owner", ownerID, "count", unknown)
	}

	if d.Counts.Total > 0 {
		d.ApprovalRate = decimal.NewFromInt(int64(d.Counts.Approved) * 100).
			Div(decimal.NewFromInt(int64(d.Counts.Total))).
			Round(0).IntPart()
	}

	var revenue []revenueRow
	err = e.db.SelectContext(ctx, &revenue, `
		SELECT b.updated_at AS updated_at, i.qty AS qty, i.unit_price AS unit_price
		FROM items i JOIN budgets b ON b.id = i.budget_id
		WHERE b.owner_id = ? AND b.status = ?
		  AND b.deleted_at IS NULL AND i.deleted_at IS NULL`, ownerID, string(models.StatusApproved))
	if err != nil {
		return nil, fmt.Errorf("failed to select revenue: %w", err)
	}

	now := e.now()
	weekStart := now.Add(-7 * 24 * time.Hour)
	local := now.In(e.loc)
	monthStart := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, e.loc)

	for _, r := range revenue {
		line := lineTotal(r.Qty, r.UnitPrice)
		d.RevenueTotal = d.RevenueTotal.Add(line)

		updated, err := timex.ParseISO(r.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to read revenue row: %w", err)
		}
		if !updated.Before(weekStart) {
			d.RevenueThisWeek = d.RevenueThisWeek.Add(line)
		}
		if !updated.Before(monthStart) {
			d.RevenueThisMonth = d.RevenueThisMonth.Add(line)
		}
	}

	if d.Counts.Approved > 0 {
		d.AverageTicket = d.RevenueTotal.Div(decimal.NewFromInt(int64(d.Counts.Approved)))
	}

	d.RecentBudgets, err = e.budgets.List(ctx, models.BudgetFilter{OwnerID: ownerID, Limit: e.recentLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to list recent budgets: %w", err)
	}
	if d.RecentBudgets == nil {
		d.RecentBudgets = []*models.Budget{}
	}

	return &d, nil
}

// countStatuses folds per-status row counts into the four buckets. Statuses
// outside them are returned separately and not added to Total, so Total
// always equals the sum of the buckets.
func countStatuses(rows []statusRow) (StatusCounts, int) {
	var (
		c       StatusCounts
		unknown int
	)
	for _, r := range rows {
		st, err := models.ParseStatus(r.Status.String)
		if err != nil {
			unknown += r.N
			continue
		}
		switch st {
		case models.StatusInAnalysis:
			c.InAnalysis += r.N
		case models.StatusSent:
			c.Sent += r.N
		case models.StatusApproved:
			c.Approved += r.N
		case models.StatusRejected:
			c.Rejected += r.N
		}
		c.Total += r.N
	}
	return c, unknown
}

// BudgetTotals summarizes the live items of one live budget.
type BudgetTotals struct {
	BudgetID  string                              `json:"budget_id"`
	ByType    map[models.ItemType]decimal.Decimal `json:"by_type"`
	Subtotal  decimal.Decimal                     `json:"subtotal"`
	Discount  decimal.Decimal                     `json:"discount"`
	ExtraFee  decimal.Decimal                     `json:"extra_fee"`
	Total     decimal.Decimal                     `json:"total"`
	ItemCount int                                 `json:"item_count"`
}

type itemRow struct {
	Type      string  `db:"type"`
	Qty       float64 `db:"qty"`
	UnitPrice float64 `db:"unit_price"`
}

// BudgetTotals returns per-type subtotals and total = subtotal - discount +
// extra fee. Returns common.ErrNotFound for unknown or deleted budgets.
func (e *Engine) BudgetTotals(ctx context.Context, budgetID string) (*BudgetTotals, error) {
	var head struct {
		Discount float64 `db:"discount"`
		ExtraFee float64 `db:"extra_fee"`
	}
	err := e.db.GetContext(ctx, &head, `
		SELECT COALESCE(discount, 0) AS discount, COALESCE(extra_fee, 0) AS extra_fee FROM budgets
		WHERE id = ? AND deleted_at IS NULL`, budgetID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get budget %s: %w", budgetID, err)
	}

	var rows []itemRow
	err = e.db.SelectContext(ctx, &rows, `
		SELECT type, qty, unit_price FROM items
		WHERE budget_id = ? AND deleted_at IS NULL`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("failed to select items of %s: %w", budgetID, err)
	}

	t := &BudgetTotals{
		BudgetID: budgetID,
		ByType:   make(map[models.ItemType]decimal.Decimal, len(models.ItemTypes)),
		Discount: decimal.NewFromFloat(head.Discount),
		ExtraFee: decimal.NewFromFloat(head.ExtraFee),
	}
	for _, typ := range models.ItemTypes {
		t.ByType[typ] = decimal.Zero
	}
	for _, r := range rows {
		typ, err := models.ParseItemType(r.Type)
		if err != nil {
			return nil, fmt.Errorf("budget %s: %w", budgetID, err)
		}
		line := lineTotal(r.Qty, r.UnitPrice)
		t.ByType[typ] = t.ByType[typ].Add(line)
		t.Subtotal = t.Subtotal.Add(line)
		t.ItemCount++
	}
	t.Total = t.Subtotal.Sub(t.Discount).Add(t.ExtraFee)
	return t, nil
}

func lineTotal(qty, unitPrice float64) decimal.Decimal {
	return decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(unitPrice))
}
