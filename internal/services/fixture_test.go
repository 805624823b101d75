package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/orcafacil/internal/logging"
	"github.com/dmitrijs2005/orcafacil/internal/models"
	"github.com/dmitrijs2005/orcafacil/internal/repositories/repomanager"
	"github.com/dmitrijs2005/orcafacil/internal/storage"
	"github.com/dmitrijs2005/orcafacil/internal/storage/storagetest"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	st      *storage.Store
	repos   repomanager.RepositoryManager
	clock   *fakeClock
	budgets *BudgetService
	items   *ItemService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, storagetest.New(t))
}

func newFixtureOn(t *testing.T, st *storage.Store) *fixture {
	t.Helper()
	repos := repomanager.NewSQLiteRepositoryManager(st)
	clock := newClock()
	return &fixture{
		st:      st,
		repos:   repos,
		clock:   clock,
		budgets: NewBudgetService(st.DB(), repos, logging.Discard(), WithClock(clock.Now)),
		items:   NewItemService(st.DB(), repos, logging.Discard(), WithClock(clock.Now)),
	}
}

func (f *fixture) createBudget(t *testing.T, owner, title string) string {
	t.Helper()
	id, err := f.budgets.Create(context.Background(), models.NewBudget{
		OwnerID:    owner,
		Title:      title,
		ClientName: "Ana",
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) createItem(t *testing.T, owner, budgetID, name string, qty, price float64) string {
	t.Helper()
	id, err := f.items.Create(context.Background(), models.NewItem{
		BudgetID:  budgetID,
		OwnerID:   owner,
		Type:      models.ItemTypeMaterial,
		Name:      name,
		Qty:       qty,
		UnitPrice: price,
	})
	require.NoError(t, err)
	return id
}
