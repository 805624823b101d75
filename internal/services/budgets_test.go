package services

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/dmitrijs2005/orcafacil/internal/common"
	"github.com/dmitrijs2005/orcafacil/internal/models"
	"github.com/dmitrijs2005/orcafacil/internal/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.budgets.Create(ctx, models.NewBudget{
		OwnerID:    "u1",
		Title:      "Kitchen",
		ClientName: "Ana",
		Address:    models.Ptr("Rua A, 10"),
		Discount:   15,
		ExtraFee:   5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	b, err := f.budgets.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "u1", b.OwnerID)
	assert.Equal(t, models.StatusInAnalysis, b.Status)
	assert.Equal(t, "Rua A, 10", *b.Address)
	assert.True(t, b.Dirty)
	assert.Nil(t, b.DeletedAt)
	assert.True(t, b.CreatedAt.Equal(f.clock.Now()))
	assert.True(t, b.UpdatedAt.Equal(b.CreatedAt))

	unsynced, err := f.budgets.ListUnsynced(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, unsynced, 1)
	assert.Equal(t, id, unsynced[0].ID)
}

func TestBudgetService_CreateNormalizesStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.budgets.Create(ctx, models.NewBudget{
		OwnerID: "u1", Title: "Roof", ClientName: "Bia", Status: "enviado",
	})
	require.NoError(t, err)

	b, err := f.budgets.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, b.Status)
}

func TestBudgetService_CreateValidation(t *testing.T) {
	valid := models.NewBudget{OwnerID: "u1", Title: "Kitchen", ClientName: "Ana"}

	tests := []struct {
		name   string
		mutate func(*models.NewBudget)
		field  string
	}{
		{"missing owner", func(b *models.NewBudget) { b.OwnerID = "" }, "owner_id"},
		{"blank title", func(b *models.NewBudget) { b.Title = "   " }, "title"},
		{"missing client", func(b *models.NewBudget) { b.ClientName = "" }, "client_name"},
		{"negative discount", func(b *models.NewBudget) { b.Discount = -1 }, "discount"},
		{"negative extra fee", func(b *models.NewBudget) { b.ExtraFee = -0.01 }, "extra_fee"},
		{"nan discount", func(b *models.NewBudget) { b.Discount = math.NaN() }, "discount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := valid
			tt.mutate(&in)

			_, err := f.budgets.Create(context.Background(), in)
			require.ErrorIs(t, err, common.ErrValidation)

			var fe *common.FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
		})
	}

	t.Run("unknown status", func(t *testing.T) {
		f := newFixture(t)
		in := valid
		in.Status = "ARQUIVADO"

		_, err := f.budgets.Create(context.Background(), in)
		require.ErrorIs(t, err, models.ErrUnknownStatus)
		require.ErrorIs(t, err, common.ErrValidation)
	})
}

func TestBudgetService_UpdateOmittedVersusCleared(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.budgets.Create(ctx, models.NewBudget{
		OwnerID: "u1", Title: "Kitchen", ClientName: "Ana", Address: models.Ptr("Rua A"),
	})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	require.NoError(t, f.budgets.Update(ctx, id, models.BudgetPatch{Title: models.Ptr("Kitchen v2")}))

	b, err := f.budgets.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Kitchen v2", b.Title)
	require.NotNil(t, b.Address)
	assert.Equal(t, "Rua A", *b.Address)
	assert.True(t, b.UpdatedAt.Equal(f.clock.Now()))

	require.NoError(t, f.budgets.Update(ctx, id, models.BudgetPatch{Address: models.ClearAddress()}))

	b, err = f.budgets.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, b.Address)
	assert.Equal(t, "Kitchen v2", b.Title)
}

func TestBudgetService_UpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createBudget(t, "u1", "Kitchen")

	require.NoError(t, f.budgets.Update(ctx, id, models.BudgetPatch{Status: models.Ptr(models.Status("aprovado"))}))

	b, err := f.budgets.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, b.Status)

	err = f.budgets.Update(ctx, id, models.BudgetPatch{Status: models.Ptr(models.Status("PAGO"))})
	require.ErrorIs(t, err, models.ErrUnknownStatus)
}

func TestBudgetService_UpdateErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createBudget(t, "u1", "Kitchen")

	err := f.budgets.Update(ctx, id, models.BudgetPatch{Discount: models.Ptr(-5.0)})
	require.ErrorIs(t, err, common.ErrValidation)

	err = f.budgets.Update(ctx, id, models.BudgetPatch{Title: models.Ptr("")})
	require.ErrorIs(t, err, common.ErrValidation)

	err = f.budgets.Update(ctx, "missing", models.BudgetPatch{Title: models.Ptr("x")})
	require.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, f.budgets.Delete(ctx, id))
	err = f.budgets.Update(ctx, id, models.BudgetPatch{Title: models.Ptr("x")})
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestBudgetService_DeleteCascadesToItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bid := f.createBudget(t, "u1", "Kitchen")
	i1 := f.createItem(t, "u1", bid, "Tiles", 10, 25)
	i2 := f.createItem(t, "u1", bid, "Grout", 2, 8)

	f.clock.Advance(time.Hour)
	require.NoError(t, f.budgets.Delete(ctx, bid))

	_, err := f.budgets.Get(ctx, bid)
	require.ErrorIs(t, err, common.ErrNotFound)

	b, err := f.budgets.GetByID(ctx, bid)
	require.NoError(t, err)
	require.NotNil(t, b.DeletedAt)
	assert.True(t, b.DeletedAt.Equal(f.clock.Now()))
	assert.True(t, b.Dirty)

	for _, id := range []string{i1, i2} {
		it, err := f.items.GetByID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, it.DeletedAt)
		assert.True(t, it.DeletedAt.Equal(*b.DeletedAt))
		assert.True(t, it.Dirty)
	}

	live, err := f.items.ListByBudget(ctx, bid)
	require.NoError(t, err)
	assert.Empty(t, live)

	unsynced, err := f.items.ListUnsynced(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, unsynced, 2)

	err = f.budgets.Delete(ctx, bid)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestBudgetService_DeleteIsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bid := f.createBudget(t, "u1", "Kitchen")
	f.createItem(t, "u1", bid, "Tiles", 10, 25)

	_, err := f.st.DB().ExecContext(ctx, `CREATE TRIGGER block_item_delete
		BEFORE UPDATE OF deleted_at ON items
		BEGIN SELECT RAISE(ABORT, 'blocked'); END`)
	require.NoError(t, err)

	err = f.budgets.Delete(ctx, bid)
	require.Error(t, err)
	require.NotErrorIs(t, err, common.ErrNotFound)

	b, err := f.budgets.Get(ctx, bid)
	require.NoError(t, err)
	assert.Nil(t, b.DeletedAt)
}

func TestBudgetService_ListOrderedByLastUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 25
	for i := 0; i < n; i++ {
		f.clock.Advance(time.Duration(rand.IntN(3)) * time.Millisecond)
		f.createBudget(t, "u1", "Budget")
	}
	f.createBudget(t, "u2", "Other owner")

	list, err := f.budgets.List(ctx, models.BudgetFilter{OwnerID: "u1"})
	require.NoError(t, err)
	require.Len(t, list, n)

	for i := 1; i < len(list); i++ {
		prev, cur := list[i-1], list[i]
		if prev.UpdatedAt.Equal(cur.UpdatedAt) {
			assert.Greater(t, prev.ID, cur.ID)
			continue
		}
		assert.True(t, prev.UpdatedAt.After(cur.UpdatedAt))
	}
}

func TestBudgetService_ListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.createBudget(t, "u1", "A")
	f.createBudget(t, "u1", "B")
	gone := f.createBudget(t, "u1", "C")
	require.NoError(t, f.budgets.Update(ctx, a, models.BudgetPatch{Status: models.Ptr(models.StatusApproved)}))
	require.NoError(t, f.budgets.Delete(ctx, gone))

	all, err := f.budgets.List(ctx, models.BudgetFilter{OwnerID: "u1"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	approved, err := f.budgets.List(ctx, models.BudgetFilter{OwnerID: "u1", Status: models.Ptr(models.Status("aprovado"))})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, a, approved[0].ID)

	_, err = f.budgets.List(ctx, models.BudgetFilter{})
	require.ErrorIs(t, err, common.ErrValidation)

	_, err = f.budgets.ListUnsynced(ctx, "")
	require.ErrorIs(t, err, common.ErrValidation)
}

// rows as the first release wrote them: no user_id at all
const legacyRows = `
INSERT INTO budgets (id, title, client_name, created_at, updated_at, synced) VALUES
  ('local',  'Kitchen', 'Ana', '2024-01-01T00:00:00.000Z', '2024-01-02T00:00:00.000Z', 0),
  ('pushed', 'Roof',    'Ana', '2024-01-01T00:00:00.000Z', '2024-01-01T00:00:00.000Z', 1);
INSERT INTO budgets (id, user_id, title, client_name, created_at, updated_at, synced) VALUES
  ('foreign', 'u2', 'Garage', 'Bia', '2024-01-01T00:00:00.000Z', '2024-01-01T00:00:00.000Z', 0);
INSERT INTO items (id, budget_id, type, name, qty, unit_price, created_at, updated_at, synced) VALUES
  ('li1', 'local', 'SERVICO', 'Painting', 2, 100, '2024-01-01T00:00:00.000Z', '2024-01-01T00:00:00.000Z', 0);
`

func TestBudgetService_ClaimOwnerlessOnLegacyDatabase(t *testing.T) {
	f := newFixtureOn(t, storagetest.NewWithSchema(t, storagetest.LegacySchema+legacyRows))
	ctx := context.Background()

	unsynced, err := f.budgets.ListUnsynced(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, unsynced, "rows without an owner are invisible until claimed")

	nb, ni, err := f.budgets.ClaimOwnerless(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), nb)
	assert.Equal(t, int64(1), ni)

	all, err := f.budgets.List(ctx, models.BudgetFilter{OwnerID: "u1"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "local", all[0].ID)

	unsynced, err = f.budgets.ListUnsynced(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, unsynced, 1)
	assert.Equal(t, "local", unsynced[0].ID)
	assert.Equal(t, "2024-01-02T00:00:00Z", unsynced[0].UpdatedAt.Format(time.RFC3339))

	items, err := f.items.ListUnsynced(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.ItemTypeService, items[0].Type)

	foreign, err := f.budgets.ListUnsynced(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, foreign, 1)
	assert.Equal(t, "foreign", foreign[0].ID)

	nb, ni, err = f.budgets.ClaimOwnerless(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, nb)
	assert.Zero(t, ni)

	_, _, err = f.budgets.ClaimOwnerless(ctx, "")
	require.ErrorIs(t, err, common.ErrValidation)
}
