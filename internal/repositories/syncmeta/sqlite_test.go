package syncmeta

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/orcafacil/internal/storage/storagetest"
	"github.com/dmitrijs2005/orcafacil/internal/timex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	return NewSQLiteRepository(storagetest.New(t).DB())
}

func TestSetAndGet(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "k1", "v1"))

	v, err := r.Get(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "v1", *v)
}

func TestGet_Absent_ReturnsNilNil(t *testing.T) {
	r := newRepo(t)

	v, err := r.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestSet_Overwrites(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "k", "old"))
	require.NoError(t, r.Set(ctx, "k", "new"))

	v, err := r.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "new", *v)
}

func TestListDeleteClear(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "a", "1"))
	require.NoError(t, r.Set(ctx, "b", "2"))

	m, err := r.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, m)

	require.NoError(t, r.Delete(ctx, "a"))
	require.NoError(t, r.Delete(ctx, "a"))
	v, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, r.Clear(ctx))
	m, err = r.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestGetTime_DefaultsAndRoundTrips(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	got, err := r.GetTime(ctx, KeyLastSyncAt, timex.Epoch)
	require.NoError(t, err)
	assert.True(t, got.Equal(timex.Epoch))

	at := time.Date(2024, 3, 5, 10, 11, 12, 345_000_000, time.UTC)
	require.NoError(t, r.SetTime(ctx, KeyLastSyncAt, at))

	raw, err := r.Get(ctx, KeyLastSyncAt)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05T10:11:12.345Z", *raw)

	got, err = r.GetTime(ctx, KeyLastSyncAt, timex.Epoch)
	require.NoError(t, err)
	assert.True(t, got.Equal(at))
}

func TestGetTime_Garbage(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, KeyLastSyncAt, "yesterday"))
	_, err := r.GetTime(ctx, KeyLastSyncAt, timex.Epoch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync_meta[lastSyncAt]")
}

func TestErrorsWrapped_WhenClosed(t *testing.T) {
	st := storagetest.New(t)
	r := NewSQLiteRepository(st.DB())
	ctx := context.Background()
	require.NoError(t, st.DB().Close())

	_, err := r.Get(ctx, "k")
	require.ErrorContains(t, err, "failed to get sync_meta[k]")
	require.ErrorContains(t, r.Set(ctx, "k", "v"), "failed to set sync_meta[k]")
	require.ErrorContains(t, r.Delete(ctx, "k"), "failed to delete sync_meta[k]")
	require.ErrorContains(t, r.Clear(ctx), "failed to clear sync_meta")
	_, err = r.List(ctx)
	require.ErrorContains(t, err, "failed to list sync_meta")
}
