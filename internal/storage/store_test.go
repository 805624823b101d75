package storage

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dmitrijs2005/orcafacil/internal/common"
	"github.com/dmitrijs2005/orcafacil/internal/logging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// schema written by the first mobile release
const legacySchema = `
CREATE TABLE budgets (
  id TEXT PRIMARY KEY NOT NULL,
  user_id TEXT,
  title TEXT NOT NULL,
  client_name TEXT NOT NULL,
  address TEXT,
  discount REAL DEFAULT 0,
  extra_fee REAL DEFAULT 0,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  deleted_at TEXT,
  status TEXT DEFAULT 'EM_ANALISE',
  synced INTEGER DEFAULT 0
);
CREATE TABLE items (
  id TEXT PRIMARY KEY NOT NULL,
  budget_id TEXT NOT NULL,
  user_id TEXT,
  type TEXT NOT NULL CHECK (type IN ('MATERIAL','MAO_DE_OBRA','SERVICO')),
  name TEXT NOT NULL,
  qty REAL NOT NULL CHECK (qty >= 0),
  unit_price REAL NOT NULL CHECK (unit_price >= 0),
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  deleted_at TEXT,
  synced INTEGER DEFAULT 0,
  FOREIGN KEY (budget_id) REFERENCES budgets(id) ON DELETE CASCADE
);
CREATE TABLE sync_meta (key TEXT PRIMARY KEY NOT NULL, value TEXT);
`

func openMemory(t *testing.T) *Store {
	t.Helper()
	st, err := Open(context.Background(), MemoryDSN("storage-"+uuid.NewString()), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func columnsOf(t *testing.T, db *sql.DB, table string) map[string]struct{} {
	t.Helper()
	cols, err := liveColumns(context.Background(), db, table)
	require.NoError(t, err)
	return cols
}

func countTables(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('budgets','items','sync_meta')`).Scan(&n))
	return n
}

func TestEnsureSchema_FreshDatabase(t *testing.T) {
	st := openMemory(t)
	ctx := context.Background()

	require.NoError(t, st.EnsureSchema(ctx))

	require.Equal(t, 3, countTables(t, st.DB()))
	for _, tbl := range logicalSchema {
		live := columnsOf(t, st.DB(), tbl.name)
		for _, c := range tbl.columns {
			assert.Contains(t, live, c.name, "%s.%s", tbl.name, c.name)
		}
	}
	assert.False(t, st.LegacyItemTypeCodes())
}

func TestEnsureSchema_TwiceIsIdempotentAndKeepsData(t *testing.T) {
	st := openMemory(t)
	ctx := context.Background()

	require.NoError(t, st.EnsureSchema(ctx))
	_, err := st.DB().Exec(`INSERT INTO budgets (id, owner_id, title, client_name, created_at, updated_at)
		VALUES ('b1', 'u1', 'Kitchen', 'Ana', '2024-01-01T00:00:00.000Z', '2024-01-01T00:00:00.000Z')`)
	require.NoError(t, err)

	before := len(columnsOf(t, st.DB(), "budgets"))
	require.NoError(t, st.EnsureSchema(ctx))

	assert.Equal(t, before, len(columnsOf(t, st.DB(), "budgets")))
	assert.Equal(t, 3, countTables(t, st.DB()))

	var title string
	require.NoError(t, st.DB().QueryRow(`SELECT title FROM budgets WHERE id='b1'`).Scan(&title))
	assert.Equal(t, "Kitchen", title)
}

func TestEnsureSchema_AdoptsLegacyDatabase(t *testing.T) {
	st := openMemory(t)
	ctx := context.Background()
	db := st.DB()

	_, err := db.Exec(legacySchema)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO budgets (id, user_id, title, client_name, created_at, updated_at, synced) VALUES
		('pushed', 'u1', 'A', 'C', '2024-01-01T00:00:00.000Z', '2024-01-01T00:00:00.000Z', 1),
		('local',  'u1', 'B', 'C', '2024-01-01T00:00:00.000Z', '2024-01-01T00:00:00.000Z', 0)`)
	require.NoError(t, err)

	require.NoError(t, st.EnsureSchema(ctx))

	live := columnsOf(t, db, "budgets")
	assert.Contains(t, live, "owner_id")
	assert.Contains(t, live, "dirty")
	assert.Contains(t, live, "synced", "legacy columns are never dropped")

	var owner string
	var dirty int
	require.NoError(t, db.QueryRow(`SELECT owner_id, dirty FROM budgets WHERE id='pushed'`).Scan(&owner, &dirty))
	assert.Equal(t, "u1", owner)
	assert.Equal(t, 0, dirty)

	require.NoError(t, db.QueryRow(`SELECT dirty FROM budgets WHERE id='local'`).Scan(&dirty))
	assert.Equal(t, 1, dirty)

	assert.True(t, st.LegacyItemTypeCodes())

	// a second run must not backfill again
	_, err = db.Exec(`UPDATE budgets SET dirty = 0 WHERE id = 'local'`)
	require.NoError(t, err)
	require.NoError(t, st.EnsureSchema(ctx))
	require.NoError(t, db.QueryRow(`SELECT dirty FROM budgets WHERE id='local'`).Scan(&dirty))
	assert.Equal(t, 0, dirty)
}

func TestEnsureSchema_NormalizesLegacyNulls(t *testing.T) {
	st := openMemory(t)
	ctx := context.Background()
	db := st.DB()

	_, err := db.Exec(legacySchema)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO budgets (id, title, client_name, discount, extra_fee, status, created_at, updated_at)
		VALUES ('b1', 'A', 'C', NULL, NULL, NULL, '2024-01-01T00:00:00.000Z', '2024-01-01T00:00:00.000Z')`)
	require.NoError(t, err)

	require.NoError(t, st.EnsureSchema(ctx))

	var (
		discount, extraFee float64
		status, owner      string
		rev                int64
	)
	require.NoError(t, db.QueryRow(`SELECT discount, extra_fee, status, owner_id, rev FROM budgets WHERE id='b1'`).
		Scan(&discount, &extraFee, &status, &owner, &rev))
	assert.Zero(t, discount)
	assert.Zero(t, extraFee)
	assert.Equal(t, "EM_ANALISE", status)
	assert.Empty(t, owner, "rows without user_id are claimed by the app, not by the schema")
	assert.Zero(t, rev)
}

func TestEnsureSchema_ClosedStoreIsSchemaError(t *testing.T) {
	st := openMemory(t)
	require.NoError(t, st.Close())
	require.NoError(t, st.Close())

	err := st.EnsureSchema(context.Background())
	require.ErrorIs(t, err, common.ErrSchema)
	require.ErrorIs(t, err, ErrClosed)
}

func TestEnsureSchema_BrokenHandleIsSchemaError(t *testing.T) {
	st := openMemory(t)
	require.NoError(t, st.db.Close())

	err := st.EnsureSchema(context.Background())
	require.ErrorIs(t, err, common.ErrSchema)
}

func TestDSNs(t *testing.T) {
	assert.Contains(t, FileDSN("/tmp/x.db"), "file:/tmp/x.db?")
	assert.Contains(t, FileDSN("/tmp/x.db"), "journal_mode")
	assert.Contains(t, MemoryDSN("a/b c"), "file:a_b_c?")
	assert.Contains(t, MemoryDSN("x"), "mode=memory")
}
