// Package storagetest opens isolated, migrated in-memory stores for tests.
package storagetest

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/orcafacil/internal/logging"
	"github.com/dmitrijs2005/orcafacil/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// LegacySchema is the layout written by the first mobile release: user_id and
// synced instead of owner_id and dirty, and Portuguese item type codes.
const LegacySchema = `
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
`

// New returns a ready Store backed by a private in-memory database that is
// closed when the test ends.
func New(t testing.TB) *storage.Store {
	t.Helper()
	return NewWithSchema(t, "")
}

// NewWithSchema runs ddl against the empty database before EnsureSchema, so
// tests can start from an older layout.
func NewWithSchema(t testing.TB, ddl string) *storage.Store {
	t.Helper()

	ctx := context.Background()
	st, err := storage.Open(ctx, storage.MemoryDSN("t-"+uuid.NewString()), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	if ddl != "" {
		_, err = st.DB().ExecContext(ctx, ddl)
		require.NoError(t, err)
	}

	require.NoError(t, st.EnsureSchema(ctx))
	return st
}
