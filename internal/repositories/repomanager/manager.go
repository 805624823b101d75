// Package repomanager vends repositories bound to a handle, so services can
// build the same set over *sql.DB or over the *sql.Tx of a transaction.
package repomanager

import (
	"github.com/dmitrijs2005/orcafacil/internal/dbx"
	"github.com/dmitrijs2005/orcafacil/internal/repositories/budgets"
	"github.com/dmitrijs2005/orcafacil/internal/repositories/items"
	"github.com/dmitrijs2005/orcafacil/internal/repositories/syncmeta"
	"github.com/dmitrijs2005/orcafacil/internal/storage"
)

type RepositoryManager interface {
	Budgets(db dbx.DBTX) budgets.Repository
	Items(db dbx.DBTX) items.Repository
	SyncMeta(db dbx.DBTX) syncmeta.Repository
}

// SQLiteRepositoryManager vends the SQLite implementations.
type SQLiteRepositoryManager struct {
	legacyItemCodes bool
}

// NewSQLiteRepositoryManager returns a manager matching the schema of st. It
// must be called after st.EnsureSchema.
func NewSQLiteRepositoryManager(st *storage.Store) *SQLiteRepositoryManager {
	return &SQLiteRepositoryManager{legacyItemCodes: st.LegacyItemTypeCodes()}
}

func (m *SQLiteRepositoryManager) Budgets(db dbx.DBTX) budgets.Repository {
	return budgets.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Items(db dbx.DBTX) items.Repository {
	return items.NewSQLiteRepository(db, items.WithLegacyTypeCodes(m.legacyItemCodes))
}

func (m *SQLiteRepositoryManager) SyncMeta(db dbx.DBTX) syncmeta.Repository {
	return syncmeta.NewSQLiteRepository(db)
}
