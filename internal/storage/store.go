// Package storage owns the local SQLite database: it opens the handle, brings
// the physical schema to the current logical schema and closes it again.
//
// # Lifecycle
//
//	st, err := storage.Open(ctx, storage.FileDSN("orcafacil.db"), logger)
//	if err != nil { ... }
//	defer st.Close()
//	if err := st.EnsureSchema(ctx); err != nil { ... } // fatal on error
//	repos := st.DB() // hand to repositories/services
//
// There is no package-level handle: every Store is independent, so tests can
// open as many isolated in-memory stores as they need.
//
// # Schema evolution
//
// EnsureSchema is additive and idempotent. Embedded goose migrations create
// tables and indices when absent; afterwards live columns are compared with
// the logical schema and missing ones are added with safe defaults. Nothing
// is ever dropped or renamed.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/orcafacil/internal/common"
	"github.com/dmitrijs2005/orcafacil/internal/logging"

	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

var ErrClosed = errors.New("store is closed")

// Store is an explicitly owned database handle.
type Store struct {
	db     *sql.DB
	logger logging.Logger

	legacyItemCodes bool
}

// FileDSN builds a DSN for an on-disk database with WAL journaling,
// foreign keys and a busy timeout.
func FileDSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	return "file:" + path + "?" + q.Encode()
}

// MemoryDSN builds a DSN for a named, shared-cache in-memory database. The
// database lives as long as the Store that opened it.
func MemoryDSN(name string) string {
	name = strings.NewReplacer("/", "_", " ", "_").Replace(name)
	q := url.Values{}
	q.Set("mode", "memory")
	q.Set("cache", "shared")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	return "file:" + name + "?" + q.Encode()
}

// Open opens and pings the database. Writes on one device are serialized, so
// the pool is limited to a single connection.
func Open(ctx context.Context, dsn string, logger logging.Logger) (*Store, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db, logger: logger.With("module", "storage")}, nil
}

// DB returns the underlying handle for repositories.
func (s *Store) DB() *sql.DB {
	return s.db
}

// LegacyItemTypeCodes reports whether the items table still carries the CHECK
// constraint of the first app release, which only admits the Portuguese type
// codes. Repositories then encode types with those codes.
func (s *Store) LegacyItemTypeCodes() bool {
	return s.legacyItemCodes
}

// Close closes the database handle. It is safe to call more than once.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// EnsureSchema brings the database to the current schema. Any failure is
// wrapped in common.ErrSchema and must abort startup; calling it again is the
// only recovery and is always safe.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("%w: %w", common.ErrSchema, ErrClosed)
	}

	applied, err := runMigrations(ctx, s.db)
	if err != nil {
		return fmt.Errorf("%w: migrations: %w", common.ErrSchema, err)
	}

	added, err := reconcileColumns(ctx, s.db)
	if err != nil {
		return fmt.Errorf("%w: columns: %w", common.ErrSchema, err)
	}

	if err := ensureIndexes(ctx, s.db); err != nil {
		return fmt.Errorf("%w: indexes: %w", common.ErrSchema, err)
	}

	legacy, err := hasLegacyItemCheck(ctx, s.db)
	if err != nil {
		return fmt.Errorf("%w: inspect items: %w", common.ErrSchema, err)
	}
	s.legacyItemCodes = legacy

	s.logger.Info(ctx, "schema ready", "migrations_applied", applied, "columns_added", added, "legacy_item_codes", legacy)
	return nil
}
