package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/orcafacil/internal/dbx"
	"github.com/dmitrijs2005/orcafacil/internal/storage/migrations"
	"github.com/pressly/goose/v3"
)

// column is one column of the logical schema as it would be added to an
// existing table. legacy/backfill optionally copy data from a column written
// by an earlier release, and run only when the column is being added.
type column struct {
	name     string
	ddl      string
	legacy   string
	backfill string
}

type table struct {
	name    string
	columns []column
	// fixups normalize values earlier releases could leave NULL in columns
	// the current code scans into non-pointer fields. They run on every
	// EnsureSchema and must be idempotent.
	fixups []string
}

// logicalSchema lists every column except the primary key, in table order.
var logicalSchema = []table{
	{
		name: "budgets",
		columns: []column{
			{name: "owner_id", ddl: "TEXT NOT NULL DEFAULT ''", legacy: "user_id", backfill: "UPDATE budgets SET owner_id = COALESCE(user_id, '')"},
			{name: "title", ddl: "TEXT NOT NULL DEFAULT ''"},
			{name: "client_name", ddl: "TEXT NOT NULL DEFAULT ''"},
			{name: "address", ddl: "TEXT"},
			{name: "discount", ddl: "REAL NOT NULL DEFAULT 0 CHECK (discount >= 0)"},
			{name: "extra_fee", ddl: "REAL NOT NULL DEFAULT 0 CHECK (extra_fee >= 0)"},
			{name: "created_at", ddl: "TEXT NOT NULL DEFAULT '1970-01-01T00:00:00.000Z'"},
			{name: "updated_at", ddl: "TEXT NOT NULL DEFAULT '1970-01-01T00:00:00.000Z'"},
			{name: "deleted_at", ddl: "TEXT"},
			{name: "status", ddl: "TEXT NOT NULL DEFAULT 'EM_ANALISE'"},
			{name: "dirty", ddl: "INTEGER NOT NULL DEFAULT 1", legacy: "synced", backfill: "UPDATE budgets SET dirty = CASE WHEN synced = 1 THEN 0 ELSE 1 END"},
			{name: "rev", ddl: "INTEGER NOT NULL DEFAULT 0"},
		},
		fixups: []string{
			`UPDATE budgets SET discount = 0 WHERE discount IS NULL`,
			`UPDATE budgets SET extra_fee = 0 WHERE extra_fee IS NULL`,
			`UPDATE budgets SET status = 'EM_ANALISE' WHERE status IS NULL`,
		},
	},
	{
		name: "items",
		columns: []column{
			{name: "budget_id", ddl: "TEXT REFERENCES budgets(id) ON DELETE CASCADE"},
			{name: "owner_id", ddl: "TEXT NOT NULL DEFAULT ''", legacy: "user_id", backfill: "UPDATE items SET owner_id = COALESCE(user_id, '')"},
			{name: "type", ddl: "TEXT NOT NULL DEFAULT 'MATERIAL'"},
			{name: "name", ddl: "TEXT NOT NULL DEFAULT ''"},
			{name: "qty", ddl: "REAL NOT NULL DEFAULT 0 CHECK (qty >= 0)"},
			{name: "unit_price", ddl: "REAL NOT NULL DEFAULT 0 CHECK (unit_price >= 0)"},
			{name: "created_at", ddl: "TEXT NOT NULL DEFAULT '1970-01-01T00:00:00.000Z'"},
			{name: "updated_at", ddl: "TEXT NOT NULL DEFAULT '1970-01-01T00:00:00.000Z'"},
			{name: "deleted_at", ddl: "TEXT"},
			{name: "dirty", ddl: "INTEGER NOT NULL DEFAULT 1", legacy: "synced", backfill: "UPDATE items SET dirty = CASE WHEN synced = 1 THEN 0 ELSE 1 END"},
			{name: "rev", ddl: "INTEGER NOT NULL DEFAULT 0"},
		},
	},
	{
		name: "sync_meta",
		columns: []column{
			{name: "value", ddl: "TEXT"},
		},
	},
}

// indexes over columns that may only exist after reconcileColumns.
var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_budgets_owner_dirty ON budgets(owner_id, dirty)`,
	`CREATE INDEX IF NOT EXISTS idx_items_owner_dirty ON items(owner_id, dirty)`,
}

func runMigrations(ctx context.Context, db *sql.DB) (int, error) {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.FS)
	if err != nil {
		return 0, fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return 0, err
	}
	return len(results), nil
}

// liveColumns returns the lower-cased column names of a table.
func liveColumns(ctx context.Context, db dbx.DBTX, table string) (map[string]struct{}, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[strings.ToLower(name)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s does not exist", table)
	}
	return cols, nil
}

// reconcileColumns adds every logical column missing from the live tables and
// applies the table fixups, in one transaction, and returns how many columns
// were added.
func reconcileColumns(ctx context.Context, db *sql.DB) (int, error) {
	added := 0
	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, t := range logicalSchema {
			live, err := liveColumns(ctx, tx, t.name)
			if err != nil {
				return err
			}
			for _, c := range t.columns {
				if _, ok := live[c.name]; ok {
					continue
				}
				stmt := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, t.name, c.name, c.ddl)
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("failed to add %s.%s: %w", t.name, c.name, err)
				}
				added++

				if c.legacy == "" {
					continue
				}
				if _, ok := live[c.legacy]; !ok {
					continue
				}
				if _, err := tx.ExecContext(ctx, c.backfill); err != nil {
					return fmt.Errorf("failed to backfill %s.%s from %s: %w", t.name, c.name, c.legacy, err)
				}
			}
			for _, stmt := range t.fixups {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("failed to normalize %s: %w", t.name, err)
				}
			}
		}
		return nil
	})
	return added, err
}

func ensureIndexes(ctx context.Context, db *sql.DB) error {
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func hasLegacyItemCheck(ctx context.Context, db *sql.DB) (bool, error) {
	var ddl sql.NullString
	err := db.QueryRowContext(ctx, `SELECT sql FROM sqlite_master WHERE type = 'table' AND name = 'items'`).Scan(&ddl)
	if err != nil {
		return false, err
	}
	return strings.Contains(ddl.String, "'MAO_DE_OBRA'"), nil
}
