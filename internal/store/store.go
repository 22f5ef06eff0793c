// Package store implements the Applied Migrations Store (spec.md §4.5):
// a reserved SQLite table persisting which migrations have been
// applied, with temp-file materialization so their serialized plans can
// be reloaded during rollback. Grounded on the teacher's
// internal/storage/sqlite/migrations.go RunMigrations transaction
// discipline and internal/storage/storage.go's Transaction interface.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ddlsync/ddlsync/internal/plan"
)

// DefaultTableName is used when the caller's configuration does not
// override it.
const DefaultTableName = "migrations"

// Row is one applied-migration record (spec.md §3's Applied Migration
// Row).
type Row struct {
	ID          string
	Name        string
	AppliedAt   string
	ContentHash string
	Content     string
}

// Store wraps one reserved table within a *sql.DB.
type Store struct {
	db    *sql.DB
	table string
}

// New returns a Store bound to table (DefaultTableName if empty).
func New(db *sql.DB, table string) *Store {
	if table == "" {
		table = DefaultTableName
	}
	return &Store{db: db, table: table}
}

// TableName returns the reserved table name this store manages.
func (s *Store) TableName() string { return s.table }

// EnsureTable creates the applied-migrations table if it does not
// already exist, per the fixed DDL in spec.md §3/§6.
func (s *Store) EnsureTable(execer execer) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL DEFAULT (strftime('%%Y-%%m-%%d %%H:%%M:%%f','now')),
		content_hash TEXT NOT NULL,
		content TEXT NOT NULL
	)`, quoteIdent(s.table))
	if _, err := execer.Exec(ddl); err != nil {
		return fmt.Errorf("store: creating %s: %w", s.table, err)
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx, letting EnsureTable,
// Insert and Delete run either standalone (status's read path) or
// inside the migrate transaction.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
}

// Load returns every applied row, ordered by id ascending.
func (s *Store) Load(ex execer) ([]Row, error) {
	rows, err := ex.Query(fmt.Sprintf(`SELECT id, name, applied_at, content_hash, content FROM %s ORDER BY id ASC`, quoteIdent(s.table)))
	if err != nil {
		return nil, fmt.Errorf("store: loading %s: %w", s.table, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.Name, &r.AppliedAt, &r.ContentHash, &r.Content); err != nil {
			return nil, fmt.Errorf("store: scanning row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Insert records a newly-applied migration. migrate calls it inside its
// transaction (spec.md §4.7 step 6c); ambiguous-only make calls it
// directly on the live database.
func (s *Store) Insert(ex execer, r Row) error {
	_, err := ex.Exec(
		fmt.Sprintf(`INSERT INTO %s (id, name, content_hash, content) VALUES (?, ?, ?, ?)`, quoteIdent(s.table)),
		r.ID, r.Name, r.ContentHash, r.Content,
	)
	if err != nil {
		return fmt.Errorf("store: inserting %s: %w", r.ID, err)
	}
	return nil
}

// Delete removes an undone migration's row. Must run inside the
// migrate transaction per spec.md §4.7 step 6b.
func (s *Store) Delete(ex execer, id string) error {
	_, err := ex.Exec(fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, quoteIdent(s.table)), id)
	if err != nil {
		return fmt.Errorf("store: deleting %s: %w", id, err)
	}
	return nil
}

// Materialize writes every row's content to a fresh
// <migrationsDir>/.ddlsync-tmp-* directory as a loadable migration file, so the dynamic-load step (spec.md
// §4.5/§4.7) can decode plan.Plan values for rows whose original files
// may have been deleted or altered on disk since they were applied.
// The caller must remove the returned directory unconditionally
// (spec.md §4.5: "removed at the end of every public operation,
// regardless of success").
func Materialize(migrationsDir string, rows []Row) (dir string, entries map[string]string, err error) {
	dir, err = os.MkdirTemp(migrationsDir, ".ddlsync-tmp-*")
	if err != nil {
		return "", nil, fmt.Errorf("store: creating temp dir: %w", err)
	}
	entries = make(map[string]string, len(rows))
	for _, r := range rows {
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.toml", r.ID, r.Name))
		if err := os.WriteFile(path, []byte(r.Content), 0o600); err != nil {
			return dir, nil, fmt.Errorf("store: materializing %s: %w", r.ID, err)
		}
		entries[r.ID] = path
	}
	return dir, entries, nil
}

// LoadPlan decodes the plan.Plan for a materialized row.
func LoadPlan(path string) (plan.Plan, error) {
	raw, err := os.ReadFile(path) // #nosec G304 - path returned by Materialize, which we just wrote
	if err != nil {
		return plan.Plan{}, fmt.Errorf("store: reading materialized file %s: %w", path, err)
	}
	return plan.Decode(raw)
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}
