package differ

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/ddlsync/ddlsync/internal/policy"
	"github.com/ddlsync/ddlsync/internal/sqliteconn"
)

func openScratch(t *testing.T, schema string) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scratch.db")
	db, err := sqliteconn.OpenScratch(path)
	if err != nil {
		t.Fatalf("OpenScratch: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if schema != "" {
		if _, err := db.Exec(schema); err != nil {
			t.Fatalf("applying schema: %v", err)
		}
	}
	return db
}

func autoProceed() policy.Prompter {
	return policy.FuncPrompter(func(s policy.Subject) (policy.Decision, error) {
		return policy.Proceed, nil
	})
}

func TestDiffCreatesNewTable(t *testing.T) {
	oldDB := openScratch(t, "")
	newDB := openScratch(t, `CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`)

	res, err := Diff(oldDB, newDB, Options{Policies: policy.Defaults(), Prompter: autoProceed()})
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(res.Up) != 1 {
		t.Fatalf("expected one up statement, got %v", res.Up)
	}
	if len(res.Down) != 1 {
		t.Fatalf("expected one down statement, got %v", res.Down)
	}
}

func TestDiffRemovesTableRequiresDestructivePolicy(t *testing.T) {
	oldDB := openScratch(t, `CREATE TABLE users (id INTEGER PRIMARY KEY)`)
	newDB := openScratch(t, "")

	res, err := Diff(oldDB, newDB, Options{Policies: policy.Defaults(), Prompter: autoProceed()})
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(res.Up) != 1 || res.Up[0] != `DROP TABLE "users"` {
		t.Fatalf("expected DROP TABLE users, got %v", res.Up)
	}
}

func TestDiffDetectsTableRename(t *testing.T) {
	oldDB := openScratch(t, `CREATE TABLE accounts (id INTEGER PRIMARY KEY, email TEXT)`)
	newDB := openScratch(t, `CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT)`)

	res, err := Diff(oldDB, newDB, Options{Policies: policy.Defaults(), Prompter: autoProceed()})
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(res.TableRenames) != 1 || res.TableRenames[0].Old != "accounts" || res.TableRenames[0].New != "users" {
		t.Fatalf("expected a detected rename accounts->users, got %+v", res.TableRenames)
	}
}

func TestDiffAddColumnWithDefaultIsAlterable(t *testing.T) {
	oldDB := openScratch(t, `CREATE TABLE users (id INTEGER PRIMARY KEY)`)
	newDB := openScratch(t, `CREATE TABLE users (id INTEGER PRIMARY KEY, active INTEGER NOT NULL DEFAULT 1)`)

	res, err := Diff(oldDB, newDB, Options{Policies: policy.Defaults(), Prompter: autoProceed()})
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if res.HasAmbiguous {
		t.Fatalf("expected no manual reasons, got %v", res.ManualReasons)
	}
	if len(res.Up) != 1 {
		t.Fatalf("expected a single ALTER TABLE ADD COLUMN, got %v", res.Up)
	}
}

func TestDiffAddNotNullColumnWithoutDefaultForcesManual(t *testing.T) {
	oldDB := openScratch(t, `CREATE TABLE users (id INTEGER PRIMARY KEY)`)
	newDB := openScratch(t, `CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL)`)

	res, err := Diff(oldDB, newDB, Options{Policies: policy.Defaults(), Prompter: autoProceed()})
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if !res.HasAmbiguous {
		t.Fatal("expected a NOT NULL column without a default to force manual review")
	}
}

func TestDiffTypeChangeTriggersRebuild(t *testing.T) {
	oldDB := openScratch(t, `CREATE TABLE users (id INTEGER PRIMARY KEY, age TEXT)`)
	newDB := openScratch(t, `CREATE TABLE users (id INTEGER PRIMARY KEY, age INTEGER)`)

	res, err := Diff(oldDB, newDB, Options{Policies: policy.Defaults(), Prompter: autoProceed()})
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	found := false
	for _, stmt := range res.Up {
		if len(stmt) >= len("CREATE TABLE __ddlsync_rebuild") && stmt[:len("CREATE TABLE __ddlsync_rebuild")] == "CREATE TABLE __ddlsync_rebuild" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a rebuild via temp table, got %v", res.Up)
	}
}

func TestDiffCaseOnlyRenameUsesTempNameBounce(t *testing.T) {
	oldDB := openScratch(t, `CREATE TABLE users (id INTEGER PRIMARY KEY)`)
	newDB := openScratch(t, `CREATE TABLE Users (id INTEGER PRIMARY KEY)`)

	res, err := Diff(oldDB, newDB, Options{Policies: policy.Defaults(), Prompter: autoProceed()})
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(res.Up) != 2 {
		t.Fatalf("expected a two-step rename bounce, got %v", res.Up)
	}
}

func TestDiffReservedMigrationsTableName(t *testing.T) {
	oldDB := openScratch(t, "")
	newDB := openScratch(t, `CREATE TABLE migrations (id TEXT PRIMARY KEY)`)

	_, err := Diff(oldDB, newDB, Options{Policies: policy.Defaults(), Prompter: autoProceed(), MigrationsTable: "migrations"})
	if err == nil {
		t.Fatal("expected ReservedNameError")
	}
	var reservedErr *ReservedNameError
	if !isReservedNameError(err, &reservedErr) {
		t.Fatalf("expected *ReservedNameError, got %T: %v", err, err)
	}
}

func isReservedNameError(err error, target **ReservedNameError) bool {
	if e, ok := err.(*ReservedNameError); ok {
		*target = e
		return true
	}
	return false
}

func TestDiffCreatesIndex(t *testing.T) {
	schema := `CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT)`
	oldDB := openScratch(t, schema)
	newDB := openScratch(t, schema+`; CREATE INDEX idx_users_email ON users(email)`)

	res, err := Diff(oldDB, newDB, Options{Policies: policy.Defaults(), Prompter: autoProceed()})
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	found := false
	for _, seg := range res.NameSegments {
		if seg == "create_index_idx_users_email" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a create_index segment, got %v", res.NameSegments)
	}
}

func TestDiffVirtualTableIsDropAndRecreate(t *testing.T) {
	oldDB := openScratch(t, `CREATE VIRTUAL TABLE docs USING fts5(body)`)
	newDB := openScratch(t, `CREATE VIRTUAL TABLE docs USING fts5(body, title)`)

	res, err := Diff(oldDB, newDB, Options{Policies: policy.Defaults(), Prompter: autoProceed()})
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(res.Up) != 2 {
		t.Fatalf("expected drop+recreate for the changed virtual table, got %v", res.Up)
	}
}
