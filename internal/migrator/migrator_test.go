package migrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ddlsync/ddlsync/internal/policy"
)

func testOptions(t *testing.T, schema string) Options {
	t.Helper()
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "schema.sql")
	if err := os.WriteFile(schemaPath, []byte(schema), 0o644); err != nil {
		t.Fatalf("writing schema file: %v", err)
	}
	return Options{
		DBPath:            filepath.Join(dir, "app.db"),
		MigrationsPath:    filepath.Join(dir, "migrations"),
		SchemaPath:        schemaPath,
		CreateDBIfMissing: true,
		Policies: policy.Policies{
			OnRename:            policy.ActionProceed,
			OnDestructiveChange: policy.ActionProceed,
			OnChangedIndex:      policy.ActionProceed,
			OnChangedView:       policy.ActionProceed,
			OnChangedTrigger:    policy.ActionProceed,
		},
	}
}

func writeSchema(t *testing.T, opts Options, schema string) {
	t.Helper()
	if err := os.WriteFile(opts.SchemaPath, []byte(schema), 0o644); err != nil {
		t.Fatalf("rewriting schema file: %v", err)
	}
}

func TestMakeWritesInitialMigration(t *testing.T) {
	opts := testOptions(t, `CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL);`)
	m, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := m.Make()
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	if result.Written == nil {
		t.Fatal("expected a migration file to be written")
	}
	if result.Written.ID != "0000" {
		t.Fatalf("expected first migration id 0000, got %s", result.Written.ID)
	}
}

func TestMakeNoChangesWritesNothing(t *testing.T) {
	opts := testOptions(t, `CREATE TABLE users (id INTEGER PRIMARY KEY);`)
	m, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := m.Make(); err != nil {
		t.Fatalf("first Make: %v", err)
	}

	result, err := m.Make()
	if err != nil {
		t.Fatalf("second Make: %v", err)
	}
	if result.Written != nil {
		t.Fatalf("expected no file on a no-op Make, got %+v", result.Written)
	}
}

func TestMigrateAppliesLatestAndUpdatesStore(t *testing.T) {
	opts := testOptions(t, `CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL);`)
	m, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := m.Make(); err != nil {
		t.Fatalf("Make: %v", err)
	}

	result, err := m.Migrate(TargetLatest)
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if result.NoOp {
		t.Fatal("expected Migrate to apply the newly made migration")
	}
	if len(result.Redone) != 1 {
		t.Fatalf("expected one redone migration, got %v", result.Redone)
	}

	status, err := m.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.CurrentID != "0000" {
		t.Fatalf("expected current id 0000, got %s", status.CurrentID)
	}
	if status.HasSchemaChanges {
		t.Fatal("expected no schema drift right after migrating to latest")
	}
}

func TestMigrateIsIdempotentAtLatest(t *testing.T) {
	opts := testOptions(t, `CREATE TABLE users (id INTEGER PRIMARY KEY);`)
	m, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := m.Make(); err != nil {
		t.Fatalf("Make: %v", err)
	}
	if _, err := m.Migrate(TargetLatest); err != nil {
		t.Fatalf("first Migrate: %v", err)
	}

	result, err := m.Migrate(TargetLatest)
	if err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if !result.NoOp {
		t.Fatalf("expected the second Migrate to be a no-op, got %+v", result)
	}
}

func TestMigrateToZeroUndoesEverything(t *testing.T) {
	opts := testOptions(t, `CREATE TABLE users (id INTEGER PRIMARY KEY);`)
	m, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := m.Make(); err != nil {
		t.Fatalf("Make: %v", err)
	}
	if _, err := m.Migrate(TargetLatest); err != nil {
		t.Fatalf("Migrate latest: %v", err)
	}

	result, err := m.Migrate(TargetZero)
	if err != nil {
		t.Fatalf("Migrate zero: %v", err)
	}
	if len(result.Undone) != 1 {
		t.Fatalf("expected one undone migration, got %v", result.Undone)
	}

	status, err := m.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.CurrentID != TargetZero {
		t.Fatalf("expected current id zero, got %s", status.CurrentID)
	}
}

func TestStatusReportsSchemaChanges(t *testing.T) {
	opts := testOptions(t, `CREATE TABLE users (id INTEGER PRIMARY KEY);`)
	m, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := m.Make(); err != nil {
		t.Fatalf("Make: %v", err)
	}
	if _, err := m.Migrate(TargetLatest); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	writeSchema(t, opts, `CREATE TABLE users (id INTEGER PRIMARY KEY); CREATE TABLE posts (id INTEGER PRIMARY KEY);`)

	status, err := m.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.HasSchemaChanges {
		t.Fatal("expected status to report schema drift after editing the schema file")
	}
}
