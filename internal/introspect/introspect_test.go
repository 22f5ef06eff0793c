package introspect

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/ddlsync/ddlsync/internal/sqliteconn"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sqliteconn.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLoadTablesAndColumns(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`); err != nil {
		t.Fatal(err)
	}
	snap, err := Load(db, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.TableOrder) != 1 || snap.TableOrder[0] != "users" {
		t.Fatalf("expected [users], got %v", snap.TableOrder)
	}
	cols := snap.Columns["users"]
	if cols["id"].PKPosition != 1 {
		t.Fatalf("expected id to be pk position 1, got %+v", cols["id"])
	}
	if !cols["name"].NotNull {
		t.Fatalf("expected name to be NOT NULL, got %+v", cols["name"])
	}
}

func TestLoadSeparatesVirtualTables(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.Exec(`CREATE TABLE t (id INTEGER)`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`CREATE VIRTUAL TABLE ft USING fts5(body)`); err != nil {
		t.Fatal(err)
	}
	snap, err := Load(db, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := snap.Tables["ft"]; ok {
		t.Fatal("virtual table ft should not appear in Tables")
	}
	if _, ok := snap.VirtualTables["ft"]; !ok {
		t.Fatal("expected ft in VirtualTables")
	}
}

func TestLoadSkipsInternalObjects(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.Exec(`CREATE TABLE t (id INTEGER)`); err != nil {
		t.Fatal(err)
	}
	snap, err := Load(db, Options{})
	if err != nil {
		t.Fatal(err)
	}
	for name := range snap.Tables {
		if len(name) >= 7 && name[:7] == "sqlite_" {
			t.Fatalf("internal object %q leaked into snapshot", name)
		}
	}
}

func TestColumnInfoEqual(t *testing.T) {
	a := ColumnInfo{Name: "x", Type: "TEXT", NotNull: true}
	b := ColumnInfo{Name: "x", Type: "TEXT", NotNull: true}
	c := ColumnInfo{Name: "x", Type: "BLOB", NotNull: true}
	if !a.Equal(b) {
		t.Fatal("expected a == b")
	}
	if a.Equal(c) {
		t.Fatal("expected a != c")
	}
}

func TestForeignKeyMerged(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.Exec(`CREATE TABLE parent (id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`CREATE TABLE child (id INTEGER PRIMARY KEY, parent_id INTEGER REFERENCES parent(id))`); err != nil {
		t.Fatal(err)
	}
	cols, _, err := ColumnsOf(db, "child")
	if err != nil {
		t.Fatal(err)
	}
	fk := cols["parent_id"]
	if fk.FKTable != "parent" || fk.FKColumn != "id" {
		t.Fatalf("expected fk to parent.id, got %+v", fk)
	}
}
