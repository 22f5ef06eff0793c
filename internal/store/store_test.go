package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ddlsync/ddlsync/internal/sqliteconn"
)

func TestEnsureTableAndRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")
	db, err := sqliteconn.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	s := New(db, "")
	if err := s.EnsureTable(db); err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(db, Row{ID: "0000", Name: "init", ContentHash: "abc", Content: "content"}); err != nil {
		t.Fatal(err)
	}
	rows, err := s.Load(db)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].ID != "0000" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if err := s.Delete(db, "0000"); err != nil {
		t.Fatal(err)
	}
	rows, err = s.Load(db)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty after delete, got %+v", rows)
	}
}

func TestDefaultTableName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.db")
	db, err := sqliteconn.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	s := New(db, "")
	if s.TableName() != DefaultTableName {
		t.Fatalf("expected default table name, got %s", s.TableName())
	}
}

func TestMaterializeAndLoadPlan(t *testing.T) {
	dir := t.TempDir()
	content := "[meta]\nid = \"0000\"\nname = \"init\"\n\n[standard]\nup = [\"SELECT 1\"]\ndown = [\"SELECT 1\"]\n"
	tmp, entries, err := Materialize(dir, []Row{{ID: "0000", Name: "init", Content: content}})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmp) }()
	p, err := LoadPlan(entries["0000"])
	if err != nil {
		t.Fatal(err)
	}
	if p.Meta.ID != "0000" {
		t.Fatalf("unexpected id: %s", p.Meta.ID)
	}
}
