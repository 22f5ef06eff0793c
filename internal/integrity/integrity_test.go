package integrity

import (
	"path/filepath"
	"testing"

	"github.com/ddlsync/ddlsync/internal/sqliteconn"
)

func TestVerifyPassesOnCleanDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.sqlite")
	db, err := sqliteconn.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	if err := Verify(db); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyReportsForeignKeyViolation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.sqlite")
	db, err := sqliteconn.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	stmts := []string{
		`PRAGMA foreign_keys = OFF`,
		`CREATE TABLE parents (id INTEGER PRIMARY KEY)`,
		`CREATE TABLE children (id INTEGER PRIMARY KEY, parent_id INTEGER REFERENCES parents(id))`,
		`INSERT INTO children (id, parent_id) VALUES (1, 99)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}

	err = Verify(db)
	if err == nil {
		t.Fatal("expected a foreign key violation")
	}
	var integErr *Error
	if e, ok := err.(*Error); ok {
		integErr = e
	} else {
		t.Fatalf("expected *integrity.Error, got %T: %v", err, err)
	}
	if len(integErr.ForeignKeyFailures) != 1 {
		t.Fatalf("expected 1 foreign key failure, got %d", len(integErr.ForeignKeyFailures))
	}
}
