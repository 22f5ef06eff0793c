// Package integrity implements the Integrity Verifier (spec.md §4.10):
// a post-migration check that the database is both structurally sound
// and free of foreign-key violations.
package integrity

import (
	"database/sql"
	"fmt"
	"strings"
)

// Error is the distinct fatal error class spec.md §4.10 requires:
// "any failure is a distinct fatal error class", surfaced by the
// Migrator as IntegrityError.
type Error struct {
	IntegrityFailures []string
	ForeignKeyFailures []ForeignKeyFailure
}

// ForeignKeyFailure is one row returned by PRAGMA foreign_key_check.
type ForeignKeyFailure struct {
	Table    string
	RowID    sql.NullInt64
	RefTable string
	FKID     int64
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("integrity check failed")
	if len(e.IntegrityFailures) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.IntegrityFailures, "; "))
	}
	if len(e.ForeignKeyFailures) > 0 {
		fmt.Fprintf(&b, " (%d foreign key violation(s))", len(e.ForeignKeyFailures))
	}
	return b.String()
}

// Verify runs PRAGMA integrity_check and PRAGMA foreign_key_check
// against db, returning *Error if either reports a problem.
func Verify(db *sql.DB) error {
	integrityFailures, err := runIntegrityCheck(db)
	if err != nil {
		return fmt.Errorf("integrity: running integrity_check: %w", err)
	}
	fkFailures, err := runForeignKeyCheck(db)
	if err != nil {
		return fmt.Errorf("integrity: running foreign_key_check: %w", err)
	}
	if len(integrityFailures) == 0 && len(fkFailures) == 0 {
		return nil
	}
	return &Error{IntegrityFailures: integrityFailures, ForeignKeyFailures: fkFailures}
}

func runIntegrityCheck(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`PRAGMA integrity_check`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var failures []string
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, err
		}
		if msg != "ok" {
			failures = append(failures, msg)
		}
	}
	return failures, rows.Err()
}

func runForeignKeyCheck(db *sql.DB) ([]ForeignKeyFailure, error) {
	rows, err := db.Query(`PRAGMA foreign_key_check`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var failures []ForeignKeyFailure
	for rows.Next() {
		var f ForeignKeyFailure
		if err := rows.Scan(&f.Table, &f.RowID, &f.RefTable, &f.FKID); err != nil {
			return nil, err
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}
