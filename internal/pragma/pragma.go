// Package pragma implements the Pragma Applier (spec.md §4.9): it sets
// any pragma whose live value differs from the target, then verifies
// persistence by reading it back through a second connection, since
// some pragmas (journal_mode, for instance) silently refuse to change
// depending on connection state.
package pragma

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ddlsync/ddlsync/internal/sqliteconn"
)

// Apply sets every pragma in target whose current value on db differs,
// then opens a second connection to path and reads each changed pragma
// back. A mismatch is logged as a warning, not returned as an error —
// spec.md §4.9 treats persistence failure as non-fatal at this layer;
// the caller's Integrity Verifier pass is what can still fail the
// overall migrate call. Apply must run outside any transaction: SQLite
// rejects several pragmas (journal_mode chief among them) mid-transaction.
func Apply(db *sql.DB, path string, target map[string]string, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	names := make([]string, 0, len(target))
	for name := range target {
		names = append(names, name)
	}
	sort.Strings(names)

	changed := make([]string, 0, len(names))
	for _, name := range names {
		want := target[name]
		got, err := readPragma(db, name)
		if err != nil {
			return fmt.Errorf("pragma: reading %s: %w", name, err)
		}
		if got == want {
			continue
		}
		stmt := fmt.Sprintf("PRAGMA %s = %s", name, want)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("pragma: setting %s: %w", name, err)
		}
		changed = append(changed, name)
	}

	if len(changed) == 0 {
		return nil
	}

	verify, err := sqliteconn.Readback(path)
	if err != nil {
		return fmt.Errorf("pragma: opening verification connection: %w", err)
	}
	defer verify.Close()

	for _, name := range changed {
		want := target[name]
		got, err := readPragma(verify, name)
		if err != nil {
			return fmt.Errorf("pragma: verifying %s: %w", name, err)
		}
		if got != want {
			log.Warn("pragma did not persist", "pragma", name, "want", want, "got", got)
		}
	}
	return nil
}

func readPragma(db *sql.DB, name string) (string, error) {
	row := db.QueryRow(fmt.Sprintf("PRAGMA %s", name))
	var val string
	if err := row.Scan(&val); err != nil {
		return "", err
	}
	return val, nil
}
