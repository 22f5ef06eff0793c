package migrator

import (
	"database/sql"
	"fmt"

	"github.com/ddlsync/ddlsync/internal/introspect"
)

// introspectLive is a thin wrapper over introspect.Load so callers
// outside this package don't need to know introspect.Options' shape.
func introspectLive(db *sql.DB, ignoreNameCase bool) (*introspect.Snapshot, error) {
	return introspect.Load(db, introspect.Options{IgnoreNameCase: ignoreNameCase})
}

// applyPragmas executes "PRAGMA name = value" for every entry in
// pragmas against db, per spec.md §6: the schema file's inline pragma
// assignments are "applied to both scratch DBs before diffing".
func applyPragmas(db *sql.DB, pragmas map[string]string) error {
	for name, value := range pragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", name, value)); err != nil {
			return fmt.Errorf("migrator: applying pragma %s: %w", name, err)
		}
	}
	return nil
}

// replaySnapshot recreates every object in snap against db, in
// dependency order: virtual tables and regular tables first (views,
// triggers and indices may reference them), then views, triggers and
// indices.
func replaySnapshot(db *sql.DB, snap *introspect.Snapshot) error {
	for _, name := range snap.VirtualOrder {
		if _, err := db.Exec(snap.VirtualTables[name].SQL); err != nil {
			return fmt.Errorf("migrator: replaying virtual table %s: %w", name, err)
		}
	}
	for _, name := range snap.TableOrder {
		if _, err := db.Exec(snap.Tables[name].SQL); err != nil {
			return fmt.Errorf("migrator: replaying table %s: %w", name, err)
		}
	}
	for _, name := range snap.ViewOrder {
		if _, err := db.Exec(snap.Views[name].SQL); err != nil {
			return fmt.Errorf("migrator: replaying view %s: %w", name, err)
		}
	}
	for _, name := range snap.TriggerOrder {
		if _, err := db.Exec(snap.Triggers[name].SQL); err != nil {
			return fmt.Errorf("migrator: replaying trigger %s: %w", name, err)
		}
	}
	for _, name := range snap.IndexOrder {
		if _, err := db.Exec(snap.Indices[name].SQL); err != nil {
			return fmt.Errorf("migrator: replaying index %s: %w", name, err)
		}
	}
	return nil
}

// snapshotDDL flattens snap into the ordered DDL list a plan.Snapshot
// stores, in the same dependency order replaySnapshot expects when the
// snapshot is later replayed.
func snapshotDDL(snap *introspect.Snapshot) []string {
	out := make([]string, 0, len(snap.TableOrder)+len(snap.ViewOrder)+len(snap.IndexOrder)+len(snap.TriggerOrder)+len(snap.VirtualOrder))
	for _, name := range snap.VirtualOrder {
		out = append(out, snap.VirtualTables[name].SQL)
	}
	for _, name := range snap.TableOrder {
		out = append(out, snap.Tables[name].SQL)
	}
	for _, name := range snap.ViewOrder {
		out = append(out, snap.Views[name].SQL)
	}
	for _, name := range snap.TriggerOrder {
		out = append(out, snap.Triggers[name].SQL)
	}
	for _, name := range snap.IndexOrder {
		out = append(out, snap.Indices[name].SQL)
	}
	return out
}
