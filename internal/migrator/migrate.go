package migrator

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/ddlsync/ddlsync/internal/ddlerrors"
	"github.com/ddlsync/ddlsync/internal/differ"
	"github.com/ddlsync/ddlsync/internal/integrity"
	"github.com/ddlsync/ddlsync/internal/plan"
	"github.com/ddlsync/ddlsync/internal/policy"
	"github.com/ddlsync/ddlsync/internal/pragma"
	"github.com/ddlsync/ddlsync/internal/registry"
	"github.com/ddlsync/ddlsync/internal/sqliteconn"
	"github.com/ddlsync/ddlsync/internal/store"
)

// The two symbolic migrate targets spec.md §4.7 names. Any other value
// must be a registry entry id.
const (
	TargetLatest = "latest"
	TargetZero   = "zero"
)

// MigrateResult reports what one Migrate call did.
type MigrateResult struct {
	NoOp    bool
	Undone  []string // ids undone, in the order they were undone (last-applied first)
	Redone  []string // ids applied, in ascending order
	Pragmas map[string]string
}

// Migrate implements spec.md §4.7's migrate(target, diffOpts): it walks
// the registry and the applied store to a common prefix, undoes
// whatever diverges after it, then redoes the target's remaining
// entries inside one transaction, verifying integrity afterward.
func (m *Migrator) Migrate(target string) (result *MigrateResult, err error) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		if m.opts.Metrics != nil {
			m.opts.Metrics.ObserveOperation("migrate", outcome, time.Since(start))
		}
	}()

	err = m.withLock(func() error {
		result, err = m.migrateLocked(target)
		return err
	})
	if err != nil {
		switch {
		case ddlerrors.Is[*ddlerrors.RolledBackTransaction](err):
			outcome = "rolled_back"
			if m.opts.Metrics != nil {
				m.opts.Metrics.IncRollback()
			}
		case ddlerrors.Is[*ddlerrors.IntegrityError](err):
			outcome = "integrity_error"
		default:
			outcome = "error"
		}
	}
	return result, err
}

func (m *Migrator) migrateLocked(target string) (*MigrateResult, error) {
	reg, err := registry.Load(m.opts.MigrationsPath)
	if err != nil {
		return nil, err
	}

	db, err := sqliteconn.Open(m.opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("migrator: opening %s: %w", m.opts.DBPath, err)
	}
	defer db.Close()

	st := store.New(db, m.opts.MigrationsTable)
	if err := st.EnsureTable(db); err != nil {
		return nil, err
	}
	appliedRows, err := st.Load(db)
	if err != nil {
		return nil, err
	}

	targetEntries, err := resolveTarget(target, reg.Entries)
	if err != nil {
		return nil, err
	}
	undoRows, redoEntries, commonCount := commonPrefixSplit(appliedRows, targetEntries)

	ambiguousAtLatest := m.opts.OnlyTrackAmbiguousState && (target == "" || target == TargetLatest)

	if len(undoRows) == 0 && len(redoEntries) == 0 && !ambiguousAtLatest {
		return &MigrateResult{NoOp: true}, nil
	}

	tmpDir, materialized, err := store.Materialize(m.opts.MigrationsPath, appliedRows)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	// liveScratch mirrors the transaction's in-progress schema so a
	// Schema Snapshot up-action (or the ambiguous-only implicit diff)
	// can be diffed with the ordinary Differ, which is written against
	// *sql.DB rather than *sql.Tx. Only built when the history can
	// actually contain a snapshot entry.
	var liveScratch *sql.DB
	if m.opts.OnlyTrackAmbiguousState {
		ls, cleanup, err := m.seedLiveScratch(db)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		liveScratch = ls
	}

	result := &MigrateResult{Pragmas: map[string]string{}}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("migrator: beginning transaction: %w", err)
	}
	rollback := func(cause error) (*MigrateResult, error) {
		_ = tx.Rollback()
		return nil, &ddlerrors.RolledBackTransaction{Cause: cause}
	}

	if _, err := tx.Exec(`PRAGMA defer_foreign_keys = TRUE`); err != nil {
		return rollback(err)
	}

	// Undo plan: the diverging tail of the applied store, last-applied
	// row first.
	for i := len(undoRows) - 1; i >= 0; i-- {
		row := undoRows[i]
		path, ok := materialized[row.ID]
		if !ok {
			return rollback(fmt.Errorf("migrator: no materialized file for applied migration %s", row.ID))
		}
		p, err := store.LoadPlan(path)
		if err != nil {
			return rollback(err)
		}
		switch p.Kind {
		case plan.KindStandard:
			for _, stmt := range p.Standard.Down {
				if err := execBoth(tx, liveScratch, stmt); err != nil {
					return rollback(fmt.Errorf("migrator: undoing %s: %w", row.ID, err))
				}
			}
		case plan.KindSnapshot:
			// A schema snapshot has no well-defined reverse: it records
			// a rename decision, not a reconstructible prior shape.
			m.opts.Logger.Warn("schema snapshot has no down action, skipping", "id", row.ID)
		}
		if err := st.Delete(tx, row.ID); err != nil {
			return rollback(err)
		}
		result.Undone = append(result.Undone, row.ID)
	}

	// Redo plan: the diverging tail of the target's entries, in order.
	for _, entry := range redoEntries {
		p, err := entry.Load()
		if err != nil {
			return rollback(err)
		}
		switch p.Kind {
		case plan.KindStandard:
			for _, stmt := range p.Standard.Up {
				if err := execBoth(tx, liveScratch, stmt); err != nil {
					return rollback(fmt.Errorf("migrator: applying %s: %w", entry.ID, err))
				}
			}
			result.Pragmas = p.Standard.Pragmas
		case plan.KindSnapshot:
			pragmas, err := m.replaySnapshotUp(tx, liveScratch, p.Snapshot)
			if err != nil {
				return rollback(fmt.Errorf("migrator: replaying schema snapshot %s: %w", entry.ID, err))
			}
			result.Pragmas = pragmas
		}
		raw, err := os.ReadFile(entry.Path) // #nosec G304 - path comes from a registry directory scan
		if err != nil {
			return rollback(err)
		}
		if err := st.Insert(tx, store.Row{ID: entry.ID, Name: entry.Name, ContentHash: entry.ContentHash, Content: string(raw)}); err != nil {
			return rollback(err)
		}
		result.Redone = append(result.Redone, entry.ID)
	}

	if len(redoEntries) == 0 && commonCount > 0 {
		if p, err := targetEntries[commonCount-1].Load(); err == nil {
			result.Pragmas = p.PragmasOf()
		}
	}

	if ambiguousAtLatest {
		schemaDDL, schemaPragmas, err := loadSchemaFile(m.opts.SchemaPath)
		if err != nil {
			return rollback(err)
		}
		targetScratch, cleanup, err := openScratch()
		if err != nil {
			return rollback(err)
		}
		defer cleanup()
		for _, stmt := range schemaDDL {
			if _, err := targetScratch.Exec(stmt); err != nil {
				return rollback(fmt.Errorf("migrator: applying schema file: %w", err))
			}
		}
		if err := applyPragmas(targetScratch, schemaPragmas); err != nil {
			return rollback(err)
		}

		// The schema file never defines the reserved migrations table;
		// drop it from the live copy so it is not diffed as a removal.
		if _, err := liveScratch.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, m.opts.MigrationsTable)); err != nil {
			return rollback(err)
		}
		res, err := differ.Diff(liveScratch, targetScratch, differ.Options{
			Policies:        policy.Policies{OnRename: policy.ActionRequireManual, OnDestructiveChange: policy.ActionRequireManual, OnChangedIndex: policy.ActionProceed, OnChangedView: policy.ActionProceed, OnChangedTrigger: policy.ActionProceed},
			IgnoreNameCase:  m.opts.IgnoreNameCase,
			MigrationsTable: m.opts.MigrationsTable,
		})
		if err != nil {
			return rollback(err)
		}
		if res.HasAmbiguous {
			return rollback(&ddlerrors.ManualMigrationRequired{Reasons: res.ManualReasons})
		}
		for _, stmt := range res.Up {
			if stmt == "" {
				continue
			}
			if _, err := tx.Exec(stmt); err != nil {
				return rollback(fmt.Errorf("migrator: applying implicit diff: %w", err))
			}
		}
		if len(res.Up) > 0 {
			result.Pragmas = schemaPragmas
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, &ddlerrors.RolledBackTransaction{Cause: err}
	}

	if err := pragma.Apply(db, m.opts.DBPath, result.Pragmas, m.opts.Logger); err != nil {
		return nil, err
	}
	if err := integrity.Verify(db); err != nil {
		return nil, &ddlerrors.IntegrityError{Cause: err}
	}

	if _, err := db.Exec(`VACUUM`); err != nil {
		return nil, fmt.Errorf("migrator: vacuuming: %w", err)
	}

	return result, nil
}

// resolveTarget maps a migrate target to the slice of registry entries
// that should be applied once migrate completes: every entry for
// "latest" (or ""), none for "zero", or the prefix ending at target's
// id, with anything later truncated.
func resolveTarget(target string, entries []registry.Entry) ([]registry.Entry, error) {
	switch target {
	case "", TargetLatest:
		return entries, nil
	case TargetZero:
		return nil, nil
	default:
		for i, e := range entries {
			if e.ID == target {
				return entries[:i+1], nil
			}
		}
		return nil, ddlerrors.AsValidation(fmt.Sprintf("migration target %q not found in registry", target), nil)
	}
}

// commonPrefixSplit walks applied and target from the start, popping
// pairs whose content hash matches, and returns the diverging
// remainder of each plus how many pairs were common.
func commonPrefixSplit(applied []store.Row, target []registry.Entry) (undo []store.Row, redo []registry.Entry, commonCount int) {
	i := 0
	for i < len(applied) && i < len(target) && applied[i].ContentHash == target[i].ContentHash {
		i++
	}
	return applied[i:], target[i:], i
}

// seedLiveScratch copies db's current schema into a fresh scratch
// database, so later Schema Snapshot up-actions can diff against it
// with the ordinary *sql.DB-based Differ while still reflecting every
// statement this migrate call applies as it applies it.
func (m *Migrator) seedLiveScratch(db *sql.DB) (*sql.DB, func(), error) {
	liveSnap, err := introspectLive(db, m.opts.IgnoreNameCase)
	if err != nil {
		return nil, nil, err
	}
	scratch, cleanup, err := openScratch()
	if err != nil {
		return nil, nil, err
	}
	if err := replaySnapshot(scratch, liveSnap); err != nil {
		cleanup()
		return nil, nil, err
	}
	return scratch, cleanup, nil
}

// execBoth executes stmt against tx and, when mirror is non-nil, also
// against mirror, keeping the two in lockstep.
func execBoth(tx *sql.Tx, mirror *sql.DB, stmt string) error {
	if _, err := tx.Exec(stmt); err != nil {
		return err
	}
	if mirror != nil {
		if _, err := mirror.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// replaySnapshotUp implements spec.md §4.7's "Schema Snapshot
// up-action": it diffs liveScratch against the snapshot's captured DDL
// using the policy the snapshot recorded, then applies the resulting
// up statements against tx. differ.Diff executes its up statements
// against liveScratch itself as it produces them, so liveScratch stays
// in sync for any later snapshot entry without extra bookkeeping here.
func (m *Migrator) replaySnapshotUp(tx *sql.Tx, liveScratch *sql.DB, snap *plan.Snapshot) (map[string]string, error) {
	targetScratch, cleanup, err := openScratch()
	if err != nil {
		return nil, err
	}
	defer cleanup()
	for _, stmt := range snap.Schema {
		if _, err := targetScratch.Exec(stmt); err != nil {
			return nil, fmt.Errorf("replaying snapshot schema: %w", err)
		}
	}
	if err := applyPragmas(targetScratch, snap.Pragmas); err != nil {
		return nil, err
	}

	onRename, err := policy.ParseAction(snap.Policy["on_rename"])
	if err != nil {
		onRename = policy.ActionRequireManual
	}
	res, err := differ.Diff(liveScratch, targetScratch, differ.Options{
		Policies: policy.Policies{
			OnRename:            onRename,
			OnDestructiveChange: policy.ActionProceed,
			OnChangedIndex:      policy.ActionProceed,
			OnChangedView:       policy.ActionProceed,
			OnChangedTrigger:    policy.ActionProceed,
		},
		Prompter:       m.opts.Prompter,
		IgnoreNameCase: m.opts.IgnoreNameCase,
	})
	if err != nil {
		return nil, err
	}
	for _, stmt := range res.Up {
		if stmt == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			return nil, fmt.Errorf("applying snapshot up statement: %w", err)
		}
	}
	return snap.Pragmas, nil
}
