package migrator

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ddlsync/ddlsync/internal/ddlerrors"
	"github.com/ddlsync/ddlsync/internal/differ"
	"github.com/ddlsync/ddlsync/internal/introspect"
	"github.com/ddlsync/ddlsync/internal/plan"
	"github.com/ddlsync/ddlsync/internal/policy"
	"github.com/ddlsync/ddlsync/internal/registry"
	"github.com/ddlsync/ddlsync/internal/sqliteconn"
	"github.com/ddlsync/ddlsync/internal/store"
)

// MakeResult reports what Make did.
type MakeResult struct {
	Written       *registry.Entry
	HasChanges    bool
	ManualReasons []string
}

// Make implements spec.md §4.7's make(options): it replays the
// migration history into one scratch DB, the declarative schema file
// into another, diffs them, and — unless the result is empty and
// createIfNoChanges is false — writes a new migration file. When the
// diff needs manual review, no file is written unless
// CreateOnManualMigration is set.
func (m *Migrator) Make() (result *MakeResult, err error) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		if m.opts.Metrics != nil {
			m.opts.Metrics.ObserveOperation("make", outcome, time.Since(start))
		}
	}()

	err = m.withLock(func() error {
		result, err = m.makeLocked()
		return err
	})
	if err != nil {
		if ddlerrors.Is[*ddlerrors.ManualMigrationRequired](err) {
			outcome = "manual_migration_required"
		} else {
			outcome = "error"
		}
	}
	return result, err
}

func (m *Migrator) makeLocked() (*MakeResult, error) {
	reg, err := registry.Load(m.opts.MigrationsPath)
	if err != nil {
		return nil, err
	}

	oldDB, cleanupOld, err := openScratch()
	if err != nil {
		return nil, err
	}
	defer cleanupOld()

	newDB, cleanupNew, err := openScratch()
	if err != nil {
		return nil, err
	}
	defer cleanupNew()

	if err := replayEntries(oldDB, reg.Entries); err != nil {
		return nil, err
	}

	schemaDDL, schemaPragmas, err := loadSchemaFile(m.opts.SchemaPath)
	if err != nil {
		return nil, err
	}
	for _, stmt := range schemaDDL {
		if _, err := newDB.Exec(stmt); err != nil {
			return nil, ddlerrors.AsValidation(fmt.Sprintf("schema file statement failed: %s", stmt), err)
		}
	}
	if err := applyPragmas(newDB, schemaPragmas); err != nil {
		return nil, err
	}
	if err := applyPragmas(oldDB, schemaPragmas); err != nil {
		return nil, err
	}

	if m.opts.OnlyTrackAmbiguousState {
		if err := m.handleAmbiguousOnlyMake(reg, newDB, schemaPragmas); err != nil {
			return nil, err
		}
		// handleAmbiguousOnlyMake may have inserted a synthetic migration
		// and a corresponding applied row; reload the registry so the
		// normal make pass below replays it too.
		reg, err = registry.Load(m.opts.MigrationsPath)
		if err != nil {
			return nil, err
		}
		oldDB2, cleanup2, err := openScratch()
		if err != nil {
			return nil, err
		}
		defer cleanup2()
		if err := replayEntries(oldDB2, reg.Entries); err != nil {
			return nil, err
		}
		oldDB = oldDB2
	}

	diffOpts := differ.Options{
		Policies:        m.opts.Policies,
		Prompter:        m.opts.Prompter,
		IgnoreNameCase:  m.opts.IgnoreNameCase,
		MigrationsTable: m.opts.MigrationsTable,
	}
	res, err := differ.Diff(oldDB, newDB, diffOpts)
	if err != nil {
		var reserved *differ.ReservedNameError
		if errors.As(err, &reserved) {
			return nil, ddlerrors.AsValidation(reserved.Error(), nil)
		}
		return nil, err
	}

	result := &MakeResult{HasChanges: len(res.Up) > 0, ManualReasons: res.ManualReasons}

	shouldWriteCandidate := len(res.Up) > 0 || m.opts.CreateIfNoChanges
	if shouldWriteCandidate && (!res.HasAmbiguous || m.opts.CreateOnManualMigration) {
		id := reg.NextID()
		name := registry.BuildName(res.NameSegments)
		if name == "" {
			name = "changes"
		}
		p := plan.Plan{
			Meta: plan.Meta{ID: id, Name: name},
			Kind: plan.KindStandard,
			Standard: &plan.Standard{
				Up:      res.Up,
				Down:    res.Down,
				Pragmas: schemaPragmas,
			},
		}
		entry, err := registry.Write(m.opts.MigrationsPath, p)
		if err != nil {
			return nil, err
		}
		result.Written = &entry
	}

	if m.opts.Metrics != nil {
		m.opts.Metrics.AddManualReasons(len(res.ManualReasons))
	}
	if res.HasAmbiguous {
		return result, &ddlerrors.ManualMigrationRequired{Reasons: res.ManualReasons}
	}
	return result, nil
}

// handleAmbiguousOnlyMake implements spec.md §4.7's ambiguous-only
// make: before the normal file-vs-schema diff, it diffs the *live*
// database against the declarative schema looking only for renames. If
// any are found, it asserts the live DB is at latest and records them
// as a schema-snapshot migration rather than relying on the file-vs-file
// diff to rediscover them later.
func (m *Migrator) handleAmbiguousOnlyMake(reg *registry.Registry, newDB *sql.DB, schemaPragmas map[string]string) error {
	liveDB, err := sqliteconn.Open(m.opts.DBPath)
	if err != nil {
		return fmt.Errorf("migrator: opening live db: %w", err)
	}
	defer liveDB.Close()

	renameOnly := differ.Options{
		Policies: policy.Policies{
			OnRename:            m.opts.Policies.OnRename,
			OnDestructiveChange: policy.ActionProceed,
			OnChangedIndex:      policy.ActionProceed,
			OnChangedView:       policy.ActionProceed,
			OnChangedTrigger:    policy.ActionProceed,
		},
		Prompter:        m.opts.Prompter,
		IgnoreNameCase:  m.opts.IgnoreNameCase,
		MigrationsTable: m.opts.MigrationsTable,
	}

	liveScratch, cleanup, err := openScratch()
	if err != nil {
		return err
	}
	defer cleanup()
	liveSnap, err := introspect.Load(liveDB, introspect.Options{IgnoreNameCase: m.opts.IgnoreNameCase})
	if err != nil {
		return fmt.Errorf("migrator: introspecting live db: %w", err)
	}
	if err := replaySnapshot(liveScratch, liveSnap); err != nil {
		return err
	}

	res, err := differ.Diff(liveScratch, newDB, renameOnly)
	if err != nil {
		return err
	}
	if len(res.TableRenames) == 0 && len(res.ColumnRenames) == 0 {
		return nil
	}

	st := store.New(liveDB, m.opts.MigrationsTable)
	if err := st.EnsureTable(liveDB); err != nil {
		return err
	}
	appliedRows, err := st.Load(liveDB)
	if err != nil {
		return err
	}
	if len(appliedRows) != len(reg.Entries) {
		return ddlerrors.AsValidation("ambiguous-only make requires the live database to be at latest before recording rename decisions", nil)
	}
	for i, row := range appliedRows {
		if row.ContentHash != reg.Entries[i].ContentHash {
			return ddlerrors.AsValidation("ambiguous-only make requires the live database to be at latest before recording rename decisions", nil)
		}
	}

	id := reg.NextID()
	name := "rename_snapshot_" + randomID()
	p := plan.Plan{
		Meta: plan.Meta{ID: id, Name: name},
		Kind: plan.KindSnapshot,
		Snapshot: &plan.Snapshot{
			Schema:  snapshotDDL(liveSnap),
			Policy:  map[string]string{"on_rename": m.opts.Policies.OnRename.String()},
			Pragmas: schemaPragmas,
		},
	}
	entry, err := registry.Write(m.opts.MigrationsPath, p)
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(entry.Path) // #nosec G304 - path we just wrote via registry.Write
	if err != nil {
		return err
	}
	return st.Insert(liveDB, store.Row{ID: entry.ID, Name: entry.Name, ContentHash: entry.ContentHash, Content: string(raw)})
}
