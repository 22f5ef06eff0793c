package migrator

import (
	"fmt"
	"time"

	"github.com/ddlsync/ddlsync/internal/diffutil"
	"github.com/ddlsync/ddlsync/internal/differ"
	"github.com/ddlsync/ddlsync/internal/plan"
	"github.com/ddlsync/ddlsync/internal/policy"
	"github.com/ddlsync/ddlsync/internal/registry"
	"github.com/ddlsync/ddlsync/internal/sqliteconn"
	"github.com/ddlsync/ddlsync/internal/store"
)

// StatusResult is spec.md §4.7's status() report.
type StatusResult struct {
	CurrentID         string
	CurrentName       string
	Pragmas           map[string]string
	MissingMigrations []string // registered on disk but not yet applied
	ExtraMigrations   []string // applied but no longer present on disk
	HasSchemaChanges  bool
	HasTamperedData   bool
	SchemaDiffError   string
}

// Status implements spec.md §4.7's status(): it reports the applied
// store's position against the registry and, via two dry-run Diffs,
// whether the schema file or the live database have drifted from the
// migration history.
func (m *Migrator) Status() (result *StatusResult, err error) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		if m.opts.Metrics != nil {
			m.opts.Metrics.ObserveOperation("status", outcome, time.Since(start))
		}
	}()

	err = m.withLock(func() error {
		result, err = m.statusLocked()
		return err
	})
	if err != nil {
		outcome = "error"
	}
	return result, err
}

func (m *Migrator) statusLocked() (*StatusResult, error) {
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

	result := &StatusResult{CurrentID: TargetZero, Pragmas: map[string]string{}}
	if len(appliedRows) > 0 {
		last := appliedRows[len(appliedRows)-1]
		result.CurrentID = last.ID
		result.CurrentName = last.Name
		if p, err := plan.Decode([]byte(last.Content)); err == nil {
			result.Pragmas = p.PragmasOf()
		}
	}

	registryIDs := make([]string, len(reg.Entries))
	for i, e := range reg.Entries {
		registryIDs[i] = e.ID
	}
	appliedIDs := make([]string, len(appliedRows))
	for i, r := range appliedRows {
		appliedIDs[i] = r.ID
	}
	result.MissingMigrations = diffutil.SetDifference(registryIDs, appliedIDs)
	result.ExtraMigrations = diffutil.SetDifference(appliedIDs, registryIDs)

	dryRunOpts := differ.Options{
		Policies: policy.Policies{
			OnRename:            policy.ActionProceed,
			OnDestructiveChange: policy.ActionProceed,
			OnChangedIndex:      policy.ActionProceed,
			OnChangedView:       policy.ActionProceed,
			OnChangedTrigger:    policy.ActionProceed,
		},
		IgnoreNameCase: m.opts.IgnoreNameCase,
	}

	schemaDDL, schemaPragmas, err := loadSchemaFile(m.opts.SchemaPath)
	if err != nil {
		result.SchemaDiffError = err.Error()
		return result, nil
	}
	schemaDB, cleanupSchema, err := openScratch()
	if err != nil {
		return nil, err
	}
	defer cleanupSchema()
	for _, stmt := range schemaDDL {
		if _, err := schemaDB.Exec(stmt); err != nil {
			result.SchemaDiffError = err.Error()
			return result, nil
		}
	}
	if err := applyPragmas(schemaDB, schemaPragmas); err != nil {
		result.SchemaDiffError = err.Error()
		return result, nil
	}

	// has_schema_changes: migration-replay vs the declarative schema file.
	replayForSchemaDiff, cleanupReplay, err := openScratch()
	if err != nil {
		return nil, err
	}
	defer cleanupReplay()
	if err := replayEntries(replayForSchemaDiff, reg.Entries); err != nil {
		result.SchemaDiffError = err.Error()
		return result, nil
	}
	schemaRes, err := differ.Diff(replayForSchemaDiff, schemaDB, dryRunOpts)
	if err != nil {
		result.SchemaDiffError = err.Error()
		return result, nil
	}
	result.HasSchemaChanges = len(schemaRes.Up) > 0

	// has_tampered_data: migration-replay vs the live database's actual
	// current schema. A fresh replay copy is used since Diff mutates its
	// first argument as it executes Up statements.
	replayForTamperDiff, cleanupReplay2, err := openScratch()
	if err != nil {
		return nil, err
	}
	defer cleanupReplay2()
	if err := replayEntries(replayForTamperDiff, reg.Entries); err != nil {
		result.SchemaDiffError = err.Error()
		return result, nil
	}
	liveScratch, cleanupLive, err := m.seedLiveScratch(db)
	if err != nil {
		result.SchemaDiffError = err.Error()
		return result, nil
	}
	defer cleanupLive()
	// The replay never contains the reserved migrations table; drop it
	// from the live copy so it does not count as a difference.
	if _, err := liveScratch.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, m.opts.MigrationsTable)); err != nil {
		result.SchemaDiffError = err.Error()
		return result, nil
	}
	tamperRes, err := differ.Diff(replayForTamperDiff, liveScratch, dryRunOpts)
	if err != nil {
		result.SchemaDiffError = err.Error()
		return result, nil
	}
	result.HasTamperedData = len(tamperRes.Up) > 0

	return result, nil
}
