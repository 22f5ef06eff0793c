// Package ddlsync provides the public API for the declarative SQLite
// schema migration engine: Open a migrator bound to a database, a
// migrations directory and a schema file, then call Make, Migrate or
// Status on it. Most callers embedding ddlsync in a larger program only
// need this package; internal/ holds the engine's implementation.
package ddlsync

import (
	"log/slog"
	"time"

	"github.com/ddlsync/ddlsync/internal/ddlerrors"
	"github.com/ddlsync/ddlsync/internal/metrics"
	"github.com/ddlsync/ddlsync/internal/migrator"
	"github.com/ddlsync/ddlsync/internal/policy"
)

// Action, the four-valued policy setting, and its enumerated values.
type Action = policy.Action

const (
	ActionPrompt        = policy.ActionPrompt
	ActionProceed       = policy.ActionProceed
	ActionSkip          = policy.ActionSkip
	ActionRequireManual = policy.ActionRequireManual
)

// Decision is the three-valued outcome a Prompter resolves an Action to.
type Decision = policy.Decision

const (
	Proceed       = policy.Proceed
	Skip          = policy.Skip
	RequireManual = policy.RequireManual
)

// Category identifies which kind of decision a Prompter is being asked
// to resolve.
type Category = policy.Category

const (
	CategoryRename            = policy.CategoryRename
	CategoryDestructiveChange = policy.CategoryDestructiveChange
	CategoryChangedIndex      = policy.CategoryChangedIndex
	CategoryChangedView       = policy.CategoryChangedView
	CategoryChangedTrigger    = policy.CategoryChangedTrigger
)

// Subject and Prompter let a caller resolve ActionPrompt decision
// points interactively.
type (
	Subject  = policy.Subject
	Prompter = policy.Prompter
)

// Policies bundles the five action-policy categories spec.md §4.8
// consults.
type Policies = policy.Policies

// DefaultPolicies returns the configuration defaults spec.md §6
// specifies.
func DefaultPolicies() Policies { return policy.Defaults() }

// The distinct error kinds spec.md §7 names.
type (
	ValidationError         = ddlerrors.ValidationError
	ManualMigrationRequired = ddlerrors.ManualMigrationRequired
	RolledBackTransaction   = ddlerrors.RolledBackTransaction
	IntegrityError          = ddlerrors.IntegrityError
)

// The two symbolic migrate targets; any other string must be a
// registry entry id such as "0003".
const (
	TargetLatest = migrator.TargetLatest
	TargetZero   = migrator.TargetZero
)

// Metrics exposes the engine's Prometheus collectors to an embedding
// process that wants to serve them over its own /metrics endpoint.
type Metrics = metrics.Metrics

// NewMetrics constructs a fresh, ready-to-register Metrics instance.
func NewMetrics() *Metrics { return metrics.New() }

// Logger is the structured-logging sink a Migrator writes progress and
// warnings through.
type Logger = slog.Logger

// Options configures one Migrator: the live database, the migrations
// directory, the declarative schema file, and the policy/observability
// knobs spec.md §6 enumerates.
type Options struct {
	DBPath          string
	MigrationsPath  string
	SchemaPath      string
	MigrationsTable string

	CreateDBIfMissing bool
	IgnoreNameCase    bool

	Policies                Policies
	Prompter                Prompter
	OnlyTrackAmbiguousState bool
	CreateIfNoChanges       bool
	CreateOnManualMigration bool

	Logger   *Logger
	Metrics  *Metrics
	LockWait time.Duration
}

// Migrator is the engine's façade over one Options set: Make generates
// migration files from schema drift, Migrate applies them to the live
// database, Status reports where the two currently stand.
type Migrator struct {
	inner *migrator.Migrator
}

// Open validates opts and returns a ready Migrator. Validation is
// eager and synchronous (spec.md §7): Open never touches the database
// or the migrations directory beyond checking the paths it was given.
func Open(opts Options) (*Migrator, error) {
	m, err := migrator.New(migrator.Options{
		DBPath:                  opts.DBPath,
		MigrationsPath:          opts.MigrationsPath,
		SchemaPath:              opts.SchemaPath,
		MigrationsTable:         opts.MigrationsTable,
		CreateDBIfMissing:       opts.CreateDBIfMissing,
		IgnoreNameCase:          opts.IgnoreNameCase,
		Policies:                opts.Policies,
		Prompter:                opts.Prompter,
		OnlyTrackAmbiguousState: opts.OnlyTrackAmbiguousState,
		CreateIfNoChanges:       opts.CreateIfNoChanges,
		CreateOnManualMigration: opts.CreateOnManualMigration,
		Logger:                  opts.Logger,
		Metrics:                 opts.Metrics,
		LockWait:                opts.LockWait,
	})
	if err != nil {
		return nil, err
	}
	return &Migrator{inner: m}, nil
}

// MakeResult and MigrateResult/StatusResult report what their
// respective operation did.
type (
	MakeResult    = migrator.MakeResult
	MigrateResult = migrator.MigrateResult
	StatusResult  = migrator.StatusResult
)

// Make diffs the migration history against the declarative schema file
// and writes a new migration file when the result is non-empty (or
// CreateIfNoChanges is set), unless manual review is needed and
// CreateOnManualMigration is not set.
func (m *Migrator) Make() (*MakeResult, error) { return m.inner.Make() }

// Migrate brings the live database to target ("latest", "zero", or a
// registry entry id), undoing and redoing migrations as needed inside
// one transaction.
func (m *Migrator) Migrate(target string) (*MigrateResult, error) { return m.inner.Migrate(target) }

// Status reports the applied store's position against the registry and
// whether the schema file or the live database have drifted from the
// migration history.
func (m *Migrator) Status() (*StatusResult, error) { return m.inner.Status() }
