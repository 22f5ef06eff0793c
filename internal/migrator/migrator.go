// Package migrator implements the Migrator State Machine (spec.md
// §4.7): make, migrate and status, built around the same
// transaction/rollback discipline the teacher's RunMigrations uses for
// its own schema upgrades, generalized to the declarative differ.
package migrator

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ddlsync/ddlsync/internal/ddlerrors"
	"github.com/ddlsync/ddlsync/internal/locking"
	"github.com/ddlsync/ddlsync/internal/metrics"
	"github.com/ddlsync/ddlsync/internal/plan"
	"github.com/ddlsync/ddlsync/internal/policy"
	"github.com/ddlsync/ddlsync/internal/registry"
	"github.com/ddlsync/ddlsync/internal/sqliteconn"
	"github.com/ddlsync/ddlsync/internal/store"
)

// Options configures one Migrator.
type Options struct {
	DBPath            string
	MigrationsPath    string
	SchemaPath        string
	MigrationsTable   string
	CreateDBIfMissing bool
	IgnoreNameCase    bool

	Policies                policy.Policies
	Prompter                policy.Prompter
	OnlyTrackAmbiguousState bool
	CreateIfNoChanges       bool
	CreateOnManualMigration bool

	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	LockWait   time.Duration
}

// Migrator is the engine's façade over one (dbPath, migrationsPath,
// schemaPath) triple.
type Migrator struct {
	opts Options
}

// New validates opts eagerly (spec.md §7: "ValidationError is raised
// early and synchronously; all constructors validate eagerly") and
// returns a ready Migrator.
func New(opts Options) (*Migrator, error) {
	if opts.DBPath == "" || opts.DBPath == ":memory:" {
		return nil, ddlerrors.AsValidation("db path must be a regular file path, not empty or :memory:", nil)
	}
	if info, err := os.Stat(opts.DBPath); err == nil && info.IsDir() {
		return nil, ddlerrors.AsValidation(fmt.Sprintf("db path %q is a directory", opts.DBPath), nil)
	} else if os.IsNotExist(err) && !opts.CreateDBIfMissing {
		return nil, ddlerrors.AsValidation(fmt.Sprintf("db path %q does not exist and createDBIfMissing is false", opts.DBPath), nil)
	}
	if opts.MigrationsPath == "" {
		return nil, ddlerrors.AsValidation("migrations path must be set", nil)
	}
	if opts.SchemaPath == "" {
		return nil, ddlerrors.AsValidation("schema path must be set", nil)
	}
	if _, err := os.Stat(opts.SchemaPath); err != nil {
		return nil, ddlerrors.AsValidation(fmt.Sprintf("schema path %q is not readable", opts.SchemaPath), err)
	}
	if opts.MigrationsTable == "" {
		opts.MigrationsTable = store.DefaultTableName
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.LockWait <= 0 {
		opts.LockWait = 10 * time.Second
	}
	return &Migrator{opts: opts}, nil
}

// pragmaPattern matches the schema file's inline PRAGMA statements
// (spec.md §6: `/PRAGMA\s+(\w+)\s*=\s*(\w+);/g`).
var pragmaPattern = regexp.MustCompile(`(?i)PRAGMA\s+(\w+)\s*=\s*(\w+);`)

// loadSchemaFile reads the schema file and splits it into the pragma
// assignments it declares and the remaining semicolon-separated DDL
// statements.
func loadSchemaFile(path string) (ddl []string, pragmas map[string]string, err error) {
	raw, err := os.ReadFile(path) // #nosec G304 - path comes from caller configuration
	if err != nil {
		return nil, nil, fmt.Errorf("migrator: reading schema file: %w", err)
	}
	content := string(raw)
	pragmas = map[string]string{}
	for _, m := range pragmaPattern.FindAllStringSubmatch(content, -1) {
		pragmas[m[1]] = m[2]
	}
	content = pragmaPattern.ReplaceAllString(content, "")

	for _, stmt := range strings.Split(content, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		ddl = append(ddl, stmt)
	}
	return ddl, pragmas, nil
}

// openScratch creates a temp-file-backed anonymous database (spec.md
// §4.6/§4.7: "Open two anonymous scratch DBs") and returns it along
// with a cleanup func that closes and removes the backing file.
func openScratch() (*sql.DB, func(), error) {
	f, err := os.CreateTemp("", "ddlsync-scratch-*.db")
	if err != nil {
		return nil, nil, fmt.Errorf("migrator: creating scratch file: %w", err)
	}
	path := f.Name()
	f.Close()

	db, err := sqliteconn.OpenScratch(path)
	if err != nil {
		os.Remove(path)
		return nil, nil, fmt.Errorf("migrator: opening scratch db: %w", err)
	}
	cleanup := func() {
		db.Close()
		os.Remove(path)
	}
	return db, cleanup, nil
}

// replayEntries executes every registered migration's forward
// statements against db, in order, reconstructing the schema the
// migration history describes. Standard plans replay their Up
// statements; Snapshot plans replay their captured Schema DDL directly
// (spec.md §4.7's "Schema Snapshot up-action" collapses, for a fresh
// replay with no live drift to reconcile, to simply recreating the
// captured objects).
func replayEntries(db *sql.DB, entries []registry.Entry) error {
	for _, e := range entries {
		p, err := e.Load()
		if err != nil {
			return fmt.Errorf("migrator: loading %s: %w", e.Path, err)
		}
		var stmts []string
		switch p.Kind {
		case plan.KindStandard:
			stmts = p.Standard.Up
		case plan.KindSnapshot:
			stmts = p.Snapshot.Schema
		}
		for _, stmt := range stmts {
			if _, err := db.Exec(stmt); err != nil {
				return fmt.Errorf("migrator: replaying %s: %w", e.Path, err)
			}
		}
	}
	return nil
}

// withLock acquires the migrations-directory advisory lock for the
// duration of fn (spec.md §5's single-instance hazard). The directory
// must exist before the lock file can be created inside it, so this
// creates it eagerly rather than relying on registry.Load's own
// os.MkdirAll, which only runs once fn is already holding the lock.
func (m *Migrator) withLock(fn func() error) error {
	if err := os.MkdirAll(m.opts.MigrationsPath, 0o755); err != nil {
		return fmt.Errorf("migrator: creating %s: %w", m.opts.MigrationsPath, err)
	}
	lock, err := locking.Acquire(m.opts.MigrationsPath, m.opts.LockWait)
	if err != nil {
		return fmt.Errorf("migrator: acquiring lock: %w", err)
	}
	defer lock.Unlock()
	return fn()
}

func randomID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
