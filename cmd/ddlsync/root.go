package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/charmbracelet/lipgloss"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ddlsync/ddlsync"
	"github.com/ddlsync/ddlsync/internal/ddlconfig"
	"github.com/ddlsync/ddlsync/internal/dblog"
	"github.com/ddlsync/ddlsync/internal/policy"
)

var (
	cfgFile     string
	dbFlag      string
	migrations  string
	schemaFlag  string
	yesFlag     bool
	metricsAddr string
	logPath     string

	cfg    *ddlconfig.Config
	engine *ddlsync.Migrator
	logger *slog.Logger
)

var (
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleHeading = lipgloss.NewStyle().Bold(true).Underline(true)
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

var rootCmd = &cobra.Command{
	Use:          "ddlsync",
	Short:        "Declarative SQLite schema migrations",
	SilenceUsage: true,
	Long: `ddlsync compares a declarative schema.sql against a database's
migration history and either writes the migration files needed to
close the gap (make) or applies them to a live database (migrate).

Configuration is read from ddlsync.yaml (discovered by walking up from
the current directory, or given explicitly via --config), then
overridden by DDLSYNC_-prefixed environment variables, then by flags.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		return loadEngine()
	},
}

// Execute runs the command tree and returns any error for main to
// report, rather than calling os.Exit itself.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to ddlsync.yaml (default: discovered from cwd)")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "database file path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&migrations, "migrations", "", "migrations directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&schemaFlag, "schema", "", "declarative schema file (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&yesFlag, "yes", "y", false, "auto-resolve every prompt as proceed, non-interactively")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the command runs (e.g. :9090)")
	rootCmd.PersistentFlags().StringVar(&logPath, "log-path", "", "rotate structured logs through this file instead of stderr")

	rootCmd.AddGroup(&cobra.Group{ID: "write", Title: "Writing commands:"}, &cobra.Group{ID: "views", Title: "Viewing commands:"})
	rootCmd.AddCommand(makeCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
}

// loadEngine builds the shared *ddlsync.Migrator from layered
// configuration plus any flag overrides, the way the teacher's CLI
// commands share a package-level store built once in a PersistentPreRunE.
func loadEngine() error {
	loaded, err := ddlconfig.Load(cfgFile)
	if err != nil {
		return err
	}
	if dbFlag != "" {
		loaded.DBPath = dbFlag
	}
	if migrations != "" {
		loaded.MigrationsPath = migrations
	}
	if schemaFlag != "" {
		loaded.SchemaPath = schemaFlag
	}
	cfg = loaded

	logger = dblog.New(dblog.Options{Path: logPath, Level: slog.LevelInfo})

	onRename, err := policy.ParseAction(cfg.OnRename)
	if err != nil {
		return fmt.Errorf("config: policy.on-rename: %w", err)
	}
	onDestructive, err := policy.ParseAction(cfg.OnDestructiveChange)
	if err != nil {
		return fmt.Errorf("config: policy.on-destructive-change: %w", err)
	}
	onIndex, err := policy.ParseAction(cfg.OnChangedIndex)
	if err != nil {
		return fmt.Errorf("config: policy.on-changed-index: %w", err)
	}
	onView, err := policy.ParseAction(cfg.OnChangedView)
	if err != nil {
		return fmt.Errorf("config: policy.on-changed-view: %w", err)
	}
	onTrigger, err := policy.ParseAction(cfg.OnChangedTrigger)
	if err != nil {
		return fmt.Errorf("config: policy.on-changed-trigger: %w", err)
	}

	var prompter ddlsync.Prompter
	if yesFlag {
		prompter = policy.FuncPrompter(func(policy.Subject) (policy.Decision, error) {
			return policy.Proceed, nil
		})
	} else {
		prompter = newHuhPrompter()
	}

	metrics := ddlsync.NewMetrics()
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(metricsAddr, mux); err != nil { //nolint:gosec // operator-chosen local flag, not a public listener
				logger.Warn("metrics server stopped", "error", err)
			}
		}()
	}

	m, err := ddlsync.Open(ddlsync.Options{
		DBPath:                  cfg.DBPath,
		MigrationsPath:          cfg.MigrationsPath,
		SchemaPath:              cfg.SchemaPath,
		MigrationsTable:         cfg.MigrationsTable,
		CreateDBIfMissing:       cfg.CreateDBIfMissing,
		IgnoreNameCase:          cfg.IgnoreNameCase,
		OnlyTrackAmbiguousState: cfg.OnlyTrackAmbiguousState,
		CreateIfNoChanges:       cfg.CreateIfNoChanges,
		CreateOnManualMigration: cfg.CreateOnManualMigration,
		Policies: ddlsync.Policies{
			OnRename:            onRename,
			OnDestructiveChange: onDestructive,
			OnChangedIndex:      onIndex,
			OnChangedView:       onView,
			OnChangedTrigger:    onTrigger,
		},
		Prompter: prompter,
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		return err
	}
	engine = m
	return nil
}
