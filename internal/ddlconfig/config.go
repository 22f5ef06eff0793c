// Package ddlconfig loads the engine's configuration via a layered
// viper setup: DDLSYNC_-prefixed environment variables override the
// config file (an explicit path, else one found by CWD-relative
// discovery), which overrides the defaults.
package ddlconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/ddlsync/ddlsync/internal/ddlerrors"
)

// Config is the enumerated configuration surface (spec.md §6).
type Config struct {
	DBPath                  string
	MigrationsPath          string
	SchemaPath              string
	MigrationsTable         string
	CreateDBIfMissing       bool
	OnlyTrackAmbiguousState bool
	IgnoreNameCase          bool
	HideWarnings            bool
	ConfigPath              string

	OnRename            string
	OnDestructiveChange string
	OnChangedIndex      string
	OnChangedView       string
	OnChangedTrigger    string
	CreateIfNoChanges       bool
	CreateOnManualMigration bool
}

// Load builds a Config from, in ascending precedence: built-in
// defaults, a discovered or explicit YAML config file, and
// DDLSYNC_-prefixed environment variables (hyphens and dots folded to
// underscores, matching the teacher's SetEnvKeyReplacer convention).
func Load(explicitConfigPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("db-path", "")
	v.SetDefault("migrations-path", "./migrations")
	v.SetDefault("schema-path", "./schema.sql")
	v.SetDefault("migrations-table", "migrations")
	v.SetDefault("create-db-if-missing", false)
	v.SetDefault("only-track-ambiguous-state", false)
	v.SetDefault("ignore-name-case", false)
	v.SetDefault("hide-warnings", false)

	v.SetDefault("policy.on-rename", "prompt")
	v.SetDefault("policy.on-destructive-change", "prompt")
	v.SetDefault("policy.on-changed-index", "proceed")
	v.SetDefault("policy.on-changed-view", "proceed")
	v.SetDefault("policy.on-changed-trigger", "proceed")
	v.SetDefault("create-if-no-changes", false)
	v.SetDefault("create-on-manual-migration", false)

	configFileSet := false
	if explicitConfigPath != "" {
		v.SetConfigFile(explicitConfigPath)
		configFileSet = true
	} else if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			candidate := filepath.Join(dir, "ddlsync.yaml")
			if _, statErr := os.Stat(candidate); statErr == nil {
				v.SetConfigFile(candidate)
				configFileSet = true
				break
			}
		}
	}

	v.SetEnvPrefix("DDLSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return nil, ddlerrors.AsValidation("reading config file", err)
		}
	}

	cfg := &Config{
		DBPath:                  v.GetString("db-path"),
		MigrationsPath:          v.GetString("migrations-path"),
		SchemaPath:              v.GetString("schema-path"),
		MigrationsTable:         v.GetString("migrations-table"),
		CreateDBIfMissing:       v.GetBool("create-db-if-missing"),
		OnlyTrackAmbiguousState: v.GetBool("only-track-ambiguous-state"),
		IgnoreNameCase:          v.GetBool("ignore-name-case"),
		HideWarnings:            v.GetBool("hide-warnings"),
		ConfigPath:              v.ConfigFileUsed(),
		OnRename:                v.GetString("policy.on-rename"),
		OnDestructiveChange:     v.GetString("policy.on-destructive-change"),
		OnChangedIndex:          v.GetString("policy.on-changed-index"),
		OnChangedView:           v.GetString("policy.on-changed-view"),
		OnChangedTrigger:        v.GetString("policy.on-changed-trigger"),
		CreateIfNoChanges:       v.GetBool("create-if-no-changes"),
		CreateOnManualMigration: v.GetBool("create-on-manual-migration"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DBPath == "" {
		return ddlerrors.AsValidation("db-path must be set", nil)
	}
	if c.DBPath == ":memory:" {
		return ddlerrors.AsValidation("db-path must be a regular file path, not :memory:", nil)
	}
	if info, err := os.Stat(c.DBPath); err == nil && info.IsDir() {
		return ddlerrors.AsValidation(fmt.Sprintf("db-path %q is a directory", c.DBPath), nil)
	}
	if c.MigrationsPath == "" {
		return ddlerrors.AsValidation("migrations-path must be set", nil)
	}
	if c.SchemaPath == "" {
		return ddlerrors.AsValidation("schema-path must be set", nil)
	}
	return nil
}
