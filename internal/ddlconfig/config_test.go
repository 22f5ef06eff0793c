package ddlconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "app.db")
	if err := os.WriteFile(dbPath, nil, 0o644); err != nil {
		t.Fatalf("writing db file: %v", err)
	}

	t.Setenv("DDLSYNC_DB_PATH", dbPath)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MigrationsPath != "./migrations" {
		t.Fatalf("expected default migrations-path, got %q", cfg.MigrationsPath)
	}
	if cfg.OnRename != "prompt" {
		t.Fatalf("expected default policy.on-rename prompt, got %q", cfg.OnRename)
	}
	if cfg.OnChangedIndex != "proceed" {
		t.Fatalf("expected default policy.on-changed-index proceed, got %q", cfg.OnChangedIndex)
	}
}

func TestLoadExplicitConfigFile(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "app.db")
	if err := os.WriteFile(dbPath, nil, 0o644); err != nil {
		t.Fatalf("writing db file: %v", err)
	}

	configPath := filepath.Join(dir, "ddlsync.yaml")
	contents := "db-path: " + dbPath + "\nmigrations-path: custom-migrations\npolicy:\n  on-rename: proceed\n"
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MigrationsPath != "custom-migrations" {
		t.Fatalf("expected migrations-path from file, got %q", cfg.MigrationsPath)
	}
	if cfg.OnRename != "proceed" {
		t.Fatalf("expected policy.on-rename from file, got %q", cfg.OnRename)
	}
}

func TestLoadRejectsMissingDBPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("expected an error when db-path is unset")
	}
}
