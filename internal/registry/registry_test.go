package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ddlsync/ddlsync/internal/plan"
)

func samplePlan(id, name string) plan.Plan {
	return plan.Plan{
		Meta: plan.Meta{ID: id, Name: name},
		Kind: plan.KindStandard,
		Standard: &plan.Standard{
			Up:   []string{"CREATE TABLE t(id INTEGER)"},
			Down: []string{"DROP TABLE t"},
		},
	}
}

func TestLoadCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "migrations")
	reg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(reg.Entries) != 0 {
		t.Fatalf("expected empty registry, got %d entries", len(reg.Entries))
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("expected directory to be created: %v", err)
	}
}

func TestWriteThenLoadOrdering(t *testing.T) {
	dir := t.TempDir()
	if _, err := Write(dir, samplePlan("0001", "second")); err != nil {
		t.Fatal(err)
	}
	if _, err := Write(dir, samplePlan("0000", "first")); err != nil {
		t.Fatal(err)
	}
	reg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(reg.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(reg.Entries))
	}
	if reg.Entries[0].ID != "0000" || reg.Entries[1].ID != "0001" {
		t.Fatalf("expected ascending order, got %v, %v", reg.Entries[0].ID, reg.Entries[1].ID)
	}
}

func TestIgnoresNonMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "noUnderscore.toml"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	reg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(reg.Entries) != 0 {
		t.Fatalf("expected 0 entries, got %d: %+v", len(reg.Entries), reg.Entries)
	}
}

func TestNextID(t *testing.T) {
	dir := t.TempDir()
	reg, _ := Load(dir)
	if reg.NextID() != "0000" {
		t.Fatalf("expected 0000, got %s", reg.NextID())
	}
	if _, err := Write(dir, samplePlan(reg.NextID(), "first")); err != nil {
		t.Fatal(err)
	}
	reg, _ = Load(dir)
	if reg.NextID() != "0001" {
		t.Fatalf("expected 0001, got %s", reg.NextID())
	}
}

func TestBuildNameTruncates(t *testing.T) {
	segments := []string{"create_a_very_long_table_name_that_exceeds_the_cap", "modify_something"}
	got := BuildName(segments)
	if len(got) != MaxNameSegmentLen {
		t.Fatalf("expected length %d, got %d (%q)", MaxNameSegmentLen, len(got), got)
	}
}

func TestEntryLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	entry, err := Write(dir, samplePlan("0000", "create_t"))
	if err != nil {
		t.Fatal(err)
	}
	p, err := entry.Load()
	if err != nil {
		t.Fatal(err)
	}
	if p.Kind != plan.KindStandard || len(p.Standard.Up) != 1 {
		t.Fatalf("unexpected decoded plan: %+v", p)
	}
}
