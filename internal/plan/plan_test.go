package plan

import "testing"

func TestEncodeDecodeStandardRoundTrip(t *testing.T) {
	p := Plan{
		Meta: Meta{ID: "0001", Name: "create_users"},
		Kind: KindStandard,
		Standard: &Standard{
			Up:      []string{`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)`},
			Down:    []string{`DROP TABLE users`},
			Pragmas: map[string]string{"journal_mode": "WAL"},
		},
	}
	raw, err := Encode(p)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Kind != KindStandard {
		t.Fatalf("expected KindStandard, got %v", decoded.Kind)
	}
	if decoded.Meta.ID != "0001" || decoded.Meta.Name != "create_users" {
		t.Fatalf("unexpected meta: %+v", decoded.Meta)
	}
	if len(decoded.Standard.Up) != 1 || decoded.Standard.Up[0] != p.Standard.Up[0] {
		t.Fatalf("up statements did not round-trip: %+v", decoded.Standard.Up)
	}
	if decoded.Standard.Pragmas["journal_mode"] != "WAL" {
		t.Fatalf("pragmas did not round-trip: %+v", decoded.Standard.Pragmas)
	}
}

func TestEncodeDecodeSnapshotRoundTrip(t *testing.T) {
	p := Plan{
		Meta: Meta{ID: "0002", Name: "schema_snapshot"},
		Kind: KindSnapshot,
		Snapshot: &Snapshot{
			Schema: []string{`CREATE TABLE users (id INTEGER PRIMARY KEY)`},
			Policy: map[string]string{"on_rename": "proceed"},
		},
	}
	raw, err := Encode(p)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Kind != KindSnapshot {
		t.Fatalf("expected KindSnapshot, got %v", decoded.Kind)
	}
	if len(decoded.Snapshot.Schema) != 1 {
		t.Fatalf("schema did not round-trip: %+v", decoded.Snapshot.Schema)
	}
	if decoded.Snapshot.Policy["on_rename"] != "proceed" {
		t.Fatalf("policy did not round-trip: %+v", decoded.Snapshot.Policy)
	}
}

func TestDecodeRejectsEmptyStatementLists(t *testing.T) {
	raw := []byte(`
[meta]
id = "0003"
name = "empty"

[standard]
up = []
down = []
`)
	if _, err := Decode(raw); err == nil {
		t.Fatal("expected error for empty up/down statement lists")
	}
}

func TestDecodeRejectsBothVariants(t *testing.T) {
	raw := []byte(`
[meta]
id = "0004"
name = "ambiguous"

[standard]
up = ["SELECT 1"]
down = ["SELECT 1"]

[snapshot]
schema = ["CREATE TABLE t(id INTEGER)"]
`)
	if _, err := Decode(raw); err == nil {
		t.Fatal("expected error when both standard and snapshot are present")
	}
}

func TestPragmasOf(t *testing.T) {
	p := Plan{Kind: KindStandard, Standard: &Standard{Up: []string{"x"}, Down: []string{"y"}, Pragmas: map[string]string{"a": "b"}}}
	if p.PragmasOf()["a"] != "b" {
		t.Fatalf("unexpected pragmas: %v", p.PragmasOf())
	}
}
