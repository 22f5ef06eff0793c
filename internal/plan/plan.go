// Package plan defines the serialized migration descriptor: the
// sum-typed replacement (Design Notes §9) for the reference engine's
// dynamically-loaded `up(db)`/`down(db)` JavaScript. A Plan is either a
// Standard forward/reverse statement pair or a Snapshot capturing a
// live schema plus the configured rename policy in force when it was
// taken (spec.md §6's SchemaSnapshot marker).
package plan

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
)

// Kind discriminates the two Plan variants.
type Kind string

const (
	// KindStandard is an ordinary forward/reverse migration.
	KindStandard Kind = "standard"
	// KindSnapshot is the ambiguous-only-mode schema snapshot marker.
	KindSnapshot Kind = "snapshot"
)

// Meta is the header shared by every migration file.
type Meta struct {
	ID          string `toml:"id"`
	Name        string `toml:"name"`
	ContentHash string `toml:"-"` // computed from the file bytes, never round-tripped
}

// Standard is the ordinary migration body: ordered SQL statements to
// apply (Up) and their reverse (Down), plus the pragma state this
// migration leaves the database in.
type Standard struct {
	Up      []string          `toml:"up"`
	Down    []string          `toml:"down"`
	Pragmas map[string]string `toml:"pragmas"`
}

// Snapshot captures a live database's DDL at the moment an
// ambiguous-only `make` detected renames it cannot infer from schema
// alone (spec.md §4.7's ambiguous-only mode). Policy holds only the
// configured on_rename action string (which may be "prompt"), not the
// per-rename decisions.
type Snapshot struct {
	Schema  []string          `toml:"schema"`
	Policy  map[string]string `toml:"policy"`
	Pragmas map[string]string `toml:"pragmas"`
}

// Plan is the decoded content of one migration file.
type Plan struct {
	Meta     Meta
	Kind     Kind
	Standard *Standard
	Snapshot *Snapshot
}

// document is the literal TOML shape; Plan is decoded into/out of it so
// Meta.ContentHash (derived, not stored) never round-trips.
type document struct {
	Meta     Meta      `toml:"meta"`
	Standard *Standard `toml:"standard,omitempty"`
	Snapshot *Snapshot `toml:"snapshot,omitempty"`
}

// Encode serializes p to its on-disk TOML form. It does not include
// Meta.ContentHash: the hash is computed over the encoded bytes by the
// caller (internal/diffutil.HashBytes) after encoding, not embedded in
// the body it hashes.
func Encode(p Plan) ([]byte, error) {
	doc := document{Meta: Meta{ID: p.Meta.ID, Name: p.Meta.Name}}
	switch p.Kind {
	case KindStandard:
		if p.Standard == nil {
			return nil, fmt.Errorf("plan: KindStandard requires a non-nil Standard body")
		}
		doc.Standard = p.Standard
	case KindSnapshot:
		if p.Snapshot == nil {
			return nil, fmt.Errorf("plan: KindSnapshot requires a non-nil Snapshot body")
		}
		doc.Snapshot = p.Snapshot
	default:
		return nil, fmt.Errorf("plan: unknown kind %q", p.Kind)
	}

	var buf bytes.Buffer
	buf.WriteString(header(p.Meta.ID, p.Meta.Name))
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("plan: encoding %s: %w", p.Meta.ID, err)
	}
	return buf.Bytes(), nil
}

func header(id, name string) string {
	return fmt.Sprintf("# migration %s_%s\n# generated by ddlsync make; do not edit the [meta] table by hand.\n\n", id, name)
}

// Decode parses raw migration-file bytes into a Plan. The content hash
// is computed separately by the caller over raw, since Decode only
// concerns itself with structure.
func Decode(raw []byte) (Plan, error) {
	var doc document
	if _, err := toml.Decode(string(raw), &doc); err != nil {
		return Plan{}, fmt.Errorf("plan: decoding: %w", err)
	}
	switch {
	case doc.Standard != nil && doc.Snapshot != nil:
		return Plan{}, fmt.Errorf("plan: file declares both [standard] and [snapshot]")
	case doc.Standard != nil:
		if len(doc.Standard.Up) == 0 {
			return Plan{}, fmt.Errorf("migration %s has no up statements", doc.Meta.ID)
		}
		if len(doc.Standard.Down) == 0 {
			return Plan{}, fmt.Errorf("migration %s has no down statements", doc.Meta.ID)
		}
		return Plan{Meta: doc.Meta, Kind: KindStandard, Standard: doc.Standard}, nil
	case doc.Snapshot != nil:
		if len(doc.Snapshot.Schema) == 0 {
			return Plan{}, fmt.Errorf("migration %s snapshot has no schema entries", doc.Meta.ID)
		}
		return Plan{Meta: doc.Meta, Kind: KindSnapshot, Snapshot: doc.Snapshot}, nil
	default:
		return Plan{}, fmt.Errorf("migration %s declares neither [standard] nor [snapshot]", doc.Meta.ID)
	}
}

// PragmasOf returns the pragma map this plan leaves the database in,
// regardless of variant.
func (p Plan) PragmasOf() map[string]string {
	switch p.Kind {
	case KindStandard:
		return p.Standard.Pragmas
	case KindSnapshot:
		return p.Snapshot.Pragmas
	default:
		return nil
	}
}
