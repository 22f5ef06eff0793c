// Package registry scans a migrations directory for files of the form
// NNNN_name.toml, maintaining the ordering and identity invariants
// spec.md §4.4 requires, and writes new migration files from a fixed
// template.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ddlsync/ddlsync/internal/diffutil"
	"github.com/ddlsync/ddlsync/internal/plan"
)

// Suffix is the file extension migration files carry.
const Suffix = ".toml"

// IDWidth is the zero-padded width of a migration id.
const IDWidth = 4

var fileNamePattern = regexp.MustCompile(`^([^_]+)_(.+)\` + Suffix + `$`)

// Entry describes one migration file on disk.
type Entry struct {
	ID          string
	Name        string
	Path        string
	ContentHash string
}

// Registry is the ordered, loaded view of a migrations directory.
type Registry struct {
	Dir     string
	Entries []Entry // ascending by ID
}

// Load scans dir (creating it if missing, per spec.md §4.4) and returns
// a Registry whose Entries are sorted ascending by numeric id. A file
// participates iff its name contains at least one '_' and ends in
// Suffix; files that don't match are silently ignored, mirroring the
// reference's permissive scan.
func Load(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("registry: creating %s: %w", dir, err)
	}
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("registry: reading %s: %w", dir, err)
	}

	var entries []Entry
	for _, it := range items {
		if it.IsDir() {
			continue
		}
		m := fileNamePattern.FindStringSubmatch(it.Name())
		if m == nil {
			continue
		}
		path := filepath.Join(dir, it.Name())
		hash, err := diffutil.FileHash(path)
		if err != nil {
			return nil, fmt.Errorf("registry: hashing %s: %w", path, err)
		}
		entries = append(entries, Entry{
			ID:          m[1],
			Name:        m[2],
			Path:        path,
			ContentHash: hash,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		// IDs are zero-padded decimal strings: lexicographic order and
		// numeric order coincide, per spec.md §4.4.
		ni, _ := strconv.Atoi(entries[i].ID)
		nj, _ := strconv.Atoi(entries[j].ID)
		if ni != nj {
			return ni < nj
		}
		return entries[i].ID < entries[j].ID
	})

	return &Registry{Dir: dir, Entries: entries}, nil
}

// NextID returns the zero-padded id for the next migration to write:
// the current entry count, formatted per IDWidth.
func (r *Registry) NextID() string {
	return FormatID(len(r.Entries))
}

// FormatID zero-pads n to IDWidth digits.
func FormatID(n int) string {
	return fmt.Sprintf("%0*d", IDWidth, n)
}

// MaxNameSegmentLen is the truncation cap applied to a migration's
// generated file name, applied *after* joining segments with "__"
// (Design Notes §9's open question, resolved here by preserving the
// reference's literal behavior: if the first segment alone exceeds this
// cap, later segments are truncated away entirely rather than
// hash-suffixed).
const MaxNameSegmentLen = 40

// BuildName joins naming segments with "__" and truncates to
// MaxNameSegmentLen runes.
func BuildName(segments []string) string {
	joined := strings.Join(segments, "__")
	r := []rune(joined)
	if len(r) <= MaxNameSegmentLen {
		return joined
	}
	return string(r[:MaxNameSegmentLen])
}

// Write encodes p and writes it to dir as "<id>_<name><Suffix>",
// returning the written Entry. p.Meta.ContentHash is recomputed from
// the encoded bytes; any value the caller set is ignored.
func Write(dir string, p plan.Plan) (Entry, error) {
	encoded, err := plan.Encode(p)
	if err != nil {
		return Entry{}, fmt.Errorf("registry: encoding migration %s: %w", p.Meta.ID, err)
	}
	fileName := fmt.Sprintf("%s_%s%s", p.Meta.ID, p.Meta.Name, Suffix)
	path := filepath.Join(dir, fileName)
	if err := os.WriteFile(path, encoded, 0o644); err != nil { //nolint:gosec // migration files are not secrets
		return Entry{}, fmt.Errorf("registry: writing %s: %w", path, err)
	}
	return Entry{
		ID:          p.Meta.ID,
		Name:        p.Meta.Name,
		Path:        path,
		ContentHash: diffutil.HashBytes(encoded),
	}, nil
}

// Load decodes one entry's plan.Plan from disk.
func (e Entry) Load() (plan.Plan, error) {
	raw, err := os.ReadFile(e.Path) // #nosec G304 - path comes from a directory scan we performed
	if err != nil {
		return plan.Plan{}, fmt.Errorf("registry: reading %s: %w", e.Path, err)
	}
	p, err := plan.Decode(raw)
	if err != nil {
		return plan.Plan{}, fmt.Errorf("registry: decoding %s: %w", e.Path, err)
	}
	return p, nil
}
