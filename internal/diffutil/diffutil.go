// Package diffutil provides the small set-theoretic primitives the
// schema differ composes: plain set difference, keyed map difference,
// and the greedy "mapped difference" used to infer renames from
// structural equality. It also hosts the LF-normalized content hash
// used both for migration-file identity and for detecting schema drift.
package diffutil

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"
)

// SetDifference returns the elements of a that are not present in b,
// preserving a's iteration order.
func SetDifference(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, x := range b {
		inB[x] = struct{}{}
	}
	var out []string
	for _, x := range a {
		if _, ok := inB[x]; !ok {
			out = append(out, x)
		}
	}
	return out
}

// MapDifference returns the keys present in both a and b whose values
// are not equal under eq. Keys present in only one map are ignored —
// callers combine this with SetDifference over the key sets to get
// added/removed/modified partitions.
func MapDifference[V any](a, b map[string]V, eq func(V, V) bool) []string {
	var out []string
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			continue
		}
		if !eq(av, bv) {
			out = append(out, k)
		}
	}
	return out
}

// Rename describes one inferred old-name -> new-name correspondence.
type Rename struct {
	Old string
	New string
}

// MappedDifference implements the greedy first-match partial bijection
// used to detect renames: for each key in keysA (in order), it scans
// keysB for the first key whose value satisfies eq with A[k], and
// records that pairing. A later key in keysA that matches the same
// keysB entry overwrites the earlier pairing — "last writer wins" is a
// deliberate property of the reference algorithm, not a bug, and must
// be preserved by reimplementations. Keys already consumed by the
// caller (e.g. present in both keysA and keysB, therefore not a
// candidate for rename) must be excluded from keysA/keysB by the
// caller before calling this function.
func MappedDifference[V any](a map[string]V, keysA []string, b map[string]V, keysB []string, eq func(V, V) bool) []Rename {
	byNew := make(map[string]string, len(keysA))
	for _, ka := range keysA {
		av := a[ka]
		for _, kb := range keysB {
			if eq(av, b[kb]) {
				byNew[kb] = ka
				break
			}
		}
	}
	out := make([]Rename, 0, len(byNew))
	for _, kb := range keysB {
		if old, ok := byNew[kb]; ok {
			out = append(out, Rename{Old: old, New: kb})
		}
	}
	return out
}

// FileHash computes the SHA-256 digest of path's content after
// normalizing all line endings (CRLF and lone CR) to LF, so that the
// same migration file checked out on different platforms hashes
// identically.
func FileHash(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 - path is a migration-registry-controlled path
	if err != nil {
		return "", err
	}
	defer f.Close()
	return hashLFNormalized(f)
}

// HashBytes is FileHash's in-memory equivalent, for content that has
// not (yet) been written to disk — e.g. a freshly generated migration
// body whose hash must be embedded in its own header before the write.
func HashBytes(content []byte) string {
	h := sha256.New()
	h.Write(normalizeLineEndings([]byte(content)))
	return hex.EncodeToString(h.Sum(nil))
}

func hashLFNormalized(r io.Reader) (string, error) {
	h := sha256.New()
	br := bufio.NewReader(r)
	buf, err := io.ReadAll(br)
	if err != nil {
		return "", err
	}
	h.Write(normalizeLineEndings(buf))
	return hex.EncodeToString(h.Sum(nil)), nil
}

func normalizeLineEndings(b []byte) []byte {
	s := strings.ReplaceAll(string(b), "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return []byte(s)
}
