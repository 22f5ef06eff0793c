package diffutil

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSetDifference(t *testing.T) {
	got := SetDifference([]string{"a", "b", "c"}, []string{"b"})
	want := []string{"a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SetDifference() = %v, want %v", got, want)
	}
}

func TestMapDifference(t *testing.T) {
	a := map[string]string{"x": "1", "y": "2", "z": "3"}
	b := map[string]string{"x": "1", "y": "9"}
	got := MapDifference(a, b, func(x, y string) bool { return x == y })
	if !reflect.DeepEqual(got, []string{"y"}) {
		t.Fatalf("MapDifference() = %v, want [y]", got)
	}
}

func TestMappedDifferenceLastWriterWins(t *testing.T) {
	a := map[string]string{"old1": "BODY", "old2": "BODY"}
	b := map[string]string{"new1": "BODY"}
	renames := MappedDifference(a, []string{"old1", "old2"}, b, []string{"new1"}, func(x, y string) bool { return x == y })
	if len(renames) != 1 {
		t.Fatalf("expected 1 rename, got %d: %v", len(renames), renames)
	}
	// old2 is scanned after old1 in keysA, so it is the last writer for new1.
	if renames[0].Old != "old2" || renames[0].New != "new1" {
		t.Fatalf("expected old2->new1 (last writer wins), got %+v", renames[0])
	}
}

func TestMappedDifferenceNoMatch(t *testing.T) {
	a := map[string]string{"old1": "A"}
	b := map[string]string{"new1": "B"}
	renames := MappedDifference(a, []string{"old1"}, b, []string{"new1"}, func(x, y string) bool { return x == y })
	if len(renames) != 0 {
		t.Fatalf("expected no renames, got %v", renames)
	}
}

func TestFileHashNormalizesLineEndings(t *testing.T) {
	dir := t.TempDir()
	lf := filepath.Join(dir, "lf.sql")
	crlf := filepath.Join(dir, "crlf.sql")
	if err := os.WriteFile(lf, []byte("CREATE TABLE t(id INTEGER);\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(crlf, []byte("CREATE TABLE t(id INTEGER);\r\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	h1, err := FileHash(lf)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := FileHash(crlf)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("expected LF-normalized hashes to match, got %s vs %s", h1, h2)
	}
}

func TestHashBytesMatchesFileHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.sql")
	content := []byte("CREATE TABLE t(id INTEGER);\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}
	fromFile, err := FileHash(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := HashBytes(content); got != fromFile {
		t.Fatalf("HashBytes() = %q, want %q", got, fromFile)
	}
}
