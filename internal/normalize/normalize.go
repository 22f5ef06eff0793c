// Package normalize canonicalizes SQLite DDL strings so that two
// definitions are textually equal exactly when they are semantically
// equal under sqlite_master's storage rules.
package normalize

import (
	"regexp"
	"strings"
)

var (
	lineComment   = regexp.MustCompile(`--[^\n]*`)
	whitespaceRun = regexp.MustCompile(`\s+`)
	spaceBeforeOf = regexp.MustCompile(`\s+([(),])`)
	spaceAfterOf  = regexp.MustCompile(`([(),])\s+`)
	quotedIdent   = regexp.MustCompile(`"([A-Za-z_][A-Za-z0-9_]*)"`)
)

// SQL canonicalizes a raw sqlite_master.sql string. The output is
// deterministic and total: every input, including the empty string,
// produces a defined output. Applying SQL twice is a no-op
// (SQL(SQL(x)) == SQL(x)).
func SQL(raw string) string {
	s := lineComment.ReplaceAllString(raw, "")
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = spaceBeforeOf.ReplaceAllString(s, "$1")
	s = spaceAfterOf.ReplaceAllString(s, "$1")
	s = quotedIdent.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

// LowerName rewrites a normalized DDL body so that every occurrence of
// the token name (case-insensitive, identifier-bounded) is replaced by
// its lower-case form. Used when a Introspector is configured to ignore
// name case: names are lower-cased after normalization, and the body is
// edited so the rewritten name agrees with the lower-cased key under
// which the object is stored.
func LowerName(normalized, name string) string {
	if name == "" {
		return normalized
	}
	pattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
	lower := strings.ToLower(name)
	return pattern.ReplaceAllString(normalized, lower)
}
