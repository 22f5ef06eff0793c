package differ

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ddlsync/ddlsync/internal/introspect"
)

// tableStructuralBody returns ddl (a normalized "CREATE TABLE
// name(...)" statement) with the leading "CREATE TABLE name" stripped,
// leaving the column-list-and-constraints body spec.md §4.6 uses as the
// structural-equality key for table rename detection.
func tableStructuralBody(ddl string) string {
	idx := strings.IndexByte(ddl, '(')
	if idx < 0 {
		return ddl
	}
	return ddl[idx:]
}

// randomTempName returns a short, SQLite-identifier-safe random table
// name for the 12-step rebuild and for case-only renames' two-step
// dance.
func randomTempName(prefix string) string {
	return fmt.Sprintf("__ddlsync_%s_%s", prefix, strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

// isCaseOnlyRename reports whether old and new differ only in case —
// SQLite treats identifiers case-insensitively, so "users" -> "Users"
// is otherwise a no-op and needs the two-step temp-name dance (spec.md
// §4.6 "Rename detection").
func isCaseOnlyRename(old, new string) bool {
	return old != new && strings.EqualFold(old, new)
}

// renderColumnDef renders a column definition fragment suitable for
// CREATE TABLE / ALTER TABLE ADD COLUMN, from introspected column
// metadata. This is necessarily a re-synthesis (the original literal
// column-definition text is not preserved by PRAGMA table_info), so it
// normalizes type keywords and clause order; this is documented as a
// known simplification relative to the reference engine, which
// operates on the unparsed DDL text directly.
func renderColumnDef(ci introspect.ColumnInfo) string {
	var b strings.Builder
	b.WriteString(quoteIdent(ci.Name))
	b.WriteByte(' ')
	b.WriteString(ci.Type)
	if ci.NotNull {
		b.WriteString(" NOT NULL")
	}
	if ci.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(*ci.Default)
	}
	if ci.FKTable != "" {
		fmt.Fprintf(&b, " REFERENCES %s(%s)", quoteIdent(ci.FKTable), quoteIdent(ci.FKColumn))
	}
	return b.String()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
