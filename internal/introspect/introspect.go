// Package introspect queries a live SQLite connection's sqlite_master
// and PRAGMA surface to build ordered name->DDL mappings for tables,
// virtual tables, views, indices and triggers, plus per-column metadata.
// Every function here is read-only: it never mutates the database it
// is pointed at.
package introspect

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ddlsync/ddlsync/internal/normalize"
)

// Object is one row of sqlite_master, normalized.
type Object struct {
	Name string
	SQL  string // normalized CREATE ... statement
}

// ColumnInfo merges PRAGMA table_info and PRAGMA foreign_key_list for a
// single column. Two ColumnInfo values are "structurally equal" (used
// for rename detection, spec.md §4.6) iff their JSON encodings match
// once Name is blanked (see StructuralEqual).
type ColumnInfo struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	NotNull    bool    `json:"notnull"`
	Default    *string `json:"default"`
	PKPosition int     `json:"pk"`
	FKTable    string  `json:"fk_table,omitempty"`
	FKColumn   string  `json:"fk_column,omitempty"`
}

// Equal reports whether two ColumnInfo values are structurally
// identical, per spec.md §4.6 ("structural equality is JSON equality of
// the column info record").
func (c ColumnInfo) Equal(o ColumnInfo) bool {
	cj, _ := json.Marshal(c)
	oj, _ := json.Marshal(o)
	return string(cj) == string(oj)
}

// StructuralEqual is Equal but ignoring Name, used to detect a column
// rename: two differently-named columns whose type/nullability/default/
// pk-position/fk-target agree are candidates for a rename pairing.
func (c ColumnInfo) StructuralEqual(o ColumnInfo) bool {
	c.Name, o.Name = "", ""
	return c.Equal(o)
}

// Snapshot is the full set of schema objects and per-table columns for
// one database connection at one point in time.
type Snapshot struct {
	Tables        map[string]Object
	TableOrder    []string
	VirtualTables map[string]Object
	VirtualOrder  []string
	Views         map[string]Object
	ViewOrder     []string
	Indices       map[string]Object
	IndexOrder    []string
	Triggers      map[string]Object
	TriggerOrder  []string
	Columns       map[string]map[string]ColumnInfo // table -> column name -> info
	ColumnOrder   map[string][]string               // table -> ordered column names
}

// Options configures name-case handling. When IgnoreNameCase is true,
// object names are lower-cased after normalization and the normalized
// body is edited to match, per spec.md §4.1's name-case policy.
type Options struct {
	IgnoreNameCase bool
}

// Load builds a full Snapshot from db. It never writes to db.
func Load(db *sql.DB, opts Options) (*Snapshot, error) {
	snap := &Snapshot{
		Tables:        map[string]Object{},
		VirtualTables: map[string]Object{},
		Views:         map[string]Object{},
		Indices:       map[string]Object{},
		Triggers:      map[string]Object{},
		Columns:       map[string]map[string]ColumnInfo{},
		ColumnOrder:   map[string][]string{},
	}

	allTables, err := loadObjects(db, "table", opts)
	if err != nil {
		return nil, fmt.Errorf("introspect: loading tables: %w", err)
	}
	for _, name := range allTables.order {
		obj := allTables.byName[name]
		if isVirtualTableDDL(obj.SQL) {
			snap.VirtualTables[name] = obj
			snap.VirtualOrder = append(snap.VirtualOrder, name)
			continue
		}
		snap.Tables[name] = obj
		snap.TableOrder = append(snap.TableOrder, name)
	}

	views, err := loadObjects(db, "view", opts)
	if err != nil {
		return nil, fmt.Errorf("introspect: loading views: %w", err)
	}
	snap.Views, snap.ViewOrder = views.byName, views.order

	indices, err := loadObjects(db, "index", opts)
	if err != nil {
		return nil, fmt.Errorf("introspect: loading indices: %w", err)
	}
	snap.Indices, snap.IndexOrder = indices.byName, indices.order

	triggers, err := loadObjects(db, "trigger", opts)
	if err != nil {
		return nil, fmt.Errorf("introspect: loading triggers: %w", err)
	}
	snap.Triggers, snap.TriggerOrder = triggers.byName, triggers.order

	for _, name := range snap.TableOrder {
		cols, order, err := ColumnsOf(db, name)
		if err != nil {
			return nil, fmt.Errorf("introspect: loading columns for %s: %w", name, err)
		}
		snap.Columns[name] = cols
		snap.ColumnOrder[name] = order
	}

	return snap, nil
}

type objectSet struct {
	byName map[string]Object
	order  []string
}

// loadObjects runs the sqlite_master scan for one `type` value (table,
// view, index, trigger), normalizing each row's sql column and skipping
// internal sqlite_% rows.
func loadObjects(db *sql.DB, kind string, opts Options) (objectSet, error) {
	rows, err := db.Query(
		`SELECT name, sql FROM sqlite_master WHERE type = ? AND name NOT LIKE 'sqlite_%' ORDER BY rowid`,
		kind,
	)
	if err != nil {
		return objectSet{}, err
	}
	defer rows.Close()

	set := objectSet{byName: map[string]Object{}}
	for rows.Next() {
		var name string
		var ddl sql.NullString
		if err := rows.Scan(&name, &ddl); err != nil {
			return objectSet{}, err
		}
		if !ddl.Valid {
			// Auto-indices and similar objects have no sql text; skip them,
			// they are not user-authored schema objects.
			continue
		}
		body := normalize.SQL(ddl.String)
		if opts.IgnoreNameCase {
			body = normalize.LowerName(body, name)
			name = strings.ToLower(name)
		}
		set.byName[name] = Object{Name: name, SQL: body}
		set.order = append(set.order, name)
	}
	return set, rows.Err()
}

func isVirtualTableDDL(normalizedSQL string) bool {
	return strings.HasPrefix(strings.ToUpper(normalizedSQL), "CREATE VIRTUAL TABLE")
}

// ColumnsOf merges `PRAGMA table_info(table)` and
// `PRAGMA foreign_key_list(table)`, keyed by column name, returning one
// ColumnInfo per column plus the declaration order.
func ColumnsOf(db *sql.DB, table string) (map[string]ColumnInfo, []string, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols := map[string]ColumnInfo{}
	var order []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notNull int
		var dflt sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, nil, err
		}
		ci := ColumnInfo{
			Name:       name,
			Type:       strings.ToUpper(ctype),
			NotNull:    notNull != 0,
			PKPosition: pk,
		}
		if dflt.Valid {
			v := dflt.String
			ci.Default = &v
		}
		cols[name] = ci
		order = append(order, name)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	fkRows, err := db.Query(fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdent(table)))
	if err != nil {
		return nil, nil, err
	}
	defer fkRows.Close()
	for fkRows.Next() {
		var id, seq int
		var refTable, from, to, onUpdate, onDelete, match string
		if err := fkRows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, nil, err
		}
		if ci, ok := cols[from]; ok {
			ci.FKTable = refTable
			ci.FKColumn = to
			cols[from] = ci
		}
	}
	return cols, order, fkRows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
