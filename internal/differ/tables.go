package differ

import (
	"fmt"

	"github.com/ddlsync/ddlsync/internal/diffutil"
	"github.com/ddlsync/ddlsync/internal/introspect"
	"github.com/ddlsync/ddlsync/internal/policy"
)

// diffTables implements spec.md §4.6's table diff: added tables are
// created outright, removed tables are dropped (subject to the
// destructive-change policy), a removed and an added table with matching
// structural bodies are resolved as a rename (policy.CategoryRename),
// and tables present on both sides get an in-place column diff choosing
// between an ALTER-TABLE path and a full 12-step rebuild.
func (d *diffRun) diffTables() error {
	oldSnap, err := introspect.Load(d.oldDB, introspect.Options{IgnoreNameCase: d.opts.IgnoreNameCase})
	if err != nil {
		return fmt.Errorf("differ: introspecting old tables: %w", err)
	}
	newSnap, err := introspect.Load(d.newDB, introspect.Options{IgnoreNameCase: d.opts.IgnoreNameCase})
	if err != nil {
		return fmt.Errorf("differ: introspecting new tables: %w", err)
	}

	commonSet := make(map[string]struct{})
	for name := range oldSnap.Tables {
		if _, ok := newSnap.Tables[name]; ok {
			commonSet[name] = struct{}{}
		}
	}

	var onlyOld, onlyNew []string
	for _, name := range oldSnap.TableOrder {
		if _, ok := commonSet[name]; !ok {
			onlyOld = append(onlyOld, name)
		}
	}
	for _, name := range newSnap.TableOrder {
		if _, ok := commonSet[name]; !ok {
			onlyNew = append(onlyNew, name)
		}
	}

	// Rename detection: structural-body equality over the tables that
	// exist on only one side. A case-only rename ("users" -> "Users")
	// is structurally identical and, under IgnoreNameCase, would already
	// be in commonSet; with case sensitivity on it shows up here too,
	// since the bodies match exactly.
	renames := diffutil.MappedDifference(
		oldSnap.Tables, onlyOld,
		newSnap.Tables, onlyNew,
		func(a, b introspect.Object) bool { return tableStructuralBody(a.SQL) == tableStructuralBody(b.SQL) },
	)
	renamedOld := make(map[string]string, len(renames)) // old -> new
	renamedNew := make(map[string]struct{}, len(renames))
	for _, r := range renames {
		renamedOld[r.Old] = r.New
		renamedNew[r.New] = struct{}{}
	}

	for _, r := range renames {
		if err := d.resolveTableRename(r.Old, r.New, oldSnap, newSnap); err != nil {
			return err
		}
	}

	for _, name := range onlyOld {
		if _, ok := renamedOld[name]; ok {
			continue
		}
		if err := d.resolveTableRemoval(name, oldSnap.Tables[name]); err != nil {
			return err
		}
	}

	for _, name := range onlyNew {
		if _, ok := renamedNew[name]; ok {
			continue
		}
		up := newSnap.Tables[name].SQL
		if err := d.execUp(up); err != nil {
			return err
		}
		d.emitDown(fmt.Sprintf("DROP TABLE %s", quoteIdent(name)))
		d.addSegment(segment{prefix: "create_", name: name})
	}

	// Tables present in both (including just-renamed ones, under their
	// new name) may still differ in column structure.
	for _, name := range newSnap.TableOrder {
		oldName := name
		if _, wasRenamed := renamedNew[name]; wasRenamed {
			for old, nw := range renamedOld {
				if nw == name {
					oldName = old
					break
				}
			}
		} else if _, existedBefore := oldSnap.Tables[name]; !existedBefore {
			continue
		}
		if err := d.diffTableColumns(oldName, name, oldSnap, newSnap); err != nil {
			return err
		}
	}

	return nil
}

func (d *diffRun) resolveTableRename(oldName, newName string, oldSnap, newSnap *introspect.Snapshot) error {
	decision, err := policy.Resolve(d.opts.Policies.ForCategory(policy.CategoryRename), policy.Subject{
		Category: policy.CategoryRename,
		Old:      oldName,
		New:      newName,
		Detail:   newSnap.Tables[newName].SQL,
	}, d.opts.Prompter)
	if err != nil {
		return err
	}

	switch decision {
	case policy.Skip:
		return nil
	case policy.RequireManual:
		d.addManualReason(fmt.Sprintf("table %q may have been renamed to %q; review and apply manually", oldName, newName))
		return nil
	}

	if isCaseOnlyRename(oldName, newName) {
		// SQLite's ALTER TABLE RENAME is a no-op for a case-only target
		// name, so a temp-name bounce is required to force the rename to
		// stick (spec.md §4.6 "Rename detection").
		tmp := randomTempName("rn")
		if err := d.execUp(fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quoteIdent(oldName), tmp)); err != nil {
			return err
		}
		if err := d.execUp(fmt.Sprintf("ALTER TABLE %s RENAME TO %s", tmp, quoteIdent(newName))); err != nil {
			return err
		}
		d.emitDown(fmt.Sprintf("ALTER TABLE %s RENAME TO %s", tmp, quoteIdent(oldName)))
		d.emitDown(fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quoteIdent(newName), tmp))
	} else {
		if err := d.execUp(fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quoteIdent(oldName), quoteIdent(newName))); err != nil {
			return err
		}
		d.emitDown(fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quoteIdent(newName), quoteIdent(oldName)))
	}
	d.res.TableRenames = append(d.res.TableRenames, RenamePair{Old: oldName, New: newName})
	d.addSegment(segment{prefix: "rename_", name: oldName + "_to_" + newName})
	return nil
}

func (d *diffRun) resolveTableRemoval(name string, obj introspect.Object) error {
	decision, err := policy.Resolve(d.opts.Policies.ForCategory(policy.CategoryDestructiveChange), policy.Subject{
		Category: policy.CategoryDestructiveChange,
		Old:      name,
		Detail:   obj.SQL,
	}, d.opts.Prompter)
	if err != nil {
		return err
	}
	switch decision {
	case policy.Skip:
		return nil
	case policy.RequireManual:
		d.addManualReason(fmt.Sprintf("table %q was removed from the declarative schema; review and apply manually", name))
	}
	if err := d.execUp(fmt.Sprintf("DROP TABLE %s", quoteIdent(name))); err != nil {
		return err
	}
	d.emitDown(obj.SQL)
	d.addSegment(segment{prefix: "remove_", name: name})
	return nil
}

// diffTableColumns resolves the column-level differences between
// oldName (in oldSnap) and newName (in newSnap, possibly the same name),
// choosing the ALTER-TABLE path when it alone can express every change
// and falling back to the 12-step rebuild otherwise.
func (d *diffRun) diffTableColumns(oldName, newName string, oldSnap, newSnap *introspect.Snapshot) error {
	oldCols := oldSnap.Columns[oldName]
	newCols := newSnap.Columns[newName]
	oldOrder := oldSnap.ColumnOrder[oldName]
	newOrder := newSnap.ColumnOrder[newName]

	var onlyOld, onlyNew []string
	for _, c := range oldOrder {
		if _, ok := newCols[c]; !ok {
			onlyOld = append(onlyOld, c)
		}
	}
	for _, c := range newOrder {
		if _, ok := oldCols[c]; !ok {
			onlyNew = append(onlyNew, c)
		}
	}

	colRenames := diffutil.MappedDifference(
		oldCols, onlyOld,
		newCols, onlyNew,
		func(a, b introspect.ColumnInfo) bool { return a.StructuralEqual(b) },
	)
	renamedOldCols := make(map[string]string, len(colRenames))
	renamedNewCols := make(map[string]struct{}, len(colRenames))
	for _, r := range colRenames {
		renamedOldCols[r.Old] = r.New
		renamedNewCols[r.New] = struct{}{}
	}

	var removedCols, addedCols []string
	for _, c := range onlyOld {
		if _, ok := renamedOldCols[c]; !ok {
			removedCols = append(removedCols, c)
		}
	}
	for _, c := range onlyNew {
		if _, ok := renamedNewCols[c]; !ok {
			addedCols = append(addedCols, c)
		}
	}

	modifiedCols := diffutil.MapDifference(oldCols, newCols, introspect.ColumnInfo.Equal)
	// Columns that are only reordered (same ColumnInfo, different
	// position) still require a rebuild, since SQLite cannot reorder
	// columns in place; detect that by comparing declaration order for
	// every column common to both sides.
	reordered := false
	if len(removedCols) == 0 && len(addedCols) == 0 && len(colRenames) == 0 {
		filteredOld := filterOut(oldOrder, removedCols)
		filteredNew := filterOut(newOrder, addedCols)
		if len(filteredOld) == len(filteredNew) {
			for i, c := range filteredOld {
				if filteredNew[i] != c {
					reordered = true
					break
				}
			}
		}
	}

	sameBody := tableStructuralBody(oldSnap.Tables[oldName].SQL) == tableStructuralBody(newSnap.Tables[newName].SQL)
	if sameBody && len(removedCols) == 0 && len(addedCols) == 0 && len(modifiedCols) == 0 && len(colRenames) == 0 {
		return nil
	}

	forceManual := false
	for _, c := range addedCols {
		ci := newCols[c]
		if ci.NotNull && ci.Default == nil {
			// A NOT NULL column with no DEFAULT cannot be backfilled
			// automatically: existing rows have no value to satisfy the
			// constraint. spec.md §4.6 forces manual review regardless of
			// the destructive-change policy setting.
			d.addManualReason(fmt.Sprintf("column %q.%q is NOT NULL with no default and cannot be added automatically; review and apply manually", newName, c))
			forceManual = true
		}
	}

	alterable := !reordered && len(modifiedCols) == 0
	if alterable {
		for _, c := range removedCols {
			if oldCols[c].FKTable != "" {
				alterable = false
				break
			}
		}
	}
	if alterable {
		for _, c := range addedCols {
			if newCols[c].FKTable != "" {
				alterable = false
				break
			}
		}
	}

	if len(removedCols) > 0 && !forceManual {
		decision, err := policy.Resolve(d.opts.Policies.ForCategory(policy.CategoryDestructiveChange), policy.Subject{
			Category: policy.CategoryDestructiveChange,
			Old:      newName + "." + joinNames(removedCols),
			Detail:   "dropped column(s)",
		}, d.opts.Prompter)
		if err != nil {
			return err
		}
		switch decision {
		case policy.Skip:
			removedCols = nil
		case policy.RequireManual:
			d.addManualReason(fmt.Sprintf("column(s) %s removed from table %q; review and apply manually", joinNames(removedCols), newName))
		}
	}

	if forceManual {
		return nil
	}

	for _, r := range colRenames {
		d.res.ColumnRenames = append(d.res.ColumnRenames, RenamePair{Table: newName, Old: r.Old, New: r.New})
		d.addSegment(segment{prefix: "rename_", name: newName + "_" + r.Old + "_to_" + r.New})
	}
	for _, c := range addedCols {
		d.addSegment(segment{prefix: "modify_", name: newName + "_add_" + c})
	}
	for _, c := range removedCols {
		d.addSegment(segment{prefix: "modify_", name: newName + "_drop_" + c})
	}
	for _, c := range modifiedCols {
		d.addSegment(segment{prefix: "modify_", name: newName + "_" + c})
	}

	if alterable {
		return d.rebuildViaAlter(oldName, newName, oldCols, newCols, removedCols, addedCols, colRenames)
	}
	return d.rebuildTable(oldName, newName, oldSnap, newSnap)
}

// rebuildViaAlter handles the subset of column changes SQLite's ALTER
// TABLE can express directly: add, drop, and rename column, with no
// type/constraint change and no reordering.
func (d *diffRun) rebuildViaAlter(oldName, newName string, oldCols, newCols map[string]introspect.ColumnInfo, removed, added []string, renames []diffutil.Rename) error {
	for _, r := range renames {
		if err := d.execUp(fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", quoteIdent(newName), quoteIdent(r.Old), quoteIdent(r.New))); err != nil {
			return err
		}
		d.emitDown(fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", quoteIdent(newName), quoteIdent(r.New), quoteIdent(r.Old)))
	}
	for _, c := range added {
		if err := d.execUp(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quoteIdent(newName), renderColumnDef(newCols[c]))); err != nil {
			return err
		}
		d.emitDown(fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", quoteIdent(newName), quoteIdent(c)))
	}
	for _, c := range removed {
		if err := d.execUp(fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", quoteIdent(newName), quoteIdent(c))); err != nil {
			return err
		}
		d.emitDown(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quoteIdent(newName), renderColumnDef(oldCols[c])))
	}
	return nil
}

// rebuildTable performs SQLite's canonical 12-step table rebuild
// (https://www.sqlite.org/lang_altertable.html#making_other_kinds_of_table_schema_changes):
// create the new shape under a temp name, copy surviving rows across by
// the columns common to both shapes, drop the original, rename the temp
// table into place. Applied when a column's type, constraints, or
// position changed, or when an added/removed column carries a foreign
// key, none of which ALTER TABLE can express in place.
//
// oldName is used only to key oldSnap's pre-change metadata: if this
// table was already renamed earlier in the same diffTables pass, oldDB
// itself was already renamed in place by execUp, so every statement run
// here against the live connection addresses the table as newName.
func (d *diffRun) rebuildTable(oldName, newName string, oldSnap, newSnap *introspect.Snapshot) error {
	tmp := randomTempName("rebuild")
	newDDL := newSnap.Tables[newName].SQL
	createTmp := replaceCreateTableName(newDDL, tmp)

	oldOrder := oldSnap.ColumnOrder[oldName]
	newOrder := newSnap.ColumnOrder[newName]
	newCols := newSnap.Columns[newName]

	// Pair up the columns that survive the rebuild under their new name,
	// in the new table's declared order, so the INSERT...SELECT lines up
	// positionally.
	newToOld := map[string]string{}
	for _, c := range oldOrder {
		if _, ok := newCols[c]; ok {
			newToOld[c] = c
		}
	}
	for _, r := range d.res.ColumnRenames {
		if r.Table == newName {
			newToOld[r.New] = r.Old
		}
	}

	var selectCols, insertCols []string
	for _, c := range newOrder {
		if old, ok := newToOld[c]; ok {
			insertCols = append(insertCols, quoteIdent(c))
			selectCols = append(selectCols, quoteIdent(old))
		}
	}

	if err := d.execUp(createTmp); err != nil {
		return err
	}
	if len(insertCols) > 0 {
		copyStmt := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
			quoteIdent(tmp), joinQuoted(insertCols), joinQuoted(selectCols), quoteIdent(newName))
		if err := d.execUp(copyStmt); err != nil {
			return err
		}
	}
	if err := d.execUp(fmt.Sprintf("DROP TABLE %s", quoteIdent(newName))); err != nil {
		return err
	}
	if err := d.execUp(fmt.Sprintf("ALTER TABLE %s RENAME TO %s", tmp, quoteIdent(newName))); err != nil {
		return err
	}

	// Down side rebuilds the OLD shape symmetrically, so migrate-down
	// restores exactly the prior schema and data for surviving columns.
	downTmp := randomTempName("rebuild_down")
	oldDDL := oldSnap.Tables[oldName].SQL
	createDownTmp := replaceCreateTableName(oldDDL, downTmp)
	oldToNew := map[string]string{}
	for k, v := range newToOld {
		oldToNew[v] = k
	}
	var downSelect, downInsert []string
	for _, c := range oldOrder {
		if nw, ok := oldToNew[c]; ok {
			downInsert = append(downInsert, quoteIdent(c))
			downSelect = append(downSelect, quoteIdent(nw))
		}
	}
	// Emitted last-step-first: Diff reverses the whole Down list, so these
	// run as create, copy, drop, rename.
	d.emitDown(fmt.Sprintf("ALTER TABLE %s RENAME TO %s", downTmp, quoteIdent(oldName)))
	d.emitDown(fmt.Sprintf("DROP TABLE %s", quoteIdent(newName)))
	if len(downInsert) > 0 {
		d.emitDown(fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
			quoteIdent(downTmp), joinQuoted(downInsert), joinQuoted(downSelect), quoteIdent(newName)))
	}
	d.emitDown(createDownTmp)

	return nil
}

func filterOut(order, exclude []string) []string {
	skip := make(map[string]struct{}, len(exclude))
	for _, c := range exclude {
		skip[c] = struct{}{}
	}
	var out []string
	for _, c := range order {
		if _, ok := skip[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}

func joinQuoted(quoted []string) string {
	out := ""
	for i, q := range quoted {
		if i > 0 {
			out += ", "
		}
		out += q
	}
	return out
}

// replaceCreateTableName rewrites a normalized "CREATE TABLE name(...)"
// statement (optionally "CREATE TABLE IF NOT EXISTS name(...)") to use
// newName in place of its original name, keeping the body untouched —
// used to stand up a rebuild's temp table under the target shape.
func replaceCreateTableName(ddl, newName string) string {
	body := tableStructuralBody(ddl)
	return "CREATE TABLE " + newName + body
}
