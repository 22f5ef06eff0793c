package differ

import (
	"fmt"

	"github.com/ddlsync/ddlsync/internal/introspect"
	"github.com/ddlsync/ddlsync/internal/policy"
)

// diffVirtualTables diffs CREATE VIRTUAL TABLE objects (fts5, rtree,
// and similar module-backed tables). Virtual tables are always
// drop-and-recreate: SQLite has no ALTER TABLE support for them. Their
// shadow tables (the ordinary tables a virtual-table module creates
// alongside it, e.g. an fts5 table's *_data/*_idx/*_content tables) are
// not filtered out: introspect.Load returns them as ordinary tables, and
// this sub-diff runs before diffTables so that, once a changed virtual
// table is recreated, its shadow tables compare equal on both sides.
// When a virtual-table change is skipped, its shadow tables reach the
// regular-table diff like any other table.
func (d *diffRun) diffVirtualTables() error {
	oldSnap, err := introspect.Load(d.oldDB, introspect.Options{IgnoreNameCase: d.opts.IgnoreNameCase})
	if err != nil {
		return fmt.Errorf("differ: introspecting old virtual tables: %w", err)
	}
	newSnap, err := introspect.Load(d.newDB, introspect.Options{IgnoreNameCase: d.opts.IgnoreNameCase})
	if err != nil {
		return fmt.Errorf("differ: introspecting new virtual tables: %w", err)
	}

	// suppressed tracks virtual tables left in place by a Skip decision,
	// so the create pass below doesn't try to recreate something that
	// was never dropped.
	suppressed := make(map[string]struct{})

	for _, name := range oldSnap.VirtualOrder {
		oldObj := oldSnap.VirtualTables[name]
		newObj, stillExists := newSnap.VirtualTables[name]
		if stillExists && newObj.SQL == oldObj.SQL {
			continue
		}
		decision, err := policy.Resolve(d.opts.Policies.ForCategory(policy.CategoryDestructiveChange), policy.Subject{
			Category: policy.CategoryDestructiveChange,
			Old:      name,
			Detail:   oldObj.SQL,
		}, d.opts.Prompter)
		if err != nil {
			return err
		}
		switch decision {
		case policy.Skip:
			suppressed[name] = struct{}{}
			continue
		case policy.RequireManual:
			verb := "changed"
			if !stillExists {
				verb = "removed"
			}
			d.addManualReason(fmt.Sprintf("virtual table %q was %s; review and apply manually", name, verb))
		}
		if err := d.execUp(fmt.Sprintf("DROP TABLE %s", quoteIdent(name))); err != nil {
			return err
		}
		d.emitDown(oldObj.SQL)
		if !stillExists {
			d.addSegment(segment{prefix: "remove-virtual_", name: name})
		}
	}

	for _, name := range newSnap.VirtualOrder {
		if _, ok := suppressed[name]; ok {
			continue
		}
		oldObj, existed := oldSnap.VirtualTables[name]
		newObj := newSnap.VirtualTables[name]
		if existed && oldObj.SQL == newObj.SQL {
			continue
		}
		if err := d.execUp(newObj.SQL); err != nil {
			return err
		}
		d.emitDown(fmt.Sprintf("DROP TABLE %s", quoteIdent(name)))
		if existed {
			d.addSegment(segment{prefix: "modify-virtual_", name: name})
		} else {
			d.addSegment(segment{prefix: "create-virtual_", name: name})
		}
	}

	return nil
}
