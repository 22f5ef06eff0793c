package differ

import (
	"fmt"

	"github.com/ddlsync/ddlsync/internal/introspect"
	"github.com/ddlsync/ddlsync/internal/policy"
)

// diffViews, diffTriggers and diffIndices share one shape: none of
// these object kinds support rename detection (Design Notes §9 —
// mirroring the reference engine, which treats them as drop-and-recreate
// only, never as rename candidates), and a changed or removed definition
// resolves against its own policy category rather than
// CategoryDestructiveChange.

func (d *diffRun) diffViews() error {
	return d.diffDropRecreate(
		func(s *introspect.Snapshot) (map[string]introspect.Object, []string) { return s.Views, s.ViewOrder },
		policy.CategoryChangedView,
		"view",
		"view_",
	)
}

func (d *diffRun) diffTriggers() error {
	return d.diffDropRecreate(
		func(s *introspect.Snapshot) (map[string]introspect.Object, []string) { return s.Triggers, s.TriggerOrder },
		policy.CategoryChangedTrigger,
		"trigger",
		"trigger_",
	)
}

func (d *diffRun) diffIndices() error {
	return d.diffDropRecreate(
		func(s *introspect.Snapshot) (map[string]introspect.Object, []string) { return s.Indices, s.IndexOrder },
		policy.CategoryChangedIndex,
		"index",
		"index_",
	)
}

type objectAccessor func(*introspect.Snapshot) (map[string]introspect.Object, []string)

// diffDropRecreate drops every removed or changed object of one kind
// (subject to its category's policy) and (re)creates every added or
// changed one. kind names the SQL object kind for the DROP statement;
// segPrefix names the migration-filename segment prefix.
func (d *diffRun) diffDropRecreate(access objectAccessor, category policy.Category, kind, segPrefix string) error {
	oldSnap, err := introspect.Load(d.oldDB, introspect.Options{IgnoreNameCase: d.opts.IgnoreNameCase})
	if err != nil {
		return fmt.Errorf("differ: introspecting old %ss: %w", kind, err)
	}
	newSnap, err := introspect.Load(d.newDB, introspect.Options{IgnoreNameCase: d.opts.IgnoreNameCase})
	if err != nil {
		return fmt.Errorf("differ: introspecting new %ss: %w", kind, err)
	}
	oldObjs, oldOrder := access(oldSnap)
	newObjs, newOrder := access(newSnap)

	// suppressed tracks names left in place by a Skip or RequireManual
	// decision in the old-object pass, so the new-object pass below
	// doesn't try to (re)create something that was never dropped.
	suppressed := make(map[string]struct{})

	for _, name := range oldOrder {
		oldObj := oldObjs[name]
		newObj, stillExists := newObjs[name]
		if stillExists && newObj.SQL == oldObj.SQL {
			continue
		}
		decision, err := policy.Resolve(d.opts.Policies.ForCategory(category), policy.Subject{
			Category: category,
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
			d.addManualReason(fmt.Sprintf("%s %q was %s; review and apply manually", kind, name, verb))
			suppressed[name] = struct{}{}
			continue
		}
		if err := d.execUp(fmt.Sprintf("DROP %s %s", kind, quoteIdent(name))); err != nil {
			return err
		}
		d.emitDown(oldObj.SQL)
		if !stillExists {
			d.addSegment(segment{prefix: "remove_" + segPrefix, name: name})
		}
	}

	for _, name := range newOrder {
		if _, ok := suppressed[name]; ok {
			continue
		}
		newObj := newObjs[name]
		oldObj, existed := oldObjs[name]
		if existed && oldObj.SQL == newObj.SQL {
			continue
		}
		if err := d.execUp(newObj.SQL); err != nil {
			return err
		}
		d.emitDown(fmt.Sprintf("DROP %s %s", kind, quoteIdent(name)))
		if existed {
			d.addSegment(segment{prefix: "modify_" + segPrefix, name: name})
		} else {
			d.addSegment(segment{prefix: "create_" + segPrefix, name: name})
		}
	}

	return nil
}
