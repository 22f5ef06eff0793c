// Package policy implements the four-valued action policy and the
// blocking prompt protocol spec.md §4.8 describes: every destructive or
// ambiguous change category resolves, eventually, to Proceed, Skip, or
// RequireManual.
package policy

import "fmt"

// Decision is the three-valued outcome every Action must eventually
// reduce to.
type Decision int

const (
	// Proceed applies the change silently.
	Proceed Decision = iota
	// Skip does not apply the change. The differ emits nothing for it,
	// not even a comment marker.
	Skip
	// RequireManual records a reason and makes the enclosing make/migrate
	// call raise ManualMigrationRequired. Table, virtual-table and column
	// removals are still emitted; renames and changed views, indexes and
	// triggers are not.
	RequireManual
)

func (d Decision) String() string {
	switch d {
	case Proceed:
		return "proceed"
	case Skip:
		return "skip"
	case RequireManual:
		return "require_manual_migration"
	default:
		return "unknown"
	}
}

// ParseDecision parses the string form produced by Decision.String.
// It does not accept "prompt"; Snapshot policy tables and configuration
// strings are parsed with ParseAction.
func ParseDecision(s string) (Decision, error) {
	switch s {
	case "proceed":
		return Proceed, nil
	case "skip":
		return Skip, nil
	case "require_manual_migration":
		return RequireManual, nil
	default:
		return 0, fmt.Errorf("policy: unknown action string %q", s)
	}
}

// Action is the four-valued per-category setting spec.md §4.8
// describes. Prompt is resolved to one of the other three values by a
// Prompter before the differ can act on it.
type Action int

const (
	// ActionPrompt blocks on a Prompter until a definite Decision is
	// obtained.
	ActionPrompt Action = iota
	// ActionProceed always resolves to Proceed.
	ActionProceed
	// ActionSkip always resolves to Skip.
	ActionSkip
	// ActionRequireManual always resolves to RequireManual.
	ActionRequireManual
)

// String returns the configuration-file spelling of a, as accepted by
// spec.md §6's action-policy fields.
func (a Action) String() string {
	switch a {
	case ActionPrompt:
		return "prompt"
	case ActionProceed:
		return "proceed"
	case ActionSkip:
		return "skip"
	case ActionRequireManual:
		return "require_manual_migration"
	default:
		return "unknown"
	}
}

// ParseAction parses the configuration-file spelling produced by
// Action.String, as read back from a plan.Snapshot's stored policy
// table (spec.md §4.7's "together with the caller's resolved action
// policy").
func ParseAction(s string) (Action, error) {
	switch s {
	case "prompt":
		return ActionPrompt, nil
	case "proceed":
		return ActionProceed, nil
	case "skip":
		return ActionSkip, nil
	case "require_manual_migration":
		return ActionRequireManual, nil
	default:
		return 0, fmt.Errorf("policy: unknown action string %q", s)
	}
}

// Category identifies which kind of ambiguous/destructive decision is
// being resolved, so a single Prompter implementation can render
// category-appropriate prompts.
type Category string

const (
	CategoryRename             Category = "rename"
	CategoryDestructiveChange  Category = "destructive_change"
	CategoryChangedIndex       Category = "changed_index"
	CategoryChangedView        Category = "changed_view"
	CategoryChangedTrigger     Category = "changed_trigger"
)

// Subject describes the specific object a prompt decision concerns, for
// rendering purposes.
type Subject struct {
	Category Category
	Old      string // for renames, the removed/old name; for other categories, the object name
	New      string // for renames, the added/new name; empty for other categories
	Detail   string // free-form extra context, e.g. the object's DDL
}

// Prompter resolves an ActionPrompt decision point interactively.
// Implementations must keep asking until they can return one of
// Proceed, Skip or RequireManual — spec.md §4.8: "a response must
// eventually reduce to one of the three."
type Prompter interface {
	Resolve(Subject) (Decision, error)
}

// Policies bundles the five action-policy categories spec.md §4.6/§4.7
// consult. Field names match the configuration keys enumerated in
// spec.md §6.
type Policies struct {
	OnRename            Action
	OnDestructiveChange Action
	OnChangedIndex      Action
	OnChangedView       Action
	OnChangedTrigger    Action
}

// Defaults returns the configuration defaults spec.md §6 specifies:
// OnRename and OnDestructiveChange prompt; the unalterable-object
// categories proceed automatically.
func Defaults() Policies {
	return Policies{
		OnRename:            ActionPrompt,
		OnDestructiveChange: ActionPrompt,
		OnChangedIndex:      ActionProceed,
		OnChangedView:       ActionProceed,
		OnChangedTrigger:    ActionProceed,
	}
}

// Resolve reduces action to a Decision, invoking prompter when action
// is ActionPrompt. prompter may be nil only when action is guaranteed
// not to be ActionPrompt; passing nil with ActionPrompt is a
// programmer error and returns an error rather than panicking.
func Resolve(action Action, subject Subject, prompter Prompter) (Decision, error) {
	switch action {
	case ActionProceed:
		return Proceed, nil
	case ActionSkip:
		return Skip, nil
	case ActionRequireManual:
		return RequireManual, nil
	case ActionPrompt:
		if prompter == nil {
			return 0, fmt.Errorf("policy: %s policy is PROMPT but no Prompter was configured", subject.Category)
		}
		return prompter.Resolve(subject)
	default:
		return 0, fmt.Errorf("policy: unknown action %d for category %s", action, subject.Category)
	}
}

// ParseReply maps the accepted single-letter prompt replies to a
// Decision: "y" -> Proceed, "n" -> Skip, "m" -> RequireManual. Any other
// reply is rejected so the caller can re-prompt, per spec.md §4.6's
// "anything else re-prompts" rule.
func ParseReply(reply string) (Decision, bool) {
	switch reply {
	case "y":
		return Proceed, true
	case "n":
		return Skip, true
	case "m":
		return RequireManual, true
	default:
		return 0, false
	}
}

// FuncPrompter adapts a plain function to the Prompter interface, for
// tests and for non-interactive callers that already know their
// answers (e.g. a CLI --yes flag that always proceeds).
type FuncPrompter func(Subject) (Decision, error)

// Resolve implements Prompter.
func (f FuncPrompter) Resolve(s Subject) (Decision, error) { return f(s) }

// ForCategory selects the Action configured for a given Category.
func (p Policies) ForCategory(c Category) Action {
	switch c {
	case CategoryRename:
		return p.OnRename
	case CategoryDestructiveChange:
		return p.OnDestructiveChange
	case CategoryChangedIndex:
		return p.OnChangedIndex
	case CategoryChangedView:
		return p.OnChangedView
	case CategoryChangedTrigger:
		return p.OnChangedTrigger
	default:
		return ActionRequireManual
	}
}
