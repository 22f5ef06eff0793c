package main

import (
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/ddlsync/ddlsync/internal/policy"
)

// huhPrompter resolves an ActionPrompt decision point with an
// interactive select, the CLI's implementation of policy.Prompter.
type huhPrompter struct{}

func newHuhPrompter() *huhPrompter { return &huhPrompter{} }

// Resolve implements policy.Prompter.
func (p *huhPrompter) Resolve(subject policy.Subject) (policy.Decision, error) {
	var decision policy.Decision
	options := []huh.Option[policy.Decision]{
		huh.NewOption("Proceed with this change", policy.Proceed),
		huh.NewOption("Skip it, leave the database as-is", policy.Skip),
		huh.NewOption("Require a manual migration for it", policy.RequireManual),
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[policy.Decision]().
				Title(promptTitle(subject)).
				Description(subject.Detail).
				Options(options...).
				Value(&decision),
		),
	)
	if err := form.Run(); err != nil {
		return 0, fmt.Errorf("prompt: %w", err)
	}
	return decision, nil
}

func promptTitle(subject policy.Subject) string {
	switch subject.Category {
	case policy.CategoryRename:
		return fmt.Sprintf("Treat %q -> %q as a rename?", subject.Old, subject.New)
	case policy.CategoryDestructiveChange:
		return fmt.Sprintf("Destructive change to %q", subject.Old)
	case policy.CategoryChangedIndex:
		return fmt.Sprintf("Index %q changed", subject.Old)
	case policy.CategoryChangedView:
		return fmt.Sprintf("View %q changed", subject.Old)
	case policy.CategoryChangedTrigger:
		return fmt.Sprintf("Trigger %q changed", subject.Old)
	default:
		return fmt.Sprintf("%s: %q", subject.Category, subject.Old)
	}
}
