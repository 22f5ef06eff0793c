package policy

import "testing"

func TestResolveNonPromptActions(t *testing.T) {
	cases := []struct {
		action Action
		want   Decision
	}{
		{ActionProceed, Proceed},
		{ActionSkip, Skip},
		{ActionRequireManual, RequireManual},
	}
	for _, c := range cases {
		got, err := Resolve(c.action, Subject{Category: CategoryRename}, nil)
		if err != nil {
			t.Fatalf("unexpected error for %v: %v", c.action, err)
		}
		if got != c.want {
			t.Fatalf("Resolve(%v) = %v, want %v", c.action, got, c.want)
		}
	}
}

func TestResolvePromptRequiresPrompter(t *testing.T) {
	if _, err := Resolve(ActionPrompt, Subject{Category: CategoryRename}, nil); err == nil {
		t.Fatal("expected error when ActionPrompt has no Prompter")
	}
}

func TestResolvePromptDelegates(t *testing.T) {
	p := FuncPrompter(func(s Subject) (Decision, error) { return RequireManual, nil })
	got, err := Resolve(ActionPrompt, Subject{Category: CategoryDestructiveChange}, p)
	if err != nil {
		t.Fatal(err)
	}
	if got != RequireManual {
		t.Fatalf("expected RequireManual, got %v", got)
	}
}

func TestParseReply(t *testing.T) {
	cases := map[string]Decision{"y": Proceed, "n": Skip, "m": RequireManual}
	for reply, want := range cases {
		got, ok := ParseReply(reply)
		if !ok || got != want {
			t.Fatalf("ParseReply(%q) = (%v, %v), want (%v, true)", reply, got, ok, want)
		}
	}
	if _, ok := ParseReply("what"); ok {
		t.Fatal("expected ParseReply to reject unknown replies")
	}
}

func TestDefaultsMatchSpec(t *testing.T) {
	d := Defaults()
	if d.OnRename != ActionPrompt || d.OnDestructiveChange != ActionPrompt {
		t.Fatalf("expected rename/destructive to default to prompt: %+v", d)
	}
	if d.OnChangedIndex != ActionProceed || d.OnChangedView != ActionProceed || d.OnChangedTrigger != ActionProceed {
		t.Fatalf("expected unalterable-object categories to default to proceed: %+v", d)
	}
}

func TestForCategory(t *testing.T) {
	p := Policies{OnRename: ActionSkip, OnDestructiveChange: ActionProceed}
	if p.ForCategory(CategoryRename) != ActionSkip {
		t.Fatal("expected ForCategory(rename) to return OnRename")
	}
	if p.ForCategory(CategoryDestructiveChange) != ActionProceed {
		t.Fatal("expected ForCategory(destructive_change) to return OnDestructiveChange")
	}
}

func TestActionString(t *testing.T) {
	cases := map[Action]string{
		ActionPrompt:        "prompt",
		ActionProceed:       "proceed",
		ActionSkip:          "skip",
		ActionRequireManual: "require_manual_migration",
	}
	for action, want := range cases {
		if got := action.String(); got != want {
			t.Fatalf("%v.String() = %q, want %q", action, got, want)
		}
	}
}

func TestParseDecision(t *testing.T) {
	d, err := ParseDecision("proceed")
	if err != nil || d != Proceed {
		t.Fatalf("ParseDecision(proceed) = (%v, %v)", d, err)
	}
	if _, err := ParseDecision("bogus"); err == nil {
		t.Fatal("expected error for unknown decision string")
	}
}
