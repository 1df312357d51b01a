package board

import "testing"

func TestToggleCategoryRoundTrip(t *testing.T) {
	f := NewFilterState([]string{"web", "pwn"})
	f.ToggleCategory("web")
	if f.HasCategory("web") {
		t.Fatalf("expected web off after toggle")
	}
	f.ToggleCategory("web")
	if !f.HasCategory("web") {
		t.Fatalf("expected web back on")
	}
}

func TestMergeKeepsUserChoices(t *testing.T) {
	f := NewFilterState([]string{"web", "pwn"})
	f.ToggleCategory("pwn")

	f.Merge([]string{"web", "pwn", "crypto"})

	if f.HasCategory("pwn") {
		t.Fatalf("expected pwn to stay off after merge")
	}
	if !f.HasCategory("crypto") {
		t.Fatalf("expected new category crypto to be active")
	}
	if got := len(f.Known()); got != 3 {
		t.Fatalf("expected 3 known categories, got %d", got)
	}
}

func TestResetRestoresEverything(t *testing.T) {
	f := NewFilterState([]string{"web", "pwn"})
	f.SetCategories(nil)
	f.SetCompletion(nil)
	f.Reset()
	if !f.HasCategory("web") || !f.HasCategory("pwn") {
		t.Fatalf("expected all categories after reset, got %v", f.Categories())
	}
	if len(f.Completion()) != 2 {
		t.Fatalf("expected both completion states after reset")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	f := NewFilterState([]string{"web"})
	c := f.Clone()
	c.ToggleCategory("web")
	if !f.HasCategory("web") {
		t.Fatalf("expected original filter unchanged")
	}
}

func TestZeroValueFilterHidesEverything(t *testing.T) {
	var f FilterState
	if f.Allows(Challenge{ID: 1, Category: "web"}, false) {
		t.Fatalf("zero filter should allow nothing")
	}
	f.ToggleCompletion(NotCompleted)
	f.ToggleCategory("web")
	if !f.Allows(Challenge{ID: 1, Category: "web"}, false) {
		t.Fatalf("expected toggled zero filter to allow web/not_completed")
	}
}

func TestParseCompletionAliases(t *testing.T) {
	for raw, want := range map[string]Completion{
		"completed":     Completed,
		"solved":        Completed,
		"not_completed": NotCompleted,
		"unsolved":      NotCompleted,
	} {
		got, ok := ParseCompletion(raw)
		if !ok || got != want {
			t.Fatalf("ParseCompletion(%q) = %q,%v want %q", raw, got, ok, want)
		}
	}
	if _, ok := ParseCompletion("maybe"); ok {
		t.Fatalf("expected unknown completion to be rejected")
	}
}

func TestRestrictKeepsNewCategoriesOff(t *testing.T) {
	f := NewFilterState(nil)
	f.Restrict([]string{"web"})
	f.Merge([]string{"web", "pwn"})
	if !f.HasCategory("web") || f.HasCategory("pwn") {
		t.Fatalf("expected only web active, got %v", f.Categories())
	}
	f.Reset()
	f.Merge([]string{"crypto"})
	if !f.HasCategory("pwn") || !f.HasCategory("crypto") {
		t.Fatalf("expected reset to lift the restriction, got %v", f.Categories())
	}
}

func TestDisableSurvivesMerge(t *testing.T) {
	f := NewFilterState(nil)
	f.Disable("misc")
	f.Merge([]string{"misc", "web"})
	if f.HasCategory("misc") || !f.HasCategory("web") {
		t.Fatalf("expected misc off and web on, got %v", f.Categories())
	}
	if got := f.Hidden(); len(got) != 1 || got[0] != "misc" {
		t.Fatalf("expected misc hidden, got %v", got)
	}
}
