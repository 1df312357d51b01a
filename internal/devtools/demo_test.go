package devtools

import "testing"

func TestResolveKnownScenarios(t *testing.T) {
	m := NewManager()
	for _, name := range m.Scenarios() {
		s := m.Resolve(name)
		if s.Name != name {
			t.Fatalf("expected scenario %q to resolve to itself, got %q", name, s.Name)
		}
	}
	if s := m.Resolve("hints"); s.OpenChallenge == 0 || s.OpenHint == 0 {
		t.Fatalf("expected hints scenario to open a challenge and hint, got %+v", s)
	}
	if s := m.Resolve("auth_error"); !s.Unauthenticated {
		t.Fatalf("expected auth_error scenario to drop credentials")
	}
}

func TestResolveFallsBackToBoard(t *testing.T) {
	if s := NewManager().Resolve("nope"); s.Name != "board" {
		t.Fatalf("expected board fallback, got %q", s.Name)
	}
}
