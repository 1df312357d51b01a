package fixtures

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDemoFixtureLoads(t *testing.T) {
	board, err := Demo()
	if err != nil {
		t.Fatalf("demo: %v", err)
	}
	if len(board.Challenges) != 6 {
		t.Fatalf("expected 6 demo challenges, got %d", len(board.Challenges))
	}
	if board.Challenges[0].Type != "standard" || board.Challenges[0].Flags[0].Type != "static" {
		t.Fatalf("expected defaults applied, got %+v", board.Challenges[0])
	}
	if len(board.Solves) != 1 || board.Solves[0].ChallengeID != 1 {
		t.Fatalf("unexpected demo solves %+v", board.Solves)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	body := `kind: board
schema_version: 1
name: Tiny
start: 2026-10-01T00:00:00Z
end: 2026-10-02T00:00:00Z
challenges:
  - id: 1
    name: One
    category: web
    value: 100
    flags:
      - content: flag{one}
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	board, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if board.Path != path {
		t.Fatalf("expected path recorded")
	}
	if board.Start == nil || board.End == nil {
		t.Fatalf("expected window parsed")
	}
	if board.Open(time.Date(2026, time.September, 30, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected closed before start")
	}
	if !board.Open(time.Date(2026, time.October, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected open inside window")
	}
	if board.Open(time.Date(2026, time.October, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected closed at end")
	}
}

func TestValidateRejectsBrokenBoards(t *testing.T) {
	base := func() Board {
		return Board{
			Kind:          BoardKind,
			SchemaVersion: 1,
			Name:          "x",
			Challenges: []ChallengeSpec{
				{ID: 1, Name: "a", Category: "web", Flags: []FlagSpec{{Type: "static", Content: "f"}}},
				{ID: 2, Name: "b", Category: "pwn", Flags: []FlagSpec{{Type: "static", Content: "g"}}},
			},
		}
	}
	cases := map[string]func(*Board){
		"wrong kind":         func(b *Board) { b.Kind = "pack" },
		"future schema":      func(b *Board) { b.SchemaVersion = 2 },
		"missing name":       func(b *Board) { b.Name = "" },
		"duplicate id":       func(b *Board) { b.Challenges[1].ID = 1 },
		"self requirement":   func(b *Board) { b.Challenges[0].Requires = []int{1} },
		"unknown required":   func(b *Board) { b.Challenges[0].Requires = []int{9} },
		"missing flag":       func(b *Board) { b.Challenges[0].Flags = nil },
		"bad regex":          func(b *Board) { b.Challenges[0].Flags = []FlagSpec{{Type: "regex", Content: "("}} },
		"unknown flag type":  func(b *Board) { b.Challenges[0].Flags[0].Type = "eval" },
		"duplicate hint":     func(b *Board) { h := []HintSpec{{ID: 1, Content: "h"}}; b.Challenges[0].Hints = h; b.Challenges[1].Hints = h },
		"solve of unknown":   func(b *Board) { b.Solves = []SolveSpec{{ChallengeID: 5}} },
		"negative value":     func(b *Board) { b.Challenges[0].Value = -1 },
		"window out of order": func(b *Board) {
			start := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
			end := start.Add(-time.Hour)
			b.Start, b.End = &start, &end
		},
	}
	if err := func() error { b := base(); return b.Validate() }(); err != nil {
		t.Fatalf("base board should validate: %v", err)
	}
	for name, mutate := range cases {
		b := base()
		mutate(&b)
		if err := b.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestFlagMatching(t *testing.T) {
	static := FlagSpec{Type: "static", Content: "flag{A}"}
	if !static.Match("flag{A}") || static.Match("flag{a}") {
		t.Fatalf("static flag must be exact")
	}
	folded := FlagSpec{Type: "static", Content: "flag{A}", CaseInsensitive: true}
	if !folded.Match("FLAG{a}") {
		t.Fatalf("case-insensitive flag should match")
	}
	re := FlagSpec{Type: "regex", Content: `flag\{\d+\}`}
	if !re.Match("flag{123}") || re.Match("xflag{123}") || re.Match("flag{123}x") {
		t.Fatalf("regex flag must match the whole answer")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte("kind: [")); err == nil {
		t.Fatalf("expected yaml error")
	}
	_, err := Parse([]byte("kind: board\nschema_version: 1\nname: x\n"))
	if err == nil || !strings.Contains(err.Error(), "Challenges") {
		t.Fatalf("expected missing challenges error, got %v", err)
	}
}
