package app

import (
	"context"
	"errors"
	"testing"

	"ctfboard/internal/api"
	"ctfboard/internal/ui"
)

func demoConfig(t *testing.T, scenario string) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Demo.Enabled = true
	cfg.Demo.Scenario = scenario
	cfg.DataDir = t.TempDir()
	cfg.RequestTimeoutMS = 3000
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	return cfg
}

func TestHeadlessDemoScenarios(t *testing.T) {
	cases := []struct {
		scenario string
		wantErr  error
	}{
		{"board", nil},
		{"offline", api.ErrNetwork},
		{"auth_error", api.ErrUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.scenario, func(t *testing.T) {
			a, err := NewHeadless(demoConfig(t, tc.scenario))
			if err != nil {
				t.Fatalf("new headless: %v", err)
			}
			t.Cleanup(a.Close)

			err = a.Reload(context.Background())
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				snap := a.Snapshot()
				if snap.Loading || snap.LoadErr == nil {
					t.Fatalf("expected cleared loading flag and load error: %+v", snap)
				}
				return
			}
			if err != nil {
				t.Fatalf("reload: %v", err)
			}
			snap := a.Snapshot()
			if got := len(snap.Visible()); got != 5 {
				t.Fatalf("expected 5 visible challenges, got %d", got)
			}
			agg := snap.Aggregates()
			if agg.TotalPoints != 510 || agg.SolvedPoints != 10 {
				t.Fatalf("unexpected aggregates: %+v", agg)
			}
		})
	}
}

func TestHeadlessDemoSubmitJournals(t *testing.T) {
	a, err := NewHeadless(demoConfig(t, "board"))
	if err != nil {
		t.Fatalf("new headless: %v", err)
	}
	t.Cleanup(a.Close)

	ctx := context.Background()
	out, err := a.SubmitAnswer(ctx, 1, "flag{hello_board}")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.Result.Status != "already_solved" {
		t.Fatalf("expected already_solved for the seeded solve, got %+v", out.Result)
	}
	progress, err := a.Progress(ctx)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress[1].Attempts != 1 {
		t.Fatalf("expected one journaled attempt, got %+v", progress[1])
	}
}

func TestDemoScenarioOpensDialogs(t *testing.T) {
	cases := []struct {
		scenario string
		check    func(t *testing.T, v *fakeView)
	}{
		{"detail", func(t *testing.T, v *fakeView) {
			if d := v.lastDetail(t); d.ID != 2 || d.Loading || d.Err != "" {
				t.Fatalf("unexpected detail: %+v", d)
			}
		}},
		{"hints", func(t *testing.T, v *fakeView) {
			if h := v.lastHint(t); h.ID != 1 || h.Hint.Locked || h.Markdown == "" {
				t.Fatalf("expected open free hint, got %+v", h)
			}
		}},
		{"locked_hint", func(t *testing.T, v *fakeView) {
			if h := v.lastHint(t); !h.Hint.Locked || h.Hint.Cost != 50 {
				t.Fatalf("expected locked hint, got %+v", h)
			}
		}},
		{"solves", func(t *testing.T, v *fakeView) {
			v.mu.Lock()
			defer v.mu.Unlock()
			if len(v.solves) == 0 {
				t.Fatalf("expected solves dialog")
			}
			if got := v.solves[len(v.solves)-1]; got.Loading || len(got.Solves) != 1 {
				t.Fatalf("unexpected solves: %+v", got)
			}
		}},
		{"submit", func(t *testing.T, v *fakeView) {
			if d := v.lastDetail(t); d.ID != 5 {
				t.Fatalf("expected challenge 5 open, got %+v", d)
			}
			v.mu.Lock()
			defer v.mu.Unlock()
			if len(v.flashes) == 0 {
				t.Fatalf("expected an answer prompt flash")
			}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.scenario, func(t *testing.T) {
			view := &fakeView{}
			a, err := build(demoConfig(t, tc.scenario), func(string) ui.View { return view })
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			t.Cleanup(a.Close)

			if err := a.Reload(context.Background()); err != nil {
				t.Fatalf("reload: %v", err)
			}
			a.applyScenario()
			tc.check(t, view)
		})
	}
}
