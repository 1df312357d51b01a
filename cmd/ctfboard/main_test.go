package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/pflag"
)

// resetFlags restores every flag to its default so runs in one process do
// not leak values or Changed state into each other.
func resetFlags(t *testing.T) {
	t.Helper()
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else if err := f.Value.Set(f.DefValue); err != nil {
			t.Fatalf("reset flag %s: %v", f.Name, err)
		}
		f.Changed = false
	}
	rootCmd.PersistentFlags().VisitAll(reset)
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(reset)
	}
}

// execute runs the CLI against the demo backend and returns plain output.
func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CTFBOARD_DEMO_ENABLED", "true")
	resetFlags(t)
	t.Cleanup(func() { resetFlags(t) })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	args = append(args, "--data-dir", dir, "--log", filepath.Join(dir, "ctfboard.log"))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return ansi.Strip(out.String()), err
}

func TestChallengesPrintsDemoBoard(t *testing.T) {
	out, err := execute(t, t.TempDir(), "challenges")
	if err != nil {
		t.Fatalf("challenges: %v", err)
	}
	for _, want := range []string{"Sanity Check", "Cookie Monster", "Caesar's Salad", "10/510 points", "sort source"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Overflow 201") {
		t.Fatalf("hidden challenge must not be listed:\n%s", out)
	}
}

func TestChallengesCompletionFlags(t *testing.T) {
	out, err := execute(t, t.TempDir(), "challenges", "--completed")
	if err != nil {
		t.Fatalf("challenges --completed: %v", err)
	}
	if !strings.Contains(out, "Sanity Check") || strings.Contains(out, "Cookie Monster") {
		t.Fatalf("expected only solved challenges:\n%s", out)
	}

	_, err = execute(t, t.TempDir(), "challenges", "--completed=false", "--not-completed=false")
	if err == nil || !strings.Contains(err.Error(), "completion filter") {
		t.Fatalf("expected empty completion choice to be rejected, got %v", err)
	}
}

func TestSubmitPrintsVerdict(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, dir, "submit", "5", "FLAG{ROT13_IS_NOT_ENCRYPTION}")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !strings.Contains(out, "[correct]") {
		t.Fatalf("expected correct verdict, got %q", out)
	}

	out, err = execute(t, dir, "submit", "6", "flag{nope}")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !strings.Contains(out, "[incorrect]") {
		t.Fatalf("expected incorrect verdict, got %q", out)
	}

	// Attempts are journaled in the data directory and survive the process.
	out, err = execute(t, dir, "challenges")
	if err != nil {
		t.Fatalf("challenges: %v", err)
	}
	if !strings.Contains(out, "Lost in Packets") {
		t.Fatalf("expected board output:\n%s", out)
	}
}

func TestSubmitRejectsBadID(t *testing.T) {
	_, err := execute(t, t.TempDir(), "submit", "zero", "flag{x}")
	if err == nil || !strings.Contains(err.Error(), "invalid challenge id") {
		t.Fatalf("expected invalid id error, got %v", err)
	}
}
