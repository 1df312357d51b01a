package board

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleBoard() Board {
	return New(
		[]Challenge{
			{ID: 1, Name: "Warmup", Category: "web", Value: 100},
			{ID: 2, Name: "Overflow", Category: "pwn", Value: 200},
		},
		[]Solve{{ChallengeID: 1, Value: 100}},
	)
}

func ids(list []Challenge) []int {
	out := make([]int, 0, len(list))
	for _, c := range list {
		out = append(out, c.ID)
	}
	return out
}

func TestVisibleChallengesAllFiltersOn(t *testing.T) {
	b := sampleBoard()
	f := NewFilterState([]string{"web", "pwn"})

	got := ids(b.VisibleChallenges(f, SortSource))
	if diff := cmp.Diff([]int{1, 2}, got); diff != "" {
		t.Fatalf("visible mismatch (-want +got):\n%s", diff)
	}
	agg := b.Aggregates()
	if agg.TotalPoints != 300 {
		t.Fatalf("expected total 300, got %d", agg.TotalPoints)
	}
	if agg.SolvedPoints != 100 {
		t.Fatalf("expected solved 100, got %d", agg.SolvedPoints)
	}
}

func TestVisibleChallengesCompletedOnly(t *testing.T) {
	b := sampleBoard()
	f := NewFilterState([]string{"web", "pwn"})
	f.SetCompletion([]Completion{Completed})

	got := ids(b.VisibleChallenges(f, SortSource))
	if diff := cmp.Diff([]int{1}, got); diff != "" {
		t.Fatalf("visible mismatch (-want +got):\n%s", diff)
	}

	f.SetCompletion([]Completion{NotCompleted})
	got = ids(b.VisibleChallenges(f, SortSource))
	if diff := cmp.Diff([]int{2}, got); diff != "" {
		t.Fatalf("visible mismatch (-want +got):\n%s", diff)
	}
}

func TestVisibleChallengesMatchesPredicateForEveryFilter(t *testing.T) {
	b := New(
		[]Challenge{
			{ID: 1, Category: "web", Value: 100},
			{ID: 2, Category: "pwn", Value: 200},
			{ID: 3, Category: "web", Value: 300},
			{ID: 4, Category: "crypto", Value: 50},
			{ID: 5, Category: "pwn", Value: 75},
		},
		[]Solve{{ChallengeID: 1, Value: 100}, {ChallengeID: 5, Value: 75}},
	)
	cats := []string{"web", "pwn", "crypto"}

	// Every subset of categories crossed with every subset of completion states.
	for catMask := 0; catMask < 1<<len(cats); catMask++ {
		for compMask := 0; compMask < 1<<len(AllCompletion); compMask++ {
			var active []string
			for i, c := range cats {
				if catMask&(1<<i) != 0 {
					active = append(active, c)
				}
			}
			var comp []Completion
			for i, c := range AllCompletion {
				if compMask&(1<<i) != 0 {
					comp = append(comp, c)
				}
			}
			f := NewFilterState(cats)
			f.SetCategories(active)
			f.SetCompletion(comp)

			var want []int
			for _, c := range b.Challenges {
				state := NotCompleted
				if b.IsSolved(c.ID) {
					state = Completed
				}
				if contains(active, c.Category) && containsCompletion(comp, state) {
					want = append(want, c.ID)
				}
			}
			got := ids(b.VisibleChallenges(f, SortSource))
			if len(want) == 0 && len(got) == 0 {
				continue
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("cats=%v comp=%v (-want +got):\n%s", active, comp, diff)
			}
		}
	}
}

func TestIsSolvedWithoutIndexFallsBackToScan(t *testing.T) {
	b := Board{Solves: []Solve{{ChallengeID: 7}}}
	if !b.IsSolved(7) {
		t.Fatalf("expected 7 solved")
	}
	if b.IsSolved(8) {
		t.Fatalf("expected 8 unsolved")
	}
}

func TestSolvedPointsNeverExceedTotal(t *testing.T) {
	challenges := []Challenge{{ID: 1, Value: 10}, {ID: 2, Value: 0}, {ID: 3, Value: 450}}
	for n := 0; n <= len(challenges); n++ {
		var solves []Solve
		for _, c := range challenges[:n] {
			solves = append(solves, Solve{ChallengeID: c.ID, Value: c.Value})
		}
		agg := ComputeAggregates(challenges, solves)
		if agg.SolvedPoints > agg.TotalPoints {
			t.Fatalf("solved %d exceeds total %d", agg.SolvedPoints, agg.TotalPoints)
		}
	}
}

func TestCategoriesFirstSeenOrder(t *testing.T) {
	b := New([]Challenge{{ID: 1, Category: "web"}, {ID: 2, Category: "pwn"}, {ID: 3, Category: "web"}}, nil)
	if diff := cmp.Diff([]string{"web", "pwn"}, b.Categories()); diff != "" {
		t.Fatalf("categories (-want +got):\n%s", diff)
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsCompletion(list []Completion, v Completion) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
