package board

// Board is one fetched pair of challenge and solve lists plus the solve index.
type Board struct {
	Challenges []Challenge
	Solves     []Solve

	solved map[int]struct{}
}

func New(challenges []Challenge, solves []Solve) Board {
	b := Board{
		Challenges: append([]Challenge(nil), challenges...),
		Solves:     append([]Solve(nil), solves...),
		solved:     make(map[int]struct{}, len(solves)),
	}
	for _, s := range solves {
		b.solved[s.ChallengeID] = struct{}{}
	}
	return b
}

// IsSolved reports whether challengeID appears in the solve list.
func (b Board) IsSolved(challengeID int) bool {
	if b.solved == nil {
		for _, s := range b.Solves {
			if s.ChallengeID == challengeID {
				return true
			}
		}
		return false
	}
	_, ok := b.solved[challengeID]
	return ok
}

// VisibleChallenges returns the challenges that satisfy the filter, in
// source order, then ordered by strategy.
func (b Board) VisibleChallenges(f FilterState, strategy SortStrategy) []Challenge {
	out := make([]Challenge, 0, len(b.Challenges))
	for _, c := range b.Challenges {
		if f.Allows(c, b.IsSolved(c.ID)) {
			out = append(out, c)
		}
	}
	strategy.Apply(out)
	return out
}

func (b Board) Aggregates() Aggregates {
	return ComputeAggregates(b.Challenges, b.Solves)
}

// Categories lists the distinct challenge categories in first-seen order.
func (b Board) Categories() []string {
	seen := map[string]bool{}
	out := []string{}
	for _, c := range b.Challenges {
		if seen[c.Category] {
			continue
		}
		seen[c.Category] = true
		out = append(out, c.Category)
	}
	return out
}

func (b Board) Challenge(id int) (Challenge, bool) {
	for _, c := range b.Challenges {
		if c.ID == id {
			return c, true
		}
	}
	return Challenge{}, false
}

// ComputeAggregates sums every challenge value and every solve value.
func ComputeAggregates(challenges []Challenge, solves []Solve) Aggregates {
	var agg Aggregates
	for _, c := range challenges {
		agg.TotalPoints += c.Value
	}
	for _, s := range solves {
		agg.SolvedPoints += s.Value
	}
	return agg
}
