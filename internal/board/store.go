package board

import (
	"sync"
	"time"
)

// Snapshot is an immutable view of the store handed to read-only consumers.
type Snapshot struct {
	// Version increases with every published change; consumers keep the
	// highest version they have seen.
	Version    uint64
	Generation uint64
	Board      Board
	Filter     FilterState
	Sort       SortStrategy
	Loading    bool
	LoadErr    error
	// Stale marks a board restored from the local cache rather than fetched.
	Stale    bool
	LoadedAt time.Time
}

func (s Snapshot) Visible() []Challenge {
	return s.Board.VisibleChallenges(s.Filter, s.Sort)
}

func (s Snapshot) Aggregates() Aggregates {
	return s.Board.Aggregates()
}

func (s Snapshot) IsSolved(id int) bool {
	return s.Board.IsSolved(id)
}

// Store owns the board state. Mutations go through its methods; every
// change is published to subscribers after the lock is released.
type Store struct {
	mu      sync.Mutex
	gen     Generation
	snap    Snapshot
	subs    map[int]func(Snapshot)
	nextSub int
	now     func() time.Time
}

func NewStore(filter FilterState, strategy SortStrategy) *Store {
	if strategy == "" {
		strategy = SortSource
	}
	return &Store{
		snap: Snapshot{Filter: filter.Clone(), Sort: strategy},
		subs: map[int]func(Snapshot){},
		now:  time.Now,
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

func (s *Store) copyLocked() Snapshot {
	out := s.snap
	out.Filter = s.snap.Filter.Clone()
	return out
}

// Subscribe registers fn and immediately delivers the current snapshot.
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	snap := s.copyLocked()
	s.mu.Unlock()

	fn(snap)
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// BeginLoad starts a load and returns its ticket. Any load still in flight
// becomes stale.
func (s *Store) BeginLoad() uint64 {
	var ticket uint64
	s.mutate(func(snap *Snapshot) bool {
		ticket = s.gen.Next()
		snap.Generation = ticket
		snap.Loading = true
		snap.LoadErr = nil
		return true
	})
	return ticket
}

// ApplyLoad installs a fetched board if ticket is still current.
func (s *Store) ApplyLoad(ticket uint64, challenges []Challenge, solves []Solve) bool {
	applied := false
	s.mutate(func(snap *Snapshot) bool {
		if !s.gen.IsCurrent(ticket) {
			return false
		}
		snap.Board = New(challenges, solves)
		snap.Filter.Merge(snap.Board.Categories())
		snap.Loading = false
		snap.LoadErr = nil
		snap.Stale = false
		snap.LoadedAt = s.now()
		applied = true
		return true
	})
	return applied
}

// FailLoad records err for ticket and clears the loading flag. The previous
// board stays visible.
func (s *Store) FailLoad(ticket uint64, err error) bool {
	applied := false
	s.mutate(func(snap *Snapshot) bool {
		if !s.gen.IsCurrent(ticket) {
			return false
		}
		snap.Loading = false
		snap.LoadErr = err
		applied = true
		return true
	})
	return applied
}

// Seed shows a cached board until the first successful fetch.
func (s *Store) Seed(challenges []Challenge, solves []Solve, savedAt time.Time) bool {
	seeded := false
	s.mutate(func(snap *Snapshot) bool {
		if !snap.LoadedAt.IsZero() && !snap.Stale {
			return false
		}
		snap.Board = New(challenges, solves)
		snap.Filter.Merge(snap.Board.Categories())
		snap.Stale = true
		snap.LoadedAt = savedAt
		seeded = true
		return true
	})
	return seeded
}

func (s *Store) UpdateFilter(fn func(*FilterState)) {
	if fn == nil {
		return
	}
	s.mutate(func(snap *Snapshot) bool {
		fn(&snap.Filter)
		return true
	})
}

func (s *Store) SetSort(strategy SortStrategy) {
	s.mutate(func(snap *Snapshot) bool {
		if snap.Sort == strategy {
			return false
		}
		snap.Sort = strategy
		return true
	})
}

func (s *Store) mutate(fn func(*Snapshot) bool) {
	s.mu.Lock()
	if !fn(&s.snap) {
		s.mu.Unlock()
		return
	}
	s.snap.Version++
	snap := s.copyLocked()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub(snap)
	}
}
