package board

import "sync/atomic"

// Generation hands out request tickets. Only the newest ticket is current;
// responses carrying an older ticket are stale and must be dropped.
type Generation struct {
	n atomic.Uint64
}

func (g *Generation) Next() uint64 {
	return g.n.Add(1)
}

func (g *Generation) Current() uint64 {
	return g.n.Load()
}

func (g *Generation) IsCurrent(ticket uint64) bool {
	return ticket != 0 && g.n.Load() == ticket
}
