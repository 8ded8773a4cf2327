package transfer

import "sync/atomic"

// IDGenerator hands out process-unique transfer request ids, starting at 1.
// It is safe for concurrent use.
type IDGenerator struct {
	last atomic.Uint64
}

// Next returns a new id, greater than every id returned before.
func (g *IDGenerator) Next() uint64 {
	return g.last.Add(1)
}

// Last returns the most recently issued id, 0 if none.
func (g *IDGenerator) Last() uint64 {
	return g.last.Load()
}
