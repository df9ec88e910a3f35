package engine

import "sync/atomic"

// Clock is a tree's logical clock.
//
// The tree record, every batch and every event are stamped with a strictly
// increasing seq from the tree's clock. The journal orders by seq only, so
// replay sees batches in the order they were applied regardless of wall
// time.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// though only the tree's worker goroutine advances it.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
