// Package testutil holds deterministic helpers shared by tests and the
// scenario harness.
package testutil

import (
	"fmt"
	"sync"
)

// SeqClock hands out journal sequence numbers. Unlike engine.Clock it can
// be reset, so one scenario can be run twice with identical seqs.
type SeqClock struct {
	mu  sync.Mutex
	seq int64
}

// NewSeqClock returns a clock whose first Next is 1.
func NewSeqClock() *SeqClock {
	return &SeqClock{}
}

// Next advances the clock and returns the new seq.
func (c *SeqClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the last seq handed out, or 0.
func (c *SeqClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Label advances the clock and returns "<prefix>-<seq>" along with the seq.
// The harness names journaled batches with it.
func (c *SeqClock) Label(prefix string) (string, int64) {
	seq := c.Next()
	return fmt.Sprintf("%s-%d", prefix, seq), seq
}

// Reset rewinds the clock to 0.
func (c *SeqClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
