package engine

import (
	"sync/atomic"

	"github.com/roach88/lockstep/internal/ir"
)

// Clock is the logical clock of a run.
//
// It ticks once per capture, before any handler sees the event, so two
// captures never share a value. Replay compares record clocks against it
// to decide whether the recorded schedule still applies.
//
// Clock is safe for concurrent use, although the engine only ticks it
// under its decision lock.
type Clock struct {
	now atomic.Uint64
}

// NewClock creates a clock at 0. The first capture sees 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock positioned at start.
func NewClockAt(start ir.Clk) *Clock {
	c := &Clock{}
	c.now.Store(uint64(start))
	return c
}

// Next ticks the clock and returns the new value.
func (c *Clock) Next() ir.Clk {
	return ir.Clk(c.now.Add(1))
}

// Current returns the last value handed out by Next.
func (c *Clock) Current() ir.Clk {
	return ir.Clk(c.now.Load())
}
