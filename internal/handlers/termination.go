package handlers

import (
	"fmt"

	"github.com/roach88/lockstep/internal/event"
	"github.com/roach88/lockstep/internal/ir"
)

// TerminationMode selects what the termination quota counts.
type TerminationMode uint8

const (
	TerminateNone TerminationMode = iota
	// TerminateClock bounds the logical clock.
	TerminateClock
	// TerminateChangePoints bounds the number of change points.
	TerminateChangePoints
	// TerminateSwitches bounds the number of times a different task
	// captured than the one before.
	TerminateSwitches
)

// ParseTerminationMode accepts "none", "clock", "chpt" and "switches".
func ParseTerminationMode(s string) (TerminationMode, error) {
	switch s {
	case "none", "":
		return TerminateNone, nil
	case "clock":
		return TerminateClock, nil
	case "chpt":
		return TerminateChangePoints, nil
	case "switches":
		return TerminateSwitches, nil
	}
	return TerminateNone, fmt.Errorf("unknown termination mode %q", s)
}

// String returns the mode name.
func (m TerminationMode) String() string {
	switch m {
	case TerminateNone:
		return "none"
	case TerminateClock:
		return "clock"
	case TerminateChangePoints:
		return "chpt"
	case TerminateSwitches:
		return "switches"
	}
	return fmt.Sprintf("TerminationMode(%d)", uint8(m))
}

// Termination shuts a run down once it exceeds its quota.
//
// The quota guarantees that exploring a program which never finishes on
// its own still ends: the run stops with SHUTDOWN and exit code 0, and
// the trace up to that point stays replayable.
type Termination struct {
	mode  TerminationMode
	limit uint64

	chpts    uint64
	switches uint64
	last     ir.TaskID
}

// NewTermination creates the handler.
func NewTermination(mode TerminationMode, limit uint64) *Termination {
	return &Termination{mode: mode, limit: limit}
}

// Handle implements dispatch.Handler.
func (t *Termination) Handle(ctx *ir.Context, ev *event.Event) {
	if ev.Reason().IsShutdown() {
		return
	}
	if ev.IsChangePoint() {
		t.chpts++
	}
	if t.last != ir.NoTask && ctx.ID != t.last {
		t.switches++
	}
	t.last = ctx.ID

	if t.Exceeded(ev.Clock()) {
		ev.SetReason(ir.ReasonShutdown)
	}
}

// Exceeded reports whether the quota is used up at clk.
func (t *Termination) Exceeded(clk ir.Clk) bool {
	switch t.mode {
	case TerminateClock:
		return uint64(clk) > t.limit
	case TerminateChangePoints:
		return t.chpts > t.limit
	case TerminateSwitches:
		return t.switches > t.limit
	}
	return false
}

// Current returns the count the mode compares against its limit.
func (t *Termination) Current(clk ir.Clk) uint64 {
	switch t.mode {
	case TerminateClock:
		return uint64(clk)
	case TerminateChangePoints:
		return t.chpts
	case TerminateSwitches:
		return t.switches
	}
	return 0
}

// Limit returns the configured limit.
func (t *Termination) Limit() uint64 {
	return t.limit
}
