package event

import (
	"github.com/roach88/lockstep/internal/ir"
)

// Selector breaks ties among eligible tasks when no handler pinned a
// decision.
type Selector uint8

const (
	// SelectorUndefined falls back to SelectorRandom.
	SelectorUndefined Selector = iota
	// SelectorRandom picks uniformly from tset with the engine PRNG.
	SelectorRandom
	// SelectorFirst picks the earliest-registered task in tset.
	SelectorFirst
)

// String returns the selector name.
func (s Selector) String() string {
	switch s {
	case SelectorUndefined:
		return "undefined"
	case SelectorRandom:
		return "random"
	case SelectorFirst:
		return "first"
	default:
		return "invalid"
	}
}

// Event is the mutable ballot for one capture point.
//
// Exported fields may be written freely by handlers. The change-point
// flag, the reason and the clock are guarded by methods so their
// monotonicity rules cannot be broken.
type Event struct {
	clock  ir.Clk
	chpt   bool
	reason ir.Reason

	// Next pins the decision. NoTask leaves it to the selector.
	Next ir.TaskID

	Readonly bool

	// Skip stops dispatch after the current handler.
	Skip bool

	// TSet holds the eligible tasks. Handlers only remove from it; the
	// engine seeds it from the live pool.
	TSet ir.TaskSet

	// Unblocked holds the tasks that returned from blocking calls since
	// the previous capture.
	Unblocked ir.TaskSet

	Selector     Selector
	ShouldRecord bool
	FilterLess   bool

	// Replay is set while the engine reproduces a recorded decision.
	Replay bool

	Filters AnyTaskFilters
}

// New creates an event stamped with clk whose eligible set is tset.
func New(clk ir.Clk, tset ir.TaskSet) *Event {
	return &Event{clock: clk, TSet: tset}
}

// Clock returns the logical clock of the capture.
func (e *Event) Clock() ir.Clk {
	return e.clock
}

// IsChangePoint reports whether the capture affects ordering.
func (e *Event) IsChangePoint() bool {
	return e.chpt
}

// MarkChangePoint turns the capture into a change point. There is no way
// back.
func (e *Event) MarkChangePoint() {
	e.chpt = true
}

// Reason returns the current reason.
func (e *Event) Reason() ir.Reason {
	return e.reason
}

// SetReason replaces the reason if r has strictly higher priority.
// Returns whether the reason changed.
func (e *Event) SetReason(r ir.Reason) bool {
	if r.Priority() <= e.reason.Priority() {
		return false
	}
	e.reason = r
	return true
}

// RestoreReason overwrites the reason with one loaded from a trace, unless
// the current reason ends the run. Replay uses it to reproduce recorded
// decisions verbatim.
func (e *Event) RestoreReason(r ir.Reason) {
	if e.reason.IsTerminate() && !r.IsTerminate() {
		return
	}
	e.reason = r
}

// AddFilter stacks an ANY_TASK filter. Panics beyond MaxFilters.
func (e *Event) AddFilter(f AnyTaskFilter) {
	e.Filters.Push(f)
}
