package event

import (
	"fmt"
	"strings"

	"github.com/roach88/lockstep/internal/ir"
)

// ReplayType tells the call site how the plan relates to a trace.
type ReplayType uint8

const (
	// ReplayOff means the decision was taken live.
	ReplayOff ReplayType = iota
	// ReplayAnyTask means the recorded decision was a wildcard.
	ReplayAnyTask
	// ReplayOn means the decision was loaded from the trace.
	ReplayOn
)

// String returns the replay type name.
func (r ReplayType) String() string {
	switch r {
	case ReplayOff:
		return "off"
	case ReplayAnyTask:
		return "any_task"
	case ReplayOn:
		return "on"
	default:
		return "invalid"
	}
}

// Plan lists what a call site must do after a capture.
//
// The steps are realized by the mediator in a fixed order: wake the
// target, then perform the call or block, then return, yield, resume and
// finally shut down. Continue means none of them apply and the caller
// proceeds immediately.
type Plan struct {
	Clock ir.Clk

	Continue bool

	// Wake is the task to make runnable, AnyTask for a wildcard, or NoTask
	// for no wake at all.
	Wake ir.TaskID

	Call     bool
	Block    bool
	Return   bool
	Yield    bool
	Resume   bool
	Snapshot bool
	Shutdown bool

	Reason    ir.Reason
	WithSlack bool
	Replay    ReplayType
	Args      [ir.MaxArgs]ir.Arg
	Filters   AnyTaskFilters
}

// Empty reports whether the plan holds no action.
func (p *Plan) Empty() bool {
	return !p.Continue && p.Wake == ir.NoTask && !p.Call && !p.Block &&
		!p.Return && !p.Yield && !p.Resume && !p.Snapshot && !p.Shutdown
}

// String renders the actions in realization order, e.g.
// "WAKE(3)|YIELD|RESUME".
func (p *Plan) String() string {
	var parts []string
	if p.Continue {
		parts = append(parts, "CONTINUE")
	}
	if p.Wake != ir.NoTask {
		parts = append(parts, fmt.Sprintf("WAKE(%s)", p.Wake))
	}
	for _, step := range []struct {
		on   bool
		name string
	}{
		{p.Call, "CALL"},
		{p.Block, "BLOCK"},
		{p.Return, "RETURN"},
		{p.Yield, "YIELD"},
		{p.Resume, "RESUME"},
		{p.Snapshot, "SNAPSHOT"},
		{p.Shutdown, "SHUTDOWN"},
	} {
		if step.on {
			parts = append(parts, step.name)
		}
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}
