// Package strategy holds the exploration strategies a run can be driven
// by. Each strategy is a dispatch handler that shapes the eligible set
// and the selector of change points; the engine registers it in its slot.
package strategy

import (
	"fmt"
	"sort"

	"github.com/roach88/lockstep/internal/dispatch"
	"github.com/roach88/lockstep/internal/engine"
	"github.com/roach88/lockstep/internal/event"
	"github.com/roach88/lockstep/internal/ir"
)

// Strategy names accepted by New.
const (
	NameRandom = "random"
	NameStatic = "static"
	NamePCT    = "pct"
	NamePOS    = "pos"
)

// Names lists the known strategies.
var Names = []string{NameRandom, NameStatic, NamePCT, NamePOS}

// Options tunes the priority-based strategies.
type Options struct {
	// PCTDepth is the number of priority change points PCT may insert.
	PCTDepth uint64
	// PCTLength is the expected number of scheduling steps of a run.
	PCTLength uint64
	// POSThreshold is the priority below which POS ages every task.
	POSThreshold uint64
	// POSDivisor scales priorities when POS ages them.
	POSDivisor uint64
}

// DefaultOptions returns the defaults used by the CLI.
func DefaultOptions() Options {
	return Options{
		PCTDepth:     3,
		PCTLength:    1000,
		POSThreshold: 1 << 20,
		POSDivisor:   10,
	}
}

// New builds the strategy called name.
func New(name string, opts Options) (engine.Scheduler, error) {
	switch name {
	case NameRandom, "":
		return NewRandom(), nil
	case NameStatic:
		return NewStatic(), nil
	case NamePCT:
		return NewPCT(opts.PCTDepth, opts.PCTLength), nil
	case NamePOS:
		return NewPOS(opts.POSThreshold, opts.POSDivisor), nil
	}
	return nil, fmt.Errorf("unknown strategy %q", name)
}

// Random breaks every tie with the engine PRNG.
type Random struct{}

// NewRandom creates the random strategy.
func NewRandom() *Random { return &Random{} }

func (*Random) Name() string        { return NameRandom }
func (*Random) Slot() dispatch.Slot { return dispatch.SlotPRNG }

// Handle sets the random selector unless another handler chose one.
func (*Random) Handle(_ *ir.Context, ev *event.Event) {
	if ev.Selector == event.SelectorUndefined {
		ev.Selector = event.SelectorRandom
	}
}

// Static always runs the earliest-registered eligible task. Runs under
// Static do not depend on the seed.
type Static struct{}

// NewStatic creates the static strategy.
func NewStatic() *Static { return &Static{} }

func (*Static) Name() string        { return NameStatic }
func (*Static) Slot() dispatch.Slot { return dispatch.SlotPRNG }

// Handle sets the first selector unless another handler chose one.
func (*Static) Handle(_ *ir.Context, ev *event.Event) {
	if ev.Selector == event.SelectorUndefined {
		ev.Selector = event.SelectorFirst
	}
}

// byPriority reorders tset by descending priority, ties broken by
// ascending task id.
func byPriority(tset ir.TaskSet, prio func(ir.TaskID) uint64) ir.TaskSet {
	ids := tset.IDs()
	sort.Slice(ids, func(i, j int) bool {
		pi, pj := prio(ids[i]), prio(ids[j])
		if pi != pj {
			return pi > pj
		}
		return ids[i] < ids[j]
	})
	return ir.NewTaskSet(ids...)
}

// decide hands the decision to the head of the sorted set.
func decide(ev *event.Event) {
	ev.Selector = event.SelectorFirst
	ev.Readonly = true
	ev.SetReason(ir.ReasonDeterministic)
}
