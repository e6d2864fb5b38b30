// Package dispatch applies an ordered set of handlers to one event and
// turns the result into a scheduling decision.
//
// Handlers are independent: each inspects the event, narrows the set of
// eligible tasks, pins a decision, marks a change point or attaches a
// reason. The dispatcher runs them in slot order, stops early when a
// handler sets Skip, and then derives the decision:
//
//  1. not a change point: the caller continues
//  2. a pinned decision wins verbatim
//  3. an empty eligible set yields AnyTask
//  4. otherwise the selector breaks the tie (RANDOM by default, FIRST for
//     the earliest-registered task)
package dispatch

import (
	"fmt"

	"github.com/roach88/lockstep/internal/event"
	"github.com/roach88/lockstep/internal/ir"
	"github.com/roach88/lockstep/internal/prng"
)

// Handler reacts to a capture. Handlers may write result arguments back
// into ctx.
type Handler interface {
	Handle(ctx *ir.Context, e *event.Event)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx *ir.Context, e *event.Event)

// Handle calls f(ctx, e).
func (f HandlerFunc) Handle(ctx *ir.Context, e *event.Event) {
	f(ctx, e)
}

// Dispatcher holds one handler per slot.
//
// Registration happens while the engine is being assembled; Dispatch is
// called under the engine's decision lock. The dispatcher itself holds no
// lock.
type Dispatcher struct {
	handlers [slotEnd]Handler
	rng      *prng.PRNG
}

// New creates an empty dispatcher drawing random choices from rng.
func New(rng *prng.PRNG) *Dispatcher {
	return &Dispatcher{rng: rng}
}

// Register installs h at slot. Registering twice on the same slot is a
// programming error and panics.
func (d *Dispatcher) Register(slot Slot, h Handler) {
	if !slot.Valid() {
		panic(fmt.Sprintf("dispatch: invalid slot %d", int(slot)))
	}
	if h == nil {
		panic(fmt.Sprintf("dispatch: nil handler for slot %s", slot))
	}
	if d.handlers[slot] != nil {
		panic(fmt.Sprintf("dispatch: duplicated handler for slot %s", slot))
	}
	d.handlers[slot] = h
}

// Registered reports whether a handler occupies slot.
func (d *Dispatcher) Registered(slot Slot) bool {
	return slot.Valid() && d.handlers[slot] != nil
}

// Dispatch runs the handlers over e and returns the chosen task.
func (d *Dispatcher) Dispatch(ctx *ir.Context, e *event.Event) ir.TaskID {
	for s := Slot(0); s < slotEnd && !e.Skip; s++ {
		if h := d.handlers[s]; h != nil {
			h.Handle(ctx, e)
		}
	}

	if !e.IsChangePoint() {
		if e.Next != ir.NoTask && e.Next != ctx.ID {
			panic(fmt.Sprintf("dispatch: task %s pinned next=%s without a change point", ctx.ID, e.Next))
		}
		return ctx.ID
	}

	if e.Next != ir.NoTask {
		return e.Next
	}

	if e.TSet.Len() == 0 {
		return ir.AnyTask
	}

	switch e.Selector {
	case event.SelectorUndefined, event.SelectorRandom:
		e.Selector = event.SelectorRandom
		if e.Reason() == ir.ReasonUnknown {
			e.SetReason(ir.ReasonDeterministic)
		}
		idx := d.rng.Range(0, uint64(e.TSet.Len()))
		return e.TSet.At(int(idx))
	case event.SelectorFirst:
		return e.TSet.At(0)
	}

	panic(fmt.Sprintf("dispatch: undecided event at clk %d with selector %s", e.Clock(), e.Selector))
}
