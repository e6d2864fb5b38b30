package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/lockstep/internal/event"
	"github.com/roach88/lockstep/internal/ir"
)

// sequence runs one capture through the handlers and turns the decision
// into a plan. Called with e.mu held.
//
// Order of operations:
//  1. tick the clock
//  2. settle a wildcard decision left by the previous capture
//  3. admit new tasks and drain tasks back from blocking calls
//  4. seed the event from the live pool
//  5. consult the input trace
//  6. dispatch, then let a loaded record override the live decision
//  7. record the decision and build the plan
func (e *Engine) sequence(ctx *ir.Context) event.Plan {
	clk := e.clock.Next()
	e.stats.Captures++
	e.metrics.captures.Inc()
	e.metrics.clock.Set(float64(clk))

	// Whoever captures first after a wildcard wake is the task that ran.
	if err := e.recorder.settle(ctx.ID); err != nil {
		e.fail(err)
	}

	e.admit(ctx)

	var unblocked ir.TaskSet
	if e.unblocked.DrainInto(&unblocked) > 0 {
		for _, id := range unblocked.IDs() {
			e.inCall.Remove(id)
		}
	}

	ev := event.New(clk, e.eligible(ctx))
	ev.Unblocked = unblocked
	ev.ShouldRecord = e.granularity&RecordCaptures != 0

	// Blocking calls and task exit always hand control away.
	if ctx.Cat.IsSlack() || ctx.Cat == ir.CatTaskFini {
		ev.MarkChangePoint()
	}
	if r := ir.Reason(e.injected.Load()); r != ir.ReasonUnknown {
		ev.MarkChangePoint()
		ev.SetReason(r)
	}

	ry := e.recorder.lookup(ctx, clk)
	ev.Replay = ry.status == replayLoad || ry.status == replayForce

	next := e.dispatcher.Dispatch(ctx, ev)
	next = e.applyReplay(ctx, ev, next, ry)

	if ctx.Cat == ir.CatTaskFini {
		e.live.Remove(ctx.ID)
	}

	if ev.IsChangePoint() {
		e.stats.ChangePoints++
		e.metrics.changePoints.Inc()
	}
	if next != ctx.ID {
		e.stats.Switches++
		e.metrics.switches.Inc()
	}

	e.record(ctx, ev, next)

	plan := e.plan(ctx, ev, next, ry)
	// A creator is back as soon as the new task exists; only calls and
	// blocks keep the caller out of the pool until Return.
	if ctx.Cat.IsSlack() && (plan.Call || plan.Block) {
		e.inCall.Add(ctx.ID)
	}

	if e.logger.Enabled(context.Background(), slog.LevelDebug) {
		e.logger.Debug("capture",
			"clk", uint64(clk),
			"task", ctx.ID.String(),
			"cat", ctx.Cat.String(),
			"tset", ev.TSet.String(),
			"next", next.String(),
			"reason", ev.Reason().String(),
			"replay", ry.status.String(),
			"plan", plan.String(),
		)
	}
	return plan
}

// admit adds a task to the live pool on its first capture. TaskFini never
// admits: a task that exits without having run is not a candidate.
func (e *Engine) admit(ctx *ir.Context) {
	if ctx.Cat == ir.CatTaskFini || e.live.Has(ctx.ID) {
		return
	}
	e.live.Add(ctx.ID)
	e.switcher.Register(ctx.ID)
}

// eligible seeds tset from the live pool in registration order. Tasks in
// a blocking call are excluded, and so is the caller when it is about to
// block or exit.
func (e *Engine) eligible(ctx *ir.Context) ir.TaskSet {
	self := ctx.Cat.IsSlack() || ctx.Cat == ir.CatTaskFini
	var tset ir.TaskSet
	for i := 0; i < e.live.Len(); i++ {
		id := e.live.At(i)
		if e.inCall.Has(id) || (self && id == ctx.ID) {
			continue
		}
		tset.Add(id)
	}
	return tset
}

// applyReplay lets the input trace override the live decision.
func (e *Engine) applyReplay(ctx *ir.Context, ev *event.Event, next ir.TaskID, ry replayResult) ir.TaskID {
	switch ry.status {
	case replayLoad, replayForce:
		if ry.id != ctx.ID && !e.live.Has(ry.id) {
			e.diverge(ev, &RuntimeError{
				Code:    ErrCodeDiverged,
				Message: fmt.Sprintf("recorded task %s is not runnable", ry.id),
				Clock:   ev.Clock(),
				Task:    ctx.ID,
			})
			return next
		}
		ev.MarkChangePoint()
		ev.RestoreReason(ry.reason)
		return ry.id
	case replayCont:
		// No record here: the recorded run kept the caller going, unless
		// the caller could not keep going at all.
		if next == ir.AnyTask || ctx.Cat.IsSlack() || ctx.Cat == ir.CatTaskFini {
			return next
		}
		return ctx.ID
	case replayDiverged:
		e.diverge(ev, ry.err)
	case replayDone:
		if e.recorder.input != nil {
			e.recorder.input = nil
			e.logger.Info("replay finished, continuing live", "clk", uint64(ev.Clock()))
		}
	}
	return next
}

func (e *Engine) diverge(ev *event.Event, err *RuntimeError) {
	ev.MarkChangePoint()
	ev.SetReason(ir.ReasonDiverged)
	e.metrics.divergences.Inc()
	e.fail(err)
}

// record appends the decision to the output trace. Decisions that switch
// tasks are always recorded; a wildcard is recorded once the woken task
// is known.
func (e *Engine) record(ctx *ir.Context, ev *event.Event, next ir.TaskID) {
	if !e.recorder.recording() {
		return
	}

	var err *RuntimeError
	pc := uint64(ctx.PC)
	switch {
	case next == ir.AnyTask:
		if ctx.Cat != ir.CatTaskCreate && ev.IsChangePoint() {
			e.recorder.deferAny(ev.Clock(), ctx.Cat, ev.Reason(), pc)
		}
	case next != ctx.ID:
		err = e.recorder.sched(next, ev.Clock(), ctx.Cat, ev.Reason(), pc)
	case ev.ShouldRecord,
		ev.IsChangePoint() && e.granularity&RecordChangePoints != 0:
		err = e.recorder.sched(ctx.ID, ev.Clock(), ctx.Cat, ev.Reason(), pc)
	}
	if err != nil {
		e.fail(err)
	}
}

// plan maps the decision onto the steps the call site has to realize.
func (e *Engine) plan(ctx *ir.Context, ev *event.Event, next ir.TaskID, ry replayResult) event.Plan {
	p := event.Plan{
		Clock:   ev.Clock(),
		Reason:  ev.Reason(),
		Args:    ctx.Args,
		Filters: ev.Filters,
	}
	switch {
	case ry.status == replayLoad || ry.status == replayForce:
		p.Replay = event.ReplayOn
	case e.recorder.replaying() && next == ir.AnyTask:
		p.Replay = event.ReplayAnyTask
	}

	terminate := ev.Reason().IsTerminate()
	if terminate && next != ctx.ID {
		p.Shutdown = true
		return p
	}

	switch ctx.Cat {
	case ir.CatTaskCreate:
		p.Call = true
		p.Yield = true
		p.Resume = true
	case ir.CatCall:
		p.Wake = next
		p.Call = true
		p.Return = true
		p.Yield = true
		p.Resume = true
	case ir.CatTaskBlock:
		p.Wake = next
		p.Block = true
		p.Return = true
		p.Yield = true
		p.Resume = true
	case ir.CatTaskFini:
		if next != ctx.ID {
			p.Wake = next
		}
	default:
		if next == ctx.ID {
			p.Continue = true
		} else {
			p.Wake = next
			p.Yield = true
			p.Resume = true
		}
	}

	p.WithSlack = ctx.Cat.IsSlack() && p.Replay == event.ReplayOff

	if terminate {
		p.Continue = false
		p.Shutdown = true
	}
	return p
}
