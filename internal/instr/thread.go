package instr

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/roach88/lockstep/internal/engine"
	"github.com/roach88/lockstep/internal/event"
	"github.com/roach88/lockstep/internal/handlers"
	"github.com/roach88/lockstep/internal/ir"
	"github.com/roach88/lockstep/internal/mediator"
)

// Thread is the handle a task uses to reach the engine. It belongs to
// the goroutine it was handed to and must not be shared.
type Thread struct {
	rt *Runtime
	m  *mediator.Mediator
}

// ID returns the task id.
func (t *Thread) ID() ir.TaskID {
	return t.m.ID()
}

// capture brackets one operation: report it, run fn if the engine lets
// the task perform it, then yield until the task is picked again. A task
// whose run ended does not come back.
func (t *Thread) capture(cat ir.Category, fn string, call func(), args ...ir.Arg) event.Plan {
	ctx := ir.NewContext(cat, fn, args...)
	ctx.PC = callerPC()
	if t.m.Capture(&ctx) {
		if call != nil {
			call()
		}
		t.m.Return(&ctx)
	} else if call != nil && t.m.Detached() {
		call()
	}
	if st := t.m.Resume(&ctx); st != mediator.StatusOK {
		t.exit(st)
	}
	return t.m.Plan()
}

func (t *Thread) exit(st mediator.Status) {
	t.rt.logger.Debug("task unwinding", "task", t.ID().String(), "status", st.String())
	t.m.Retire()
	runtime.Goexit()
}

// Go starts fn as a new task and returns its id.
func (t *Thread) Go(fn func(*Thread)) ir.TaskID {
	if t.m.Detached() {
		panic(engine.NewProtocolError(t.ID(), "task created inside a call"))
	}
	child := t.rt.eng.NewTaskID()
	t.capture(ir.CatTaskCreate, "lockstep.Go", func() {
		t.rt.group.Go(t.rt.task(child, fn, false))
	}, ir.U64(uint64(child)))
	return child
}

// Join waits until task id finishes.
func (t *Thread) Join(id ir.TaskID) error {
	p := t.capture(ir.CatJoin, "lockstep.Join", nil, ir.U64(uint64(id)))
	switch p.Args[1].Value {
	case handlers.ResultOK:
		return nil
	case handlers.ResultDeadlk:
		return ErrDeadlock
	default:
		return ErrNoTask
	}
}

// Detach makes id unjoinable.
func (t *Thread) Detach(id ir.TaskID) error {
	p := t.capture(ir.CatDetach, "lockstep.Detach", nil, ir.U64(uint64(id)))
	if p.Args[1].Value != handlers.ResultOK {
		return ErrNoTask
	}
	return nil
}

// Yield offers the engine a chance to run another task.
func (t *Thread) Yield() {
	t.capture(ir.CatUserYield, "lockstep.Yield", nil)
}

// Call runs fn outside the engine's control. Other tasks may run while
// fn blocks; the task rejoins the schedule once fn returns.
func (t *Thread) Call(fn func()) {
	t.capture(ir.CatCall, "lockstep.Call", fn)
}

// Block is Call for operations that park the task on something the
// engine cannot see, without detaching it.
func (t *Thread) Block(fn func()) {
	t.capture(ir.CatTaskBlock, "lockstep.Block", fn)
}

// Load reads *p atomically at a change point.
func (t *Thread) Load(p *int64) int64 {
	t.capture(ir.CatBeforeARead, "lockstep.Load", nil, ir.U64(addrOf(p)))
	return atomic.LoadInt64(p)
}

// Store writes v to *p atomically at a change point.
func (t *Thread) Store(p *int64, v int64) {
	t.capture(ir.CatBeforeAWrite, "lockstep.Store", nil, ir.U64(addrOf(p)))
	atomic.StoreInt64(p, v)
}

// Assert ends the run with ASSERT_FAIL when cond is false.
func (t *Thread) Assert(cond bool, format string, args ...any) {
	if cond {
		return
	}
	msg := fmt.Sprintf(format, args...)
	t.rt.logger.Error("assertion failed", "task", t.ID().String(), "message", msg)
	ctx := ir.NewContext(ir.CatNone, "lockstep.Assert")
	ctx.ID = t.ID()
	t.rt.eng.Fini(&ctx, ir.ReasonAssertFail)
	t.exit(mediator.StatusAbort)
}
