// Package mediator realizes engine plans on behalf of one task.
//
// A call site brackets every instrumented operation:
//
//	if m.Capture(&ctx) {
//		// perform the real call
//		m.Return(&ctx)
//	}
//	status := m.Resume(&ctx)
//
// Capture asks the engine for a plan and performs the wake. When the plan
// contains a call, the task runs it detached from the engine and reports
// back with Return. Resume yields, settles the decision and, when the
// plan says so, ends the run.
package mediator

import (
	"sync/atomic"
	"time"

	"github.com/roach88/lockstep/internal/engine"
	"github.com/roach88/lockstep/internal/event"
	"github.com/roach88/lockstep/internal/ir"
	"github.com/roach88/lockstep/internal/switcher"
)

// Engine is the part of the engine a mediator talks to.
type Engine interface {
	Capture(ctx *ir.Context) event.Plan
	Resume(ctx *ir.Context)
	Return(ctx *ir.Context)
	Fini(ctx *ir.Context, reason ir.Reason) int
}

// Switcher parks and wakes tasks.
type Switcher interface {
	Yield(id ir.TaskID, filters *event.AnyTaskFilters) switcher.Status
	Wake(id ir.TaskID, slack time.Duration)
	Forget(id ir.TaskID)
}

// Status tells the call site whether the task may keep running.
type Status uint8

const (
	// StatusOK: proceed with the operation.
	StatusOK Status = iota
	// StatusAbort: the run ended abnormally; stop the task.
	StatusAbort
	// StatusShutdown: the run ended in order; stop the task.
	StatusShutdown
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusAbort:
		return "abort"
	case StatusShutdown:
		return "shutdown"
	}
	return "invalid"
}

type state uint8

const (
	stateUnregistered state = iota
	stateActive
	stateDetached
	stateRetired
)

func (s state) String() string {
	switch s {
	case stateUnregistered:
		return "unregistered"
	case stateActive:
		return "active"
	case stateDetached:
		return "detached"
	case stateRetired:
		return "retired"
	}
	return "invalid"
}

// phase tracks where the task is inside one capture/resume bracket.
type phase uint8

const (
	phaseIdle phase = iota
	phaseCaptured
	phaseInCall
	phaseReturned
)

func (p phase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseCaptured:
		return "captured"
	case phaseInCall:
		return "in call"
	case phaseReturned:
		return "returned"
	}
	return "invalid"
}

// Mediator holds the per-task state. It is owned by its task's goroutine;
// only Finito may be read from elsewhere.
type Mediator struct {
	id    ir.TaskID
	eng   Engine
	sw    Switcher
	slack time.Duration

	state state
	depth int
	phase phase
	plan  event.Plan

	exitCode int
	finito   atomic.Bool
}

// New creates the mediator of task id. slack is the grace period granted
// to tasks woken by a blocking call.
func New(id ir.TaskID, eng Engine, sw Switcher, slack time.Duration) *Mediator {
	if id.IsSentinel() {
		panic(engine.NewProtocolError(id, "mediator for sentinel task"))
	}
	return &Mediator{id: id, eng: eng, sw: sw, slack: slack}
}

// ID returns the task id.
func (m *Mediator) ID() ir.TaskID {
	return m.id
}

// Plan returns the plan of the current bracket.
func (m *Mediator) Plan() event.Plan {
	return m.plan
}

// ExitCode returns the code returned by Fini if this task ended the run.
func (m *Mediator) ExitCode() int {
	return m.exitCode
}

// Finito reports whether the task retired. Safe from any goroutine.
func (m *Mediator) Finito() bool {
	return m.finito.Load()
}

// Detach takes the task out of the engine's control. Returns true only on
// the outermost detach.
func (m *Mediator) Detach() bool {
	m.mustLive("detach")
	m.depth++
	m.state = stateDetached
	return m.depth == 1
}

// Attach undoes one Detach. Returns true when the task is back under the
// engine's control.
func (m *Mediator) Attach() bool {
	if m.depth == 0 {
		panic(engine.NewProtocolError(m.id, "attach without detach"))
	}
	m.depth--
	if m.depth > 0 {
		return false
	}
	m.state = stateActive
	return true
}

// Detached reports whether the task runs outside the engine's control.
func (m *Mediator) Detached() bool {
	return m.depth > 0
}

func (m *Mediator) mustLive(op string) {
	if m.state == stateRetired {
		panic(engine.NewProtocolError(m.id, "%s after retire", op))
	}
}

// Capture reports the operation in ctx to the engine and performs the
// wake of the resulting plan. It returns true when the caller must now
// perform the operation and close it with Return.
func (m *Mediator) Capture(ctx *ir.Context) bool {
	m.mustLive("capture")
	ctx.ID = m.id
	if m.Detached() {
		return false
	}
	if m.phase != phaseIdle {
		panic(engine.NewProtocolError(m.id, "capture %s while %s", ctx.Cat, m.phase))
	}
	if m.state == stateUnregistered {
		m.state = stateActive
	}

	m.plan = m.eng.Capture(ctx)
	m.phase = phaseCaptured

	if m.plan.Wake != ir.NoTask {
		var slack time.Duration
		if m.plan.WithSlack {
			slack = m.slack
		}
		m.sw.Wake(m.plan.Wake, slack)
	}

	if m.plan.Call || m.plan.Block {
		if m.plan.Call {
			m.Detach()
		}
		m.phase = phaseInCall
		return true
	}
	return false
}

// Return closes the operation started by a Capture that returned true.
func (m *Mediator) Return(ctx *ir.Context) {
	m.mustLive("return")
	if m.phase != phaseInCall {
		panic(engine.NewProtocolError(m.id, "return %s while %s", ctx.Cat, m.phase))
	}
	if m.plan.Call && !m.Attach() {
		return
	}
	m.phase = phaseReturned
	if m.plan.Return {
		m.eng.Return(ctx)
	}
}

// Resume finishes the bracket: it yields, settles the decision with the
// engine and ends the run if the plan carries a terminating reason.
func (m *Mediator) Resume(ctx *ir.Context) Status {
	m.mustLive("resume")
	if m.Detached() {
		return StatusOK
	}
	switch m.phase {
	case phaseCaptured, phaseReturned:
	default:
		panic(engine.NewProtocolError(m.id, "resume %s while %s", ctx.Cat, m.phase))
	}
	m.phase = phaseIdle

	p := &m.plan
	if p.Yield {
		if m.sw.Yield(m.id, &p.Filters) == switcher.Aborted {
			return StatusAbort
		}
	}
	if p.Resume {
		m.eng.Resume(ctx)
	}
	if p.Shutdown {
		m.exitCode = m.eng.Fini(ctx, p.Reason)
		if p.Reason.IsShutdown() {
			return StatusShutdown
		}
		return StatusAbort
	}
	return StatusOK
}

// Retire ends the task. The mediator cannot be used afterwards.
func (m *Mediator) Retire() {
	m.mustLive("retire")
	m.state = stateRetired
	m.sw.Forget(m.id)
	m.finito.Store(true)
}
