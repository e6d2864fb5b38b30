package engine

import (
	"github.com/roach88/lockstep/internal/ir"
	"github.com/roach88/lockstep/internal/trace"
)

// replayStatus says how the input trace relates to the current capture.
type replayStatus uint8

const (
	// replayOff: no input trace.
	replayOff replayStatus = iota
	// replayCont: the next record lies ahead; the recorded run kept going.
	replayCont
	// replayLoad: a SCHED record at this clock pins the decision.
	replayLoad
	// replayForce: a FORCE record at this clock overrides the decision.
	replayForce
	// replayDone: the input is exhausted; decisions are live again.
	replayDone
	// replayDiverged: the run no longer matches the input.
	replayDiverged
)

func (s replayStatus) String() string {
	switch s {
	case replayOff:
		return "off"
	case replayCont:
		return "cont"
	case replayLoad:
		return "load"
	case replayForce:
		return "force"
	case replayDone:
		return "done"
	case replayDiverged:
		return "diverged"
	}
	return "invalid"
}

type replayResult struct {
	status replayStatus
	id     ir.TaskID
	reason ir.Reason
	err    *RuntimeError
}

// pendingDecision is a wildcard decision whose task is only known once
// somebody resumes.
type pendingDecision struct {
	set    bool
	clk    ir.Clk
	cat    ir.Category
	reason ir.Reason
	pc     uint64
}

// recorder owns the input and output traces of an engine. It is only
// touched under the engine's decision lock.
type recorder struct {
	input  trace.Trace
	output trace.Trace
	done   bool

	deferred pendingDecision

	// exit is filled in place by finish so the final record never
	// allocates.
	exit trace.Record

	metrics *Metrics
}

func newRecorder(m *Metrics) *recorder {
	return &recorder{metrics: m}
}

// replaying reports whether decisions are still loaded from the input.
func (r *recorder) replaying() bool {
	return r.input != nil && !r.done
}

func (r *recorder) recording() bool {
	return r.output != nil
}

// replayFrom positions the input before its first decision record.
func (r *recorder) replayFrom(input trace.Trace) {
	r.input = input
	r.done = false
	input.Rewind()
}

// start writes the START record and, if cfg is non-nil, the CONFIG record.
func (r *recorder) start(output trace.Trace, hdr Header, cfg map[string]any) *RuntimeError {
	payload, err := hdr.Payload()
	if err != nil {
		return NewTraceIOError("encode START", err)
	}
	r.output = output
	if err := r.append(&trace.Record{Kind: trace.KindStart, Data: payload}); err != nil {
		return err
	}
	if cfg != nil {
		data, err := ir.MarshalCanonical(cfg)
		if err != nil {
			return NewTraceIOError("encode CONFIG", err)
		}
		if err := r.append(&trace.Record{Kind: trace.KindConfig, Data: data}); err != nil {
			return err
		}
	}
	return nil
}

// append writes rec and keeps one slot reserved for the EXIT record.
func (r *recorder) append(rec *trace.Record) *RuntimeError {
	if err := r.output.Append(rec); err != nil {
		return NewTraceIOError("append "+rec.Kind.String(), err)
	}
	r.output.Reserve(1)
	r.metrics.records.WithLabelValues(rec.Kind.String()).Inc()
	return nil
}

// lookup consults the input for the capture ctx at clk.
func (r *recorder) lookup(ctx *ir.Context, clk ir.Clk) replayResult {
	if r.input == nil {
		return replayResult{status: replayOff}
	}
	if r.done {
		return replayResult{status: replayDone}
	}

	rec := r.input.Next(trace.KindSched | trace.KindForce | trace.KindExit)
	if rec == nil {
		r.done = true
		return replayResult{status: replayDone}
	}

	recClk := ir.Clk(rec.Clk)
	if rec.Kind == trace.KindExit {
		// Captures up to the EXIT clock kept the running task going in
		// the recorded run; none of them left a record.
		if recClk <= clk {
			r.done = true
		}
		if recClk < clk {
			return replayResult{status: replayDone}
		}
		return replayResult{status: replayCont}
	}

	switch {
	case recClk > clk:
		return replayResult{status: replayCont}
	case recClk < clk:
		r.done = true
		return replayResult{
			status: replayDiverged,
			err:    NewDivergenceError(clk, recClk, ctx.ID, ir.Category(rec.Cat), ctx.Cat),
		}
	}

	r.input.Advance()
	if rec.Kind == trace.KindForce {
		return replayResult{status: replayForce, id: ir.TaskID(rec.ID), reason: ir.Reason(rec.Reason)}
	}
	if ir.Category(rec.Cat) != ctx.Cat {
		r.done = true
		return replayResult{
			status: replayDiverged,
			err:    NewDivergenceError(clk, recClk, ctx.ID, ir.Category(rec.Cat), ctx.Cat),
		}
	}
	return replayResult{status: replayLoad, id: ir.TaskID(rec.ID), reason: ir.Reason(rec.Reason)}
}

// sched records that id was chosen at clk.
func (r *recorder) sched(id ir.TaskID, clk ir.Clk, cat ir.Category, reason ir.Reason, pc uint64) *RuntimeError {
	return r.append(&trace.Record{
		ID:     id,
		Clk:    clk,
		Cat:    cat,
		Reason: reason,
		Kind:   trace.KindSched,
		PC:     pc,
	})
}

// deferAny parks a wildcard decision until the woken task is known.
func (r *recorder) deferAny(clk ir.Clk, cat ir.Category, reason ir.Reason, pc uint64) {
	r.deferred = pendingDecision{set: true, clk: clk, cat: cat, reason: reason, pc: pc}
}

// settle records the pending wildcard decision as taken by id.
func (r *recorder) settle(id ir.TaskID) *RuntimeError {
	if !r.deferred.set {
		return nil
	}
	d := r.deferred
	r.deferred = pendingDecision{}
	if !r.recording() {
		return nil
	}
	return r.sched(id, d.clk, d.cat, d.reason, d.pc)
}

// finish writes the EXIT record into reserved capacity and saves the
// output. A pending wildcard decision is dropped: nobody ran after it.
func (r *recorder) finish(id ir.TaskID, clk ir.Clk, reason ir.Reason) *RuntimeError {
	r.deferred = pendingDecision{}
	if !r.recording() {
		return nil
	}

	r.exit.ID = id
	r.exit.Clk = clk
	r.exit.Cat = ir.CatExit
	r.exit.Reason = reason
	r.exit.Kind = trace.KindExit
	if err := r.output.AppendSafe(&r.exit); err != nil {
		return NewTraceIOError("append EXIT", err)
	}
	r.metrics.records.WithLabelValues(trace.KindExit.String()).Inc()
	if err := r.output.Save(); err != nil {
		return NewTraceIOError("save trace", err)
	}
	return nil
}
