package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/lockstep/internal/dispatch"
	"github.com/roach88/lockstep/internal/event"
	"github.com/roach88/lockstep/internal/ir"
	"github.com/roach88/lockstep/internal/prng"
	"github.com/roach88/lockstep/internal/switcher"
	"github.com/roach88/lockstep/internal/trace"
)

// Scheduler is an exploration strategy. It is an ordinary handler that
// claims a slot in the dispatcher, so strategies compose with the other
// handlers instead of replacing the decision loop.
type Scheduler interface {
	dispatch.Handler

	// Name identifies the strategy in trace headers and logs.
	Name() string

	// Slot is where the strategy sits in handler order.
	Slot() dispatch.Slot
}

// Seeder is implemented by schedulers that precompute random state. The
// engine calls Seed once the PRNG holds its final seed, which on replay
// is the recorded one.
type Seeder interface {
	Seed(rng *prng.PRNG)
}

// Stats summarizes a run.
type Stats struct {
	Clock        ir.Clk
	Captures     uint64
	ChangePoints uint64
	Switches     uint64
	Tasks        uint64
}

// Engine sequences the captures of one run.
//
// Capture and Resume serialize on the decision lock; at most one task
// decides at a time. The switcher keeps every other task parked, so the
// lock is uncontended in a well-behaved run.
//
// Thread-safety model:
//   - Capture, Resume, Return and Fini may be called from any task
//   - Fini and Shutdown may also be called from outside any task
//   - Register must be called before Init
type Engine struct {
	mu sync.Mutex

	clock      *Clock
	rng        *prng.PRNG
	dispatcher *dispatch.Dispatcher
	switcher   *switcher.Switcher
	recorder   *recorder
	unblocked  *unblockedQueue
	sched      Scheduler
	logger     *slog.Logger
	metrics    *Metrics
	runIDs     RunIDGenerator

	granularity Granularity
	slack       time.Duration
	altExit     bool
	config      map[string]any

	runID       string
	initialized bool

	// live holds the registered tasks that have not finished, in
	// registration order.
	live ir.TaskSet
	// inCall holds tasks performing a blocking call outside the engine.
	inCall ir.TaskSet

	nextID atomic.Uint64

	// injected is a reason raised from outside the sequencer, applied at
	// the next capture.
	injected atomic.Uint64

	finished    atomic.Bool
	exitCode    atomic.Int64
	finalReason atomic.Uint64
	failure     atomic.Pointer[RuntimeError]

	stats Stats
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithRunIDGenerator replaces the UUIDv7 run ids.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// WithGranularity selects which decisions are recorded. Switches are
// always recorded.
func WithGranularity(g Granularity) Option {
	return func(e *Engine) {
		e.granularity = g | RecordSwitches
	}
}

// WithSlack sets the grace period a task woken by a blocking call sleeps
// before it runs, giving the call time to make progress.
func WithSlack(d time.Duration) Option {
	return func(e *Engine) {
		e.slack = d
	}
}

// WithAltExitCodes makes every abort exit with ExitAltAbort.
func WithAltExitCodes(on bool) Option {
	return func(e *Engine) {
		e.altExit = on
	}
}

// WithConfig sets the payload of the CONFIG record.
func WithConfig(cfg map[string]any) Option {
	return func(e *Engine) {
		e.config = cfg
	}
}

// WithMetrics shares a metrics set instead of creating one.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an engine drawing every random choice from rng. sched may
// be nil, in which case ties are broken by the dispatcher's default
// random selector.
func New(rng *prng.PRNG, sched Scheduler, opts ...Option) *Engine {
	e := &Engine{
		clock:       NewClock(),
		rng:         rng,
		dispatcher:  dispatch.New(rng),
		switcher:    switcher.New(),
		unblocked:   newUnblockedQueue(),
		sched:       sched,
		logger:      slog.Default(),
		runIDs:      UUIDv7Generator{},
		granularity: RecordSwitches,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics()
	}
	e.recorder = newRecorder(e.metrics)
	if sched != nil {
		e.dispatcher.Register(sched.Slot(), sched)
	}
	return e
}

// Register installs a handler. Must be called before Init.
func (e *Engine) Register(slot dispatch.Slot, h dispatch.Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		panic(NewProtocolError(ir.NoTask, "handler %s registered after init", slot))
	}
	e.dispatcher.Register(slot, h)
}

// Init prepares a run. A non-nil input makes the engine replay it: the
// recorded seed is restored and recorded decisions are reproduced until
// the input is exhausted. A non-nil output receives the new trace.
func (e *Engine) Init(input, output trace.Trace) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return NewProtocolError(ir.NoTask, "engine initialized twice")
	}

	if input != nil {
		hdr, _, err := ReadHeader(input)
		if err != nil {
			return NewTraceIOError("read replay header", err)
		}
		if hdr.FormatVersion != ir.TraceFormatVersion {
			return NewVersionError(hdr.FormatVersion, ir.TraceFormatVersion)
		}
		if e.sched != nil && hdr.Strategy != e.sched.Name() {
			e.logger.Warn("replaying trace recorded with another strategy",
				"recorded", hdr.Strategy, "current", e.sched.Name())
		}
		e.rng.SetSeed(hdr.Seed)
		e.recorder.replayFrom(input)
	}

	if s, ok := e.sched.(Seeder); ok {
		s.Seed(e.rng)
	}

	e.runID = e.runIDs.Generate()
	if output != nil {
		hdr := Header{
			FormatVersion: ir.TraceFormatVersion,
			EngineVersion: ir.EngineVersion,
			Seed:          e.rng.Seed(),
			Strategy:      e.strategyName(),
			RunID:         e.runID,
		}
		if e.config != nil {
			hash, err := ir.ConfigHash(e.config)
			if err != nil {
				return err
			}
			hdr.ConfigHash = hash
		}
		if err := e.recorder.start(output, hdr, e.config); err != nil {
			return err
		}
	}

	e.initialized = true
	e.logger.Info("engine initialized",
		"run_id", e.runID,
		"seed", e.rng.Seed(),
		"strategy", e.strategyName(),
		"replay", input != nil,
		"record", output != nil,
		"granularity", e.granularity.String(),
	)
	return nil
}

func (e *Engine) strategyName() string {
	if e.sched == nil {
		return "random"
	}
	return e.sched.Name()
}

// NewTaskID allocates the next task id. The first id is MainThread.
func (e *Engine) NewTaskID() ir.TaskID {
	return ir.TaskID(e.nextID.Add(1))
}

// Capture sequences one capture point and returns what the caller must do.
func (e *Engine) Capture(ctx *ir.Context) event.Plan {
	if ctx.ID.IsSentinel() {
		panic(NewProtocolError(ctx.ID, "capture %s from sentinel task", ctx.Cat))
	}
	if !ctx.Cat.Valid() {
		panic(NewProtocolError(ctx.ID, "capture with invalid category %d", uint32(ctx.Cat)))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		panic(NewProtocolError(ctx.ID, "capture before init"))
	}
	if e.finished.Load() {
		return event.Plan{
			Clock:    e.clock.Current(),
			Shutdown: true,
			Reason:   e.FinalReason(),
		}
	}
	return e.sequence(ctx)
}

// Resume tells the engine that ctx.ID is running again after a yield.
// It settles a pending wildcard decision in favour of that task.
func (e *Engine) Resume(ctx *ir.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.finished.Load() {
		return
	}
	if err := e.recorder.settle(ctx.ID); err != nil {
		e.fail(err)
	}
}

// Return reports that ctx.ID came back from a blocking call. The task
// becomes eligible again at the next capture.
func (e *Engine) Return(ctx *ir.Context) {
	if !ctx.Cat.IsBlocking() {
		panic(NewProtocolError(ctx.ID, "return from non-blocking %s", ctx.Cat))
	}
	e.unblocked.Enqueue(ctx.ID)
}

// Shutdown asks the run to end with reason at the next capture. A reason
// only replaces a pending one of lower priority.
func (e *Engine) Shutdown(reason ir.Reason) {
	for {
		cur := e.injected.Load()
		if reason.Priority() <= ir.Reason(cur).Priority() {
			return
		}
		if e.injected.CompareAndSwap(cur, uint64(reason)) {
			return
		}
	}
}

// Fini ends the run and returns its exit code. Only the first call has an
// effect; later calls return the same code. ctx may be nil when the run
// is ended from outside any task.
//
// Only the EXIT record itself is pre-reserved: it goes into trace capacity
// kept free since Init. Saving the output afterwards still allocates and
// does file I/O under the engine lock.
func (e *Engine) Fini(ctx *ir.Context, reason ir.Reason) int {
	if !e.finished.CompareAndSwap(false, true) {
		return int(e.exitCode.Load())
	}

	code := ExitCodeFor(reason, e.altExit)
	e.exitCode.Store(int64(code))
	e.finalReason.Store(uint64(reason))

	id := ir.NoTask
	if ctx != nil {
		id = ctx.ID
	}

	e.mu.Lock()
	err := e.recorder.finish(id, e.clock.Current(), reason)
	e.mu.Unlock()
	if err != nil {
		e.fail(err)
	}

	e.switcher.Abort()
	return code
}

func (e *Engine) fail(err *RuntimeError) {
	if e.failure.CompareAndSwap(nil, err) {
		e.logger.Error("engine failure", "code", string(err.Code), "error", err.Error())
	}
}

// Finished reports whether Fini ran.
func (e *Engine) Finished() bool {
	return e.finished.Load()
}

// ExitCode returns the code chosen by Fini, or ExitOK before Fini.
func (e *Engine) ExitCode() int {
	return int(e.exitCode.Load())
}

// FinalReason returns the reason passed to Fini.
func (e *Engine) FinalReason() ir.Reason {
	return ir.Reason(e.finalReason.Load())
}

// Err returns the first divergence or trace I/O failure of the run.
func (e *Engine) Err() error {
	if err := e.failure.Load(); err != nil {
		return err
	}
	return nil
}

// Switcher returns the switcher parking the engine's tasks.
func (e *Engine) Switcher() *switcher.Switcher {
	return e.switcher
}

// Slack returns the configured grace period for blocking calls.
func (e *Engine) Slack() time.Duration {
	return e.slack
}

// Metrics returns the engine collectors.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// RunID returns the id generated at Init.
func (e *Engine) RunID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runID
}

// Seed returns the seed the run uses.
func (e *Engine) Seed() uint64 {
	return e.rng.Seed()
}

// Replaying reports whether decisions still come from an input trace.
func (e *Engine) Replaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recorder.replaying()
}

// Stats returns a snapshot of the run counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.Clock = e.clock.Current()
	s.Tasks = e.nextID.Load()
	return s
}

// LogStats writes the run summary at info level. Record counts per kind
// come from the metrics registry.
func (e *Engine) LogStats(ctx context.Context) {
	s := e.Stats()
	attrs := []any{
		"run_id", e.RunID(),
		"reason", e.FinalReason().String(),
		"exit_code", e.ExitCode(),
		"clock", uint64(s.Clock),
		"captures", s.Captures,
		"change_points", s.ChangePoints,
		"switches", s.Switches,
		"tasks", s.Tasks,
	}
	records, err := e.metrics.RecordsByKind()
	if err != nil {
		e.logger.WarnContext(ctx, "metrics unavailable", "error", err)
	} else if len(records) > 0 {
		attrs = append(attrs, "records", records)
	}
	e.logger.InfoContext(ctx, "run finished", attrs...)
}
