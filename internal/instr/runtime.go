package instr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/lockstep/internal/engine"
	"github.com/roach88/lockstep/internal/handlers"
	"github.com/roach88/lockstep/internal/ir"
	"github.com/roach88/lockstep/internal/mediator"
)

// Errors reported by Join.
var (
	ErrNoTask   = errors.New("instr: no such joinable task")
	ErrDeadlock = errors.New("instr: join would deadlock")
)

// Runtime starts and tracks the tasks of one run.
type Runtime struct {
	eng      *engine.Engine
	handlers *handlers.Set
	logger   *slog.Logger

	group *errgroup.Group
	keys  atomic.Uint64
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = l
	}
}

// New creates a runtime over an initialized engine whose handlers were
// installed as hs.
func New(eng *engine.Engine, hs *handlers.Set, opts ...Option) *Runtime {
	r := &Runtime{
		eng:      eng,
		handlers: hs,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Engine returns the engine the runtime drives.
func (r *Runtime) Engine() *engine.Engine {
	return r.eng
}

// NewMutex creates a mutex known to the engine. Keys are handed out in
// creation order, so they are the same in every run of a program.
func (r *Runtime) NewMutex() *Mutex {
	return &Mutex{key: r.keys.Add(1) << 4}
}

// Run executes main as the main task and waits for every task to end.
// It returns the exit code of the run and any task panic or engine
// failure.
//
// The run ends when main returns (SUCCESS), when a handler detects a bug,
// or when ctx is cancelled, which injects SIGINT.
func (r *Runtime) Run(ctx context.Context, main func(*Thread)) (int, error) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			r.eng.Shutdown(ir.ReasonSigint)
		case <-stop:
		}
	}()

	wctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if r.handlers != nil && r.handlers.Watchdog != nil {
		go r.handlers.Watchdog.Run(wctx, r.eng)
	}

	r.group = new(errgroup.Group)
	r.group.Go(r.task(r.eng.NewTaskID(), main, true))
	err := r.group.Wait()

	r.eng.LogStats(ctx)
	return r.eng.ExitCode(), errors.Join(err, r.eng.Err())
}

// task returns the body of the goroutine running fn as task id.
func (r *Runtime) task(id ir.TaskID, fn func(*Thread), main bool) func() error {
	return func() (err error) {
		t := &Thread{
			rt: r,
			m:  mediator.New(id, r.eng, r.eng.Switcher(), r.eng.Slack()),
		}
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			r.logger.Error("task panicked", "task", id.String(), "panic", fmt.Sprint(p))
			ctx := ir.NewContext(ir.CatTaskFini, "lockstep.panic")
			ctx.ID = id
			r.eng.Fini(&ctx, ir.ReasonAbort)
			err = fmt.Errorf("task %s: panic: %v", id, p)
		}()

		r.logger.Debug("task started", "task", id.String())
		t.capture(ir.CatTaskInit, "lockstep.init", nil)
		fn(t)

		if main {
			ctx := ir.NewContext(ir.CatTaskFini, "lockstep.main")
			ctx.ID = id
			r.eng.Fini(&ctx, ir.ReasonSuccess)
			t.m.Retire()
			return nil
		}
		t.capture(ir.CatTaskFini, "lockstep.exit", nil)
		t.m.Retire()
		r.logger.Debug("task finished", "task", id.String())
		return nil
	}
}

// callerPC returns the program counter of the user code calling into a
// Thread method.
func callerPC() uintptr {
	var pcs [1]uintptr
	if runtime.Callers(4, pcs[:]) == 0 {
		return 0
	}
	return pcs[0]
}
