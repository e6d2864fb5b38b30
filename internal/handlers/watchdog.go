package handlers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/lockstep/internal/event"
	"github.com/roach88/lockstep/internal/ir"
)

// Stopper is the part of the engine the watchdog can end a run with.
type Stopper interface {
	Shutdown(reason ir.Reason)
	Fini(ctx *ir.Context, reason ir.Reason) int
	Finished() bool
}

// Watchdog guards a run against tasks that never give up control.
//
// As a handler it preempts a task that captured more than the spin
// budget in a row, so spin loops cannot starve the task they wait for
// under a deterministic selector. Run watches the wall clock from outside:
// when no capture arrives within the budget it injects WATCHDOG, which the
// next capture turns into a shutdown; when still nothing arrives after
// another budget it ends the run itself.
type Watchdog struct {
	mu       sync.Mutex
	last     time.Time
	injected bool

	budget     time.Duration
	spinBudget uint64
	spinner    ir.TaskID
	spins      uint64

	now    func() time.Time
	logger *slog.Logger
}

// WatchdogOption configures a Watchdog.
type WatchdogOption func(*Watchdog)

// WithWatchdogClock replaces time.Now.
func WithWatchdogClock(now func() time.Time) WatchdogOption {
	return func(w *Watchdog) {
		w.now = now
	}
}

// WithWatchdogLogger sets the logger.
func WithWatchdogLogger(l *slog.Logger) WatchdogOption {
	return func(w *Watchdog) {
		w.logger = l
	}
}

// NewWatchdog creates a watchdog. A zero budget disables Run; a zero spin
// budget disables preemption.
func NewWatchdog(budget time.Duration, spinBudget uint64, opts ...WatchdogOption) *Watchdog {
	w := &Watchdog{
		budget:     budget,
		spinBudget: spinBudget,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.last = w.now()
	return w
}

// Handle implements dispatch.Handler.
func (w *Watchdog) Handle(ctx *ir.Context, ev *event.Event) {
	w.mu.Lock()
	w.last = w.now()
	w.mu.Unlock()

	if ctx.ID != w.spinner {
		w.spinner = ctx.ID
		w.spins = 0
	}
	w.spins++
	if w.spinBudget == 0 || w.spins <= w.spinBudget {
		return
	}
	if ev.TSet.Len() < 2 || !ev.TSet.Has(ctx.ID) {
		return
	}
	ev.TSet.Remove(ctx.ID)
	ev.MarkChangePoint()
	ev.SetReason(ir.ReasonNondeterministic)
	w.spins = 0
	w.logger.Debug("spin budget exhausted, preempting",
		"clk", uint64(ev.Clock()),
		"task", ctx.ID.String(),
	)
}

// Check looks at the time since the last capture once and acts on it.
// Returns true once the run is over.
func (w *Watchdog) Check(s Stopper) bool {
	if s.Finished() {
		return true
	}
	if w.budget <= 0 {
		return false
	}

	w.mu.Lock()
	idle := w.now().Sub(w.last)
	injected := w.injected
	if idle >= w.budget && !injected {
		w.injected = true
		w.last = w.now()
	}
	w.mu.Unlock()

	if idle < w.budget {
		return false
	}
	if !injected {
		w.logger.Warn("watchdog: no capture within budget, shutting down",
			"budget", w.budget.String(),
			"idle", idle.String(),
		)
		s.Shutdown(ir.ReasonWatchdog)
		return false
	}
	w.logger.Error("watchdog: run did not shut down, ending it",
		"budget", w.budget.String(),
	)
	s.Fini(nil, ir.ReasonWatchdog)
	return true
}

// Run polls Check until the run is over or ctx is done.
func (w *Watchdog) Run(ctx context.Context, s Stopper) {
	if w.budget <= 0 {
		return
	}
	ticker := time.NewTicker(w.budget / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.Check(s) {
				return
			}
		}
	}
}
