package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/lockstep/internal/ir"
	"github.com/roach88/lockstep/internal/testutil"
)

type fakeStopper struct {
	shutdowns []ir.Reason
	finis     []ir.Reason
	finished  bool
}

func (s *fakeStopper) Shutdown(r ir.Reason) { s.shutdowns = append(s.shutdowns, r) }

func (s *fakeStopper) Fini(_ *ir.Context, r ir.Reason) int {
	s.finis = append(s.finis, r)
	s.finished = true
	return 4
}

func (s *fakeStopper) Finished() bool { return s.finished }

func newWatchdog(clock *testutil.FakeClock, spin uint64) *Watchdog {
	return NewWatchdog(time.Second, spin,
		WithWatchdogClock(clock.Now),
		WithWatchdogLogger(testutil.DiscardLogger()),
	)
}

func TestWatchdog_InjectsThenEnds(t *testing.T) {
	clock := testutil.NewFakeClock()
	w := newWatchdog(clock, 0)
	s := &fakeStopper{}

	assert.False(t, w.Check(s))
	assert.Empty(t, s.shutdowns)

	clock.Advance(time.Second)
	assert.False(t, w.Check(s))
	assert.Equal(t, []ir.Reason{ir.ReasonWatchdog}, s.shutdowns)
	assert.Empty(t, s.finis)

	assert.False(t, w.Check(s))
	assert.Len(t, s.shutdowns, 1)

	clock.Advance(time.Second)
	assert.True(t, w.Check(s))
	assert.Equal(t, []ir.Reason{ir.ReasonWatchdog}, s.finis)
}

func TestWatchdog_CapturesKeepItQuiet(t *testing.T) {
	clock := testutil.NewFakeClock()
	w := newWatchdog(clock, 0)
	s := &fakeStopper{}

	for i := 0; i < 5; i++ {
		clock.Advance(900 * time.Millisecond)
		w.Handle(ctxFor(1, ir.CatUserYield), newEvent(1))
		assert.False(t, w.Check(s))
	}
	assert.Empty(t, s.shutdowns)
}

func TestWatchdog_FinishedRun(t *testing.T) {
	w := newWatchdog(testutil.NewFakeClock(), 0)
	assert.True(t, w.Check(&fakeStopper{finished: true}))
}

func TestWatchdog_ZeroBudgetNeverFires(t *testing.T) {
	clock := testutil.NewFakeClock()
	w := NewWatchdog(0, 0, WithWatchdogClock(clock.Now))
	s := &fakeStopper{}
	clock.Advance(time.Hour)
	assert.False(t, w.Check(s))
	assert.Empty(t, s.shutdowns)

	// Run returns at once.
	w.Run(context.Background(), s)
}

func TestWatchdog_PreemptsSpinner(t *testing.T) {
	w := newWatchdog(testutil.NewFakeClock(), 2)

	for i := 0; i < 2; i++ {
		ev := newEvent(1, 2)
		w.Handle(ctxFor(1, ir.CatBeforeRead), ev)
		assert.True(t, ev.TSet.Has(1))
	}

	ev := newEvent(1, 2)
	w.Handle(ctxFor(1, ir.CatBeforeRead), ev)
	assert.False(t, ev.TSet.Has(1))
	assert.True(t, ev.IsChangePoint())
	assert.Equal(t, ir.ReasonNondeterministic, ev.Reason())

	// The count starts over after a preemption and on another task.
	ev = newEvent(1, 2)
	w.Handle(ctxFor(1, ir.CatBeforeRead), ev)
	assert.True(t, ev.TSet.Has(1))
}

func TestWatchdog_LoneTaskIsNotPreempted(t *testing.T) {
	w := newWatchdog(testutil.NewFakeClock(), 1)
	for i := 0; i < 5; i++ {
		ev := newEvent(1)
		w.Handle(ctxFor(1, ir.CatBeforeRead), ev)
		assert.True(t, ev.TSet.Has(1))
	}
}
