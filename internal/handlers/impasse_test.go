package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/lockstep/internal/event"
	"github.com/roach88/lockstep/internal/ir"
	"github.com/roach88/lockstep/internal/testutil"
)

func emptyChangePoint() *event.Event {
	ev := event.New(1, ir.TaskSet{})
	ev.MarkChangePoint()
	return ev
}

func TestImpasse_NobodyCanRun(t *testing.T) {
	h := NewImpasse(testutil.DiscardLogger())
	ev := emptyChangePoint()
	h.Handle(ctxFor(1, ir.CatMutexAcquire), ev)
	assert.Equal(t, ir.ReasonImpasse, ev.Reason())
}

func TestImpasse_TaskInCallMayReturn(t *testing.T) {
	h := NewImpasse(testutil.DiscardLogger())

	h.Handle(ctxFor(2, ir.CatCall), emptyChangePoint())
	assert.True(t, h.InCall(2))

	ev := emptyChangePoint()
	h.Handle(ctxFor(1, ir.CatJoin), ev)
	assert.Equal(t, ir.ReasonUnknown, ev.Reason())

	ev = emptyChangePoint()
	ev.Unblocked = ir.NewTaskSet(2)
	h.Handle(ctxFor(1, ir.CatJoin), ev)
	assert.False(t, h.InCall(2))
	assert.Equal(t, ir.ReasonImpasse, ev.Reason())
}

func TestImpasse_Fini(t *testing.T) {
	h := NewImpasse(testutil.DiscardLogger())
	h.Handle(ctxFor(1, ir.CatTaskInit), newEvent(1))

	// The last task leaving is the normal end of a run.
	ev := emptyChangePoint()
	h.Handle(ctxFor(1, ir.CatTaskFini), ev)
	assert.Equal(t, ir.ReasonUnknown, ev.Reason())

	h = NewImpasse(testutil.DiscardLogger())
	h.Handle(ctxFor(1, ir.CatTaskInit), newEvent(1, 2))
	h.Handle(ctxFor(2, ir.CatTaskInit), newEvent(1, 2))
	ev = emptyChangePoint()
	h.Handle(ctxFor(2, ir.CatTaskFini), ev)
	assert.Equal(t, ir.ReasonImpasse, ev.Reason())
}

func TestImpasse_Ignores(t *testing.T) {
	tests := []struct {
		name string
		ev   func() *event.Event
	}{
		{"not a change point", func() *event.Event { return event.New(1, ir.TaskSet{}) }},
		{"eligible task", func() *event.Event {
			ev := event.New(1, ir.NewTaskSet(2))
			ev.MarkChangePoint()
			return ev
		}},
		{"pinned", func() *event.Event {
			ev := emptyChangePoint()
			ev.Next = 2
			return ev
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewImpasse(testutil.DiscardLogger())
			ev := tt.ev()
			h.Handle(ctxFor(1, ir.CatMutexAcquire), ev)
			assert.Equal(t, ir.ReasonUnknown, ev.Reason())
		})
	}
}
