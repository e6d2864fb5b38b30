package handlers

import (
	"github.com/roach88/lockstep/internal/event"
	"github.com/roach88/lockstep/internal/ir"
)

// ChangePoints makes every real capture a change point.
func ChangePoints(ctx *ir.Context, ev *event.Event) {
	if ctx.Cat != ir.CatNone {
		ev.MarkChangePoint()
	}
}

// Creation lets any task run after a TASK_CREATE. The creator yields
// until the new task, or whoever it picks, wakes it; nothing else gets a
// say.
func Creation(ctx *ir.Context, ev *event.Event) {
	if ctx.Cat != ir.CatTaskCreate {
		return
	}
	ev.MarkChangePoint()
	ev.TSet.Clear()
	ev.Skip = true
}

// Blocking tags calls and blocks with ReasonCall. A capture that finds
// other tasks back from their calls is recorded, so replay sees them
// return at the same clock.
func Blocking(ctx *ir.Context, ev *event.Event) {
	if ev.Unblocked.Len() > 1 || (ev.Unblocked.Len() == 1 && !ev.Unblocked.Has(ctx.ID)) {
		ev.ShouldRecord = true
	}
	if ctx.Cat == ir.CatCall || ctx.Cat == ir.CatTaskBlock {
		ev.MarkChangePoint()
		ev.SetReason(ir.ReasonCall)
	}
}

// Yield turns explicit yields into change points.
func Yield(ctx *ir.Context, ev *event.Event) {
	switch ctx.Cat {
	case ir.CatUserYield:
		ev.MarkChangePoint()
		ev.SetReason(ir.ReasonUserYield)
	case ir.CatSysYield:
		ev.MarkChangePoint()
		ev.SetReason(ir.ReasonSysYield)
	}
}
