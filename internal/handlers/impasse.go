package handlers

import (
	"log/slog"

	"github.com/roach88/lockstep/internal/event"
	"github.com/roach88/lockstep/internal/ir"
)

// Impasse ends the run when no task can make progress: a change point
// leaves nobody eligible, nobody is out in a blocking call that could
// return, and tasks are still alive.
//
// It runs after every handler that narrows the eligible set, so it sees
// the final verdict of the capture.
type Impasse struct {
	live   ir.TaskSet
	inCall ir.TaskSet
	logger *slog.Logger
}

// NewImpasse creates the handler.
func NewImpasse(logger *slog.Logger) *Impasse {
	if logger == nil {
		logger = slog.Default()
	}
	return &Impasse{logger: logger}
}

// Handle implements dispatch.Handler.
func (h *Impasse) Handle(ctx *ir.Context, ev *event.Event) {
	for _, id := range ev.Unblocked.IDs() {
		h.inCall.Remove(id)
	}

	switch ctx.Cat {
	case ir.CatTaskFini:
		h.live.Remove(ctx.ID)
	case ir.CatCall, ir.CatTaskBlock:
		h.live.Add(ctx.ID)
		h.inCall.Add(ctx.ID)
		return
	default:
		h.live.Add(ctx.ID)
	}

	if !ev.IsChangePoint() || ev.Next != ir.NoTask || ev.TSet.Len() > 0 {
		return
	}
	if h.inCall.Len() > 0 || h.live.Len() == 0 {
		return
	}
	if ev.SetReason(ir.ReasonImpasse) {
		h.logger.Error("impasse: no task can run",
			"clk", uint64(ev.Clock()),
			"task", ctx.ID.String(),
			"cat", ctx.Cat.String(),
			"live", h.live.String(),
		)
	}
}

// InCall reports whether id is out in a blocking call.
func (h *Impasse) InCall(id ir.TaskID) bool {
	return h.inCall.Has(id)
}
