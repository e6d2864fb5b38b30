package strategy

import (
	"github.com/roach88/lockstep/internal/dispatch"
	"github.com/roach88/lockstep/internal/event"
	"github.com/roach88/lockstep/internal/ir"
	"github.com/roach88/lockstep/internal/prng"
)

// PCT implements probabilistic concurrency testing: every task gets a
// random priority when it starts, the highest-priority eligible task
// always runs, and up to depth change points re-prioritize the running
// task.
type PCT struct {
	depth  uint64
	length uint64
	rng    *prng.PRNG

	prio  map[ir.TaskID]uint64
	chpts uint64
	steps uint64
	most  int
}

// NewPCT creates a PCT strategy. length is clamped to at least 1.
func NewPCT(depth, length uint64) *PCT {
	if length == 0 {
		length = 1
	}
	return &PCT{depth: depth, length: length, prio: make(map[ir.TaskID]uint64)}
}

func (*PCT) Name() string        { return NamePCT }
func (*PCT) Slot() dispatch.Slot { return dispatch.SlotPCT }

// Seed binds the PRNG once the engine knows the run's seed.
func (p *PCT) Seed(rng *prng.PRNG) {
	p.rng = rng
}

// Stats returns the number of change points inserted, of decisions taken
// and the largest number of tasks seen at once.
func (p *PCT) Stats() (chpts, steps uint64, most int) {
	return p.chpts, p.steps, p.most
}

func (p *PCT) priority(id ir.TaskID) uint64 {
	return p.prio[id]
}

func (p *PCT) isChangePoint(rval uint64) bool {
	return p.chpts < p.depth && rval%p.length <= p.depth
}

func (p *PCT) update(id ir.TaskID, rval uint64) {
	if len(p.prio) <= 1 {
		return
	}
	if !p.isChangePoint(rval) {
		return
	}
	p.prio[id] = rval
	p.chpts++
}

// Handle tracks task priorities and, at change points with a choice to
// make, sorts the eligible set so the highest priority runs.
func (p *PCT) Handle(ctx *ir.Context, ev *event.Event) {
	switch ctx.Cat {
	case ir.CatTaskFini:
		delete(p.prio, ctx.ID)
	case ir.CatTaskInit:
		p.prio[ctx.ID] = p.rng.Next()
	default:
		if _, ok := p.prio[ctx.ID]; !ok {
			p.prio[ctx.ID] = p.rng.Next()
		}
	}
	if len(p.prio) > p.most {
		p.most = len(p.prio)
	}

	if ev.Selector != event.SelectorUndefined || ev.Readonly || ev.Skip ||
		!ev.IsChangePoint() || ev.TSet.Len() <= 1 {
		return
	}

	if ctx.Cat != ir.CatTaskFini {
		p.update(ctx.ID, p.rng.Next())
	}
	p.steps++
	ev.TSet = byPriority(ev.TSet, p.priority)
	decide(ev)
}
