package strategy

import (
	"github.com/roach88/lockstep/internal/dispatch"
	"github.com/roach88/lockstep/internal/event"
	"github.com/roach88/lockstep/internal/ir"
	"github.com/roach88/lockstep/internal/prng"
)

type posTask struct {
	priority uint64
	addr     uint64
	write    bool
}

// POS implements partial order sampling: each task holds a random
// priority that is redrawn after it runs, and tasks racing on the same
// address get fresh priorities so either order is likely.
type POS struct {
	threshold uint64
	divisor   uint64
	rng       *prng.PRNG

	// order keeps iteration deterministic; PRNG draws follow it.
	order ir.TaskSet
	tasks map[ir.TaskID]*posTask
}

// NewPOS creates a POS strategy. Priorities of the running task below
// threshold age every task by divisor instead of being redrawn.
func NewPOS(threshold, divisor uint64) *POS {
	if divisor == 0 {
		divisor = 1
	}
	return &POS{
		threshold: threshold / divisor,
		divisor:   divisor,
		tasks:     make(map[ir.TaskID]*posTask),
	}
}

func (*POS) Name() string        { return NamePOS }
func (*POS) Slot() dispatch.Slot { return dispatch.SlotPOS }

// Seed binds the PRNG once the engine knows the run's seed.
func (p *POS) Seed(rng *prng.PRNG) {
	p.rng = rng
}

func (p *POS) register(id ir.TaskID) *posTask {
	t := &posTask{priority: p.rng.Next()}
	p.tasks[id] = t
	p.order.Add(id)
	return t
}

func (p *POS) priority(id ir.TaskID) uint64 {
	if t, ok := p.tasks[id]; ok {
		return t.priority
	}
	return 0
}

// age scales every priority up, saturating.
func (p *POS) age() {
	for _, t := range p.tasks {
		if t.priority > ^uint64(0)/p.divisor {
			t.priority = ^uint64(0)
			continue
		}
		t.priority *= p.divisor
	}
}

// resetRaces redraws the priority of every task touching the address of
// id when at least one of the accesses is a write.
func (p *POS) resetRaces(id ir.TaskID) {
	t, ok := p.tasks[id]
	if !ok || t.addr == 0 {
		return
	}
	race := false
	for _, oid := range p.order.IDs() {
		o := p.tasks[oid]
		if oid == id || o.addr != t.addr {
			continue
		}
		if t.write || o.write {
			race = true
			break
		}
	}
	if !race {
		return
	}
	for _, oid := range p.order.IDs() {
		o := p.tasks[oid]
		if oid == id || o.addr != t.addr {
			continue
		}
		o.priority = p.rng.Next()
	}
}

// Handle updates the access of the running task and sorts the eligible
// set by priority at change points with a choice to make.
func (p *POS) Handle(ctx *ir.Context, ev *event.Event) {
	if ev.Skip {
		return
	}

	var addr uint64
	write := false
	switch ctx.Cat {
	case ir.CatTaskFini:
		delete(p.tasks, ctx.ID)
		p.order.Remove(ctx.ID)
	case ir.CatTaskInit:
		if _, ok := p.tasks[ctx.ID]; !ok {
			p.register(ctx.ID)
		}
	case ir.CatBeforeWrite, ir.CatBeforeAWrite, ir.CatBeforeCmpxchg,
		ir.CatBeforeXchg, ir.CatBeforeRMW:
		write = true
		addr = ctx.Args[0].Value
	case ir.CatBeforeARead, ir.CatBeforeRead:
		addr = ctx.Args[0].Value
	}

	if !ev.IsChangePoint() || ev.Selector != event.SelectorUndefined ||
		ev.Readonly || ev.TSet.Len() <= 1 {
		return
	}

	if ctx.Cat != ir.CatTaskFini {
		t, ok := p.tasks[ctx.ID]
		if !ok {
			t = p.register(ctx.ID)
		}
		t.write = write
		t.addr = addr
		if t.priority < p.threshold {
			p.age()
		} else {
			t.priority = p.rng.Next()
		}
	}
	ev.TSet = byPriority(ev.TSet, p.priority)
	p.resetRaces(ev.TSet.At(0))
	decide(ev)
}
