package handlers

import (
	"github.com/roach88/lockstep/internal/event"
	"github.com/roach88/lockstep/internal/ir"
)

type joinee struct {
	finished bool
	detached bool
	waiters  ir.TaskSet
}

// Join makes a JOIN wait for its target. Args[0] carries the target id
// and the result goes to Args[1]: ResultOK, ResultNoTask for an unknown,
// detached or already joined target, ResultDeadlk when the join would
// close a cycle. DETACH reports ResultOK, ResultNoTask or ResultInvalid
// in Args[1].
//
// A joiner is ineligible until its target runs TASK_FINI.
type Join struct {
	tasks   map[ir.TaskID]*joinee
	waiting map[ir.TaskID]ir.TaskID
}

// NewJoin creates the handler.
func NewJoin() *Join {
	return &Join{
		tasks:   make(map[ir.TaskID]*joinee),
		waiting: make(map[ir.TaskID]ir.TaskID),
	}
}

// Handle implements dispatch.Handler.
func (j *Join) Handle(ctx *ir.Context, ev *event.Event) {
	switch ctx.Cat {
	case ir.CatTaskInit:
		j.known(ctx.ID)
	case ir.CatJoin:
		ctx.Args[1] = ir.U64(j.join(ctx.ID, ir.TaskID(ctx.Args[0].Value)))
	case ir.CatDetach:
		ctx.Args[1] = ir.U64(j.detach(ir.TaskID(ctx.Args[0].Value)))
	case ir.CatTaskFini:
		j.fini(ctx.ID)
	default:
		j.known(ctx.ID)
	}

	for waiter := range j.waiting {
		ev.TSet.Remove(waiter)
	}
	if j.Waiting(ctx.ID) {
		ev.MarkChangePoint()
		ev.AddFilter(j.runnable)
	}
}

func (j *Join) known(id ir.TaskID) *joinee {
	t, ok := j.tasks[id]
	if !ok {
		t = &joinee{}
		j.tasks[id] = t
	}
	return t
}

func (j *Join) join(self, target ir.TaskID) uint64 {
	t, ok := j.tasks[target]
	if !ok || t.detached {
		return ResultNoTask
	}
	for cur := target; ; {
		if cur == self {
			return ResultDeadlk
		}
		next, waits := j.waiting[cur]
		if !waits {
			break
		}
		cur = next
	}
	if t.finished {
		delete(j.tasks, target)
		return ResultOK
	}
	t.waiters.Add(self)
	j.waiting[self] = target
	return ResultOK
}

func (j *Join) detach(target ir.TaskID) uint64 {
	t, ok := j.tasks[target]
	if !ok {
		return ResultNoTask
	}
	if t.detached {
		return ResultInvalid
	}
	t.detached = true
	if t.finished {
		delete(j.tasks, target)
	}
	return ResultOK
}

func (j *Join) fini(id ir.TaskID) {
	t := j.known(id)
	t.finished = true
	for _, w := range t.waiters.IDs() {
		delete(j.waiting, w)
	}
	if t.detached || t.waiters.Len() > 0 {
		delete(j.tasks, id)
	}
}

func (j *Join) runnable(id ir.TaskID) bool {
	return !j.Waiting(id)
}

// Waiting reports whether id waits for another task to finish.
func (j *Join) Waiting(id ir.TaskID) bool {
	_, ok := j.waiting[id]
	return ok
}
