package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/lockstep/internal/event"
	"github.com/roach88/lockstep/internal/ir"
)

func joinOp(j *Join, id ir.TaskID, cat ir.Category, target ir.TaskID) (uint64, *event.Event) {
	ctx := ctxFor(id, cat, ir.U64(uint64(target)))
	ev := newEvent(1, 2, 3)
	j.Handle(ctx, ev)
	return ctx.Args[1].Value, ev
}

func initTasks(j *Join, ids ...ir.TaskID) {
	for _, id := range ids {
		j.Handle(ctxFor(id, ir.CatTaskInit), newEvent(ids...))
	}
}

func TestJoin_WaitsForLiveTarget(t *testing.T) {
	j := NewJoin()
	initTasks(j, 1, 2, 3)

	res, ev := joinOp(j, 1, ir.CatJoin, 2)
	assert.Equal(t, ResultOK, res)
	assert.True(t, j.Waiting(1))
	assert.True(t, ev.IsChangePoint())
	assert.False(t, ev.TSet.Has(1))
	assert.False(t, ev.Filters.Accept(1))
	assert.True(t, ev.Filters.Accept(3))

	// The target exits: the joiner is eligible at that same capture.
	_, ev = joinOp(j, 2, ir.CatTaskFini, ir.NoTask)
	assert.False(t, j.Waiting(1))
	assert.True(t, ev.TSet.Has(1))

	res, _ = joinOp(j, 3, ir.CatJoin, 2)
	assert.Equal(t, ResultNoTask, res, "a joined task is gone")
}

func TestJoin_FinishedTargetReturnsAtOnce(t *testing.T) {
	j := NewJoin()
	initTasks(j, 1, 3)
	joinOp(j, 3, ir.CatTaskFini, ir.NoTask)

	res, ev := joinOp(j, 1, ir.CatJoin, 3)
	assert.Equal(t, ResultOK, res)
	assert.False(t, j.Waiting(1))
	assert.True(t, ev.TSet.Has(1))

	res, _ = joinOp(j, 1, ir.CatJoin, 3)
	assert.Equal(t, ResultNoTask, res)
}

func TestJoin_Errors(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(j *Join)
		self   ir.TaskID
		target ir.TaskID
		want   uint64
	}{
		{"unknown target", func(*Join) {}, 1, 9, ResultNoTask},
		{"self", func(*Join) {}, 1, 1, ResultDeadlk},
		{"mutual", func(j *Join) { joinOp(j, 1, ir.CatJoin, 2) }, 2, 1, ResultDeadlk},
		{"chain", func(j *Join) {
			joinOp(j, 1, ir.CatJoin, 2)
			joinOp(j, 2, ir.CatJoin, 3)
		}, 3, 1, ResultDeadlk},
		{"detached", func(j *Join) { joinOp(j, 1, ir.CatDetach, 2) }, 1, 2, ResultNoTask},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := NewJoin()
			initTasks(j, 1, 2, 3)
			tt.setup(j)
			res, _ := joinOp(j, tt.self, ir.CatJoin, tt.target)
			assert.Equal(t, tt.want, res)
		})
	}
}

func TestJoin_Detach(t *testing.T) {
	j := NewJoin()
	initTasks(j, 1, 2)

	res, _ := joinOp(j, 1, ir.CatDetach, 2)
	assert.Equal(t, ResultOK, res)
	res, _ = joinOp(j, 1, ir.CatDetach, 2)
	assert.Equal(t, ResultInvalid, res)
	res, _ = joinOp(j, 1, ir.CatDetach, 7)
	assert.Equal(t, ResultNoTask, res)
}
