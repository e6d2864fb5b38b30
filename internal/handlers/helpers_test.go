package handlers

import (
	"github.com/roach88/lockstep/internal/event"
	"github.com/roach88/lockstep/internal/ir"
)

func newEvent(ids ...ir.TaskID) *event.Event {
	return event.New(1, ir.NewTaskSet(ids...))
}

func ctxFor(id ir.TaskID, cat ir.Category, args ...ir.Arg) *ir.Context {
	ctx := ir.NewContext(cat, "test", args...)
	ctx.ID = id
	return &ctx
}

const (
	mutexA uint64 = 0x7f0000001010
	mutexB uint64 = 0x7f0000002020
	mutexC uint64 = 0x7f0000003030
)
