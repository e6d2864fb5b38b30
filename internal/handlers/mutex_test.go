package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lockstep/internal/event"
	"github.com/roach88/lockstep/internal/ir"
	"github.com/roach88/lockstep/internal/testutil"
)

func newMutex(deadlockCheck bool) *Mutex {
	return NewMutex(deadlockCheck, AddressNone, testutil.DiscardLogger())
}

// lockOp runs one mutex capture of id with tasks 1..3 eligible.
func lockOp(m *Mutex, id ir.TaskID, cat ir.Category, key uint64) (*ir.Context, *event.Event) {
	ctx := ctxFor(id, cat, ir.U64(key))
	ev := newEvent(1, 2, 3)
	m.Handle(ctx, ev)
	return ctx, ev
}

func TestMutex_AcquireFreeIsGranted(t *testing.T) {
	m := newMutex(true)
	ctx, ev := lockOp(m, 1, ir.CatMutexAcquire, mutexA)

	assert.True(t, ev.IsChangePoint())
	assert.Equal(t, ResultGranted, ctx.Args[1].Value)
	assert.Equal(t, ir.TaskID(1), m.Owner(mutexA))
	assert.Equal(t, 3, ev.TSet.Len())
	assert.Equal(t, 0, ev.Filters.Len())
}

func TestMutex_AcquireHeldWaits(t *testing.T) {
	m := newMutex(true)
	lockOp(m, 1, ir.CatMutexAcquire, mutexA)
	ctx, ev := lockOp(m, 2, ir.CatMutexAcquire, mutexA)

	assert.Equal(t, ResultOK, ctx.Args[1].Value)
	assert.True(t, m.Waiting(2))
	assert.False(t, ev.TSet.Has(2))
	assert.Equal(t, 1, ev.Filters.Len())
	assert.False(t, ev.Filters.Accept(2))
	assert.True(t, ev.Filters.Accept(3))
	assert.Equal(t, ir.ReasonUnknown, ev.Reason())

	// Other captures keep the waiter out too.
	_, ev = lockOp(m, 3, ir.CatBeforeRead, 0)
	assert.False(t, ev.TSet.Has(2))
}

func TestMutex_ReleaseLetsWaiterRetry(t *testing.T) {
	m := newMutex(true)
	lockOp(m, 1, ir.CatMutexAcquire, mutexA)
	lockOp(m, 2, ir.CatMutexAcquire, mutexA)

	_, ev := lockOp(m, 1, ir.CatMutexRelease, mutexA)
	assert.True(t, ev.IsChangePoint())
	assert.True(t, ev.TSet.Has(2), "waiter is eligible once the mutex is free")
	assert.Equal(t, ir.NoTask, m.Owner(mutexA))

	ctx, _ := lockOp(m, 2, ir.CatMutexAcquire, mutexA)
	assert.Equal(t, ResultGranted, ctx.Args[1].Value)
	assert.Equal(t, ir.TaskID(2), m.Owner(mutexA))
	assert.False(t, m.Waiting(2))
}

func TestMutex_Recursive(t *testing.T) {
	m := newMutex(true)
	lockOp(m, 1, ir.CatMutexAcquire, mutexA)
	ctx, _ := lockOp(m, 1, ir.CatMutexAcquire, mutexA)
	assert.Equal(t, ResultGranted, ctx.Args[1].Value)

	lockOp(m, 1, ir.CatMutexRelease, mutexA)
	assert.Equal(t, ir.TaskID(1), m.Owner(mutexA))
	lockOp(m, 1, ir.CatMutexRelease, mutexA)
	assert.Equal(t, ir.NoTask, m.Owner(mutexA))
}

func TestMutex_TryAcquire(t *testing.T) {
	m := newMutex(true)

	ctx, ev := lockOp(m, 1, ir.CatMutexTryAcquire, mutexA)
	assert.True(t, ev.IsChangePoint())
	assert.Equal(t, ResultOK, ctx.Args[1].Value)

	ctx, ev = lockOp(m, 2, ir.CatMutexTryAcquire, mutexA)
	assert.Equal(t, ResultBusy, ctx.Args[1].Value)
	assert.True(t, ev.TSet.Has(2), "a failed trylock never waits")
	assert.False(t, m.Waiting(2))
}

func TestMutex_ReleaseUnacquiredIsLogged(t *testing.T) {
	logger, buf := testutil.BufferLogger()
	m := NewMutex(true, AddressNone, logger)

	_, ev := lockOp(m, 1, ir.CatMutexRelease, mutexA)
	assert.True(t, ev.IsChangePoint())
	assert.Contains(t, buf.String(), "release of unacquired mutex")
}

func TestMutex_ThreeWayCycleIsDeadlock(t *testing.T) {
	logger, buf := testutil.BufferLogger()
	m := NewMutex(true, AddressNone, logger)

	lockOp(m, 1, ir.CatMutexAcquire, mutexA)
	lockOp(m, 2, ir.CatMutexAcquire, mutexB)
	lockOp(m, 3, ir.CatMutexAcquire, mutexC)

	_, ev := lockOp(m, 1, ir.CatMutexAcquire, mutexB)
	assert.Equal(t, ir.ReasonUnknown, ev.Reason())
	_, ev = lockOp(m, 2, ir.CatMutexAcquire, mutexC)
	assert.Equal(t, ir.ReasonUnknown, ev.Reason())

	_, ev = lockOp(m, 3, ir.CatMutexAcquire, mutexA)
	assert.Equal(t, ir.ReasonRsrcDeadlock, ev.Reason())
	assert.Equal(t, 0, ev.TSet.Len())
	assert.Contains(t, buf.String(), "deadlock detected")
	assert.Contains(t, buf.String(), "wait_chain")
}

func TestMutex_DeadlockCheckDisabled(t *testing.T) {
	m := newMutex(false)
	lockOp(m, 1, ir.CatMutexAcquire, mutexA)
	lockOp(m, 2, ir.CatMutexAcquire, mutexB)
	lockOp(m, 1, ir.CatMutexAcquire, mutexB)
	_, ev := lockOp(m, 2, ir.CatMutexAcquire, mutexA)

	assert.Equal(t, ir.ReasonUnknown, ev.Reason())
	assert.Equal(t, 1, ev.TSet.Len())
}

func TestMutex_LostMutexIsDeadlock(t *testing.T) {
	logger, buf := testutil.BufferLogger()
	m := NewMutex(true, AddressNone, logger)

	lockOp(m, 1, ir.CatMutexAcquire, mutexA)
	lockOp(m, 1, ir.CatTaskFini, 0)
	require.Contains(t, buf.String(), "task exited holding mutex")

	_, ev := lockOp(m, 2, ir.CatMutexAcquire, mutexA)
	assert.Equal(t, ir.ReasonRsrcDeadlock, ev.Reason())
	assert.Contains(t, buf.String(), "mutex lost")
}

func TestMutex_WaiterExitDropsWait(t *testing.T) {
	m := newMutex(true)
	lockOp(m, 1, ir.CatMutexAcquire, mutexA)
	lockOp(m, 2, ir.CatMutexAcquire, mutexA)
	lockOp(m, 2, ir.CatTaskFini, 0)

	assert.False(t, m.Waiting(2))
	assert.True(t, m.Runnable(2))
}

func TestMutex_WaitingForTwoMutexesPanics(t *testing.T) {
	m := newMutex(false)
	lockOp(m, 1, ir.CatMutexAcquire, mutexA)
	lockOp(m, 1, ir.CatMutexAcquire, mutexB)
	lockOp(m, 2, ir.CatMutexAcquire, mutexA)

	assert.Panics(t, func() {
		lockOp(m, 2, ir.CatMutexAcquire, mutexB)
	})
}
