package handlers

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/lockstep/internal/event"
	"github.com/roach88/lockstep/internal/ir"
)

type mutex struct {
	owner   ir.TaskID
	count   int
	waiters ir.TaskSet
	// lost is set when the owner exited without releasing.
	lost bool
}

// Mutex tracks mutex ownership from MUTEX_* captures. Args[0] carries the
// mutex key.
//
// Acquisition is granted at capture time: a granted MUTEX_ACQUIRE gets
// ResultGranted in Args[1], a refused one ResultOK and the task becomes a
// waiter, ineligible until the owner releases. The call site captures
// again once it runs. MUTEX_TRYACQUIRE never waits and reports ResultOK
// or ResultBusy.
//
// A waiter that closes a wait-for cycle, or waits for a mutex whose owner
// exited, ends the run with RSRC_DEADLOCK.
type Mutex struct {
	mutexes map[uint64]*mutex
	// waitingOn maps a waiter to the key it waits for. A task waits for
	// at most one mutex.
	waitingOn map[ir.TaskID]uint64

	deadlockCheck bool
	address       AddressMethod
	logger        *slog.Logger
}

// NewMutex creates the handler.
func NewMutex(deadlockCheck bool, address AddressMethod, logger *slog.Logger) *Mutex {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mutex{
		mutexes:       make(map[uint64]*mutex),
		waitingOn:     make(map[ir.TaskID]uint64),
		deadlockCheck: deadlockCheck,
		address:       address,
		logger:        logger,
	}
}

// Handle implements dispatch.Handler.
func (m *Mutex) Handle(ctx *ir.Context, ev *event.Event) {
	key := ctx.Args[0].Value
	switch ctx.Cat {
	case ir.CatMutexAcquire:
		ev.MarkChangePoint()
		if m.acquire(ctx.ID, key) {
			ctx.Args[1] = ir.U64(ResultGranted)
		} else {
			ctx.Args[1] = ir.U64(ResultOK)
			ev.AddFilter(m.Runnable)
		}
	case ir.CatMutexTryAcquire:
		ev.MarkChangePoint()
		ctx.Args[1] = ir.U64(m.tryAcquire(ctx.ID, key))
	case ir.CatMutexRelease:
		ev.MarkChangePoint()
		m.release(ctx.ID, key)
	case ir.CatTaskFini:
		m.abandon(ctx.ID)
	}

	for waiter, k := range m.waitingOn {
		if m.mutexes[k].owner != ir.NoTask {
			ev.TSet.Remove(waiter)
		}
	}

	k, waits := m.waitingOn[ctx.ID]
	if !waits || m.mutexes[k].owner == ir.NoTask {
		return
	}
	if mx := m.mutexes[k]; mx.lost {
		m.logger.Error("deadlock detected: mutex lost",
			"task", ctx.ID.String(),
			"mutex", m.fmtKey(k),
			"owner", mx.owner.String(),
		)
		ev.SetReason(ir.ReasonRsrcDeadlock)
		return
	}
	if !m.deadlockCheck {
		return
	}
	if chain := m.waitChain(ctx.ID); chain != nil {
		m.logger.Error("deadlock detected",
			"task", ctx.ID.String(),
			"mutex", m.fmtKey(k),
			"wait_chain", fmtChain(chain),
		)
		ev.SetReason(ir.ReasonRsrcDeadlock)
	}
}

func (m *Mutex) lookup(key uint64) *mutex {
	mx, ok := m.mutexes[key]
	if !ok {
		mx = &mutex{}
		m.mutexes[key] = mx
	}
	return mx
}

func (m *Mutex) acquire(id ir.TaskID, key uint64) bool {
	mx := m.lookup(key)
	if mx.owner == ir.NoTask || mx.owner == id {
		mx.owner = id
		mx.count++
		if mx.waiters.Remove(id) {
			delete(m.waitingOn, id)
		}
		return true
	}
	if k, ok := m.waitingOn[id]; ok && k != key {
		panic(fmt.Sprintf("mutex: task %s waits for %s and %s", id, m.fmtKey(k), m.fmtKey(key)))
	}
	mx.waiters.Add(id)
	m.waitingOn[id] = key
	return false
}

func (m *Mutex) tryAcquire(id ir.TaskID, key uint64) uint64 {
	mx := m.lookup(key)
	if mx.owner == ir.NoTask || mx.owner == id {
		mx.owner = id
		mx.count++
		return ResultOK
	}
	return ResultBusy
}

func (m *Mutex) release(id ir.TaskID, key uint64) {
	mx, ok := m.mutexes[key]
	if !ok || mx.count == 0 {
		m.logger.Error("release of unacquired mutex", "task", id.String(), "mutex", m.fmtKey(key))
		return
	}
	if mx.owner != id {
		m.logger.Error("mutex released by non-owner",
			"task", id.String(),
			"mutex", m.fmtKey(key),
			"owner", mx.owner.String(),
		)
	}
	mx.count--
	if mx.count > 0 {
		return
	}
	mx.owner = ir.NoTask
	if mx.waiters.Len() == 0 {
		delete(m.mutexes, key)
	}
}

// abandon marks every mutex held by an exiting task as lost.
func (m *Mutex) abandon(id ir.TaskID) {
	if k, ok := m.waitingOn[id]; ok {
		m.mutexes[k].waiters.Remove(id)
		delete(m.waitingOn, id)
	}
	for key, mx := range m.mutexes {
		if mx.owner == id && !mx.lost {
			mx.lost = true
			m.logger.Warn("task exited holding mutex", "task", id.String(), "mutex", m.fmtKey(key))
		}
	}
}

// waitChain follows waiter -> owner edges from self and returns the tasks
// on the way when they lead back to self.
func (m *Mutex) waitChain(self ir.TaskID) []ir.TaskID {
	chain := []ir.TaskID{self}
	seen := map[ir.TaskID]bool{self: true}
	cur := self
	for {
		k, ok := m.waitingOn[cur]
		if !ok {
			return nil
		}
		owner := m.mutexes[k].owner
		switch {
		case owner == ir.NoTask || owner == cur:
			return nil
		case owner == self:
			return chain
		case seen[owner]:
			// A cycle that does not involve self; its own members report it.
			return nil
		}
		seen[owner] = true
		chain = append(chain, owner)
		cur = owner
	}
}

// Runnable reports whether id is not blocked on a held mutex. It is the
// ANY_TASK filter of refused acquisitions.
func (m *Mutex) Runnable(id ir.TaskID) bool {
	k, ok := m.waitingOn[id]
	return !ok || m.mutexes[k].owner == ir.NoTask
}

// Owner returns the task holding key, or NoTask.
func (m *Mutex) Owner(key uint64) ir.TaskID {
	if mx, ok := m.mutexes[key]; ok {
		return mx.owner
	}
	return ir.NoTask
}

// Waiting reports whether id waits for any mutex.
func (m *Mutex) Waiting(id ir.TaskID) bool {
	_, ok := m.waitingOn[id]
	return ok
}

func (m *Mutex) fmtKey(key uint64) string {
	return fmt.Sprintf("0x%x", m.address.Stable(key))
}

func fmtChain(chain []ir.TaskID) string {
	parts := make([]string, len(chain)+1)
	for i, id := range chain {
		parts[i] = id.String()
	}
	parts[len(chain)] = chain[0].String()
	return strings.Join(parts, " -> ")
}
