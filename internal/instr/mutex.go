package instr

import (
	"unsafe"

	"github.com/roach88/lockstep/internal/handlers"
	"github.com/roach88/lockstep/internal/ir"
)

// Mutex is a lock whose ownership is decided by the engine. Create it
// with Runtime.NewMutex.
type Mutex struct {
	key uint64
}

// Key returns the id the engine knows the mutex by.
func (mu *Mutex) Key() uint64 {
	return mu.key
}

// Lock acquires mu, waiting for as long as another task holds it. A
// refused acquisition parks the task until the engine picks it again,
// then it retries.
func (t *Thread) Lock(mu *Mutex) {
	if t.m.Detached() {
		return
	}
	for {
		p := t.capture(ir.CatMutexAcquire, "lockstep.Lock", nil, ir.U64(mu.key))
		if p.Args[1].Value == handlers.ResultGranted {
			return
		}
	}
}

// TryLock acquires mu if nobody holds it.
func (t *Thread) TryLock(mu *Mutex) bool {
	if t.m.Detached() {
		return true
	}
	p := t.capture(ir.CatMutexTryAcquire, "lockstep.TryLock", nil, ir.U64(mu.key))
	return p.Args[1].Value == handlers.ResultOK
}

// Unlock releases mu.
func (t *Thread) Unlock(mu *Mutex) {
	if t.m.Detached() {
		return
	}
	t.capture(ir.CatMutexRelease, "lockstep.Unlock", nil, ir.U64(mu.key))
}

func addrOf(p *int64) uint64 {
	return uint64(uintptr(unsafe.Pointer(p)))
}
