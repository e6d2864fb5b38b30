// Package switcher parks and wakes controlled tasks.
//
// The switcher is the only place a task actually blocks. The engine has
// already decided which task runs next; the switcher just makes it so:
// Wake marks the chosen task runnable and Yield parks the caller until it
// is chosen in turn.
//
// Wakes are remembered. A Wake that arrives before the matching Yield is
// consumed by that Yield, which then returns without blocking. A wildcard
// Wake(AnyTask) goes to the first parked task, in registration order,
// whose filters accept it; when no such task is parked the wildcard is
// remembered and consumed by the next accepting Yield.
package switcher

import (
	"sort"
	"sync"
	"time"

	"github.com/roach88/lockstep/internal/event"
	"github.com/roach88/lockstep/internal/ir"
)

// Status is the outcome of a Yield.
type Status int

const (
	// Continue means the wake was already pending and the caller never
	// blocked.
	Continue Status = iota
	// Changed means the caller blocked and was woken later.
	Changed
	// Aborted means the run is shutting down. The caller must unwind
	// without touching shared state.
	Aborted
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Continue:
		return "CONTINUE"
	case Changed:
		return "CHANGED"
	case Aborted:
		return "ABORTED"
	default:
		return "INVALID"
	}
}

type slot struct {
	order   uint64
	parked  bool
	woken   bool
	slack   time.Duration
	filters event.AnyTaskFilters
}

// Switcher realizes scheduling decisions by parking and waking tasks.
//
// Thread-safety: all methods are safe for concurrent use.
type Switcher struct {
	mu      sync.Mutex
	cond    *sync.Cond
	tasks   map[ir.TaskID]*slot
	nextOrd uint64

	// pendingAny counts wildcard wakes that found no parked taker.
	pendingAny int
	aborted    bool

	sleep func(time.Duration)
}

// New creates a switcher with no registered task.
func New() *Switcher {
	s := &Switcher{
		tasks: make(map[ir.TaskID]*slot),
		sleep: time.Sleep,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// slotFor returns the bookkeeping of id, registering it on first use.
// Registration order decides wildcard tie-breaks. Caller holds s.mu.
func (s *Switcher) slotFor(id ir.TaskID) *slot {
	sl, ok := s.tasks[id]
	if !ok {
		s.nextOrd++
		sl = &slot{order: s.nextOrd}
		s.tasks[id] = sl
	}
	return sl
}

// Register makes id known to the switcher so that registration order
// follows task creation order rather than first use. Registering twice is
// harmless.
func (s *Switcher) Register(id ir.TaskID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slotFor(id)
}

// Forget removes a retired task.
func (s *Switcher) Forget(id ir.TaskID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
}

// Yield parks id until it is woken or the switcher aborts. filters
// restrict which wildcard wakes id may consume; they do not affect wakes
// addressed to id.
//
// A woken task sleeps for the slack budget given to its Wake, if any,
// before returning.
func (s *Switcher) Yield(id ir.TaskID, filters *event.AnyTaskFilters) Status {
	s.mu.Lock()
	sl := s.slotFor(id)

	status := Continue
	for {
		if s.aborted {
			sl.parked = false
			s.mu.Unlock()
			return Aborted
		}
		if sl.woken {
			sl.woken = false
			break
		}
		if s.pendingAny > 0 && acceptsWildcard(filters, id) {
			s.pendingAny--
			break
		}
		if !sl.parked {
			sl.parked = true
			if filters != nil {
				sl.filters = *filters
			} else {
				sl.filters = event.AnyTaskFilters{}
			}
		}
		status = Changed
		s.cond.Wait()
	}
	sl.parked = false
	slack := sl.slack
	sl.slack = 0
	s.mu.Unlock()

	if slack > 0 {
		s.sleep(slack)
	}
	return status
}

func acceptsWildcard(filters *event.AnyTaskFilters, id ir.TaskID) bool {
	return filters == nil || filters.Accept(id)
}

// Wake marks id runnable. For AnyTask it picks the first parked task, in
// registration order, whose filters accept it, or remembers the wildcard
// for the next accepting Yield. slack is slept by the woken task before it
// proceeds.
func (s *Switcher) Wake(id ir.TaskID, slack time.Duration) {
	if id == ir.NoTask {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aborted {
		return
	}

	if id == ir.AnyTask {
		target := s.firstParked()
		if target == nil {
			s.pendingAny++
			return
		}
		target.woken = true
		target.slack = slack
		s.cond.Broadcast()
		return
	}

	sl := s.slotFor(id)
	sl.woken = true
	sl.slack = slack
	s.cond.Broadcast()
}

// firstParked returns the earliest-registered parked task that accepts a
// wildcard and is not already woken. Caller holds s.mu.
func (s *Switcher) firstParked() *slot {
	var best *slot
	for id, sl := range s.tasks {
		if !sl.parked || sl.woken || !sl.filters.Accept(id) {
			continue
		}
		if best == nil || sl.order < best.order {
			best = sl
		}
	}
	return best
}

// Abort makes every parked and future Yield return Aborted.
func (s *Switcher) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborted = true
	s.cond.Broadcast()
}

// Aborted reports whether Abort was called.
func (s *Switcher) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

// Parked returns the ids of the currently parked tasks in registration
// order.
func (s *Switcher) Parked() []ir.TaskID {
	s.mu.Lock()
	defer s.mu.Unlock()

	type entry struct {
		id    ir.TaskID
		order uint64
	}
	var parked []entry
	for id, sl := range s.tasks {
		if sl.parked {
			parked = append(parked, entry{id, sl.order})
		}
	}
	sort.Slice(parked, func(i, j int) bool { return parked[i].order < parked[j].order })
	out := make([]ir.TaskID, len(parked))
	for i, e := range parked {
		out[i] = e.id
	}
	return out
}
