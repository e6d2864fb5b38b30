package event

import (
	"fmt"

	"github.com/roach88/lockstep/internal/ir"
)

// MaxFilters is the number of ANY_TASK filters an event can carry.
const MaxFilters = 16

// AnyTaskFilter decides whether a parked task may stand in for a wildcard
// wake.
type AnyTaskFilter func(id ir.TaskID) bool

// AnyTaskFilters is a fixed-capacity stack of filters. A task is accepted
// only if every filter accepts it; an empty stack accepts everything.
//
// The zero value is an empty stack.
type AnyTaskFilters struct {
	n  int
	fs [MaxFilters]AnyTaskFilter
}

// Push appends f. Panics when the stack is full or f is nil.
func (s *AnyTaskFilters) Push(f AnyTaskFilter) {
	if f == nil {
		panic("event: nil any-task filter")
	}
	if s.n == MaxFilters {
		panic(fmt.Sprintf("event: more than %d any-task filters", MaxFilters))
	}
	s.fs[s.n] = f
	s.n++
}

// Len returns the number of stacked filters.
func (s *AnyTaskFilters) Len() int {
	return s.n
}

// Accept reports whether every filter accepts id.
func (s *AnyTaskFilters) Accept(id ir.TaskID) bool {
	for i := 0; i < s.n; i++ {
		if !s.fs[i](id) {
			return false
		}
	}
	return true
}
