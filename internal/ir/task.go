package ir

import (
	"fmt"
	"strings"
)

// TaskID identifies one controlled task for the lifetime of an engine.
type TaskID uint64

// Clk is the logical clock. It ticks once per capture and is the only
// ordering authority for replay.
type Clk uint64

const (
	// NoTask marks the absence of a decision.
	NoTask TaskID = 0

	// AnyTask lets any eligible parked task stand in for the decision.
	AnyTask TaskID = ^TaskID(0)

	// MainThread is the id of the first registered task.
	MainThread TaskID = 1
)

// IsSentinel reports whether id is NoTask or AnyTask.
func (id TaskID) IsSentinel() bool {
	return id == NoTask || id == AnyTask
}

// String renders sentinels by name and real ids as decimal numbers.
func (id TaskID) String() string {
	switch id {
	case NoTask:
		return "NO_TASK"
	case AnyTask:
		return "ANY_TASK"
	default:
		return fmt.Sprintf("%d", uint64(id))
	}
}

// TaskSet is an insertion-ordered set of task ids.
//
// The engine builds the live pool in registration order, so the first
// element of any set derived from it is the earliest-registered task. The
// FIRST selector depends on that ordering.
//
// The zero value is an empty set ready for use.
type TaskSet struct {
	ids   []TaskID
	index map[TaskID]int
}

// NewTaskSet creates a set containing ids in the given order. Duplicates
// are ignored.
func NewTaskSet(ids ...TaskID) TaskSet {
	var s TaskSet
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id at the end of the set. Returns false if already present.
func (s *TaskSet) Add(id TaskID) bool {
	if s.index == nil {
		s.index = make(map[TaskID]int)
	}
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = len(s.ids)
	s.ids = append(s.ids, id)
	return true
}

// Remove deletes id, preserving the order of the remaining elements.
// Returns false if id was not present.
func (s *TaskSet) Remove(id TaskID) bool {
	pos, ok := s.index[id]
	if !ok {
		return false
	}
	copy(s.ids[pos:], s.ids[pos+1:])
	s.ids = s.ids[:len(s.ids)-1]
	delete(s.index, id)
	for i := pos; i < len(s.ids); i++ {
		s.index[s.ids[i]] = i
	}
	return true
}

// Has reports whether id is in the set.
func (s *TaskSet) Has(id TaskID) bool {
	_, ok := s.index[id]
	return ok
}

// Len returns the number of elements.
func (s *TaskSet) Len() int {
	return len(s.ids)
}

// At returns the i-th element in insertion order.
func (s *TaskSet) At(i int) TaskID {
	return s.ids[i]
}

// IDs returns a copy of the elements in insertion order.
func (s *TaskSet) IDs() []TaskID {
	out := make([]TaskID, len(s.ids))
	copy(out, s.ids)
	return out
}

// Clone returns an independent copy of the set.
func (s *TaskSet) Clone() TaskSet {
	return NewTaskSet(s.ids...)
}

// Clear removes every element.
func (s *TaskSet) Clear() {
	s.ids = s.ids[:0]
	for k := range s.index {
		delete(s.index, k)
	}
}

// String renders the set as "{1, 2, 3}".
func (s *TaskSet) String() string {
	parts := make([]string, len(s.ids))
	for i, id := range s.ids {
		parts[i] = id.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
