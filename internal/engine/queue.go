package engine

import (
	"sync"

	"github.com/roach88/lockstep/internal/ir"
)

// unblockedQueue collects tasks that came back from a blocking call.
//
// Returns are reported from the task's own goroutine while another task
// may hold the decision lock, so the queue has its own mutex. The engine
// drains it at the start of every capture and makes the tasks eligible
// again.
type unblockedQueue struct {
	mu    sync.Mutex
	tasks []ir.TaskID
}

func newUnblockedQueue() *unblockedQueue {
	return &unblockedQueue{
		tasks: make([]ir.TaskID, 0, 16),
	}
}

// Enqueue records that id returned. Safe from any goroutine.
func (q *unblockedQueue) Enqueue(id ir.TaskID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, id)
}

// DrainInto moves every queued task into set, in arrival order, and
// empties the queue. Returns the number of tasks moved.
func (q *unblockedQueue) DrainInto(set *ir.TaskSet) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.tasks)
	for _, id := range q.tasks {
		set.Add(id)
	}
	// Keep the backing array; drains happen on every capture.
	q.tasks = q.tasks[:0]
	return n
}

// Len returns the number of queued tasks.
func (q *unblockedQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
