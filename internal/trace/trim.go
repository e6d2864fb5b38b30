package trace

import (
	"fmt"

	"github.com/roach88/lockstep/internal/ir"
)

// TrimToClock drops trailing records whose clock is past clk.
func TrimToClock(t Trace, clk ir.Clk) {
	for r := t.Last(); r != nil && r.Clk > clk; r = t.Last() {
		t.Forget()
	}
}

// TrimToGoal is TrimToClock that may also drop CONFIG records stamped
// exactly at goal, so a fresh configuration can be appended there.
// Returns an error if goal lies past the end of the trace.
func TrimToGoal(t Trace, goal ir.Clk, dropConfig bool) error {
	last := t.Last()
	if last == nil || goal > last.Clk {
		return fmt.Errorf("trim: goal %d past end of trace", goal)
	}
	for r := t.Last(); r != nil; r = t.Last() {
		if r.Clk > goal || (dropConfig && r.Clk == goal && r.Kind == KindConfig) {
			t.Forget()
			continue
		}
		break
	}
	return nil
}

// TrimToCategory drops trailing records until one of category cat.
func TrimToCategory(t Trace, cat ir.Category) {
	for r := t.Last(); r != nil && r.Cat != cat; r = t.Last() {
		t.Forget()
	}
}

// TrimToKind drops trailing records until one matching kinds.
func TrimToKind(t Trace, kinds Kind) {
	for r := t.Last(); r != nil && r.Kind&kinds == 0; r = t.Last() {
		t.Forget()
	}
}

// LastClock returns the clock of the final record, or 0.
func LastClock(t Trace) ir.Clk {
	if r := t.Last(); r != nil {
		return r.Clk
	}
	return 0
}

// ScheduleTask replaces the scheduling records at the final clock with a
// FORCE record choosing task. Replay then runs task at that clock no
// matter what the handlers decide.
func ScheduleTask(t Trace, task ir.TaskID) error {
	last := t.Last()
	if last == nil {
		return fmt.Errorf("schedule task: empty trace")
	}
	clk := last.Clk
	for r := t.Last(); r != nil && r.Clk == clk && r.Kind&(KindSched|KindForce) != 0; r = t.Last() {
		t.Forget()
	}
	return t.Append(&Record{ID: task, Clk: clk, Kind: KindForce})
}
