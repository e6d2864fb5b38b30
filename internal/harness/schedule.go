package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/lockstep/internal/ir"
	"github.com/roach88/lockstep/internal/trace"
)

// Decision is the part of a SCHED or FORCE record that replay must
// reproduce.
type Decision struct {
	Clk  ir.Clk
	Task ir.TaskID
	Cat  ir.Category
}

func (d Decision) String() string {
	return fmt.Sprintf("%d:%s:%s", d.Clk, d.Task, d.Cat)
}

// Schedule returns the decisions recorded in t, in order.
func Schedule(t trace.Trace) []Decision {
	t.Rewind()
	defer t.Rewind()

	var out []Decision
	for r := t.Next(trace.KindSched | trace.KindForce); r != nil; r = t.Next(trace.KindSched | trace.KindForce) {
		out = append(out, Decision{Clk: r.Clk, Task: r.ID, Cat: r.Cat})
		t.Advance()
	}
	return out
}

// MismatchError reports the first difference between two schedules.
type MismatchError struct {
	Index int
	Want  *Decision
	Got   *Decision
}

func (e *MismatchError) Error() string {
	render := func(d *Decision) string {
		if d == nil {
			return "<end>"
		}
		return d.String()
	}
	return fmt.Sprintf("schedules differ at decision %d: want %s, got %s",
		e.Index, render(e.Want), render(e.Got))
}

// CompareSchedules returns nil when want and got hold the same
// decisions, and a *MismatchError otherwise.
func CompareSchedules(want, got []Decision) error {
	n := max(len(want), len(got))
	for i := 0; i < n; i++ {
		var w, g *Decision
		if i < len(want) {
			w = &want[i]
		}
		if i < len(got) {
			g = &got[i]
		}
		if w == nil || g == nil || *w != *g {
			return &MismatchError{Index: i, Want: w, Got: g}
		}
	}
	return nil
}

// FormatSchedule renders decisions one per line.
func FormatSchedule(ds []Decision) string {
	var b strings.Builder
	for _, d := range ds {
		b.WriteString(d.String())
		b.WriteByte('\n')
	}
	return b.String()
}
