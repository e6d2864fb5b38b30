package harness

import (
	"github.com/roach88/lockstep/internal/ir"
	"github.com/roach88/lockstep/internal/trace"
)

// RunResult is the outcome of one seed of a scenario.
type RunResult struct {
	Seed     uint64
	RunID    string
	ExitCode int
	Reason   ir.Reason
	Schedule []Decision

	// Err is the run error (task panic, engine failure), if any.
	Err error

	// Replay is set when the scenario replays its recordings: nil means
	// the replay reproduced the schedule and outcome.
	Replay   error
	Replayed bool

	recording trace.Trace
}

// Result is the outcome of a scenario.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool

	Runs []RunResult

	// Errors holds one message per failed assertion.
	Errors []string
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Runs:   []RunResult{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
