package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/lockstep/internal/ir"
)

// RuntimeError represents an error detected while driving a run.
//
// Runtime errors include:
//   - Divergence: a replayed run no longer matches its trace
//   - Protocol violation: a call site broke the capture/resume sequence
//   - Version mismatch: a trace was written by an incompatible format
//   - Trace I/O: the recorder could not load or persist a trace
//
// Protocol violations are programming errors and are raised with panic;
// the other codes are returned or stored on the engine.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Clock is the logical clock at which the error was detected, or 0.
	Clock ir.Clk

	// Task is the task that triggered the error, or NoTask.
	Task ir.TaskID

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeDiverged indicates the replayed run left the recorded schedule.
	ErrCodeDiverged RuntimeErrorCode = "TRACE_DIVERGED"

	// ErrCodeProtocol indicates an out-of-sequence engine call.
	ErrCodeProtocol RuntimeErrorCode = "PROTOCOL_VIOLATION"

	// ErrCodeVersionMismatch indicates a trace format the engine cannot read.
	ErrCodeVersionMismatch RuntimeErrorCode = "VERSION_MISMATCH"

	// ErrCodeTraceIO indicates a failure loading or saving a trace.
	ErrCodeTraceIO RuntimeErrorCode = "TRACE_IO"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Clock != 0 {
		msg += fmt.Sprintf(" (clk=%d", e.Clock)
		if e.Task != ir.NoTask {
			msg += fmt.Sprintf(", task=%s", e.Task)
		}
		msg += ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsDivergence returns true if err is a divergence error.
// Uses errors.As to handle wrapped errors.
func IsDivergence(err error) bool {
	return hasCode(err, ErrCodeDiverged)
}

// IsProtocolViolation returns true if err is a protocol violation.
func IsProtocolViolation(err error) bool {
	return hasCode(err, ErrCodeProtocol)
}

// IsVersionMismatch returns true if err is a trace version mismatch.
func IsVersionMismatch(err error) bool {
	return hasCode(err, ErrCodeVersionMismatch)
}

// NewDivergenceError creates a RuntimeError for a replay that left its
// trace. want is the recorded category, got the captured one.
func NewDivergenceError(clk, recorded ir.Clk, task ir.TaskID, want, got ir.Category) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeDiverged,
		Message: "replay diverged from trace",
		Clock:   clk,
		Task:    task,
		Details: map[string]string{
			"record_clk": fmt.Sprintf("%d", recorded),
			"want":       want.String(),
			"got":        got.String(),
		},
	}
}

// NewProtocolError creates a RuntimeError for an out-of-sequence call.
func NewProtocolError(task ir.TaskID, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeProtocol,
		Message: fmt.Sprintf(format, args...),
		Task:    task,
	}
}

// NewVersionError creates a RuntimeError for an unreadable trace version.
func NewVersionError(got, want int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeVersionMismatch,
		Message: fmt.Sprintf("trace format version %d, engine reads %d", got, want),
		Details: map[string]string{
			"got":  fmt.Sprintf("%d", got),
			"want": fmt.Sprintf("%d", want),
		},
	}
}

// NewTraceIOError wraps a trace storage failure.
func NewTraceIOError(op string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeTraceIO,
		Message: op,
		Err:     err,
	}
}
