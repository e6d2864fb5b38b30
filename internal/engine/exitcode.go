package engine

import (
	"fmt"
	"strings"

	"github.com/roach88/lockstep/internal/ir"
)

// Process exit codes reported by Fini.
const (
	ExitOK       = 0
	ExitAbort    = 1
	ExitDeadlock = 2
	ExitDiverged = 3
	ExitWatchdog = 4

	// ExitAltAbort replaces every abort code when alternative return codes
	// are enabled, so a wrapper can tell engine aborts from program exits.
	ExitAltAbort = 240
)

// ExitCodeFor maps the final reason of a run to a process exit code.
func ExitCodeFor(reason ir.Reason, alt bool) int {
	if reason == ir.ReasonUnknown || reason.IsShutdown() {
		return ExitOK
	}
	if alt && reason.IsAbort() {
		return ExitAltAbort
	}
	switch reason {
	case ir.ReasonRsrcDeadlock, ir.ReasonImpasse:
		return ExitDeadlock
	case ir.ReasonDiverged:
		return ExitDiverged
	case ir.ReasonWatchdog:
		return ExitWatchdog
	}
	return ExitAbort
}

// Granularity selects which decisions reach the output trace.
//
// Switches are always recorded; without them a run cannot be replayed.
type Granularity uint8

const (
	// RecordSwitches records decisions that hand control to another task.
	RecordSwitches Granularity = 1 << iota
	// RecordChangePoints also records change points where the caller kept
	// running.
	RecordChangePoints
	// RecordCaptures records every capture.
	RecordCaptures
)

// ParseGranularity reads "switch", "chpt" or "capture".
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "switch":
		return RecordSwitches, nil
	case "chpt":
		return RecordSwitches | RecordChangePoints, nil
	case "capture":
		return RecordSwitches | RecordChangePoints | RecordCaptures, nil
	}
	return 0, fmt.Errorf("unknown record granularity %q", s)
}

// String returns the coarsest name covering g.
func (g Granularity) String() string {
	switch {
	case g&RecordCaptures != 0:
		return "capture"
	case g&RecordChangePoints != 0:
		return "chpt"
	}
	return "switch"
}
