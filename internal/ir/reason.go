package ir

import "fmt"

// Reason explains why a scheduling decision was taken or why the run ends.
type Reason uint64

const (
	ReasonUnknown Reason = iota
	ReasonDeterministic
	ReasonNondeterministic
	ReasonCall
	ReasonWatchdog
	ReasonSysYield
	ReasonUserYield
	ReasonUserOrder
	ReasonAssertFail
	ReasonRsrcDeadlock
	ReasonSegfault
	ReasonSigint
	ReasonSigabrt
	ReasonSigterm
	ReasonSigkill
	ReasonSuccess
	ReasonIgnore
	ReasonAbort
	ReasonShutdown
	ReasonRuntimeSegfault
	ReasonRuntimeSigint
	ReasonRuntimeSigabrt
	ReasonRuntimeSigterm
	ReasonRuntimeSigkill
	ReasonImpasse
	// ReasonDiverged marks a replay whose trace no longer matches the
	// execution. It outranks every other reason.
	ReasonDiverged

	reasonEnd
)

var reasonNames = [...]string{
	ReasonUnknown:          "UNKNOWN",
	ReasonDeterministic:    "DETERMINISTIC",
	ReasonNondeterministic: "NONDETERMINISTIC",
	ReasonCall:             "CALL",
	ReasonWatchdog:         "WATCHDOG",
	ReasonSysYield:         "SYS_YIELD",
	ReasonUserYield:        "USER_YIELD",
	ReasonUserOrder:        "USER_ORDER",
	ReasonAssertFail:       "ASSERT_FAIL",
	ReasonRsrcDeadlock:     "RSRC_DEADLOCK",
	ReasonSegfault:         "SEGFAULT",
	ReasonSigint:           "SIGINT",
	ReasonSigabrt:          "SIGABRT",
	ReasonSigterm:          "SIGTERM",
	ReasonSigkill:          "SIGKILL",
	ReasonSuccess:          "SUCCESS",
	ReasonIgnore:           "IGNORE",
	ReasonAbort:            "ABORT",
	ReasonShutdown:         "SHUTDOWN",
	ReasonRuntimeSegfault:  "RUNTIME_SEGFAULT",
	ReasonRuntimeSigint:    "RUNTIME_SIGINT",
	ReasonRuntimeSigabrt:   "RUNTIME_SIGABRT",
	ReasonRuntimeSigterm:   "RUNTIME_SIGTERM",
	ReasonRuntimeSigkill:   "RUNTIME_SIGKILL",
	ReasonImpasse:          "IMPASSE",
	ReasonDiverged:         "DIVERGED",
}

// String returns the upper-case name of the reason.
func (r Reason) String() string {
	if r < reasonEnd {
		return reasonNames[r]
	}
	return fmt.Sprintf("REASON(%d)", uint64(r))
}

// ParseReason is the inverse of Reason.String.
func ParseReason(s string) (Reason, error) {
	for i, name := range reasonNames {
		if name == s {
			return Reason(i), nil
		}
	}
	return ReasonUnknown, fmt.Errorf("unknown reason %q", s)
}

// IsRuntime reports whether the reason was raised by the runtime itself
// rather than by the target program.
func (r Reason) IsRuntime() bool {
	switch r {
	case ReasonRuntimeSegfault, ReasonRuntimeSigint, ReasonRuntimeSigabrt,
		ReasonRuntimeSigterm, ReasonRuntimeSigkill:
		return true
	}
	return false
}

// IsShutdown reports an orderly end of the run.
func (r Reason) IsShutdown() bool {
	return r == ReasonShutdown || r == ReasonSuccess || r == ReasonIgnore
}

// IsAbort reports an end of the run caused by a detected bug or signal.
func (r Reason) IsAbort() bool {
	switch r {
	case ReasonAssertFail, ReasonRsrcDeadlock, ReasonSegfault, ReasonSigint,
		ReasonSigabrt, ReasonAbort, ReasonRuntimeSegfault, ReasonRuntimeSigint,
		ReasonRuntimeSigabrt, ReasonImpasse, ReasonSigterm, ReasonRuntimeSigterm,
		ReasonSigkill, ReasonRuntimeSigkill, ReasonWatchdog, ReasonDiverged:
		return true
	}
	return false
}

// IsTerminate reports whether the reason ends the run.
func (r Reason) IsTerminate() bool {
	return r.IsShutdown() || r.IsAbort()
}

// IsRecordFinal reports whether the reason is worth keeping in the EXIT
// record of a trace.
func (r Reason) IsRecordFinal() bool {
	switch r {
	case ReasonSuccess, ReasonAssertFail, ReasonShutdown, ReasonAbort,
		ReasonRsrcDeadlock, ReasonImpasse, ReasonWatchdog, ReasonDiverged:
		return true
	}
	return false
}

// Priority orders reasons so a handler cannot clobber a more important
// cause with a less important one. Divergence ranks highest, then detected
// bugs and signals, then orderly shutdown, then scheduling hints.
func (r Reason) Priority() int {
	switch {
	case r == ReasonDiverged:
		return 5
	case r.IsAbort():
		return 4
	case r.IsShutdown():
		return 3
	case r == ReasonUnknown:
		return 0
	case r == ReasonDeterministic:
		return 1
	default:
		return 2
	}
}
