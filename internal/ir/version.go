package ir

// Version constants for the trace format and engine.
const (
	// TraceFormatVersion is written into every START record. Replay refuses
	// a trace whose version differs; decisions are only reproducible
	// against the format they were recorded with.
	TraceFormatVersion = 1

	// EngineVersion is the lockstep engine version.
	EngineVersion = "0.1.0"
)
