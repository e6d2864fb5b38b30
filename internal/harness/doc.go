// Package harness runs instrumented programs under the engine and checks
// what their runs did.
//
// A Program is a Go function over instr.Thread registered by name. Execute
// runs one program once with a configuration, recording and/or replaying
// a trace. Scenarios, loaded from YAML, run a program over a list of seeds
// and evaluate assertions on the outcomes:
//
//	name: lock-order finds the deadlock
//	program: lock-order
//	seeds: [1, 2, 3, 4, 5, 6, 7, 8]
//	assertions:
//	  - type: finds
//	    reason: RSRC_DEADLOCK
//	  - type: replays
//
// Every run of a scenario is recorded to memory; the replays assertion
// replays each recording and requires the same schedule, which is what
// makes a found bug reproducible.
package harness
