// Package engine sequences the capture points of a run.
//
// Every instrumented operation of a task reports to the engine through
// Capture before it takes effect. The engine ticks the logical clock,
// builds an event from the pool of live tasks, runs the registered
// handlers over it and turns their verdict into a Plan: wake this task,
// perform the call, yield, shut down. The mediator realizes the plan.
//
// ARCHITECTURE:
//
// One decision at a time:
// Capture and Resume serialize on the engine's decision lock. Every task
// other than the one deciding is parked in the switcher, so the order in
// which tasks run is exactly the order of decisions.
//
// Record and replay:
// Decisions that hand control to another task are appended to the output
// trace. Replaying that trace restores the recorded seed and pins every
// recorded decision at its clock; a record whose clock was skipped or
// whose category differs ends the run with ReasonDiverged.
//
// Termination:
// Fini is idempotent. It writes the EXIT record into capacity reserved at
// Init, saves the trace and releases every parked task.
//
// CRITICAL PATTERNS:
//
// Logical clock:
// The clock ticks once per capture, before any handler runs. Record
// clocks are compared against it; wall time is never used for ordering.
//
// Single source of randomness:
// Random choices draw from the engine's PRNG only, so a seed and a trace
// fully determine a run.
package engine
