// Package store archives recorded traces in SQLite.
//
// The archive holds two tables:
//   - runs: one row per trace, keyed by the run id of its START record
//   - records: every trace record with its position (seq) in the trace
//
// # Ordering
//
// Records are read back ORDER BY seq ASC, which is the order they were
// appended in. Runs are listed ORDER BY run_id COLLATE BINARY; run ids are
// UUIDv7, so that is also the order they were recorded in.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait on lock contention
//   - foreign_keys=ON: Records are deleted with their run
//
// Trace adapts an archived run to trace.Trace so the engine can record to
// or replay from the archive directly.
package store
