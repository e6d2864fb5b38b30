// Package trace implements the durable decision log that makes runs
// replayable.
//
// A trace is an append-only sequence of records with a read cursor. The
// recorder appends one SCHED record per recorded decision, framed by a
// START record (seed, strategy, format version) and a final EXIT record.
// Replay walks the same sequence with Next and Advance.
//
// # Backends
//
//   - Flat: every record back to back in one file.
//   - Chunked: a directory of sequentially numbered files holding a fixed
//     number of records each, so truncation drops whole files.
//
// Both satisfy the Trace interface; internal/store adds a SQLite archive
// backend. All backends share the record encoding in codec.go.
//
// # Record layout
//
// Little-endian header followed by the payload:
//
//	task_id  u64
//	clk      u64
//	category u32
//	reason   u64
//	kind     u32
//	size     u64
//	pc       u64
//	data     [size]byte
package trace
