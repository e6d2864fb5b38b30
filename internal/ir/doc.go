// Package ir defines the shared vocabulary of the scheduling core.
//
// Everything that crosses a component boundary lives here: task identifiers
// and their sentinels, the logical clock type, the categories of intercepted
// operations, the reasons attached to scheduling decisions, and the Context
// descriptor an interception site hands to the engine.
//
// # Identifiers
//
//   - NoTask (0) means "no decision".
//   - AnyTask (^0) means "any eligible parked task may run".
//   - MainThread (1) is always the first task registered with an engine.
//
// Real task ids are allocated by atomic increment and never collide with
// either sentinel.
//
// # Canonical JSON
//
// START and CONFIG record payloads are written with MarshalCanonical so the
// bytes of a trace depend only on their logical content (sorted keys, NFC
// strings, no floats). Two runs with the same configuration produce
// byte-identical headers.
package ir
