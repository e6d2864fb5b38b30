// Package event defines the ballot passed through dispatch for one
// intercepted call, and the Plan handed back to the call site.
//
// An Event is created by the engine for every capture. Handlers registered
// with the dispatcher inspect and mutate it without knowing about each
// other; the only coordination between them is the set of monotone rules
// the Event enforces:
//
//   - a change point, once marked, stays marked
//   - a reason is only replaced by a reason of strictly higher priority
//   - at most MaxFilters ANY_TASK filters can be stacked
//
// A Plan is the engine's answer: which task to wake, whether the caller
// performs a blocking call, yields, or simply continues, and whether the
// run is shutting down.
package event
