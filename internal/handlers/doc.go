// Package handlers holds the dispatcher clients that give captures their
// meaning: which captures are change points, who owns which mutex, who
// waits for whom, and when a run has gone on long enough.
//
// Every handler keeps its own state and only ever narrows the eligible
// set of an event, pins a decision or raises a reason. They run under the
// engine's decision lock and need no locking of their own, except the
// watchdog which is also polled from outside.
//
// Install registers the standard set on an engine:
//
//	hs := handlers.Install(eng, handlers.DefaultConfig(), logger)
//	go hs.Watchdog.Run(ctx, eng)
package handlers
