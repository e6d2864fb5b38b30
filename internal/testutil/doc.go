// Package testutil holds helpers shared by the lockstep test suites: a
// fake wall clock, fixed run ids and loggers that are safe to use from
// task goroutines.
package testutil
