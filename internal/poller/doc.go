// Package poller runs named jobs on a fixed interval.
//
// Each cycle starts every job once, at most Concurrency at a time, and waits
// for all of them before the next tick. A failing job is logged and retried
// on the next cycle; it never stops the others.
package poller
