// Package scheduler abstracts simulated latency. Every callback of a
// scheduler runs on one logical task queue, so callers never observe two
// callbacks at the same time.
package scheduler

import (
	"time"
)

// Timer is a pending callback
type Timer interface {
	// Stop prevents any further execution of the callback. It reports
	// whether the call stopped a pending execution.
	Stop() bool
}

// Scheduler runs callbacks after simulated delays
type Scheduler interface {
	// Now returns the scheduler's current time
	Now() time.Time

	// AfterFunc runs fn once after d
	AfterFunc(d time.Duration, fn func()) Timer

	// Every runs fn every d until the returned timer is stopped
	Every(d time.Duration, fn func()) Timer

	// Post queues fn behind the work already due, without delay
	Post(fn func())
}
