// Package sched provides the single logical thread every state transition and
// timer callback runs on. Loop is the wall-clock implementation used by the
// server; Manual runs on virtual time and is driven explicitly by Advance.
package sched

import (
	"context"
	"errors"
	"time"
)

// ErrStopped is returned by Do once the loop has shut down.
var ErrStopped = errors.New("scheduler stopped")

// Handle identifies one scheduled callback.
type Handle interface {
	// Cancel prevents the callback from running. It reports whether the
	// callback was still pending.
	Cancel() bool
}

// Scheduler schedules deferred callbacks on the logical thread.
type Scheduler interface {
	Now() time.Time
	After(d time.Duration, fn func()) Handle
}

// Executor runs fn on the logical thread and waits for it to finish.
type Executor interface {
	Do(ctx context.Context, fn func()) error
}
