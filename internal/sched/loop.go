package sched

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	taskPending int32 = iota
	taskRan
	taskCancelled
)

// Loop serialises callbacks onto one goroutine. Timers are backed by
// time.AfterFunc but their callbacks are queued onto the loop, so a callback
// never runs concurrently with any other work posted to the same loop.
//
// Do must not be called from a callback already running on the loop.
type Loop struct {
	tasks     chan func()
	stopped   chan struct{}
	stopOnce  sync.Once
	startOnce sync.Once
}

var (
	_ Scheduler = (*Loop)(nil)
	_ Executor  = (*Loop)(nil)
)

func NewLoop(buffer int) *Loop {
	if buffer < 1 {
		buffer = 64
	}
	return &Loop{
		tasks:   make(chan func(), buffer),
		stopped: make(chan struct{}),
	}
}

// Run processes callbacks until ctx is cancelled. It must be called once.
func (l *Loop) Run(ctx context.Context) {
	started := false
	l.startOnce.Do(func() { started = true })
	if !started {
		return
	}
	defer l.stopOnce.Do(func() { close(l.stopped) })

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.tasks:
			fn()
		}
	}
}

func (l *Loop) Now() time.Time {
	return time.Now()
}

func (l *Loop) After(d time.Duration, fn func()) Handle {
	t := &loopTask{}
	t.timer = time.AfterFunc(d, func() {
		l.post(func() {
			if t.state.CompareAndSwap(taskPending, taskRan) {
				fn()
			}
		})
	})
	return t
}

func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn()
	}
	select {
	case l.tasks <- task:
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) post(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.stopped:
	}
}

type loopTask struct {
	state atomic.Int32
	timer *time.Timer
}

func (t *loopTask) Cancel() bool {
	if !t.state.CompareAndSwap(taskPending, taskCancelled) {
		return false
	}
	t.timer.Stop()
	return true
}
