package sched

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Manual is a virtual-time scheduler. Nothing runs until Advance is called;
// callbacks then fire synchronously in expiry order, ties broken by the order
// they were scheduled.
type Manual struct {
	mu    sync.Mutex
	now   time.Time
	seq   uint64
	queue taskQueue
}

var (
	_ Scheduler = (*Manual)(nil)
	_ Executor  = (*Manual)(nil)
)

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) After(d time.Duration, fn func()) Handle {
	if d < 0 {
		d = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTask{due: m.now.Add(d), seq: m.seq, fn: fn, owner: m}
	heap.Push(&m.queue, t)
	return t
}

// Do runs fn inline; the caller already is the logical thread.
func (m *Manual) Do(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fn()
	return nil
}

// Advance moves virtual time forward by d, running every callback that falls
// due, including callbacks scheduled by other callbacks within the window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		if m.queue.Len() == 0 || m.queue[0].due.After(target) {
			m.now = target
			m.mu.Unlock()
			return
		}
		t := heap.Pop(&m.queue).(*manualTask)
		t.index = -1
		m.now = t.due
		m.mu.Unlock()

		t.fn()
	}
}

// Pending reports how many callbacks are still scheduled.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Len()
}

type manualTask struct {
	due   time.Time
	seq   uint64
	fn    func()
	index int
	owner *Manual
}

func (t *manualTask) Cancel() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.index < 0 {
		return false
	}
	heap.Remove(&t.owner.queue, t.index)
	t.index = -1
	return true
}

type taskQueue []*manualTask

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].due.Equal(q[j].due) {
		return q[i].seq < q[j].seq
	}
	return q[i].due.Before(q[j].due)
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x any) {
	t := x.(*manualTask)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return t
}
