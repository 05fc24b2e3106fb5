package sched

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 15, 9, 15, 0, 0, time.UTC)

func TestManualRunsInExpiryOrder(t *testing.T) {
	m := NewManual(epoch)
	var got []string

	m.After(300*time.Millisecond, func() { got = append(got, "c") })
	m.After(100*time.Millisecond, func() { got = append(got, "a") })
	m.After(100*time.Millisecond, func() { got = append(got, "b") })

	m.Advance(200 * time.Millisecond)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("Expected [a b] after 200ms, got %v", got)
	}

	m.Advance(100 * time.Millisecond)
	if len(got) != 3 || got[2] != "c" {
		t.Errorf("Expected c to fire at 300ms, got %v", got)
	}
	if !m.Now().Equal(epoch.Add(300 * time.Millisecond)) {
		t.Errorf("Expected virtual clock at +300ms, got %v", m.Now().Sub(epoch))
	}
}

func TestManualCancel(t *testing.T) {
	m := NewManual(epoch)
	fired := false
	h := m.After(time.Second, func() { fired = true })

	if !h.Cancel() {
		t.Fatal("Expected first Cancel to report a pending callback")
	}
	if h.Cancel() {
		t.Error("Expected second Cancel to report nothing pending")
	}

	m.Advance(2 * time.Second)
	if fired {
		t.Error("Cancelled callback must not run")
	}
	if m.Pending() != 0 {
		t.Errorf("Expected no pending callbacks, got %d", m.Pending())
	}
}

func TestManualChainedCallbacksWithinWindow(t *testing.T) {
	m := NewManual(epoch)
	count := 0
	var tick func()
	tick = func() {
		count++
		m.After(time.Second, tick)
	}
	m.After(time.Second, tick)

	m.Advance(5 * time.Second)
	if count != 5 {
		t.Errorf("Expected 5 chained ticks in 5s, got %d", count)
	}
	if m.Pending() != 1 {
		t.Errorf("Expected the next tick to be pending, got %d", m.Pending())
	}
}

func TestManualCancelAfterRun(t *testing.T) {
	m := NewManual(epoch)
	h := m.After(time.Millisecond, func() {})
	m.Advance(time.Millisecond)
	if h.Cancel() {
		t.Error("Expected Cancel after the callback ran to return false")
	}
}

func TestLoopSerialisesWork(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLoop(8)
	go l.Run(ctx)

	var inFlight, maxInFlight atomic.Int32
	work := func() {
		n := inFlight.Add(1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
	}

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			_ = l.Do(ctx, work)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	if maxInFlight.Load() != 1 {
		t.Errorf("Expected at most 1 callback in flight, got %d", maxInFlight.Load())
	}
}

func TestLoopAfterAndCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLoop(8)
	go l.Run(ctx)

	fired := make(chan struct{}, 1)
	l.After(5*time.Millisecond, func() { fired <- struct{}{} })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("Expected scheduled callback to fire")
	}

	var cancelledRan atomic.Bool
	h := l.After(20*time.Millisecond, func() { cancelledRan.Store(true) })
	if !h.Cancel() {
		t.Error("Expected Cancel to report a pending callback")
	}
	time.Sleep(50 * time.Millisecond)
	if cancelledRan.Load() {
		t.Error("Cancelled callback must not run")
	}
}

func TestLoopDoAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := NewLoop(1)
	stopped := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	err := l.Do(context.Background(), func() {})
	if err != ErrStopped {
		t.Errorf("Expected ErrStopped, got %v", err)
	}
}
