package simulator

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"trading-bot-dashboard/internal/sched"
	"trading-bot-dashboard/internal/state"
	"trading-bot-dashboard/internal/types"
)

var epoch = time.Date(2024, 1, 15, 3, 45, 0, 0, time.UTC)

func setup(t *testing.T, pick func(int) int) (*Simulator, *state.Store, *sched.Manual) {
	t.Helper()
	clock := sched.NewManual(epoch)
	store := state.New(clock, state.Options{})
	t.Cleanup(store.Close)

	sim := New(store, clock, Options{
		Random: rand.New(rand.NewSource(42)),
		Pick:   pick,
	})
	t.Cleanup(sim.Close)
	return sim, store, clock
}

func always(i int) func(int) int {
	return func(int) int { return i }
}

func TestCatalogMessages(t *testing.T) {
	want := map[string]string{
		FetchNews:         "Fetched 15 latest financial headlines from NewsData.io",
		SentimentAnalysis: `Analyzing sentiment: "Reliance Industries reports 12% profit growth" - Sentiment: positive (0.89)`,
		PriceLookup:       "Ticker extracted: RELIANCE - Live price: ₹2,847.50",
		OrderDecision:     "Criteria met! Placing BUY order for 8 shares of RELIANCE",
		OrderExecuted:     "ORDER EXECUTED: Bought 8 shares of RELIANCE at market price. Order ID: 240115001234",
	}

	catalog := DefaultCatalog()
	if len(catalog) != 5 {
		t.Fatalf("Expected 5 activities, got %d", len(catalog))
	}
	for _, a := range catalog {
		if got := a.Render(); got != want[a.Name] {
			t.Errorf("%s: expected %q, got %q", a.Name, want[a.Name], got)
		}
		if !a.Kind.Valid() {
			t.Errorf("%s: invalid kind %q", a.Name, a.Kind)
		}
	}
}

func TestStepEffects(t *testing.T) {
	tests := []struct {
		index      int
		wantNews   int
		wantOrders int
	}{
		{0, 1, 0},
		{1, 1, 0},
		{2, 0, 0},
		{3, 0, 1},
		{4, 0, 1},
	}

	for _, tt := range tests {
		sim, store, _ := setup(t, always(tt.index))
		act := sim.Step(context.Background())

		snap := store.Snapshot()
		if snap.Stats.NewsProcessed != tt.wantNews || snap.Stats.OrdersPlaced != tt.wantOrders {
			t.Errorf("%s: expected news=%d orders=%d, got %+v", act.Name, tt.wantNews, tt.wantOrders, snap.Stats)
		}
		if len(snap.Logs) != 1 || snap.Logs[0].Kind != act.Kind {
			t.Errorf("%s: expected one %s log entry, got %+v", act.Name, act.Kind, snap.Logs)
		}
		if tt.wantOrders == 0 && snap.Stats.SuccessRate != 0 {
			t.Errorf("%s: expected successRate untouched, got %v", act.Name, snap.Stats.SuccessRate)
		}
	}
}

func TestSuccessRateCeiling(t *testing.T) {
	sim, store, _ := setup(t, always(4))

	prev := 0.0
	for i := 0; i < 500; i++ {
		sim.Step(context.Background())
		rate := store.Snapshot().Stats.SuccessRate
		if rate > 95 {
			t.Fatalf("Expected successRate <= 95, got %v after %d orders", rate, i+1)
		}
		if rate < prev {
			t.Fatalf("Expected successRate non-decreasing, got %v after %v", rate, prev)
		}
		prev = rate
	}
	if prev != 95 {
		t.Errorf("Expected successRate to settle at the ceiling, got %v", prev)
	}
	if got := store.Snapshot().Stats.OrdersPlaced; got != 500 {
		t.Errorf("Expected 500 orders placed, got %d", got)
	}
}

func TestTicksFollowVariableDelay(t *testing.T) {
	sim, store, clock := setup(t, always(2))
	store.SetBotRunning(true)

	if err := sim.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if sim.State() != types.Running {
		t.Fatalf("Expected running, got %s", sim.State())
	}

	clock.Advance(1999 * time.Millisecond)
	if n := len(store.Snapshot().Logs); n != 0 {
		t.Fatalf("Expected no tick before 2s, got %d logs", n)
	}

	clock.Advance(3 * time.Second)
	if n := len(store.Snapshot().Logs); n < 1 {
		t.Fatalf("Expected a tick within 5s, got %d logs", n)
	}

	// 60s bounds the tick count between 60/5 and 60/2.
	before := len(store.Snapshot().Logs)
	clock.Advance(60 * time.Second)
	ticks := len(store.Snapshot().Logs) - before
	if ticks < 12 || ticks > 30 {
		t.Errorf("Expected 12..30 ticks in 60s, got %d", ticks)
	}
	if clock.Pending() != 1 {
		t.Errorf("Expected one outstanding tick, got %d", clock.Pending())
	}
}

func TestStopCancelsPendingTick(t *testing.T) {
	sim, store, clock := setup(t, always(0))
	store.SetBotRunning(true)
	sim.Start(context.Background())
	clock.Advance(10 * time.Second)

	if !sim.Stop(context.Background()) {
		t.Fatal("Expected Stop to report a running simulator")
	}
	if sim.Stop(context.Background()) {
		t.Error("Expected second Stop to report idle")
	}
	if clock.Pending() != 0 {
		t.Errorf("Expected pending tick cancelled, %d left", clock.Pending())
	}

	snap := store.Snapshot()
	clock.Advance(time.Minute)
	after := store.Snapshot()
	if after.Version != snap.Version || len(after.Logs) != len(snap.Logs) {
		t.Errorf("Expected no activity after stop, logs %d -> %d", len(snap.Logs), len(after.Logs))
	}
}

func TestRestartBeginsFreshChain(t *testing.T) {
	sim, store, clock := setup(t, always(2))
	store.SetBotRunning(true)

	sim.Start(context.Background())
	sim.Start(context.Background())
	if clock.Pending() != 1 {
		t.Fatalf("Expected a single chain, got %d pending", clock.Pending())
	}

	sim.Stop(context.Background())
	sim.Start(context.Background())
	if clock.Pending() != 1 {
		t.Fatalf("Expected a fresh single chain after restart, got %d pending", clock.Pending())
	}

	clock.Advance(5 * time.Second)
	if len(store.Snapshot().Logs) != 1 {
		t.Errorf("Expected exactly one tick from the fresh chain, got %d", len(store.Snapshot().Logs))
	}
}

func TestTickGoesIdleWhenBotFlagCleared(t *testing.T) {
	sim, store, clock := setup(t, always(0))
	store.SetBotRunning(true)
	sim.Start(context.Background())

	store.SetBotRunning(false)
	clock.Advance(5 * time.Second)

	if sim.State() != types.Idle {
		t.Errorf("Expected idle once the bot flag is cleared, got %s", sim.State())
	}
	if len(store.Snapshot().Logs) != 0 {
		t.Errorf("Expected no activity, got %d logs", len(store.Snapshot().Logs))
	}
	if clock.Pending() != 0 {
		t.Errorf("Expected no pending tick, got %d", clock.Pending())
	}
}

func TestStartAfterClose(t *testing.T) {
	sim, _, _ := setup(t, always(0))
	sim.Close()
	if err := sim.Start(context.Background()); err != ErrClosed {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}
