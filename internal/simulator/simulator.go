// Package simulator produces the synthetic bot activity shown on the
// dashboard while the bot is running.
package simulator

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"trading-bot-dashboard/internal/logger"
	"trading-bot-dashboard/internal/metrics"
	"trading-bot-dashboard/internal/sched"
	"trading-bot-dashboard/internal/types"
)

var ErrClosed = errors.New("simulator closed")

// Sink is the part of the state store the simulator writes to.
type Sink interface {
	AppendLog(kind types.LogKind, message string) types.LogEntry
	UpdateStatistics(p types.StatsPatch)
	Snapshot() types.State
}

// Random is the randomness the simulator draws from; *rand.Rand satisfies it.
type Random interface {
	Intn(n int) int
	Int63n(n int64) int64
	Float64() float64
}

type Config struct {
	MinDelay           time.Duration
	MaxDelay           time.Duration
	SuccessRateCeiling float64
	// SuccessRateStep bounds the random success-rate increase per order.
	SuccessRateStep float64
}

func DefaultConfig() Config {
	return Config{
		MinDelay:           2 * time.Second,
		MaxDelay:           5 * time.Second,
		SuccessRateCeiling: 95,
		SuccessRateStep:    5,
	}
}

type Options struct {
	Config  Config
	Catalog []Activity
	Random  Random
	// Pick selects a catalog index in [0, n). Defaults to Random.Intn.
	Pick func(n int) int
}

// Simulator runs one chain of ticks per Running period. Each tick appends one
// activity to the sink and schedules the next after a fresh random delay.
type Simulator struct {
	mu      sync.Mutex
	sink    Sink
	sched   sched.Scheduler
	cfg     Config
	catalog []Activity
	rnd     Random
	pick    func(n int) int

	state   types.RunState
	gen     uint64
	pending sched.Handle
	closed  bool
}

func New(sink Sink, s sched.Scheduler, opts Options) *Simulator {
	def := DefaultConfig()
	if opts.Config.MinDelay <= 0 {
		opts.Config.MinDelay = def.MinDelay
	}
	if opts.Config.MaxDelay <= opts.Config.MinDelay {
		opts.Config.MaxDelay = opts.Config.MinDelay + (def.MaxDelay - def.MinDelay)
	}
	if opts.Config.SuccessRateCeiling <= 0 {
		opts.Config.SuccessRateCeiling = def.SuccessRateCeiling
	}
	if opts.Config.SuccessRateStep <= 0 {
		opts.Config.SuccessRateStep = def.SuccessRateStep
	}
	if len(opts.Catalog) == 0 {
		opts.Catalog = DefaultCatalog()
	}
	if opts.Random == nil {
		opts.Random = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Pick == nil {
		opts.Pick = opts.Random.Intn
	}

	return &Simulator{
		sink:    sink,
		sched:   s,
		cfg:     opts.Config,
		catalog: opts.Catalog,
		rnd:     opts.Random,
		pick:    opts.Pick,
	}
}

func (s *Simulator) State() types.RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start moves Idle to Running and schedules the first tick. Starting a
// running simulator keeps the existing chain.
func (s *Simulator) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state == types.Running {
		s.mu.Unlock()
		return nil
	}
	s.state = types.Running
	s.gen++
	delay := s.scheduleLocked(s.gen)
	s.mu.Unlock()

	metrics.SimulatorRunning(true)
	logger.Info(ctx, "Simulator started", "first_tick_ms", delay.Milliseconds())
	return nil
}

// Stop moves Running to Idle and cancels the pending tick. It reports whether
// the simulator was running.
func (s *Simulator) Stop(ctx context.Context) bool {
	s.mu.Lock()
	if s.state != types.Running {
		s.mu.Unlock()
		return false
	}
	s.haltLocked()
	s.mu.Unlock()

	metrics.SimulatorRunning(false)
	logger.Info(ctx, "Simulator stopped")
	return true
}

// Close stops the simulator for good.
func (s *Simulator) Close() {
	s.mu.Lock()
	wasRunning := s.state == types.Running
	s.haltLocked()
	s.closed = true
	s.mu.Unlock()

	if wasRunning {
		metrics.SimulatorRunning(false)
	}
}

// Step applies one randomly chosen activity to the sink and returns it.
func (s *Simulator) Step(ctx context.Context) Activity {
	idx := s.pick(len(s.catalog))
	if idx < 0 || idx >= len(s.catalog) {
		idx = 0
	}
	act := s.catalog[idx]
	msg := act.Render()

	s.sink.AppendLog(act.Kind, msg)
	if act.Effects.NewsProcessed {
		stats := s.sink.Snapshot().Stats
		s.sink.UpdateStatistics(types.StatsPatch{NewsProcessed: types.Ptr(stats.NewsProcessed + 1)})
	}
	if act.Effects.OrderPlaced {
		stats := s.sink.Snapshot().Stats
		rate := stats.SuccessRate + s.rnd.Float64()*s.cfg.SuccessRateStep
		if rate > s.cfg.SuccessRateCeiling {
			rate = s.cfg.SuccessRateCeiling
		}
		s.sink.UpdateStatistics(types.StatsPatch{
			OrdersPlaced: types.Ptr(stats.OrdersPlaced + 1),
			SuccessRate:  types.Ptr(rate),
		})
	}

	metrics.SimulatorTick(act.Name)
	logger.Activity(ctx, act.Name, act.Kind, msg)
	return act
}

func (s *Simulator) tick(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.state != types.Running {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.mu.Unlock()

	ctx := context.Background()

	// The bot flag can be cleared without going through Stop.
	if !s.sink.Snapshot().BotRunning {
		s.mu.Lock()
		if gen == s.gen {
			s.haltLocked()
		}
		s.mu.Unlock()
		metrics.SimulatorRunning(false)
		logger.Warn(ctx, "Bot flag cleared, simulator going idle")
		return
	}

	s.Step(ctx)

	s.mu.Lock()
	if gen == s.gen && s.state == types.Running {
		s.scheduleLocked(gen)
	}
	s.mu.Unlock()
}

// scheduleLocked draws the next delay from [MinDelay, MaxDelay).
func (s *Simulator) scheduleLocked(gen uint64) time.Duration {
	span := int64(s.cfg.MaxDelay - s.cfg.MinDelay)
	delay := s.cfg.MinDelay + time.Duration(s.rnd.Int63n(span))
	s.pending = s.sched.After(delay, func() { s.tick(gen) })
	return delay
}

func (s *Simulator) haltLocked() {
	s.state = types.Idle
	s.gen++
	if s.pending != nil {
		s.pending.Cancel()
		s.pending = nil
	}
}
