package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"trading-bot-dashboard/internal/broker/brokerobs"
	"trading-bot-dashboard/internal/broker/zerodha"
	"trading-bot-dashboard/internal/interfaces"
	"trading-bot-dashboard/internal/logger"
	"trading-bot-dashboard/internal/sched"
	"trading-bot-dashboard/internal/server"
	"trading-bot-dashboard/internal/simulator"
	"trading-bot-dashboard/internal/state"
	"trading-bot-dashboard/internal/store"
	"trading-bot-dashboard/internal/trace"
	"trading-bot-dashboard/internal/workflow"
	"trading-bot-dashboard/internal/workflow/workflowobs"
)

// initializeSystem initializes environment, logger and tracer
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// dashboard is the wired application; every component shares one event loop
type dashboard struct {
	loop  *sched.Loop
	store *state.Store
	sim   *simulator.Simulator
	wf    *workflow.Workflows
	srv   *server.Server
}

// initializeAuthenticator returns the simulated Kite authenticator with observability
func initializeAuthenticator(ctx context.Context, cfg *store.Config) zerodha.Authenticator {
	auth := zerodha.NewFromConfig(cfg)
	logger.Warn(ctx, "Running in DRY_RUN mode - Kite login and orders are simulated",
		"exchange", cfg.Broker.Exchange,
	)
	return brokerobs.Wrap(auth)
}

// initializeWorkflows wraps the workflows with observability middleware
func initializeWorkflows(wf *workflow.Workflows) interfaces.Workflows {
	return workflowobs.Wrap(wf)
}

func initializeDashboard(ctx context.Context, cfg *store.Config) *dashboard {
	loop := sched.NewLoop(0)

	st := state.New(loop, state.Options{
		LogCapacity:     cfg.Log.Capacity,
		NotificationTTL: cfg.NotificationTTL(),
		Initial:         cfg.InitialConfiguration(),
	})

	sim := simulator.New(st, loop, simulator.Options{
		Config: simulator.Config{
			MinDelay:           cfg.MinDelay(),
			MaxDelay:           cfg.MaxDelay(),
			SuccessRateCeiling: cfg.Simulator.SuccessRateCeiling,
			SuccessRateStep:    cfg.Simulator.SuccessRateStep,
		},
	})

	wf := workflow.New(workflow.Params{
		Store:        st,
		Simulator:    sim,
		Auth:         initializeAuthenticator(ctx, cfg),
		Scheduler:    loop,
		LoginLatency: cfg.LoginLatency(),
	})

	srv := server.New(server.Params{
		Store:     st,
		Workflows: initializeWorkflows(wf),
		Executor:  loop,
	})

	return &dashboard{loop: loop, store: st, sim: sim, wf: wf, srv: srv}
}

// seed runs the startup steps on the loop: the welcome lines and any
// credentials provided through the environment.
func (d *dashboard) seed(ctx context.Context, cfg *store.Config) error {
	return d.loop.Do(ctx, func() {
		d.wf.Welcome(ctx)
		if p := cfg.EnvCredentials(); p.APIKey != nil || p.APISecret != nil {
			d.store.SetCredentials(p)
			logger.Info(ctx, "Kite credentials loaded from environment")
		}
	})
}

func (d *dashboard) close() {
	d.srv.Close()
	d.sim.Close()
	d.store.Close()
}
