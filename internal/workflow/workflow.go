// Package workflow implements the login, start-bot and stop-bot flows on top
// of the state store.
package workflow

import (
	"context"
	"time"

	"trading-bot-dashboard/internal/broker/zerodha"
	"trading-bot-dashboard/internal/colab"
	"trading-bot-dashboard/internal/interfaces"
	"trading-bot-dashboard/internal/logger"
	"trading-bot-dashboard/internal/metrics"
	"trading-bot-dashboard/internal/sched"
	"trading-bot-dashboard/internal/types"
)

const DefaultLoginLatency = 2 * time.Second

// User-facing texts.
const (
	msgAppInitialized   = "🎯 Application initialized successfully"
	msgConnectPrompt    = "📋 Please connect to your Zerodha account to begin trading"
	msgMissingCreds     = "Please enter both API Key and API Secret"
	msgConnected        = "✅ Successfully connected to Zerodha Kite"
	msgTokenGenerated   = "🔑 Access token generated successfully"
	msgReadyToStart     = "📡 Ready to start trading bot"
	msgLoginSuccess     = "Successfully connected to Zerodha Kite!"
	msgLoginFailed      = "Failed to connect to Kite"
	msgLoginFirst       = "Please login to Kite first"
	msgMissingNotebook  = "Please enter your Google Colab notebook URL"
	msgBotStarted       = "🚀 Trading bot started successfully"
	msgColabConnected   = "🔗 Connected to Google Colab notebook"
	msgPipelineStarting = "📰 Starting news analysis pipeline..."
	msgStartSuccess     = "Trading bot started successfully!"
	msgStartFailed      = "Failed to start trading bot"
	msgBotStoppedLog    = "⏹️ Trading bot stopped"
	msgBotStopped       = "Trading bot stopped"
)

// Store is the part of the state store the workflows drive.
type Store interface {
	Snapshot() types.State
	SetLoading(loading bool)
	SetCredentials(p types.CredentialsPatch)
	SetLoginStatus(loggedIn bool)
	SetLoginURL(url string)
	SetBotRunning(running bool)
	SetError(message *string)
	AppendLog(kind types.LogKind, message string) types.LogEntry
	AddNotification(kind types.LogKind, message string) string
}

type Params struct {
	Store     Store
	Simulator interfaces.Simulator
	Auth      zerodha.Authenticator
	Scheduler sched.Scheduler
	// LoginLatency is the simulated network delay before login completes.
	LoginLatency time.Duration
}

type Workflows struct {
	store   Store
	sim     interfaces.Simulator
	auth    zerodha.Authenticator
	sched   sched.Scheduler
	latency time.Duration
}

var _ interfaces.Workflows = (*Workflows)(nil)

func New(p Params) *Workflows {
	if p.LoginLatency <= 0 {
		p.LoginLatency = DefaultLoginLatency
	}
	return &Workflows{
		store:   p.Store,
		sim:     p.Simulator,
		auth:    p.Auth,
		sched:   p.Scheduler,
		latency: p.LoginLatency,
	}
}

// Welcome appends the two lines a fresh dashboard opens with.
func (w *Workflows) Welcome(ctx context.Context) {
	w.store.AppendLog(types.KindInfo, msgAppInitialized)
	w.store.AppendLog(types.KindInfo, msgConnectPrompt)
	logger.Info(ctx, "Dashboard initialized")
}

// Login validates the stored credentials and, after the simulated latency,
// completes the Kite session. A nil return means the login was accepted; the
// outcome lands in the store once the latency elapses.
func (w *Workflows) Login(ctx context.Context) error {
	snap := w.store.Snapshot()
	if snap.Loading {
		return ErrLoginInProgress
	}

	w.store.SetLoading(true)

	creds := snap.Session.Credentials
	if creds.APIKey == "" || creds.APISecret == "" {
		w.store.AddNotification(types.KindError, msgMissingCreds)
		w.store.SetLoading(false)
		return &ValidationError{Err: ErrMissingCredentials}
	}

	bg := context.WithoutCancel(ctx)
	w.sched.After(w.latency, func() { w.completeLogin(bg, creds) })
	return nil
}

func (w *Workflows) completeLogin(ctx context.Context, creds types.Credentials) {
	defer w.store.SetLoading(false)

	grant, err := w.auth.Authenticate(ctx, creds)
	if err != nil {
		failure := &SimulatedFailure{Op: "login", Err: err}
		msg := failure.Error()
		w.store.SetError(&msg)
		w.store.AddNotification(types.KindError, msgLoginFailed)
		metrics.WorkflowRun("login_complete", "failed")
		logger.ErrorWithErr(ctx, "Kite login failed", failure)
		return
	}

	w.store.SetCredentials(types.CredentialsPatch{AccessToken: &grant.AccessToken})
	w.store.SetLoginURL(grant.LoginURL)
	w.store.SetLoginStatus(true)
	w.store.AppendLog(types.KindSuccess, msgConnected)
	w.store.AppendLog(types.KindInfo, msgTokenGenerated)
	w.store.AppendLog(types.KindInfo, msgReadyToStart)
	w.store.AddNotification(types.KindSuccess, msgLoginSuccess)

	metrics.WorkflowRun("login_complete", "ok")
	logger.Workflow(ctx, "login_complete", "ok", "login_url", grant.LoginURL)
}

// StartBot requires a Kite session and a notebook URL, then marks the bot
// running and starts the activity simulator.
func (w *Workflows) StartBot(ctx context.Context) error {
	snap := w.store.Snapshot()
	if !snap.Session.LoggedIn {
		w.store.AddNotification(types.KindError, msgLoginFirst)
		return &ValidationError{Err: ErrNotLoggedIn}
	}
	notebook := snap.Config.NotebookURL
	if notebook == "" {
		w.store.AddNotification(types.KindError, msgMissingNotebook)
		return &ValidationError{Err: ErrMissingNotebook}
	}

	w.store.SetBotRunning(true)
	w.store.AppendLog(types.KindSuccess, msgBotStarted)
	w.store.AppendLog(types.KindInfo, msgColabConnected)
	w.store.AppendLog(types.KindInfo, msgPipelineStarting)
	w.store.AddNotification(types.KindSuccess, msgStartSuccess)

	if err := w.sim.Start(ctx); err != nil {
		failure := &SimulatedFailure{Op: "start bot", Err: err}
		msg := failure.Error()
		w.store.SetError(&msg)
		w.store.AddNotification(types.KindError, msgStartFailed)
		w.store.SetBotRunning(false)
		return failure
	}

	logger.Info(ctx, "Trading bot running",
		"notebook_id", colab.NotebookID(notebook),
		"capital_per_trade", snap.Config.CapitalPerTrade,
		"sentiment_threshold", snap.Config.SentimentThreshold,
	)
	return nil
}

// StopBot has no preconditions.
func (w *Workflows) StopBot(ctx context.Context) error {
	w.store.SetBotRunning(false)
	w.sim.Stop(ctx)
	w.store.AppendLog(types.KindInfo, msgBotStoppedLog)
	w.store.AddNotification(types.KindInfo, msgBotStopped)
	return nil
}
