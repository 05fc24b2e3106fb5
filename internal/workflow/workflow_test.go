package workflow

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"trading-bot-dashboard/internal/broker/zerodha"
	"trading-bot-dashboard/internal/sched"
	"trading-bot-dashboard/internal/simulator"
	"trading-bot-dashboard/internal/state"
	"trading-bot-dashboard/internal/types"
)

var epoch = time.Date(2024, 1, 15, 3, 45, 0, 0, time.UTC)

const notebook = "https://colab.research.google.com/drive/1AbC"

type harness struct {
	wf    *Workflows
	store *state.Store
	sim   *simulator.Simulator
	clock *sched.Manual
}

func newHarness(t *testing.T, auth zerodha.Authenticator) *harness {
	t.Helper()
	clock := sched.NewManual(epoch)
	store := state.New(clock, state.Options{})
	sim := simulator.New(store, clock, simulator.Options{Random: rand.New(rand.NewSource(7))})
	t.Cleanup(func() {
		sim.Close()
		store.Close()
	})

	if auth == nil {
		auth = zerodha.NewZerodha(zerodha.Params{Now: clock.Now})
	}
	wf := New(Params{Store: store, Simulator: sim, Auth: auth, Scheduler: clock})
	return &harness{wf: wf, store: store, sim: sim, clock: clock}
}

func (h *harness) loggedIn(t *testing.T) {
	t.Helper()
	h.store.SetCredentials(types.CredentialsPatch{APIKey: types.Ptr("K"), APISecret: types.Ptr("S")})
	if err := h.wf.Login(context.Background()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	h.clock.Advance(DefaultLoginLatency)
	if !h.store.Snapshot().Session.LoggedIn {
		t.Fatal("Expected logged in after latency")
	}
}

func countKind(notes []types.Notification, kind types.LogKind) int {
	n := 0
	for _, note := range notes {
		if note.Kind == kind {
			n++
		}
	}
	return n
}

type failingAuth struct{ err error }

func (f failingAuth) Authenticate(ctx context.Context, creds types.Credentials) (types.AccessGrant, error) {
	return types.AccessGrant{}, f.err
}

type failingSim struct{}

func (failingSim) Start(ctx context.Context) error { return errors.New("colab unreachable") }
func (failingSim) Stop(ctx context.Context) bool   { return false }
func (failingSim) State() types.RunState           { return types.Idle }

func TestWelcome(t *testing.T) {
	h := newHarness(t, nil)
	h.wf.Welcome(context.Background())

	logs := h.store.Snapshot().Logs
	if len(logs) != 2 || logs[0].Message != msgAppInitialized || logs[1].Message != msgConnectPrompt {
		t.Errorf("Expected the two startup lines, got %+v", logs)
	}
}

func TestLoginScenario(t *testing.T) {
	h := newHarness(t, nil)
	h.store.SetCredentials(types.CredentialsPatch{APIKey: types.Ptr("K"), APISecret: types.Ptr("S")})

	if err := h.wf.Login(context.Background()); err != nil {
		t.Fatalf("Expected login accepted, got %v", err)
	}
	if !h.store.Snapshot().Loading {
		t.Error("Expected loading while the login is in flight")
	}

	h.clock.Advance(DefaultLoginLatency - time.Millisecond)
	if h.store.Snapshot().Session.LoggedIn {
		t.Fatal("Expected login to complete only after the latency")
	}

	h.clock.Advance(time.Millisecond)
	snap := h.store.Snapshot()

	if !snap.Session.LoggedIn {
		t.Fatal("Expected loggedIn=true")
	}
	if !strings.HasPrefix(snap.Session.Credentials.AccessToken, "mock_token_") {
		t.Errorf("Expected a mock access token, got %q", snap.Session.Credentials.AccessToken)
	}
	if len(snap.Logs) != 3 {
		t.Errorf("Expected 3 log entries, got %d", len(snap.Logs))
	}
	if countKind(snap.Notifications, types.KindSuccess) != 1 || len(snap.Notifications) != 1 {
		t.Errorf("Expected exactly one success notification, got %+v", snap.Notifications)
	}
	if snap.Loading {
		t.Error("Expected loading cleared")
	}
	if snap.Session.LoginURL == "" {
		t.Error("Expected the Kite login url recorded")
	}
}

func TestLoginMissingSecret(t *testing.T) {
	h := newHarness(t, nil)
	h.store.SetCredentials(types.CredentialsPatch{APIKey: types.Ptr("K"), APISecret: types.Ptr("")})

	err := h.wf.Login(context.Background())
	if !errors.Is(err, ErrMissingCredentials) || !IsValidation(err) {
		t.Fatalf("Expected missing credentials validation error, got %v", err)
	}

	h.clock.Advance(DefaultLoginLatency)
	snap := h.store.Snapshot()
	if snap.Session.LoggedIn {
		t.Error("Expected loggedIn to stay false")
	}
	if len(snap.Notifications) != 1 || snap.Notifications[0].Kind != types.KindError {
		t.Errorf("Expected exactly one error notification, got %+v", snap.Notifications)
	}
	if snap.Notifications[0].Message != msgMissingCreds {
		t.Errorf("Expected %q, got %q", msgMissingCreds, snap.Notifications[0].Message)
	}
	if len(snap.Logs) != 0 {
		t.Errorf("Expected no log entries, got %d", len(snap.Logs))
	}
	if snap.Loading {
		t.Error("Expected loading cleared on the validation path")
	}
}

func TestLoginWhileInFlight(t *testing.T) {
	h := newHarness(t, nil)
	h.store.SetCredentials(types.CredentialsPatch{APIKey: types.Ptr("K"), APISecret: types.Ptr("S")})
	h.wf.Login(context.Background())

	before := h.store.Snapshot().Version
	if err := h.wf.Login(context.Background()); !errors.Is(err, ErrLoginInProgress) {
		t.Fatalf("Expected ErrLoginInProgress, got %v", err)
	}
	if h.store.Snapshot().Version != before {
		t.Error("Expected a rejected double submit to leave state unchanged")
	}

	h.clock.Advance(DefaultLoginLatency)
	if got := len(h.store.Snapshot().Logs); got != 3 {
		t.Errorf("Expected a single login completion, got %d logs", got)
	}
}

func TestLoginFailurePath(t *testing.T) {
	h := newHarness(t, failingAuth{err: errors.New("kite unavailable")})
	h.store.SetCredentials(types.CredentialsPatch{APIKey: types.Ptr("K"), APISecret: types.Ptr("S")})

	if err := h.wf.Login(context.Background()); err != nil {
		t.Fatalf("Expected login accepted, got %v", err)
	}
	h.clock.Advance(DefaultLoginLatency)

	snap := h.store.Snapshot()
	if snap.Session.LoggedIn || snap.Session.Credentials.AccessToken != "" {
		t.Error("Expected no session after a failed login")
	}
	if snap.Error == nil || !strings.Contains(*snap.Error, "kite unavailable") {
		t.Errorf("Expected error slot set, got %v", snap.Error)
	}
	if len(snap.Notifications) != 1 || snap.Notifications[0].Message != msgLoginFailed {
		t.Errorf("Expected one failure notification, got %+v", snap.Notifications)
	}
	if snap.Loading {
		t.Error("Expected loading cleared on the failure path")
	}
}

func TestStartBotNotLoggedIn(t *testing.T) {
	h := newHarness(t, nil)
	h.store.SetConfiguration(types.ConfigPatch{NotebookURL: types.Ptr(notebook)})

	err := h.wf.StartBot(context.Background())
	if !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("Expected ErrNotLoggedIn, got %v", err)
	}

	snap := h.store.Snapshot()
	if snap.BotRunning {
		t.Error("Expected isBotRunning to stay false")
	}
	if len(snap.Notifications) != 1 || snap.Notifications[0].Kind != types.KindError {
		t.Errorf("Expected one error notification, got %+v", snap.Notifications)
	}
	if h.sim.State() != types.Idle {
		t.Error("Expected simulator idle")
	}
}

func TestStartBotEmptyNotebook(t *testing.T) {
	h := newHarness(t, nil)
	h.loggedIn(t)
	h.clock.Advance(10 * time.Second) // let the login notification expire

	logsBefore := len(h.store.Snapshot().Logs)
	err := h.wf.StartBot(context.Background())
	if !errors.Is(err, ErrMissingNotebook) {
		t.Fatalf("Expected ErrMissingNotebook, got %v", err)
	}

	snap := h.store.Snapshot()
	if snap.BotRunning {
		t.Error("Expected isBotRunning to stay false")
	}
	if len(snap.Notifications) != 1 || snap.Notifications[0].Message != msgMissingNotebook {
		t.Errorf("Expected one error notification, got %+v", snap.Notifications)
	}
	if len(snap.Logs) != logsBefore {
		t.Errorf("Expected no new logs, got %d", len(snap.Logs)-logsBefore)
	}
}

func TestStartBotRunsSimulator(t *testing.T) {
	h := newHarness(t, nil)
	h.loggedIn(t)
	h.store.SetConfiguration(types.ConfigPatch{NotebookURL: types.Ptr(notebook)})

	logsBefore := len(h.store.Snapshot().Logs)
	if err := h.wf.StartBot(context.Background()); err != nil {
		t.Fatalf("StartBot failed: %v", err)
	}

	snap := h.store.Snapshot()
	if !snap.BotRunning || h.sim.State() != types.Running {
		t.Fatal("Expected bot and simulator running")
	}
	if got := len(snap.Logs) - logsBefore; got != 3 {
		t.Errorf("Expected 3 new logs, got %d", got)
	}
	if snap.Notifications[len(snap.Notifications)-1].Message != msgStartSuccess {
		t.Errorf("Expected start notification last, got %+v", snap.Notifications)
	}

	h.clock.Advance(30 * time.Second)
	if len(h.store.Snapshot().Logs) <= len(snap.Logs) {
		t.Error("Expected simulated activity while running")
	}
}

func TestStartBotSimulatorFailure(t *testing.T) {
	clock := sched.NewManual(epoch)
	store := state.New(clock, state.Options{})
	t.Cleanup(store.Close)
	wf := New(Params{
		Store:     store,
		Simulator: failingSim{},
		Auth:      zerodha.NewZerodha(zerodha.Params{}),
		Scheduler: clock,
	})

	store.SetLoginStatus(true)
	store.SetConfiguration(types.ConfigPatch{NotebookURL: types.Ptr(notebook)})

	err := wf.StartBot(context.Background())
	var failure *SimulatedFailure
	if !errors.As(err, &failure) {
		t.Fatalf("Expected SimulatedFailure, got %v", err)
	}

	snap := store.Snapshot()
	if snap.BotRunning {
		t.Error("Expected the running flag reset")
	}
	if snap.Error == nil {
		t.Error("Expected error slot set")
	}
	if snap.Notifications[len(snap.Notifications)-1].Message != msgStartFailed {
		t.Errorf("Expected failure notification last, got %+v", snap.Notifications)
	}
}

func TestStopBotWhileRunning(t *testing.T) {
	h := newHarness(t, nil)
	h.loggedIn(t)
	h.store.SetConfiguration(types.ConfigPatch{NotebookURL: types.Ptr(notebook)})
	h.wf.StartBot(context.Background())
	h.clock.Advance(12 * time.Second)

	logsBefore := len(h.store.Snapshot().Logs)
	if err := h.wf.StopBot(context.Background()); err != nil {
		t.Fatalf("StopBot failed: %v", err)
	}

	snap := h.store.Snapshot()
	if snap.BotRunning {
		t.Error("Expected isBotRunning=false")
	}
	if got := len(snap.Logs) - logsBefore; got != 1 {
		t.Fatalf("Expected exactly 1 new log, got %d", got)
	}
	last := snap.Logs[len(snap.Logs)-1]
	if last.Kind != types.KindInfo || last.Message != msgBotStoppedLog {
		t.Errorf("Expected info %q, got %+v", msgBotStoppedLog, last)
	}
	if h.sim.State() != types.Idle {
		t.Error("Expected simulator idle")
	}

	h.clock.Advance(time.Minute)
	if got := len(h.store.Snapshot().Logs); got != len(snap.Logs) {
		t.Errorf("Expected no log growth after stop, got %d -> %d", len(snap.Logs), got)
	}
}

func TestStopBotWhenIdle(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.wf.StopBot(context.Background()); err != nil {
		t.Fatalf("StopBot failed: %v", err)
	}

	snap := h.store.Snapshot()
	if len(snap.Logs) != 1 || len(snap.Notifications) != 1 || snap.Notifications[0].Kind != types.KindInfo {
		t.Errorf("Expected one info log and notification, got %+v / %+v", snap.Logs, snap.Notifications)
	}
}
