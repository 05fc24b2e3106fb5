// Package server exposes the dashboard over HTTP: JSON endpoints for every
// store operation and workflow, plus a websocket snapshot stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"trading-bot-dashboard/internal/interfaces"
	"trading-bot-dashboard/internal/logger"
	"trading-bot-dashboard/internal/metrics"
	"trading-bot-dashboard/internal/sched"
	"trading-bot-dashboard/internal/trace"
	"trading-bot-dashboard/internal/types"
	"trading-bot-dashboard/internal/workflow"
)

const maxBodyBytes = 1 << 20

// Store is the part of the state store the HTTP surface touches directly.
type Store interface {
	Snapshot() types.State
	Subscribe(fn func(types.State)) func()
	SetCredentials(p types.CredentialsPatch)
	SetConfiguration(p types.ConfigPatch)
	ClearLog()
	RemoveNotification(id string)
}

type Params struct {
	Store     Store
	Workflows interfaces.Workflows
	// Executor runs every mutation on the event loop.
	Executor sched.Executor
}

type Server struct {
	store Store
	wf    interfaces.Workflows
	exec  sched.Executor
	hub   *Hub
	mux   *http.ServeMux
	unsub func()
}

func New(p Params) *Server {
	s := &Server{
		store: p.Store,
		wf:    p.Workflows,
		exec:  p.Executor,
		hub:   NewHub(),
		mux:   http.NewServeMux(),
	}
	s.hub.Publish(p.Store.Snapshot())
	s.unsub = p.Store.Subscribe(s.hub.Publish)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.handle("GET /api/state", s.handleState)
	s.handle("POST /api/credentials", s.handleCredentials)
	s.handle("POST /api/login", s.handleLogin)
	s.handle("POST /api/config", s.handleConfig)
	s.handle("POST /api/bot/start", s.handleStartBot)
	s.handle("POST /api/bot/stop", s.handleStopBot)
	s.handle("POST /api/logs/clear", s.handleClearLog)
	s.handle("DELETE /api/notifications/{id}", s.handleRemoveNotification)
	s.mux.Handle("GET /ws", s.hub)
	s.mux.Handle("GET /metrics", metrics.Handler())
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Close detaches the server from the store and disconnects stream clients.
func (s *Server) Close() {
	s.unsub()
	s.hub.Close()
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info(ctx, "Dashboard listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle registers h under pattern with a span and error mapping.
func (s *Server) handle(pattern string, h handlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		ctx, span := trace.StartSpan(r.Context(), "http "+pattern)
		defer span.End()
		r = r.WithContext(ctx)

		start := time.Now()
		err := h(w, r)
		if err != nil {
			status := statusOf(err)
			if status >= http.StatusInternalServerError {
				logger.ErrorWithErr(ctx, "Request failed", err, "route", pattern)
			} else {
				logger.Debug(ctx, "Request rejected", "route", pattern, "status", status, "error", err)
			}
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		logger.Debug(ctx, "Request served", "route", pattern, "duration_ms", time.Since(start).Milliseconds())
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, ViewOf(s.store.Snapshot()))
	return nil
}

func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request) error {
	var p types.CredentialsPatch
	if err := decode(w, r, &p); err != nil {
		return err
	}
	// The access token only ever comes from a login.
	p.AccessToken = nil

	return s.mutate(w, r, http.StatusOK, func() error {
		s.store.SetCredentials(p)
		return nil
	})
}

// handleLogin merges the optional form credentials and starts a login. The
// response is 202: the session is established after the login latency.
// Credentials sent while a login is in flight are dropped along with the
// request.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) error {
	var p types.CredentialsPatch
	if err := decode(w, r, &p); err != nil {
		return err
	}
	p.AccessToken = nil

	return s.mutate(w, r, http.StatusAccepted, func() error {
		if (p.APIKey != nil || p.APISecret != nil) && !s.store.Snapshot().Loading {
			s.store.SetCredentials(p)
		}
		return s.wf.Login(r.Context())
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) error {
	var p types.ConfigPatch
	if err := decode(w, r, &p); err != nil {
		return err
	}
	if err := validateConfigPatch(p); err != nil {
		return err
	}

	return s.mutate(w, r, http.StatusOK, func() error {
		s.store.SetConfiguration(p)
		return nil
	})
}

func (s *Server) handleStartBot(w http.ResponseWriter, r *http.Request) error {
	return s.mutate(w, r, http.StatusOK, func() error {
		return s.wf.StartBot(r.Context())
	})
}

func (s *Server) handleStopBot(w http.ResponseWriter, r *http.Request) error {
	return s.mutate(w, r, http.StatusOK, func() error {
		return s.wf.StopBot(r.Context())
	})
}

func (s *Server) handleClearLog(w http.ResponseWriter, r *http.Request) error {
	return s.mutate(w, r, http.StatusOK, func() error {
		s.store.ClearLog()
		return nil
	})
}

func (s *Server) handleRemoveNotification(w http.ResponseWriter, r *http.Request) error {
	id := r.PathValue("id")
	return s.mutate(w, r, http.StatusOK, func() error {
		s.store.RemoveNotification(id)
		return nil
	})
}

// mutate runs fn on the event loop and answers with the resulting view.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, status int, fn func() error) error {
	var opErr error
	var snap types.State
	err := s.exec.Do(r.Context(), func() {
		opErr = fn()
		snap = s.store.Snapshot()
	})
	if err != nil {
		return err
	}
	if opErr != nil {
		return opErr
	}
	writeJSON(w, status, ViewOf(snap))
	return nil
}

// badRequest marks errors in the request itself.
type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }

func (e badRequest) Unwrap() error { return e.err }

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return badRequest{fmt.Errorf("invalid request body: %w", err)}
	}
	return nil
}

func validateConfigPatch(p types.ConfigPatch) error {
	if p.CapitalPerTrade != nil && *p.CapitalPerTrade < 1000 {
		return &workflow.ValidationError{Err: fmt.Errorf("capitalPerTrade must be at least 1000, got %d", *p.CapitalPerTrade)}
	}
	if p.SentimentThreshold != nil && (*p.SentimentThreshold < 0.1 || *p.SentimentThreshold > 1.0) {
		return &workflow.ValidationError{Err: fmt.Errorf("sentimentThreshold must be between 0.1 and 1.0, got %.2f", *p.SentimentThreshold)}
	}
	return nil
}

func statusOf(err error) int {
	var br badRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest
	case workflow.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, workflow.ErrLoginInProgress):
		return http.StatusConflict
	case errors.Is(err, sched.ErrStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn(context.Background(), "Failed to write response", "error", err)
	}
}
