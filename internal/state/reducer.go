// Package state holds the dashboard state container: a pure reducer over
// immutable snapshots and the Store that owns the current snapshot.
package state

import "trading-bot-dashboard/internal/types"

const (
	DefaultLogCapacity = 50
	ClearedLogMessage  = "Activity log cleared"
)

// Action is one named state transition with its payload.
type Action interface {
	Name() string
}

type SetLoading struct{ Loading bool }

type SetCredentials struct{ Patch types.CredentialsPatch }

type SetLoginStatus struct{ LoggedIn bool }

type SetLoginURL struct{ URL string }

type SetBotRunning struct{ Running bool }

type UpdateStatistics struct{ Patch types.StatsPatch }

// AppendLog carries a fully built entry; ids and timestamps are assigned by
// the caller so Reduce stays deterministic.
type AppendLog struct{ Entry types.LogEntry }

// ClearLog replaces the log with Marker.
type ClearLog struct{ Marker types.LogEntry }

type SetConfiguration struct{ Patch types.ConfigPatch }

// SetError sets the last-error slot; a nil Message clears it.
type SetError struct{ Message *string }

type AddNotification struct{ Notification types.Notification }

type RemoveNotification struct{ ID string }

func (SetLoading) Name() string         { return "setLoading" }
func (SetCredentials) Name() string     { return "setCredentials" }
func (SetLoginStatus) Name() string     { return "setLoginStatus" }
func (SetLoginURL) Name() string        { return "setLoginURL" }
func (SetBotRunning) Name() string      { return "setBotRunning" }
func (UpdateStatistics) Name() string   { return "updateStatistics" }
func (AppendLog) Name() string          { return "appendLog" }
func (ClearLog) Name() string           { return "clearLog" }
func (SetConfiguration) Name() string   { return "setConfiguration" }
func (SetError) Name() string           { return "setError" }
func (AddNotification) Name() string    { return "addNotification" }
func (RemoveNotification) Name() string { return "removeNotification" }

// Reducer applies actions. LogCapacity bounds the activity log.
type Reducer struct {
	LogCapacity int
}

// Reduce applies a with the default log capacity.
func Reduce(s types.State, a Action) types.State {
	return Reducer{LogCapacity: DefaultLogCapacity}.Reduce(s, a)
}

// Reduce returns the snapshot that follows s after a. s is never modified.
// Every applied action bumps Version; an action with no effect (removing an
// unknown notification, unknown action types) returns s unchanged.
func (r Reducer) Reduce(s types.State, a Action) types.State {
	next := s

	switch act := a.(type) {
	case SetLoading:
		next.Loading = act.Loading

	case SetCredentials:
		next.Session.Credentials = mergeCredentials(s.Session.Credentials, act.Patch)

	case SetLoginStatus:
		next.Session.LoggedIn = act.LoggedIn

	case SetLoginURL:
		next.Session.LoginURL = act.URL

	case SetBotRunning:
		next.BotRunning = act.Running

	case UpdateStatistics:
		next.Stats = mergeStats(s.Stats, act.Patch)

	case AppendLog:
		next.Logs = appendBounded(s.Logs, act.Entry, r.capacity())

	case ClearLog:
		next.Logs = []types.LogEntry{act.Marker}

	case SetConfiguration:
		next.Config = mergeConfig(s.Config, act.Patch)

	case SetError:
		if act.Message == nil {
			next.Error = nil
		} else {
			msg := *act.Message
			next.Error = &msg
		}

	case AddNotification:
		notes := make([]types.Notification, len(s.Notifications), len(s.Notifications)+1)
		copy(notes, s.Notifications)
		next.Notifications = append(notes, act.Notification)

	case RemoveNotification:
		idx := -1
		for i, n := range s.Notifications {
			if n.ID == act.ID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return s
		}
		notes := make([]types.Notification, 0, len(s.Notifications)-1)
		notes = append(notes, s.Notifications[:idx]...)
		next.Notifications = append(notes, s.Notifications[idx+1:]...)

	default:
		return s
	}

	next.Version = s.Version + 1
	return next
}

func (r Reducer) capacity() int {
	if r.LogCapacity < 1 {
		return DefaultLogCapacity
	}
	return r.LogCapacity
}

// appendBounded keeps the newest capacity entries, oldest evicted first.
func appendBounded(logs []types.LogEntry, e types.LogEntry, capacity int) []types.LogEntry {
	keep := logs
	if len(keep) >= capacity {
		keep = keep[len(keep)-capacity+1:]
	}
	out := make([]types.LogEntry, 0, len(keep)+1)
	out = append(out, keep...)
	return append(out, e)
}

func mergeCredentials(c types.Credentials, p types.CredentialsPatch) types.Credentials {
	if p.APIKey != nil {
		c.APIKey = *p.APIKey
	}
	if p.APISecret != nil {
		c.APISecret = *p.APISecret
	}
	if p.AccessToken != nil {
		c.AccessToken = *p.AccessToken
	}
	return c
}

func mergeConfig(c types.Configuration, p types.ConfigPatch) types.Configuration {
	if p.CapitalPerTrade != nil {
		c.CapitalPerTrade = *p.CapitalPerTrade
	}
	if p.SentimentThreshold != nil {
		c.SentimentThreshold = *p.SentimentThreshold
	}
	if p.NotebookURL != nil {
		c.NotebookURL = *p.NotebookURL
	}
	return c
}

func mergeStats(s types.Statistics, p types.StatsPatch) types.Statistics {
	if p.NewsProcessed != nil {
		s.NewsProcessed = *p.NewsProcessed
	}
	if p.OrdersPlaced != nil {
		s.OrdersPlaced = *p.OrdersPlaced
	}
	if p.SuccessRate != nil {
		s.SuccessRate = *p.SuccessRate
	}
	return s
}
