package state

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"trading-bot-dashboard/internal/metrics"
	"trading-bot-dashboard/internal/sched"
	"trading-bot-dashboard/internal/types"
)

const (
	DefaultNotificationTTL = 5 * time.Second
	// TimestampLayout renders log timestamps the way the dashboard shows them
	// (en-IN, 24h).
	TimestampLayout = "02/01/2006, 15:04:05"
)

// IST is the zone log timestamps are rendered in.
var IST = time.FixedZone("IST", 19800)

// DefaultConfiguration is the dashboard configuration before the user edits it.
func DefaultConfiguration() types.Configuration {
	return types.Configuration{
		CapitalPerTrade:    25000,
		SentimentThreshold: 0.8,
	}
}

type Options struct {
	LogCapacity     int
	NotificationTTL time.Duration
	Location        *time.Location
	// NewID generates notification ids; defaults to random UUIDs.
	NewID   func() string
	Initial types.Configuration
}

// Store owns the authoritative snapshot. Every mutation goes through a named
// operation that runs the reducer under the store lock, so no partially
// applied operation is ever observable. Subscribers are called after the lock
// is released, in the goroutine that performed the mutation.
type Store struct {
	mu      sync.RWMutex
	state   types.State
	reducer Reducer
	sched   sched.Scheduler
	loc     *time.Location
	ttl     time.Duration
	newID   func() string
	logSeq  uint64
	expiry  map[string]sched.Handle
	subs    map[uint64]func(types.State)
	subSeq  uint64
	closed  bool
}

func New(s sched.Scheduler, opts Options) *Store {
	if opts.NotificationTTL <= 0 {
		opts.NotificationTTL = DefaultNotificationTTL
	}
	if opts.Location == nil {
		opts.Location = IST
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Initial == (types.Configuration{}) {
		opts.Initial = DefaultConfiguration()
	}

	return &Store{
		state: types.State{
			Config:        opts.Initial,
			Logs:          []types.LogEntry{},
			Notifications: []types.Notification{},
		},
		reducer: Reducer{LogCapacity: opts.LogCapacity},
		sched:   s,
		loc:     opts.Location,
		ttl:     opts.NotificationTTL,
		newID:   opts.NewID,
		expiry:  make(map[string]sched.Handle),
		subs:    make(map[uint64]func(types.State)),
	}
}

// Snapshot returns the current state. Its slices must not be modified.
func (s *Store) Snapshot() types.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers fn to receive every new snapshot. The returned func
// removes the subscription.
func (s *Store) Subscribe(fn func(types.State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}
	s.subSeq++
	id := s.subSeq
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Close cancels pending notification expiries and detaches subscribers.
// Later operations are ignored.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	pending := s.expiry
	s.expiry = nil
	s.subs = nil
	s.mu.Unlock()

	for _, h := range pending {
		h.Cancel()
	}
}

func (s *Store) SetLoading(loading bool) {
	s.dispatch(SetLoading{Loading: loading})
}

func (s *Store) SetCredentials(p types.CredentialsPatch) {
	s.dispatch(SetCredentials{Patch: p})
}

func (s *Store) SetLoginStatus(loggedIn bool) {
	s.dispatch(SetLoginStatus{LoggedIn: loggedIn})
}

func (s *Store) SetLoginURL(url string) {
	s.dispatch(SetLoginURL{URL: url})
}

func (s *Store) SetBotRunning(running bool) {
	s.dispatch(SetBotRunning{Running: running})
}

// UpdateStatistics merges p as given; monotonicity and the success-rate
// ceiling are the caller's business.
func (s *Store) UpdateStatistics(p types.StatsPatch) {
	s.dispatch(UpdateStatistics{Patch: p})
}

func (s *Store) SetConfiguration(p types.ConfigPatch) {
	s.dispatch(SetConfiguration{Patch: p})
}

// SetError sets the single last-error slot; nil clears it.
func (s *Store) SetError(message *string) {
	s.dispatch(SetError{Message: message})
}

// AppendLog appends an entry with a fresh id and timestamp and returns it.
func (s *Store) AppendLog(kind types.LogKind, message string) types.LogEntry {
	var entry types.LogEntry
	s.apply(func() Action {
		entry = s.newEntryLocked(kind, message)
		return AppendLog{Entry: entry}
	})
	return entry
}

func (s *Store) ClearLog() {
	s.apply(func() Action {
		return ClearLog{Marker: s.newEntryLocked(types.KindInfo, ClearedLogMessage)}
	})
}

// AddNotification appends a notification and schedules its removal after the
// notification TTL. It returns the new id.
func (s *Store) AddNotification(kind types.LogKind, message string) string {
	var id string
	_, changed := s.apply(func() Action {
		id = s.newID()
		return AddNotification{Notification: types.Notification{ID: id, Kind: kind, Message: message}}
	})
	if !changed {
		return id
	}
	metrics.NotificationRaised(string(kind))

	h := s.sched.After(s.ttl, func() { s.expire(id) })

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		h.Cancel()
		return id
	}
	s.expiry[id] = h
	s.mu.Unlock()
	return id
}

// RemoveNotification removes the notification with id and cancels its expiry
// timer. Unknown ids are a no-op.
func (s *Store) RemoveNotification(id string) {
	s.mu.Lock()
	h := s.expiry[id]
	delete(s.expiry, id)
	s.mu.Unlock()

	if h != nil {
		h.Cancel()
	}
	s.dispatch(RemoveNotification{ID: id})
}

func (s *Store) expire(id string) {
	s.mu.Lock()
	delete(s.expiry, id)
	s.mu.Unlock()

	if _, changed := s.dispatch(RemoveNotification{ID: id}); changed {
		metrics.NotificationExpired()
	}
}

// newEntryLocked must be called with s.mu held.
func (s *Store) newEntryLocked(kind types.LogKind, message string) types.LogEntry {
	s.logSeq++
	return types.LogEntry{
		ID:        s.logSeq,
		Timestamp: s.sched.Now().In(s.loc).Format(TimestampLayout),
		Kind:      kind,
		Message:   message,
	}
}

func (s *Store) dispatch(a Action) (types.State, bool) {
	return s.apply(func() Action { return a })
}

// apply builds the action under the store lock, reduces, and publishes the
// new snapshot if anything changed.
func (s *Store) apply(build func() Action) (types.State, bool) {
	s.mu.Lock()
	if s.closed {
		cur := s.state
		s.mu.Unlock()
		return cur, false
	}

	a := build()
	prev := s.state
	next := s.reducer.Reduce(prev, a)
	changed := next.Version != prev.Version
	s.state = next

	var subs []func(types.State)
	if changed {
		subs = make([]func(types.State), 0, len(s.subs))
		for _, fn := range s.subs {
			subs = append(subs, fn)
		}
	}
	s.mu.Unlock()

	if !changed {
		return next, false
	}

	metrics.StoreOperation(a.Name())
	if _, ok := a.(AppendLog); ok {
		metrics.LogEvicted(len(prev.Logs) + 1 - len(next.Logs))
	}
	for _, fn := range subs {
		fn(next)
	}
	return next, true
}
