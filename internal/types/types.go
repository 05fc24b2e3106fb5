package types

import "time"

// LogKind is the severity tag shared by log entries and notifications.
type LogKind string

const (
	KindInfo    LogKind = "info"
	KindSuccess LogKind = "success"
	KindError   LogKind = "error"
	KindWarning LogKind = "warning"
)

// Valid reports whether k is one of the four known kinds.
func (k LogKind) Valid() bool {
	switch k {
	case KindInfo, KindSuccess, KindError, KindWarning:
		return true
	}
	return false
}

// RunState is the activity simulator lifecycle state.
type RunState int

const (
	Idle RunState = iota
	Running
)

func (r RunState) String() string {
	if r == Running {
		return "running"
	}
	return "idle"
}

type Credentials struct {
	APIKey      string `json:"apiKey"`
	APISecret   string `json:"apiSecret"`
	AccessToken string `json:"accessToken"`
}

// Redacted masks the secret and token so the credentials can leave the process.
func (c Credentials) Redacted() Credentials {
	out := Credentials{APIKey: c.APIKey}
	if c.APISecret != "" {
		out.APISecret = "********"
	}
	if c.AccessToken != "" {
		out.AccessToken = "********"
	}
	return out
}

type Session struct {
	LoggedIn    bool        `json:"loggedIn"`
	Credentials Credentials `json:"credentials"`
	LoginURL    string      `json:"loginUrl,omitempty"`
}

type Configuration struct {
	CapitalPerTrade    int     `json:"capitalPerTrade"`
	SentimentThreshold float64 `json:"sentimentThreshold"`
	NotebookURL        string  `json:"notebookUrl"`
}

type Statistics struct {
	NewsProcessed int     `json:"newsProcessed"`
	OrdersPlaced  int     `json:"ordersPlaced"`
	SuccessRate   float64 `json:"successRate"`
}

type LogEntry struct {
	ID        uint64  `json:"id"`
	Timestamp string  `json:"timestamp"`
	Kind      LogKind `json:"type"`
	Message   string  `json:"message"`
}

type Notification struct {
	ID      string  `json:"id"`
	Kind    LogKind `json:"type"`
	Message string  `json:"message"`
}

// State is one immutable snapshot of the dashboard. Slices are shared between
// snapshots and must be treated as read-only.
type State struct {
	Version       uint64         `json:"version"`
	Loading       bool           `json:"loading"`
	Session       Session        `json:"session"`
	BotRunning    bool           `json:"isBotRunning"`
	Config        Configuration  `json:"config"`
	Stats         Statistics     `json:"stats"`
	Logs          []LogEntry     `json:"logs"`
	Notifications []Notification `json:"notifications"`
	Error         *string        `json:"error"`
}

// CredentialsPatch carries the fields to merge into Session.Credentials.
// Nil fields are left untouched.
type CredentialsPatch struct {
	APIKey      *string `json:"apiKey,omitempty"`
	APISecret   *string `json:"apiSecret,omitempty"`
	AccessToken *string `json:"accessToken,omitempty"`
}

type ConfigPatch struct {
	CapitalPerTrade    *int     `json:"capitalPerTrade,omitempty"`
	SentimentThreshold *float64 `json:"sentimentThreshold,omitempty"`
	NotebookURL        *string  `json:"notebookUrl,omitempty"`
}

type StatsPatch struct {
	NewsProcessed *int     `json:"newsProcessed,omitempty"`
	OrdersPlaced  *int     `json:"ordersPlaced,omitempty"`
	SuccessRate   *float64 `json:"successRate,omitempty"`
}

// AccessGrant is what a (simulated) broker login hands back.
type AccessGrant struct {
	AccessToken string
	LoginURL    string
	IssuedAt    time.Time
}

// Ptr returns a pointer to v, for building patches inline.
func Ptr[T any](v T) *T {
	return &v
}
