package model

import "github.com/shopspring/decimal"

// SessionStatus tracks the Session state machine:
// pending -> running -> (completed | error). Terminal states are sticky.
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionError     SessionStatus = "error"
)

// Terminal reports whether s accepts no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionError
}

// Session is the externally-visible record of one simulation run.
type Session struct {
	SessionID   string
	Name        string
	Status      SessionStatus
	CreatedAtMs int64
	CompletedAt *int64
	EventCount  uint64
	TradeCount  uint64
	FinalPrice  decimal.Decimal
	Error       string
}

// AgentConfig is the roster entry for a single configured agent.
type AgentConfig struct {
	ID        string
	Name      string
	Archetype string
	Params    map[string]float64
}

// NewsScheduleItem is one entry of a session's news schedule.
type NewsScheduleItem struct {
	TimestampMs int64
	Headline    string
	Content     string
	Sentiment   float64
	Magnitude   NewsMagnitude
	Source      string
}

// StorylineConfig overrides InitialPrice, DurationMs, and the news schedule
// when attached to a session.
type StorylineConfig struct {
	InitialPrice float64
	DurationMs   int64
	News         []NewsScheduleItem
}

// SessionConfig is the full set of configuration inputs to the core,
// independent of how it was loaded (internal/config owns file/env
// loading; this is the plain value the Runner consumes).
type SessionConfig struct {
	SessionID        string
	Name             string
	Seed             uint64
	DurationMs       int64
	TickSize         decimal.Decimal
	InitialPrice     float64
	TickIntervalMs   int64
	SnapshotInterval int64
	OHLCVResolution  int64
	SnapshotDepth    int
	Agents           []AgentConfig
	NewsSchedule     []NewsScheduleItem
	Storyline        *StorylineConfig
}
