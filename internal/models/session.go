package models

import (
	"time"

	"github.com/jengzang/runtrack-go/internal/spatial"
	"github.com/jengzang/runtrack-go/internal/stats"
)

// SessionStatus is the lifecycle state of a run session
type SessionStatus string

const (
	StatusIdle     SessionStatus = "idle"
	StatusTracking SessionStatus = "tracking"
	StatusPaused   SessionStatus = "paused"
	StatusStopped  SessionStatus = "stopped"
)

// SessionSnapshot is a point-in-time copy of a run session's aggregate state
type SessionSnapshot struct {
	SessionID       string        `json:"sessionId"`
	Status          SessionStatus `json:"status"`
	StartedAt       *time.Time    `json:"startedAt,omitempty"`
	Route           []RoutePoint  `json:"route"`
	DistanceKm      float64       `json:"distanceKm"`
	DurationSeconds int64         `json:"durationSeconds"`
	Calories        int           `json:"calories"`
	CurrentSpeedKmh float64       `json:"currentSpeedKmh"`
	HeadingDeg      *float64      `json:"headingDeg,omitempty"`

	// LastKnown is updated by every fix, including ones filtered out of the route
	LastKnown *GeoFix `json:"lastKnown,omitempty"`
	Warning   string  `json:"warning,omitempty"`
}

// StopOutcome says what happened to a finished run
type StopOutcome string

const (
	OutcomeSaved            StopOutcome = "saved"
	OutcomeInsufficientData StopOutcome = "insufficient_data"
	OutcomeSaveFailed       StopOutcome = "save_failed"
)

// StopSummary is returned when a session is stopped. The locally computed
// stats are always present regardless of Outcome.
type StopSummary struct {
	Outcome StopOutcome         `json:"outcome"`
	Message string              `json:"message"`
	Session SessionSnapshot     `json:"session"`
	Pace    float64             `json:"pace"`
	PathKm  float64             `json:"pathKm"`
	Bounds  *spatial.Bounds     `json:"bounds,omitempty"`
	Speed   *stats.SpeedSummary `json:"speed,omitempty"`
	Payload *RunPayload         `json:"payload,omitempty"`
	RunID   string              `json:"runId,omitempty"`
	Queued  bool                `json:"queued,omitempty"`
}

