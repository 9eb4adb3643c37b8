package models

import "github.com/paulmach/orb/geojson"

// RunPayload is the body of POST /runs. Geometries are GeoJSON, so
// coordinates are ordered (lng, lat).
type RunPayload struct {
	Distance      float64           `json:"distance"`
	Duration      int64             `json:"duration"`
	Pace          float64           `json:"pace"`
	Calories      int               `json:"calories"`
	Route         *geojson.Geometry `json:"route"`
	StartLocation *geojson.Geometry `json:"startLocation"`
	EndLocation   *geojson.Geometry `json:"endLocation"`
}

// SavedRun is the part of the persistence API response we keep
type SavedRun struct {
	ID string `json:"id"`
}

// OutboxEntry is a run payload that could not be delivered yet
type OutboxEntry struct {
	ID            int64  `json:"id" db:"id"`
	SessionID     string `json:"sessionId" db:"session_id"`
	Payload       []byte `json:"-" db:"payload"`
	Attempts      int    `json:"attempts" db:"attempts"`
	LastError     string `json:"lastError,omitempty" db:"last_error"`
	NextAttemptAt int64  `json:"nextAttemptAt" db:"next_attempt_at"` // unix seconds
	CreatedAt     string `json:"createdAt" db:"created_at"`
}
