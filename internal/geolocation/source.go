// Package geolocation abstracts the device position stream.
//
// A Source hands out at most one Watch at a time, mirroring the single
// platform-level watch a client may hold. Each Watch delivers fixes and
// position errors in device order on a single channel.
package geolocation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jengzang/runtrack-go/internal/models"
)

var (
	// ErrWatchActive is returned when a second watch is requested on a source
	ErrWatchActive = errors.New("geolocation: a watch is already active")
	// ErrNoWatch is returned when pushing to a relay nobody is watching
	ErrNoWatch = errors.New("geolocation: no active watch")
)

// WatchOptions mirrors the platform watch options
type WatchOptions struct {
	HighAccuracy bool
	Continuous   bool
}

// HighAccuracyContinuous is what run tracking asks for
var HighAccuracyContinuous = WatchOptions{HighAccuracy: true, Continuous: true}

// Event carries exactly one of Fix or Err
type Event struct {
	Fix *models.GeoFix
	Err *PositionError
}

// Source starts position watches
type Source interface {
	Watch(ctx context.Context, opts WatchOptions) (Watch, error)
}

// Watch is an active subscription. Close is idempotent and must be called
// to release the underlying device watch.
type Watch interface {
	Events() <-chan Event
	Close() error
}

// ErrorCode classifies device failures
type ErrorCode string

const (
	PermissionDenied    ErrorCode = "permission_denied"
	PositionUnavailable ErrorCode = "position_unavailable"
	Timeout             ErrorCode = "timeout"
)

// PositionError is a failure reported by the device stream
type PositionError struct {
	Code    ErrorCode
	Message string
}

func (e *PositionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("geolocation: %s", e.Code)
	}
	return fmt.Sprintf("geolocation: %s: %s", e.Code, e.Message)
}

// UserMessage renders the error for the warning banner
func (e *PositionError) UserMessage() string {
	switch e.Code {
	case PermissionDenied:
		return "Location permission denied. Enable location access to track your run."
	case Timeout:
		return "Location request timed out. Still waiting for a GPS fix..."
	case PositionUnavailable:
		if e.Message != "" {
			return "Location unavailable: " + e.Message
		}
		return "Location unavailable. Move to an open area for a better signal."
	default:
		return "Location error: " + e.Error()
	}
}
