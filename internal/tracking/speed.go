package tracking

import (
	"github.com/jengzang/runtrack-go/internal/models"
	"github.com/jengzang/runtrack-go/internal/spatial"
)

// Speed estimation thresholds. They are tuned against phone GPS and the
// route and session tests depend on the exact values.
const (
	positionHistorySize    = 5
	speedWindowSize        = 8
	minSampleIntervalMs    = 500
	minSpeedDistanceMeters = 3.0
	maxPlausibleSpeedKmh   = 50.0
	stationarySpeedKmh     = 1.0
)

// SpeedEstimator turns accepted fixes into a smoothed speed. Each sample is
// measured against the oldest of the last five positions, and the reported
// speed is a linearly recency-weighted mean of the last eight samples.
type SpeedEstimator struct {
	history []models.GeoFix
	samples []float64

	lastUpdateMs int64
	hasUpdate    bool
	lastSpeed    float64
	sampled      bool
}

// NewSpeedEstimator creates an empty estimator
func NewSpeedEstimator() *SpeedEstimator {
	return &SpeedEstimator{
		history: make([]models.GeoFix, 0, positionHistorySize+1),
		samples: make([]float64, 0, speedWindowSize+1),
	}
}

// Update feeds an accepted fix and returns the current speed in km/h
func (e *SpeedEstimator) Update(fix models.GeoFix) float64 {
	e.sampled = false
	if e.hasUpdate && fix.TimestampMs-e.lastUpdateMs < minSampleIntervalMs {
		return e.lastSpeed
	}

	// the incoming fix plus the history must give at least two positions
	if len(e.history) == 0 {
		e.history = append(e.history, fix)
		return 0
	}

	oldest := e.history[0]
	distance := spatial.HaversineDistance(oldest.Latitude, oldest.Longitude, fix.Latitude, fix.Longitude)
	timeDiffSeconds := float64(fix.TimestampMs-oldest.TimestampMs) / 1000

	if distance >= minSpeedDistanceMeters && timeDiffSeconds > 0 {
		speedKmh := (distance / 1000) / (timeDiffSeconds / 3600)
		if speedKmh >= 0 && speedKmh <= maxPlausibleSpeedKmh {
			e.samples = append(e.samples, speedKmh)
			if len(e.samples) > speedWindowSize {
				e.samples = e.samples[1:]
			}
			e.lastUpdateMs = fix.TimestampMs
			e.hasUpdate = true
			e.sampled = true
		}
	}

	e.history = append(e.history, fix)
	if len(e.history) > positionHistorySize {
		e.history = e.history[1:]
	}

	e.lastSpeed = weightedSpeed(e.samples)
	return e.lastSpeed
}

// Sampled reports whether the last Update added a speed sample. Rate-limited,
// too-short and implausible fixes return the previous estimate unchanged.
func (e *SpeedEstimator) Sampled() bool {
	return e.sampled
}

// Samples returns a copy of the speed window, oldest first
func (e *SpeedEstimator) Samples() []float64 {
	return append([]float64(nil), e.samples...)
}

// History returns a copy of the position history, oldest first
func (e *SpeedEstimator) History() []models.GeoFix {
	return append([]models.GeoFix(nil), e.history...)
}

// weightedSpeed weights the i-th sample (0-based, oldest first) by i+1.
// Anything under 1 km/h is GPS noise on a stationary runner.
func weightedSpeed(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum, weights float64
	for i, s := range samples {
		w := float64(i + 1)
		sum += s * w
		weights += w
	}

	avg := sum / weights
	if avg < stationarySpeedKmh {
		return 0
	}
	return avg
}
