package tracking

import (
	"fmt"

	"github.com/jengzang/runtrack-go/internal/models"
)

// MaxAccuracyMeters is the worst reported accuracy still used for route and speed
const MaxAccuracyMeters = 50.0

// GeoSampleFilter drops fixes whose reported accuracy is too poor to trust.
// Urban canyons, indoor starts and cold GPS produce jumps that would corrupt
// both distance and speed.
type GeoSampleFilter struct {
	maxAccuracy float64
}

// NewGeoSampleFilter creates a filter with the standard threshold
func NewGeoSampleFilter() *GeoSampleFilter {
	return &GeoSampleFilter{maxAccuracy: MaxAccuracyMeters}
}

// Accept reports whether fix may feed the speed estimator and route. When it
// is rejected the second value is the warning to show the user.
func (f *GeoSampleFilter) Accept(fix models.GeoFix) (bool, string) {
	if fix.AccuracyMeters < f.maxAccuracy {
		return true, ""
	}
	return false, fmt.Sprintf("Low GPS accuracy (%.0fm). Waiting for a better signal...", fix.AccuracyMeters)
}
