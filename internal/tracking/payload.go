package tracking

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jengzang/runtrack-go/internal/models"
	"github.com/jengzang/runtrack-go/internal/spatial"
)

// Persistence thresholds: shorter runs are reported but never sent
const (
	minSavedDistanceKm = 0.01
	minSavedPoints     = 2
)

// Saveable reports whether a run has enough data to persist
func Saveable(distanceKm float64, points int) bool {
	return distanceKm > minSavedDistanceKm && points >= minSavedPoints
}

// Pace is minutes per kilometer rounded to 2 decimals, 0 when no distance was covered
func Pace(distanceKm float64, durationSeconds int64) float64 {
	if distanceKm <= 0 {
		return 0
	}
	return roundTo(float64(durationSeconds)/60/distanceKm, 2)
}

// BuildPayload serializes a finished run for the persistence API. GeoJSON
// wants (lng, lat); orb.Point is {X: lng, Y: lat}, which is the flip. The
// route must not be empty.
func BuildPayload(route []models.RoutePoint, distanceKm float64, durationSeconds int64, calories int) *models.RunPayload {
	line := make(orb.LineString, 0, len(route))
	for _, p := range route {
		line = append(line, toOrb(p))
	}

	return &models.RunPayload{
		Distance:      roundTo(distanceKm, 3),
		Duration:      durationSeconds,
		Pace:          Pace(distanceKm, durationSeconds),
		Calories:      calories,
		Route:         geojson.NewGeometry(line),
		StartLocation: geojson.NewGeometry(toOrb(route[0])),
		EndLocation:   geojson.NewGeometry(toOrb(route[len(route)-1])),
	}
}

func toOrb(p models.RoutePoint) orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

// routeGeometry summarizes the route shape for the stop summary
func routeGeometry(route []models.RoutePoint) (float64, *spatial.Bounds) {
	if len(route) == 0 {
		return 0, nil
	}
	pts := make([]spatial.Point, len(route))
	for i, p := range route {
		pts[i] = spatial.Point{Lat: p.Latitude, Lon: p.Longitude}
	}
	b := spatial.BoundingBox(pts)
	return spatial.PathLength(pts) / 1000, &b
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
