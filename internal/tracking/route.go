package tracking

import (
	"math"

	"github.com/jengzang/runtrack-go/internal/models"
	"github.com/jengzang/runtrack-go/internal/spatial"
)

const (
	minRouteStepKm      = 0.005
	minMovingSpeedKmh   = 0.5
	baseCaloriesPerKm   = 60.0
	caloriesPerKmPerKmh = 2.0
)

// RouteDecision is the outcome of offering one fix to the route
type RouteDecision struct {
	Added      bool
	DeltaKm    float64
	DistanceKm float64
	Calories   int
}

// RouteAccumulator keeps a deliberately sparse route: a fix is appended only
// when it is at least 5 m from the previous route point and the runner is
// actually moving. Stationary jitter and phantom speed are both rejected.
type RouteAccumulator struct {
	route      []models.RoutePoint
	distanceKm float64
	calories   int
}

// NewRouteAccumulator creates an empty route
func NewRouteAccumulator() *RouteAccumulator {
	return &RouteAccumulator{}
}

// Consider offers an accepted fix together with the current speed estimate.
// A rejected fix leaves all state unchanged, so the last route point stays
// the reference for the next fix.
func (a *RouteAccumulator) Consider(fix models.GeoFix, speedKmh float64) RouteDecision {
	if len(a.route) == 0 {
		a.route = append(a.route, models.PointOf(fix))
		return RouteDecision{Added: true, DistanceKm: a.distanceKm, Calories: a.calories}
	}

	prev := a.route[len(a.route)-1]
	deltaKm := spatial.HaversineDistance(prev.Latitude, prev.Longitude, fix.Latitude, fix.Longitude) / 1000

	if !(deltaKm >= minRouteStepKm && speedKmh > minMovingSpeedKmh) {
		return RouteDecision{DeltaKm: deltaKm, DistanceKm: a.distanceKm, Calories: a.calories}
	}

	a.route = append(a.route, models.PointOf(fix))
	a.distanceKm += deltaKm

	// the whole distance is re-priced at the current pace; calories never go down
	caloriesPerKm := baseCaloriesPerKm + speedKmh*caloriesPerKmPerKmh
	a.calories = max(a.calories, int(math.Round(a.distanceKm*caloriesPerKm)))

	return RouteDecision{Added: true, DeltaKm: deltaKm, DistanceKm: a.distanceKm, Calories: a.calories}
}

// Route returns a copy of the route points, never nil
func (a *RouteAccumulator) Route() []models.RoutePoint {
	out := make([]models.RoutePoint, len(a.route))
	copy(out, a.route)
	return out
}

// Len is the number of route points
func (a *RouteAccumulator) Len() int {
	return len(a.route)
}

// DistanceKm is the running total distance
func (a *RouteAccumulator) DistanceKm() float64 {
	return a.distanceKm
}

// Calories is the running calorie estimate
func (a *RouteAccumulator) Calories() int {
	return a.calories
}

// Heading is the bearing of the last route segment, false with fewer than two points
func (a *RouteAccumulator) Heading() (float64, bool) {
	n := len(a.route)
	if n < 2 {
		return 0, false
	}
	p, q := a.route[n-2], a.route[n-1]
	return spatial.Bearing(p.Latitude, p.Longitude, q.Latitude, q.Longitude), true
}
