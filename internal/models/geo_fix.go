package models

// GeoFix is one raw position sample delivered by the device location stream
type GeoFix struct {
	Latitude       float64 `json:"latitude" binding:"min=-90,max=90"`
	Longitude      float64 `json:"longitude" binding:"min=-180,max=180"`
	AccuracyMeters float64 `json:"accuracy" binding:"min=0"`
	TimestampMs    int64   `json:"timestamp" binding:"required"`
}

// RoutePoint is a point retained on the persisted path
type RoutePoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// PointOf drops accuracy and time from a fix
func PointOf(f GeoFix) RoutePoint {
	return RoutePoint{Latitude: f.Latitude, Longitude: f.Longitude}
}

// PositionErrorReport is the body of a device error pushed by the location bridge
type PositionErrorReport struct {
	Code    string `json:"code" binding:"required,oneof=permission_denied position_unavailable timeout"`
	Message string `json:"message"`
}
