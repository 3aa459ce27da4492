package geo

import "math"

const earthRadiusKm = 6371.0

// Thresholds for the sample acceptance filter. A segment shorter than
// MaxSegmentKm is always plausible; longer jumps are only plausible when at
// least MinElapsedSec have passed since the previous fix.
const (
	MaxSegmentKm  = 0.1
	MinElapsedSec = 1.0
)

// CalculateDistance returns the great-circle distance in kilometers between
// two WGS-84 coordinates using the haversine formula.
func CalculateDistance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// AcceptSegment reports whether a segment between two consecutive position
// fixes should count towards distance and speed statistics. Small hops are
// always accepted; a large jump is only accepted when enough time has elapsed
// to make it physically plausible. A 5 km "teleport" in 200 ms is a GPS
// artifact, the same 5 km over two minutes is a fast but real segment.
func AcceptSegment(distanceKm, elapsedSeconds float64) bool {
	return distanceKm < MaxSegmentKm || elapsedSeconds > MinElapsedSec
}
