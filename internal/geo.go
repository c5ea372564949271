package internal

import "math"

// DefaultRadiusMeters is the proximity radius: 250 feet, the distance at
// which two users are considered nearby.
const DefaultRadiusMeters = 76.2

// earthRadiusMeters treats WGS84 coordinates as points on a sphere.
const earthRadiusMeters = 6371000.0

// HaversineMeters returns the great-circle distance in meters between two
// lat/lon pairs given in degrees.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180.0
	phi2 := lat2 * math.Pi / 180.0
	dPhi := (lat2 - lat1) * math.Pi / 180.0
	dLambda := (lon2 - lon1) * math.Pi / 180.0

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// WithinRadius reports whether two coordinates are at most radiusMeters
// apart. The boundary is inclusive: exactly at the radius counts as nearby.
func WithinRadius(lat1, lon1, lat2, lon2, radiusMeters float64) bool {
	return HaversineMeters(lat1, lon1, lat2, lon2) <= radiusMeters
}
