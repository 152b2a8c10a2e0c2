package utils

import "math"

// earthRadiusMeters is the mean Earth radius used for spherical distance.
const earthRadiusMeters = 6371000.0

// HaversineMeters returns the great-circle distance in meters between two coordinates.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	rLat1 := lat1 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// BoundingBox returns an inclusive lat/lng rectangle that covers every point
// within radiusMeters of the center. Used as a cheap SQL prefilter before the
// exact haversine check; the box is slightly larger than the circle.
func BoundingBox(lat, lng, radiusMeters float64) (minLat, maxLat, minLng, maxLng float64) {
	latDelta := radiusMeters / earthRadiusMeters * 180 / math.Pi
	lngDelta := latDelta
	if cosLat := math.Cos(lat * math.Pi / 180); cosLat > 1e-6 {
		lngDelta = latDelta / cosLat
	} else {
		// Near the poles every longitude is within reach
		lngDelta = 180
	}
	return lat - latDelta, lat + latDelta, lng - lngDelta, lng + lngDelta
}

// ValidCoordinate reports whether lat/lng form a usable WGS84 coordinate.
func ValidCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
