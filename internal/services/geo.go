package services

import "math"

const earthRadiusMeters = 6371008.8

// haversine returns the great-circle distance in metres between two points.
func haversine(lat1, lng1, lat2, lng2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(a)))
}

// boundingBox returns a lat/lng rectangle that contains every point within
// radius metres of the centre. wrapLng is set when the box would cross the
// antimeridian or a pole, in which case longitude should not be filtered.
func boundingBox(lat, lng, radius float64) (minLat, maxLat, minLng, maxLng float64, wrapLng bool) {
	dLat := radius / earthRadiusMeters * 180 / math.Pi
	minLat, maxLat = lat-dLat, lat+dLat
	if minLat <= -90 || maxLat >= 90 {
		return math.Max(minLat, -90), math.Min(maxLat, 90), -180, 180, true
	}
	ratio := math.Sin(radius/earthRadiusMeters) / math.Cos(lat*math.Pi/180)
	if ratio >= 1 {
		return minLat, maxLat, -180, 180, true
	}
	dLng := math.Asin(ratio) * 180 / math.Pi
	minLng, maxLng = lng-dLng, lng+dLng
	if minLng < -180 || maxLng > 180 {
		return minLat, maxLat, -180, 180, true
	}
	return minLat, maxLat, minLng, maxLng, false
}

func validCoordinates(lat, lng float64) bool {
	return !math.IsNaN(lat) && !math.IsNaN(lng) && lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
