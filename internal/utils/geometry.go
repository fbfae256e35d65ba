// Package utils holds small geographic helpers shared by the schedule store and
// the realtime normalizer.
package utils

import "math"

// RadiusOfEarthInMeters is the mean earth radius used for all distance math.
const RadiusOfEarthInMeters = 6371010.0

// CoordinateBounds is a lat/lon bounding box in degrees.
type CoordinateBounds struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Contains reports whether (lat, lon) lies inside b, edges included.
func (b CoordinateBounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// ValidCoordinate reports whether lat and lon are finite and within ±90 / ±180.
func ValidCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return math.Abs(lat) <= 90 && math.Abs(lon) <= 180
}

// Distance returns the great-circle distance in meters.
// Points closer than ~0.2 degrees use the equirectangular approximation.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := math.Pi / 180

	if math.Abs(lat2-lat1) < 0.2 && math.Abs(lon2-lon1) < 0.2 {
		x := (lon2 - lon1) * toRad * math.Cos((lat1+lat2)*toRad/2)
		y := (lat2 - lat1) * toRad
		return RadiusOfEarthInMeters * math.Sqrt(x*x+y*y)
	}

	phi1, phi2 := lat1*toRad, lat2*toRad
	dLambda := (lon2 - lon1) * toRad

	y := math.Hypot(
		math.Cos(phi2)*math.Sin(dLambda),
		math.Cos(phi1)*math.Sin(phi2)-math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda),
	)
	x := math.Sin(phi1)*math.Sin(phi2) + math.Cos(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	return RadiusOfEarthInMeters * math.Atan2(y, x)
}

// CalculateBounds returns the box that encloses a circle of radius meters around (lat, lon).
func CalculateBounds(lat, lon, radius float64) CoordinateBounds {
	latOffset := radius / RadiusOfEarthInMeters * 180 / math.Pi
	lonOffset := radius / (math.Cos(lat*math.Pi/180) * RadiusOfEarthInMeters) * 180 / math.Pi

	return CoordinateBounds{
		MinLat: lat - latOffset,
		MaxLat: lat + latOffset,
		MinLon: lon - lonOffset,
		MaxLon: lon + lonOffset,
	}
}
