// Package geo has the distance math used for proximity checks and nearby search.
package geo

import (
	"math"

	"Fixer-backend/internal/model"
)

const (
	earthRadiusFeet = 20902231.0
	feetPerMile     = 5280.0
	feetPerDegree   = 364000.0
)

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// DistanceFeet returns the great-circle distance between a and b.
func DistanceFeet(a, b model.Coordinates) float64 {
	lat1, lat2 := radians(a.Latitude), radians(b.Latitude)
	dLat := lat2 - lat1
	dLon := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusFeet * math.Asin(math.Min(1, math.Sqrt(h)))
}

// DistanceMiles returns the great-circle distance between a and b in miles.
func DistanceMiles(a, b model.Coordinates) float64 {
	return DistanceFeet(a, b) / feetPerMile
}

// Box is a latitude/longitude rectangle.
type Box struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// BoundingBox returns a rectangle enclosing every point within radiusMiles of
// center. It over-approximates and is meant as a coarse SQL prefilter.
func BoundingBox(center model.Coordinates, radiusMiles float64) Box {
	dLat := radiusMiles * feetPerMile / feetPerDegree
	cos := math.Cos(radians(center.Latitude))
	dLon := 180.0
	if cos > 1e-6 {
		dLon = math.Min(180, dLat/cos)
	}
	return Box{
		MinLat: center.Latitude - dLat,
		MaxLat: center.Latitude + dLat,
		MinLon: center.Longitude - dLon,
		MaxLon: center.Longitude + dLon,
	}
}
