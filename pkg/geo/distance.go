package geo

import (
	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// Point builds an orb point from latitude and longitude.
func Point(lat, lng float64) orb.Point {
	return orb.Point{lng, lat}
}

// DistanceMeters is the great-circle distance between two lat/lng pairs.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	return orbgeo.DistanceHaversine(Point(lat1, lng1), Point(lat2, lng2))
}
