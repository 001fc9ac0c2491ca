// Package geo provides great-circle helpers shared by the planner components.
package geo

import (
	"fmt"
	"math"
	"strings"
)

// EarthRadiusMeters is the mean Earth radius used by Haversine.
const EarthRadiusMeters = 6371000.0

// Point is a WGS84 coordinate in decimal degrees
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IsZero reports whether p is the zero coordinate (used as "unknown")
func (p Point) IsZero() bool {
	return p.Latitude == 0 && p.Longitude == 0
}

func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Latitude, p.Longitude)
}

// Haversine returns the great-circle distance between a and b in meters
func Haversine(a, b Point) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// Centroid returns the arithmetic mean of the given points
func Centroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}
	var lat, lon float64
	for _, p := range points {
		lat += p.Latitude
		lon += p.Longitude
	}
	n := float64(len(points))
	return Point{Latitude: lat / n, Longitude: lon / n}
}

// PathLength sums the haversine distances between consecutive points
func PathLength(points []Point) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += Haversine(points[i-1], points[i])
	}
	return total
}

// Round snaps a coordinate to 4 decimals (about 11 m at the equator)
func Round(p Point) Point {
	return Point{
		Latitude:  math.Round(p.Latitude*1e4) / 1e4,
		Longitude: math.Round(p.Longitude*1e4) / 1e4,
	}
}

// Key builds a stable cache key for a list of points rounded with Round
func Key(points []Point) string {
	parts := make([]string, len(points))
	for i, p := range points {
		r := Round(p)
		parts[i] = fmt.Sprintf("%.4f,%.4f", r.Latitude, r.Longitude)
	}
	return strings.Join(parts, ";")
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
