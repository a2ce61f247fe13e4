package geo

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used by every distance in the project.
const EarthRadiusKm = 6378.5

const (
	planarMaxDelta      = 0.001
	planarMaxMeanLatSum = 120.0
	maxUnitInnerProduct = 1.0
)

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewPoint returns the point at lat, lng in degrees.
func NewPoint(lat, lng float64) Point {
	return Point{Latitude: lat, Longitude: lng}
}

func (p Point) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.Latitude, p.Longitude)
}

// Sub returns the distance in kilometers between p and other.
func (p Point) Sub(other Point) float64 {
	return Distance(p, other)
}

// Distance picks the local planar approximation for very close points away from
// the poles and the great-circle distance otherwise.
func Distance(a, b Point) float64 {
	dx := math.Abs(a.Longitude - b.Longitude)
	dy := math.Abs(a.Latitude - b.Latitude)

	if dx < planarMaxDelta && dy < planarMaxDelta && a.Latitude+b.Latitude < planarMaxMeanLatSum {
		return PlanarDistance(a, b)
	}
	return GreatCircleDistance(a, b)
}

// PlanarDistance treats the patch around the two points as flat. The longitude
// delta is scaled by the cosine of the mean latitude.
func PlanarDistance(a, b Point) float64 {
	meanLat := (a.Latitude + b.Latitude) / 2
	dLat := math.Abs(a.Latitude - b.Latitude)
	dLng := math.Abs(a.Longitude - b.Longitude)

	dx := EarthRadiusKm * math.Cos(radians(meanLat)) * radians(dLng)
	dy := EarthRadiusKm * radians(dLat)
	return math.Sqrt(dx*dx + dy*dy)
}

// GreatCircleDistance is the exact spherical distance.
func GreatCircleDistance(a, b Point) float64 {
	return arcFromInnerProduct(InnerProduct(a, b))
}

// InnerProduct is the dot product of the unit vectors pointing at a and b.
func InnerProduct(a, b Point) float64 {
	lat1, lat2 := radians(a.Latitude), radians(b.Latitude)
	return math.Sin(lat1)*math.Sin(lat2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Cos(radians(a.Longitude-b.Longitude))
}

// arcFromInnerProduct clamps round-off outside [-1, 1] before taking acos.
func arcFromInnerProduct(alpha float64) float64 {
	switch {
	case alpha >= maxUnitInnerProduct:
		return 0
	case alpha <= -maxUnitInnerProduct:
		return EarthRadiusKm * math.Pi
	default:
		return math.Acos(alpha) * EarthRadiusKm
	}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
