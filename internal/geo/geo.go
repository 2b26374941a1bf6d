// Package geo implements the advisory proximity check used by location
// check-ins. Client-reported coordinates are untrusted; the authority runs
// the same check again before persisting a flag.
package geo

import "math"

// EarthRadiusM is the mean Earth radius used by the haversine formula.
const EarthRadiusM = 6371000

// Tolerance is added to every accepted radius to absorb GPS noise.
const Tolerance = 10.0

// Point is a coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NewPoint returns a point, or nil if either coordinate is missing.
func NewPoint(lat, lng *float64) *Point {
	if lat == nil || lng == nil {
		return nil
	}
	return &Point{Lat: *lat, Lng: *lng}
}

// Distance returns the great-circle distance between a and b in whole
// metres. A nil point yields +Inf.
func Distance(a, b *Point) float64 {
	if a == nil || b == nil {
		return math.Inf(1)
	}
	if math.IsNaN(a.Lat) || math.IsNaN(a.Lng) || math.IsNaN(b.Lat) || math.IsNaN(b.Lng) {
		return math.Inf(1)
	}
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return math.Round(EarthRadiusM * c)
}

// Within reports whether device lies within radius (plus Tolerance) of
// target, along with the measured distance.
func Within(device, target *Point, radius float64) (float64, bool) {
	d := Distance(device, target)
	return d, d <= radius+Tolerance
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
