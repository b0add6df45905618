// Package geo holds the spherical geometry shared by the consistency and
// geofence engines. All distances are meters, all coordinates WGS84 degrees.
package geo

import "math"

const earthRadiusMeters = 6371000.0

// Point is a WGS84 coordinate pair.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Distance returns the great-circle distance between two points in meters
// (haversine formula).
func Distance(a, b Point) float64 {
	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := radians(b.Latitude - a.Latitude)
	dLon := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// PolygonContains reports whether p lies inside or on the boundary of the ring.
// Ray casting with an explicit on-edge check: boundary ties resolve to inside
// so a device sitting exactly on a fence edge does not flap between states.
func PolygonContains(ring []Point, p Point) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	for i := 0; i < n; i++ {
		if onSegment(ring[i], ring[(i+1)%n], p) {
			return true
		}
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := ring[i], ring[j]
		if (vi.Latitude > p.Latitude) != (vj.Latitude > p.Latitude) {
			cross := (vj.Longitude-vi.Longitude)*(p.Latitude-vi.Latitude)/
				(vj.Latitude-vi.Latitude) + vi.Longitude
			if p.Longitude < cross {
				inside = !inside
			}
		}
	}
	return inside
}

const edgeEpsilon = 1e-9

func onSegment(a, b, p Point) bool {
	cross := (b.Latitude-a.Latitude)*(p.Longitude-a.Longitude) -
		(b.Longitude-a.Longitude)*(p.Latitude-a.Latitude)
	if math.Abs(cross) > edgeEpsilon {
		return false
	}
	if p.Latitude < math.Min(a.Latitude, b.Latitude)-edgeEpsilon ||
		p.Latitude > math.Max(a.Latitude, b.Latitude)+edgeEpsilon {
		return false
	}
	if p.Longitude < math.Min(a.Longitude, b.Longitude)-edgeEpsilon ||
		p.Longitude > math.Max(a.Longitude, b.Longitude)+edgeEpsilon {
		return false
	}
	return true
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
