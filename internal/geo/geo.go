package geo

import "math"

// Point is a geographic coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Polygon is a ring of vertices describing a service area.
type Polygon []Point

const earthRadiusKM = 6371.0

// HaversineKM returns the great-circle distance between two points in kilometers.
func HaversineKM(a, b Point) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(h))
}

// NormalizeRing closes an open ring by appending the first vertex when the
// first and last vertices differ. An empty ring is returned as-is.
func NormalizeRing(ring Polygon) Polygon {
	if len(ring) == 0 {
		return ring
	}
	if ring[0] == ring[len(ring)-1] {
		return ring
	}
	out := make(Polygon, 0, len(ring)+1)
	out = append(out, ring...)
	out = append(out, ring[0])
	return out
}

// Contains reports whether p lies inside the polygon. Points on an edge or
// vertex count as inside. The ring may be open; it is normalized first.
func Contains(p Point, ring Polygon) bool {
	ring = NormalizeRing(ring)
	if len(ring) < 4 {
		return false
	}

	inside := false
	for i := 0; i < len(ring)-1; i++ {
		a, b := ring[i], ring[i+1]
		if onSegment(p, a, b) {
			return true
		}
		if (a.Lat > p.Lat) != (b.Lat > p.Lat) {
			x := a.Lng + (p.Lat-a.Lat)*(b.Lng-a.Lng)/(b.Lat-a.Lat)
			if p.Lng < x {
				inside = !inside
			}
		}
	}
	return inside
}

const segEpsilon = 1e-12

// onSegment reports whether p lies on the segment [a, b].
func onSegment(p, a, b Point) bool {
	cross := (b.Lng-a.Lng)*(p.Lat-a.Lat) - (b.Lat-a.Lat)*(p.Lng-a.Lng)
	if math.Abs(cross) > segEpsilon {
		return false
	}
	if p.Lng < math.Min(a.Lng, b.Lng)-segEpsilon || p.Lng > math.Max(a.Lng, b.Lng)+segEpsilon {
		return false
	}
	if p.Lat < math.Min(a.Lat, b.Lat)-segEpsilon || p.Lat > math.Max(a.Lat, b.Lat)+segEpsilon {
		return false
	}
	return true
}
