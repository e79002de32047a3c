// pkg/projection/projection.go - Spherical Mercator and planar distance primitives
package projection

import (
	"math"

	"github.com/paulmach/orb"
)

// WorldSize is the pixel extent of the world at zoom 0.
const WorldSize = 256.0

// maxSinLat clamps the Mercator singularity at the poles.
const maxSinLat = 0.9999

// TileID identifies a tile in the slippy-map pyramid.
type TileID struct {
	Z int
	X int
	Y int
}

// LatLngToWorld projects a geographic coordinate to world pixel space at zoom 0.
func LatLngToWorld(lat, lng float64) orb.Point {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return orb.Point{0, 0}
	}

	siny := math.Sin(lat * math.Pi / 180)
	if siny < -maxSinLat {
		siny = -maxSinLat
	} else if siny > maxSinLat {
		siny = maxSinLat
	}

	x := WorldSize * (0.5 + lng/360)
	y := WorldSize * (0.5 - math.Log((1+siny)/(1-siny))/(4*math.Pi))
	return orb.Point{x, y}
}

// WorldToLatLng is the exact inverse of LatLngToWorld.
func WorldToLatLng(p orb.Point) (lat, lng float64) {
	lng = (p[0]/WorldSize-0.5)*360 + 0
	n := math.Pi - 2*math.Pi*p[1]/WorldSize
	lat = 180 / math.Pi * math.Atan(0.5*(math.Exp(n)-math.Exp(-n)))
	return lat, lng
}

// TileAtLatLng returns the tile containing a geographic coordinate at zoom z.
func TileAtLatLng(lat, lng float64, z int) TileID {
	p := LatLngToWorld(lat, lng)
	scale := WorldSize / math.Exp2(float64(z))
	return TileID{
		Z: z,
		X: int(math.Floor(p[0] / scale)),
		Y: int(math.Floor(p[1] / scale)),
	}
}

// Bounds holds the geographic corners of a tile.
type Bounds struct {
	NE orb.Point // lng, lat of the north-east corner
	SW orb.Point // lng, lat of the south-west corner
}

// TileBounds returns the geographic corners of a tile.
func TileBounds(t TileID) Bounds {
	scale := WorldSize / math.Exp2(float64(t.Z))
	nwLat, nwLng := WorldToLatLng(orb.Point{float64(t.X) * scale, float64(t.Y) * scale})
	seLat, seLng := WorldToLatLng(orb.Point{float64(t.X+1) * scale, float64(t.Y+1) * scale})
	return Bounds{
		NE: orb.Point{seLng, nwLat},
		SW: orb.Point{nwLng, seLat},
	}
}

// NormalizeTile wraps tile coordinates modulo the pyramid width at zoom z.
func NormalizeTile(x, y, z int) (int, int) {
	n := 1 << uint(z)
	x = ((x % n) + n) % n
	y = ((y % n) + n) % n
	return x, y
}

// IsPointInPolygon reports even-odd containment of p in the ring.
func IsPointInPolygon(p orb.Point, ring []orb.Point) bool {
	if len(ring) < 3 {
		return false
	}

	inside := false
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > p[1]) != (yj > p[1]) &&
			p[0] < (xj-xi)*(p[1]-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}

// InCircle reports whether (x, y) lies within radius r of center (cx, cy).
func InCircle(cx, cy, r, x, y float64) bool {
	if math.IsNaN(cx) || math.IsNaN(cy) || math.IsNaN(r) {
		return false
	}
	dx := cx - x
	dy := cy - y
	return dx*dx+dy*dy <= r*r
}

// PointToSegmentDistance returns the Euclidean distance from p to segment [a, b].
func PointToSegmentDistance(p, a, b orb.Point) float64 {
	if math.IsNaN(p[0]) || math.IsNaN(p[1]) {
		return math.Inf(1)
	}

	dx := b[0] - a[0]
	dy := b[1] - a[1]

	lenSq := dx*dx + dy*dy
	t := 0.0
	if lenSq > 0 {
		t = ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / lenSq
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
	}

	cx := a[0] + t*dx
	cy := a[1] + t*dy
	return math.Hypot(p[0]-cx, p[1]-cy)
}

// DistanceFromPolyline returns the minimum distance from p to any segment
// of the polyline. An empty or single-point polyline yields +Inf.
func DistanceFromPolyline(p orb.Point, pts []orb.Point) float64 {
	min := math.Inf(1)
	for i := 1; i < len(pts); i++ {
		if d := PointToSegmentDistance(p, pts[i-1], pts[i]); d < min {
			min = d
		}
	}
	return min
}
