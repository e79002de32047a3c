// internal/merge/merger.go - Multi-tile polygon reassembly
package merge

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/engelsjk/polygol"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"

	"github.com/valpere/mvt_overlay/pkg/projection"
)

// RingSource is one polygon ring as it appears in one tile: tile-local
// integer coordinates plus the frame needed to unproject them.
type RingSource struct {
	Points  []orb.Point
	Divisor float64
	// Z, X, Y address the tile frame the points live in (the fetched
	// tile for overzoomed contexts).
	Z int
	X int
	Y int
}

// Options configures the merge.
type Options struct {
	// TileSize is the canvas pixel size used for unprojection.
	TileSize float64
	// SimplifyTolerance applies Douglas-Peucker to the merged result
	// when > 0, in degrees.
	SimplifyTolerance float64
}

// Merger reassembles a logical polygon or multipolygon from ring
// fragments spread over adjacent tiles.
type Merger struct {
	logger *slog.Logger
}

// NewMerger creates a merger.
func NewMerger(logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{logger: logger.With("component", "merge")}
}

// Merge unprojects every ring to geographic coordinates, groups rings
// that touch or overlap, unions each group, and emits a Polygon or
// MultiPolygon. Any unexpected failure falls back to a single Polygon
// of all rings sorted by absolute area, largest first.
func (m *Merger) Merge(sources []RingSource, opts Options) (geom orb.Geometry, err error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no rings to merge")
	}
	if opts.TileSize <= 0 {
		opts.TileSize = 256
	}

	rings := make([]orb.Ring, 0, len(sources))
	for _, src := range sources {
		ring := unprojectRing(src, opts.TileSize)
		if len(ring) < 4 {
			continue
		}
		rings = append(rings, ring)
	}
	if len(rings) == 0 {
		return nil, fmt.Errorf("no valid rings to merge")
	}

	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("merge failed, falling back to area-sorted polygon", "panic", r)
			geom, err = fallbackPolygon(rings), nil
		}
	}()

	groups := m.groupRings(rings)

	polygons := make([]orb.Polygon, 0, len(groups))
	for _, group := range groups {
		polygons = append(polygons, m.unionGroup(group, rings))
	}

	var result orb.Geometry
	if len(polygons) == 1 {
		result = polygons[0]
	} else {
		result = orb.MultiPolygon(polygons)
	}

	if opts.SimplifyTolerance > 0 {
		result = simplify.DouglasPeucker(opts.SimplifyTolerance).Simplify(result)
	}
	return result, nil
}

// unprojectRing converts tile-local integer coordinates to closed
// geographic (lng, lat) rings.
func unprojectRing(src RingSource, tileSize float64) orb.Ring {
	n := math.Exp2(float64(src.Z))
	ring := make(orb.Ring, 0, len(src.Points)+1)

	for _, p := range src.Points {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) {
			continue
		}
		pixelX := p[0] / src.Divisor
		pixelY := p[1] / src.Divisor
		globalX := float64(src.X) + pixelX/tileSize
		globalY := float64(src.Y) + pixelY/tileSize

		lng := globalX/n*360 - 180
		lat := math.Atan(math.Sinh(math.Pi*(1-2*globalY/n))) * 180 / math.Pi
		ring = append(ring, orb.Point{lng, lat})
	}

	if len(ring) >= 3 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring
}

// groupRings unions the adjacency graph of rings that share a vertex or
// geometrically intersect, using union-find with path compression.
func (m *Merger) groupRings(rings []orb.Ring) [][]int {
	parent := make([]int, len(rings))
	for i := range parent {
		parent[i] = i
	}

	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	vertexSets := make([]map[string]struct{}, len(rings))
	for i, ring := range rings {
		set := make(map[string]struct{}, len(ring))
		for _, p := range ring {
			set[vertexKey(p)] = struct{}{}
		}
		vertexSets[i] = set
	}

	for i := 0; i < len(rings); i++ {
		for j := i + 1; j < len(rings); j++ {
			if ringsShareVertex(vertexSets[i], vertexSets[j]) || ringsIntersect(rings[i], rings[j]) {
				union(i, j)
			}
		}
	}

	grouped := make(map[int][]int)
	for i := range rings {
		root := find(i)
		grouped[root] = append(grouped[root], i)
	}

	roots := make([]int, 0, len(grouped))
	for root := range grouped {
		roots = append(roots, root)
	}
	sort.Ints(roots)

	out := make([][]int, 0, len(grouped))
	for _, root := range roots {
		out = append(out, grouped[root])
	}
	return out
}

// vertexKey is the exact coordinate-string identity of a vertex; two
// rings are adjacent if any vertex is byte-identical.
func vertexKey(p orb.Point) string {
	return fmt.Sprintf("%v,%v", p[0], p[1])
}

func ringsShareVertex(a, b map[string]struct{}) bool {
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	for k := range small {
		if _, ok := large[k]; ok {
			return true
		}
	}
	return false
}

// ringsIntersect is the geometric fallback: overlapping bounds plus a
// vertex of one ring contained in the other.
func ringsIntersect(a, b orb.Ring) bool {
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}
	for _, p := range a {
		if projection.IsPointInPolygon(p, b) {
			return true
		}
	}
	for _, p := range b {
		if projection.IsPointInPolygon(p, a) {
			return true
		}
	}
	return false
}

// unionGroup merges a group of rings pairwise through the polygon-union
// primitive. A failing pair keeps the prior result and logs a warning.
func (m *Merger) unionGroup(indices []int, rings []orb.Ring) orb.Polygon {
	if len(indices) == 1 {
		return orb.Polygon{rings[indices[0]]}
	}

	acc := ringToGeom(rings[indices[0]])
	for _, idx := range indices[1:] {
		merged, err := polygol.Union(acc, ringToGeom(rings[idx]))
		if err != nil || len(merged) == 0 {
			m.logger.Warn("ring union failed, keeping prior result", "ring", idx, "error", err)
			continue
		}
		acc = merged
	}

	return geomToPolygon(acc)
}

// ringToGeom lifts one ring into the union library's geometry form.
func ringToGeom(ring orb.Ring) polygol.Geom {
	coords := make([][]float64, 0, len(ring))
	for _, p := range ring {
		coords = append(coords, []float64{p[0], p[1]})
	}
	return polygol.Geom{{coords}}
}

// geomToPolygon flattens a union result back to a single orb polygon.
// Multi-part results keep every ring; the caller decided the parts
// belong together.
func geomToPolygon(g polygol.Geom) orb.Polygon {
	var poly orb.Polygon
	for _, part := range g {
		for _, ringCoords := range part {
			ring := make(orb.Ring, 0, len(ringCoords))
			for _, c := range ringCoords {
				if len(c) < 2 {
					continue
				}
				ring = append(ring, orb.Point{c[0], c[1]})
			}
			if len(ring) >= 4 {
				poly = append(poly, ring)
			}
		}
	}
	return poly
}

// fallbackPolygon emits all rings as one Polygon sorted by absolute
// signed area, largest first, without inferring hole relationships.
func fallbackPolygon(rings []orb.Ring) orb.Polygon {
	sorted := make([]orb.Ring, len(rings))
	copy(sorted, rings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return math.Abs(planar.Area(sorted[i])) > math.Abs(planar.Area(sorted[j]))
	})
	return orb.Polygon(sorted)
}
