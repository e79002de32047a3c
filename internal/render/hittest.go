// internal/render/hittest.go - Pointer hit testing against a layer's features
package render

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/valpere/mvt_overlay/internal/feature"
	"github.com/valpere/mvt_overlay/pkg/mvt"
	"github.com/valpere/mvt_overlay/pkg/projection"
)

// lineHitTolerance widens the clickable band around a stroked line.
const lineHitTolerance = 2.0

// HitTest returns the topmost eligible feature of the layer under the
// tile-space point. Selected features are examined first, giving them
// priority even when obscured; then all features in reverse draw order.
// A zero-distance hit short-circuits the scan.
func (r *Renderer) HitTest(l *Layer, tileKey string, pt orb.Point) *feature.Feature {
	features := l.Features()

	var best *feature.Feature
	bestDist := math.Inf(1)

	scan := func(f *feature.Feature) bool {
		if !f.InTile(tileKey) {
			return false
		}
		dist, hit := r.hitFeature(f, tileKey, pt, bestDist)
		if !hit {
			return false
		}
		best = f
		bestDist = dist
		return dist == 0
	}

	for _, f := range features {
		if !f.Selected {
			continue
		}
		if scan(f) {
			return best
		}
	}
	if best != nil {
		// A selected non-zero-distance hit still wins outright.
		return best
	}

	for i := len(features) - 1; i >= 0; i-- {
		if scan(features[i]) {
			return best
		}
	}
	return best
}

// hitFeature applies the per-geometry-type rules. It reports the hit
// distance; polygon containment and point-circle hits count as zero.
func (r *Renderer) hitFeature(f *feature.Feature, tileKey string, pt orb.Point, bestDist float64) (float64, bool) {
	raw := f.RawPoints(tileKey)
	if len(raw) == 0 {
		return 0, false
	}

	switch f.Type {
	case mvt.GeomPolygon:
		path := f.Path(tileKey)
		if path != nil && path.ContainsEvenOdd(pt[0], pt[1]) {
			return 0, true
		}
		return 0, false

	case mvt.GeomPoint:
		radius := r.pointRadius(f, tileKey)
		for _, part := range raw {
			for _, p := range part {
				if projection.InCircle(p[0], p[1], radius, pt[0], pt[1]) {
					return 0, true
				}
			}
		}
		return 0, false

	case mvt.GeomLineString:
		width := r.lineWidth(f, tileKey)
		threshold := width/2 + lineHitTolerance
		hit := false
		dist := bestDist
		for _, part := range raw {
			d := projection.DistanceFromPolyline(pt, part)
			if d < threshold && d < dist {
				dist = d
				hit = true
			}
		}
		return dist, hit

	default:
		return 0, false
	}
}

// pointRadius resolves the effective hit radius for a point feature.
func (r *Renderer) pointRadius(f *feature.Feature, tileKey string) float64 {
	frag := f.Fragment(tileKey)
	props := r.resolver.Resolve(f.Style, frag.VTF, f.Selected, f.Hovered)
	if props.Radius != nil && *props.Radius > 0 {
		return *props.Radius
	}
	return defaultPointRadius
}

// lineWidth resolves the effective stroke width for a line feature.
func (r *Renderer) lineWidth(f *feature.Feature, tileKey string) float64 {
	frag := f.Fragment(tileKey)
	props := r.resolver.Resolve(f.Style, frag.VTF, f.Selected, f.Hovered)
	if props.LineWidth != nil && *props.LineWidth > 0 {
		return *props.LineWidth
	}
	return 1
}
