// internal/canvas/path.go - Reusable canvas path aggregate
package canvas

import (
	"fmt"
	"math"

	"github.com/gogpu/gg"
	"github.com/paulmach/orb"

	"github.com/valpere/mvt_overlay/pkg/projection"
)

// Path is a drawable aggregate of sub-paths, one per geometry ring or
// line part, already transformed to canvas pixel space. It is reused
// for both painting and pointer containment queries.
type Path struct {
	Parts [][]orb.Point
	hash  string
}

// Transform maps a tile-local integer coordinate to canvas pixel space.
type Transform struct {
	Divisor float64
	// Overzoom scaling: 2^(childZ-parentZ), 1 when not overzoomed.
	Scale float64
	// Pixel offset of the child tile within the ancestor canvas frame.
	OffsetX float64
	OffsetY float64
}

// IdentityTransform maps coordinates with a plain divisor and no overzoom.
func IdentityTransform(divisor float64) Transform {
	return Transform{Divisor: divisor, Scale: 1}
}

// Apply maps one tile-local point to canvas space.
func (t Transform) Apply(p orb.Point) orb.Point {
	x := p[0]/t.Divisor*t.Scale - t.OffsetX
	y := p[1]/t.Divisor*t.Scale - t.OffsetY
	return orb.Point{x, y}
}

// NewPath builds a path from raw geometry parts, applying the transform.
// NaN points are skipped; parts with no valid vertex are dropped.
func NewPath(parts [][]orb.Point, transform Transform) *Path {
	path := &Path{Parts: make([][]orb.Point, 0, len(parts))}
	for _, part := range parts {
		out := make([]orb.Point, 0, len(part))
		for _, p := range part {
			if math.IsNaN(p[0]) || math.IsNaN(p[1]) {
				continue
			}
			out = append(out, transform.Apply(p))
		}
		if len(out) == 0 {
			continue
		}
		path.Parts = append(path.Parts, out)
	}
	return path
}

// AddTo replays the path into a draw context as sub-paths.
func (p *Path) AddTo(ctx *gg.Context) {
	for _, part := range p.Parts {
		ctx.NewSubPath()
		ctx.MoveTo(part[0][0], part[0][1])
		for _, pt := range part[1:] {
			ctx.LineTo(pt[0], pt[1])
		}
	}
}

// AddToClosed replays the path with each sub-path closed, for polygon fill.
func (p *Path) AddToClosed(ctx *gg.Context) {
	for _, part := range p.Parts {
		ctx.NewSubPath()
		ctx.MoveTo(part[0][0], part[0][1])
		for _, pt := range part[1:] {
			ctx.LineTo(pt[0], pt[1])
		}
		ctx.ClosePath()
	}
}

// ContainsEvenOdd reports whether (x, y) is inside the path under the
// even-odd rule, counting every sub-path.
func (p *Path) ContainsEvenOdd(x, y float64) bool {
	inside := false
	for _, part := range p.Parts {
		if projection.IsPointInPolygon(orb.Point{x, y}, part) {
			inside = !inside
		}
	}
	return inside
}

// Empty reports whether the path has no drawable parts.
func (p *Path) Empty() bool {
	return p == nil || len(p.Parts) == 0
}

// GeometryHash fingerprints the source geometry so cached paths can be
// invalidated when the underlying geometry reference changes. It hashes
// the ring count plus the first and last point of up to three rings.
func GeometryHash(parts [][]orb.Point) string {
	h := fmt.Sprintf("n%d", len(parts))
	for i := 0; i < len(parts) && i < 3; i++ {
		part := parts[i]
		if len(part) == 0 {
			h += "|empty"
			continue
		}
		first := part[0]
		last := part[len(part)-1]
		h += fmt.Sprintf("|%g,%g;%g,%g", first[0], first[1], last[0], last[1])
	}
	return h
}

// Hash returns the memoized geometry hash of the path's own parts.
func (p *Path) Hash() string {
	if p.hash == "" {
		p.hash = GeometryHash(p.Parts)
	}
	return p.hash
}
