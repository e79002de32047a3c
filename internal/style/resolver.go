// internal/style/resolver.go - Effective style composition
package style

import (
	"github.com/valpere/mvt_overlay/pkg/colorutil"
	"github.com/valpere/mvt_overlay/pkg/mvt"
)

// Accent colors used when a selected feature has no explicit override.
const (
	accentFill        = "rgba(255, 140, 0, 1)"
	accentFillDim     = "rgba(255, 140, 0, 0.4)"
	accentStroke      = "rgba(255, 100, 0, 1)"
	hoverOpacityNudge = 0.1
)

// Resolver composes base styles with interaction state.
type Resolver struct {
	colors *colorutil.Parser
}

// NewResolver creates a resolver sharing the given color parser.
func NewResolver(colors *colorutil.Parser) *Resolver {
	if colors == nil {
		colors = colorutil.NewParser()
	}
	return &Resolver{colors: colors}
}

// Resolve returns the effective draw style for a feature. The base style
// is evaluated first; selected state wins over hovered state.
func (r *Resolver) Resolve(s Style, f *mvt.Feature, selected, hovered bool) Props {
	base := s.Base(f)
	selectedBlock := base.Selected
	hoverBlock := base.Hover

	// Nested override blocks never leak into the composed result.
	out := base.clone()

	if selected {
		if selectedBlock != nil {
			return merge(out, selectedBlock.clone())
		}
		return fillDefaults(out, r.defaultSelected(f, out))
	}

	if hovered {
		if hoverBlock != nil {
			return merge(out, hoverBlock.clone())
		}
		return r.nudgeOpacity(out)
	}

	return out
}

// defaultSelected derives the geometry-type selected style. Defaults only
// fill in properties the base did not set.
func (r *Resolver) defaultSelected(f *mvt.Feature, base Props) Props {
	geomType := mvt.GeomPolygon
	if f != nil {
		geomType = f.Type
	}

	switch geomType {
	case mvt.GeomPoint:
		radius := 6.0
		if base.Radius != nil {
			radius = *base.Radius + 2
		}
		return Props{
			Fill:   String(accentFill),
			Radius: Float(radius),
		}
	case mvt.GeomLineString:
		width := 4.0
		if base.LineWidth != nil {
			width = *base.LineWidth * 2
		}
		return Props{
			Stroke:    String(accentStroke),
			LineWidth: Float(width),
		}
	default:
		width := 3.0
		if base.LineWidth != nil && *base.LineWidth > width {
			width = *base.LineWidth
		}
		return Props{
			Fill:      String(accentFillDim),
			Stroke:    String(accentStroke),
			LineWidth: Float(width),
		}
	}
}

// nudgeOpacity raises the fill opacity by a small fixed increment for
// hover feedback when no explicit hover block exists.
func (r *Resolver) nudgeOpacity(p Props) Props {
	opacity := 1.0
	if p.FillOpacity != nil {
		opacity = *p.FillOpacity
	} else if p.Fill != nil {
		if c := r.colors.Parse(*p.Fill); c != nil && c.HasAlpha {
			opacity = c.A
		}
	}

	opacity += hoverOpacityNudge
	if opacity > 1 {
		opacity = 1
	}
	p.FillOpacity = Float(opacity)
	return p
}

// Colors exposes the shared parser for draw-state conversion.
func (r *Resolver) Colors() *colorutil.Parser {
	return r.colors
}
