// internal/style/style.go - Draw style model
package style

import (
	"github.com/valpere/mvt_overlay/pkg/mvt"
)

// Props is a concrete draw style. Nil fields are unset and fall through
// to defaults during composition.
type Props struct {
	Fill        *string
	Stroke      *string
	LineWidth   *float64
	FillOpacity *float64
	Radius      *float64

	// Nested override blocks applied by interaction state.
	Selected *Props
	Hover    *Props
}

// StyleFunc computes a style from a decoded feature.
type StyleFunc func(f *mvt.Feature) Props

// Style is either a static set of props or a function of the feature.
type Style struct {
	static  Props
	dynamic StyleFunc
}

// Static wraps concrete props as a style.
func Static(p Props) Style {
	return Style{static: p}
}

// Dynamic wraps a feature-dependent style function.
func Dynamic(fn StyleFunc) Style {
	return Style{dynamic: fn}
}

// Base evaluates the style for a feature.
func (s Style) Base(f *mvt.Feature) Props {
	if s.dynamic != nil {
		return s.dynamic(f)
	}
	return s.static
}

// IsDynamic reports whether the style is feature-dependent.
func (s Style) IsDynamic() bool {
	return s.dynamic != nil
}

// String returns a string pointer for literal props.
func String(v string) *string {
	return &v
}

// Float returns a float pointer for literal props.
func Float(v float64) *float64 {
	return &v
}

// clone copies the props without the nested override blocks.
func (p Props) clone() Props {
	out := Props{}
	if p.Fill != nil {
		out.Fill = String(*p.Fill)
	}
	if p.Stroke != nil {
		out.Stroke = String(*p.Stroke)
	}
	if p.LineWidth != nil {
		out.LineWidth = Float(*p.LineWidth)
	}
	if p.FillOpacity != nil {
		out.FillOpacity = Float(*p.FillOpacity)
	}
	if p.Radius != nil {
		out.Radius = Float(*p.Radius)
	}
	return out
}

// merge overlays src onto dst: set fields of src win.
func merge(dst, src Props) Props {
	if src.Fill != nil {
		dst.Fill = String(*src.Fill)
	}
	if src.Stroke != nil {
		dst.Stroke = String(*src.Stroke)
	}
	if src.LineWidth != nil {
		dst.LineWidth = Float(*src.LineWidth)
	}
	if src.FillOpacity != nil {
		dst.FillOpacity = Float(*src.FillOpacity)
	}
	if src.Radius != nil {
		dst.Radius = Float(*src.Radius)
	}
	return dst
}

// fillDefaults copies fields from def into dst only where dst is unset.
func fillDefaults(dst, def Props) Props {
	if dst.Fill == nil && def.Fill != nil {
		dst.Fill = String(*def.Fill)
	}
	if dst.Stroke == nil && def.Stroke != nil {
		dst.Stroke = String(*def.Stroke)
	}
	if dst.LineWidth == nil && def.LineWidth != nil {
		dst.LineWidth = Float(*def.LineWidth)
	}
	if dst.FillOpacity == nil && def.FillOpacity != nil {
		dst.FillOpacity = Float(*def.FillOpacity)
	}
	if dst.Radius == nil && def.Radius != nil {
		dst.Radius = Float(*def.Radius)
	}
	return dst
}
