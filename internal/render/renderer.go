// internal/render/renderer.go - Tile parsing and three-pass feature drawing
package render

import (
	"log/slog"

	"github.com/gogpu/gg"

	"github.com/valpere/mvt_overlay/internal/canvas"
	"github.com/valpere/mvt_overlay/internal/feature"
	"github.com/valpere/mvt_overlay/internal/style"
	"github.com/valpere/mvt_overlay/internal/tile"
	"github.com/valpere/mvt_overlay/pkg/mvt"
)

// defaultPointRadius is used when a point style sets no radius.
const defaultPointRadius = 3.0

// CustomDraw lets the application take over painting one feature in one
// tile; returning true suppresses the default draw.
type CustomDraw func(c *canvas.Canvas, f *feature.Feature, tileKey string, props style.Props) bool

// Renderer parses decoded layers into the registry and paints tiles.
type Renderer struct {
	resolver   *style.Resolver
	registry   *feature.Registry
	logger     *slog.Logger
	debug      bool
	customDraw CustomDraw
}

// NewRenderer creates a renderer over the shared registry and resolver.
func NewRenderer(registry *feature.Registry, resolver *style.Resolver, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		resolver: resolver,
		registry: registry,
		logger:   logger.With("component", "render"),
	}
}

// SetDebug toggles first-render debug annotation.
func (r *Renderer) SetDebug(debug bool) {
	r.debug = debug
}

// SetCustomDraw installs an application draw hook.
func (r *Renderer) SetCustomDraw(fn CustomDraw) {
	r.customDraw = fn
}

// ParseTileLayer reconciles one decoded layer of a tile into the layer's
// feature table and the registry. Existing features get the new tile
// fragment appended and their interaction flags reconciled.
func (r *Renderer) ParseTileLayer(l *Layer, tctx *tile.Context) []*feature.Feature {
	if tctx.Vector == nil {
		return nil
	}
	decoded, ok := tctx.Vector.Layers[l.Name]
	if !ok {
		return nil
	}

	tileKey := tctx.Key.String()
	parsed := make([]*feature.Feature, 0, len(decoded.Features))

	for _, vtf := range decoded.Features {
		if !l.applyFilter(vtf) {
			continue
		}

		id := l.extractID(vtf)
		frame := tctx.FetchKey()
		frag := &feature.Fragment{
			VTF:       vtf,
			Divisor:   tctx.Divisor(vtf.Extent),
			Transform: tctx.Transform(vtf.Extent),
			FrameZ:    frame.Z,
			FrameX:    frame.X,
			FrameY:    frame.Y,
		}

		f := l.Feature(id)
		if f == nil {
			f = feature.New(id, vtf, l.Style)
			f.AddFragment(tileKey, frag)
			l.add(f)
			r.registry.Register(f)
		} else {
			f.Style = l.Style
			f.AddFragment(tileKey, frag)
		}

		// The registry is the source of truth for interaction state.
		f.Selected = r.registry.IsSelected(id)
		f.Hovered = r.registry.IsHovered(id)
		parsed = append(parsed, f)
	}

	return parsed
}

// DrawTileLayer paints a layer's features for one tile in three passes:
// regular, hovered, then selected, to keep interactive features on top.
func (r *Renderer) DrawTileLayer(l *Layer, tctx *tile.Context) {
	tileKey := tctx.Key.String()
	features := l.Features()

	pass := func(want func(*feature.Feature) bool) {
		for _, f := range features {
			if !f.InTile(tileKey) || !want(f) {
				continue
			}
			r.drawFeature(f, tctx)
		}
	}

	pass(func(f *feature.Feature) bool { return !f.Hovered && !f.Selected })
	pass(func(f *feature.Feature) bool { return f.Hovered && !f.Selected })
	pass(func(f *feature.Feature) bool { return f.Selected })
}

// DrawDebug paints the tile-coordinate annotation; it runs only on the
// first rendering of a tile, never on feature-level redraws.
func (r *Renderer) DrawDebug(tctx *tile.Context) {
	if !r.debug || tctx.Annotated {
		return
	}
	tctx.Annotated = true
	tctx.Canvas.DrawDebugFrame(tctx.Key.String())
}

// drawFeature resolves the effective style and paints one feature's
// fragment on the tile canvas.
func (r *Renderer) drawFeature(f *feature.Feature, tctx *tile.Context) {
	tileKey := tctx.Key.String()
	path := f.Path(tileKey)
	if path.Empty() {
		return
	}

	frag := f.Fragment(tileKey)
	props := r.resolver.Resolve(f.Style, frag.VTF, f.Selected, f.Hovered)

	if r.customDraw != nil && r.customDraw(tctx.Canvas, f, tileKey, props) {
		return
	}

	state, pooled := canvas.AcquireState(f.TileSpan())
	defer canvas.ReleaseState(state, pooled)
	r.propsToState(props, state)

	ctx := tctx.Canvas.Context()
	switch f.Type {
	case mvt.GeomPolygon:
		r.drawPolygon(ctx, path, state)
	case mvt.GeomLineString:
		r.drawLine(ctx, path, state)
	case mvt.GeomPoint:
		r.drawPoint(ctx, path, state)
	}
}

func (r *Renderer) drawPolygon(ctx *gg.Context, path *canvas.Path, state *canvas.DrawState) {
	ctx.ClearPath()
	ctx.SetFillRule(gg.FillRuleEvenOdd)
	path.AddToClosed(ctx)
	if state.ApplyFill(ctx) {
		if err := ctx.FillPreserve(); err != nil {
			r.logger.Debug("polygon fill failed", "error", err)
		}
	}
	if state.ApplyStroke(ctx) {
		if err := ctx.Stroke(); err != nil {
			r.logger.Debug("polygon stroke failed", "error", err)
		}
	}
	ctx.ClearPath()
}

func (r *Renderer) drawLine(ctx *gg.Context, path *canvas.Path, state *canvas.DrawState) {
	if !state.ApplyStroke(ctx) {
		return
	}
	ctx.ClearPath()
	path.AddTo(ctx)
	if err := ctx.Stroke(); err != nil {
		r.logger.Debug("line stroke failed", "error", err)
	}
	ctx.ClearPath()
}

func (r *Renderer) drawPoint(ctx *gg.Context, path *canvas.Path, state *canvas.DrawState) {
	radius := state.Radius
	if radius <= 0 {
		radius = defaultPointRadius
	}
	for _, part := range path.Parts {
		for _, p := range part {
			ctx.ClearPath()
			ctx.DrawCircle(p[0], p[1], radius)
			if state.ApplyFill(ctx) {
				if err := ctx.FillPreserve(); err != nil {
					r.logger.Debug("point fill failed", "error", err)
				}
			}
			if state.ApplyStroke(ctx) {
				if err := ctx.Stroke(); err != nil {
					r.logger.Debug("point stroke failed", "error", err)
				}
			}
			ctx.ClearPath()
		}
	}
}

// propsToState converts resolved style props to a concrete draw state.
func (r *Renderer) propsToState(props style.Props, state *canvas.DrawState) {
	colors := r.resolver.Colors()

	if props.Fill != nil {
		if c := colors.Parse(*props.Fill); c != nil {
			cr, cg, cb, ca := c.Components()
			if props.FillOpacity != nil {
				ca *= *props.FillOpacity
			}
			state.Fill = gg.RGBA{R: cr, G: cg, B: cb, A: ca}
			state.HasFill = true
		}
	}

	if props.Stroke != nil {
		if c := colors.Parse(*props.Stroke); c != nil {
			cr, cg, cb, ca := c.Components()
			state.Stroke = gg.RGBA{R: cr, G: cg, B: cb, A: ca}
			state.HasStroke = true
		}
	}

	if props.LineWidth != nil {
		state.LineWidth = *props.LineWidth
	}
	if props.Radius != nil {
		state.Radius = *props.Radius
	}
}
