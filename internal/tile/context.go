// internal/tile/context.go - Per-tile render context
package tile

import (
	"math"

	"github.com/valpere/mvt_overlay/internal/canvas"
	"github.com/valpere/mvt_overlay/pkg/mvt"
)

// Context is the live state of one tile requested by the host: its
// canvas, the zoom it was created at, the overzoom ancestry, and the
// decoded vector tile once the fetch completes.
type Context struct {
	Key    Key
	Canvas *canvas.Canvas
	Zoom   int

	// ParentKey is set when the tile is overzoomed and content comes
	// from an ancestor tile; ZoomDelta is Key.Z - ParentKey.Z.
	ParentKey *Key
	ZoomDelta int

	Vector *mvt.Tile

	// Loaded flips when the fetch settles, successfully or not.
	Loaded bool
	// DebugOnly marks tiles that failed or were rejected by the oracle;
	// they carry annotation but no features.
	DebugOnly bool
	// Drawn marks that the features have been painted at least once.
	Drawn bool
	// Annotated marks that the debug frame has been painted; it is
	// drawn only on the first rendering, not on feature-level redraws.
	Annotated bool
}

// NewContext creates a tile context with a fresh canvas.
func NewContext(key Key, zoom, tileSize int) *Context {
	return &Context{
		Key:    key,
		Canvas: canvas.New(tileSize),
		Zoom:   zoom,
	}
}

// Overzoomed reports whether the tile reuses an ancestor's content.
func (c *Context) Overzoomed() bool {
	return c.ParentKey != nil && c.ZoomDelta > 0
}

// FetchKey returns the key actually fetched: the ancestor for overzoomed
// tiles, the tile's own key otherwise.
func (c *Context) FetchKey() Key {
	if c.Overzoomed() {
		return *c.ParentKey
	}
	return c.Key
}

// Transform builds the tile-local to canvas-space mapping for a feature
// with the given extent, folding in overzoom scale and offset.
func (c *Context) Transform(extent int) canvas.Transform {
	tileSize := float64(c.Canvas.Size())
	divisor := float64(extent) / tileSize

	if !c.Overzoomed() {
		return canvas.IdentityTransform(divisor)
	}

	scale := math.Exp2(float64(c.ZoomDelta))
	xOff, yOff := c.Key.OffsetWithin(c.ZoomDelta)
	return canvas.Transform{
		Divisor: divisor,
		Scale:   scale,
		OffsetX: float64(xOff) * tileSize,
		OffsetY: float64(yOff) * tileSize,
	}
}

// Divisor returns extent/tileSize, fixed once computed for a tile.
func (c *Context) Divisor(extent int) float64 {
	return float64(extent) / float64(c.Canvas.Size())
}
