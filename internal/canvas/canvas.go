// internal/canvas/canvas.go - Tile canvas surface over a gg context
package canvas

import (
	"fmt"
	"image"
	"io"

	"github.com/gogpu/gg"
)

// Canvas is a fixed-size raster surface for one tile.
type Canvas struct {
	ctx  *gg.Context
	size int
}

// New creates a square canvas of the given pixel size.
func New(size int) *Canvas {
	return &Canvas{
		ctx:  gg.NewContext(size, size),
		size: size,
	}
}

// Size returns the canvas pixel size.
func (c *Canvas) Size() int {
	return c.size
}

// Context exposes the underlying draw context.
func (c *Canvas) Context() *gg.Context {
	return c.ctx
}

// Clear wipes the canvas back to full transparency.
func (c *Canvas) Clear() {
	c.ctx.ClearPath()
	c.ctx.ClearWithColor(gg.RGBA{})
}

// Image returns the rendered pixels.
func (c *Canvas) Image() image.Image {
	return c.ctx.Image()
}

// EncodePNG writes the canvas contents as PNG.
func (c *Canvas) EncodePNG(w io.Writer) error {
	if err := c.ctx.EncodePNG(w); err != nil {
		return fmt.Errorf("failed to encode canvas: %w", err)
	}
	return nil
}

// DrawDebugFrame draws the tile border, corner ticks, and coordinate label
// used for debug tiles and first-time renders.
func (c *Canvas) DrawDebugFrame(label string) {
	s := float64(c.size)

	c.ctx.Push()
	c.ctx.SetRGBA(1, 0.4, 0, 0.8)
	c.ctx.SetLineWidth(1)
	c.ctx.DrawRectangle(0.5, 0.5, s-1, s-1)
	c.ctx.Stroke()

	// Corner ticks
	const tick = 8.0
	for _, corner := range [][2]float64{{0, 0}, {s, 0}, {0, s}, {s, s}} {
		dx, dy := tick, tick
		if corner[0] > 0 {
			dx = -tick
		}
		if corner[1] > 0 {
			dy = -tick
		}
		c.ctx.DrawLine(corner[0], corner[1], corner[0]+dx, corner[1])
		c.ctx.DrawLine(corner[0], corner[1], corner[0], corner[1]+dy)
	}
	c.ctx.Stroke()

	c.ctx.SetRGBA(1, 0.4, 0, 1)
	c.ctx.DrawString(label, 6, 14)
	c.ctx.Pop()
}
