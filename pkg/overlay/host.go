// pkg/overlay/host.go - Host map runtime contract
package overlay

import (
	"github.com/paulmach/orb/geojson"

	"github.com/valpere/mvt_overlay/internal/canvas"
)

// TileCanvas is the raster surface handed back to the host per tile.
type TileCanvas = canvas.Canvas

// PointerEvent is a host pointer event translated to geographic and
// container-pixel coordinates.
type PointerEvent struct {
	Lat float64
	Lng float64
	// X, Y are container pixel coordinates, informational only.
	X float64
	Y float64
}

// TileProvider is the contract the source implements for the host's
// tile grid: a canvas per cell, synchronously, plus a release signal.
type TileProvider interface {
	GetTile(x, y, zoom int) *TileCanvas
	ReleaseTile(x, y, zoom int)
}

// GeoJSONSink is the host's secondary overlay surface where high-detail
// replacement features are published under the feature's ID.
type GeoJSONSink interface {
	Set(id string, f *geojson.Feature)
	Remove(id string)
	Clear()
	// OnClick and OnHover surface interaction with published overlays;
	// the returned func removes the listener.
	OnClick(fn func(id string, ev PointerEvent)) (remove func())
	OnHover(fn func(id string, ev PointerEvent)) (remove func())
}

// Host is the slippy-map runtime the overlay attaches to. The overlay
// registers itself at construction and removes every listener on
// disposal.
type Host interface {
	Zoom() int
	RegisterOverlay(p TileProvider) (remove func())
	OnZoomChange(fn func(zoom int)) (remove func())
	OnClick(fn func(ev PointerEvent)) (remove func())
	OnMouseMove(fn func(ev PointerEvent)) (remove func())
	// GeoJSONSink may return nil when the host has no secondary surface.
	GeoJSONSink() GeoJSONSink
}

// ClickEvent is delivered to the application click and hover callbacks.
type ClickEvent struct {
	// FeatureID is empty when no feature was under the pointer.
	FeatureID string
	Feature   *FeatureInfo

	Lat float64
	Lng float64
	// PixelX, PixelY are container pixels from the host event.
	PixelX float64
	PixelY float64

	// TileKey and TilePoint locate the event in tile space; TileKey is
	// empty when the tile is not visible.
	TileKey    string
	TilePointX float64
	TilePointY float64

	SelectionChanged bool
	IsSelected       bool
}

// FeatureInfo is the application-facing snapshot of a hit feature.
type FeatureInfo struct {
	ID         string
	Layer      string
	Type       int
	Properties map[string]interface{}
	Selected   bool
	Hovered    bool
}
