// cmd/host.go - Headless host implementation for CLI rendering
package cmd

import (
	"github.com/valpere/mvt_overlay/pkg/overlay"
)

// headlessHost satisfies the overlay's host contract without a display.
// It pins the zoom level and swallows interaction wiring; the CLI pulls
// rendered canvases straight from the source.
type headlessHost struct {
	zoom int
}

func newHeadlessHost(zoom int) *headlessHost {
	return &headlessHost{zoom: zoom}
}

func (h *headlessHost) Zoom() int {
	return h.zoom
}

func (h *headlessHost) RegisterOverlay(p overlay.TileProvider) func() {
	return func() {}
}

func (h *headlessHost) OnZoomChange(fn func(zoom int)) func() {
	return func() {}
}

func (h *headlessHost) OnClick(fn func(ev overlay.PointerEvent)) func() {
	return func() {}
}

func (h *headlessHost) OnMouseMove(fn func(ev overlay.PointerEvent)) func() {
	return func() {}
}

func (h *headlessHost) GeoJSONSink() overlay.GeoJSONSink {
	return nil
}
