// pkg/overlay/replacement.go - High-detail replacement feature plumbing
package overlay

import (
	"context"
	"fmt"

	"github.com/paulmach/orb/geojson"

	"github.com/valpere/mvt_overlay/internal/merge"
	"github.com/valpere/mvt_overlay/pkg/mvt"
)

// startReplacement launches the awaitable replacement lookup for a
// freshly selected feature. Without a configured callback no overlay is
// produced.
func (s *Source) startReplacement(id string) {
	cb := s.opts.GetReplacementFeature
	if cb == nil || s.sink == nil {
		return
	}

	s.mu.Lock()
	if s.disposed || !s.registry.IsSelected(id) {
		s.mu.Unlock()
		return
	}
	if handle, ok := s.replacements[id]; ok {
		handle.cancel()
	}
	gen := s.replacementGen[id] + 1
	s.replacementGen[id] = gen
	ctx, cancel := context.WithCancel(s.rootCtx)
	s.replacements[id] = &replacementHandle{cancel: cancel, gen: gen}
	s.mu.Unlock()

	go func() {
		gj, err := cb(ctx, id)
		s.completeReplacement(id, gen, gj, err)
	}()
}

// completeReplacement settles a replacement future. The result is
// discarded when the feature was deselected, a newer lookup superseded
// this one, or the source was disposed. A nil or failed result falls
// back to the polygon merger.
func (s *Source) completeReplacement(id string, gen int, gj *geojson.Feature, err error) {
	s.mu.Lock()
	if s.disposed || s.replacementGen[id] != gen || !s.registry.IsSelected(id) {
		s.mu.Unlock()
		return
	}
	delete(s.replacements, id)

	if err != nil {
		// The selection stands on the tile-only geometry; the merger is
		// attempted as a fallback.
		s.logger.Warn("replacement lookup failed", "feature", id, "error", err)
		gj = nil
	}
	if gj == nil {
		gj = s.mergeReplacementLocked(id)
	}
	if gj == nil {
		s.mu.Unlock()
		return
	}

	s.applySelectedStyleLocked(id, gj)
	s.replaced[id] = struct{}{}
	sink := s.sink
	s.mu.Unlock()

	if sink != nil {
		sink.Set(id, gj)
	}
}

// mergeReplacementLocked synthesizes the high-detail geometry from the
// tiles the feature currently spans. Only polygon features merge.
func (s *Source) mergeReplacementLocked(id string) *geojson.Feature {
	f := s.registry.Get(id)
	if f == nil || f.Type != mvt.GeomPolygon {
		return nil
	}

	var sources []merge.RingSource
	seenFrames := make(map[string]struct{})
	for _, tileKey := range f.TileKeys() {
		frag := f.Fragment(tileKey)
		if frag == nil || frag.VTF == nil {
			continue
		}
		// A parent frame fetched for several overzoomed children
		// contributes its rings once.
		frameKey := fmt.Sprintf("%d:%d:%d", frag.FrameZ, frag.FrameX, frag.FrameY)
		if _, seen := seenFrames[frameKey]; seen {
			continue
		}
		seenFrames[frameKey] = struct{}{}

		for _, part := range frag.VTF.LoadGeometry() {
			if len(part) < 3 {
				continue
			}
			sources = append(sources, merge.RingSource{
				Points:  part,
				Divisor: frag.Divisor,
				Z:       frag.FrameZ,
				X:       frag.FrameX,
				Y:       frag.FrameY,
			})
		}
	}
	if len(sources) == 0 {
		return nil
	}

	geom, err := s.merger.Merge(sources, merge.Options{
		TileSize: float64(s.manager.TileSize()),
	})
	if err != nil {
		s.logger.Warn("replacement merge failed", "feature", id, "error", err)
		return nil
	}

	out := geojson.NewFeature(geom)
	out.ID = id
	out.Properties = copyProperties(f.Properties)
	return out
}

// applySelectedStyleLocked stamps the resolved selected style onto the
// replacement feature's properties for the sink to honor.
func (s *Source) applySelectedStyleLocked(id string, gj *geojson.Feature) {
	f := s.registry.Get(id)
	if f == nil {
		return
	}
	var vtf *mvt.Feature
	for _, tileKey := range f.TileKeys() {
		if frag := f.Fragment(tileKey); frag != nil {
			vtf = frag.VTF
			break
		}
	}
	props := s.resolver.Resolve(f.Style, vtf, true, false)

	styleProps := make(map[string]interface{})
	if props.Fill != nil {
		styleProps["fill"] = *props.Fill
	}
	if props.Stroke != nil {
		styleProps["stroke"] = *props.Stroke
	}
	if props.LineWidth != nil {
		styleProps["lineWidth"] = *props.LineWidth
	}
	if props.FillOpacity != nil {
		styleProps["fillOpacity"] = *props.FillOpacity
	}
	if props.Radius != nil {
		styleProps["radius"] = *props.Radius
	}
	if gj.Properties == nil {
		gj.Properties = geojson.Properties{}
	}
	gj.Properties["style"] = styleProps
	gj.Properties["selected"] = true
}

func copyProperties(props map[string]interface{}) geojson.Properties {
	out := make(geojson.Properties, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}
