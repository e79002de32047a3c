// pkg/overlay/interaction.go - Pointer event routing and hit dispatch
package overlay

import (
	"math"
	"time"

	"github.com/paulmach/orb"

	"github.com/valpere/mvt_overlay/internal/feature"
	"github.com/valpere/mvt_overlay/internal/tile"
	"github.com/valpere/mvt_overlay/pkg/projection"
)

// tilePointAt maps a geographic coordinate to the containing tile key
// and the pixel position within that tile's canvas.
func (s *Source) tilePointAt(lat, lng float64, zoom int) (tile.Key, orb.Point) {
	world := projection.LatLngToWorld(lat, lng)
	scale := math.Exp2(float64(zoom))

	globalX := world[0] * scale
	globalY := world[1] * scale

	key := tile.Key{
		Z: zoom,
		X: int(math.Floor(globalX / projection.WorldSize)),
		Y: int(math.Floor(globalY / projection.WorldSize)),
	}

	// Tile-local pixels scale with the configured canvas size.
	factor := float64(s.manager.TileSize()) / projection.WorldSize
	local := orb.Point{
		(globalX - float64(key.X)*projection.WorldSize) * factor,
		(globalY - float64(key.Y)*projection.WorldSize) * factor,
	}
	return key, local
}

// handleClick translates a host click into tile-space hit queries and
// applies the selection policy.
func (s *Source) handleClick(ev PointerEvent) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}

	zoom := s.manager.Zoom()
	key, pt := s.tilePointAt(ev.Lat, ev.Lng, zoom)
	tileKey := key.String()

	base := ClickEvent{
		Lat:        ev.Lat,
		Lng:        ev.Lng,
		PixelX:     ev.X,
		PixelY:     ev.Y,
		TilePointX: pt[0],
		TilePointY: pt[1],
	}

	onClick := s.opts.OnClick

	tctx := s.manager.Visible(tileKey)
	if tctx == nil || tctx.Vector == nil {
		s.mu.Unlock()
		// The tile is not visible; the callback still fires, with no
		// feature attached.
		if onClick != nil {
			onClick(base)
		}
		return
	}
	base.TileKey = tileKey

	var after []func()
	hitAny := false

	for i := len(s.layerOrder) - 1; i >= 0; i-- {
		name := s.layerOrder[i]
		if !s.layerClickableLocked(name) || !s.layerVisibleLocked(name) {
			continue
		}
		f := s.renderer.HitTest(s.layers[name], tileKey, pt)
		if f == nil {
			continue
		}
		hitAny = true

		changed, selected, effects := s.applyClickSelectionLocked(f)
		after = append(after, effects...)

		eventCopy := base
		eventCopy.FeatureID = f.ID
		eventCopy.Feature = s.featureInfoLocked(f, name)
		eventCopy.SelectionChanged = changed
		eventCopy.IsSelected = selected
		if onClick != nil {
			after = append(after, func() { onClick(eventCopy) })
		}

		if s.limitToFirstVisibleLayer {
			break
		}
	}
	s.mu.Unlock()

	if !hitAny && onClick != nil {
		onClick(base)
	}
	for _, fn := range after {
		fn()
	}
}

// applyClickSelectionLocked applies the click policy flags to a hit
// feature, returning whether the selection changed and the new state.
func (s *Source) applyClickSelectionLocked(f *feature.Feature) (changed, selected bool, after []func()) {
	wasSelected := s.registry.IsSelected(f.ID)

	if !s.setSelectedOnClick {
		return false, wasSelected, nil
	}

	if !s.multipleSelection {
		for _, other := range s.registry.SelectedIDs() {
			if other != f.ID {
				after = append(after, s.deselectLocked(other)...)
				changed = true
			}
		}
	}

	if s.toggleSelection && wasSelected {
		after = append(after, s.deselectLocked(f.ID)...)
		return true, false, after
	}

	if !wasSelected {
		after = append(after, s.selectLocked(f.ID)...)
		return true, true, after
	}
	return changed, true, after
}

// layerClickableLocked applies the clickable-layer restriction.
func (s *Source) layerClickableLocked(name string) bool {
	if s.clickable == nil {
		return true
	}
	_, ok := s.clickable[name]
	return ok
}

// handleMouseMove debounces pointer moves by the configured hover delay
// and drops superseded events.
func (s *Source) handleMouseMove(ev PointerEvent) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.hoverSeq++
	seq := s.hoverSeq

	if s.hoverDelay <= 0 {
		s.mu.Unlock()
		s.processHover(ev, seq)
		return
	}

	if s.hoverTimer != nil {
		s.hoverTimer.Stop()
	}
	s.hoverTimer = time.AfterFunc(s.hoverDelay, func() {
		s.processHover(ev, seq)
	})
	s.mu.Unlock()
}

// processHover runs the hit test for a settled pointer position and
// enforces the at-most-one-hovered invariant.
func (s *Source) processHover(ev PointerEvent, seq int) {
	s.mu.Lock()
	if s.disposed || seq != s.hoverSeq {
		// A newer move superseded this one.
		s.mu.Unlock()
		return
	}

	zoom := s.manager.Zoom()
	key, pt := s.tilePointAt(ev.Lat, ev.Lng, zoom)
	tileKey := key.String()

	var hit *feature.Feature
	var hitLayer string
	if tctx := s.manager.Visible(tileKey); tctx != nil && tctx.Vector != nil {
		for i := len(s.layerOrder) - 1; i >= 0 && hit == nil; i-- {
			name := s.layerOrder[i]
			if !s.layerClickableLocked(name) || !s.layerVisibleLocked(name) {
				continue
			}
			if f := s.renderer.HitTest(s.layers[name], tileKey, pt); f != nil {
				hit = f
				hitLayer = name
			}
		}
	}

	var redraw []string
	current := s.registry.HoveredIDs()
	sameTarget := len(current) == 1 && hit != nil && current[0] == hit.ID

	if !sameTarget {
		for _, id := range current {
			if f := s.registry.Get(id); f != nil {
				redraw = append(redraw, f.TileKeys()...)
			}
			s.registry.MarkHovered(id, false)
		}
		if hit != nil {
			s.registry.MarkHovered(hit.ID, true)
			redraw = append(redraw, hit.TileKeys()...)
		}
	}

	event := ClickEvent{
		Lat:        ev.Lat,
		Lng:        ev.Lng,
		PixelX:     ev.X,
		PixelY:     ev.Y,
		TileKey:    tileKey,
		TilePointX: pt[0],
		TilePointY: pt[1],
	}
	if hit != nil {
		event.FeatureID = hit.ID
		event.Feature = s.featureInfoLocked(hit, hitLayer)
		event.IsSelected = hit.Selected
	}
	onHover := s.opts.OnMouseHover
	s.mu.Unlock()

	for _, key := range redraw {
		s.scheduler.Enqueue(key)
	}
	if onHover != nil && (hit != nil || len(current) > 0) {
		onHover(event)
	}
}

// handleSinkClick routes clicks on replacement overlays through the same
// selection policy as tile features.
func (s *Source) handleSinkClick(id string, ev PointerEvent) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	f := s.registry.Get(id)
	if f == nil {
		s.mu.Unlock()
		return
	}
	changed, selected, after := s.applyClickSelectionLocked(f)

	if cb := s.opts.OnClick; cb != nil {
		event := ClickEvent{
			FeatureID:        id,
			Feature:          s.featureInfoLocked(f, ""),
			Lat:              ev.Lat,
			Lng:              ev.Lng,
			PixelX:           ev.X,
			PixelY:           ev.Y,
			SelectionChanged: changed,
			IsSelected:       selected,
		}
		after = append(after, func() { cb(event) })
	}
	s.mu.Unlock()

	for _, fn := range after {
		fn()
	}
}

// handleSinkHover mirrors hover state for replacement overlays.
func (s *Source) handleSinkHover(id string, ev PointerEvent) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	var redraw []string
	for _, old := range s.registry.HoveredIDs() {
		if old == id {
			s.mu.Unlock()
			return
		}
		if f := s.registry.Get(old); f != nil {
			redraw = append(redraw, f.TileKeys()...)
		}
		s.registry.MarkHovered(old, false)
	}
	s.registry.MarkHovered(id, true)
	if f := s.registry.Get(id); f != nil {
		redraw = append(redraw, f.TileKeys()...)
	}
	s.mu.Unlock()

	for _, key := range redraw {
		s.scheduler.Enqueue(key)
	}
}

// HitTestAt runs the click hit test at a geographic position without
// mutating selection, for debugging and tests.
func (s *Source) HitTestAt(lat, lng float64) *FeatureInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil
	}

	zoom := s.manager.Zoom()
	key, pt := s.tilePointAt(lat, lng, zoom)
	tileKey := key.String()
	if tctx := s.manager.Visible(tileKey); tctx == nil || tctx.Vector == nil {
		return nil
	}

	for i := len(s.layerOrder) - 1; i >= 0; i-- {
		name := s.layerOrder[i]
		if !s.layerClickableLocked(name) || !s.layerVisibleLocked(name) {
			continue
		}
		if f := s.renderer.HitTest(s.layers[name], tileKey, pt); f != nil {
			return s.featureInfoLocked(f, name)
		}
	}
	return nil
}
