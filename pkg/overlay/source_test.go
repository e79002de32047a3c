// pkg/overlay/source_test.go - Facade tests over a fake host and fetcher
package overlay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	encmvt "github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"

	"github.com/valpere/mvt_overlay/internal/tile"
)

// fakeSink records replacement overlay traffic.
type fakeSink struct {
	mu      sync.Mutex
	set     map[string]*geojson.Feature
	removed []string

	clickFns []func(id string, ev PointerEvent)
	hoverFns []func(id string, ev PointerEvent)
}

func newFakeSink() *fakeSink {
	return &fakeSink{set: make(map[string]*geojson.Feature)}
}

func (s *fakeSink) Set(id string, f *geojson.Feature) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set[id] = f
}

func (s *fakeSink) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.set, id)
	s.removed = append(s.removed, id)
}

func (s *fakeSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set = make(map[string]*geojson.Feature)
}

func (s *fakeSink) OnClick(fn func(id string, ev PointerEvent)) func() {
	s.clickFns = append(s.clickFns, fn)
	return func() {}
}

func (s *fakeSink) OnHover(fn func(id string, ev PointerEvent)) func() {
	s.hoverFns = append(s.hoverFns, fn)
	return func() {}
}

func (s *fakeSink) overlay(id string) *geojson.Feature {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set[id]
}

// fakeHost drives the overlay the way a slippy map would.
type fakeHost struct {
	zoom     int
	sink     *fakeSink
	zoomFns  []func(int)
	clickFns []func(PointerEvent)
	moveFns  []func(PointerEvent)
	removed  int
}

func newFakeHost(zoom int) *fakeHost {
	return &fakeHost{zoom: zoom, sink: newFakeSink()}
}

func (h *fakeHost) Zoom() int { return h.zoom }

func (h *fakeHost) RegisterOverlay(p TileProvider) func() {
	return func() { h.removed++ }
}

func (h *fakeHost) OnZoomChange(fn func(int)) func() {
	h.zoomFns = append(h.zoomFns, fn)
	return func() { h.removed++ }
}

func (h *fakeHost) OnClick(fn func(PointerEvent)) func() {
	h.clickFns = append(h.clickFns, fn)
	return func() { h.removed++ }
}

func (h *fakeHost) OnMouseMove(fn func(PointerEvent)) func() {
	h.moveFns = append(h.moveFns, fn)
	return func() { h.removed++ }
}

func (h *fakeHost) GeoJSONSink() GeoJSONSink { return h.sink }

func (h *fakeHost) setZoom(z int) {
	h.zoom = z
	for _, fn := range h.zoomFns {
		fn(z)
	}
}

func (h *fakeHost) click(ev PointerEvent) {
	for _, fn := range h.clickFns {
		fn(ev)
	}
}

// memFetcher serves pre-built tiles from memory.
type memFetcher struct {
	mu    sync.Mutex
	tiles map[string][]byte
}

func newMemFetcher() *memFetcher {
	return &memFetcher{tiles: make(map[string][]byte)}
}

func (m *memFetcher) put(key tile.Key, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiles[key.String()] = data
}

func (m *memFetcher) Fetch(ctx context.Context, request *tile.Request) (*tile.Response, error) {
	m.mu.Lock()
	data, ok := m.tiles[request.Key.String()]
	m.mu.Unlock()
	if !ok {
		resp := &tile.Response{Request: request, StatusCode: 404}
		resp.Error = context.Canceled
		return resp, resp.Error
	}
	return &tile.Response{Request: request, Data: data, StatusCode: 200}, nil
}

// buildTile marshals a one-layer tile with the given features.
func buildTile(t *testing.T, layerName string, features ...*geojson.Feature) []byte {
	t.Helper()
	layer := &encmvt.Layer{
		Name:     layerName,
		Version:  2,
		Extent:   4096,
		Features: features,
	}
	data, err := encmvt.Marshal(encmvt.Layers{layer})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func featureWithID(geom orb.Geometry, id string) *geojson.Feature {
	f := geojson.NewFeature(geom)
	f.Properties = geojson.Properties{"id": id}
	return f
}

func fullTilePolygon(id string) *geojson.Feature {
	return featureWithID(orb.Polygon{{{0, 0}, {4096, 0}, {4096, 4096}, {0, 4096}, {0, 0}}}, id)
}

func waitTiles(t *testing.T, s *Source) {
	t.Helper()
	select {
	case <-s.TileLoaded():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tiles")
	}
}

func TestGetTileReturnsCanvasSynchronously(t *testing.T) {
	host := newFakeHost(9)
	fetcher := newMemFetcher()
	fetcher.put(tile.Key{Z: 9, X: 1, Y: 1}, buildTile(t, "parcels", fullTilePolygon("A")))

	s := NewSource(host, Options{URL: "http://t.test", Fetcher: fetcher})
	defer s.Dispose()

	c := s.GetTile(1, 1, 9)
	if c == nil || c.Size() != 256 {
		t.Fatal("Expected a 256px canvas synchronously")
	}
	waitTiles(t, s)

	if len(s.VisibleTileKeys()) != 1 {
		t.Errorf("Expected one visible tile, got %v", s.VisibleTileKeys())
	}
}

func TestSelectionRoundTrip(t *testing.T) {
	host := newFakeHost(9)
	fetcher := newMemFetcher()
	fetcher.put(tile.Key{Z: 9, X: 1, Y: 1}, buildTile(t, "parcels", fullTilePolygon("A"), fullTilePolygon("B")))

	s := NewSource(host, Options{URL: "http://t.test", Fetcher: fetcher})
	defer s.Dispose()
	s.GetTile(1, 1, 9)
	waitTiles(t, s)

	s.SetSelectedFeatures([]string{"A", "B"})
	ids := s.GetSelectedFeatureIds()
	if len(ids) != 2 {
		t.Fatalf("Expected 2 selected IDs, got %v", ids)
	}
	if !s.IsFeatureSelected("A") || !s.IsFeatureSelected("B") {
		t.Error("Selection probes must reflect the set")
	}
	if got := s.GetSelectedFeaturesInTile("9:1:1"); len(got) != 2 {
		t.Errorf("Expected both features in tile, got %v", got)
	}

	s.DeselectAllFeatures()
	if len(s.GetSelectedFeatureIds()) != 0 {
		t.Error("DeselectAllFeatures must clear the selection")
	}
	for _, info := range s.GetSelectedFeatures() {
		t.Errorf("Unexpected selected feature %v", info)
	}
}

func TestSelectDeselectLeavesInitialState(t *testing.T) {
	host := newFakeHost(9)
	fetcher := newMemFetcher()
	fetcher.put(tile.Key{Z: 9, X: 1, Y: 1}, buildTile(t, "parcels", fullTilePolygon("A")))

	s := NewSource(host, Options{URL: "http://t.test", Fetcher: fetcher})
	defer s.Dispose()
	s.GetTile(1, 1, 9)
	waitTiles(t, s)

	s.SelectFeature("A")
	s.DeselectFeature("A")

	if s.IsFeatureSelected("A") || s.IsFeatureReplaced("A") {
		t.Error("Select followed by deselect must restore the initial state")
	}
	if len(s.GetSelectedFeatureIds()) != 0 {
		t.Error("Selection set must be empty")
	}
}

func TestSelectionSurvivesZoomChange(t *testing.T) {
	host := newFakeHost(9)
	fetcher := newMemFetcher()
	fetcher.put(tile.Key{Z: 9, X: 260, Y: 170}, buildTile(t, "parcels", fullTilePolygon("A")))
	fetcher.put(tile.Key{Z: 10, X: 520, Y: 340}, buildTile(t, "parcels", fullTilePolygon("A")))

	s := NewSource(host, Options{URL: "http://t.test", Fetcher: fetcher})
	defer s.Dispose()

	s.GetTile(260, 170, 9)
	waitTiles(t, s)
	s.SelectFeature("A")
	if !s.IsFeatureSelected("A") {
		t.Fatal("Precondition: A selected at z9")
	}

	// Zoom: layers and registry rebuild, selection survives (S2).
	host.setZoom(10)
	time.Sleep(2 * selectionReapplyDelay)

	if !s.IsFeatureSelected("A") {
		t.Fatal("Selection must survive the zoom change")
	}

	s.GetTile(520, 340, 10)
	waitTiles(t, s)

	s.mu.Lock()
	f := s.registry.Get("A")
	s.mu.Unlock()
	if f == nil || !f.Selected {
		t.Error("Feature rematerialized after zoom must carry the selected flag")
	}
}

func TestClickSelectsFeature(t *testing.T) {
	host := newFakeHost(1)
	fetcher := newMemFetcher()
	// Tile 1:1:0 covers lng 0..180, lat 0..85.
	fetcher.put(tile.Key{Z: 1, X: 1, Y: 0}, buildTile(t, "parcels", fullTilePolygon("A")))

	var events []ClickEvent
	var mu sync.Mutex
	s := NewSource(host, Options{
		URL:     "http://t.test",
		Fetcher: fetcher,
		OnClick: func(ev ClickEvent) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		},
	})
	defer s.Dispose()

	s.GetTile(1, 0, 1)
	waitTiles(t, s)

	host.click(PointerEvent{Lat: 40, Lng: 90})

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 {
		t.Fatalf("Expected one click event, got %d", len(events))
	}
	ev := events[0]
	if ev.FeatureID != "A" || !ev.IsSelected || !ev.SelectionChanged {
		t.Errorf("Expected selecting click on A, got %+v", ev)
	}
	if !s.IsFeatureSelected("A") {
		t.Error("Clicked feature must be selected")
	}
}

func TestClickOutsideVisibleTileStillDeliversCallback(t *testing.T) {
	host := newFakeHost(1)
	fetcher := newMemFetcher()

	var events []ClickEvent
	var mu sync.Mutex
	s := NewSource(host, Options{
		URL:     "http://t.test",
		Fetcher: fetcher,
		OnClick: func(ev ClickEvent) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		},
	})
	defer s.Dispose()

	host.click(PointerEvent{Lat: 40, Lng: 90})

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 || events[0].FeatureID != "" {
		t.Fatalf("Expected one featureless callback, got %v", events)
	}
}

func TestToggleSelection(t *testing.T) {
	host := newFakeHost(1)
	fetcher := newMemFetcher()
	fetcher.put(tile.Key{Z: 1, X: 1, Y: 0}, buildTile(t, "parcels", fullTilePolygon("A")))

	s := NewSource(host, Options{
		URL:             "http://t.test",
		Fetcher:         fetcher,
		ToggleSelection: true,
	})
	defer s.Dispose()
	s.GetTile(1, 0, 1)
	waitTiles(t, s)

	host.click(PointerEvent{Lat: 40, Lng: 90})
	if !s.IsFeatureSelected("A") {
		t.Fatal("First click must select")
	}
	host.click(PointerEvent{Lat: 40, Lng: 90})
	if s.IsFeatureSelected("A") {
		t.Error("Second click must toggle the selection off")
	}
}

func TestSetSelectedOnClickFalse(t *testing.T) {
	host := newFakeHost(1)
	fetcher := newMemFetcher()
	fetcher.put(tile.Key{Z: 1, X: 1, Y: 0}, buildTile(t, "parcels", fullTilePolygon("A")))

	off := false
	var events int
	var mu sync.Mutex
	s := NewSource(host, Options{
		URL:                "http://t.test",
		Fetcher:            fetcher,
		SetSelectedOnClick: &off,
		OnClick: func(ev ClickEvent) {
			mu.Lock()
			events++
			mu.Unlock()
		},
	})
	defer s.Dispose()
	s.GetTile(1, 0, 1)
	waitTiles(t, s)

	host.click(PointerEvent{Lat: 40, Lng: 90})

	mu.Lock()
	defer mu.Unlock()
	if events != 1 {
		t.Fatalf("Expected callback despite suppressed selection, got %d", events)
	}
	if s.IsFeatureSelected("A") {
		t.Error("Selection update must be skipped")
	}
}

func TestHoverSingleFeatureInvariant(t *testing.T) {
	host := newFakeHost(1)
	fetcher := newMemFetcher()
	fetcher.put(tile.Key{Z: 1, X: 1, Y: 0}, buildTile(t, "parcels", fullTilePolygon("A")))

	s := NewSource(host, Options{URL: "http://t.test", Fetcher: fetcher})
	defer s.Dispose()
	s.GetTile(1, 0, 1)
	waitTiles(t, s)

	for _, fn := range host.moveFns {
		fn(PointerEvent{Lat: 40, Lng: 90})
	}
	if !s.IsFeatureHovered("A") {
		t.Fatal("Expected hover on A")
	}

	// Pointer leaves all features: hover clears.
	for _, fn := range host.moveFns {
		fn(PointerEvent{Lat: -40, Lng: 90})
	}
	if s.IsFeatureHovered("A") {
		t.Error("Hover must clear when the pointer leaves the feature")
	}

	s.ClearAllHoveredFeatures()
	if s.IsFeatureHovered("A") {
		t.Error("ClearAllHoveredFeatures must clear hover state")
	}
}

func TestReplacementMergeFallback(t *testing.T) {
	host := newFakeHost(9)
	fetcher := newMemFetcher()
	fetcher.put(tile.Key{Z: 9, X: 260, Y: 170}, buildTile(t, "parcels", fullTilePolygon("A")))

	s := NewSource(host, Options{
		URL:     "http://t.test",
		Fetcher: fetcher,
		GetReplacementFeature: func(ctx context.Context, id string) (*geojson.Feature, error) {
			return nil, nil // fall back to the merger
		},
	})
	defer s.Dispose()
	s.GetTile(260, 170, 9)
	waitTiles(t, s)

	s.SelectFeature("A")
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.IsFeatureReplaced("A") {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !s.IsFeatureReplaced("A") {
		t.Fatal("Expected merger-built replacement overlay")
	}

	overlay := host.sink.overlay("A")
	if overlay == nil {
		t.Fatal("Expected overlay in the sink")
	}
	if _, ok := overlay.Geometry.(orb.Polygon); !ok {
		t.Errorf("Expected merged Polygon geometry, got %T", overlay.Geometry)
	}
	if overlay.Properties["selected"] != true {
		t.Error("Replacement must carry the selected style marker")
	}

	s.DeselectFeature("A")
	if s.IsFeatureReplaced("A") {
		t.Error("Deselect must remove the replacement overlay")
	}
	if host.sink.overlay("A") != nil {
		t.Error("Overlay must be removed from the sink")
	}
}

func TestReplacementCancelledOnDeselect(t *testing.T) {
	host := newFakeHost(9)
	fetcher := newMemFetcher()
	fetcher.put(tile.Key{Z: 9, X: 260, Y: 170}, buildTile(t, "parcels", fullTilePolygon("C")))

	var selections []bool
	var mu sync.Mutex
	s := NewSource(host, Options{
		URL:     "http://t.test",
		Fetcher: fetcher,
		GetReplacementFeature: func(ctx context.Context, id string) (*geojson.Feature, error) {
			select {
			case <-time.After(100 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return geojson.NewFeature(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}), nil
		},
		FeatureSelectionCallback: func(id string, f *FeatureInfo, selected bool) {
			mu.Lock()
			selections = append(selections, selected)
			mu.Unlock()
		},
	})
	defer s.Dispose()
	s.GetTile(260, 170, 9)
	waitTiles(t, s)

	// S4: select, deselect at t=50ms, observe at t=150ms.
	s.SelectFeature("C")
	time.Sleep(50 * time.Millisecond)
	s.DeselectFeature("C")
	time.Sleep(100 * time.Millisecond)

	if s.IsFeatureReplaced("C") {
		t.Error("Cancelled replacement must not install an overlay")
	}
	if host.sink.overlay("C") != nil {
		t.Error("No overlay may exist after cancellation")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(selections) != 2 || selections[len(selections)-1] != false {
		t.Errorf("Expected select/deselect callback pair ending false, got %v", selections)
	}
}

func TestSetStyleIdempotentAndPreservesSelection(t *testing.T) {
	host := newFakeHost(9)
	fetcher := newMemFetcher()
	fetcher.put(tile.Key{Z: 9, X: 1, Y: 1}, buildTile(t, "parcels", fullTilePolygon("A")))

	s := NewSource(host, Options{URL: "http://t.test", Fetcher: fetcher})
	defer s.Dispose()
	s.GetTile(1, 1, 9)
	waitTiles(t, s)
	s.SelectFeature("A")

	st := StaticStyle(StyleProps{Fill: String("#00ff00")})
	s.SetStyle(st, false)
	s.SetStyle(st, false)

	if !s.IsFeatureSelected("A") {
		t.Error("SetStyle must preserve the selection")
	}
}

func TestVisibleAndClickableLayerRestrictions(t *testing.T) {
	host := newFakeHost(1)
	fetcher := newMemFetcher()
	fetcher.put(tile.Key{Z: 1, X: 1, Y: 0}, buildTile(t, "parcels", fullTilePolygon("A")))

	s := NewSource(host, Options{URL: "http://t.test", Fetcher: fetcher})
	defer s.Dispose()
	s.GetTile(1, 0, 1)
	waitTiles(t, s)

	s.SetClickableLayers([]string{"other"})
	if hit := s.HitTestAt(40, 90); hit != nil {
		t.Error("Non-clickable layer must not hit")
	}
	s.SetClickableLayers(nil)
	if hit := s.HitTestAt(40, 90); hit == nil || hit.ID != "A" {
		t.Error("All layers clickable again must hit A")
	}

	s.SetVisibleLayers([]string{"other"}, false)
	if hit := s.HitTestAt(40, 90); hit != nil {
		t.Error("Hidden layer must not hit")
	}
}

func TestDisposeClearsEverything(t *testing.T) {
	host := newFakeHost(9)
	fetcher := newMemFetcher()
	fetcher.put(tile.Key{Z: 9, X: 1, Y: 1}, buildTile(t, "parcels", fullTilePolygon("A")))

	s := NewSource(host, Options{URL: "http://t.test", Fetcher: fetcher})
	s.GetTile(1, 1, 9)
	waitTiles(t, s)
	s.SelectFeature("A")

	s.Dispose()

	if len(s.GetSelectedFeatureIds()) != 0 {
		t.Error("Post-dispose reads must return empty snapshots")
	}
	if host.removed == 0 {
		t.Error("Dispose must remove host listeners")
	}
	// Idempotent.
	s.Dispose()

	// Post-dispose mutations are no-ops, not panics.
	s.SelectFeature("A")
	s.SetStyle(StaticStyle(StyleProps{}), true)
	if s.IsFeatureSelected("A") {
		t.Error("Post-dispose selection must not stick")
	}
}

func TestMultipleSelectionImplicitSwitch(t *testing.T) {
	host := newFakeHost(9)
	fetcher := newMemFetcher()
	fetcher.put(tile.Key{Z: 9, X: 1, Y: 1}, buildTile(t, "parcels", fullTilePolygon("A"), fullTilePolygon("B")))

	s := NewSource(host, Options{URL: "http://t.test", Fetcher: fetcher})
	defer s.Dispose()
	s.GetTile(1, 1, 9)
	waitTiles(t, s)

	// Passing more than one ID flips multiple-selection mode on; a
	// later single select must no longer clear the others.
	s.SetSelectedFeatures([]string{"A", "B"})
	s.SelectFeature("A")
	if len(s.GetSelectedFeatureIds()) != 2 {
		t.Errorf("Multiple-selection mode must keep both, got %v", s.GetSelectedFeatureIds())
	}
}
