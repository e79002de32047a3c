// pkg/overlay/source.go - Source facade wiring the overlay engine
package overlay

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/valpere/mvt_overlay/internal/feature"
	"github.com/valpere/mvt_overlay/internal/manifest"
	"github.com/valpere/mvt_overlay/internal/merge"
	"github.com/valpere/mvt_overlay/internal/render"
	"github.com/valpere/mvt_overlay/internal/style"
	"github.com/valpere/mvt_overlay/internal/tile"
	"github.com/valpere/mvt_overlay/pkg/colorutil"
)

// selectionReapplyDelay defers reapplying the selected ID set after a
// zoom change so newly materialized features adopt the selected style.
const selectionReapplyDelay = 50 * time.Millisecond

// replacementHandle tracks one in-flight replacement lookup.
type replacementHandle struct {
	cancel context.CancelFunc
	gen    int
}

// Source implements the host tile-provider contract and exposes the
// public mutation surface. All engine state is guarded by one mutex;
// async completions re-enter through methods that take it, giving the
// single-threaded semantics of a UI event loop.
type Source struct {
	mu sync.Mutex

	opts   Options
	logger *slog.Logger

	host Host
	sink GeoJSONSink

	colors    *colorutil.Parser
	resolver  *style.Resolver
	registry  *feature.Registry
	oracle    *manifest.Oracle
	manager   *tile.Manager
	renderer  *render.Renderer
	merger    *merge.Merger
	scheduler *render.Scheduler

	layers     map[string]*render.Layer
	layerOrder []string

	visibleLayers map[string]struct{} // nil draws all
	clickable     map[string]struct{} // nil tests all

	replacements   map[string]*replacementHandle
	replacementGen map[string]int
	replaced       map[string]struct{}

	multipleSelection        bool
	toggleSelection          bool
	setSelectedOnClick       bool
	limitToFirstVisibleLayer bool
	hoverDelay               time.Duration

	hoverTimer   *time.Timer
	hoverSeq     int
	reapplyTimer *time.Timer

	removeListeners []func()

	rootCtx context.Context
	cancel  context.CancelFunc

	disposed bool
}

var _ TileProvider = (*Source)(nil)

// NewSource assembles the overlay engine, registers it on the host's
// overlay stack, and installs host listeners.
func NewSource(host Host, opts Options) *Source {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "overlay")

	colors := opts.Colors
	if colors == nil {
		colors = colorutil.NewParser()
	}

	rootCtx, cancel := context.WithCancel(context.Background())

	s := &Source{
		opts:     opts,
		logger:   logger,
		host:     host,
		colors:   colors,
		resolver: style.NewResolver(colors),
		registry: feature.NewRegistry(),
		oracle:   manifest.NewOracle(logger),
		merger:   merge.NewMerger(logger),

		layers:         make(map[string]*render.Layer),
		replacements:   make(map[string]*replacementHandle),
		replacementGen: make(map[string]int),
		replaced:       make(map[string]struct{}),

		multipleSelection:        opts.MultipleSelection,
		toggleSelection:          opts.ToggleSelection,
		setSelectedOnClick:       opts.setSelectedOnClick(),
		limitToFirstVisibleLayer: opts.LimitToFirstVisibleLayer,
		hoverDelay:               opts.HoverDelay,

		rootCtx: rootCtx,
		cancel:  cancel,
	}

	s.visibleLayers = nameSet(opts.VisibleLayers)
	s.clickable = nameSet(opts.ClickableLayers)

	if opts.TileAvailabilityManifest != nil {
		s.oracle.SetStatic(opts.TileAvailabilityManifest)
	} else if opts.TileAvailabilityProducer != nil {
		s.oracle.SetProducer(rootCtx, opts.TileAvailabilityProducer)
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = tile.NewHTTPFetcher(tile.FetcherConfig{
			Timeout:           opts.FetchTimeout,
			Headers:           opts.XHRHeaders,
			RequestsPerSecond: opts.FetchRateLimit,
		})
	}

	s.manager = tile.NewManager(tile.ManagerConfig{
		TileSize:      opts.TileSize,
		SourceMaxZoom: opts.SourceMaxZoom,
		URLTemplate:   opts.URL,
		Headers:       opts.XHRHeaders,
		Cache:         opts.Cache,
		VisibleCap:    opts.VisibleCap,
		DrawnCap:      opts.DrawnCap,
	}, fetcher, s.oracle, logger)

	s.renderer = render.NewRenderer(s.registry, s.resolver, logger)
	s.renderer.SetDebug(opts.Debug)
	if opts.CustomDraw != nil {
		s.renderer.SetCustomDraw(opts.CustomDraw)
	}

	s.scheduler = render.NewScheduler(render.DefaultFrameInterval, s.manager.VisibleKeys, s.flushRedraws)
	s.manager.SetCallbacks(s.handleDecoded, s.handleDebugTile, s.handleEvictedTile)

	for _, id := range opts.SelectedFeatures {
		s.registry.MarkSelected(id, true)
	}
	if len(opts.SelectedFeatures) > 1 {
		s.multipleSelection = true
	}

	if host != nil {
		s.sink = host.GeoJSONSink()
		s.removeListeners = append(s.removeListeners,
			host.RegisterOverlay(s),
			host.OnZoomChange(s.handleZoomChange),
			host.OnClick(s.handleClick),
			host.OnMouseMove(s.handleMouseMove),
		)
		if s.sink != nil {
			s.removeListeners = append(s.removeListeners,
				s.sink.OnClick(s.handleSinkClick),
				s.sink.OnHover(s.handleSinkHover),
			)
		}
	}

	return s
}

// nameSet builds a membership set; nil input stays nil (meaning "all").
func nameSet(names []string) map[string]struct{} {
	if names == nil {
		return nil
	}
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

// GetTile implements the host tile-provider contract: it returns a
// canvas synchronously and lets the async decode draw into it later.
func (s *Source) GetTile(x, y, zoom int) *TileCanvas {
	ctx := s.manager.GetTile(tile.Key{Z: zoom, X: x, Y: y}, zoom)
	return ctx.Canvas
}

// ReleaseTile drops a tile from the visible set.
func (s *Source) ReleaseTile(x, y, zoom int) {
	s.manager.Release(tile.Key{Z: zoom, X: x, Y: y}.String())
}

// handleDecoded parses and paints a freshly decoded tile.
func (s *Source) handleDecoded(tctx *tile.Context) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.ensureLayersLocked(tctx)
	// Every layer parses so features exist when a hidden layer is made
	// visible later; the restriction gates drawing and hit tests only.
	for _, name := range s.layerOrder {
		s.renderer.ParseTileLayer(s.layers[name], tctx)
	}
	s.drawTileLocked(tctx)
	s.mu.Unlock()
}

// handleDebugTile annotates failed or unavailable tiles.
func (s *Source) handleDebugTile(tctx *tile.Context) {
	s.mu.Lock()
	if !s.disposed {
		s.renderer.DrawDebug(tctx)
	}
	s.mu.Unlock()
}

// handleEvictedTile prunes feature fragments for a FIFO-evicted tile so
// stale per-tile paths are lazily dropped rather than redrawn.
func (s *Source) handleEvictedTile(key string, _ *tile.Context) {
	s.mu.Lock()
	if !s.disposed {
		s.registry.Each(func(f *feature.Feature) {
			f.RemoveFragment(key)
		})
	}
	s.mu.Unlock()
}

// ensureLayersLocked lazily materializes layer records for every layer
// the decoded tile mentions.
func (s *Source) ensureLayersLocked(tctx *tile.Context) {
	if tctx.Vector == nil {
		return
	}
	names := make([]string, 0, len(tctx.Vector.Layers))
	for name := range tctx.Vector.Layers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, exists := s.layers[name]; exists {
			continue
		}
		l := render.NewLayer(name, s.opts.Style)
		l.Filter = s.opts.Filter
		l.IDExtractor = s.opts.GetIDForLayerFeature
		l.DefaultIDProperty = s.opts.DefaultFeatureID
		s.layers[name] = l
		s.layerOrder = append(s.layerOrder, name)
	}
}

// layerVisibleLocked applies the visible-layer restriction.
func (s *Source) layerVisibleLocked(name string) bool {
	if s.visibleLayers == nil {
		return true
	}
	_, ok := s.visibleLayers[name]
	return ok
}

// drawTileLocked paints every visible layer of a tile and the one-time
// debug annotation, then records the drawn marker.
func (s *Source) drawTileLocked(tctx *tile.Context) {
	for _, name := range s.layerOrder {
		if !s.layerVisibleLocked(name) {
			continue
		}
		s.renderer.DrawTileLayer(s.layers[name], tctx)
	}
	s.renderer.DrawDebug(tctx)
	s.manager.MarkDrawn(tctx)
}

// flushRedraws repaints the coalesced tile batch.
func (s *Source) flushRedraws(keys []string) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	for _, key := range keys {
		tctx := s.manager.Visible(key)
		if tctx == nil || tctx.Vector == nil {
			continue
		}
		s.manager.DeleteDrawn(key)
		tctx.Canvas.Clear()
		s.drawTileLocked(tctx)
	}
	s.mu.Unlock()
}

// handleZoomChange resets the visible set and, unless caching across
// zooms, rebuilds layers and registry; the previously selected IDs are
// reapplied one deferral later so new features adopt the selected style.
func (s *Source) handleZoomChange(zoom int) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	if !s.manager.SetZoom(zoom) {
		s.mu.Unlock()
		return
	}

	if !s.opts.Cache {
		s.layers = make(map[string]*render.Layer)
		s.layerOrder = nil
		s.registry.Reset(true)
	}

	if s.reapplyTimer != nil {
		s.reapplyTimer.Stop()
	}
	s.reapplyTimer = time.AfterFunc(selectionReapplyDelay, s.reapplySelection)
	s.mu.Unlock()
}

// reapplySelection pushes the surviving selected ID set onto whatever
// features have materialized since the zoom change.
func (s *Source) reapplySelection() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	for _, id := range s.registry.SelectedIDs() {
		s.registry.MarkSelected(id, true)
	}
	s.mu.Unlock()
	s.scheduler.Enqueue(render.ScopeAll)
}

// --- public mutation surface -------------------------------------------------

// SetSelectedFeatures replaces the selection set. Passing more than one
// ID switches the source into multiple-selection mode.
func (s *Source) SetSelectedFeatures(ids []string) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	if len(ids) > 1 {
		s.multipleSelection = true
	}

	want := nameSet(ids)
	if want == nil {
		want = map[string]struct{}{}
	}

	var after []func()
	for _, id := range s.registry.SelectedIDs() {
		if _, keep := want[id]; !keep {
			after = append(after, s.deselectLocked(id)...)
		}
	}
	for _, id := range ids {
		if !s.registry.IsSelected(id) {
			after = append(after, s.selectLocked(id)...)
		}
	}
	s.mu.Unlock()

	for _, fn := range after {
		fn()
	}
}

// GetSelectedFeatureIds snapshots the selected ID set.
func (s *Source) GetSelectedFeatureIds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.SelectedIDs()
}

// GetSelectedFeatures snapshots the materialized selected features.
func (s *Source) GetSelectedFeatures() []*FeatureInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	features := s.registry.SelectedFeatures()
	out := make([]*FeatureInfo, 0, len(features))
	for _, f := range features {
		out = append(out, s.featureInfoLocked(f, ""))
	}
	return out
}

// GetSelectedFeaturesInTile returns the selected IDs present in a tile.
func (s *Source) GetSelectedFeaturesInTile(tileKey string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, f := range s.registry.SelectedFeatures() {
		if f.InTile(tileKey) {
			out = append(out, f.ID)
		}
	}
	return out
}

// SelectFeature adds one feature to the selection.
func (s *Source) SelectFeature(id string) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	var after []func()
	if !s.multipleSelection {
		for _, other := range s.registry.SelectedIDs() {
			if other != id {
				after = append(after, s.deselectLocked(other)...)
			}
		}
	}
	after = append(after, s.selectLocked(id)...)
	s.mu.Unlock()
	for _, fn := range after {
		fn()
	}
}

// DeselectFeature removes one feature from the selection.
func (s *Source) DeselectFeature(id string) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	after := s.deselectLocked(id)
	s.mu.Unlock()
	for _, fn := range after {
		fn()
	}
}

// DeselectAllFeatures clears the selection and removes any replacement
// overlays.
func (s *Source) DeselectAllFeatures() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	var after []func()
	for _, id := range s.registry.SelectedIDs() {
		after = append(after, s.deselectLocked(id)...)
	}
	s.mu.Unlock()
	for _, fn := range after {
		fn()
	}
}

// ClearAllHoveredFeatures clears the hover set.
func (s *Source) ClearAllHoveredFeatures() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	var tiles []string
	for _, id := range s.registry.HoveredIDs() {
		if f := s.registry.Get(id); f != nil {
			tiles = append(tiles, f.TileKeys()...)
		}
		s.registry.MarkHovered(id, false)
	}
	s.mu.Unlock()
	for _, key := range tiles {
		s.scheduler.Enqueue(key)
	}
}

// selectLocked marks a feature selected and returns the deferred side
// effects: redraw, selection callback, and the replacement lookup.
func (s *Source) selectLocked(id string) []func() {
	if s.registry.IsSelected(id) {
		return nil
	}
	s.registry.MarkSelected(id, true)

	var after []func()
	after = append(after, s.redrawFeatureTilesLocked(id))

	if cb := s.opts.FeatureSelectionCallback; cb != nil {
		info := s.featureInfoLocked(s.registry.Get(id), "")
		after = append(after, func() { cb(id, info, true) })
	}
	after = append(after, func() { s.startReplacement(id) })
	return after
}

// deselectLocked marks a feature deselected, cancels its in-flight
// replacement, and schedules overlay removal.
func (s *Source) deselectLocked(id string) []func() {
	if !s.registry.IsSelected(id) {
		return nil
	}
	s.registry.MarkSelected(id, false)

	var after []func()
	after = append(after, s.redrawFeatureTilesLocked(id))

	if handle, ok := s.replacements[id]; ok {
		handle.cancel()
		delete(s.replacements, id)
	}
	s.replacementGen[id]++

	if _, wasReplaced := s.replaced[id]; wasReplaced {
		delete(s.replaced, id)
		if sink := s.sink; sink != nil {
			after = append(after, func() { sink.Remove(id) })
		}
	}

	if cb := s.opts.FeatureSelectionCallback; cb != nil {
		info := s.featureInfoLocked(s.registry.Get(id), "")
		after = append(after, func() { cb(id, info, false) })
	}
	return after
}

// redrawFeatureTilesLocked schedules repaints for every tile a feature
// occupies; unknown features repaint everything visible.
func (s *Source) redrawFeatureTilesLocked(id string) func() {
	f := s.registry.Get(id)
	if f == nil {
		return func() { s.scheduler.Enqueue(render.ScopeAll) }
	}
	keys := f.TileKeys()
	return func() {
		for _, key := range keys {
			s.scheduler.Enqueue(key)
		}
	}
}

// featureInfoLocked builds the application-facing snapshot of a feature.
func (s *Source) featureInfoLocked(f *feature.Feature, layerName string) *FeatureInfo {
	if f == nil {
		return nil
	}
	return &FeatureInfo{
		ID:         f.ID,
		Layer:      layerName,
		Type:       int(f.Type),
		Properties: f.Properties,
		Selected:   f.Selected,
		Hovered:    f.Hovered,
	}
}

// SetStyle replaces the base style; the selection is preserved.
func (s *Source) SetStyle(st Style, redraw bool) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.opts.Style = st
	for _, l := range s.layers {
		l.Style = st
	}
	s.registry.Each(func(f *feature.Feature) {
		f.Style = st
	})
	s.mu.Unlock()

	if redraw {
		s.scheduler.Enqueue(render.ScopeAll)
	}
}

// SetFilter replaces the per-layer feature filter. Already-registered
// features keep their state; the filter applies to subsequent parses.
func (s *Source) SetFilter(f Filter, redraw bool) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.opts.Filter = f
	for _, l := range s.layers {
		l.Filter = f
	}
	s.mu.Unlock()

	if redraw {
		s.scheduler.Enqueue(render.ScopeAll)
	}
}

// SetVisibleLayers restricts drawn layers; nil draws all.
func (s *Source) SetVisibleLayers(names []string, redraw bool) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.visibleLayers = nameSet(names)
	s.mu.Unlock()

	if redraw {
		s.scheduler.Enqueue(render.ScopeAll)
	}
}

// SetClickableLayers restricts hit-tested layers; nil tests all.
func (s *Source) SetClickableLayers(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clickable = nameSet(names)
}

// SetURL changes the tile template and resets the layer map.
func (s *Source) SetURL(url string, redraw bool) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.opts.URL = url
	s.manager.SetURLTemplate(url)
	s.layers = make(map[string]*render.Layer)
	s.layerOrder = nil
	s.registry.Reset(true)
	s.mu.Unlock()

	if redraw {
		s.scheduler.Enqueue(render.ScopeAll)
	}
}

// SetTileAvailabilityManifest replaces the oracle's manifest.
func (s *Source) SetTileAvailabilityManifest(m Manifest) {
	s.oracle.SetStatic(m)
}

// SetTileAvailabilityProducer replaces and loads a producer manifest.
func (s *Source) SetTileAvailabilityProducer(p ManifestProducer) {
	s.oracle.SetProducer(s.rootCtx, p)
}

// RefreshManifest re-pulls a producer-based manifest.
func (s *Source) RefreshManifest() {
	s.oracle.Reload(s.rootCtx)
}

// RedrawTile schedules an explicit repaint of one tile.
func (s *Source) RedrawTile(key string) {
	s.scheduler.Enqueue(key)
}

// RedrawAllTiles schedules a repaint of every visible tile.
func (s *Source) RedrawAllTiles() {
	s.scheduler.Enqueue(render.ScopeAll)
}

// TileLoaded returns a channel closed once every currently visible tile
// has completed loading.
func (s *Source) TileLoaded() <-chan struct{} {
	return s.manager.Loaded()
}

// IsFeatureSelected probes selection state.
func (s *Source) IsFeatureSelected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.IsSelected(id)
}

// IsFeatureHovered probes hover state.
func (s *Source) IsFeatureHovered(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.IsHovered(id)
}

// IsFeatureReplaced probes whether a replacement overlay is installed.
func (s *Source) IsFeatureReplaced(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.replaced[id]
	return ok
}

// VisibleTileKeys snapshots the visible tile keys.
func (s *Source) VisibleTileKeys() []string {
	return s.manager.VisibleKeys()
}

// TileAt returns the canvas and debug-only flag for a visible tile key;
// ok is false when the tile is not in the visible set.
func (s *Source) TileAt(key string) (c *TileCanvas, debugOnly, ok bool) {
	tctx := s.manager.Visible(key)
	if tctx == nil {
		return nil, false, false
	}
	return tctx.Canvas, tctx.DebugOnly, true
}

// Dispose serializes teardown: timers, pending futures, host listeners,
// overlays, caches, and the registry.
func (s *Source) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true

	if s.hoverTimer != nil {
		s.hoverTimer.Stop()
		s.hoverTimer = nil
	}
	if s.reapplyTimer != nil {
		s.reapplyTimer.Stop()
		s.reapplyTimer = nil
	}

	for _, handle := range s.replacements {
		handle.cancel()
	}
	s.replacements = make(map[string]*replacementHandle)

	var overlayIDs []string
	for id := range s.replaced {
		overlayIDs = append(overlayIDs, id)
	}
	s.replaced = make(map[string]struct{})

	removals := s.removeListeners
	s.removeListeners = nil
	sink := s.sink

	s.layers = make(map[string]*render.Layer)
	s.layerOrder = nil
	s.registry.Clear()
	s.oracle.Clear()
	s.mu.Unlock()

	s.cancel()
	s.scheduler.Stop()
	s.manager.Dispose()

	for _, remove := range removals {
		if remove != nil {
			remove()
		}
	}
	if sink != nil {
		for _, id := range overlayIDs {
			sink.Remove(id)
		}
	}
}
