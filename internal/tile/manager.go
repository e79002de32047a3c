// internal/tile/manager.go - Tile lifecycle management
package tile

import (
	"context"
	"log/slog"
	"sync"

	"github.com/valpere/mvt_overlay/internal/manifest"
	"github.com/valpere/mvt_overlay/pkg/mvt"
)

const (
	// DefaultVisibleCap bounds the visible-tile FIFO.
	DefaultVisibleCap = 50
	// DefaultDrawnCap bounds the drawn-tile FIFO.
	DefaultDrawnCap = 100
	// DefaultTileSize is the canvas pixel size per tile.
	DefaultTileSize = 256
)

// ManagerConfig configures the tile lifecycle manager.
type ManagerConfig struct {
	TileSize      int
	SourceMaxZoom int
	URLTemplate   string
	Headers       map[string]string

	// Cache keeps layers and drawn tiles across zoom changes.
	Cache bool

	VisibleCap int
	DrawnCap   int
}

func (c *ManagerConfig) applyDefaults() {
	if c.TileSize <= 0 {
		c.TileSize = DefaultTileSize
	}
	if c.VisibleCap <= 0 {
		c.VisibleCap = DefaultVisibleCap
	}
	if c.DrawnCap <= 0 {
		c.DrawnCap = DefaultDrawnCap
	}
}

// Manager owns the visible and drawn tile sets, dispatches fetches, and
// parses decoded tiles. Responses arriving after a zoom change are
// dropped before they can touch a superseded canvas.
type Manager struct {
	mu sync.Mutex

	cfg     ManagerConfig
	fetcher Fetcher
	decoder *mvt.Decoder
	oracle  *manifest.Oracle
	logger  *slog.Logger

	visible *fifoCache
	drawn   *fifoCache

	currentZoom int
	inflight    int
	waiters     []chan struct{}

	rootCtx context.Context
	cancel  context.CancelFunc

	// onDecoded fires off-lock once a tile's vector data is parsed.
	onDecoded func(*Context)
	// onDebug fires off-lock for tiles that end debug-only.
	onDebug func(*Context)
	// onEvictVisible fires when the FIFO expels a visible tile.
	onEvictVisible func(key string, ctx *Context)

	disposed bool
}

// NewManager creates a tile lifecycle manager.
func NewManager(cfg ManagerConfig, fetcher Fetcher, oracle *manifest.Oracle, logger *slog.Logger) *Manager {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	rootCtx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		cfg:     cfg,
		fetcher: fetcher,
		decoder: mvt.NewDecoder(),
		oracle:  oracle,
		logger:  logger.With("component", "tiles"),
		rootCtx: rootCtx,
		cancel:  cancel,
	}
	m.visible = newFIFOCache(cfg.VisibleCap)
	m.drawn = newFIFOCache(cfg.DrawnCap)
	return m
}

// SetCallbacks installs the decode and debug handlers. Must be called
// before the first GetTile.
func (m *Manager) SetCallbacks(onDecoded, onDebug func(*Context), onEvictVisible func(string, *Context)) {
	m.onDecoded = onDecoded
	m.onDebug = onDebug
	m.onEvictVisible = onEvictVisible
}

// GetTile synchronously creates the tile context and canvas, enqueues the
// fetch, and returns. The async decode draws into the same canvas later.
func (m *Manager) GetTile(key Key, zoom int) *Context {
	m.mu.Lock()

	if m.disposed {
		m.mu.Unlock()
		return NewContext(key, zoom, m.cfg.TileSize)
	}

	m.currentZoom = zoom

	ctx := NewContext(key, zoom, m.cfg.TileSize)
	if m.cfg.SourceMaxZoom > 0 && zoom > m.cfg.SourceMaxZoom {
		delta := zoom - m.cfg.SourceMaxZoom
		parent := key.Parent(delta)
		ctx.ParentKey = &parent
		ctx.ZoomDelta = delta
	}

	evicted := m.visible.Put(key.String(), ctx)

	fetchKey := ctx.FetchKey()
	if m.oracle != nil && !m.oracle.Allows(fetchKey.Z, fetchKey.X, fetchKey.Y) {
		ctx.DebugOnly = true
		ctx.Loaded = true
		m.mu.Unlock()
		m.reportEvicted(evicted)
		if m.onDebug != nil {
			m.onDebug(ctx)
		}
		return ctx
	}

	m.inflight++
	m.mu.Unlock()
	m.reportEvicted(evicted)

	go m.fetch(ctx)
	return ctx
}

// reportEvicted forwards FIFO evictions to the owner outside the lock.
func (m *Manager) reportEvicted(evicted []*Context) {
	if m.onEvictVisible == nil {
		return
	}
	for _, old := range evicted {
		m.onEvictVisible(old.Key.String(), old)
	}
}

// fetch runs on its own goroutine and funnels the result into deliver.
func (m *Manager) fetch(ctx *Context) {
	fetchKey := ctx.FetchKey()
	m.mu.Lock()
	template := m.cfg.URLTemplate
	headers := m.cfg.Headers
	m.mu.Unlock()
	request := &Request{
		Key:     fetchKey,
		URL:     BuildTileURL(template, fetchKey),
		Headers: headers,
	}

	response, err := m.fetcher.Fetch(m.rootCtx, request)
	if err != nil && response == nil {
		response = &Response{Request: request, Error: err}
	}
	m.deliver(ctx, response)
}

// deliver applies a fetch result, dropping it when the map's zoom has
// moved on since the request was issued.
func (m *Manager) deliver(ctx *Context, response *Response) {
	m.mu.Lock()
	m.inflight--

	if m.disposed {
		m.notifyWaitersLocked()
		m.mu.Unlock()
		return
	}

	if ctx.Zoom != m.currentZoom {
		ctx.Loaded = true
		m.notifyWaitersLocked()
		m.mu.Unlock()
		return
	}

	if response.Error != nil {
		ctx.DebugOnly = true
		ctx.Loaded = true
		m.notifyWaitersLocked()
		m.mu.Unlock()
		m.logger.Debug("tile fetch failed", "tile", ctx.Key.String(), "error", response.Error)
		if m.onDebug != nil {
			m.onDebug(ctx)
		}
		return
	}
	m.mu.Unlock()

	fetchKey := ctx.FetchKey()
	decoded, err := m.decoder.Decode(response.Data, fetchKey.Z, fetchKey.X, fetchKey.Y)

	m.mu.Lock()
	if m.disposed || ctx.Zoom != m.currentZoom {
		ctx.Loaded = true
		m.notifyWaitersLocked()
		m.mu.Unlock()
		return
	}

	if err != nil {
		ctx.DebugOnly = true
		ctx.Loaded = true
		m.notifyWaitersLocked()
		m.mu.Unlock()
		m.logger.Warn("tile decode failed", "tile", ctx.Key.String(), "error", err)
		if m.onDebug != nil {
			m.onDebug(ctx)
		}
		return
	}

	ctx.Vector = decoded
	ctx.Loaded = true
	m.notifyWaitersLocked()
	m.mu.Unlock()

	if m.onDecoded != nil {
		m.onDecoded(ctx)
	}
}

// SetZoom applies a zoom change: the visible set resets and in-flight
// responses for the old zoom will be dropped on arrival.
func (m *Manager) SetZoom(zoom int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if zoom == m.currentZoom {
		return false
	}
	m.currentZoom = zoom
	m.visible.Clear()
	if !m.cfg.Cache {
		m.drawn.Clear()
	}
	return true
}

// Zoom returns the current map zoom.
func (m *Manager) Zoom() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentZoom
}

// Visible returns the visible tile context for a key, nil when absent.
func (m *Manager) Visible(key string) *Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible.Get(key)
}

// VisibleKeys returns the visible tile keys, oldest first.
func (m *Manager) VisibleKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible.Keys()
}

// VisibleCount returns the number of visible tiles.
func (m *Manager) VisibleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible.Len()
}

// DrawnCount returns the number of drawn-tile markers.
func (m *Manager) DrawnCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drawn.Len()
}

// Release drops a tile from the visible set on a host release signal.
func (m *Manager) Release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visible.Delete(key)
}

// MarkDrawn records that a tile's features have been painted.
func (m *Manager) MarkDrawn(ctx *Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctx.Drawn = true
	_ = m.drawn.Put(ctx.Key.String(), ctx)
}

// DeleteDrawn invalidates a tile's drawn marker before a repaint. When
// cross-zoom caching is disabled this is a silent no-op; the scheduler
// calls it unconditionally and both paths are correct.
func (m *Manager) DeleteDrawn(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.cfg.Cache {
		return
	}
	if ctx := m.drawn.Get(key); ctx != nil {
		ctx.Drawn = false
	}
	m.drawn.Delete(key)
}

// SetURLTemplate swaps the tile URL template; already-fetched tiles are
// unaffected, new fetches use the new template.
func (m *Manager) SetURLTemplate(template string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.URLTemplate = template
}

// TileSize returns the configured canvas size.
func (m *Manager) TileSize() int {
	return m.cfg.TileSize
}

// Loaded returns a channel closed once every currently in-flight tile
// has settled.
func (m *Manager) Loaded() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan struct{})
	if m.inflight == 0 {
		close(ch)
		return ch
	}
	m.waiters = append(m.waiters, ch)
	return ch
}

func (m *Manager) notifyWaitersLocked() {
	if m.inflight != 0 {
		return
	}
	for _, ch := range m.waiters {
		close(ch)
	}
	m.waiters = nil
}

// Dispose cancels outstanding fetches and clears all caches.
func (m *Manager) Dispose() {
	m.mu.Lock()
	m.disposed = true
	m.visible.Clear()
	m.drawn.Clear()
	for _, ch := range m.waiters {
		close(ch)
	}
	m.waiters = nil
	m.mu.Unlock()
	m.cancel()
}
