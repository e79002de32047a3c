// internal/manifest/manifest.go - Tile availability oracle
package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Manifest maps zoom -> x -> closed [yStart, yEnd] intervals of tiles
// that exist on the server.
type Manifest map[int]map[int][][2]int

// Producer asynchronously yields a manifest, e.g. from a network fetch.
type Producer func(ctx context.Context) (Manifest, error)

// Oracle answers whether a tile is worth fetching. With no manifest
// loaded every tile is assumed available.
type Oracle struct {
	mu       sync.RWMutex
	manifest Manifest
	producer Producer
	loaded   bool
	logger   *slog.Logger
}

// NewOracle creates an oracle with no manifest; Allows is always true.
func NewOracle(logger *slog.Logger) *Oracle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Oracle{logger: logger.With("component", "manifest")}
}

// SetStatic installs a concrete manifest immediately.
func (o *Oracle) SetStatic(m Manifest) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.manifest = m
	o.producer = nil
	o.loaded = m != nil
}

// SetProducer installs an async producer and loads it.
func (o *Oracle) SetProducer(ctx context.Context, p Producer) {
	o.mu.Lock()
	o.producer = p
	o.manifest = nil
	o.loaded = false
	o.mu.Unlock()
	o.load(ctx)
}

// Reload re-pulls a producer-based manifest; static manifests are kept.
func (o *Oracle) Reload(ctx context.Context) {
	o.mu.RLock()
	hasProducer := o.producer != nil
	o.mu.RUnlock()
	if hasProducer {
		o.load(ctx)
	}
}

func (o *Oracle) load(ctx context.Context) {
	o.mu.RLock()
	p := o.producer
	o.mu.RUnlock()
	if p == nil {
		return
	}

	m, err := p(ctx)
	if err != nil {
		o.logger.Warn("manifest load failed", "error", err)
		return
	}

	o.mu.Lock()
	o.manifest = m
	o.loaded = m != nil
	o.mu.Unlock()
}

// Loaded reports whether a manifest is currently installed.
func (o *Oracle) Loaded() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.loaded
}

// Allows reports whether tile (z, x, y) should be fetched. True iff z
// exists, x exists under it, and y falls within one of the listed closed
// intervals; true unconditionally when no manifest is loaded.
func (o *Oracle) Allows(z, x, y int) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if !o.loaded {
		return true
	}

	xs, ok := o.manifest[z]
	if !ok {
		return false
	}
	ranges, ok := xs[x]
	if !ok {
		return false
	}
	for _, r := range ranges {
		if y >= r[0] && y <= r[1] {
			return true
		}
	}
	return false
}

// Clear drops the manifest and producer, used on disposal.
func (o *Oracle) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.manifest = nil
	o.producer = nil
	o.loaded = false
}

// Validate sanity checks interval ordering.
func Validate(m Manifest) error {
	for z, xs := range m {
		if z < 0 {
			return fmt.Errorf("negative zoom %d in manifest", z)
		}
		for x, ranges := range xs {
			for _, r := range ranges {
				if r[0] > r[1] {
					return fmt.Errorf("inverted interval [%d, %d] at z=%d x=%d", r[0], r[1], z, x)
				}
			}
		}
	}
	return nil
}
