// internal/prefetch/prefetch.go - Tile-range walking for batch rendering
package prefetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/valpere/mvt_overlay/internal"
	"github.com/valpere/mvt_overlay/internal/config"
	"github.com/valpere/mvt_overlay/internal/tile"
	"github.com/valpere/mvt_overlay/pkg/overlay"
	"github.com/valpere/mvt_overlay/pkg/projection"
)

// Stats summarizes a prefetch run.
type Stats struct {
	Requested int64
	Failed    int64
}

// Prefetcher walks a bounding box at one zoom and drives the source's
// tile provider the way a panning host map would.
type Prefetcher struct {
	source      *overlay.Source
	concurrency int
	logger      *slog.Logger
}

// New creates a prefetcher over the source.
func New(source *overlay.Source, concurrency int, logger *slog.Logger) *Prefetcher {
	if concurrency <= 0 {
		concurrency = 8
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prefetcher{
		source:      source,
		concurrency: concurrency,
		logger:      logger.With("component", "prefetch"),
	}
}

// Range computes the tile keys covering a bounding box at one zoom.
func Range(box config.BBox, zoom int) []tile.Key {
	nw := projection.TileAtLatLng(box.North, box.West, zoom)
	se := projection.TileAtLatLng(box.South, box.East, zoom)

	max := 1 << uint(zoom)
	clamp := func(v int) int {
		if v < 0 {
			return 0
		}
		if v >= max {
			return max - 1
		}
		return v
	}

	minX, maxX := clamp(nw.X), clamp(se.X)
	minY, maxY := clamp(nw.Y), clamp(se.Y)

	keys := make([]tile.Key, 0, (maxX-minX+1)*(maxY-minY+1))
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			keys = append(keys, tile.Key{Z: zoom, X: x, Y: y})
		}
	}
	return keys
}

// Run requests every tile in the range and waits for all of them to
// settle. Individual tile failures surface as debug-only tiles, not as
// run errors.
func (p *Prefetcher) Run(ctx context.Context, keys []tile.Key) (*Stats, error) {
	if len(keys) == 0 {
		return nil, internal.NewError(internal.ErrorCodeValidation, "empty tile range", nil)
	}

	stats := &Stats{}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, key := range keys {
		key := key
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			atomic.AddInt64(&stats.Requested, 1)
			p.source.GetTile(key.X, key.Y, key.Z)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, fmt.Errorf("prefetch aborted: %w", err)
	}

	select {
	case <-p.source.TileLoaded():
	case <-ctx.Done():
		return stats, ctx.Err()
	}

	p.logger.Info("prefetch complete", "tiles", stats.Requested)
	return stats, nil
}
