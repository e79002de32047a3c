// internal/feature/feature.go - Cross-tile feature record and per-tile fragments
package feature

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb"

	"github.com/valpere/mvt_overlay/internal/canvas"
	"github.com/valpere/mvt_overlay/internal/style"
	"github.com/valpere/mvt_overlay/pkg/mvt"
)

const (
	// pathCacheSize bounds the per-feature cached paths across tiles.
	pathCacheSize = 50

	// cacheMinVertices is the vertex count below which rebuilding the
	// path each draw is cheaper than caching it.
	cacheMinVertices = 50
)

// Fragment is one tile's contribution to a feature: the decoded vector
// feature plus the divisor that maps its integer coordinates to pixels.
type Fragment struct {
	VTF     *mvt.Feature
	Divisor float64

	// Overzoom parameters, identity when the tile is not overzoomed.
	Transform canvas.Transform

	// FrameZ, FrameX, FrameY address the tile frame the raw coordinates
	// live in: the fetched ancestor for overzoomed tiles, the tile
	// itself otherwise. The merger unprojects through this frame.
	FrameZ int
	FrameX int
	FrameY int
}

// Feature is the cross-tile record for one logical map feature. The ID is
// stable across every tile fragment that contributes to it. Fragments are
// keyed by the canonical "z:x:y" tile key string.
type Feature struct {
	ID         string
	Type       mvt.GeomType
	Properties map[string]interface{}
	Style      style.Style

	Selected bool
	Hovered  bool

	tiles     map[string]*Fragment
	tileOrder []string

	paths    *lru.Cache[string, *canvas.Path]
	raws     *lru.Cache[string, [][]orb.Point]
	pathHash map[string]string
}

// New creates a feature record from its first tile fragment.
func New(id string, vtf *mvt.Feature, baseStyle style.Style) *Feature {
	paths, _ := lru.New[string, *canvas.Path](pathCacheSize)
	raws, _ := lru.New[string, [][]orb.Point](pathCacheSize)
	f := &Feature{
		ID:         id,
		Type:       vtf.Type,
		Properties: vtf.Properties,
		Style:      baseStyle,
		tiles:      make(map[string]*Fragment),
		paths:      paths,
		raws:       raws,
		pathHash:   make(map[string]string),
	}
	return f
}

// AddFragment records the feature's geometry in one tile. Re-adding a
// tile replaces the fragment and invalidates its cached paths.
func (f *Feature) AddFragment(tileKey string, frag *Fragment) {
	if _, exists := f.tiles[tileKey]; !exists {
		f.tileOrder = append(f.tileOrder, tileKey)
	}
	f.tiles[tileKey] = frag
	f.paths.Remove(tileKey)
	f.raws.Remove(tileKey)
	delete(f.pathHash, tileKey)
}

// Fragment returns the feature's fragment for a tile, nil when absent.
func (f *Feature) Fragment(tileKey string) *Fragment {
	return f.tiles[tileKey]
}

// RemoveFragment drops a tile's contribution, e.g. after tile eviction.
func (f *Feature) RemoveFragment(tileKey string) {
	if _, exists := f.tiles[tileKey]; !exists {
		return
	}
	delete(f.tiles, tileKey)
	for i, k := range f.tileOrder {
		if k == tileKey {
			f.tileOrder = append(f.tileOrder[:i], f.tileOrder[i+1:]...)
			break
		}
	}
	f.paths.Remove(tileKey)
	f.raws.Remove(tileKey)
	delete(f.pathHash, tileKey)
}

// TileKeys returns the tile keys the feature currently spans, in the
// order they were first seen.
func (f *Feature) TileKeys() []string {
	out := make([]string, len(f.tileOrder))
	copy(out, f.tileOrder)
	return out
}

// TileSpan returns the number of tiles the feature spans.
func (f *Feature) TileSpan() int {
	return len(f.tiles)
}

// InTile reports whether the feature has geometry in the given tile.
func (f *Feature) InTile(tileKey string) bool {
	_, ok := f.tiles[tileKey]
	return ok
}

// Path returns the canvas-space path for one tile, cached for large
// geometries and rebuilt on demand for small ones. The cached entry is
// invalidated when the geometry hash no longer matches.
func (f *Feature) Path(tileKey string) *canvas.Path {
	frag := f.tiles[tileKey]
	if frag == nil || frag.VTF == nil {
		return nil
	}

	parts := frag.VTF.LoadGeometry()
	if frag.VTF.VertexCount() < cacheMinVertices {
		return canvas.NewPath(parts, frag.Transform)
	}

	hash := canvas.GeometryHash(parts)
	if cached, ok := f.paths.Get(tileKey); ok {
		if f.pathHash[tileKey] == hash {
			return cached
		}
		f.paths.Remove(tileKey)
	}

	path := canvas.NewPath(parts, frag.Transform)
	f.paths.Add(tileKey, path)
	f.pathHash[tileKey] = hash
	return path
}

// RawPoints returns the transformed point arrays used by hit testing,
// grouped by ring/part, with the same caching policy as Path.
func (f *Feature) RawPoints(tileKey string) [][]orb.Point {
	frag := f.tiles[tileKey]
	if frag == nil || frag.VTF == nil {
		return nil
	}

	if frag.VTF.VertexCount() < cacheMinVertices {
		return canvas.NewPath(frag.VTF.LoadGeometry(), frag.Transform).Parts
	}

	if cached, ok := f.raws.Get(tileKey); ok {
		return cached
	}

	raw := canvas.NewPath(frag.VTF.LoadGeometry(), frag.Transform).Parts
	f.raws.Add(tileKey, raw)
	return raw
}

// InvalidateCaches drops all cached paths, forcing recomputation.
func (f *Feature) InvalidateCaches() {
	f.paths.Purge()
	f.raws.Purge()
	f.pathHash = make(map[string]string)
}
