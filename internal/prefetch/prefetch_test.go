// internal/prefetch/prefetch_test.go - Unit tests for tile-range walking
package prefetch

import (
	"testing"

	"github.com/valpere/mvt_overlay/internal/config"
	"github.com/valpere/mvt_overlay/internal/tile"
	"github.com/valpere/mvt_overlay/pkg/projection"
)

func TestRangeCoversBBox(t *testing.T) {
	box := config.BBox{West: -74.0, South: 40.7, East: -73.9, North: 40.8}
	keys := Range(box, 12)
	if len(keys) == 0 {
		t.Fatal("Expected non-empty range")
	}

	for _, k := range keys {
		if k.Z != 12 {
			t.Errorf("Unexpected zoom in key %v", k)
		}
		if k.X < 0 || k.Y < 0 || k.X >= 1<<12 || k.Y >= 1<<12 {
			t.Errorf("Key out of pyramid bounds: %v", k)
		}
	}

	// The NW and SE corner tiles must be in the set.
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		seen[k.String()] = struct{}{}
	}
	for _, corner := range [][2]float64{{box.North, box.West}, {box.South, box.East}} {
		want := projection.TileAtLatLng(corner[0], corner[1], 12)
		wantKey := tile.Key{Z: want.Z, X: want.X, Y: want.Y}.String()
		if _, ok := seen[wantKey]; !ok {
			t.Errorf("No tile covering corner (%f, %f), want %s", corner[0], corner[1], wantKey)
		}
	}
}

func TestRangeSingleTile(t *testing.T) {
	// A tiny box well inside one tile yields exactly one key.
	box := config.BBox{West: 13.40, South: 52.51, East: 13.41, North: 52.52}
	keys := Range(box, 10)
	if len(keys) != 1 {
		t.Errorf("Expected one tile for a tiny box at z10, got %d", len(keys))
	}
}

func TestRangeZoomZero(t *testing.T) {
	box := config.BBox{West: -179, South: -80, East: 179, North: 80}
	keys := Range(box, 0)
	if len(keys) != 1 {
		t.Errorf("Expected the single z0 tile, got %d", len(keys))
	}
}
