// internal/feature/feature_test.go - Unit tests for feature records and registry
package feature

import (
	"fmt"
	"testing"

	"github.com/paulmach/orb"

	"github.com/valpere/mvt_overlay/internal/canvas"
	"github.com/valpere/mvt_overlay/internal/style"
	"github.com/valpere/mvt_overlay/pkg/mvt"
)

func smallPolygon() *mvt.Feature {
	return &mvt.Feature{
		Type:     mvt.GeomPolygon,
		Extent:   4096,
		Geometry: orb.Polygon{{{0, 0}, {1024, 0}, {1024, 1024}, {0, 1024}, {0, 0}}},
	}
}

// largeLine builds a feature big enough to hit the path cache.
func largeLine(n int) *mvt.Feature {
	line := make(orb.LineString, n)
	for i := range line {
		line[i] = orb.Point{float64(i), float64(i * 2)}
	}
	return &mvt.Feature{Type: mvt.GeomLineString, Extent: 4096, Geometry: line}
}

func TestAddAndRemoveFragment(t *testing.T) {
	f := New("a", smallPolygon(), style.Static(style.Props{}))
	f.AddFragment("9:1:2", &Fragment{VTF: smallPolygon(), Divisor: 16, Transform: canvas.IdentityTransform(16)})
	f.AddFragment("9:2:2", &Fragment{VTF: smallPolygon(), Divisor: 16, Transform: canvas.IdentityTransform(16)})

	if f.TileSpan() != 2 {
		t.Fatalf("Expected span 2, got %d", f.TileSpan())
	}
	if !f.InTile("9:1:2") || f.InTile("8:0:0") {
		t.Error("InTile membership wrong")
	}

	keys := f.TileKeys()
	if len(keys) != 2 || keys[0] != "9:1:2" {
		t.Errorf("Expected insertion order keys, got %v", keys)
	}

	f.RemoveFragment("9:1:2")
	if f.TileSpan() != 1 || f.InTile("9:1:2") {
		t.Error("RemoveFragment did not drop the tile")
	}
}

func TestPathSmallGeometryNotCached(t *testing.T) {
	f := New("a", smallPolygon(), style.Static(style.Props{}))
	f.AddFragment("9:0:0", &Fragment{VTF: smallPolygon(), Divisor: 16, Transform: canvas.IdentityTransform(16)})

	p1 := f.Path("9:0:0")
	p2 := f.Path("9:0:0")
	if p1 == nil || p2 == nil {
		t.Fatal("Expected paths for present fragment")
	}
	if p1 == p2 {
		t.Error("Small geometry must be rebuilt, not cached")
	}
	if f.paths.Len() != 0 {
		t.Errorf("Small geometry must not populate the cache, len=%d", f.paths.Len())
	}
}

func TestPathLargeGeometryCached(t *testing.T) {
	vtf := largeLine(200)
	f := New("a", vtf, style.Static(style.Props{}))
	f.AddFragment("9:0:0", &Fragment{VTF: vtf, Divisor: 16, Transform: canvas.IdentityTransform(16)})

	p1 := f.Path("9:0:0")
	p2 := f.Path("9:0:0")
	if p1 != p2 {
		t.Error("Large geometry path must be served from cache")
	}

	f.InvalidateCaches()
	if p3 := f.Path("9:0:0"); p3 == p1 {
		t.Error("Invalidated cache must rebuild the path")
	}
}

func TestPathTransformApplied(t *testing.T) {
	vtf := smallPolygon()
	f := New("a", vtf, style.Static(style.Props{}))
	f.AddFragment("9:0:0", &Fragment{VTF: vtf, Divisor: 16, Transform: canvas.IdentityTransform(16)})

	p := f.Path("9:0:0")
	if p.Parts[0][1] != (orb.Point{64, 0}) {
		t.Errorf("Expected divisor-scaled point (64,0), got %v", p.Parts[0][1])
	}
}

func TestPathMissingFragment(t *testing.T) {
	f := New("a", smallPolygon(), style.Static(style.Props{}))
	if f.Path("nowhere") != nil {
		t.Error("Expected nil path for unknown tile")
	}
	if f.RawPoints("nowhere") != nil {
		t.Error("Expected nil raw points for unknown tile")
	}
}

func TestRegistryBasics(t *testing.T) {
	r := NewRegistry()
	f := New("a", smallPolygon(), style.Static(style.Props{}))
	r.Register(f)
	r.Register(f) // no-op

	if r.Len() != 1 {
		t.Fatalf("Expected 1 feature, got %d", r.Len())
	}
	if r.Get("a") != f {
		t.Error("Get must return the registered feature")
	}

	r.MarkSelected("a", true)
	if !r.IsSelected("a") || !f.Selected {
		t.Error("MarkSelected must update set and flag")
	}

	r.MarkHovered("a", true)
	if !r.IsHovered("a") || !f.Hovered {
		t.Error("MarkHovered must update set and flag")
	}

	r.Unregister("a")
	if r.Get("a") != nil || r.IsSelected("a") || r.IsHovered("a") {
		t.Error("Unregister must clear map and both sets")
	}
}

func TestRegistryLateMaterialization(t *testing.T) {
	r := NewRegistry()
	r.MarkSelected("a", true)

	f := New("a", smallPolygon(), style.Static(style.Props{}))
	r.Register(f)
	if !f.Selected {
		t.Error("Feature registered under a selected ID must inherit selection")
	}
}

func TestRegistryResetKeepsSelection(t *testing.T) {
	r := NewRegistry()
	f := New("a", smallPolygon(), style.Static(style.Props{}))
	r.Register(f)
	r.MarkSelected("a", true)
	r.MarkHovered("a", true)

	r.Reset(true)
	if r.Len() != 0 {
		t.Error("Reset must drop features")
	}
	if !r.IsSelected("a") {
		t.Error("Reset(keep) must preserve the selected set")
	}
	if r.IsHovered("a") {
		t.Error("Reset must clear the hovered set")
	}

	r.Reset(false)
	if r.IsSelected("a") {
		t.Error("Reset(false) must clear the selected set")
	}
}

func TestRegistrySnapshotsAreCopies(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("f%d", i)
		r.Register(New(id, smallPolygon(), style.Static(style.Props{})))
		r.MarkSelected(id, true)
	}
	ids := r.SelectedIDs()
	if len(ids) != 3 {
		t.Fatalf("Expected 3 selected IDs, got %d", len(ids))
	}
	ids[0] = "mutated"
	if r.IsSelected("mutated") {
		t.Error("Snapshot mutation must not affect the registry")
	}
	if len(r.SelectedFeatures()) != 3 {
		t.Errorf("Expected 3 selected features")
	}
}
