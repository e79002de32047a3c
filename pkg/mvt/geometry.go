// pkg/mvt/geometry.go - Feature geometry loading and GeoJSON conversion
package mvt

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// LoadGeometry flattens the feature geometry into parts: one point slice
// per ring, line part, or individual point. Coordinates remain in the
// tile-local integer frame. The result is computed once and reused.
func (f *Feature) LoadGeometry() [][]orb.Point {
	if f.parts != nil {
		return f.parts
	}
	f.parts = flattenGeometry(f.Geometry)
	return f.parts
}

// flattenGeometry walks an orb geometry into draw parts
func flattenGeometry(g orb.Geometry) [][]orb.Point {
	switch geom := g.(type) {
	case orb.Point:
		return [][]orb.Point{{geom}}
	case orb.MultiPoint:
		parts := make([][]orb.Point, 0, len(geom))
		for _, p := range geom {
			parts = append(parts, []orb.Point{p})
		}
		return parts
	case orb.LineString:
		return [][]orb.Point{geom}
	case orb.MultiLineString:
		parts := make([][]orb.Point, 0, len(geom))
		for _, ls := range geom {
			parts = append(parts, ls)
		}
		return parts
	case orb.Polygon:
		parts := make([][]orb.Point, 0, len(geom))
		for _, ring := range geom {
			parts = append(parts, ring)
		}
		return parts
	case orb.MultiPolygon:
		var parts [][]orb.Point
		for _, poly := range geom {
			for _, ring := range poly {
				parts = append(parts, ring)
			}
		}
		return parts
	default:
		return nil
	}
}

// VertexCount returns the total number of vertices across all parts
func (f *Feature) VertexCount() int {
	total := 0
	for _, part := range f.LoadGeometry() {
		total += len(part)
	}
	return total
}

// BBox returns the tile-local bounding box of the feature geometry
func (f *Feature) BBox() orb.Bound {
	return f.Geometry.Bound()
}

// ToGeoJSON converts the feature to a GeoJSON feature, keeping tile-local
// coordinates. Geographic unprojection is the merger's concern.
func (f *Feature) ToGeoJSON() *geojson.Feature {
	out := geojson.NewFeature(f.Geometry)
	out.Properties = f.Properties
	if f.ID != nil {
		out.ID = *f.ID
	}
	return out
}
