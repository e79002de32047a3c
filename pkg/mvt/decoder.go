// pkg/mvt/decoder.go - Mapbox Vector Tile decoding implementation
package mvt

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
)

// GeomType is the MVT geometry type code.
type GeomType int

const (
	GeomPoint      GeomType = 1
	GeomLineString GeomType = 2
	GeomPolygon    GeomType = 3
)

// DefaultExtent is the integer coordinate range of a tile's local frame.
const DefaultExtent = 4096

// Decoder handles decoding of Mapbox Vector Tiles from Protocol Buffer format
type Decoder struct {
	extent int
}

// NewDecoder creates a new MVT decoder with default settings
func NewDecoder() *Decoder {
	return &Decoder{
		extent: DefaultExtent,
	}
}

// NewDecoderWithExtent creates a new MVT decoder with custom extent
func NewDecoderWithExtent(extent int) *Decoder {
	return &Decoder{
		extent: extent,
	}
}

// Tile represents a decoded MVT tile with its layers and metadata.
// Feature geometries stay in tile-local integer coordinate space;
// callers divide by extent/tileSize to reach canvas pixels.
type Tile struct {
	Layers  map[string]*Layer
	Extent  int
	Version int
	TileID  TileID
}

// Layer represents a single layer within an MVT tile
type Layer struct {
	Name     string
	Features []*Feature
	Extent   int
	Version  int
}

// Feature represents a single feature within a layer
type Feature struct {
	ID         *uint64
	Type       GeomType
	Extent     int
	Properties map[string]interface{}
	Geometry   orb.Geometry

	parts [][]orb.Point
}

// TileID represents the tile coordinates and zoom level
type TileID struct {
	Z int
	X int
	Y int
}

// Decode decodes a Mapbox Vector Tile from binary Protocol Buffer data
func (d *Decoder) Decode(data []byte, z, x, y int) (*Tile, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty tile data")
	}

	layers, err := mvt.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal MVT data: %w", err)
	}

	tile := &Tile{
		Layers:  make(map[string]*Layer),
		Extent:  d.extent,
		Version: 2, // MVT specification version
		TileID: TileID{
			Z: z,
			X: x,
			Y: y,
		},
	}

	for _, layer := range layers {
		decoded := d.decodeLayer(layer)
		tile.Layers[decoded.Name] = decoded
		if decoded.Extent > 0 {
			tile.Extent = decoded.Extent
		}
	}

	return tile, nil
}

// decodeLayer processes a single layer from the MVT data
func (d *Decoder) decodeLayer(layer *mvt.Layer) *Layer {
	decoded := &Layer{
		Name:     layer.Name,
		Features: make([]*Feature, 0, len(layer.Features)),
		Extent:   int(layer.Extent),
		Version:  int(layer.Version),
	}
	if decoded.Extent == 0 {
		decoded.Extent = d.extent
	}

	for _, feature := range layer.Features {
		decodedFeature, err := d.decodeFeature(feature, decoded.Extent)
		if err != nil {
			// Skip malformed features, keep the rest of the layer
			continue
		}
		decoded.Features = append(decoded.Features, decodedFeature)
	}

	return decoded
}

// decodeFeature converts an orb geojson feature into the overlay feature model
func (d *Decoder) decodeFeature(feature *geojson.Feature, extent int) (*Feature, error) {
	if feature == nil || feature.Geometry == nil {
		return nil, fmt.Errorf("feature has no geometry")
	}

	geomType, err := geomTypeOf(feature.Geometry)
	if err != nil {
		return nil, err
	}

	decoded := &Feature{
		Type:       geomType,
		Extent:     extent,
		Properties: feature.Properties,
		Geometry:   feature.Geometry,
	}
	if decoded.Properties == nil {
		decoded.Properties = make(map[string]interface{})
	}

	if id, ok := numericID(feature.ID); ok {
		decoded.ID = &id
	}

	return decoded, nil
}

// geomTypeOf maps an orb geometry to the MVT type code
func geomTypeOf(g orb.Geometry) (GeomType, error) {
	switch g.(type) {
	case orb.Point, orb.MultiPoint:
		return GeomPoint, nil
	case orb.LineString, orb.MultiLineString:
		return GeomLineString, nil
	case orb.Polygon, orb.MultiPolygon:
		return GeomPolygon, nil
	default:
		return 0, fmt.Errorf("unsupported geometry type %T", g)
	}
}

// numericID normalizes the various ID encodings orb may produce
func numericID(id interface{}) (uint64, bool) {
	switch v := id.(type) {
	case uint64:
		return v, true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case float64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	default:
		return 0, false
	}
}

// LayerNames returns the set of layer names present in the tile
func (t *Tile) LayerNames() []string {
	names := make([]string, 0, len(t.Layers))
	for name := range t.Layers {
		names = append(names, name)
	}
	return names
}

// FeatureCount returns the total feature count across all layers
func (t *Tile) FeatureCount() int {
	total := 0
	for _, layer := range t.Layers {
		total += len(layer.Features)
	}
	return total
}

// String returns a string representation of the tile coordinate
func (tid TileID) String() string {
	return fmt.Sprintf("%d/%d/%d", tid.Z, tid.X, tid.Y)
}

// Validate checks that the tile coordinate is within the pyramid
func (tid TileID) Validate() error {
	if tid.Z < 0 || tid.Z > 22 {
		return fmt.Errorf("zoom level %d out of range [0, 22]", tid.Z)
	}
	max := 1 << uint(tid.Z)
	if tid.X < 0 || tid.X >= max {
		return fmt.Errorf("x coordinate %d out of range [0, %d)", tid.X, max)
	}
	if tid.Y < 0 || tid.Y >= max {
		return fmt.Errorf("y coordinate %d out of range [0, %d)", tid.Y, max)
	}
	return nil
}
