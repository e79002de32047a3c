// internal/render/layer.go - Per-layer feature table and parsing
package render

import (
	"fmt"
	"math/rand"

	"github.com/valpere/mvt_overlay/internal/feature"
	"github.com/valpere/mvt_overlay/internal/style"
	"github.com/valpere/mvt_overlay/pkg/mvt"
)

// IDExtractor derives the stable cross-tile feature identity from a
// decoded feature.
type IDExtractor func(layerName string, f *mvt.Feature) (string, bool)

// Filter decides whether a feature participates in the layer.
type Filter func(layerName string, f *mvt.Feature) bool

// Layer owns the features parsed from one named MVT layer across tiles.
type Layer struct {
	Name string

	Filter      Filter
	Style       style.Style
	IDExtractor IDExtractor
	// DefaultIDProperty is consulted when no extractor is set or the
	// extractor declines.
	DefaultIDProperty string

	features map[string]*feature.Feature
	order    []string
}

// NewLayer creates an empty layer.
func NewLayer(name string, baseStyle style.Style) *Layer {
	return &Layer{
		Name:     name,
		Style:    baseStyle,
		features: make(map[string]*feature.Feature),
	}
}

// Feature returns the layer's feature for an ID, nil when absent.
func (l *Layer) Feature(id string) *feature.Feature {
	return l.features[id]
}

// Features returns the layer's features in first-seen order.
func (l *Layer) Features() []*feature.Feature {
	out := make([]*feature.Feature, 0, len(l.order))
	for _, id := range l.order {
		if f := l.features[id]; f != nil {
			out = append(out, f)
		}
	}
	return out
}

// FeatureCount returns the number of features in the layer.
func (l *Layer) FeatureCount() int {
	return len(l.features)
}

// Remove drops a feature from the layer table.
func (l *Layer) Remove(id string) {
	if _, ok := l.features[id]; !ok {
		return
	}
	delete(l.features, id)
	for i, k := range l.order {
		if k == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// Reset drops every feature, used on zoom rebuilds and URL changes.
func (l *Layer) Reset() {
	l.features = make(map[string]*feature.Feature)
	l.order = nil
}

// add records a feature under its ID.
func (l *Layer) add(f *feature.Feature) {
	if _, exists := l.features[f.ID]; !exists {
		l.order = append(l.order, f.ID)
	}
	l.features[f.ID] = f
}

// applyFilter runs the layer filter, swallowing panics; a panicking
// filter rejects the feature.
func (l *Layer) applyFilter(f *mvt.Feature) (keep bool) {
	if l.Filter == nil {
		return true
	}
	defer func() {
		if recover() != nil {
			keep = false
		}
	}()
	return l.Filter(l.Name, f)
}

// extractID resolves the feature identity with the fallback chain:
// configured extractor, the wire-level feature id, the configured
// default property, the common id property names, then a generated
// pseudo-random identity. A panicking extractor falls through.
func (l *Layer) extractID(f *mvt.Feature) string {
	if id, ok := l.safeExtract(f); ok && id != "" {
		return id
	}

	if f.ID != nil {
		return fmt.Sprintf("%d", *f.ID)
	}

	if l.DefaultIDProperty != "" {
		if id, ok := propertyID(f, l.DefaultIDProperty); ok {
			return id
		}
	}

	for _, name := range []string{"id", "Id", "ID"} {
		if id, ok := propertyID(f, name); ok {
			return id
		}
	}

	return fmt.Sprintf("%s.rnd.%d", l.Name, rand.Int63())
}

func (l *Layer) safeExtract(f *mvt.Feature) (id string, ok bool) {
	if l.IDExtractor == nil {
		return "", false
	}
	defer func() {
		if recover() != nil {
			id, ok = "", false
		}
	}()
	return l.IDExtractor(l.Name, f)
}

// propertyID renders a property value as an identity string.
func propertyID(f *mvt.Feature, name string) (string, bool) {
	v, ok := f.Properties[name]
	if !ok || v == nil {
		return "", false
	}
	switch val := v.(type) {
	case string:
		if val == "" {
			return "", false
		}
		return val, true
	case float64:
		return fmt.Sprintf("%g", val), true
	case int:
		return fmt.Sprintf("%d", val), true
	case int64:
		return fmt.Sprintf("%d", val), true
	case uint64:
		return fmt.Sprintf("%d", val), true
	default:
		return fmt.Sprintf("%v", val), true
	}
}
