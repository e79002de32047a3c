// pkg/overlay/options.go - Source configuration surface
package overlay

import (
	"context"
	"log/slog"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/valpere/mvt_overlay/internal/manifest"
	"github.com/valpere/mvt_overlay/internal/render"
	"github.com/valpere/mvt_overlay/internal/style"
	"github.com/valpere/mvt_overlay/internal/tile"
	"github.com/valpere/mvt_overlay/pkg/colorutil"
)

// Re-exported component types forming the public configuration surface.
type (
	// Style is a static or feature-dependent draw style.
	Style = style.Style
	// StyleProps is a concrete set of draw properties.
	StyleProps = style.Props
	// Filter decides whether a feature participates in a layer.
	Filter = render.Filter
	// IDExtractor derives the stable cross-tile feature identity.
	IDExtractor = render.IDExtractor
	// CustomDraw lets the application take over painting a feature.
	CustomDraw = render.CustomDraw
	// Manifest is the tile availability table.
	Manifest = manifest.Manifest
	// ManifestProducer asynchronously yields a manifest.
	ManifestProducer = manifest.Producer
	// Fetcher retrieves raw tile bytes.
	Fetcher = tile.Fetcher
)

// StaticStyle wraps concrete props as a style.
func StaticStyle(p StyleProps) Style {
	return style.Static(p)
}

// DynamicStyle wraps a feature-dependent style function.
func DynamicStyle(fn style.StyleFunc) Style {
	return style.Dynamic(fn)
}

// String returns a string pointer for style literals.
func String(v string) *string {
	return style.String(v)
}

// Float returns a float pointer for style literals.
func Float(v float64) *float64 {
	return style.Float(v)
}

// ReplacementFunc resolves a high-detail replacement geometry for a
// selected feature; returning nil falls back to the polygon merger.
type ReplacementFunc func(ctx context.Context, featureID string) (*geojson.Feature, error)

// SelectionCallback observes selection transitions.
type SelectionCallback func(featureID string, f *FeatureInfo, selected bool)

// PointerCallback observes resolved click and hover events.
type PointerCallback func(ev ClickEvent)

// Options configures a Source.
type Options struct {
	// URL is the tile template, "…/{z}/{x}/{y}.pbf" or a bare base URL.
	URL string

	// SourceMaxZoom enables overzooming above this level; 0 disables.
	SourceMaxZoom int

	// Debug draws tile borders and coordinate labels on first render.
	Debug bool

	// GetIDForLayerFeature overrides feature identity extraction.
	GetIDForLayerFeature IDExtractor
	// DefaultFeatureID names the property consulted when no extractor
	// applies.
	DefaultFeatureID string

	// VisibleLayers restricts drawn layers; nil draws all.
	VisibleLayers []string
	// ClickableLayers restricts hit-tested layers; nil tests all.
	ClickableLayers []string

	// XHRHeaders are sent with every tile request.
	XHRHeaders map[string]string

	// Filter rejects features per layer before registration.
	Filter Filter

	// Cache keeps layers and drawn tiles across zoom changes.
	Cache bool

	// TileSize is the canvas pixel size; defaults to 256.
	TileSize int

	// Style is the base style for all layers.
	Style Style

	// SelectedFeatures pre-selects IDs at construction.
	SelectedFeatures []string

	// CustomDraw takes over feature painting when set.
	CustomDraw CustomDraw

	// GetReplacementFeature resolves high-detail selected geometry.
	GetReplacementFeature ReplacementFunc

	// FeatureSelectionCallback observes selection transitions.
	FeatureSelectionCallback SelectionCallback

	// TileAvailabilityManifest gates fetches when set.
	TileAvailabilityManifest Manifest
	// TileAvailabilityProducer loads the manifest asynchronously.
	TileAvailabilityProducer ManifestProducer

	// OnClick and OnMouseHover receive resolved pointer events.
	OnClick      PointerCallback
	OnMouseHover PointerCallback

	// Selection policy flags.
	MultipleSelection        bool
	ToggleSelection          bool
	SetSelectedOnClick       *bool // nil defaults to true
	LimitToFirstVisibleLayer bool

	// HoverDelay debounces pointer-move hit tests; 0 tests immediately.
	HoverDelay time.Duration

	// Fetcher overrides the HTTP fetcher, e.g. for tests or local data.
	Fetcher Fetcher

	// FetchRateLimit bounds outgoing requests per second; 0 disables.
	FetchRateLimit float64

	// FetchTimeout bounds a single tile request.
	FetchTimeout time.Duration

	// Logger receives structured diagnostics; nil uses slog.Default.
	Logger *slog.Logger

	// Colors overrides the shared color parser.
	Colors *colorutil.Parser

	// VisibleCap and DrawnCap override the FIFO tile cache bounds.
	VisibleCap int
	DrawnCap   int
}

// setSelectedOnClick resolves the tri-state flag with its true default.
func (o *Options) setSelectedOnClick() bool {
	if o.SetSelectedOnClick == nil {
		return true
	}
	return *o.SetSelectedOnClick
}
