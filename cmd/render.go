// cmd/render.go - Batch tile rendering command
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valpere/mvt_overlay/internal/config"
	"github.com/valpere/mvt_overlay/internal/output"
	"github.com/valpere/mvt_overlay/internal/prefetch"
	"github.com/valpere/mvt_overlay/pkg/overlay"
)

// renderCmd renders a tile range through the overlay engine to PNGs
var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a tile range to PNG files",
	Long: `Render fetches every tile covering the bounding box at the given
zoom, runs the overlay pipeline (decode, feature registration, styling,
canvas drawing), and writes {z}/{x}/{y}.png files plus an index.json
manifest into the output directory.`,
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().Int("zoom", 12, "zoom level to render")
	renderCmd.Flags().String("bbox", "", "bounding box west,south,east,north (required)")
	renderCmd.Flags().String("out", "tiles-out", "output directory")
	renderCmd.Flags().Int("concurrency", 8, "concurrent tile requests")
	renderCmd.Flags().Float64("rate-limit", 0, "max requests per second (0 = unlimited)")
	renderCmd.Flags().StringSlice("select", nil, "feature IDs to pre-select")

	bindings := map[string]string{
		"render.zoom":        "zoom",
		"render.bbox":        "bbox",
		"render.output_dir":  "out",
		"render.concurrency": "concurrency",
		"render.rate_limit":  "rate-limit",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, renderCmd.Flags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Server.BaseURL == "" {
		return fmt.Errorf("--base-url is required")
	}
	if cfg.Render.BBox == "" {
		return fmt.Errorf("--bbox is required")
	}

	box, err := config.ParseBBox(cfg.Render.BBox)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Logging.Format, cfg.Logging.Verbose)
	selected, _ := cmd.Flags().GetStringSlice("select")

	keys := prefetch.Range(box, cfg.Render.Zoom)
	logger.Info("rendering tile range",
		"zoom", cfg.Render.Zoom,
		"tiles", len(keys),
		"out", cfg.Render.OutputDir,
	)

	host := newHeadlessHost(cfg.Render.Zoom)
	source := overlay.NewSource(host, overlay.Options{
		URL:              cfg.Server.BaseURL,
		SourceMaxZoom:    cfg.Overlay.SourceMaxZoom,
		Debug:            cfg.Overlay.Debug,
		Cache:            cfg.Overlay.Cache,
		TileSize:         cfg.Overlay.TileSize,
		VisibleLayers:    visibleLayersOrNil(cfg.Overlay.VisibleLayers),
		XHRHeaders:       serverHeaders(cfg),
		Style:            styleFromConfig(cfg),
		DefaultFeatureID: cfg.Overlay.DefaultID,
		SelectedFeatures: selected,
		FetchTimeout:     cfg.Server.Timeout,
		FetchRateLimit:   cfg.Render.RateLimit,
		Logger:           logger,
		// The whole range must stay resident for the output pass.
		VisibleCap: len(keys) + 1,
		DrawnCap:   2 * (len(keys) + 1),
	})
	defer source.Dispose()

	fetcher := prefetch.New(source, cfg.Render.Concurrency, logger)
	stats, err := fetcher.Run(context.Background(), keys)
	if err != nil {
		return fmt.Errorf("prefetch failed: %w", err)
	}

	writer, err := output.NewWriter(cfg.Render.OutputDir)
	if err != nil {
		return err
	}

	var failed int
	for _, key := range keys {
		canvas, debugOnly, ok := source.TileAt(key.String())
		if !ok {
			failed++
			continue
		}
		err := writer.Write(&output.RenderedTile{
			Key:       key,
			Canvas:    canvas,
			DebugOnly: debugOnly,
		})
		if err != nil {
			logger.Warn("tile write failed", "tile", key.String(), "error", err)
			failed++
		}
	}

	if err := writer.Finish(); err != nil {
		return err
	}

	logger.Info("render complete",
		"requested", stats.Requested,
		"written", writer.Count(),
		"failed", failed,
	)
	return nil
}

// visibleLayersOrNil maps an empty config list to "draw all layers".
func visibleLayersOrNil(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	return names
}

// serverHeaders folds the API key into the configured header set.
func serverHeaders(cfg *config.Config) map[string]string {
	headers := make(map[string]string, len(cfg.Server.Headers)+1)
	for k, v := range cfg.Server.Headers {
		headers[k] = v
	}
	if cfg.Server.APIKey != "" {
		headers["Authorization"] = "Bearer " + cfg.Server.APIKey
	}
	return headers
}

// styleFromConfig builds the base feature style from the overlay section.
func styleFromConfig(cfg *config.Config) overlay.Style {
	return overlay.StaticStyle(overlay.StyleProps{
		Fill:      overlay.String(cfg.Overlay.FillColor),
		Stroke:    overlay.String(cfg.Overlay.StrokeColor),
		LineWidth: overlay.Float(cfg.Overlay.LineWidth),
		Radius:    overlay.Float(cfg.Overlay.PointRadius),
	})
}
