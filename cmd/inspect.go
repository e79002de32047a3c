// cmd/inspect.go - Single tile inspection command
package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/valpere/mvt_overlay/internal/config"
	"github.com/valpere/mvt_overlay/internal/tile"
	"github.com/valpere/mvt_overlay/pkg/mvt"
)

// inspectCmd decodes one tile and prints a layer/feature summary
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Decode one tile and print its layers and features",
	Long: `Inspect fetches a single Mapbox Vector Tile, decodes it, and prints
a per-layer summary: feature counts by geometry type, the layer extent,
and a sample of property keys. Useful for checking what a tile server
actually delivers before configuring styles and filters.`,
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().Int("z", 0, "tile zoom")
	inspectCmd.Flags().Int("x", 0, "tile x")
	inspectCmd.Flags().Int("y", 0, "tile y")
	_ = inspectCmd.MarkFlagRequired("z")
	_ = inspectCmd.MarkFlagRequired("x")
	_ = inspectCmd.MarkFlagRequired("y")
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Server.BaseURL == "" {
		return fmt.Errorf("--base-url is required")
	}

	z, _ := cmd.Flags().GetInt("z")
	x, _ := cmd.Flags().GetInt("x")
	y, _ := cmd.Flags().GetInt("y")

	key := tile.Key{Z: z, X: x, Y: y}
	if err := (mvt.TileID{Z: z, X: x, Y: y}).Validate(); err != nil {
		return err
	}

	fetcher := tile.NewHTTPFetcher(tile.FetcherConfig{
		Timeout: cfg.Server.Timeout,
		Headers: serverHeaders(cfg),
	})

	response, err := fetcher.Fetch(context.Background(), &tile.Request{
		Key: key,
		URL: tile.BuildTileURL(cfg.Server.BaseURL, key),
	})
	if err != nil {
		return fmt.Errorf("tile fetch failed: %w", err)
	}

	decoded, err := mvt.NewDecoder().Decode(response.Data, z, x, y)
	if err != nil {
		return fmt.Errorf("tile decode failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "tile %s  (%d bytes, fetched in %s)\n", key.String(), len(response.Data), response.FetchTime)
	fmt.Fprintf(out, "layers: %d, features: %d\n\n", len(decoded.Layers), decoded.FeatureCount())

	names := decoded.LayerNames()
	sort.Strings(names)
	for _, name := range names {
		layer := decoded.Layers[name]
		points, lines, polygons := 0, 0, 0
		propKeys := make(map[string]struct{})
		for _, f := range layer.Features {
			switch f.Type {
			case mvt.GeomPoint:
				points++
			case mvt.GeomLineString:
				lines++
			case mvt.GeomPolygon:
				polygons++
			}
			for k := range f.Properties {
				propKeys[k] = struct{}{}
			}
		}

		keys := make([]string, 0, len(propKeys))
		for k := range propKeys {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > 8 {
			keys = keys[:8]
		}

		fmt.Fprintf(out, "  %s (extent %d, version %d)\n", name, layer.Extent, layer.Version)
		fmt.Fprintf(out, "    features: %d points, %d lines, %d polygons\n", points, lines, polygons)
		if len(keys) > 0 {
			fmt.Fprintf(out, "    properties: %v\n", keys)
		}
	}
	return nil
}
