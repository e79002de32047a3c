// cmd/root.go - Root command implementation
package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mvt-overlay",
	Short: "Render interactive Mapbox Vector Tile overlays headlessly",
	Long: `mvt-overlay drives the vector-tile overlay engine without a browser
host: it fetches Mapbox Vector Tiles from a tile server, runs the full
decode, feature-registration, styling, and canvas-rendering pipeline,
and writes the rendered tiles out as PNG files.

Features:
- Fetch and decode MVT/PBF tiles over HTTP with configurable headers
- Style features with one base fill, stroke, line width, and radius for all layers
- Pre-select feature IDs so the selected-style composition is exercised
- Overzoom above the source's maximum zoom level
- Bounded concurrent prefetching with optional rate limiting

Examples:
  # Render a bounding box at zoom 12
  mvt-overlay render --base-url "https://example.com/tiles/{z}/{x}/{y}.pbf" \
    --zoom 12 --bbox "-74.0,40.7,-73.9,40.8" --out tiles-out

  # Inspect one tile's layers and features
  mvt-overlay inspect --base-url "https://example.com/tiles/{z}/{x}/{y}.pbf" \
    --z 14 --x 8362 --y 5956

  # Use a configuration file
  mvt-overlay render --config overlay.yaml`,
	Version: "1.0.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mvt-overlay.yaml)")

	// Server flags
	rootCmd.PersistentFlags().String("base-url", "", "tile URL template with {z}/{x}/{y} placeholders")
	rootCmd.PersistentFlags().String("api-key", "", "API key sent as a bearer token")
	rootCmd.PersistentFlags().Duration("timeout", 0, "tile request timeout")

	// Overlay flags
	rootCmd.PersistentFlags().Int("tile-size", 256, "tile canvas size in pixels")
	rootCmd.PersistentFlags().Int("source-max-zoom", 0, "overzoom above this source zoom (0 disables)")
	rootCmd.PersistentFlags().Bool("debug", false, "draw tile borders and coordinate labels")
	rootCmd.PersistentFlags().StringSlice("visible-layers", nil, "restrict drawn layers")

	// Logging flags
	rootCmd.PersistentFlags().Bool("verbose", false, "verbose output")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	// Bind flags to viper
	bind := func(key, flag string) {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
	bind("server.base_url", "base-url")
	bind("server.api_key", "api-key")
	bind("server.timeout", "timeout")
	bind("overlay.tile_size", "tile-size")
	bind("overlay.source_max_zoom", "source-max-zoom")
	bind("overlay.debug", "debug")
	bind("overlay.visible_layers", "visible-layers")
	bind("logging.verbose", "verbose")
	bind("logging.format", "log-format")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigName(".mvt-overlay")
			viper.SetConfigType("yaml")
		}
	}

	viper.SetEnvPrefix("MVT_OVERLAY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()
}

// newLogger builds the process logger from the logging configuration.
func newLogger(format string, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler)
}
