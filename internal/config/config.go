// internal/config/config.go - Configuration management
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Overlay OverlayConfig `mapstructure:"overlay"`
	Render  RenderConfig  `mapstructure:"render"`
	Network NetworkConfig `mapstructure:"network"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig contains tile server configuration
type ServerConfig struct {
	BaseURL    string            `mapstructure:"base_url"`
	APIKey     string            `mapstructure:"api_key"`
	Headers    map[string]string `mapstructure:"headers"`
	Timeout    time.Duration     `mapstructure:"timeout"`
	MaxRetries int               `mapstructure:"max_retries"`
}

// OverlayConfig contains the overlay engine configuration
type OverlayConfig struct {
	TileSize      int      `mapstructure:"tile_size"`
	SourceMaxZoom int      `mapstructure:"source_max_zoom"`
	Debug         bool     `mapstructure:"debug"`
	Cache         bool     `mapstructure:"cache"`
	VisibleLayers []string `mapstructure:"visible_layers"`
	DefaultID     string   `mapstructure:"default_id"`

	FillColor   string  `mapstructure:"fill_color"`
	StrokeColor string  `mapstructure:"stroke_color"`
	LineWidth   float64 `mapstructure:"line_width"`
	PointRadius float64 `mapstructure:"point_radius"`
}

// RenderConfig contains batch rendering configuration
type RenderConfig struct {
	OutputDir   string  `mapstructure:"output_dir"`
	Zoom        int     `mapstructure:"zoom"`
	BBox        string  `mapstructure:"bbox"`
	Concurrency int     `mapstructure:"concurrency"`
	RateLimit   float64 `mapstructure:"rate_limit"`
}

// NetworkConfig contains network-related configuration
type NetworkConfig struct {
	ProxyURL         string        `mapstructure:"proxy_url"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns"`
	IdleConnTimeout  time.Duration `mapstructure:"idle_conn_timeout"`
	DisableKeepAlive bool          `mapstructure:"disable_keep_alive"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	Verbose bool   `mapstructure:"verbose"`
}

// Load loads configuration from various sources
func Load() (*Config, error) {
	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults configures default values for all configuration options
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.timeout", 30*time.Second)
	viper.SetDefault("server.max_retries", 3)

	// Overlay defaults
	viper.SetDefault("overlay.tile_size", 256)
	viper.SetDefault("overlay.cache", false)
	viper.SetDefault("overlay.fill_color", "rgba(100, 140, 255, 0.4)")
	viper.SetDefault("overlay.stroke_color", "rgba(60, 80, 200, 1)")
	viper.SetDefault("overlay.line_width", 1.5)
	viper.SetDefault("overlay.point_radius", 3)

	// Render defaults
	viper.SetDefault("render.output_dir", "tiles-out")
	viper.SetDefault("render.zoom", 12)
	viper.SetDefault("render.concurrency", 8)
	viper.SetDefault("render.rate_limit", 0)

	// Network defaults
	viper.SetDefault("network.max_idle_conns", 32)
	viper.SetDefault("network.idle_conn_timeout", 90*time.Second)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
}
