// internal/config/validation.go - Configuration validation
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Validate validates the configuration structure and values
func Validate(config *Config) error {
	if err := validateServer(&config.Server); err != nil {
		return fmt.Errorf("server configuration invalid: %w", err)
	}

	if err := validateOverlay(&config.Overlay); err != nil {
		return fmt.Errorf("overlay configuration invalid: %w", err)
	}

	if err := validateRender(&config.Render); err != nil {
		return fmt.Errorf("render configuration invalid: %w", err)
	}

	if err := validateLogging(&config.Logging); err != nil {
		return fmt.Errorf("logging configuration invalid: %w", err)
	}

	return nil
}

// validateServer validates tile server parameters
func validateServer(server *ServerConfig) error {
	if server.BaseURL != "" {
		parsed, err := url.Parse(server.BaseURL)
		if err != nil {
			return fmt.Errorf("invalid base URL: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("base URL must use http or https, got %s", parsed.Scheme)
		}
	}

	if server.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if server.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	return nil
}

// validateOverlay validates overlay engine parameters
func validateOverlay(overlay *OverlayConfig) error {
	if overlay.TileSize <= 0 || overlay.TileSize > 4096 {
		return fmt.Errorf("tile size %d out of range (0, 4096]", overlay.TileSize)
	}

	if overlay.SourceMaxZoom < 0 || overlay.SourceMaxZoom > 22 {
		return fmt.Errorf("source max zoom %d out of range [0, 22]", overlay.SourceMaxZoom)
	}

	if overlay.LineWidth < 0 {
		return fmt.Errorf("line width cannot be negative")
	}

	if overlay.PointRadius < 0 {
		return fmt.Errorf("point radius cannot be negative")
	}

	return nil
}

// validateRender validates batch rendering parameters
func validateRender(render *RenderConfig) error {
	if render.Zoom < 0 || render.Zoom > 22 {
		return fmt.Errorf("zoom %d out of range [0, 22]", render.Zoom)
	}

	if render.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}

	if render.RateLimit < 0 {
		return fmt.Errorf("rate limit cannot be negative")
	}

	if render.BBox != "" {
		if _, err := ParseBBox(render.BBox); err != nil {
			return err
		}
	}

	return nil
}

// validateLogging validates logging parameters
func validateLogging(logging *LoggingConfig) error {
	switch strings.ToLower(logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", logging.Level)
	}

	switch strings.ToLower(logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", logging.Format)
	}

	return nil
}

// BBox is a geographic bounding box in west,south,east,north order.
type BBox struct {
	West  float64
	South float64
	East  float64
	North float64
}

// ParseBBox parses the "west,south,east,north" flag form.
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, fmt.Errorf("bbox must have 4 comma-separated values, got %d", len(parts))
	}

	vals := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return BBox{}, fmt.Errorf("invalid bbox component %q: %w", part, err)
		}
		vals[i] = v
	}

	box := BBox{West: vals[0], South: vals[1], East: vals[2], North: vals[3]}
	if box.West > box.East {
		return BBox{}, fmt.Errorf("bbox west %g exceeds east %g", box.West, box.East)
	}
	if box.South > box.North {
		return BBox{}, fmt.Errorf("bbox south %g exceeds north %g", box.South, box.North)
	}
	if box.South < -90 || box.North > 90 {
		return BBox{}, fmt.Errorf("bbox latitude out of range [-90, 90]")
	}
	return box, nil
}
