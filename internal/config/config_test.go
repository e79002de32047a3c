// internal/config/config_test.go - Unit tests for configuration validation
package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL: "https://tiles.example.com/{z}/{x}/{y}.pbf",
			Timeout: 30 * time.Second,
		},
		Overlay: OverlayConfig{
			TileSize: 256,
		},
		Render: RenderConfig{
			Zoom:        12,
			Concurrency: 8,
			BBox:        "-74.0,40.7,-73.9,40.8",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Errorf("Valid config rejected: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad scheme", func(c *Config) { c.Server.BaseURL = "ftp://tiles.example.com" }},
		{"zero timeout", func(c *Config) { c.Server.Timeout = 0 }},
		{"negative retries", func(c *Config) { c.Server.MaxRetries = -1 }},
		{"zero tile size", func(c *Config) { c.Overlay.TileSize = 0 }},
		{"huge zoom", func(c *Config) { c.Render.Zoom = 30 }},
		{"zero concurrency", func(c *Config) { c.Render.Concurrency = 0 }},
		{"negative rate limit", func(c *Config) { c.Render.RateLimit = -1 }},
		{"bad bbox", func(c *Config) { c.Render.BBox = "1,2,3" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestParseBBox(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "-74.0,40.7,-73.9,40.8", false},
		{"spaces", " -74.0 , 40.7 , -73.9 , 40.8 ", false},
		{"too few", "1,2,3", true},
		{"not numbers", "a,b,c,d", true},
		{"west past east", "10,0,-10,5", true},
		{"south past north", "0,50,10,40", true},
		{"latitude overflow", "0,-95,10,5", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box, err := ParseBBox(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBBox(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && (box.West > box.East || box.South > box.North) {
				t.Errorf("Parsed box inverted: %+v", box)
			}
		})
	}
}
