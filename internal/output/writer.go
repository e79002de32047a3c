// internal/output/writer.go - Rendered tile output
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/valpere/mvt_overlay/internal"
	"github.com/valpere/mvt_overlay/internal/canvas"
	"github.com/valpere/mvt_overlay/internal/tile"
)

// RenderedTile is one tile ready for output.
type RenderedTile struct {
	Key    tile.Key
	Canvas *canvas.Canvas
	// DebugOnly marks tiles that carried no feature data.
	DebugOnly bool
}

// IndexEntry describes one written tile in the run manifest.
type IndexEntry struct {
	Key       string `json:"key"`
	Path      string `json:"path"`
	DebugOnly bool   `json:"debug_only,omitempty"`
}

// Index is the run manifest written next to the tiles.
type Index struct {
	GeneratedAt time.Time    `json:"generated_at"`
	TileCount   int          `json:"tile_count"`
	Tiles       []IndexEntry `json:"tiles"`
}

// Writer persists rendered tiles as {z}/{x}/{y}.png under a directory
// and records an index.json manifest for the run.
type Writer struct {
	mu      sync.Mutex
	dir     string
	entries []IndexEntry
}

// NewWriter creates the output directory and a writer into it.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, internal.NewError(internal.ErrorCodeFileSystem, "failed to create output directory", err)
	}
	return &Writer{dir: dir}, nil
}

// Write persists one rendered tile.
func (w *Writer) Write(t *RenderedTile) error {
	rel := filepath.Join(
		fmt.Sprintf("%d", t.Key.Z),
		fmt.Sprintf("%d", t.Key.X),
		fmt.Sprintf("%d.png", t.Key.Y),
	)
	full := filepath.Join(w.dir, rel)

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create tile directory: %w", err)
	}

	file, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("failed to create tile file: %w", err)
	}
	defer file.Close()

	if err := t.Canvas.EncodePNG(file); err != nil {
		return fmt.Errorf("failed to write tile %s: %w", t.Key.String(), err)
	}

	w.mu.Lock()
	w.entries = append(w.entries, IndexEntry{
		Key:       t.Key.String(),
		Path:      rel,
		DebugOnly: t.DebugOnly,
	})
	w.mu.Unlock()
	return nil
}

// Finish writes the index.json manifest.
func (w *Writer) Finish() error {
	w.mu.Lock()
	index := Index{
		GeneratedAt: time.Now().UTC(),
		TileCount:   len(w.entries),
		Tiles:       w.entries,
	}
	w.mu.Unlock()

	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	path := filepath.Join(w.dir, "index.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	return nil
}

// Count returns the number of written tiles.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}
