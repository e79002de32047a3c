// internal/canvas/pool.go - Pooled draw state for features spanning many tiles
package canvas

import (
	"sync"

	"github.com/gogpu/gg"
)

// poolThreshold is the tile-span at which pooling a feature's draw state
// pays for itself; below it a fresh state per draw is cheaper.
const poolThreshold = 5

// DrawState is the resolved per-draw style applied to a context.
type DrawState struct {
	Fill      gg.RGBA
	HasFill   bool
	Stroke    gg.RGBA
	HasStroke bool
	LineWidth float64
	Radius    float64
}

var statePool = sync.Pool{
	New: func() interface{} {
		return &DrawState{}
	},
}

// AcquireState returns a draw state, pooled when the feature spans at
// least poolThreshold tiles.
func AcquireState(tileSpan int) (*DrawState, bool) {
	if tileSpan >= poolThreshold {
		s := statePool.Get().(*DrawState)
		*s = DrawState{}
		return s, true
	}
	return &DrawState{}, false
}

// ReleaseState returns a pooled state; non-pooled states are dropped.
func ReleaseState(s *DrawState, pooled bool) {
	if pooled {
		statePool.Put(s)
	}
}

// ApplyFill sets the fill color on the context, reporting whether a fill
// pass should run.
func (s *DrawState) ApplyFill(ctx *gg.Context) bool {
	if !s.HasFill {
		return false
	}
	ctx.SetRGBA(s.Fill.R, s.Fill.G, s.Fill.B, s.Fill.A)
	return true
}

// ApplyStroke sets the stroke color and width, reporting whether a stroke
// pass should run.
func (s *DrawState) ApplyStroke(ctx *gg.Context) bool {
	if !s.HasStroke {
		return false
	}
	ctx.SetRGBA(s.Stroke.R, s.Stroke.G, s.Stroke.B, s.Stroke.A)
	if s.LineWidth > 0 {
		ctx.SetLineWidth(s.LineWidth)
	} else {
		ctx.SetLineWidth(1)
	}
	return true
}
