// pkg/colorutil/colorutil_test.go - Unit tests for color parsing
package colorutil

import (
	"fmt"
	"testing"
)

func TestParse(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name  string
		input string
		want  *RGBA
	}{
		{"short hex", "#f00", &RGBA{R: 255, G: 0, B: 0}},
		{"long hex", "#00ff7f", &RGBA{R: 0, G: 255, B: 127}},
		{"rgb", "rgb(10, 20, 30)", &RGBA{R: 10, G: 20, B: 30}},
		{"rgba", "rgba(10, 20, 30, 0.5)", &RGBA{R: 10, G: 20, B: 30, A: 0.5, HasAlpha: true}},
		{"transparent", "transparent", &RGBA{A: 0, HasAlpha: true}},
		{"named", "orange", &RGBA{R: 255, G: 165, B: 0}},
		{"named grey alias", "grey", &RGBA{R: 128, G: 128, B: 128}},
		{"case insensitive", "#FF0000", &RGBA{R: 255, G: 0, B: 0}},
		{"garbage", "no-such-color", nil},
		{"bad hex length", "#ff00", nil},
		{"channel out of range", "rgb(300, 0, 0)", nil},
		{"alpha out of range", "rgba(0, 0, 0, 1.5)", nil},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Parse(tt.input)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("Parse(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, *got, *tt.want)
			}
		})
	}
}

func TestParseMemoized(t *testing.T) {
	p := NewParser()
	first := p.Parse("#abcdef")
	second := p.Parse("#abcdef")
	if first != second {
		t.Error("Expected memoized parse to return the same instance")
	}
}

func TestMemoTrim(t *testing.T) {
	p := NewParser()
	for i := 0; i < memoCapacity+10; i++ {
		p.Parse(fmt.Sprintf("rgb(%d, %d, 0)", i%256, i/256))
	}
	if p.memo.Len() > memoCapacity {
		t.Errorf("Memo exceeded capacity: %d", p.memo.Len())
	}
}

func TestHasAlpha(t *testing.T) {
	p := NewParser()
	if !p.HasAlpha("rgba(1, 2, 3, 0.4)") {
		t.Error("rgba must report alpha")
	}
	if p.HasAlpha("rgb(1, 2, 3)") {
		t.Error("rgb must not report alpha")
	}
	if p.HasAlpha("bogus") {
		t.Error("Unparseable input must not report alpha")
	}
}

func TestWithOpacity(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name  string
		input string
		alpha float64
		want  string
	}{
		{"hex", "#ff0000", 0.3, "rgba(255, 0, 0, 0.3)"},
		{"named", "blue", 1, "rgba(0, 0, 255, 1)"},
		{"passthrough", "conic-gradient(red)", 0.5, "conic-gradient(red)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.WithOpacity(tt.input, tt.alpha); got != tt.want {
				t.Errorf("WithOpacity(%q, %g) = %q, want %q", tt.input, tt.alpha, got, tt.want)
			}
		})
	}
}

func TestComponents(t *testing.T) {
	r, g, b, a := (RGBA{R: 255, G: 0, B: 51}).Components()
	if r != 1 || g != 0 || b != 0.2 || a != 1 {
		t.Errorf("Components = (%f, %f, %f, %f)", r, g, b, a)
	}
	_, _, _, a = (RGBA{A: 0.25, HasAlpha: true}).Components()
	if a != 0.25 {
		t.Errorf("Expected alpha 0.25, got %f", a)
	}
}
