// pkg/colorutil/colorutil.go - Color string parsing and opacity helpers
package colorutil

import (
	"fmt"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// RGBA is a parsed color with an optional alpha channel.
type RGBA struct {
	R, G, B  int
	A        float64
	HasAlpha bool
}

// Components returns the color channels normalized to [0, 1] for canvas use.
func (c RGBA) Components() (r, g, b, a float64) {
	a = 1.0
	if c.HasAlpha {
		a = c.A
	}
	return float64(c.R) / 255, float64(c.G) / 255, float64(c.B) / 255, a
}

// memoCapacity bounds the parse cache; on overflow it is trimmed to 70%.
const memoCapacity = 500

var namedColors = map[string]RGBA{
	"black":   {R: 0, G: 0, B: 0},
	"white":   {R: 255, G: 255, B: 255},
	"red":     {R: 255, G: 0, B: 0},
	"green":   {R: 0, G: 128, B: 0},
	"blue":    {R: 0, G: 0, B: 255},
	"yellow":  {R: 255, G: 255, B: 0},
	"cyan":    {R: 0, G: 255, B: 255},
	"magenta": {R: 255, G: 0, B: 255},
	"orange":  {R: 255, G: 165, B: 0},
	"purple":  {R: 128, G: 0, B: 128},
	"gray":    {R: 128, G: 128, B: 128},
	"grey":    {R: 128, G: 128, B: 128},
}

// Parser is a memoizing color-string parser. The zero value is not usable;
// construct with NewParser. Instances are intended to be shared per source.
type Parser struct {
	memo *lru.Cache[string, *RGBA]
}

// NewParser creates a parser with a bounded memo cache.
func NewParser() *Parser {
	memo, _ := lru.New[string, *RGBA](memoCapacity)
	return &Parser{memo: memo}
}

// Parse parses a color string, returning nil for unrecognized input.
// Recognized forms: #rgb, #rrggbb, rgb(...), rgba(...), transparent,
// and a small named-color table.
func (p *Parser) Parse(s string) *RGBA {
	if cached, ok := p.memo.Get(s); ok {
		return cached
	}

	parsed := parseColor(s)
	if p.memo.Len() >= memoCapacity {
		p.trim()
	}
	p.memo.Add(s, parsed)
	return parsed
}

// trim drops the oldest entries until the memo is at 70% capacity.
func (p *Parser) trim() {
	target := memoCapacity * 7 / 10
	for p.memo.Len() > target {
		p.memo.RemoveOldest()
	}
}

// HasAlpha reports whether the color string carries an explicit alpha channel.
func (p *Parser) HasAlpha(s string) bool {
	c := p.Parse(s)
	return c != nil && c.HasAlpha
}

// WithOpacity re-emits the color as rgba(r, g, b, alpha). Unparseable
// input is returned unchanged.
func (p *Parser) WithOpacity(s string, alpha float64) string {
	c := p.Parse(s)
	if c == nil {
		return s
	}
	return fmt.Sprintf("rgba(%d, %d, %d, %g)", c.R, c.G, c.B, alpha)
}

func parseColor(s string) *RGBA {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return nil
	}

	if s == "transparent" {
		return &RGBA{R: 0, G: 0, B: 0, A: 0, HasAlpha: true}
	}

	if named, ok := namedColors[s]; ok {
		c := named
		return &c
	}

	if strings.HasPrefix(s, "#") {
		return parseHex(s[1:])
	}

	if strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")") {
		return parseChannels(s[5:len(s)-1], true)
	}

	if strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")") {
		return parseChannels(s[4:len(s)-1], false)
	}

	return nil
}

func parseHex(hex string) *RGBA {
	switch len(hex) {
	case 3:
		r, err1 := strconv.ParseUint(strings.Repeat(string(hex[0]), 2), 16, 8)
		g, err2 := strconv.ParseUint(strings.Repeat(string(hex[1]), 2), 16, 8)
		b, err3 := strconv.ParseUint(strings.Repeat(string(hex[2]), 2), 16, 8)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil
		}
		return &RGBA{R: int(r), G: int(g), B: int(b)}
	case 6:
		r, err1 := strconv.ParseUint(hex[0:2], 16, 8)
		g, err2 := strconv.ParseUint(hex[2:4], 16, 8)
		b, err3 := strconv.ParseUint(hex[4:6], 16, 8)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil
		}
		return &RGBA{R: int(r), G: int(g), B: int(b)}
	default:
		return nil
	}
}

func parseChannels(body string, withAlpha bool) *RGBA {
	parts := strings.Split(body, ",")
	want := 3
	if withAlpha {
		want = 4
	}
	if len(parts) != want {
		return nil
	}

	channels := make([]int, 3)
	for i := 0; i < 3; i++ {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || v < 0 || v > 255 {
			return nil
		}
		channels[i] = v
	}

	c := &RGBA{R: channels[0], G: channels[1], B: channels[2]}
	if withAlpha {
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil || a < 0 || a > 1 {
			return nil
		}
		c.A = a
		c.HasAlpha = true
	}
	return c
}
