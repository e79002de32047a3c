// internal/tile/key.go - Tile addressing
package tile

import (
	"fmt"
	"strconv"
	"strings"
)

// Key identifies a tile in the slippy-map pyramid.
type Key struct {
	Z int
	X int
	Y int
}

// String returns the canonical "z:x:y" form used as cache and fragment key.
func (k Key) String() string {
	return fmt.Sprintf("%d:%d:%d", k.Z, k.X, k.Y)
}

// ParseKey parses the canonical "z:x:y" form.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("malformed tile key %q", s)
	}
	vals := make([]int, 3)
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil {
			return Key{}, fmt.Errorf("malformed tile key %q: %w", s, err)
		}
		vals[i] = v
	}
	return Key{Z: vals[0], X: vals[1], Y: vals[2]}, nil
}

// Parent returns the ancestor key delta zoom levels up, by right-shifting
// the x and y coordinates.
func (k Key) Parent(delta int) Key {
	if delta <= 0 {
		return k
	}
	return Key{
		Z: k.Z - delta,
		X: k.X >> uint(delta),
		Y: k.Y >> uint(delta),
	}
}

// OffsetWithin returns the tile's position within its ancestor delta
// levels up, in child-tile units.
func (k Key) OffsetWithin(delta int) (x, y int) {
	if delta <= 0 {
		return 0, 0
	}
	n := 1 << uint(delta)
	return k.X % n, k.Y % n
}
