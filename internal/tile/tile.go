// Package tile holds slippy-map tile identities, the Web Mercator projection
// used to turn pointer coordinates into world pixels, and tile URL sources.
package tile

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// DefaultSize is the tile edge length in pixels.
const DefaultSize = 256

// Key identifies one tile. The string form is "x:y:z".
type Key struct {
	Z int
	X int
	Y int
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%d:%d", k.X, k.Y, k.Z)
}

// Wrap folds the column and row into the world at the key's zoom level.
func (k Key) Wrap() Key {
	n := WorldTiles(k.Z)
	return Key{Z: k.Z, X: Wrap(k.X, n), Y: Wrap(k.Y, n)}
}

// Tile converts a wrapped key into an orb maptile.
func (k Key) Tile() maptile.Tile {
	w := k.Wrap()
	return maptile.New(uint32(w.X), uint32(w.Y), maptile.Zoom(w.Z))
}

// Bound returns the lon/lat bounds of the tile.
func (k Key) Bound() orb.Bound {
	return k.Tile().Bound()
}

// WorldTiles returns how many tiles span the world at zoom z.
func WorldTiles(z int) int {
	if z <= 0 {
		return 1
	}
	return 1 << uint(z)
}

// Wrap returns v modulo n, always in [0, n).
func Wrap(v, n int) int {
	if n <= 0 {
		return 0
	}
	return ((v % n) + n) % n
}

// LatLng is a geographic coordinate in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point is a pixel coordinate in the projected world at some zoom.
type Point struct {
	X float64
	Y float64
}

// Projection converts geographic coordinates to world pixels.
type Projection interface {
	Project(ll LatLng, zoom int) Point
	// Scale returns the world width in pixels at zoom.
	Scale(zoom int) float64
}

// WebMercator is the spherical mercator projection used by slippy maps.
type WebMercator struct {
	TileSize int
}

func (p WebMercator) Project(ll LatLng, zoom int) Point {
	f := maptile.Fraction(orb.Point{ll.Lng, ll.Lat}, maptile.Zoom(zoom))
	size := float64(p.size())
	return Point{X: f[0] * size, Y: f[1] * size}
}

func (p WebMercator) Scale(zoom int) float64 {
	return float64(p.size()) * math.Exp2(float64(zoom))
}

func (p WebMercator) size() int {
	if p.TileSize <= 0 {
		return DefaultSize
	}
	return p.TileSize
}
