// Package resolver turns a pointer position into the feature under it.
package resolver

import (
	"encoding/json"
	"math"
	"strconv"

	"utfgrid/internal/grid"
	"utfgrid/internal/metrics"
	"utfgrid/internal/tile"
)

// DefaultResolution is the cell edge length in pixels.
const DefaultResolution = 4

// Lookup is the read side of the grid cache.
type Lookup interface {
	Get(key tile.Key) (*grid.Document, bool)
}

// Result is what lies under the pointer.
// Data is nil when there is no feature. Cached is false when the tile's grid
// has not been loaded; CellToken is empty then, and also when the pointer
// falls outside the document's rows.
type Result struct {
	LatLng     *tile.LatLng
	Data       json.RawMessage
	ID         any
	FeatureKey string
	Tile       tile.Key
	Cached     bool
	CellToken  string
}

// TileID returns the tile key string for cached tiles and "" otherwise.
func (r Result) TileID() string {
	if !r.Cached {
		return ""
	}
	return r.Tile.String()
}

type Resolver struct {
	cache      Lookup
	projection tile.Projection
	tileSize   int
	resolution int
}

func New(cache Lookup, projection tile.Projection, tileSize, resolution int) *Resolver {
	if tileSize <= 0 {
		tileSize = tile.DefaultSize
	}
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	if projection == nil {
		projection = tile.WebMercator{TileSize: tileSize}
	}
	return &Resolver{
		cache:      cache,
		projection: projection,
		tileSize:   tileSize,
		resolution: resolution,
	}
}

// Locate returns the wrapped tile and the cell within it for ll at zoom.
func (r *Resolver) Locate(ll tile.LatLng, zoom int) (key tile.Key, col, row int) {
	p := r.projection.Project(ll, zoom)
	return r.locatePixel(p, zoom)
}

func (r *Resolver) locatePixel(p tile.Point, zoom int) (key tile.Key, col, row int) {
	size := float64(r.tileSize)
	x := int(math.Floor(p.X / size))
	y := int(math.Floor(p.Y / size))
	col = int(math.Floor((p.X - float64(x)*size) / float64(r.resolution)))
	row = int(math.Floor((p.Y - float64(y)*size) / float64(r.resolution)))

	key = r.WrapKey(tile.Key{Z: zoom, X: x, Y: y})
	return key, col, row
}

// WorldTiles returns how many tiles span the projected world at zoom.
func (r *Resolver) WorldTiles(zoom int) int {
	return int(r.projection.Scale(zoom)) / r.tileSize
}

// WrapKey folds k into the projected world, the same way pointer
// positions are folded.
func (r *Resolver) WrapKey(k tile.Key) tile.Key {
	world := r.WorldTiles(k.Z)
	return tile.Key{Z: k.Z, X: tile.Wrap(k.X, world), Y: tile.Wrap(k.Y, world)}
}

// Resolve looks up the feature under ll. It never waits for a fetch.
func (r *Resolver) Resolve(ll tile.LatLng, zoom int) Result {
	key, col, row := r.Locate(ll, zoom)
	res := r.lookup(key, col, row)
	res.LatLng = &ll
	return res
}

func (r *Resolver) lookup(key tile.Key, col, row int) Result {
	res := Result{Tile: key}

	doc, ok := r.cache.Get(key)
	if !ok {
		metrics.ResolveTotal.WithLabelValues("miss").Inc()
		return res
	}
	res.Cached = true

	code, ok := doc.CharCode(row, col)
	if !ok {
		metrics.ResolveTotal.WithLabelValues("empty").Inc()
		return res
	}
	res.CellToken = key.String() + ":" + strconv.Itoa(code)

	featureKey, payload, ok := doc.Feature(code)
	if !ok {
		metrics.ResolveTotal.WithLabelValues("empty").Inc()
		return res
	}

	metrics.ResolveTotal.WithLabelValues("feature").Inc()
	res.FeatureKey = featureKey
	res.Data = payload
	res.ID = grid.PayloadID(payload)
	return res
}
