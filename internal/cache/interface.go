package cache

import "fmt"

// TileKey identifies a served grid document
type TileKey struct {
	Tileset string
	Z       int
	X       int
	Y       int
}

func (k TileKey) String() string {
	return fmt.Sprintf("%s/%d/%d/%d", k.Tileset, k.Z, k.X, k.Y)
}

// Cache holds raw grid document bytes for the grid server
type Cache interface {
	Get(key TileKey) ([]byte, bool)
	Set(key TileKey, value []byte)
	Has(key TileKey) bool // Check if a document exists without reading it
	Clear()
}
