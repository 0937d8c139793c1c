package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// FileCache stores served grid documents on disk in the same layout the
// catalog reads: {dir}/{tileset}/{z}/{x}/{y}.json. Writes go through a
// temporary file and a rename, so readers never see a partial document.
type FileCache struct {
	dir string
	// clearing holds writers off while the tree is removed
	clearing sync.RWMutex
}

func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileCache{dir: dir}, nil
}

func (c *FileCache) path(key TileKey) string {
	return filepath.Join(c.dir, key.Tileset, strconv.Itoa(key.Z), strconv.Itoa(key.X), strconv.Itoa(key.Y)+".json")
}

func (c *FileCache) Has(key TileKey) bool {
	info, err := os.Stat(c.path(key))
	return err == nil && info.Mode().IsRegular()
}

func (c *FileCache) Get(key TileKey) ([]byte, bool) {
	doc, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}
	return doc, true
}

// Set is best effort: a document that cannot be written is simply not cached.
func (c *FileCache) Set(key TileKey, doc []byte) {
	c.clearing.RLock()
	defer c.clearing.RUnlock()

	target := c.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".grid-*")
	if err != nil {
		return
	}
	_, werr := tmp.Write(doc)
	cerr := tmp.Close()
	if werr != nil || cerr != nil || os.Rename(tmp.Name(), target) != nil {
		os.Remove(tmp.Name())
	}
}

func (c *FileCache) Clear() {
	c.clearing.Lock()
	defer c.clearing.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		os.RemoveAll(filepath.Join(c.dir, e.Name()))
	}
}
