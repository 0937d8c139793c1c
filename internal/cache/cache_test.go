package cache

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestMemoryCache_LRU(t *testing.T) {
	c := NewMemoryCache(2)
	a := TileKey{Tileset: "t", Z: 0}
	b := TileKey{Tileset: "t", Z: 1}
	d := TileKey{Tileset: "t", Z: 2}

	c.Set(a, []byte("a"))
	c.Set(b, []byte("b"))
	c.Get(a) // a is now most recent
	c.Set(d, []byte("d"))

	if !c.Has(a) || !c.Has(d) {
		t.Error("recently used entries should survive eviction")
	}
	if c.Has(b) {
		t.Error("least recently used entry should be evicted")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}

	c.Set(a, []byte("a2"))
	if got, _ := c.Get(a); string(got) != "a2" {
		t.Errorf("Get() = %q, want a2", got)
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", c.Len())
	}
}

func TestFileCache(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache() error = %v", err)
	}
	key := TileKey{Tileset: "demo", Z: 3, X: 1, Y: 2}

	if c.Has(key) {
		t.Error("Has() on empty cache = true")
	}
	c.Set(key, []byte(`{"grid":[]}`))

	got, ok := c.Get(key)
	if !ok || string(got) != `{"grid":[]}` {
		t.Errorf("Get() = (%q, %v)", got, ok)
	}
	if !c.Has(key) {
		t.Error("Has() = false after Set")
	}

	c.Clear()
	if _, ok := c.Get(key); ok {
		t.Error("Get() after Clear = true")
	}
}

func TestMemoryCache_Stats(t *testing.T) {
	c := NewMemoryCache(1)
	a := TileKey{Tileset: "t", X: 1}
	b := TileKey{Tileset: "t", X: 2}

	buf := []byte("aaaa")
	c.Set(a, buf)
	buf[0] = 'z'
	if got, _ := c.Get(a); string(got) != "aaaa" {
		t.Errorf("Get() = %q, want the bytes as they were stored", got)
	}

	c.Set(b, []byte("bb"))
	c.Get(a)

	want := MemoryStats{Hits: 1, Misses: 1, Evictions: 1, Bytes: 2}
	if got := c.Stats(); got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}

	c.Clear()
	if got := c.Stats(); got.Bytes != 0 || got.Hits != 1 {
		t.Errorf("Stats() after Clear = %+v", got)
	}
}

func TestNewMemoryCache_MinimumSize(t *testing.T) {
	c := NewMemoryCache(0)
	c.Set(TileKey{X: 1}, []byte("x"))
	if !c.Has(TileKey{X: 1}) {
		t.Error("a zero-sized cache should still hold one document")
	}
}

func TestFileCache_Layout(t *testing.T) {
	dir := t.TempDir()
	c, err := NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}

	c.Set(TileKey{Tileset: "demo", Z: 4, X: 5, Y: 6}, []byte("{}"))

	data, err := os.ReadFile(filepath.Join(dir, "demo", "4", "5", "6.json"))
	if err != nil || string(data) != "{}" {
		t.Errorf("cached file = (%q, %v)", data, err)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, "demo", "4", "5", ".grid-*"))
	if len(leftovers) != 0 {
		t.Errorf("temporary files left behind: %v", leftovers)
	}

	c.Clear()
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("cache directory removed by Clear: %v", err)
	}
}

func TestNoopCache(t *testing.T) {
	c := NewNoopCache()
	key := TileKey{}

	c.Set(key, []byte("x"))
	if _, ok := c.Get(key); ok || c.Has(key) {
		t.Error("noop cache should never hold entries")
	}
}

func TestNewCache(t *testing.T) {
	log := zap.NewNop()

	tests := []struct {
		settings Settings
		wantErr  bool
	}{
		{Settings{Type: "memory", MemoryTiles: 10}, false},
		{Settings{Type: "file", FileDir: t.TempDir()}, false},
		{Settings{Type: "disabled"}, false},
		{Settings{Type: "redis"}, true},
		{Settings{Type: "bogus"}, true},
	}

	for _, tt := range tests {
		_, err := NewCache(tt.settings, log)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewCache(%q) error = %v, wantErr %v", tt.settings.Type, err, tt.wantErr)
		}
	}
}

func TestTileKeyString(t *testing.T) {
	k := TileKey{Tileset: "demo", Z: 1, X: 2, Y: 3}
	if got := k.String(); got != "demo/1/2/3" {
		t.Errorf("String() = %q, want demo/1/2/3", got)
	}
}
