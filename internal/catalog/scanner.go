package catalog

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"utfgrid/internal/grid"
	"utfgrid/internal/tile"
)

type TileInfo struct {
	Z     int    `json:"z"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Path  string `json:"-"`
	Bytes int64  `json:"bytes"`
}

func (t TileInfo) Key() tile.Key {
	return tile.Key{Z: t.Z, X: t.X, Y: t.Y}
}

// Scanner indexes the grid documents stored under
// {dataDir}/{z}/{x}/{y}.json.
type Scanner struct {
	dataDir string
	name    string
	logger  *zap.Logger

	mu    sync.RWMutex
	tiles map[tile.Key]TileInfo
}

func New(dataDir string, logger *zap.Logger) *Scanner {
	return &Scanner{
		dataDir: dataDir,
		name:    filepath.Base(filepath.Clean(dataDir)),
		logger:  logger,
		tiles:   map[tile.Key]TileInfo{},
	}
}

// Name identifies the tileset in cache keys.
func (s *Scanner) Name() string {
	return s.name
}

func (s *Scanner) Scan() error {
	tiles := map[tile.Key]TileInfo{}

	if _, err := os.Stat(s.dataDir); err != nil {
		return fmt.Errorf("failed to read data directory: %w", err)
	}

	err := filepath.WalkDir(s.dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("Error walking data directory", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.IsDir() || strings.ToLower(filepath.Ext(path)) != ".json" {
			return nil
		}

		key, ok := s.parsePath(path)
		if !ok {
			return nil
		}

		info, err := s.scanTile(path, d)
		if err != nil {
			s.logger.Warn("Skipping invalid grid document", zap.String("path", path), zap.Error(err))
			return nil
		}
		info.Z, info.X, info.Y = key.Z, key.X, key.Y
		tiles[key] = *info
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan data directory: %w", err)
	}

	s.mu.Lock()
	s.tiles = tiles
	s.mu.Unlock()

	s.logger.Info("Scanned grid documents", zap.String("tileset", s.name), zap.Int("tiles", len(tiles)))
	return nil
}

// parsePath extracts z/x/y from a path relative to the data directory.
func (s *Scanner) parsePath(path string) (tile.Key, bool) {
	rel, err := filepath.Rel(s.dataDir, path)
	if err != nil {
		return tile.Key{}, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 3 {
		return tile.Key{}, false
	}

	z, errZ := strconv.Atoi(parts[0])
	x, errX := strconv.Atoi(parts[1])
	y, errY := strconv.Atoi(strings.TrimSuffix(parts[2], filepath.Ext(parts[2])))
	if errZ != nil || errX != nil || errY != nil {
		return tile.Key{}, false
	}
	if z < 0 || x < 0 || y < 0 || x >= tile.WorldTiles(z) || y >= tile.WorldTiles(z) {
		return tile.Key{}, false
	}
	return tile.Key{Z: z, X: x, Y: y}, true
}

func (s *Scanner) scanTile(path string, d fs.DirEntry) (*TileInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read grid: %w", err)
	}
	if err := grid.Validate(data); err != nil {
		return nil, err
	}

	info, err := d.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to stat grid: %w", err)
	}

	return &TileInfo{
		Path:  path,
		Bytes: info.Size(),
	}, nil
}

// GetTiles returns every indexed tile ordered by z, x, y.
func (s *Scanner) GetTiles() []TileInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TileInfo, 0, len(s.tiles))
	for _, t := range s.tiles {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Z != out[j].Z {
			return out[i].Z < out[j].Z
		}
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Y < out[j].Y
	})
	return out
}

func (s *Scanner) GetTile(key tile.Key) (TileInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tiles[key]
	return t, ok
}

// MaxZoom returns the deepest indexed zoom level, or -1 when empty.
func (s *Scanner) MaxZoom() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	max := -1
	for k := range s.tiles {
		if k.Z > max {
			max = k.Z
		}
	}
	return max
}
