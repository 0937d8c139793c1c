package gridserver

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"regexp"

	"go.uber.org/zap"

	"utfgrid/internal/cache"
	"utfgrid/internal/catalog"
	"utfgrid/internal/grid"
	"utfgrid/internal/metrics"
	"utfgrid/internal/tile"
)

var (
	ErrTileNotFound    = errors.New("grid not found")
	ErrInvalidCallback = errors.New("invalid callback name")
)

// callbackName accepts `name` and the guarded `name && name`.
var callbackName = regexp.MustCompile(`^[A-Za-z_$][\w$.]*(\s*&&\s*[A-Za-z_$][\w$.]*)?$`)

type Server struct {
	scanner   *catalog.Scanner
	gridCache cache.Cache
	logger    *zap.Logger
}

type GridResult struct {
	Data []byte
	ETag string
	Size int
}

func New(scanner *catalog.Scanner, gridCache cache.Cache, logger *zap.Logger) *Server {
	return &Server{
		scanner:   scanner,
		gridCache: gridCache,
		logger:    logger,
	}
}

// Document returns the raw grid document for a tile.
func (s *Server) Document(z, x, y int) (*GridResult, error) {
	key := tile.Key{Z: z, X: x, Y: y}
	info, ok := s.scanner.GetTile(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTileNotFound, key)
	}

	cacheKey := cache.TileKey{
		Tileset: s.scanner.Name(),
		Z:       z,
		X:       x,
		Y:       y,
	}

	if cached, ok := s.gridCache.Get(cacheKey); ok {
		metrics.ServedGridsTotal.WithLabelValues("hit").Inc()
		return &GridResult{
			Data: cached,
			ETag: s.generateETag(cacheKey, cached),
			Size: len(cached),
		}, nil
	}

	data, err := os.ReadFile(info.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read grid: %w", err)
	}
	// The file may have changed since the last scan
	if err := grid.Validate(data); err != nil {
		s.logger.Warn("Grid document became invalid", zap.String("path", info.Path), zap.Error(err))
		return nil, err
	}

	s.gridCache.Set(cacheKey, data)
	metrics.ServedGridsTotal.WithLabelValues("miss").Inc()

	return &GridResult{
		Data: data,
		ETag: s.generateETag(cacheKey, data),
		Size: len(data),
	}, nil
}

func (s *Server) generateETag(key cache.TileKey, data []byte) string {
	hash := sha256.New()
	hash.Write([]byte(key.String()))
	hash.Write(data)
	return hex.EncodeToString(hash.Sum(nil))[:16]
}

// WrapCallback turns a document into a script invoking callback with it.
func WrapCallback(callback string, data []byte) ([]byte, error) {
	if !callbackName.MatchString(callback) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCallback, callback)
	}
	out := make([]byte, 0, len(callback)+len(data)+3)
	out = append(out, callback...)
	out = append(out, '(')
	out = append(out, data...)
	out = append(out, ");"...)
	return out, nil
}
