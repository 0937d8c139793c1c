package cache

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Settings selects and sizes a cache backend
type Settings struct {
	Type        string
	FileDir     string
	MemoryTiles int
	Redis       *redis.Client
	RedisTTL    time.Duration
}

// NewCache creates a cache instance based on the cache type
func NewCache(s Settings, log *zap.Logger) (Cache, error) {
	switch s.Type {
	case "memory":
		log.Info("Using memory cache", zap.Int("max_tiles", s.MemoryTiles))
		return NewMemoryCache(s.MemoryTiles), nil
	case "file":
		log.Info("Using file cache", zap.String("cache_dir", s.FileDir))
		return NewFileCache(s.FileDir)
	case "redis":
		if s.Redis == nil {
			return nil, fmt.Errorf("redis cache selected without a redis client")
		}
		log.Info("Using redis cache", zap.String("addr", s.Redis.Options().Addr), zap.Duration("ttl", s.RedisTTL))
		return NewRedisCache(s.Redis, s.RedisTTL, log), nil
	case "disabled":
		log.Info("Cache disabled")
		return NewNoopCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache type: %s (supported: memory, file, redis, disabled)", s.Type)
	}
}
