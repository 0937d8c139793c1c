package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "utfgrid:grid:"

// RedisCache shares served documents between server instances
type RedisCache struct {
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
	logger  *zap.Logger
}

// NewRedisCache wraps client; ttl of zero keeps entries until Clear
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	return &RedisCache{
		client:  client,
		ttl:     ttl,
		timeout: 500 * time.Millisecond,
		logger:  logger,
	}
}

func (c *RedisCache) key(key TileKey) string {
	return redisKeyPrefix + key.String()
}

func (c *RedisCache) Get(key TileKey) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Redis get failed", zap.String("key", key.String()), zap.Error(err))
		}
		return nil, false
	}
	return data, true
}

func (c *RedisCache) Set(key TileKey, value []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.client.Set(ctx, c.key(key), value, c.ttl).Err(); err != nil {
		c.logger.Warn("Redis set failed", zap.String("key", key.String()), zap.Error(err))
	}
}

func (c *RedisCache) Has(key TileKey) bool {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	n, err := c.client.Exists(ctx, c.key(key)).Result()
	return err == nil && n > 0
}

func (c *RedisCache) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*c.timeout)
	defer cancel()

	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 500).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 500 {
			c.client.Del(ctx, batch...)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		c.client.Del(ctx, batch...)
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("Redis clear failed", zap.Error(err))
	}
}
