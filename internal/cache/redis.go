package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// EmbeddingCache stores embeddings in Redis keyed by model and text hash
type EmbeddingCache struct {
	client redisClient
	config *Config
	logger *zap.Logger
	stats  cacheStats
}

// cacheStats tracks cache performance metrics
type cacheStats struct {
	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// NewEmbeddingCache connects to Redis and verifies the connection
func NewEmbeddingCache(config *Config, logger *zap.Logger) (*EmbeddingCache, error) {
	// Parse Redis URL
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Configure connection pool
	if config.MaxConnections > 0 {
		opts.PoolSize = config.MaxConnections
	}
	opts.MinIdleConns = config.MinIdleConns

	cache := newEmbeddingCache(redis.NewClient(opts), config, logger)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cache.Ping(ctx); err != nil {
		cache.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Embedding cache initialized successfully",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.Int("max_connections", config.MaxConnections),
		zap.Duration("ttl", config.TTL))

	return cache, nil
}

func newEmbeddingCache(client redisClient, config *Config, logger *zap.Logger) *EmbeddingCache {
	return &EmbeddingCache{
		client: client,
		config: config,
		logger: logger,
	}
}

// Ping tests the Redis connection
func (c *EmbeddingCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get returns the cached embedding for text under model. A miss is (nil, false, nil).
func (c *EmbeddingCache) Get(ctx context.Context, model, text string) ([]float32, bool, error) {
	key := c.key(model, text)

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.stats.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		c.stats.errors.Add(1)
		return nil, false, fmt.Errorf("cache lookup failed: %w", err)
	}

	var embedding []float32
	if err := json.Unmarshal(data, &embedding); err != nil || len(embedding) == 0 {
		c.logger.Warn("Dropping corrupted cache entry", zap.String("key", key))
		c.client.Del(ctx, key)
		c.stats.misses.Add(1)
		return nil, false, nil
	}

	c.stats.hits.Add(1)
	c.logger.Debug("Cache hit", zap.String("key", key))
	return embedding, true, nil
}

// Set caches embedding with the configured TTL
func (c *EmbeddingCache) Set(ctx context.Context, model, text string, embedding []float32) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding for caching: %w", err)
	}

	if err := c.client.Set(ctx, c.key(model, text), data, c.config.TTL).Err(); err != nil {
		c.stats.errors.Add(1)
		return fmt.Errorf("failed to cache embedding: %w", err)
	}
	return nil
}

// Stats returns hit and miss counters
func (c *EmbeddingCache) Stats() CacheStats {
	stats := CacheStats{
		Hits:   c.stats.hits.Load(),
		Misses: c.stats.misses.Load(),
		Errors: c.stats.errors.Load(),
	}

	// Calculate hit rate
	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}
	return stats
}

// Close closes the Redis connection
func (c *EmbeddingCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// key is <prefix>:emb:<model>:<sha256(text)>
func (c *EmbeddingCache) key(model, text string) string {
	hash := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s:emb:%s:%s", c.config.KeyPrefix, model, hex.EncodeToString(hash[:]))
}

// maskRedisURL masks sensitive information in Redis URL for logging
func maskRedisURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
