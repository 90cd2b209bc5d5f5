package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/Divas-Gupta30/ai-utility-suite/internal/metrics"
)

// Entry is what gets cached per uploaded file.
type Entry struct {
	FileName string `json:"file_name"`
	Response string `json:"response"`
}

// Cache stores final summaries by file name.
type Cache interface {
	Get(ctx context.Context, fileName string) (*Entry, error)
	Set(ctx context.Context, e Entry) error
}

var ErrCacheMiss = errors.New("summary not cached")

// RedisCache keeps summaries in Redis under summary:<file name>. A nil
// client turns every call into a miss, so the summarizer keeps working
// without Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// ConnectRedis dials Redis and returns a cache. When Redis cannot be
// reached the returned cache is disabled and a warning is logged.
func ConnectRedis(ctx context.Context, opts *redis.Options, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.Ping(pingCtx).Result(); err != nil {
		logger.Warn("failed to connect to Redis, summaries will not be cached",
			zap.String("addr", opts.Addr), zap.Error(err))
		_ = client.Close()
		return &RedisCache{ttl: ttl}
	}
	logger.Info("connected to Redis cache", zap.String("addr", opts.Addr))
	return &RedisCache{client: client, ttl: ttl}
}

// Connected reports whether a Redis client is in use.
func (c *RedisCache) Connected(ctx context.Context) bool {
	if c.client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.client.Ping(ctx).Err() == nil
}

func (c *RedisCache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func cacheKey(fileName string) string {
	return fmt.Sprintf("summary:%s", fileName)
}

func (c *RedisCache) Get(ctx context.Context, fileName string) (*Entry, error) {
	if c.client == nil {
		metrics.CacheMissesTotal.Inc()
		return nil, ErrCacheMiss
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	data, err := c.client.Get(ctx, cacheKey(fileName)).Result()
	if errors.Is(err, redis.Nil) {
		metrics.CacheMissesTotal.Inc()
		return nil, ErrCacheMiss
	}
	if err != nil {
		metrics.CacheMissesTotal.Inc()
		return nil, fmt.Errorf("read summary cache: %w", err)
	}

	var e Entry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		metrics.CacheMissesTotal.Inc()
		return nil, fmt.Errorf("failed to load cache: %w", err)
	}
	if e.FileName != fileName || e.Response == "" {
		metrics.CacheMissesTotal.Inc()
		return nil, ErrCacheMiss
	}
	metrics.CacheHitsTotal.Inc()
	return &e, nil
}

func (c *RedisCache) Set(ctx context.Context, e Entry) error {
	if c.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(e.FileName), data, c.ttl).Err()
}
