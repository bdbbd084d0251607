package caller

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pgx-risk-server/internal/domain"
)

// Cache stores genotype-call results in Redis keyed by sample and gene
type Cache struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewCache creates a new Redis-backed call cache
func NewCache(config domain.CacheConfig) (*Cache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing Redis URL: %w", err)
	}

	opts.PoolSize = config.PoolSize
	opts.PoolTimeout = config.PoolTimeout
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	return &Cache{
		redis:      client,
		defaultTTL: config.DefaultTTL,
	}, nil
}

type cachedCall struct {
	Result   domain.GeneCallResult `json:"result"`
	CachedAt time.Time             `json:"cached_at"`
}

func cacheKey(sampleRef, gene string) string {
	return fmt.Sprintf("pgx:call:%s:%s", sampleRef, gene)
}

// Get retrieves a cached call result. The second return reports a hit.
func (c *Cache) Get(ctx context.Context, sampleRef, gene string) (domain.GeneCallResult, bool, error) {
	val, err := c.redis.Get(ctx, cacheKey(sampleRef, gene)).Result()
	if err == redis.Nil {
		return domain.GeneCallResult{}, false, nil
	}
	if err != nil {
		return domain.GeneCallResult{}, false, fmt.Errorf("reading call cache: %w", err)
	}

	var cached cachedCall
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		return domain.GeneCallResult{}, false, fmt.Errorf("decoding cached call: %w", err)
	}
	return cached.Result, true, nil
}

// Set stores a call result with the default TTL
func (c *Cache) Set(ctx context.Context, sampleRef, gene string, result domain.GeneCallResult) error {
	payload, err := json.Marshal(cachedCall{Result: result, CachedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encoding call for cache: %w", err)
	}
	return c.redis.Set(ctx, cacheKey(sampleRef, gene), payload, c.defaultTTL).Err()
}

// Close releases the Redis connection
func (c *Cache) Close() error {
	return c.redis.Close()
}
