package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/zoonotic-report-server/internal/domain"
)

const redisKeyPrefix = "zoonotic:classify:"

// CacheStats counts lookups per tier.
type CacheStats struct {
	MemoryHits   int64     `json:"memory_hits"`
	MemoryMisses int64     `json:"memory_misses"`
	RedisHits    int64     `json:"redis_hits"`
	RedisMisses  int64     `json:"redis_misses"`
	InnerCalls   int64     `json:"inner_calls"`
	ErrorCount   int64     `json:"error_count"`
	LastReset    time.Time `json:"last_reset"`
}

// CachedClassifier memoizes classifications by feature vector. Tier 1 is an
// in-process LRU, tier 2 an optional Redis instance shared between replicas.
type CachedClassifier struct {
	inner  domain.Classifier
	memory *lru.Cache[string, *domain.Classification]
	redis  *redis.Client
	ttl    time.Duration
	logger *logrus.Logger

	statsMu sync.Mutex
	stats   CacheStats
}

// NewCachedClassifier wraps inner. rdb may be nil to run memory-only.
func NewCachedClassifier(inner domain.Classifier, size int, rdb *redis.Client, ttl time.Duration, logger *logrus.Logger) (*CachedClassifier, error) {
	if size <= 0 {
		size = 1000
	}
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = logrus.New()
	}
	memory, err := lru.New[string, *domain.Classification](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	return &CachedClassifier{
		inner:  inner,
		memory: memory,
		redis:  rdb,
		ttl:    ttl,
		logger: logger,
		stats:  CacheStats{LastReset: time.Now()},
	}, nil
}

// NewRedisClient connects to the Redis instance described by cfg.
func NewRedisClient(ctx context.Context, cfg domain.CacheConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.PoolTimeout > 0 {
		opts.PoolTimeout = cfg.PoolTimeout
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Classify implements domain.Classifier.
func (c *CachedClassifier) Classify(ctx context.Context, features []bool) (*domain.Classification, error) {
	key := featureKey(features)

	if hit, ok := c.memory.Get(key); ok {
		c.bump(func(s *CacheStats) { s.MemoryHits++ })
		return cloneClassification(hit), nil
	}
	c.bump(func(s *CacheStats) { s.MemoryMisses++ })

	if hit := c.getFromRedis(ctx, key); hit != nil {
		c.bump(func(s *CacheStats) { s.RedisHits++ })
		c.memory.Add(key, hit)
		return cloneClassification(hit), nil
	}

	c.bump(func(s *CacheStats) { s.InnerCalls++ })
	result, err := c.inner.Classify(ctx, features)
	if err != nil {
		c.bump(func(s *CacheStats) { s.ErrorCount++ })
		return nil, err
	}

	c.memory.Add(key, cloneClassification(result))
	c.setInRedis(ctx, key, result)
	return result, nil
}

// Labels implements domain.Classifier.
func (c *CachedClassifier) Labels() []string {
	return c.inner.Labels()
}

// Stats returns a snapshot of the cache counters.
func (c *CachedClassifier) Stats() CacheStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// Purge drops every memory entry. Redis entries expire on their own.
func (c *CachedClassifier) Purge() {
	c.memory.Purge()
}

// Close releases the Redis client, if any.
func (c *CachedClassifier) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}

func (c *CachedClassifier) getFromRedis(ctx context.Context, key string) *domain.Classification {
	if c.redis == nil {
		return nil
	}
	val, err := c.redis.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		c.bump(func(s *CacheStats) { s.RedisMisses++ })
		return nil
	}
	if err != nil {
		c.logger.WithError(err).Warn("Redis classification lookup failed")
		return nil
	}

	var cached domain.Classification
	if err := json.Unmarshal(val, &cached); err != nil {
		c.redis.Del(ctx, redisKeyPrefix+key)
		return nil
	}
	return &cached
}

func (c *CachedClassifier) setInRedis(ctx context.Context, key string, result *domain.Classification) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, redisKeyPrefix+key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("Failed to cache classification in Redis")
	}
}

func (c *CachedClassifier) bump(f func(*CacheStats)) {
	c.statsMu.Lock()
	f(&c.stats)
	c.statsMu.Unlock()
}

func featureKey(features []bool) string {
	var b strings.Builder
	b.Grow(len(features))
	for _, set := range features {
		if set {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

func cloneClassification(c *domain.Classification) *domain.Classification {
	out := &domain.Classification{
		Label:         c.Label,
		Probabilities: make(map[string]float64, len(c.Probabilities)),
	}
	for k, v := range c.Probabilities {
		out.Probabilities[k] = v
	}
	return out
}
