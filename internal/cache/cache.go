package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-assistant/internal/observability"
)

const (
	defaultOpTimeout      = 2 * time.Second
	defaultScanBatchSize  = 100
	defaultMaxScanBatches = 1000
)

// Recorder receives lookup outcomes. *observability.Metrics satisfies it.
type Recorder interface {
	RecordCache(namespace string, outcome observability.CacheOutcome)
}

// Options tunes store access.
type Options struct {
	OpTimeout      time.Duration
	ScanBatchSize  int64
	MaxScanBatches int
	Recorder       Recorder
}

// Cache is the cache-aside layer. Every method degrades to a no-op or a miss
// when the store is unavailable; none of them returns a store error.
type Cache struct {
	client     *Client
	logger     *zap.Logger
	recorder   Recorder
	opTimeout  time.Duration
	scanBatch  int64
	maxBatches int
}

// New builds a Cache over client. A nil client yields a pass-through cache.
func New(client *Client, logger *zap.Logger, opts Options) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cache{
		client:     client,
		logger:     logger,
		recorder:   opts.Recorder,
		opTimeout:  opts.OpTimeout,
		scanBatch:  opts.ScanBatchSize,
		maxBatches: opts.MaxScanBatches,
	}
	if c.opTimeout <= 0 {
		c.opTimeout = defaultOpTimeout
	}
	if c.scanBatch <= 0 {
		c.scanBatch = defaultScanBatchSize
	}
	if c.maxBatches <= 0 {
		c.maxBatches = defaultMaxScanBatches
	}
	return c
}

// Available reports whether the store is currently used.
func (c *Cache) Available() bool {
	return c != nil && c.client.Ready()
}

// Client exposes the underlying client for health checks and probing.
func (c *Cache) Client() *Client {
	if c == nil {
		return nil
	}
	return c.client
}

// Get decodes the cached value for key into dest and reports a hit.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	if !c.Available() {
		c.record(key, observability.CacheBypass)
		return false
	}
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	raw, err := c.client.store().Get(opCtx, key).Result()
	if errors.Is(err, redis.Nil) {
		c.record(key, observability.CacheMiss)
		return false
	}
	if err != nil {
		return ignore(ctx, c, "get", key, false, err)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		c.logger.Warn("cache entry undecodable; treating as miss", zap.String("key", key), zap.Error(err))
		c.record(key, observability.CacheMiss)
		return false
	}
	c.record(key, observability.CacheHit)
	return true
}

// Set stores value under key for ttl and reports whether it was written.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if !c.Available() {
		return false
	}
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache value not serializable", zap.String("key", key), zap.Error(err))
		return false
	}
	return c.setRaw(ctx, key, data, ttl)
}

func (c *Cache) setRaw(ctx context.Context, key string, data []byte, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.store().Set(opCtx, key, string(data), ttl).Err(); err != nil {
		return ignore(ctx, c, "set", key, false, err)
	}
	return true
}

// Delete removes keys and reports whether the store accepted the command.
func (c *Cache) Delete(ctx context.Context, keys ...string) bool {
	if len(keys) == 0 || !c.Available() {
		return false
	}
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.store().Del(opCtx, keys...).Err(); err != nil {
		return ignore(ctx, c, "del", keys[0], false, err)
	}
	return true
}

// DeleteByPrefix removes every key matching a glob pattern such as "tickets:*".
// Iteration is bounded by MaxScanBatches SCAN round trips.
func (c *Cache) DeleteByPrefix(ctx context.Context, pattern string) bool {
	if !c.Available() {
		return false
	}
	store := c.client.store()
	var cursor uint64
	deleted := 0
	for batch := 0; batch < c.maxBatches; batch++ {
		keys, next, err := c.scan(ctx, store, cursor, pattern)
		if err != nil {
			return ignore(ctx, c, "scan", pattern, false, err)
		}
		if len(keys) > 0 {
			if !c.Delete(ctx, keys...) {
				return false
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			c.logger.Debug("cache pattern invalidated", zap.String("pattern", pattern), zap.Int("deleted", deleted))
			return true
		}
	}
	c.logger.Warn("cache pattern scan budget exhausted",
		zap.String("pattern", pattern),
		zap.Int("deleted", deleted),
		zap.Int("max_batches", c.maxBatches))
	return false
}

func (c *Cache) scan(ctx context.Context, store redis.UniversalClient, cursor uint64, pattern string) ([]string, uint64, error) {
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	return store.Scan(opCtx, cursor, pattern, c.scanBatch).Result()
}

// InvalidateResource drops every key of a resource namespace.
func (c *Cache) InvalidateResource(ctx context.Context, resource string) bool {
	return c.DeleteByPrefix(ctx, resource+":*")
}

// Clear flushes the whole cache database.
func (c *Cache) Clear(ctx context.Context) bool {
	if !c.Available() {
		return false
	}
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.store().FlushDB(opCtx).Err(); err != nil {
		return ignore(ctx, c, "flushdb", "*", false, err)
	}
	return true
}

// GetOrCompute returns the cached value for key, or calls compute exactly once,
// stores its result best-effort and returns it. Errors from compute are
// returned unchanged; the cache never contributes an error.
func GetOrCompute[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var cached T
	if c.Get(ctx, key, &cached) {
		return cached, nil
	}

	value, err := compute(ctx)
	if err != nil {
		return value, err
	}
	if !c.Available() {
		return value, nil
	}
	data, mErr := json.Marshal(value)
	if mErr != nil {
		c.logger.Warn("cache value not serializable", zap.String("key", key), zap.Error(mErr))
		return value, nil
	}
	// a nil result is recomputed next time rather than cached
	if string(data) != "null" {
		c.setRaw(ctx, key, data, ttl)
	}
	return value, nil
}

func (c *Cache) record(key string, outcome observability.CacheOutcome) {
	if c == nil || c.recorder == nil {
		return
	}
	c.recorder.RecordCache(namespace(key), outcome)
}
