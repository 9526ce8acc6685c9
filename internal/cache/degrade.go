package cache

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-assistant/internal/observability"
)

// ignore logs a store failure and yields fallback in its place. Unless the
// caller's own context ended, the client is marked Failed so later calls skip
// the store until a probe succeeds.
func ignore[T any](ctx context.Context, c *Cache, op, key string, fallback T, err error) T {
	c.record(key, observability.CacheDegraded)
	if ctx.Err() != nil {
		c.logger.Debug("cache op abandoned", zap.String("op", op), zap.String("key", key), zap.Error(err))
		return fallback
	}
	c.logger.Warn("cache op failed", zap.String("op", op), zap.String("key", key), zap.Error(err))
	c.client.fail(err)
	return fallback
}
