package persistence

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-assistant/internal/config"
)

// NewRedisClient builds the go-redis handle used by the cache layer. It does
// not dial; connection state is owned by cache.Client. A nil client means no
// store was configured and the cache runs as pass-through.
func NewRedisClient(cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	if cfg.URL != "" {
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, err
		}
		logger.Info("redis configured from url", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
		return redis.NewClient(opts), nil
	}
	if cfg.Addr == "" {
		logger.Warn("REDIS_URL and REDIS_ADDR not provided; running without cache")
		return nil, nil
	}
	logger.Info("redis configured", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), nil
}
