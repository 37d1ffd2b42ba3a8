package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/arjun-computer-geek/saas-demo/config"
	"github.com/arjun-computer-geek/saas-demo/repositories"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewClient opens a Redis client from configuration and verifies it with a ping.
// REDIS_URL wins over the discrete address fields; timeouts always come from cfg.
func NewClient(cfg config.RedisConfig, logger *zap.Logger) (*goredis.Client, error) {
	opts := &goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.URL != "" {
		parsed, err := goredis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		opts = parsed
	}
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: failed to ping redis: %v", repositories.ErrStoreUnavailable, err)
	}

	logger.Info("redis connection established", zap.String("connection", cfg.LogString()))
	return client, nil
}
