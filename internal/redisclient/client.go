package redisclient

import (
	"context"
	"fmt"

	"news-radar/internal/config"

	"github.com/redis/go-redis/v9"
)

// New creates a Redis client from configuration without contacting the server.
func New(cfg config.RedisConfig) *redis.Client {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.Timeout > 0 {
		opts.DialTimeout = cfg.Timeout
		opts.ReadTimeout = cfg.Timeout
		opts.WriteTimeout = cfg.Timeout
	}
	return redis.NewClient(opts)
}

// Connect creates a client and pings it. The client is closed when the ping
// fails.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := New(cfg)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}
