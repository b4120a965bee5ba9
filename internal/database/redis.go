package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"Fixer-backend/internal/config"
)

// NewRedis builds the shared redis client used for sessions, the token
// blacklist and notification fan-out. It does not dial.
func NewRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
}

// PingRedis tests the redis connection.
func PingRedis(ctx context.Context, rdb redis.UniversalClient) error {
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
