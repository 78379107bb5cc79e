package idempotency

import (
	"context"
	"fmt"
	"time"

	"fixer-purse-ledger/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const keyPrefix = "purse-ledger:workflow:"

// RedisGuard marks a workflow key as taken for ttl so a re-delivered webhook or
// a double-clicked admin action is rejected before it reaches the store
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// Connect opens and pings a Redis client; callers run without a guard when it fails
func Connect(ctx context.Context, cfg models.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			zap.L().Warn("Failed to close redis client", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	zap.L().Info("Redis connection established", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return client, nil
}

func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, ttl: ttl}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string) (bool, error) {
	acquired, err := g.client.SetNX(ctx, keyPrefix+key, "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire %s: %w", key, err)
	}
	if !acquired {
		zap.L().Warn("Workflow key already held", zap.String("key", key))
	}
	return acquired, nil
}

func (g *RedisGuard) Release(ctx context.Context, key string) {
	if err := g.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		zap.L().Warn("Failed to release workflow key", zap.String("key", key), zap.Error(err))
	}
}
