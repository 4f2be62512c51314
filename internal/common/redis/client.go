package redis

import (
	"context"
	"fmt"

	"wisefido-vitaldrift/internal/common/config"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient 创建Redis客户端并验证连接
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}
