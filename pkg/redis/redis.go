package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/neuroscan/neuroscan-go/internal/config"
	"github.com/redis/go-redis/v9"
)

// pingTimeout 启动时连通性检查的超时
const pingTimeout = 3 * time.Second

// NewRedisClient 创建 Redis 客户端并检查连通性
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("连接 Redis %s 失败: %w", addr, err)
	}

	return client, nil
}
