package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/growmate-app/growmate/internal/config"
)

// NewClient connects to Redis and fails fast if the server is
// unreachable. Chat history, refresh tokens, and rate limiting all
// depend on it.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	slog.Info("connected to redis", "addr", cfg.Addr(), "db", cfg.DB)
	return client, nil
}
