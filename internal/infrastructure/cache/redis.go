package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"chatlima-server/internal/config"
	"chatlima-server/internal/infrastructure/logger"
)

// NewRedisClient builds the shared Redis client. An unreachable server is logged, not fatal:
// usage counters fail open and the cleanup lock reports the error per run.
func NewRedisClient(cfg *config.Config) (redis.UniversalClient, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL must be provided")
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log := logger.GetLogger()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", opts.Addr).Msg("redis is not reachable at startup")
	} else {
		log.Info().Str("addr", opts.Addr).Msg("Successfully connected to Redis")
	}
	return client, nil
}
