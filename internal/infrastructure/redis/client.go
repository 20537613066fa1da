package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Conte777/ScraperPool/config"
)

const pingTimeout = 5 * time.Second

// NewClient creates a redis client for the fast counter store.
// An unreachable server is logged, not fatal: the store reports unavailability per call.
func NewClient(cfg *config.RedisConfig, logger zerolog.Logger) goredis.UniversalClient {
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("Redis is not reachable yet")
	} else {
		logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("Redis connected successfully")
	}

	return client
}
