package redis

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/Conte777/ScraperPool/config"
)

// Module provides the redis client for fx DI
var Module = fx.Module("redis",
	fx.Provide(NewClientFx),
)

// NewClientFx creates the redis client and closes it on shutdown
func NewClientFx(lc fx.Lifecycle, cfg *config.RedisConfig, logger zerolog.Logger) goredis.UniversalClient {
	client := NewClient(cfg, logger)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("Closing redis connection")
			return client.Close()
		},
	})

	return client
}
