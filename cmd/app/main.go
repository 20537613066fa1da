package main

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/Conte777/ScraperPool/config"
	"github.com/Conte777/ScraperPool/internal/app"
)

func main() {
	fx.New(
		app.CreateApp(),
		fx.Invoke(run),
	).Run()
}

func run(
	lc fx.Lifecycle,
	cfg *config.Config,
	logger zerolog.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info().
				Str("service", cfg.Service.Name).
				Str("port", cfg.Service.Port).
				Str("default_strategy", cfg.Pool.DefaultStrategy).
				Msg("Starting pool service")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("Pool service stopped")
			return nil
		},
	})
}
