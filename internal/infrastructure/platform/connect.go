package platform

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Conte777/ScraperPool/config"
	"github.com/Conte777/ScraperPool/internal/domain/pool/deps"
	pkgerrors "github.com/Conte777/ScraperPool/pkg/errors"
	"github.com/Conte777/ScraperPool/pkg/retry"
)

// ConnectWithRetry connects client, retrying transient failures up to
// cfg.MaxRetries attempts with a fixed cfg.RetryDelay pause.
func ConnectWithRetry(ctx context.Context, cfg *config.ConnectionConfig, client deps.PlatformClient, logger zerolog.Logger) error {
	_, err := retry.Do(ctx, retry.Config{
		MaxAttempts: cfg.MaxRetries,
		Delay:       cfg.RetryDelay,
		RetryIf:     pkgerrors.IsTransient,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			logger.Warn().
				Err(err).
				Str("account_id", client.AccountID()).
				Int("attempt", attempt).
				Int("max_attempts", cfg.MaxRetries).
				Dur("retry_in", delay).
				Msg("Connection attempt failed, retrying")
		},
	}, func(ctx context.Context, attempt int) (struct{}, error) {
		return struct{}{}, client.Connect(ctx)
	})

	return err
}
