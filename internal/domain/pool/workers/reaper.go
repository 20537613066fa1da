package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Conte777/ScraperPool/config"
)

// ReaperWorker disconnects clients that have been idle longer than the idle timeout
type ReaperWorker struct {
	*periodic

	pools       Maintainer
	idleTimeout time.Duration
}

// NewReaperWorker creates the idle reaper worker
func NewReaperWorker(pools Maintainer, cfg *config.PoolConfig, logger zerolog.Logger) *ReaperWorker {
	w := &ReaperWorker{
		pools:       pools,
		idleTimeout: cfg.IdleTimeout,
	}
	w.periodic = newPeriodic("idle_reaper", cfg.ReaperInterval, w.reap, logger)
	return w
}

func (w *ReaperWorker) reap(ctx context.Context) {
	reaped := w.pools.ReapAll(ctx, w.idleTimeout)

	total := 0
	for _, n := range reaped {
		total += n
	}

	if total > 0 {
		w.logger.Info().Int("reaped", total).Dur("idle_timeout", w.idleTimeout).Msg("Idle clients disconnected")
	}
}
