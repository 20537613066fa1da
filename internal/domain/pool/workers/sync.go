package workers

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Conte777/ScraperPool/config"
)

// SyncWorker periodically copies the fast usage counters into the durable store
type SyncWorker struct {
	*periodic

	pools Maintainer
}

// NewSyncWorker creates the periodic usage sync worker
func NewSyncWorker(pools Maintainer, cfg *config.PoolConfig, logger zerolog.Logger) *SyncWorker {
	w := &SyncWorker{pools: pools}
	w.periodic = newPeriodic("usage_sync", cfg.SyncInterval, w.sync, logger)
	return w
}

func (w *SyncWorker) sync(ctx context.Context) {
	report := w.pools.SyncStats(ctx)
	if report.Failed > 0 {
		w.logger.Warn().Int("synced", report.Synced).Int("failed", report.Failed).Msg("Usage sync finished with failures")
	}
}
