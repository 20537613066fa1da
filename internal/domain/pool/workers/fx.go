package workers

import (
	"context"

	"go.uber.org/fx"
)

// Module provides pool background workers for fx DI
var Module = fx.Module("pool-workers",
	fx.Provide(
		NewReaperWorker,
		NewSyncWorker,
		NewStatsChecker,
	),
)

// RegisterLifecycle starts the workers with the app. It must be invoked after the
// pool shutdown hook is registered so the workers stop first.
func RegisterLifecycle(lc fx.Lifecycle, reaper *ReaperWorker, syncer *SyncWorker, checker *StatsChecker) {
	for _, w := range []*periodic{reaper.periodic, syncer.periodic, checker.periodic} {
		w := w
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				w.Start()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				w.Stop()
				return nil
			},
		})
	}
}
