package metrics

import (
	"go.uber.org/fx"

	"github.com/Conte777/ScraperPool/internal/domain/pool/deps"
)

// Module provides metrics for fx DI
var Module = fx.Module("metrics",
	fx.Provide(
		GetDefaultMetrics,
		func(m *Metrics) deps.PoolMetrics { return m },
	),
)
