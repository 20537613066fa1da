package workers

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Conte777/ScraperPool/config"
)

// StatsChecker degrades live accounts whose usage went over their request limit
type StatsChecker struct {
	*periodic

	pools Maintainer
}

// NewStatsChecker creates the usage limit checker
func NewStatsChecker(pools Maintainer, cfg *config.PoolConfig, logger zerolog.Logger) *StatsChecker {
	c := &StatsChecker{pools: pools}
	c.periodic = newPeriodic("stats_checker", cfg.StatsCheckInterval, c.check, logger)
	return c
}

func (c *StatsChecker) check(ctx context.Context) {
	if degraded := c.pools.CheckUsageLimits(ctx); degraded > 0 {
		c.logger.Info().Int("degraded", degraded).Msg("Accounts over request limit moved to degraded mode")
	}
}
