package app

import (
	"go.uber.org/fx"

	"github.com/Conte777/ScraperPool/config"
	"github.com/Conte777/ScraperPool/internal/domain/pool"
	"github.com/Conte777/ScraperPool/internal/infrastructure"
)

// CreateApp creates the fx application options
func CreateApp() fx.Option {
	return fx.Options(
		fx.Provide(config.Out),
		infrastructure.Module,
		pool.Module,
	)
}
