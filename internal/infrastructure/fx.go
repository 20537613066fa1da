package infrastructure

import (
	"go.uber.org/fx"

	"github.com/Conte777/ScraperPool/internal/infrastructure/crypto"
	"github.com/Conte777/ScraperPool/internal/infrastructure/database"
	httpfx "github.com/Conte777/ScraperPool/internal/infrastructure/http"
	"github.com/Conte777/ScraperPool/internal/infrastructure/kafka"
	"github.com/Conte777/ScraperPool/internal/infrastructure/logger"
	"github.com/Conte777/ScraperPool/internal/infrastructure/metrics"
	"github.com/Conte777/ScraperPool/internal/infrastructure/proxy"
	"github.com/Conte777/ScraperPool/internal/infrastructure/redis"
)

// Module aggregates all infrastructure modules
var Module = fx.Module("infrastructure",
	logger.Module,
	database.Module,
	redis.Module,
	crypto.Module,
	metrics.Module,
	kafka.Module,
	proxy.Module,
	httpfx.Module,
)
