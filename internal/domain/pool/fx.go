package pool

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/Conte777/ScraperPool/config"
	"github.com/Conte777/ScraperPool/internal/domain/pool/delivery/http"
	"github.com/Conte777/ScraperPool/internal/domain/pool/deps"
	"github.com/Conte777/ScraperPool/internal/domain/pool/repository/postgres"
	"github.com/Conte777/ScraperPool/internal/domain/pool/repository/redis"
	"github.com/Conte777/ScraperPool/internal/domain/pool/usecase/business"
	"github.com/Conte777/ScraperPool/internal/domain/pool/workers"
	"github.com/Conte777/ScraperPool/internal/infrastructure/http/server"
	"github.com/Conte777/ScraperPool/internal/infrastructure/instagram"
	"github.com/Conte777/ScraperPool/internal/infrastructure/proxy"
	"github.com/Conte777/ScraperPool/internal/infrastructure/telegram"
	"github.com/Conte777/ScraperPool/internal/infrastructure/vk"
)

// Module provides the account pool domain for fx DI
var Module = fx.Module("pool",
	fx.Provide(
		postgres.NewAccountRepository,
		redis.NewCounterRepository,
		telegram.NewFactory,
		vk.NewFactory,
		instagram.NewFactory,
		newPools,
		business.NewUsageService,
		business.NewRegistry,
		func(r *business.Registry) workers.Maintainer { return r },
		func(r *business.Registry) http.PoolAdmin { return r },
		func(p *proxy.Prober) http.ProxyChecker { return p },
		http.NewHandler,
		http.NewRouter,
	),
	workers.Module,
	fx.Invoke(
		registerRoutes,
		registerShutdown,
		workers.RegisterLifecycle,
	),
)

type poolsParams struct {
	fx.In

	Config    *config.PoolConfig
	Accounts  deps.AccountStore
	Counters  deps.CounterStore
	Telegram  *telegram.Factory
	VK        *vk.Factory
	Instagram *instagram.Factory
	Events    deps.EventPublisher
	Metrics   deps.PoolMetrics
	Logger    zerolog.Logger
}

// newPools builds one pool per platform
func newPools(p poolsParams) []*business.Pool {
	factories := []deps.ClientFactory{p.Telegram, p.VK, p.Instagram}

	pools := make([]*business.Pool, 0, len(factories))
	for _, f := range factories {
		pools = append(pools, business.NewPool(business.PoolParams{
			Platform: f.Platform(),
			Config:   p.Config,
			Accounts: p.Accounts,
			Counters: p.Counters,
			Factory:  f,
			Events:   p.Events,
			Metrics:  p.Metrics,
			Logger:   p.Logger,
		}))
	}

	p.Logger.Info().Int("pools", len(pools)).Strs("platforms", platformNames(pools)).Msg("Account pools created")
	return pools
}

func platformNames(pools []*business.Pool) []string {
	out := make([]string, 0, len(pools))
	for _, p := range pools {
		out = append(out, string(p.Platform()))
	}
	return out
}

// registerRoutes registers admin HTTP routes on the server
func registerRoutes(srv *server.Server, router *http.Router) {
	router.RegisterRoutes(srv.Router)
}

// registerShutdown disconnects every live client when the app stops
func registerShutdown(lc fx.Lifecycle, registry *business.Registry, logger zerolog.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("Shutting down account pools")
			return registry.Shutdown(ctx)
		},
	})
}
