package instagram

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/Conte777/ScraperPool/config"
	"github.com/Conte777/ScraperPool/internal/domain/pool/deps"
	"github.com/Conte777/ScraperPool/internal/domain/pool/entities"
	domainerrors "github.com/Conte777/ScraperPool/internal/domain/pool/errors"
	"github.com/Conte777/ScraperPool/internal/infrastructure/platform"
	"github.com/Conte777/ScraperPool/internal/infrastructure/proxy"
)

const proxyDialTimeout = 15 * time.Second

// Factory creates Instagram clients from worker accounts
type Factory struct {
	igCfg   *config.InstagramConfig
	connCfg *config.ConnectionConfig
	logger  zerolog.Logger
}

// NewFactory creates an Instagram connection factory
func NewFactory(igCfg *config.InstagramConfig, connCfg *config.ConnectionConfig, logger zerolog.Logger) *Factory {
	return &Factory{
		igCfg:   igCfg,
		connCfg: connCfg,
		logger:  logger.With().Str("component", "instagram_factory").Logger(),
	}
}

// Platform returns entities.PlatformInstagram
func (f *Factory) Platform() entities.Platform {
	return entities.PlatformInstagram
}

// CreateClient validates the account, builds a client and verifies its session with retries
func (f *Factory) CreateClient(ctx context.Context, account *entities.WorkerAccount) (deps.PlatformClient, error) {
	if account == nil || account.ID == "" || account.Instagram == nil || account.Instagram.Login == "" {
		return nil, domainerrors.ErrMissingCredentials
	}

	var dial fasthttp.DialFunc
	if account.Proxy != "" {
		px, err := proxy.Parse(account.Proxy)
		if err != nil {
			return nil, err
		}
		dial = px.DialFunc(proxyDialTimeout)
	}

	client := NewClient(ClientConfig{
		AccountID:   account.ID,
		Login:       account.Instagram.Login,
		Cookies:     account.Instagram.Cookies,
		APIURL:      f.igCfg.APIURL,
		MaxFailures: f.igCfg.MaxFailures,
		Dial:        dial,
		Logger:      f.logger,
	})

	if err := platform.ConnectWithRetry(ctx, f.connCfg, client, f.logger); err != nil {
		return nil, err
	}

	return client, nil
}
