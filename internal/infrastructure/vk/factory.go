package vk

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

// Factory creates VK clients from worker accounts
type Factory struct {
	vkCfg   *config.VKConfig
	connCfg *config.ConnectionConfig
	logger  zerolog.Logger
}

// NewFactory creates a VK connection factory
func NewFactory(vkCfg *config.VKConfig, connCfg *config.ConnectionConfig, logger zerolog.Logger) *Factory {
	return &Factory{
		vkCfg:   vkCfg,
		connCfg: connCfg,
		logger:  logger.With().Str("component", "vk_factory").Logger(),
	}
}

// Platform returns entities.PlatformVK
func (f *Factory) Platform() entities.Platform {
	return entities.PlatformVK
}

// CreateClient validates the account, builds a client and connects it with retries
func (f *Factory) CreateClient(ctx context.Context, account *entities.WorkerAccount) (deps.PlatformClient, error) {
	if account == nil || account.ID == "" || account.VK == nil || account.VK.Token == "" {
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
		AccountID: account.ID,
		Token:     account.VK.Token,
		APIURL:    f.vkCfg.APIURL,
		Version:   f.vkCfg.APIVersion,
		Dial:      dial,
		Logger:    f.logger,
	})

	if err := platform.ConnectWithRetry(ctx, f.connCfg, client, f.logger); err != nil {
		return nil, err
	}

	return client, nil
}
