package telegram

import (
	"context"
	"time"

	"github.com/gotd/td/session"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Conte777/ScraperPool/config"
	"github.com/Conte777/ScraperPool/internal/domain/pool/deps"
	"github.com/Conte777/ScraperPool/internal/domain/pool/entities"
	domainerrors "github.com/Conte777/ScraperPool/internal/domain/pool/errors"
	"github.com/Conte777/ScraperPool/internal/infrastructure/platform"
	"github.com/Conte777/ScraperPool/internal/infrastructure/proxy"
)

const proxyDialTimeout = 15 * time.Second

// SessionStorageFunc opens the session storage for a session reference
type SessionStorageFunc func(sessionRef string) (session.Storage, error)

// Factory creates MTProto clients from worker accounts
type Factory struct {
	tgCfg       *config.TelegramConfig
	connCfg     *config.ConnectionConfig
	openStorage SessionStorageFunc
	logger      zerolog.Logger
}

// NewFactory creates a Telegram connection factory backed by PostgreSQL sessions
func NewFactory(db *gorm.DB, tgCfg *config.TelegramConfig, connCfg *config.ConnectionConfig, logger zerolog.Logger) *Factory {
	return NewFactoryWithStorage(func(ref string) (session.Storage, error) {
		return NewPostgresSessionStorage(db, ref)
	}, tgCfg, connCfg, logger)
}

// NewFactoryWithStorage creates a factory with a custom session storage opener
func NewFactoryWithStorage(open SessionStorageFunc, tgCfg *config.TelegramConfig, connCfg *config.ConnectionConfig, logger zerolog.Logger) *Factory {
	return &Factory{
		tgCfg:       tgCfg,
		connCfg:     connCfg,
		openStorage: open,
		logger:      logger.With().Str("component", "telegram_factory").Logger(),
	}
}

// Platform returns entities.PlatformTelegram
func (f *Factory) Platform() entities.Platform {
	return entities.PlatformTelegram
}

// CreateClient validates the account and connects an MTProto client with retries.
// The returned client may still be unauthorized.
func (f *Factory) CreateClient(ctx context.Context, account *entities.WorkerAccount) (deps.PlatformClient, error) {
	client, err := f.newClient(account)
	if err != nil {
		return nil, err
	}

	if err := platform.ConnectWithRetry(ctx, f.connCfg, client, f.logger); err != nil {
		return nil, err
	}

	return client, nil
}

func (f *Factory) newClient(account *entities.WorkerAccount) (*MTProtoClient, error) {
	if account == nil || account.ID == "" || account.Telegram == nil {
		return nil, domainerrors.ErrMissingCredentials
	}

	creds := account.Telegram
	apiID, apiHash := creds.APIID, creds.APIHash
	if apiID == 0 || apiHash == "" {
		apiID, apiHash = f.tgCfg.APIID, f.tgCfg.APIHash
	}
	if apiID == 0 || apiHash == "" {
		return nil, domainerrors.ErrMissingCredentials
	}

	sessionRef := creds.SessionRef
	if sessionRef == "" {
		sessionRef = account.ID
	}

	var dial proxy.ContextDialFunc
	if account.Proxy != "" {
		px, err := proxy.Parse(account.Proxy)
		if err != nil {
			return nil, err
		}
		if dial, err = px.ContextDialer(proxyDialTimeout); err != nil {
			return nil, err
		}
	}

	storage, err := f.openStorage(sessionRef)
	if err != nil {
		return nil, err
	}

	return NewMTProtoClient(MTProtoClientConfig{
		AccountID:      account.ID,
		APIID:          apiID,
		APIHash:        apiHash,
		Phone:          creds.Phone,
		SessionStorage: storage,
		Dial:           dial,
		Logger:         f.logger,
	})
}
