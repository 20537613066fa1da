package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Conte777/ScraperPool/internal/domain/pool/deps"
	"github.com/Conte777/ScraperPool/internal/domain/pool/entities"
	domainerrors "github.com/Conte777/ScraperPool/internal/domain/pool/errors"
	"github.com/Conte777/ScraperPool/internal/infrastructure/crypto"
	pkgerrors "github.com/Conte777/ScraperPool/pkg/errors"
)

type accountRepository struct {
	db     *gorm.DB
	cipher *crypto.Cipher
	logger zerolog.Logger
}

// NewAccountRepository creates the durable account store
func NewAccountRepository(db *gorm.DB, cipher *crypto.Cipher, logger zerolog.Logger) deps.AccountStore {
	return &accountRepository{
		db:     db,
		cipher: cipher,
		logger: logger.With().Str("component", "account-store").Logger(),
	}
}

// ListActiveAccounts returns active accounts of a user, least used first.
// Accounts whose durable mirror is at or over the request limit are listed after
// every account below it, so they stay available as a degraded fallback.
func (r *accountRepository) ListActiveAccounts(ctx context.Context, userKey string, platform entities.Platform, limit int) ([]*entities.WorkerAccount, error) {
	var models []entities.WorkerAccountModel
	query := r.db.WithContext(ctx).
		Where("user_api_key = ? AND platform = ?", userKey, string(platform)).
		Where("status = ? AND is_active = ?", string(entities.StatusActive), true).
		Order("CASE WHEN requests_count < request_limit THEN 0 ELSE 1 END").
		Order("requests_count ASC").
		Order("id ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	result := query.Find(&models)
	if result.Error != nil {
		return nil, pkgerrors.NewStoreUnavailableError("failed to list active accounts", result.Error)
	}

	accounts := make([]*entities.WorkerAccount, 0, len(models))
	for i := range models {
		account, err := toEntity(&models[i], r.cipher)
		if err != nil {
			r.logger.Error().
				Err(err).
				Str("account_id", models[i].ID).
				Msg("Skipping account with unreadable credentials")
			continue
		}
		accounts = append(accounts, account)
	}

	return accounts, nil
}

// UpsertUsage writes the durable usage mirror of an account
func (r *accountRepository) UpsertUsage(ctx context.Context, accountID string, platform entities.Platform, count int64, lastUsed *time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&entities.WorkerAccountModel{}).
		Where("id = ? AND platform = ?", accountID, string(platform)).
		Updates(map[string]interface{}{
			"requests_count": count,
			"last_used":      lastUsed,
		})
	if result.Error != nil {
		return pkgerrors.NewStoreUnavailableError("failed to update account usage", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrAccountNotFound
	}
	return nil
}

// GetAccount returns an account by id
func (r *accountRepository) GetAccount(ctx context.Context, accountID string) (*entities.WorkerAccount, error) {
	var model entities.WorkerAccountModel
	result := r.db.WithContext(ctx).Where("id = ?", accountID).First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrAccountNotFound
		}
		return nil, pkgerrors.NewStoreUnavailableError("failed to load account", result.Error)
	}

	return toEntity(&model, r.cipher)
}

// DeleteAccount removes the account row together with its Telegram session
func (r *accountRepository) DeleteAccount(ctx context.Context, accountID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model entities.WorkerAccountModel
		if err := tx.Where("id = ?", accountID).First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrAccountNotFound
			}
			return pkgerrors.NewStoreUnavailableError("failed to load account", err)
		}

		if model.SessionRef != "" {
			if err := tx.Where("session_ref = ?", model.SessionRef).Delete(&entities.TelegramSessionModel{}).Error; err != nil {
				return pkgerrors.NewStoreUnavailableError("failed to delete telegram session", err)
			}
		}

		if err := tx.Delete(&model).Error; err != nil {
			return pkgerrors.NewStoreUnavailableError("failed to delete account", err)
		}
		return nil
	})
}

// toEntity maps a row to a domain account, decrypting credentials
func toEntity(m *entities.WorkerAccountModel, cipher *crypto.Cipher) (*entities.WorkerAccount, error) {
	platform, ok := entities.ParsePlatform(m.Platform)
	if !ok {
		return nil, fmt.Errorf("unknown platform %q", m.Platform)
	}

	account := &entities.WorkerAccount{
		ID:            m.ID,
		OwnerUserKey:  m.UserAPIKey,
		Platform:      platform,
		Proxy:         m.Proxy,
		Status:        entities.AccountStatus(m.Status),
		IsActive:      m.IsActive,
		RequestLimit:  m.RequestLimit,
		RequestsCount: m.RequestsCount,
		LastUsed:      m.LastUsed,
	}

	switch platform {
	case entities.PlatformTelegram:
		apiHash, err := cipher.Decrypt(m.APIHash)
		if err != nil {
			return nil, fmt.Errorf("api hash: %w", err)
		}
		sessionRef := m.SessionRef
		if sessionRef == "" {
			sessionRef = m.ID
		}
		account.Telegram = &entities.TelegramCredentials{
			APIID:      m.APIID,
			APIHash:    apiHash,
			Phone:      m.Phone,
			SessionRef: sessionRef,
		}

	case entities.PlatformVK:
		token, err := cipher.Decrypt(m.Token)
		if err != nil {
			return nil, fmt.Errorf("token: %w", err)
		}
		account.VK = &entities.VKCredentials{Token: token}

	case entities.PlatformInstagram:
		password, err := cipher.Decrypt(m.Password)
		if err != nil {
			return nil, fmt.Errorf("password: %w", err)
		}
		rawCookies, err := cipher.Decrypt(m.Cookies)
		if err != nil {
			return nil, fmt.Errorf("cookies: %w", err)
		}
		cookies := map[string]string{}
		if rawCookies != "" {
			if err := json.Unmarshal([]byte(rawCookies), &cookies); err != nil {
				return nil, fmt.Errorf("cookies: %w", err)
			}
		}
		account.Instagram = &entities.InstagramCredentials{
			Login:    m.Login,
			Password: password,
			Cookies:  cookies,
		}
	}

	return account, nil
}
