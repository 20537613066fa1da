package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/gotd/td/session"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Conte777/ScraperPool/internal/domain/pool/entities"
)

// PostgresSessionStorage implements session.Storage on the telegram_sessions table
type PostgresSessionStorage struct {
	db         *gorm.DB
	sessionRef string
}

// NewPostgresSessionStorage creates a session storage bound to one session reference
func NewPostgresSessionStorage(db *gorm.DB, sessionRef string) (*PostgresSessionStorage, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if sessionRef == "" {
		return nil, fmt.Errorf("session reference is required")
	}

	return &PostgresSessionStorage{
		db:         db,
		sessionRef: sessionRef,
	}, nil
}

// LoadSession loads session data, session.ErrNotFound when nothing is stored yet
func (s *PostgresSessionStorage) LoadSession(ctx context.Context) ([]byte, error) {
	var sess entities.TelegramSessionModel
	result := s.db.WithContext(ctx).Where("session_ref = ?", s.sessionRef).First(&sess)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, session.ErrNotFound
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load session: %w", result.Error)
	}

	if len(sess.SessionData) == 0 {
		return nil, session.ErrNotFound
	}

	return sess.SessionData, nil
}

// StoreSession upserts session data
func (s *PostgresSessionStorage) StoreSession(ctx context.Context, data []byte) error {
	sess := entities.TelegramSessionModel{
		SessionRef:  s.sessionRef,
		SessionData: data,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_ref"}},
		DoUpdates: clause.AssignmentColumns([]string{"session_data", "updated_at"}),
	}).Create(&sess).Error
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	return nil
}

// SessionRef returns the session reference this storage is bound to
func (s *PostgresSessionStorage) SessionRef() string {
	return s.sessionRef
}

var _ session.Storage = (*PostgresSessionStorage)(nil)
