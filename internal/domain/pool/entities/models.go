package entities

import "time"

// WorkerAccountModel is the durable row of a worker account
type WorkerAccountModel struct {
	ID            string     `gorm:"primaryKey;type:varchar(64)"`
	UserAPIKey    string     `gorm:"column:user_api_key;not null;index:idx_worker_accounts_owner"`
	Platform      string     `gorm:"not null;index:idx_worker_accounts_owner"`
	Status        string     `gorm:"not null;default:pending"`
	IsActive      bool       `gorm:"not null;default:true"`
	RequestLimit  int        `gorm:"not null;default:1000"`
	RequestsCount int64      `gorm:"not null;default:0"`
	LastUsed      *time.Time `gorm:"column:last_used"`
	Proxy         string     `gorm:"type:text"`

	APIID      int    `gorm:"column:api_id"`
	APIHash    string `gorm:"column:api_hash;type:text"`
	Phone      string `gorm:"type:varchar(32)"`
	SessionRef string `gorm:"column:session_ref;type:varchar(128)"`

	Token string `gorm:"type:text"`

	Login    string `gorm:"type:varchar(255)"`
	Password string `gorm:"type:text"`
	Cookies  string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for WorkerAccountModel
func (WorkerAccountModel) TableName() string {
	return "worker_accounts"
}

// TelegramSessionModel stores MTProto session data keyed by session reference
type TelegramSessionModel struct {
	SessionRef  string    `gorm:"primaryKey;type:varchar(128)"`
	SessionData []byte    `gorm:"type:bytea;not null"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for TelegramSessionModel
func (TelegramSessionModel) TableName() string {
	return "telegram_sessions"
}
