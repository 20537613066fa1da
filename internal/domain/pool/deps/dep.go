package deps

import (
	"context"
	"time"

	"github.com/Conte777/ScraperPool/internal/domain/pool/entities"
)

// AccountStore is the durable account store
type AccountStore interface {
	// ListActiveAccounts returns selectable accounts of a user, least used first,
	// capped at limit rows. Accounts at or over their request limit come last.
	ListActiveAccounts(ctx context.Context, userKey string, platform entities.Platform, limit int) ([]*entities.WorkerAccount, error)

	// UpsertUsage writes the durable usage mirror of an account
	UpsertUsage(ctx context.Context, accountID string, platform entities.Platform, count int64, lastUsed *time.Time) error

	// GetAccount returns an account by id, or a not found error
	GetAccount(ctx context.Context, accountID string) (*entities.WorkerAccount, error)

	// DeleteAccount removes an account and its session artifacts
	DeleteAccount(ctx context.Context, accountID string) error
}

// CounterStore is the fast, TTL based usage counter store
type CounterStore interface {
	// IncrementAndTouch atomically bumps the counter, stores now as last use and refreshes TTLs
	IncrementAndTouch(ctx context.Context, key entities.CounterKey, now time.Time) (int64, error)

	// Get reads the usage record; a missing record is returned with Found=false
	Get(ctx context.Context, key entities.CounterKey) (entities.UsageRecord, error)

	// Reset drops the counter and the last use timestamp
	Reset(ctx context.Context, key entities.CounterKey) error

	// Scan returns the distinct accounts whose keys match pattern
	Scan(ctx context.Context, pattern string) ([]entities.CounterKey, error)

	// Ping checks connectivity
	Ping(ctx context.Context) error
}

// PlatformClient is a live protocol client of one worker account
type PlatformClient interface {
	AccountID() string
	Connect(ctx context.Context) error
	IsConnected() bool
	IsAuthorized(ctx context.Context) (bool, error)
	MakeRequest(ctx context.Context, method string, params map[string]string) ([]byte, error)
	Disconnect(ctx context.Context) error
}

// FailureCounter is implemented by clients that track consecutive request failures
type FailureCounter interface {
	Failures() int
}

// ClientFactory turns account credentials into a live client.
// Validation failures are returned without retrying.
type ClientFactory interface {
	Platform() entities.Platform
	CreateClient(ctx context.Context, account *entities.WorkerAccount) (PlatformClient, error)
}

// EventPublisher publishes pool events without blocking the caller on delivery
type EventPublisher interface {
	Publish(ctx context.Context, event entities.PoolEvent) error
	Close() error
}

// PoolMetrics receives pool measurements
type PoolMetrics interface {
	RecordSelection(platform, strategy, result string)
	RecordSkip(platform, reason string)
	SetPoolSize(platform string, clients, degraded int)
	RecordReaped(platform string)
	RecordClientCreation(platform string, success bool)
	RecordUsage(platform string)
	RecordSync(success bool)
	ObserveThrottleWait(platform string, wait time.Duration)
}
