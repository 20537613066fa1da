package business

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Conte777/ScraperPool/config"
	"github.com/Conte777/ScraperPool/internal/domain/pool/deps"
	"github.com/Conte777/ScraperPool/internal/domain/pool/entities"
	domainerrors "github.com/Conte777/ScraperPool/internal/domain/pool/errors"
)

const disconnectTimeout = 10 * time.Second

// entry is the pool's live view of one worker account.
// An entry always owns a client; entries without one are never stored.
type entry struct {
	accountID    string
	client       *Client
	authState    entities.AuthState
	requestLimit int
	createdAt    time.Time

	// lastSelected and selectSeq order round robin between usage records
	lastSelected time.Time
	selectSeq    uint64
}

// PoolParams holds the dependencies of a Pool
type PoolParams struct {
	Platform entities.Platform
	Config   *config.PoolConfig
	Accounts deps.AccountStore
	Counters deps.CounterStore
	Factory  deps.ClientFactory
	Events   deps.EventPublisher
	Metrics  deps.PoolMetrics
	Logger   zerolog.Logger
}

// Pool holds the live clients of one platform and selects accounts for users
type Pool struct {
	platform entities.Platform
	cfg      config.PoolConfig
	throttle ThrottleConfig

	accounts deps.AccountStore
	counters deps.CounterStore
	factory  deps.ClientFactory
	events   deps.EventPublisher
	metrics  deps.PoolMetrics
	logger   zerolog.Logger

	mu       sync.RWMutex
	entries  map[string]*entry
	degraded map[string]struct{}
	seq      uint64
	closed   bool

	creating singleflight.Group

	now      func() time.Time
	randIntn func(n int) int
}

// NewPool creates the pool of one platform
func NewPool(p PoolParams) *Pool {
	cfg := p.Config.ForPlatform(string(p.Platform))

	return &Pool{
		platform: p.Platform,
		cfg:      cfg,
		throttle: NewThrottleConfig(&cfg),
		accounts: p.Accounts,
		counters: p.Counters,
		factory:  p.Factory,
		events:   p.Events,
		metrics:  p.Metrics,
		logger:   p.Logger.With().Str("component", "pool").Str("platform", string(p.Platform)).Logger(),
		entries:  make(map[string]*entry),
		degraded: make(map[string]struct{}),
		now:      time.Now,
		randIntn: rand.IntN,
	}
}

// Platform returns the platform served by the pool
func (p *Pool) Platform() entities.Platform {
	return p.platform
}

// DefaultStrategy returns the configured selection strategy
func (p *Pool) DefaultStrategy() entities.Strategy {
	return entities.Strategy(p.cfg.DefaultStrategy)
}

// GetClient returns the live client of an account without connecting. Nil when absent.
func (p *Pool) GetClient(accountID string) *Client {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if e, ok := p.entries[accountID]; ok {
		return e.client
	}
	return nil
}

// AddClient registers a freshly created client. Empty ids, nil clients and
// accounts that already hold a client are logged and rejected.
func (p *Pool) AddClient(accountID string, client deps.PlatformClient) error {
	if accountID == "" {
		p.logger.Warn().Msg("Refusing to add client with empty account id")
		return domainerrors.ErrInvalidAccountID
	}
	if client == nil {
		p.logger.Warn().Str("account_id", accountID).Msg("Refusing to add nil client")
		return domainerrors.ErrNilClient
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.entries[accountID]; ok {
		p.logger.Warn().Str("account_id", accountID).Msg("Account already holds a live client")
		return domainerrors.ErrClientExists
	}

	p.entries[accountID] = p.newEntry(accountID, client, p.cfg.RequestLimit)
	p.updateGaugesLocked()

	return nil
}

// DisconnectClient disconnects the account's client if connected and always forgets
// its entry, degraded flag and auth cache. Calling it for an unknown id is a no-op.
func (p *Pool) DisconnectClient(ctx context.Context, accountID string) error {
	p.mu.Lock()
	e, ok := p.entries[accountID]
	delete(p.entries, accountID)
	delete(p.degraded, accountID)
	p.updateGaugesLocked()
	p.mu.Unlock()

	if !ok {
		return nil
	}

	return p.disconnect(ctx, e)
}

// SetDegradedMode toggles degraded mode and reports whether the state changed
func (p *Pool) SetDegradedMode(accountID string, degraded bool) bool {
	p.mu.Lock()
	_, was := p.degraded[accountID]
	if was == degraded {
		p.mu.Unlock()
		return false
	}

	if degraded {
		p.degraded[accountID] = struct{}{}
	} else {
		delete(p.degraded, accountID)
	}
	p.updateGaugesLocked()
	p.mu.Unlock()

	eventType := entities.EventRestored
	if degraded {
		eventType = entities.EventDegraded
		p.logger.Warn().Str("account_id", accountID).Msg("Account switched to degraded mode")
	} else {
		p.logger.Info().Str("account_id", accountID).Msg("Account restored to normal mode")
	}
	p.publish(context.Background(), eventType, accountID, 0)

	return true
}

// IsDegraded reports whether the account is in degraded mode
func (p *Pool) IsDegraded(accountID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.degraded[accountID]
	return ok
}

// ClearDegraded restores every degraded account of the pool and returns how many changed
func (p *Pool) ClearDegraded() int {
	p.mu.RLock()
	ids := make([]string, 0, len(p.degraded))
	for id := range p.degraded {
		ids = append(ids, id)
	}
	p.mu.RUnlock()

	n := 0
	for _, id := range ids {
		if p.SetDegradedMode(id, false) {
			n++
		}
	}
	return n
}

// RequestLimit returns the request limit of a live account, or the pool default
func (p *Pool) RequestLimit(accountID string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if e, ok := p.entries[accountID]; ok && e.requestLimit > 0 {
		return e.requestLimit
	}
	return p.cfg.RequestLimit
}

// Len returns the number of live entries
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Shutdown disconnects every live client. Selections after Shutdown return nothing.
func (p *Pool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	p.closed = true
	entries := make([]*entry, 0, len(p.entries))
	for _, e := range p.entries {
		entries = append(entries, e)
	}
	p.entries = make(map[string]*entry)
	p.degraded = make(map[string]struct{})
	p.updateGaugesLocked()
	p.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			_ = p.disconnect(ctx, e)
		}(e)
	}
	wg.Wait()

	p.logger.Info().Int("clients", len(entries)).Msg("Pool shut down")
}

func (p *Pool) newEntry(accountID string, client deps.PlatformClient, requestLimit int) *entry {
	wrapped, ok := client.(*Client)
	if !ok {
		wrapped = newClient(p.platform, client, p.throttle, func() bool { return p.IsDegraded(accountID) }, p.metrics)
	}

	return &entry{
		accountID:    accountID,
		client:       wrapped,
		authState:    entities.AuthUnknown,
		requestLimit: requestLimit,
		createdAt:    p.now(),
	}
}

func (p *Pool) disconnect(ctx context.Context, e *entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Str("account_id", e.accountID).Msg("Panic while disconnecting client")
			err = fmt.Errorf("panic while disconnecting %s: %v", e.accountID, r)
		}
	}()

	if !e.client.IsConnected() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), disconnectTimeout)
	defer cancel()

	if err := e.client.Disconnect(ctx); err != nil {
		p.logger.Warn().Err(err).Str("account_id", e.accountID).Msg("Failed to disconnect client")
		return err
	}

	p.logger.Debug().Str("account_id", e.accountID).Msg("Client disconnected")
	return nil
}

func (p *Pool) updateGaugesLocked() {
	if p.metrics != nil {
		p.metrics.SetPoolSize(string(p.platform), len(p.entries), len(p.degraded))
	}
}

func (p *Pool) publish(ctx context.Context, eventType entities.EventType, accountID string, count int64) {
	if p.events == nil {
		return
	}

	event := entities.PoolEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Platform:   p.platform,
		AccountID:  accountID,
		Count:      count,
		OccurredAt: p.now().UTC(),
	}
	if err := p.events.Publish(ctx, event); err != nil {
		p.logger.Debug().Err(err).Str("event", string(eventType)).Msg("Failed to publish pool event")
	}
}
