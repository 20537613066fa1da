package business

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Conte777/ScraperPool/config"
	"github.com/Conte777/ScraperPool/internal/domain/pool/deps"
	"github.com/Conte777/ScraperPool/internal/domain/pool/entities"
	domainerrors "github.com/Conte777/ScraperPool/internal/domain/pool/errors"
)

const opportunisticSyncTimeout = 10 * time.Second

// UsageService records account usage in the fast counter store and mirrors it
// into the durable store
type UsageService struct {
	accounts deps.AccountStore
	counters deps.CounterStore
	events   deps.EventPublisher
	metrics  deps.PoolMetrics
	logger   zerolog.Logger

	syncProbability float64
	randFloat       func() float64
	now             func() time.Time

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// NewUsageService creates a usage service
func NewUsageService(
	accounts deps.AccountStore,
	counters deps.CounterStore,
	events deps.EventPublisher,
	metrics deps.PoolMetrics,
	cfg *config.PoolConfig,
	logger zerolog.Logger,
) *UsageService {
	return &UsageService{
		accounts:        accounts,
		counters:        counters,
		events:          events,
		metrics:         metrics,
		logger:          logger.With().Str("component", "usage").Logger(),
		syncProbability: cfg.SyncProbability,
		randFloat:       rand.Float64,
		now:             time.Now,
	}
}

// Record increments the account's counter, refreshes its last use and returns the new count.
// With probability syncProbability it also syncs the account to the durable store in the
// background.
func (s *UsageService) Record(ctx context.Context, userKey string, platform entities.Platform, accountID string) (int64, error) {
	if accountID == "" {
		return 0, domainerrors.ErrInvalidAccountID
	}

	key := entities.CounterKey{Platform: platform, AccountID: accountID}
	now := s.now()

	count, err := s.counters.IncrementAndTouch(ctx, key, now)
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", accountID).Str("platform", string(platform)).Msg("Failed to record usage")
		return 0, err
	}

	if s.metrics != nil {
		s.metrics.RecordUsage(string(platform))
	}

	s.publish(ctx, entities.PoolEvent{
		Type:      entities.EventUsage,
		Platform:  platform,
		AccountID: accountID,
		UserKey:   userKey,
		Count:     count,
	})

	if s.syncProbability > 0 && s.randFloat() < s.syncProbability {
		s.syncInBackground(ctx, key)
	}

	return count, nil
}

// syncInBackground starts an opportunistic sync unless the service is closed
func (s *UsageService) syncInBackground(ctx context.Context, key entities.CounterKey) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.inflight.Done()

		syncCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opportunisticSyncTimeout)
		defer cancel()

		if err := s.SyncAccount(syncCtx, key); err != nil {
			s.logger.Warn().Err(err).Str("account_id", key.AccountID).Msg("Opportunistic usage sync failed")
		}
	}()
}

// SyncAccount copies one account's fast counters into the durable store.
// Accounts without a fast record are left untouched.
func (s *UsageService) SyncAccount(ctx context.Context, key entities.CounterKey) error {
	usage, err := s.counters.Get(ctx, key)
	if err != nil {
		return err
	}
	if !usage.Found {
		return nil
	}

	var lastUsed *time.Time
	if usage.Used() {
		t := usage.LastUsed
		lastUsed = &t
	}

	err = s.accounts.UpsertUsage(ctx, key.AccountID, key.Platform, usage.Count, lastUsed)
	if s.metrics != nil {
		s.metrics.RecordSync(err == nil)
	}
	return err
}

// SyncAll syncs every account that has fast counters. Per account failures are
// logged and counted, never returned.
func (s *UsageService) SyncAll(ctx context.Context) entities.SyncReport {
	var report entities.SyncReport

	keys, err := s.counters.Scan(ctx, entities.AllCountersPattern)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to scan usage counters")
		return report
	}

	for _, key := range keys {
		if ctx.Err() != nil {
			s.logger.Info().Int("synced", report.Synced).Msg("Usage sync cancelled")
			break
		}

		if err := s.SyncAccount(ctx, key); err != nil {
			report.Failed++
			s.logger.Warn().Err(err).
				Str("account_id", key.AccountID).
				Str("platform", string(key.Platform)).
				Msg("Failed to sync account usage")
			continue
		}
		report.Synced++
	}

	s.logger.Info().Int("synced", report.Synced).Int("failed", report.Failed).Msg("Usage sync completed")
	return report
}

// ResetAll drops the fast counters of a platform (all platforms when empty) and
// writes zero usage to the durable store. It returns the reset accounts.
func (s *UsageService) ResetAll(ctx context.Context, platform entities.Platform) (entities.SyncReport, []entities.CounterKey) {
	var report entities.SyncReport

	keys, err := s.counters.Scan(ctx, entities.CounterPattern(platform))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to scan usage counters for reset")
		return report, nil
	}

	reset := make([]entities.CounterKey, 0, len(keys))
	for _, key := range keys {
		if err := s.counters.Reset(ctx, key); err != nil {
			report.Failed++
			s.logger.Warn().Err(err).Str("account_id", key.AccountID).Msg("Failed to reset usage counters")
			continue
		}
		reset = append(reset, key)

		if err := s.accounts.UpsertUsage(ctx, key.AccountID, key.Platform, 0, nil); err != nil {
			report.Failed++
			s.logger.Warn().Err(err).Str("account_id", key.AccountID).Msg("Failed to reset durable usage")
			continue
		}
		report.Synced++
	}

	s.logger.Info().
		Str("platform", string(platform)).
		Int("reset", len(reset)).
		Int("failed", report.Failed).
		Msg("Usage statistics reset")

	return report, reset
}

// Close stops starting background syncs and waits for the running ones, bounded by ctx
func (s *UsageService) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	return s.Wait(ctx)
}

// Wait blocks until background syncs finish or ctx is done
func (s *UsageService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *UsageService) publish(ctx context.Context, event entities.PoolEvent) {
	if s.events == nil {
		return
	}

	event.ID = uuid.NewString()
	event.OccurredAt = s.now().UTC()
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Debug().Err(err).Str("event", string(event.Type)).Msg("Failed to publish usage event")
	}
}
