package business

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/Conte777/ScraperPool/internal/domain/pool/deps"
	"github.com/Conte777/ScraperPool/internal/domain/pool/entities"
	domainerrors "github.com/Conte777/ScraperPool/internal/domain/pool/errors"
)

// Registry owns one Pool per platform and the usage service shared by them
type Registry struct {
	pools    map[entities.Platform]*Pool
	usage    *UsageService
	accounts deps.AccountStore
	counters deps.CounterStore
	events   deps.EventPublisher
	logger   zerolog.Logger
}

// NewRegistry creates a registry over the given pools
func NewRegistry(
	pools []*Pool,
	usage *UsageService,
	accounts deps.AccountStore,
	counters deps.CounterStore,
	events deps.EventPublisher,
	logger zerolog.Logger,
) *Registry {
	byPlatform := make(map[entities.Platform]*Pool, len(pools))
	for _, p := range pools {
		byPlatform[p.Platform()] = p
	}

	return &Registry{
		pools:    byPlatform,
		usage:    usage,
		accounts: accounts,
		counters: counters,
		events:   events,
		logger:   logger.With().Str("component", "registry").Logger(),
	}
}

// Pool returns the pool of a platform
func (r *Registry) Pool(platform entities.Platform) (*Pool, error) {
	p, ok := r.pools[platform]
	if !ok {
		return nil, domainerrors.ErrUnknownPlatform
	}
	return p, nil
}

// Pools returns the pools in platform order
func (r *Registry) Pools() []*Pool {
	out := make([]*Pool, 0, len(r.pools))
	for _, platform := range entities.Platforms {
		if p, ok := r.pools[platform]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Usage returns the shared usage service
func (r *Registry) Usage() *UsageService {
	return r.usage
}

// SelectNextClient selects an account of userKey on platform.
// It returns ErrNoAccountAvailable when nothing is usable.
func (r *Registry) SelectNextClient(ctx context.Context, platform entities.Platform, userKey string, strategy entities.Strategy) (*Client, string, error) {
	p, err := r.Pool(platform)
	if err != nil {
		return nil, "", err
	}

	client, accountID := p.SelectNextClient(ctx, userKey, strategy)
	if client == nil {
		return nil, "", domainerrors.ErrNoAccountAvailable
	}
	return client, accountID, nil
}

// RecordUsage records one use and degrades the account once its count exceeds the limit
func (r *Registry) RecordUsage(ctx context.Context, userKey, accountID string, platform entities.Platform) (int64, error) {
	p, err := r.Pool(platform)
	if err != nil {
		return 0, err
	}

	count, err := r.usage.Record(ctx, userKey, platform, accountID)
	if err != nil {
		return 0, err
	}

	if limit := p.RequestLimit(accountID); count > int64(limit) {
		if p.SetDegradedMode(accountID, true) {
			r.logger.Warn().
				Str("account_id", accountID).
				Str("platform", string(platform)).
				Int64("requests_count", count).
				Int("request_limit", limit).
				Msg("Request limit exceeded")
		}
	}

	return count, nil
}

// DeleteAccount tears down the live client, drops the counters and removes the durable account
func (r *Registry) DeleteAccount(ctx context.Context, platform entities.Platform, accountID string) error {
	if accountID == "" {
		return domainerrors.ErrInvalidAccountID
	}

	p, err := r.Pool(platform)
	if err != nil {
		return err
	}

	if err := p.DisconnectClient(ctx, accountID); err != nil {
		r.logger.Warn().Err(err).Str("account_id", accountID).Msg("Disconnect failed during account deletion")
	}

	if err := r.counters.Reset(ctx, entities.CounterKey{Platform: platform, AccountID: accountID}); err != nil {
		r.logger.Warn().Err(err).Str("account_id", accountID).Msg("Failed to drop usage counters of deleted account")
	}

	if err := r.accounts.DeleteAccount(ctx, accountID); err != nil {
		return err
	}

	p.publish(ctx, entities.EventDeleted, accountID, 0)
	r.logger.Info().Str("account_id", accountID).Str("platform", string(platform)).Msg("Account deleted")
	return nil
}

// SetDegradedMode toggles degraded mode of an account
func (r *Registry) SetDegradedMode(platform entities.Platform, accountID string, degraded bool) (bool, error) {
	if accountID == "" {
		return false, domainerrors.ErrInvalidAccountID
	}

	p, err := r.Pool(platform)
	if err != nil {
		return false, err
	}
	return p.SetDegradedMode(accountID, degraded), nil
}

// Status returns the status of every pool
func (r *Registry) Status(ctx context.Context) []entities.PoolStatus {
	pools := r.Pools()
	out := make([]entities.PoolStatus, 0, len(pools))
	for _, p := range pools {
		out = append(out, p.Status(ctx))
	}
	return out
}

// PoolStatus returns the status of one platform's pool
func (r *Registry) PoolStatus(ctx context.Context, platform entities.Platform) (entities.PoolStatus, error) {
	p, err := r.Pool(platform)
	if err != nil {
		return entities.PoolStatus{}, err
	}
	return p.Status(ctx), nil
}

// Reap runs the idle reaper over one platform's pool
func (r *Registry) Reap(ctx context.Context, platform entities.Platform, timeout time.Duration) (int, error) {
	p, err := r.Pool(platform)
	if err != nil {
		return 0, err
	}
	return p.DisconnectInactiveClients(ctx, timeout), nil
}

// ReapAll runs the idle reaper over every pool and returns the reaped count per platform
func (r *Registry) ReapAll(ctx context.Context, timeout time.Duration) map[entities.Platform]int {
	out := make(map[entities.Platform]int, len(r.pools))
	for _, p := range r.Pools() {
		out[p.Platform()] = p.DisconnectInactiveClients(ctx, timeout)
	}
	return out
}

// CheckUsageLimits degrades live accounts over their limit in every pool
func (r *Registry) CheckUsageLimits(ctx context.Context) int {
	total := 0
	for _, p := range r.Pools() {
		total += p.CheckUsageLimits(ctx)
	}
	return total
}

// SyncStats flushes every fast counter into the durable store
func (r *Registry) SyncStats(ctx context.Context) entities.SyncReport {
	return r.usage.SyncAll(ctx)
}

// ResetStats resets usage of one platform, or all platforms when platform is empty,
// and restores every degraded account of the affected pools
func (r *Registry) ResetStats(ctx context.Context, platform entities.Platform) (entities.SyncReport, error) {
	if platform != "" {
		if _, err := r.Pool(platform); err != nil {
			return entities.SyncReport{}, err
		}
	}

	report, _ := r.usage.ResetAll(ctx, platform)

	for _, p := range r.Pools() {
		if platform == "" || p.Platform() == platform {
			p.ClearDegraded()
		}
	}

	return report, nil
}

// Ping checks the fast counter store
func (r *Registry) Ping(ctx context.Context) error {
	return r.counters.Ping(ctx)
}

// Shutdown disconnects every live client and waits for background syncs
func (r *Registry) Shutdown(ctx context.Context) error {
	for _, p := range r.Pools() {
		p.Shutdown(ctx)
	}

	err := r.usage.Close(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Warn().Err(err).Msg("Background usage syncs did not finish before shutdown")
	}
	return err
}
