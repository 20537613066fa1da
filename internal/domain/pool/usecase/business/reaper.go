package business

import (
	"context"
	"sort"
	"time"

	"github.com/Conte777/ScraperPool/internal/domain/pool/deps"
	"github.com/Conte777/ScraperPool/internal/domain/pool/entities"
)

// snapshot copies the current entries so they can be inspected without the lock
func (p *Pool) snapshot() []*entry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*entry, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].accountID < out[j].accountID })
	return out
}

// DisconnectInactiveClients reaps entries whose last use is older than timeout.
// Entries that were never used are kept. It returns the number of reaped entries.
func (p *Pool) DisconnectInactiveClients(ctx context.Context, timeout time.Duration) int {
	reaped := 0

	for _, e := range p.snapshot() {
		if ctx.Err() != nil {
			p.logger.Info().Int("reaped", reaped).Msg("Reaper scan cancelled")
			break
		}

		if p.reapEntry(ctx, e, timeout) {
			reaped++
		}
	}

	if reaped > 0 {
		p.logger.Info().Int("reaped", reaped).Dur("timeout", timeout).Msg("Inactive clients disconnected")
	}

	return reaped
}

// reapEntry reaps one entry if it is idle. A failure on one account never aborts the scan.
func (p *Pool) reapEntry(ctx context.Context, e *entry, timeout time.Duration) (reaped bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Str("account_id", e.accountID).Msg("Panic while reaping account")
		}
	}()

	key := entities.CounterKey{Platform: p.platform, AccountID: e.accountID}
	usage, err := p.counters.Get(ctx, key)
	if err != nil {
		p.logger.Warn().Err(err).Str("account_id", e.accountID).Msg("Failed to read usage, skipping account")
		return false
	}

	if !usage.Used() {
		return false
	}

	elapsed := p.now().Sub(usage.LastUsed)
	if elapsed <= timeout {
		return false
	}

	p.mu.Lock()
	if p.entries[e.accountID] != e {
		p.mu.Unlock()
		return false
	}
	delete(p.entries, e.accountID)
	delete(p.degraded, e.accountID)
	p.updateGaugesLocked()
	p.mu.Unlock()

	if err := p.counters.Reset(ctx, key); err != nil {
		p.logger.Warn().Err(err).Str("account_id", e.accountID).Msg("Failed to reset usage counters of reaped account")
	}
	if err := p.accounts.UpsertUsage(ctx, e.accountID, p.platform, 0, nil); err != nil {
		p.logger.Warn().Err(err).Str("account_id", e.accountID).Msg("Failed to reset durable usage of reaped account")
	}

	_ = p.disconnect(ctx, e)

	if p.metrics != nil {
		p.metrics.RecordReaped(string(p.platform))
	}
	p.publish(ctx, entities.EventReaped, e.accountID, usage.Count)

	p.logger.Info().
		Str("account_id", e.accountID).
		Dur("idle", elapsed).
		Msg("Idle client reaped")

	return true
}

// CheckUsageLimits degrades every live account whose counter exceeds its request limit.
// It returns the number of accounts newly degraded.
func (p *Pool) CheckUsageLimits(ctx context.Context) int {
	degraded := 0

	for _, e := range p.snapshot() {
		if ctx.Err() != nil {
			break
		}

		usage, err := p.counters.Get(ctx, entities.CounterKey{Platform: p.platform, AccountID: e.accountID})
		if err != nil {
			p.logger.Warn().Err(err).Str("account_id", e.accountID).Msg("Failed to read usage during limit check")
			continue
		}

		if usage.Count > int64(e.requestLimit) && p.SetDegradedMode(e.accountID, true) {
			degraded++
		}
	}

	return degraded
}

// Status returns the admin view of the pool. Counter read failures leave usage empty.
func (p *Pool) Status(ctx context.Context) entities.PoolStatus {
	entries := p.snapshot()

	status := entities.PoolStatus{
		Platform: p.platform,
		Total:    len(entries),
		Accounts: make([]entities.EntryStatus, 0, len(entries)),
	}

	for _, e := range entries {
		p.mu.RLock()
		_, degraded := p.degraded[e.accountID]
		authState := e.authState
		p.mu.RUnlock()

		item := entities.EntryStatus{
			AccountID:    e.accountID,
			Connected:    e.client.IsConnected(),
			Degraded:     degraded,
			AuthState:    authState,
			RequestLimit: e.requestLimit,
		}

		if usage, err := p.counters.Get(ctx, entities.CounterKey{Platform: p.platform, AccountID: e.accountID}); err == nil && usage.Found {
			item.RequestsCount = usage.Count
			if usage.Used() {
				lastUsed := usage.LastUsed
				item.LastUsed = &lastUsed
			}
		}

		if counter, ok := e.client.Unwrap().(deps.FailureCounter); ok {
			item.Failures = counter.Failures()
		}

		if item.Connected {
			status.Connected++
		}
		if item.Degraded {
			status.Degraded++
		}
		status.Accounts = append(status.Accounts, item)
	}

	return status
}
