package business

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Conte777/ScraperPool/internal/domain/pool/entities"
	domainerrors "github.com/Conte777/ScraperPool/internal/domain/pool/errors"
	pkgerrors "github.com/Conte777/ScraperPool/pkg/errors"
)

const clientCreateTimeout = 2 * time.Minute

// candidate is one selectable account with its live entry and usage
type candidate struct {
	account *entities.WorkerAccount
	entry   *entry
	usage   entities.UsageRecord

	// effectiveLastUse is the later of the fast counter last use and the pool's own last pick
	effectiveLastUse time.Time
	selectSeq        uint64
}

// selection is the outcome of one SelectNextClient call
type selection struct {
	client    *Client
	accountID string
	skips     []entities.Skip
}

// SelectNextClient picks the next account of userKey and returns its live client.
// It returns (nil, "") when no account is usable. Usage is not recorded here.
func (p *Pool) SelectNextClient(ctx context.Context, userKey string, strategy entities.Strategy) (*Client, string) {
	result := p.selectNext(ctx, userKey, strategy)
	return result.client, result.accountID
}

func (p *Pool) selectNext(ctx context.Context, userKey string, strategy entities.Strategy) selection {
	strategy = p.resolveStrategy(strategy)
	logger := p.logger.With().Str("strategy", string(strategy)).Logger()

	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		logger.Warn().Msg("Selection on a closed pool")
		p.recordSelection(strategy, "none")
		return selection{}
	}

	accounts, err := p.accounts.ListActiveAccounts(ctx, userKey, p.platform, p.cfg.MaxActiveAccounts)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list active accounts")
		p.recordSelection(strategy, "store_error")
		return selection{}
	}

	var skips []entities.Skip
	candidates := make([]candidate, 0, len(accounts))

	for _, account := range accounts {
		if !account.Selectable() || account.Platform != p.platform {
			continue
		}

		e, err := p.obtain(ctx, account)
		if err != nil {
			skips = append(skips, p.skip(account.ID, entities.SkipCreationFailed, err))
			continue
		}

		candidates = append(candidates, candidate{account: account, entry: e})
	}

	if len(candidates) == 0 {
		if len(accounts) == 0 {
			logger.Debug().Msg("User has no active accounts")
		}
		p.recordSelection(strategy, "none")
		return selection{skips: skips}
	}

	p.loadUsage(ctx, candidates)

	chosen := p.partition(candidates)
	p.order(chosen, strategy)

	for _, c := range chosen {
		if reason, err := p.verify(ctx, c.entry); err != nil {
			skips = append(skips, p.skip(c.account.ID, reason, err))
			continue
		}

		p.markSelected(c.entry)
		p.recordSelection(strategy, "selected")
		logger.Debug().
			Str("account_id", c.account.ID).
			Int64("requests_count", c.usage.Count).
			Bool("degraded", p.IsDegraded(c.account.ID)).
			Msg("Account selected")

		return selection{client: c.entry.client, accountID: c.account.ID, skips: skips}
	}

	logger.Warn().Int("candidates", len(chosen)).Msg("All candidates failed connection or authorization")
	p.recordSelection(strategy, "none")
	return selection{skips: skips}
}

func (p *Pool) resolveStrategy(strategy entities.Strategy) entities.Strategy {
	if strategy == "" {
		strategy = p.DefaultStrategy()
	}
	if !strategy.Valid() {
		p.logger.Warn().Str("strategy", string(strategy)).Msg("Unknown selection strategy, using round_robin")
		return entities.StrategyRoundRobin
	}
	return strategy
}

// obtain returns the account's entry, creating a client through the factory when absent.
// Concurrent callers for the same account share one creation, which is not tied to
// any single caller's context.
func (p *Pool) obtain(ctx context.Context, account *entities.WorkerAccount) (*entry, error) {
	if e := p.lookup(account.ID); e != nil {
		return e, nil
	}

	ch := p.creating.DoChan(account.ID, func() (any, error) {
		if e := p.lookup(account.ID); e != nil {
			return e, nil
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), clientCreateTimeout)
		defer cancel()

		client, err := p.factory.CreateClient(ctx, account)
		if p.metrics != nil {
			p.metrics.RecordClientCreation(string(p.platform), err == nil)
		}
		if err != nil {
			return nil, err
		}

		limit := account.RequestLimit
		if limit <= 0 {
			limit = p.cfg.RequestLimit
		}
		created := p.newEntry(account.ID, client, limit)

		p.mu.Lock()
		existing, ok := p.entries[account.ID]
		closed := p.closed
		if !ok && !closed {
			p.entries[account.ID] = created
			p.updateGaugesLocked()
		}
		p.mu.Unlock()

		if ok || closed {
			_ = p.disconnect(ctx, created)
			if closed {
				return nil, domainerrors.ErrPoolClosed
			}
			return existing, nil
		}

		p.logger.Info().Str("account_id", account.ID).Msg("Client created")
		return created, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}

	return res.Val.(*entry), nil
}

func (p *Pool) lookup(accountID string) *entry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.entries[accountID]
}

// loadUsage reads fast counters. Unreadable records count as never used.
func (p *Pool) loadUsage(ctx context.Context, candidates []candidate) {
	p.mu.RLock()
	for i := range candidates {
		candidates[i].effectiveLastUse = candidates[i].entry.lastSelected
		candidates[i].selectSeq = candidates[i].entry.selectSeq
	}
	p.mu.RUnlock()

	for i := range candidates {
		c := &candidates[i]
		usage, err := p.counters.Get(ctx, entities.CounterKey{Platform: p.platform, AccountID: c.account.ID})
		if err != nil {
			p.logger.Warn().Err(err).Str("account_id", c.account.ID).Msg("Failed to read usage counters, assuming unused")
			usage = entities.UsageRecord{}
		}
		c.usage = usage

		if usage.LastUsed.After(c.effectiveLastUse) {
			c.effectiveLastUse = usage.LastUsed
		}
	}
}

// partition returns the non degraded candidates, or the degraded ones when no other exist
func (p *Pool) partition(candidates []candidate) []candidate {
	p.mu.RLock()
	defer p.mu.RUnlock()

	healthy := make([]candidate, 0, len(candidates))
	degraded := make([]candidate, 0)
	for _, c := range candidates {
		if _, ok := p.degraded[c.account.ID]; ok {
			degraded = append(degraded, c)
		} else {
			healthy = append(healthy, c)
		}
	}

	if len(healthy) > 0 {
		return healthy
	}
	return degraded
}

func (p *Pool) order(candidates []candidate, strategy entities.Strategy) {
	switch strategy {
	case entities.StrategyLeastUsed:
		sort.SliceStable(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			if a.usage.Count != b.usage.Count {
				return a.usage.Count < b.usage.Count
			}
			if !a.usage.LastUsed.Equal(b.usage.LastUsed) {
				return a.usage.LastUsed.Before(b.usage.LastUsed)
			}
			return a.account.ID < b.account.ID
		})

	case entities.StrategyRandom:
		for i := len(candidates) - 1; i > 0; i-- {
			j := p.randIntn(i + 1)
			candidates[i], candidates[j] = candidates[j], candidates[i]
		}

	default:
		sort.SliceStable(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			if !a.effectiveLastUse.Equal(b.effectiveLastUse) {
				return a.effectiveLastUse.Before(b.effectiveLastUse)
			}
			if a.selectSeq != b.selectSeq {
				return a.selectSeq < b.selectSeq
			}
			return a.account.ID < b.account.ID
		})
	}
}

// verify makes sure the entry's client is connected and authorized
func (p *Pool) verify(ctx context.Context, e *entry) (entities.SkipReason, error) {
	client := e.client
	if client == nil {
		return entities.SkipNoLiveClient, domainerrors.ErrNoLiveClient
	}

	if !client.IsConnected() {
		if err := client.Connect(ctx); err != nil {
			switch {
			case pkgerrors.IsAuthorization(err):
				p.setAuthState(e, entities.AuthUnauthorized)
				return entities.SkipAuthorization, err
			case pkgerrors.IsTransient(err):
				return entities.SkipTransient, err
			default:
				return entities.SkipConnectFailed, err
			}
		}
	}

	authorized, err := client.IsAuthorized(ctx)
	if err != nil {
		if pkgerrors.IsAuthorization(err) {
			p.setAuthState(e, entities.AuthUnauthorized)
			return entities.SkipAuthorization, err
		}
		return entities.SkipTransient, err
	}
	if !authorized {
		p.setAuthState(e, entities.AuthUnauthorized)
		return entities.SkipUnauthorized, domainerrors.ErrUnauthorized
	}

	p.setAuthState(e, entities.AuthAuthorized)
	return "", nil
}

func (p *Pool) setAuthState(e *entry, state entities.AuthState) {
	p.mu.Lock()
	e.authState = state
	p.mu.Unlock()
}

func (p *Pool) markSelected(e *entry) {
	p.mu.Lock()
	p.seq++
	e.selectSeq = p.seq
	e.lastSelected = p.now()
	p.mu.Unlock()
}

func (p *Pool) skip(accountID string, reason entities.SkipReason, err error) entities.Skip {
	p.logger.Warn().Err(err).Str("account_id", accountID).Str("reason", string(reason)).Msg("Skipping account")
	if p.metrics != nil {
		p.metrics.RecordSkip(string(p.platform), string(reason))
	}
	return entities.Skip{AccountID: accountID, Reason: reason, Err: err}
}

func (p *Pool) recordSelection(strategy entities.Strategy, result string) {
	if p.metrics != nil {
		p.metrics.RecordSelection(string(p.platform), string(strategy), result)
	}
}
