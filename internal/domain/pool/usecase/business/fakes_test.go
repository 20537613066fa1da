package business

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Conte777/ScraperPool/config"
	"github.com/Conte777/ScraperPool/internal/domain/pool/deps"
	"github.com/Conte777/ScraperPool/internal/domain/pool/entities"
	domainerrors "github.com/Conte777/ScraperPool/internal/domain/pool/errors"
)

var baseTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// fakeAccountStore returns every account of a user unfiltered so the pool's own filter is exercised
type fakeAccountStore struct {
	mu       sync.Mutex
	accounts []*entities.WorkerAccount
	listErr  error
	upserts  map[string]int64
	deleted  []string
}

func newFakeAccountStore(accounts ...*entities.WorkerAccount) *fakeAccountStore {
	return &fakeAccountStore{accounts: accounts, upserts: make(map[string]int64)}
}

func (s *fakeAccountStore) ListActiveAccounts(ctx context.Context, userKey string, platform entities.Platform, limit int) ([]*entities.WorkerAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listErr != nil {
		return nil, s.listErr
	}

	var out []*entities.WorkerAccount
	for _, a := range s.accounts {
		if a.OwnerUserKey == userKey {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeAccountStore) UpsertUsage(ctx context.Context, accountID string, platform entities.Platform, count int64, lastUsed *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts[accountID] = count
	return nil
}

func (s *fakeAccountStore) GetAccount(ctx context.Context, accountID string) (*entities.WorkerAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.ID == accountID {
			return a, nil
		}
	}
	return nil, domainerrors.ErrAccountNotFound
}

func (s *fakeAccountStore) DeleteAccount(ctx context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, accountID)
	return nil
}

func (s *fakeAccountStore) setActive(accountID string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.ID == accountID {
			a.IsActive = active
		}
	}
}

func (s *fakeAccountStore) upserted(accountID string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.upserts[accountID]
	return v, ok
}

// fakeCounterStore is an in-memory CounterStore
type fakeCounterStore struct {
	mu      sync.Mutex
	records map[entities.CounterKey]entities.UsageRecord
	getErr  error
}

func newFakeCounterStore() *fakeCounterStore {
	return &fakeCounterStore{records: make(map[entities.CounterKey]entities.UsageRecord)}
}

func (s *fakeCounterStore) IncrementAndTouch(ctx context.Context, key entities.CounterKey, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.records[key]
	rec.Count++
	rec.Found = true
	if now.After(rec.LastUsed) {
		rec.LastUsed = now
	}
	s.records[key] = rec
	return rec.Count, nil
}

func (s *fakeCounterStore) Get(ctx context.Context, key entities.CounterKey) (entities.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return entities.UsageRecord{}, s.getErr
	}
	return s.records[key], nil
}

func (s *fakeCounterStore) Reset(ctx context.Context, key entities.CounterKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func (s *fakeCounterStore) Scan(ctx context.Context, pattern string) ([]entities.CounterKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []entities.CounterKey
	for k := range s.records {
		if pattern == entities.AllCountersPattern || pattern == entities.CounterPattern(k.Platform) {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

func (s *fakeCounterStore) Ping(ctx context.Context) error {
	return nil
}

func (s *fakeCounterStore) set(platform entities.Platform, accountID string, count int64, lastUsed time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[entities.CounterKey{Platform: platform, AccountID: accountID}] = entities.UsageRecord{Count: count, LastUsed: lastUsed, Found: true}
}

func (s *fakeCounterStore) get(platform entities.Platform, accountID string) entities.UsageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[entities.CounterKey{Platform: platform, AccountID: accountID}]
}

// fakeClient is a scriptable PlatformClient
type fakeClient struct {
	id string

	mu          sync.Mutex
	connected   bool
	authorized  bool
	connectErr  error
	authErr     error
	connects    int
	disconnects int
	panicOnStop bool
}

func (c *fakeClient) AccountID() string { return c.id }

func (c *fakeClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	if c.connectErr != nil {
		return c.connectErr
	}
	c.connected = true
	return nil
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) IsAuthorized(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authorized, c.authErr
}

func (c *fakeClient) MakeRequest(ctx context.Context, method string, params map[string]string) ([]byte, error) {
	return []byte(method), nil
}

func (c *fakeClient) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.panicOnStop {
		panic("disconnect exploded")
	}
	c.disconnects++
	c.connected = false
	return nil
}

func (c *fakeClient) disconnectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}

// fakeFactory hands out healthy connected clients unless scripted otherwise
type fakeFactory struct {
	platform entities.Platform

	mu       sync.Mutex
	created  map[string][]*fakeClient
	failures map[string]error
	prepare  func(c *fakeClient)
	calls    atomic.Int32

	// gate, when set, holds CreateClient until it is closed or ctx is done
	gate chan struct{}
}

func newFakeFactory(platform entities.Platform) *fakeFactory {
	return &fakeFactory{
		platform: platform,
		created:  make(map[string][]*fakeClient),
		failures: make(map[string]error),
	}
}

func (f *fakeFactory) Platform() entities.Platform { return f.platform }

func (f *fakeFactory) CreateClient(ctx context.Context, account *entities.WorkerAccount) (deps.PlatformClient, error) {
	f.calls.Add(1)

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.failures[account.ID]; ok {
		return nil, err
	}

	c := &fakeClient{id: account.ID, connected: true, authorized: true}
	if f.prepare != nil {
		f.prepare(c)
	}
	f.created[account.ID] = append(f.created[account.ID], c)
	return c, nil
}

func (f *fakeFactory) createdFor(accountID string) []*fakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeClient(nil), f.created[accountID]...)
}

// recordingEvents collects published events
type recordingEvents struct {
	mu     sync.Mutex
	events []entities.PoolEvent
}

func (r *recordingEvents) Publish(ctx context.Context, event entities.PoolEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingEvents) Close() error { return nil }

func (r *recordingEvents) types() []entities.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entities.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func testPoolConfig() *config.PoolConfig {
	return &config.PoolConfig{
		DefaultStrategy:       "round_robin",
		MaxActiveAccounts:     5,
		RequestLimit:          1000,
		RequestDelay:          100 * time.Millisecond,
		GroupDelay:            time.Second,
		DegradedRequestFactor: 5,
		DegradedGroupFactor:   2,
		SyncProbability:       0,
	}
}

func activeAccount(id, user string) *entities.WorkerAccount {
	return &entities.WorkerAccount{
		ID:           id,
		OwnerUserKey: user,
		Platform:     entities.PlatformTelegram,
		Status:       entities.StatusActive,
		IsActive:     true,
		RequestLimit: 1000,
	}
}

type poolFixture struct {
	pool     *Pool
	accounts *fakeAccountStore
	counters *fakeCounterStore
	factory  *fakeFactory
	events   *recordingEvents
	clock    *time.Time
}

func newPoolFixture(accounts ...*entities.WorkerAccount) *poolFixture {
	fx := &poolFixture{
		accounts: newFakeAccountStore(accounts...),
		counters: newFakeCounterStore(),
		factory:  newFakeFactory(entities.PlatformTelegram),
		events:   &recordingEvents{},
	}

	now := baseTime.Add(time.Hour)
	fx.clock = &now

	fx.pool = NewPool(PoolParams{
		Platform: entities.PlatformTelegram,
		Config:   testPoolConfig(),
		Accounts: fx.accounts,
		Counters: fx.counters,
		Factory:  fx.factory,
		Events:   fx.events,
		Logger:   zerolog.Nop(),
	})
	fx.pool.now = func() time.Time { return *fx.clock }

	return fx
}

func (fx *poolFixture) advance(d time.Duration) {
	*fx.clock = fx.clock.Add(d)
}
