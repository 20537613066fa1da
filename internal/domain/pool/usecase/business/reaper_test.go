package business

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conte777/ScraperPool/internal/domain/pool/entities"
	pkgerrors "github.com/Conte777/ScraperPool/pkg/errors"
)

func TestReaper_ResetsIdleAccount(t *testing.T) {
	fx := newPoolFixture(activeAccount("a1", "u1"))
	ctx := context.Background()

	_, id := fx.pool.SelectNextClient(ctx, "u1", "")
	require.Equal(t, "a1", id)
	fx.counters.set(entities.PlatformTelegram, "a1", 1500, fx.clock.Add(-2*time.Hour))
	fx.pool.SetDegradedMode("a1", true)

	reaped := fx.pool.DisconnectInactiveClients(ctx, time.Hour)

	assert.Equal(t, 1, reaped)
	assert.Nil(t, fx.pool.GetClient("a1"))
	assert.False(t, fx.pool.IsDegraded("a1"))
	assert.Equal(t, entities.UsageRecord{}, fx.counters.get(entities.PlatformTelegram, "a1"))
	durable, ok := fx.accounts.upserted("a1")
	assert.True(t, ok, "durable usage is reset with the fast counter")
	assert.Zero(t, durable)
	assert.Equal(t, 1, fx.factory.createdFor("a1")[0].disconnectCount())
	assert.Contains(t, fx.events.types(), entities.EventReaped)
}

func TestReaper_KeepsNeverUsedAccounts(t *testing.T) {
	fx := newPoolFixture(activeAccount("a1", "u1"))
	ctx := context.Background()

	fx.pool.SelectNextClient(ctx, "u1", "")
	fx.advance(1000 * time.Hour)

	assert.Equal(t, 0, fx.pool.DisconnectInactiveClients(ctx, time.Second))
	assert.NotNil(t, fx.pool.GetClient("a1"))
	assert.Equal(t, 0, fx.factory.createdFor("a1")[0].disconnectCount())
}

func TestReaper_KeepsRecentlyUsedAccounts(t *testing.T) {
	fx := newPoolFixture(activeAccount("a1", "u1"))
	ctx := context.Background()

	fx.pool.SelectNextClient(ctx, "u1", "")
	fx.counters.set(entities.PlatformTelegram, "a1", 3, fx.clock.Add(-30*time.Minute))

	assert.Equal(t, 0, fx.pool.DisconnectInactiveClients(ctx, time.Hour))
	assert.NotNil(t, fx.pool.GetClient("a1"))
	assert.EqualValues(t, 3, fx.counters.get(entities.PlatformTelegram, "a1").Count)
}

func TestReaper_IsolatesFailures(t *testing.T) {
	fx := newPoolFixture(activeAccount("a1", "u1"), activeAccount("a2", "u1"))
	ctx := context.Background()
	fx.factory.prepare = func(c *fakeClient) {
		if c.id == "a1" {
			c.panicOnStop = true
		}
	}

	fx.pool.SelectNextClient(ctx, "u1", "")
	fx.pool.SelectNextClient(ctx, "u1", "")
	stale := fx.clock.Add(-3 * time.Hour)
	fx.counters.set(entities.PlatformTelegram, "a1", 1, stale)
	fx.counters.set(entities.PlatformTelegram, "a2", 1, stale)

	assert.Equal(t, 2, fx.pool.DisconnectInactiveClients(ctx, time.Hour))
	assert.Equal(t, 0, fx.pool.Len())
	assert.Equal(t, 1, fx.factory.createdFor("a2")[0].disconnectCount())
}

func TestReaper_SkipsUnreadableCounters(t *testing.T) {
	fx := newPoolFixture(activeAccount("a1", "u1"))
	ctx := context.Background()

	fx.pool.SelectNextClient(ctx, "u1", "")
	fx.counters.getErr = pkgerrors.NewStoreUnavailableError("redis down", nil)

	assert.Equal(t, 0, fx.pool.DisconnectInactiveClients(ctx, 0))
	assert.Equal(t, 1, fx.pool.Len())
}

func TestReaper_StaleConnectionIsRecreated(t *testing.T) {
	fx := newPoolFixture(activeAccount("a3", "u1"))
	ctx := context.Background()
	timeout := time.Hour

	_, id := fx.pool.SelectNextClient(ctx, "u1", "")
	require.Equal(t, "a3", id)
	usedAt := *fx.clock
	fx.counters.set(entities.PlatformTelegram, "a3", 1, usedAt)

	fx.advance(timeout + time.Second)
	require.Equal(t, 1, fx.pool.DisconnectInactiveClients(ctx, timeout))
	assert.Equal(t, 1, fx.factory.createdFor("a3")[0].disconnectCount())

	client, id := fx.pool.SelectNextClient(ctx, "u1", "")
	require.NotNil(t, client)
	assert.Equal(t, "a3", id)
	assert.Len(t, fx.factory.createdFor("a3"), 2)
	assert.EqualValues(t, 2, fx.factory.calls.Load())
}

func TestCheckUsageLimits(t *testing.T) {
	over := activeAccount("over", "u1")
	over.RequestLimit = 10
	fx := newPoolFixture(over, activeAccount("under", "u1"))
	ctx := context.Background()

	fx.pool.SelectNextClient(ctx, "u1", "")
	fx.pool.SelectNextClient(ctx, "u1", "")
	fx.counters.set(entities.PlatformTelegram, "over", 11, baseTime)
	fx.counters.set(entities.PlatformTelegram, "under", 11, baseTime)

	assert.Equal(t, 1, fx.pool.CheckUsageLimits(ctx))
	assert.True(t, fx.pool.IsDegraded("over"))
	assert.False(t, fx.pool.IsDegraded("under"))
	assert.Equal(t, 0, fx.pool.CheckUsageLimits(ctx))
}

func TestStatus(t *testing.T) {
	fx := newPoolFixture(activeAccount("a1", "u1"), activeAccount("a2", "u1"))
	ctx := context.Background()

	fx.pool.SelectNextClient(ctx, "u1", "")
	fx.pool.SelectNextClient(ctx, "u1", "")
	fx.counters.set(entities.PlatformTelegram, "a1", 7, baseTime)
	fx.pool.SetDegradedMode("a2", true)

	status := fx.pool.Status(ctx)
	assert.Equal(t, entities.PlatformTelegram, status.Platform)
	assert.Equal(t, 2, status.Total)
	assert.Equal(t, 2, status.Connected)
	assert.Equal(t, 1, status.Degraded)
	require.Len(t, status.Accounts, 2)

	a1 := status.Accounts[0]
	assert.Equal(t, "a1", a1.AccountID)
	assert.EqualValues(t, 7, a1.RequestsCount)
	require.NotNil(t, a1.LastUsed)
	assert.True(t, baseTime.Equal(*a1.LastUsed))
	assert.Equal(t, 1000, a1.RequestLimit)

	a2 := status.Accounts[1]
	assert.True(t, a2.Degraded)
	assert.Nil(t, a2.LastUsed)
}
