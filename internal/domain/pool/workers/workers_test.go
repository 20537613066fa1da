package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/Conte777/ScraperPool/config"
	"github.com/Conte777/ScraperPool/internal/domain/pool/entities"
)

type fakeMaintainer struct {
	reaps   atomic.Int32
	syncs   atomic.Int32
	checks  atomic.Int32
	timeout atomic.Int64
}

func (m *fakeMaintainer) ReapAll(ctx context.Context, timeout time.Duration) map[entities.Platform]int {
	m.reaps.Add(1)
	m.timeout.Store(int64(timeout))
	return map[entities.Platform]int{entities.PlatformTelegram: 1, entities.PlatformVK: 2}
}

func (m *fakeMaintainer) SyncStats(ctx context.Context) entities.SyncReport {
	m.syncs.Add(1)
	return entities.SyncReport{Synced: 3, Failed: 1}
}

func (m *fakeMaintainer) CheckUsageLimits(ctx context.Context) int {
	m.checks.Add(1)
	return 1
}

func testConfig(interval time.Duration) *config.PoolConfig {
	return &config.PoolConfig{
		IdleTimeout:        time.Hour,
		ReaperInterval:     interval,
		SyncInterval:       interval,
		StatsCheckInterval: interval,
	}
}

func TestWorkers_RunTasks(t *testing.T) {
	m := &fakeMaintainer{}
	cfg := testConfig(10 * time.Millisecond)

	reaper := NewReaperWorker(m, cfg, zerolog.Nop())
	syncer := NewSyncWorker(m, cfg, zerolog.Nop())
	checker := NewStatsChecker(m, cfg, zerolog.Nop())

	reaper.Start()
	syncer.Start()
	checker.Start()

	assert.Eventually(t, func() bool {
		return m.reaps.Load() > 0 && m.syncs.Load() > 0 && m.checks.Load() > 0
	}, time.Second, 5*time.Millisecond)

	reaper.Stop()
	syncer.Stop()
	checker.Stop()

	assert.Equal(t, int64(time.Hour), m.timeout.Load())
}

func TestPeriodic_StopIsIdempotent(t *testing.T) {
	p := newPeriodic("test", 10*time.Millisecond, func(ctx context.Context) {}, zerolog.Nop())
	p.Start()
	p.Stop()
	p.Stop()
}

func TestPeriodic_DisabledWithoutInterval(t *testing.T) {
	var runs atomic.Int32
	p := newPeriodic("test", 0, func(ctx context.Context) { runs.Add(1) }, zerolog.Nop())

	p.Start()
	time.Sleep(20 * time.Millisecond)
	p.Stop()

	assert.Zero(t, runs.Load())
}

func TestPeriodic_TickRecoversPanic(t *testing.T) {
	p := newPeriodic("test", time.Second, func(ctx context.Context) { panic("boom") }, zerolog.Nop())

	assert.NotPanics(t, p.tick)
}

func TestPeriodic_SkipsOverlappingTicks(t *testing.T) {
	release := make(chan struct{})
	var runs atomic.Int32

	p := newPeriodic("test", 5*time.Millisecond, func(ctx context.Context) {
		runs.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
		}
	}, zerolog.Nop())
	p.timeout = time.Minute

	p.Start()
	assert.Eventually(t, func() bool { return p.skipped.Load() > 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	close(release)
	p.Stop()
}

func TestPeriodic_StopCancelsRunningTask(t *testing.T) {
	started := make(chan struct{}, 1)
	var cancelled atomic.Bool

	p := newPeriodic("test", 5*time.Millisecond, func(ctx context.Context) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		cancelled.Store(true)
	}, zerolog.Nop())
	p.timeout = time.Minute

	p.Start()
	<-started
	p.Stop()

	assert.True(t, cancelled.Load())
}
