package workers

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Conte777/ScraperPool/internal/domain/pool/entities"
)

// Maintainer is the pool surface the background workers drive
type Maintainer interface {
	ReapAll(ctx context.Context, timeout time.Duration) map[entities.Platform]int
	SyncStats(ctx context.Context) entities.SyncReport
	CheckUsageLimits(ctx context.Context) int
}

// periodic runs task every interval until stopped. A tick that fires while the
// previous run is still busy is skipped.
type periodic struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	task     func(ctx context.Context)
	logger   zerolog.Logger

	running atomic.Bool
	skipped atomic.Int64

	done     chan struct{}
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

func newPeriodic(name string, interval time.Duration, task func(ctx context.Context), logger zerolog.Logger) *periodic {
	ctx, cancel := context.WithCancel(context.Background())

	return &periodic{
		name:     name,
		interval: interval,
		timeout:  interval,
		task:     task,
		logger:   logger.With().Str("component", name).Logger(),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts the worker loop
func (p *periodic) Start() {
	if p.interval <= 0 {
		p.logger.Warn().Dur("interval", p.interval).Msg("Worker disabled, interval is not positive")
		return
	}

	p.logger.Info().Dur("interval", p.interval).Msg("Starting worker")

	p.wg.Add(1)
	go p.run()
}

// Stop cancels a running task and waits for the loop to exit
func (p *periodic) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Info().Msg("Stopping worker")

		p.cancel()
		close(p.done)
		p.wg.Wait()

		p.logger.Info().Msg("Worker stopped")
	})
}

func (p *periodic) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			if !p.running.CompareAndSwap(false, true) {
				p.skipped.Add(1)
				p.logger.Warn().Msg("Previous run still in progress, skipping tick")
				continue
			}

			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				defer p.running.Store(false)
				p.tick()
			}()
		}
	}
}

// tick runs the task once with a bounded context and swallows panics
func (p *periodic) tick() {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Worker panic recovered")
		}
	}()

	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	started := time.Now()
	p.task(ctx)

	p.logger.Debug().Dur("took", time.Since(started)).Msg("Worker run completed")
}
