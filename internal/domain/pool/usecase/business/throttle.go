package business

import (
	"context"
	"sync"
	"time"

	"github.com/Conte777/ScraperPool/config"
	"github.com/Conte777/ScraperPool/internal/domain/pool/deps"
	"github.com/Conte777/ScraperPool/internal/domain/pool/entities"
)

// ThrottleConfig holds the per client delays of the degradation policy
type ThrottleConfig struct {
	RequestDelay          time.Duration
	GroupDelay            time.Duration
	DegradedRequestFactor int
	DegradedGroupFactor   int
}

// NewThrottleConfig extracts throttle settings from the pool config
func NewThrottleConfig(cfg *config.PoolConfig) ThrottleConfig {
	return ThrottleConfig{
		RequestDelay:          cfg.RequestDelay,
		GroupDelay:            cfg.GroupDelay,
		DegradedRequestFactor: cfg.DegradedRequestFactor,
		DegradedGroupFactor:   cfg.DegradedGroupFactor,
	}
}

// delays returns the required request and group delays for the given mode
func (c ThrottleConfig) delays(degraded bool) (request, group time.Duration) {
	request, group = c.RequestDelay, c.GroupDelay
	if degraded {
		if c.DegradedRequestFactor > 0 {
			request *= time.Duration(c.DegradedRequestFactor)
		}
		if c.DegradedGroupFactor > 0 {
			group *= time.Duration(c.DegradedGroupFactor)
		}
	}
	return request, group
}

// throttle keeps the two last request timestamps of one live client.
// Slots are reserved under the mutex and slept outside of it, so concurrent
// requests on the same client queue up behind each other.
type throttle struct {
	cfg ThrottleConfig

	mu               sync.Mutex
	lastRequest      time.Time
	lastGroupRequest time.Time
	lastTarget       string

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func newThrottle(cfg ThrottleConfig) *throttle {
	return &throttle{
		cfg:   cfg,
		now:   time.Now,
		sleep: sleepContext,
	}
}

// reserve books the next request slot and returns how long to wait for it.
// The wait is max(0, required - elapsed) for the request delay and, when the
// target changes, for the group delay.
func (t *throttle) reserve(target string, degraded bool) time.Duration {
	requestDelay, groupDelay := t.cfg.delays(degraded)

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var wait time.Duration

	if !t.lastRequest.IsZero() {
		wait = max(wait, requestDelay-now.Sub(t.lastRequest))
	}

	switchesGroup := target != "" && target != t.lastTarget
	if switchesGroup && t.lastTarget != "" && !t.lastGroupRequest.IsZero() {
		wait = max(wait, groupDelay-now.Sub(t.lastGroupRequest))
	}

	slot := now.Add(wait)
	t.lastRequest = slot
	if target != "" {
		t.lastGroupRequest = slot
		t.lastTarget = target
	}

	return wait
}

// Wait blocks until the client may send a request to target
func (t *throttle) Wait(ctx context.Context, target string, degraded bool) (time.Duration, error) {
	wait := t.reserve(target, degraded)
	if wait <= 0 {
		return 0, ctx.Err()
	}
	return wait, t.sleep(ctx, wait)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TargetParam is the request parameter naming the group, channel or profile a
// MakeRequest call is aimed at. Calls without it only pay the request delay.
const TargetParam = "target"

// Client is a live platform client handed out by the pool.
// Every outbound request waits on the account's throttle first.
type Client struct {
	inner deps.PlatformClient

	platform entities.Platform
	throttle *throttle
	degraded func() bool
	metrics  deps.PoolMetrics
}

var _ deps.PlatformClient = (*Client)(nil)

func newClient(platform entities.Platform, inner deps.PlatformClient, cfg ThrottleConfig, degraded func() bool, metrics deps.PoolMetrics) *Client {
	return &Client{
		inner:    inner,
		platform: platform,
		throttle: newThrottle(cfg),
		degraded: degraded,
		metrics:  metrics,
	}
}

// AccountID returns the worker account id
func (c *Client) AccountID() string {
	return c.inner.AccountID()
}

// Connect connects the underlying client
func (c *Client) Connect(ctx context.Context) error {
	return c.inner.Connect(ctx)
}

// IsConnected reports whether the underlying client is connected
func (c *Client) IsConnected() bool {
	return c.inner.IsConnected()
}

// IsAuthorized reports whether the underlying session is signed in
func (c *Client) IsAuthorized(ctx context.Context) (bool, error) {
	return c.inner.IsAuthorized(ctx)
}

// Disconnect disconnects the underlying client
func (c *Client) Disconnect(ctx context.Context) error {
	return c.inner.Disconnect(ctx)
}

// Throttle waits for the next request slot towards target (a group, channel or profile).
// Callers that use the native protocol API call it before each outbound request.
func (c *Client) Throttle(ctx context.Context, target string) error {
	wait, err := c.throttle.Wait(ctx, target, c.Degraded())
	if wait > 0 && c.metrics != nil {
		c.metrics.ObserveThrottleWait(string(c.platform), wait)
	}
	return err
}

// MakeRequest throttles towards params[TargetParam] and then performs method
func (c *Client) MakeRequest(ctx context.Context, method string, params map[string]string) ([]byte, error) {
	return c.Request(ctx, params[TargetParam], method, params)
}

// Request throttles and then performs method against target
func (c *Client) Request(ctx context.Context, target, method string, params map[string]string) ([]byte, error) {
	if err := c.Throttle(ctx, target); err != nil {
		return nil, err
	}
	return c.inner.MakeRequest(ctx, method, params)
}

// Degraded reports whether the account is currently in degraded mode
func (c *Client) Degraded() bool {
	return c.degraded != nil && c.degraded()
}

// Unwrap returns the underlying platform client
func (c *Client) Unwrap() deps.PlatformClient {
	return c.inner
}
