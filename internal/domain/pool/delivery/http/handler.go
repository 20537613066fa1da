package http

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/Conte777/ScraperPool/config"
	"github.com/Conte777/ScraperPool/internal/domain/pool/entities"
	domainerrors "github.com/Conte777/ScraperPool/internal/domain/pool/errors"
	"github.com/Conte777/ScraperPool/internal/infrastructure/proxy"
	pkgerrors "github.com/Conte777/ScraperPool/pkg/errors"
	"github.com/Conte777/ScraperPool/pkg/httputil"
)

const requestTimeout = 30 * time.Second

// PoolAdmin is the pool surface exposed to administrators
type PoolAdmin interface {
	Status(ctx context.Context) []entities.PoolStatus
	PoolStatus(ctx context.Context, platform entities.Platform) (entities.PoolStatus, error)
	Reap(ctx context.Context, platform entities.Platform, timeout time.Duration) (int, error)
	SetDegradedMode(platform entities.Platform, accountID string, degraded bool) (bool, error)
	DeleteAccount(ctx context.Context, platform entities.Platform, accountID string) error
	SyncStats(ctx context.Context) entities.SyncReport
	ResetStats(ctx context.Context, platform entities.Platform) (entities.SyncReport, error)
	Ping(ctx context.Context) error
}

// ProxyChecker probes a proxy over the network
type ProxyChecker interface {
	Check(ctx context.Context, raw string) (*proxy.ProbeResult, error)
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string                `json:"status"`
	Timestamp time.Time             `json:"timestamp"`
	Redis     bool                  `json:"redis"`
	Message   string                `json:"message,omitempty"`
	Pools     []entities.PoolStatus `json:"pools"`
}

type degradedRequest struct {
	Degraded *bool `json:"degraded"`
}

type degradedResponse struct {
	AccountID string `json:"account_id"`
	Degraded  bool   `json:"degraded"`
	Changed   bool   `json:"changed"`
}

type reapResponse struct {
	Platform entities.Platform `json:"platform"`
	Reaped   int               `json:"reaped"`
}

type proxyCheckRequest struct {
	Proxy string `json:"proxy"`
}

// Handler serves the admin API
type Handler struct {
	pools       PoolAdmin
	prober      ProxyChecker
	mapper      *pkgerrors.Mapper
	idleTimeout time.Duration
	logger      zerolog.Logger
}

// NewHandler creates the admin handler
func NewHandler(pools PoolAdmin, prober ProxyChecker, cfg *config.PoolConfig, logger zerolog.Logger) *Handler {
	return &Handler{
		pools:       pools,
		prober:      prober,
		mapper:      pkgerrors.NewMapper(logger),
		idleTimeout: cfg.IdleTimeout,
		logger:      logger.With().Str("component", "admin_http").Logger(),
	}
}

// Health reports pool sizes and fast store connectivity
func (h *Handler) Health(ctx *fasthttp.RequestCtx) {
	reqCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Redis:     true,
		Pools:     h.pools.Status(reqCtx),
	}

	if err := h.pools.Ping(reqCtx); err != nil {
		resp.Status = "unhealthy"
		resp.Redis = false
		resp.Message = "fast counter store is unreachable"
		h.logger.Warn().Err(err).Msg("Health check failed")
	}

	httputil.WriteHealthResponse(ctx, resp, resp.Redis)
}

// ListPools returns the status of every pool
func (h *Handler) ListPools(ctx *fasthttp.RequestCtx) {
	reqCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	httputil.WriteResponse(ctx, h.pools.Status(reqCtx))
}

// GetPool returns the status of one pool
func (h *Handler) GetPool(ctx *fasthttp.RequestCtx) {
	platform, ok := h.platformParam(ctx)
	if !ok {
		return
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	status, err := h.pools.PoolStatus(reqCtx, platform)
	if err != nil {
		httputil.WriteMappedError(ctx, h.mapper, err)
		return
	}

	httputil.WriteResponse(ctx, status)
}

// Reap disconnects idle clients of one pool. The idle timeout may be overridden
// with the timeout query parameter, in seconds.
func (h *Handler) Reap(ctx *fasthttp.RequestCtx) {
	platform, ok := h.platformParam(ctx)
	if !ok {
		return
	}

	timeout := h.idleTimeout
	if raw := string(ctx.QueryArgs().Peek("timeout")); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds < 0 {
			httputil.WriteMappedError(ctx, h.mapper, pkgerrors.NewValidationError("timeout must be a non-negative number of seconds"))
			return
		}
		timeout = time.Duration(seconds) * time.Second
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	reaped, err := h.pools.Reap(reqCtx, platform, timeout)
	if err != nil {
		httputil.WriteMappedError(ctx, h.mapper, err)
		return
	}

	h.logger.Info().Str("platform", string(platform)).Int("reaped", reaped).Dur("timeout", timeout).Msg("Manual reap completed")
	httputil.WriteResponse(ctx, reapResponse{Platform: platform, Reaped: reaped})
}

// SetDegraded toggles degraded mode of a live account
func (h *Handler) SetDegraded(ctx *fasthttp.RequestCtx) {
	platform, ok := h.platformParam(ctx)
	if !ok {
		return
	}
	accountID := accountParam(ctx)

	var req degradedRequest
	if err := httputil.DecodeBody(ctx, &req); err != nil {
		httputil.WriteMappedError(ctx, h.mapper, err)
		return
	}
	if req.Degraded == nil {
		httputil.WriteMappedError(ctx, h.mapper, pkgerrors.NewValidationError("degraded is required"))
		return
	}

	changed, err := h.pools.SetDegradedMode(platform, accountID, *req.Degraded)
	if err != nil {
		httputil.WriteMappedError(ctx, h.mapper, err)
		return
	}

	httputil.WriteResponse(ctx, degradedResponse{AccountID: accountID, Degraded: *req.Degraded, Changed: changed})
}

// DeleteAccount removes an account and tears down its connection
func (h *Handler) DeleteAccount(ctx *fasthttp.RequestCtx) {
	platform, ok := h.platformParam(ctx)
	if !ok {
		return
	}
	accountID := accountParam(ctx)

	reqCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if err := h.pools.DeleteAccount(reqCtx, platform, accountID); err != nil {
		httputil.WriteMappedError(ctx, h.mapper, err)
		return
	}

	httputil.WriteResponse(ctx, map[string]string{"account_id": accountID})
}

// SyncStats forces a usage sync into the durable store
func (h *Handler) SyncStats(ctx *fasthttp.RequestCtx) {
	reqCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	httputil.WriteResponse(ctx, h.pools.SyncStats(reqCtx))
}

// ResetStats drops usage counters, optionally for one platform
func (h *Handler) ResetStats(ctx *fasthttp.RequestCtx) {
	var platform entities.Platform
	if raw := string(ctx.QueryArgs().Peek("platform")); raw != "" {
		p, ok := entities.ParsePlatform(raw)
		if !ok {
			httputil.WriteMappedError(ctx, h.mapper, domainerrors.ErrUnknownPlatform)
			return
		}
		platform = p
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	report, err := h.pools.ResetStats(reqCtx, platform)
	if err != nil {
		httputil.WriteMappedError(ctx, h.mapper, err)
		return
	}

	httputil.WriteResponse(ctx, report)
}

// CheckProxy validates a proxy URL and probes it over the network
func (h *Handler) CheckProxy(ctx *fasthttp.RequestCtx) {
	var req proxyCheckRequest
	if err := httputil.DecodeBody(ctx, &req); err != nil {
		httputil.WriteMappedError(ctx, h.mapper, err)
		return
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	result, err := h.prober.Check(reqCtx, req.Proxy)
	if err != nil {
		httputil.WriteMappedError(ctx, h.mapper, err)
		return
	}

	httputil.WriteResponse(ctx, result)
}

func (h *Handler) platformParam(ctx *fasthttp.RequestCtx) (entities.Platform, bool) {
	raw, _ := ctx.UserValue("platform").(string)
	platform, ok := entities.ParsePlatform(raw)
	if !ok {
		httputil.WriteMappedError(ctx, h.mapper, domainerrors.ErrUnknownPlatform)
		return "", false
	}
	return platform, true
}

func accountParam(ctx *fasthttp.RequestCtx) string {
	id, _ := ctx.UserValue("id").(string)
	return id
}
