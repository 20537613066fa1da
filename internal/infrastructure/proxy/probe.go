package proxy

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/Conte777/ScraperPool/config"
	pkgerrors "github.com/Conte777/ScraperPool/pkg/errors"
)

// ProbeResult is the outcome of a successful proxy probe
type ProbeResult struct {
	Proxy      string        `json:"proxy"`
	ExternalIP string        `json:"external_ip"`
	Latency    time.Duration `json:"latency_ns"`
}

// Prober performs network reachability checks through a proxy.
// It is used by admin paths only, never during selection.
type Prober struct {
	url     string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewProber creates a proxy prober
func NewProber(cfg *config.ProxyConfig, logger zerolog.Logger) *Prober {
	timeout := cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Prober{
		url:     cfg.ProbeURL,
		timeout: timeout,
		logger:  logger.With().Str("component", "proxy-prober").Logger(),
	}
}

// Check validates raw and fetches the probe URL through it
func (p *Prober) Check(ctx context.Context, raw string) (*ProbeResult, error) {
	px, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	client := &fasthttp.Client{
		Dial:         px.DialFunc(p.timeout),
		ReadTimeout:  p.timeout,
		WriteTimeout: p.timeout,
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(p.url)
	req.Header.SetMethod(fasthttp.MethodGet)

	deadline := time.Now().Add(p.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	started := time.Now()
	if err := client.DoDeadline(req, resp, deadline); err != nil {
		p.logger.Warn().Err(err).Str("proxy", px.String()).Msg("Proxy probe failed")
		return nil, pkgerrors.NewTransientConnectionError("proxy probe failed", err)
	}
	latency := time.Since(started)

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, pkgerrors.NewTransientConnectionError("proxy probe returned status "+fasthttp.StatusMessage(resp.StatusCode()), nil)
	}

	result := &ProbeResult{
		Proxy:      px.String(),
		ExternalIP: externalIP(resp.Body()),
		Latency:    latency,
	}

	p.logger.Info().
		Str("proxy", result.Proxy).
		Str("external_ip", result.ExternalIP).
		Dur("latency", latency).
		Msg("Proxy probe succeeded")

	return result, nil
}

// externalIP reads {"ip": "..."} bodies and falls back to plain text
func externalIP(body []byte) string {
	var payload struct {
		IP string `json:"ip"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.IP != "" {
		return payload.IP
	}
	return strings.TrimSpace(string(body))
}
