package vk

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	domainerrors "github.com/Conte777/ScraperPool/internal/domain/pool/errors"
	pkgerrors "github.com/Conte777/ScraperPool/pkg/errors"
)

const requestTimeout = 30 * time.Second

// VK API error codes, https://dev.vk.com/reference/errors
const (
	errCodeUnknown          = 1
	errCodeAuthFailed       = 5
	errCodeTooManyRequests  = 6
	errCodeFloodControl     = 9
	errCodeInternal         = 10
	errCodeValidationNeeded = 17
	errCodeRateLimit        = 29
)

// APIError is an error object returned by the VK API
type APIError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vk api error %d: %s", e.Code, e.Message)
}

type envelope struct {
	Response json.RawMessage `json:"response"`
	Error    *APIError       `json:"error"`
}

// Client is a VK API client bound to one access token
type Client struct {
	accountID string
	token     string
	apiURL    string
	version   string

	http    *fasthttp.Client
	limiter *rate.Limiter

	mu         sync.RWMutex
	connected  bool
	authorized bool

	logger zerolog.Logger
}

// ClientConfig holds configuration for Client
type ClientConfig struct {
	AccountID string
	Token     string
	APIURL    string
	Version   string
	Dial      fasthttp.DialFunc
	Logger    zerolog.Logger
}

// NewClient creates a VK client. No network access happens until Connect.
func NewClient(cfg ClientConfig) *Client {
	return &Client{
		accountID: cfg.AccountID,
		token:     cfg.Token,
		apiURL:    strings.TrimRight(cfg.APIURL, "/"),
		version:   cfg.Version,
		http: &fasthttp.Client{
			Name:         "pool-service",
			Dial:         cfg.Dial,
			ReadTimeout:  requestTimeout,
			WriteTimeout: requestTimeout,
		},
		// VK allows 3 requests per second per token
		limiter: rate.NewLimiter(rate.Limit(3), 1),
		logger:  cfg.Logger.With().Str("component", "vk_client").Str("account_id", cfg.AccountID).Logger(),
	}
}

// AccountID returns the worker account id
func (c *Client) AccountID() string {
	return c.accountID
}

// Connect verifies the token with users.get
func (c *Client) Connect(ctx context.Context) error {
	if c.IsConnected() {
		return nil
	}

	if _, err := c.call(ctx, "users.get", nil); err != nil {
		if pkgerrors.IsAuthorization(err) {
			c.setState(false, false)
		}
		return err
	}

	c.setState(true, true)
	c.logger.Info().Msg("VK token verified")
	return nil
}

// IsConnected reports whether Connect succeeded and Disconnect was not called
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// IsAuthorized returns whether the token was last accepted by VK
func (c *Client) IsAuthorized(ctx context.Context) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.authorized, nil
}

// MakeRequest calls a VK API method and returns the raw "response" payload
func (c *Client) MakeRequest(ctx context.Context, method string, params map[string]string) ([]byte, error) {
	if !c.IsConnected() {
		return nil, domainerrors.ErrNotConnected
	}

	resp, err := c.call(ctx, method, params)
	if err != nil && pkgerrors.IsAuthorization(err) {
		c.setState(true, false)
	}
	return resp, err
}

// Disconnect releases idle connections. Safe to call repeatedly.
func (c *Client) Disconnect(ctx context.Context) error {
	c.setState(false, false)
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) setState(connected, authorized bool) {
	c.mu.Lock()
	c.connected = connected
	c.authorized = authorized
	c.mu.Unlock()
}

func (c *Client) call(ctx context.Context, method string, params map[string]string) ([]byte, error) {
	if method == "" {
		return nil, pkgerrors.NewValidationError("vk method is required")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)
	for k, v := range params {
		args.Set(k, v)
	}
	args.Set("access_token", c.token)
	args.Set("v", c.version)

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.apiURL + "/" + method)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/x-www-form-urlencoded")
	req.SetBody(args.QueryString())

	deadline := time.Now().Add(requestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, pkgerrors.NewTransientConnectionError("vk request failed", err)
	}

	if status := resp.StatusCode(); status >= fasthttp.StatusInternalServerError {
		return nil, pkgerrors.NewTransientConnectionError(fmt.Sprintf("vk returned status %d", status), nil)
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("failed to decode vk response: %w", err)
	}

	if env.Error != nil {
		c.logger.Debug().
			Str("method", method).
			Int("error_code", env.Error.Code).
			Str("error_msg", env.Error.Message).
			Msg("VK API returned an error")
		return nil, classify(env.Error)
	}

	return env.Response, nil
}

// classify maps VK error codes onto the shared error taxonomy
func classify(apiErr *APIError) error {
	switch apiErr.Code {
	case errCodeAuthFailed, errCodeValidationNeeded:
		return pkgerrors.NewAuthorizationError("vk rejected the access token", apiErr)
	case errCodeTooManyRequests, errCodeFloodControl, errCodeRateLimit:
		return pkgerrors.NewRateLimitExceededError("vk rate limit exceeded", apiErr)
	case errCodeUnknown, errCodeInternal:
		return pkgerrors.NewTransientConnectionError("vk internal error", apiErr)
	default:
		return apiErr
	}
}
