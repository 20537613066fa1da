package instagram

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	domainerrors "github.com/Conte777/ScraperPool/internal/domain/pool/errors"
	pkgerrors "github.com/Conte777/ScraperPool/pkg/errors"
)

const (
	requestTimeout = 30 * time.Second
	userAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	webAppID       = "936619743392459"

	cookieSession = "sessionid"
	cookieCSRF    = "csrftoken"
)

// Client talks to the Instagram private web API with a stored cookie session
type Client struct {
	accountID   string
	login       string
	apiURL      string
	maxFailures int

	http *fasthttp.Client

	mu         sync.RWMutex
	cookies    map[string]string
	connected  bool
	authorized bool
	failures   int

	logger zerolog.Logger
}

// ClientConfig holds configuration for Client
type ClientConfig struct {
	AccountID   string
	Login       string
	Cookies     map[string]string
	APIURL      string
	MaxFailures int
	Dial        fasthttp.DialFunc
	Logger      zerolog.Logger
}

// NewClient creates an Instagram client. The cookie map is copied.
func NewClient(cfg ClientConfig) *Client {
	cookies := make(map[string]string, len(cfg.Cookies))
	for k, v := range cfg.Cookies {
		cookies[k] = v
	}

	maxFailures := cfg.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 3
	}

	return &Client{
		accountID:   cfg.AccountID,
		login:       cfg.Login,
		apiURL:      strings.TrimRight(cfg.APIURL, "/"),
		maxFailures: maxFailures,
		http: &fasthttp.Client{
			Name:         userAgent,
			Dial:         cfg.Dial,
			ReadTimeout:  requestTimeout,
			WriteTimeout: requestTimeout,
		},
		cookies: cookies,
		logger:  cfg.Logger.With().Str("component", "instagram_client").Str("account_id", cfg.AccountID).Logger(),
	}
}

// AccountID returns the worker account id
func (c *Client) AccountID() string {
	return c.accountID
}

// Connect checks the stored session against accounts/current_user
func (c *Client) Connect(ctx context.Context) error {
	if c.IsConnected() {
		return nil
	}

	c.mu.RLock()
	session := c.cookies[cookieSession]
	c.mu.RUnlock()
	if session == "" {
		return pkgerrors.NewAuthorizationError("instagram session cookie is missing", nil)
	}

	if _, err := c.do(ctx, "accounts/current_user", map[string]string{"edit": "true"}); err != nil {
		return err
	}

	c.mu.Lock()
	c.connected = true
	c.authorized = true
	c.failures = 0
	c.mu.Unlock()

	c.logger.Info().Str("login", c.login).Msg("Instagram session verified")
	return nil
}

// IsConnected reports whether Connect succeeded
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// IsAuthorized is false once the session is rejected or too many requests failed in a row
func (c *Client) IsAuthorized(ctx context.Context) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.authorized, nil
}

// Failures returns the number of consecutive failed requests
func (c *Client) Failures() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.failures
}

// MakeRequest issues a GET to {apiURL}/{method}/ and returns the body
func (c *Client) MakeRequest(ctx context.Context, method string, params map[string]string) ([]byte, error) {
	if !c.IsConnected() {
		return nil, domainerrors.ErrNotConnected
	}

	body, err := c.do(ctx, method, params)
	if err != nil {
		c.recordFailure(err)
		return nil, err
	}

	c.mu.Lock()
	c.failures = 0
	c.mu.Unlock()

	return body, nil
}

// Disconnect drops the connection state. Cookies are kept for a later Connect.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	c.connected = false
	c.authorized = false
	c.mu.Unlock()

	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) recordFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failures++
	if pkgerrors.IsAuthorization(err) || c.failures >= c.maxFailures {
		if c.authorized {
			c.logger.Warn().Err(err).Int("failures", c.failures).Msg("Instagram account marked unauthorized")
		}
		c.authorized = false
	}
}

func (c *Client) do(ctx context.Context, method string, params map[string]string) ([]byte, error) {
	if method == "" {
		return nil, pkgerrors.NewValidationError("instagram method is required")
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	uri := c.apiURL + "/" + strings.Trim(method, "/") + "/"
	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("X-IG-App-ID", webAppID)
	req.Header.Set("Accept", "application/json")
	for k, v := range params {
		req.URI().QueryArgs().Set(k, v)
	}

	c.mu.RLock()
	for k, v := range c.cookies {
		req.Header.SetCookie(k, v)
	}
	if csrf := c.cookies[cookieCSRF]; csrf != "" {
		req.Header.Set("X-CSRFToken", csrf)
	}
	c.mu.RUnlock()

	deadline := time.Now().Add(requestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, pkgerrors.NewTransientConnectionError("instagram request failed", err)
	}

	c.storeCookies(resp)

	status := resp.StatusCode()
	body := resp.Body()

	switch {
	case status == fasthttp.StatusUnauthorized || status == fasthttp.StatusForbidden:
		return nil, pkgerrors.NewAuthorizationError(fmt.Sprintf("instagram returned status %d", status), nil)
	case bytes.Contains(body, []byte("login_required")) || bytes.Contains(body, []byte("checkpoint_required")):
		return nil, pkgerrors.NewAuthorizationError("instagram session expired", nil)
	case status == fasthttp.StatusTooManyRequests:
		return nil, pkgerrors.NewRateLimitExceededError("instagram rate limit exceeded", nil)
	case status >= fasthttp.StatusInternalServerError:
		return nil, pkgerrors.NewTransientConnectionError(fmt.Sprintf("instagram returned status %d", status), nil)
	case status != fasthttp.StatusOK:
		return nil, fmt.Errorf("instagram returned status %d for %s", status, method)
	}

	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}

// storeCookies merges Set-Cookie headers into the session, so a rotated csrftoken is used next time
func (c *Client) storeCookies(resp *fasthttp.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp.Header.VisitAllCookie(func(key, value []byte) {
		cookie := fasthttp.AcquireCookie()
		defer fasthttp.ReleaseCookie(cookie)

		if err := cookie.ParseBytes(value); err != nil {
			return
		}
		if v := string(cookie.Value()); v != "" {
			c.cookies[string(key)] = v
		}
	})
}
