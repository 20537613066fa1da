package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	domainerrors "github.com/Conte777/ScraperPool/internal/domain/pool/errors"
	"github.com/Conte777/ScraperPool/internal/infrastructure/proxy"
	"github.com/Conte777/ScraperPool/internal/utils"
	pkgerrors "github.com/Conte777/ScraperPool/pkg/errors"
)

// Supported MakeRequest methods
const (
	MethodResolveUsername = "contacts.resolveUsername"
	MethodGetNearestDC    = "help.getNearestDc"
	MethodGetSelf         = "users.getSelf"
)

// runner is the part of *telegram.Client the pool worker uses
type runner interface {
	Run(ctx context.Context, f func(ctx context.Context) error) error
	AuthStatus(ctx context.Context) (bool, error)
	API() *tg.Client
	Self(ctx context.Context) (*tg.User, error)
}

type gotdRunner struct {
	*telegram.Client
}

func (r gotdRunner) AuthStatus(ctx context.Context) (bool, error) {
	status, err := r.Auth().Status(ctx)
	if err != nil {
		return false, err
	}
	return status.Authorized, nil
}

func newGotdRunner(apiID int, apiHash string, opts telegram.Options) runner {
	return gotdRunner{Client: telegram.NewClient(apiID, apiHash, opts)}
}

// MTProtoClient is a pool worker client on top of gotd/td
type MTProtoClient struct {
	accountID string

	client    runner
	newRunner func(apiID int, apiHash string, opts telegram.Options) runner

	apiID   int
	apiHash string

	sessionStorage session.Storage
	dial           proxy.ContextDialFunc

	connected     bool
	authorized    bool
	disconnecting bool
	mu            sync.RWMutex
	cancelFunc    context.CancelFunc
	runDone       chan struct{} // closed when client.Run returns

	logger zerolog.Logger

	api *tg.Client
}

// MTProtoClientConfig holds configuration for MTProtoClient
type MTProtoClientConfig struct {
	AccountID      string
	APIID          int
	APIHash        string
	Phone          string
	SessionStorage session.Storage
	Dial           proxy.ContextDialFunc
	Logger         zerolog.Logger
}

// NewMTProtoClient creates a client. Nothing is dialed until Connect.
func NewMTProtoClient(cfg MTProtoClientConfig) (*MTProtoClient, error) {
	if cfg.APIID == 0 {
		return nil, domainerrors.ErrMissingCredentials
	}
	if cfg.APIHash == "" {
		return nil, domainerrors.ErrMissingCredentials
	}
	if cfg.SessionStorage == nil {
		return nil, fmt.Errorf("session storage is required")
	}

	return &MTProtoClient{
		accountID:      cfg.AccountID,
		apiID:          cfg.APIID,
		apiHash:        cfg.APIHash,
		sessionStorage: cfg.SessionStorage,
		dial:           cfg.Dial,
		newRunner:      newGotdRunner,
		logger: cfg.Logger.With().
			Str("component", "mtproto_client").
			Str("account_id", cfg.AccountID).
			Str("phone", utils.MaskPhoneNumber(cfg.Phone)).
			Logger(),
	}, nil
}

// AccountID returns the worker account id
func (c *MTProtoClient) AccountID() string {
	return c.accountID
}

// Connect starts the MTProto run loop and waits until the session is loaded.
// A session that is not signed in still connects; IsAuthorized reports false for it.
// The run loop outlives ctx. It stops on Disconnect or when the connection drops,
// after which the client reports disconnected and can be connected again.
func (c *MTProtoClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	if c.disconnecting {
		c.mu.Unlock()
		return domainerrors.ErrNotConnected
	}
	defer c.mu.Unlock()

	c.logger.Debug().Msg("connecting to Telegram")

	opts := telegram.Options{
		SessionStorage: c.sessionStorage,
		NoUpdates:      true,
	}
	if c.dial != nil {
		opts.Resolver = dcs.Plain(dcs.PlainOptions{Dial: dcs.DialFunc(c.dial)})
	}
	c.client = c.newRunner(c.apiID, c.apiHash, opts)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancelFunc = cancel

	readyChan := make(chan bool, 1)
	errChan := make(chan error, 1)
	runDone := make(chan struct{})
	c.runDone = runDone

	client := c.client
	go func() {
		err := client.Run(runCtx, func(ctx context.Context) error {
			authorized, err := client.AuthStatus(ctx)
			if err != nil {
				return fmt.Errorf("failed to check auth status: %w", err)
			}

			readyChan <- authorized

			<-ctx.Done()
			return ctx.Err()
		})
		errChan <- err
		close(runDone)
		c.runExited(runDone, err)
	}()

	select {
	case authorized := <-readyChan:
		c.api = client.API()
		c.connected = true
		c.authorized = authorized
		if authorized {
			c.logger.Info().Msg("Telegram session restored")
		} else {
			c.logger.Warn().Msg("Telegram session is not authorized")
		}
		return nil
	case err := <-errChan:
		cancel()
		if err == nil {
			err = fmt.Errorf("telegram client stopped before becoming ready")
		}
		return classify(err)
	case <-ctx.Done():
		cancel()
		<-runDone
		return ctx.Err()
	}
}

// Disconnect stops the run loop and waits for it, bounded by ctx.
// Safe to call repeatedly and concurrently.
func (c *MTProtoClient) Disconnect(ctx context.Context) error {
	c.mu.Lock()

	if c.disconnecting || !c.connected {
		c.mu.Unlock()
		return nil
	}

	c.disconnecting = true
	cancelFunc := c.cancelFunc
	runDone := c.runDone
	c.mu.Unlock()

	if cancelFunc != nil {
		cancelFunc()

		if runDone != nil {
			select {
			case <-runDone:
			case <-ctx.Done():
				c.logger.Warn().Msg("disconnect timeout reached while waiting for client shutdown")
			}
		}
	}

	c.mu.Lock()
	c.client = nil
	c.api = nil
	c.connected = false
	c.authorized = false
	c.cancelFunc = nil
	c.runDone = nil
	c.disconnecting = false
	c.mu.Unlock()

	c.logger.Info().Msg("disconnected from Telegram")
	return nil
}

// runExited forgets a run loop that stopped on its own. Loops stopped by
// Disconnect, or already replaced by a newer Connect, are left alone.
func (c *MTProtoClient) runExited(runDone chan struct{}, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disconnecting || c.runDone != runDone {
		return
	}

	if c.connected {
		c.logger.Warn().Err(err).Msg("Telegram run loop stopped, connection lost")
	}
	if c.cancelFunc != nil {
		c.cancelFunc()
	}

	c.client = nil
	c.api = nil
	c.connected = false
	c.authorized = false
	c.cancelFunc = nil
	c.runDone = nil
}

// IsConnected checks if client is connected to Telegram
func (c *MTProtoClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// IsAuthorized asks Telegram whether the session is signed in
func (c *MTProtoClient) IsAuthorized(ctx context.Context) (bool, error) {
	c.mu.RLock()
	client := c.client
	connected := c.connected
	c.mu.RUnlock()

	if !connected || client == nil {
		return false, nil
	}

	authorized, err := client.AuthStatus(ctx)
	if err != nil {
		err = classify(err)
		if pkgerrors.IsAuthorization(err) {
			c.setAuthorized(false)
			return false, nil
		}
		return false, err
	}

	c.setAuthorized(authorized)
	return authorized, nil
}

// MakeRequest runs one of the supported read-only RPC methods and returns its JSON encoding
func (c *MTProtoClient) MakeRequest(ctx context.Context, method string, params map[string]string) ([]byte, error) {
	c.mu.RLock()
	api := c.api
	client := c.client
	connected := c.connected
	c.mu.RUnlock()

	if !connected || api == nil {
		return nil, domainerrors.ErrNotConnected
	}

	var (
		result any
		err    error
	)

	switch method {
	case MethodResolveUsername:
		username := strings.TrimPrefix(params["username"], "@")
		if username == "" {
			return nil, pkgerrors.NewValidationError("username parameter is required")
		}
		var resolved *tg.ContactsResolvedPeer
		resolved, err = api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})
		if err == nil {
			result = resolvedPeer(resolved)
		}
	case MethodGetNearestDC:
		var dc *tg.NearestDC
		dc, err = api.HelpGetNearestDC(ctx)
		if err == nil {
			result = map[string]any{"country": dc.Country, "this_dc": dc.ThisDC, "nearest_dc": dc.NearestDC}
		}
	case MethodGetSelf:
		var self *tg.User
		self, err = client.Self(ctx)
		if err == nil {
			result = map[string]any{"id": self.ID, "username": self.Username, "bot": self.Bot}
		}
	default:
		return nil, fmt.Errorf("%w: %s", domainerrors.ErrUnsupportedMethod, method)
	}

	if err != nil {
		err = classify(err)
		if pkgerrors.IsAuthorization(err) {
			c.setAuthorized(false)
		}
		c.logger.Debug().Err(err).Str("method", method).Msg("Telegram request failed")
		return nil, err
	}

	return json.Marshal(result)
}

func (c *MTProtoClient) setAuthorized(v bool) {
	c.mu.Lock()
	c.authorized = v
	c.mu.Unlock()
}

func resolvedPeer(resolved *tg.ContactsResolvedPeer) map[string]any {
	out := map[string]any{}

	switch peer := resolved.Peer.(type) {
	case *tg.PeerUser:
		out["type"] = "user"
		out["id"] = peer.UserID
	case *tg.PeerChannel:
		out["type"] = "channel"
		out["id"] = peer.ChannelID
	case *tg.PeerChat:
		out["type"] = "chat"
		out["id"] = peer.ChatID
	}

	for _, chat := range resolved.Chats {
		if channel, ok := chat.(*tg.Channel); ok {
			out["title"] = channel.Title
			out["username"] = channel.Username
			out["access_hash"] = channel.AccessHash
		}
	}

	return out
}
