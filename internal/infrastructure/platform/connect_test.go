package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Conte777/ScraperPool/config"
	pkgerrors "github.com/Conte777/ScraperPool/pkg/errors"
)

type flakyClient struct {
	failures []error
	calls    int
}

func (c *flakyClient) AccountID() string { return "flaky" }

func (c *flakyClient) Connect(ctx context.Context) error {
	c.calls++
	if len(c.failures) == 0 {
		return nil
	}
	err := c.failures[0]
	c.failures = c.failures[1:]
	return err
}

func (c *flakyClient) IsConnected() bool { return c.calls > 0 && len(c.failures) == 0 }
func (c *flakyClient) IsAuthorized(ctx context.Context) (bool, error) { return true, nil }
func (c *flakyClient) Disconnect(ctx context.Context) error { return nil }
func (c *flakyClient) MakeRequest(ctx context.Context, method string, params map[string]string) ([]byte, error) {
	return nil, nil
}

func TestConnectWithRetry_RetriesTransient(t *testing.T) {
	client := &flakyClient{failures: []error{
		pkgerrors.NewTransientConnectionError("proxy timeout", nil),
		pkgerrors.NewTransientConnectionError("proxy timeout", nil),
	}}

	err := ConnectWithRetry(context.Background(), &config.ConnectionConfig{MaxRetries: 3}, client, zerolog.Nop())
	if err != nil {
		t.Fatalf("Expected success on third attempt, got %v", err)
	}
	if client.calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", client.calls)
	}
}

func TestConnectWithRetry_GivesUpAfterMaxRetries(t *testing.T) {
	transient := pkgerrors.NewTransientConnectionError("network down", nil)
	client := &flakyClient{failures: []error{transient, transient, transient, transient}}

	err := ConnectWithRetry(context.Background(), &config.ConnectionConfig{MaxRetries: 3}, client, zerolog.Nop())
	if !pkgerrors.IsTransient(err) {
		t.Errorf("Expected transient error, got %v", err)
	}
	if client.calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", client.calls)
	}
}

func TestConnectWithRetry_StructuralErrorShortCircuits(t *testing.T) {
	authErr := pkgerrors.NewAuthorizationError("token revoked", nil)
	client := &flakyClient{failures: []error{authErr}}

	err := ConnectWithRetry(context.Background(), &config.ConnectionConfig{MaxRetries: 3}, client, zerolog.Nop())
	if !errors.Is(err, authErr) {
		t.Errorf("Expected authorization error, got %v", err)
	}
	if client.calls != 1 {
		t.Errorf("Expected a single attempt, got %d", client.calls)
	}
}
