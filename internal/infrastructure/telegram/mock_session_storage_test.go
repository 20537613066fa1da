package telegram

import (
	"context"

	"github.com/gotd/td/session"
)

// mockSessionStorage implements session.Storage for testing
type mockSessionStorage struct {
	data []byte
}

func (m *mockSessionStorage) LoadSession(ctx context.Context) ([]byte, error) {
	if m.data == nil {
		return nil, session.ErrNotFound
	}
	return m.data, nil
}

func (m *mockSessionStorage) StoreSession(ctx context.Context, data []byte) error {
	m.data = data
	return nil
}

var _ session.Storage = (*mockSessionStorage)(nil)
