package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conte777/ScraperPool/config"
)

func TestNewClient_Connects(t *testing.T) {
	srv := miniredis.RunT(t)

	client := NewClient(&config.RedisConfig{Addr: srv.Addr()}, zerolog.Nop())
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	assert.Equal(t, "v", client.Get(context.Background(), "k").Val())
}

func TestNewClient_UnreachableIsNotFatal(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	client := NewClient(&config.RedisConfig{Addr: addr}, zerolog.Nop())
	defer client.Close()

	assert.Error(t, client.Ping(context.Background()).Err())
}
