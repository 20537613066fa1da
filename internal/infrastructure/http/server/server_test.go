package server

import (
	"context"
	"net"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func TestServer_ServesMetricsAndRoutes(t *testing.T) {
	srv := NewServer("pool-service", "0", zerolog.Nop())
	srv.RegisterMetrics()
	srv.Router.GET("/ping", func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString("pong")
	})

	ln := fasthttputil.NewInmemoryListener()
	require.NoError(t, srv.Serve(ln))
	defer srv.Shutdown(context.Background())

	client := &fasthttp.Client{
		Dial: func(addr string) (net.Conn, error) { return ln.Dial() },
	}

	status, body, err := client.Get(nil, "http://pool/ping")
	require.NoError(t, err)
	assert.Equal(t, fasthttp.StatusOK, status)
	assert.Equal(t, "pong", string(body))

	status, body, err = client.Get(nil, "http://pool/metrics")
	require.NoError(t, err)
	assert.Equal(t, fasthttp.StatusOK, status)
	assert.True(t, strings.Contains(string(body), "go_goroutines"))
}
