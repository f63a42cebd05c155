package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"mediaq/internal/pkg/config"
	"mediaq/internal/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{Server: config.ServerConfig{Host: "127.0.0.1", Port: 0, ShutdownTimeout: 1}}
	return NewEchoServer(cfg, logger.NewNop())
}

func TestServer_ListenReportsBoundAddr(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, "127.0.0.1:0", s.Addr())

	require.NoError(t, s.Listen())
	assert.NotEqual(t, "127.0.0.1:0", s.Addr())
	assert.True(t, strings.HasPrefix(s.Addr(), "127.0.0.1:"))

	require.NoError(t, s.Listen(), "second Listen is a no-op")
	require.NoError(t, s.Shutdown(context.Background()))
}

func TestServer_StartServeShutdown(t *testing.T) {
	s := newTestServer(t)
	s.GetEcho().GET("/ping", func(c echo.Context) error {
		return SuccessResponse(c, http.StatusOK, map[string]string{"pong": "yes"}, "ok")
	})
	require.NoError(t, s.Listen())

	served := make(chan error, 1)
	go func() { served <- s.Start() }()

	resp, err := http.Get("http://" + s.Addr() + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(echo.HeaderXRequestID))

	var body Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, "ok", body.Message)

	ctx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout())
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestShutdownTimeout_Default(t *testing.T) {
	s := NewEchoServer(&config.Config{}, logger.NewNop())
	assert.Equal(t, 10*time.Second, s.ShutdownTimeout())
}
