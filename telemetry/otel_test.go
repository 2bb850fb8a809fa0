package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/agentuity/fetch-mcp/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogsURL(t *testing.T) {
	u, err := logsURL("http://collector:4318")
	require.NoError(t, err)
	assert.Equal(t, "http://collector:4318/v1/logs", u.String())

	u, err = logsURL("https://collector.example.com/ignored")
	require.NoError(t, err)
	assert.Equal(t, "https://collector.example.com/v1/logs", u.String())

	_, err = logsURL("grpc://collector:4317")
	assert.ErrorContains(t, err, "unsupported otlp url scheme")

	_, err = logsURL("http://")
	assert.Error(t, err)
}

func TestNewExportsOnShutdown(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	var auth []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		auth = append(auth, r.Header.Get("Authorization"))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	log, shutdown, err := New(context.Background(), server.URL, "secret", "fetch-mcp", logger.LevelInfo)
	require.NoError(t, err)
	require.NotNil(t, log)

	log.Info("hello %s", "world")
	log.Debug("filtered")
	shutdown()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, paths)
	assert.Equal(t, "/v1/logs", paths[0])
	assert.Equal(t, "Bearer secret", auth[0])
}

func TestNewWithInvalidURL(t *testing.T) {
	_, _, err := New(context.Background(), "://bad", "", "fetch-mcp", logger.LevelInfo)
	assert.Error(t, err)
}
