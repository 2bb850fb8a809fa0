package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/agentuity/fetch-mcp/cache"
	"github.com/agentuity/fetch-mcp/config"
	"github.com/agentuity/fetch-mcp/env"
	"github.com/agentuity/fetch-mcp/jina"
	"github.com/agentuity/fetch-mcp/logger"
	"github.com/agentuity/fetch-mcp/metrics"
	"github.com/agentuity/fetch-mcp/resilience"
	"github.com/agentuity/fetch-mcp/sys"
	"github.com/agentuity/fetch-mcp/tools"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd)
		},
	}
	cmd.Flags().String("transport", "stdio", "transport: stdio or http")
	cmd.Flags().String("host", "0.0.0.0", "listen address for the http transport")
	cmd.Flags().Int("port", config.DefaultPort, "listen port for the http transport (env PORT)")
	cmd.Flags().String("otlp-url", "", "OTLP/HTTP collector url for log export (env OTEL_EXPORTER_OTLP_ENDPOINT)")
	cmd.Flags().String("otlp-token", "", "bearer token for the OTLP collector (env OTEL_EXPORTER_OTLP_TOKEN)")
	return cmd
}

// app holds everything a transport needs to serve requests
type app struct {
	settings *config.Settings
	logger   logger.Logger
	cache    *cache.Facade
	metrics  *metrics.Metrics
	server   *mcp.Server
}

func newApp(ctx context.Context, settings *config.Settings, log logger.Logger) *app {
	m := metrics.New(metrics.Namespace)

	facade := cache.NewFacade(ctx, cache.FacadeConfig{
		URL:        settings.RedisURL,
		DefaultTTL: settings.CacheTTL,
		Logger:     log,
	})
	if settings.RedisURL != "" && sys.IsLocalhost(settings.RedisURL) && sys.IsRunningInsideContainer() {
		log.Warn("REDIS_URL points at localhost from inside a container; the cache will likely fall back to memory")
	}

	breaker := resilience.DefaultCircuitBreakerConfig()
	onChange := m.BreakerStateChange("jina")
	breakerLog := log.WithPrefix("[jina]")
	breaker.OnStateChange = func(from, to resilience.CircuitBreakerState) {
		onChange(from, to)
		breakerLog.Warn("circuit breaker %s -> %s", from, to)
	}
	client := jina.New(jina.Config{
		APIKey:    settings.JinaAPIKey.Text(),
		ReaderURL: settings.ReaderURL,
		SearchURL: settings.SearchURL,
		Timeout:   settings.RequestTimeout,
		Breaker:   &breaker,
		Logger:    log,
		Observer:  m,
	})
	if settings.JinaAPIKey == "" {
		log.Warn("JINA_API_KEY is not set; fetch and search will return an error")
	}

	handlers := tools.NewHandlers(tools.NewProducers(facade, client, m), log, m)
	return &app{
		settings: settings,
		logger:   log,
		cache:    facade,
		metrics:  m,
		server:   tools.NewServer(Version, handlers),
	}
}

// settingsFlags maps setting names to the flags that override them
var settingsFlags = map[string]string{
	"LOG_LEVEL":                   "log-level",
	"LOG_FORMAT":                  "log-format",
	"PORT":                        "port",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otlp-url",
	"OTEL_EXPORTER_OTLP_TOKEN":    "otlp-token",
}

func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	settings, err := config.Load(envFile, env.CommandLookup(cmd, settingsFlags))
	if err != nil {
		return nil, fmt.Errorf("error loading settings: %w", err)
	}
	return settings, nil
}

func serve(cmd *cobra.Command) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	ctx, stop := sys.ShutdownContext(context.Background())
	defer stop()

	log, shutdownTelemetry, err := env.NewTelemetry(ctx, settings.Telemetry(), tools.ServerName)
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	a := newApp(ctx, settings, log)
	defer a.cache.Close()

	log.Debug("settings: %+v", settings.Redacted())

	switch transport := env.FlagOrEnv(cmd, "transport", "MCP_TRANSPORT", "stdio"); transport {
	case "stdio":
		log.Info("serving MCP over stdio")
		if err := a.server.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("error running stdio server: %w", err)
		}
		return nil
	case "http":
		host, _ := cmd.Flags().GetString("host")
		return a.serveHTTP(ctx, net.JoinHostPort(host, strconv.Itoa(settings.Port)))
	default:
		return fmt.Errorf("unknown transport %q, expected stdio or http", transport)
	}
}

type healthResponse struct {
	Status         string `json:"status"`
	Cache          string `json:"cache"`
	FallbackReason string `json:"fallback_reason,omitempty"`
	Version        string `json:"version"`
}

func (a *app) healthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Cache:   a.cache.Backend().String(),
		Version: Version,
	}
	if reason := a.cache.FallbackReason(); reason != nil {
		resp.FallbackReason = reason.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (a *app) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return a.server
	}, nil))
	mux.Handle("/metrics", a.metrics.Handler())
	mux.HandleFunc("/healthz", a.healthz)
	return mux
}

func (a *app) serveHTTP(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		a.logger.Info("serving MCP over http on %s", addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("error running http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down http server: %w", err)
	}
	return nil
}
