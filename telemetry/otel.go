package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/agentuity/fetch-mcp/logger"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

const exportTimeout = 10 * time.Second

type ShutdownFunc func()

// logsURL rewrites the collector base URL to its OTLP/HTTP logs path
func logsURL(otlpServerURL string) (*url.URL, error) {
	u, err := url.Parse(otlpServerURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing otlp url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported otlp url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("otlp url %q has no host", otlpServerURL)
	}
	u.Path = "/v1/logs"
	return u, nil
}

// New returns a Logger that exports records over OTLP/HTTP to otlpServerURL. The
// returned ShutdownFunc flushes pending records and must be called before exit.
func New(ctx context.Context, otlpServerURL string, authToken string, serviceName string, level logger.LogLevel) (logger.Logger, ShutdownFunc, error) {
	logURL, err := logsURL(otlpServerURL)
	if err != nil {
		return nil, nil, err
	}

	res, err := resource.New(
		ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithProcess(),
		resource.WithHost(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if errors.Is(err, resource.ErrPartialResource) || errors.Is(err, resource.ErrSchemaURLConflict) {
		fmt.Fprintln(os.Stderr, err)
	} else if err != nil {
		return nil, nil, fmt.Errorf("error creating resource: %w", err)
	}

	headers := make(map[string]string)
	if authToken != "" {
		headers["Authorization"] = "Bearer " + authToken
	}
	opts := []otlploghttp.Option{
		otlploghttp.WithEndpointURL(logURL.String()),
		otlploghttp.WithHeaders(headers),
		otlploghttp.WithTimeout(exportTimeout),
		otlploghttp.WithCompression(otlploghttp.GzipCompression),
	}
	if logURL.Scheme == "http" {
		opts = append(opts, otlploghttp.WithInsecure())
	}
	exporter, err := otlploghttp.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating log exporter: %w", err)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)

	return logger.NewOtelLogger(provider.Logger(serviceName), level), func() {
		ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
		defer cancel()
		provider.Shutdown(ctx)
	}, nil
}
