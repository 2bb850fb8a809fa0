// Package jina is a client for the Jina reader (r.jina.ai) and search
// (s.jina.ai) APIs.
package jina

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/agentuity/fetch-mcp/logger"
	"github.com/agentuity/fetch-mcp/resilience"
)

const (
	DefaultReaderURL = "https://r.jina.ai/"
	DefaultSearchURL = "https://s.jina.ai/"
	DefaultTimeout   = 30 * time.Second

	// maxBodySize caps how much of a response is read into memory
	maxBodySize = 10 << 20
)

const (
	EndpointReader = "reader"
	EndpointSearch = "search"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

var (
	ErrMissingAPIKey = errors.New("JINA_API_KEY is not configured")
	// ErrResponseTooLarge is returned instead of a partial body
	ErrResponseTooLarge = fmt.Errorf("response body exceeds %d bytes", maxBodySize)
)

// Error is returned when the API answers with a non-2xx status
type Error struct {
	URL    string
	Method string
	Status int
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("HTTP error %d", e.Status)
}

// Observer is told about every HTTP attempt. status is 0 when no response was received.
type Observer interface {
	ObserveRequest(endpoint string, status int, elapsed time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) ObserveRequest(string, int, time.Duration, error) {}

type Config struct {
	APIKey    string
	ReaderURL string
	SearchURL string
	// Timeout bounds each attempt
	Timeout    time.Duration
	Retry      *resilience.RetryConfig
	Breaker    *resilience.CircuitBreakerConfig
	HTTPClient *http.Client
	Logger     logger.Logger
	Observer   Observer
}

type Client struct {
	apiKey    string
	readerURL string
	searchURL string
	client    *http.Client
	retry     resilience.RetryConfig
	breaker   *resilience.CircuitBreaker
	logger    logger.Logger
	observer  Observer
}

func UserAgent() string {
	gitSHA := Commit
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				gitSHA = setting.Value
			}
		}
	}
	return "fetch-mcp/" + Version + " (" + gitSHA + ")"
}

// retryable reports whether another attempt could succeed
func retryable(err error) bool {
	if errors.Is(err, ErrResponseTooLarge) {
		return false
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return resilience.DefaultRetryableErrors(err)
}

// upstreamFailure reports whether err says the API itself is unhealthy, as
// opposed to a bad request or a caller that gave up
func upstreamFailure(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 || apiErr.Status == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, ErrResponseTooLarge)
}

func New(cfg Config) *Client {
	if cfg.ReaderURL == "" {
		cfg.ReaderURL = DefaultReaderURL
	}
	if cfg.SearchURL == "" {
		cfg.SearchURL = DefaultSearchURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Transport: http.DefaultTransport}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewConsoleLogger()
	}
	if cfg.Observer == nil {
		cfg.Observer = noopObserver{}
	}
	retry := resilience.DefaultRetryConfig()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}
	retry.RetryableErrors = retryable
	breaker := resilience.DefaultCircuitBreakerConfig()
	if cfg.Breaker != nil {
		breaker = *cfg.Breaker
	}
	breaker.RequestTimeout = cfg.Timeout
	breaker.IsFailure = upstreamFailure

	return &Client{
		apiKey:    cfg.APIKey,
		readerURL: strings.TrimSuffix(cfg.ReaderURL, "/") + "/",
		searchURL: strings.TrimSuffix(cfg.SearchURL, "/") + "/",
		client:    cfg.HTTPClient,
		retry:     retry,
		breaker:   resilience.NewCircuitBreaker(breaker),
		logger:    cfg.Logger.WithPrefix("[jina]"),
		observer:  cfg.Observer,
	}
}

// Fetch returns the reader API's text rendering of the page at target
func (c *Client) Fetch(ctx context.Context, target string) (string, error) {
	return c.get(ctx, EndpointReader, c.readerURL+target)
}

// Search returns the search API's text results for query
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	return c.get(ctx, EndpointSearch, c.searchURL+"?q="+url.QueryEscape(query))
}

// Breaker exposes the circuit breaker guarding the API
func (c *Client) Breaker() *resilience.CircuitBreaker {
	return c.breaker
}

func (c *Client) get(ctx context.Context, endpoint string, target string) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	var body string
	err := resilience.RetryWithCircuitBreaker(ctx, c.retry, c.breaker, func(ctx context.Context) error {
		started := time.Now()
		text, status, err := c.do(ctx, target)
		elapsed := time.Since(started)
		c.observer.ObserveRequest(endpoint, status, elapsed, err)
		if err != nil {
			c.logger.Debug("GET %s failed after %s: %s", target, elapsed, err)
			return err
		}
		c.logger.Debug("GET %s returned %d bytes in %s", target, len(text), elapsed)
		body = text
		return nil
	})
	if err != nil {
		return "", err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, target string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", 0, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", UserAgent())
	req.Header.Set("Accept", "text/plain")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	buf, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("error reading response: %w", err)
	}
	if len(buf) > maxBodySize {
		return "", resp.StatusCode, ErrResponseTooLarge
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", resp.StatusCode, &Error{
			URL:    target,
			Method: http.MethodGet,
			Status: resp.StatusCode,
			Body:   safeBodyPreview(buf, resp.Header.Get("Content-Type"), 200),
		}
	}
	return string(buf), resp.StatusCode, nil
}
