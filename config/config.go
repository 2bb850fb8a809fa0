// Package config loads the server settings from the process environment,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agentuity/fetch-mcp/env"
	"github.com/agentuity/fetch-mcp/logger"
	cstr "github.com/agentuity/fetch-mcp/string"
	"github.com/xhit/go-str2duration/v2"
)

const (
	DefaultCacheTTL       = time.Hour
	DefaultRequestTimeout = 30 * time.Second
	DefaultPort           = 8002
	DefaultReaderURL      = "https://r.jina.ai/"
	DefaultSearchURL      = "https://s.jina.ai/"
)

var ErrInvalidSetting = errors.New("invalid setting")

// Settings is the resolved server configuration
type Settings struct {
	RedisURL       string
	CacheTTL       time.Duration
	JinaAPIKey     cstr.MaskedString
	RequestTimeout time.Duration
	LogLevel       logger.LogLevel
	LogFormat      string
	Port           int
	ReaderURL      string
	SearchURL      string
	OTLPEndpoint   string
	OTLPToken      cstr.MaskedString
}

// LookupFunc has the signature of os.LookupEnv
type LookupFunc func(key string) (string, bool)

func invalid(name string, value string, reason string) error {
	return fmt.Errorf("%w: %s=%q %s", ErrInvalidSetting, name, value, reason)
}

const maxSeconds = math.MaxInt64 / int64(time.Second)

// ParseDuration accepts either a whole number of seconds or a duration string
// such as "90s", "30m" or "1d".
func ParseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		if secs > maxSeconds || secs < -maxSeconds {
			return 0, fmt.Errorf("%d seconds is out of range", secs)
		}
		return time.Duration(secs) * time.Second, nil
	}
	return str2duration.ParseDuration(value)
}

type reader struct {
	lookup LookupFunc
	errs   []error
}

func (r *reader) str(name string, def string) string {
	if v, ok := r.lookup(name); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (r *reader) duration(name string, def time.Duration) time.Duration {
	raw := r.str(name, "")
	if raw == "" {
		return def
	}
	d, err := ParseDuration(raw)
	if err != nil {
		r.errs = append(r.errs, invalid(name, raw, "is not a duration"))
		return def
	}
	if d <= 0 {
		r.errs = append(r.errs, invalid(name, raw, "must be positive"))
		return def
	}
	return d
}

func (r *reader) port(name string, def int) int {
	raw := r.str(name, "")
	if raw == "" {
		return def
	}
	p, err := strconv.Atoi(raw)
	if err != nil || p < 1 || p > 65535 {
		r.errs = append(r.errs, invalid(name, raw, "is not a valid port"))
		return def
	}
	return p
}

func (r *reader) endpoint(name string, def string) string {
	raw := r.str(name, def)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		r.errs = append(r.errs, invalid(name, raw, "is not an http(s) url"))
		return def
	}
	return raw
}

// FromLookup builds Settings from lookup. Every invalid value is reported, joined
// into the returned error.
func FromLookup(lookup LookupFunc) (*Settings, error) {
	r := &reader{lookup: lookup}
	s := &Settings{
		RedisURL:       r.str("REDIS_URL", ""),
		CacheTTL:       r.duration("CACHE_TTL", DefaultCacheTTL),
		JinaAPIKey:     cstr.MaskedString(r.str("JINA_API_KEY", "")),
		RequestTimeout: r.duration("REQUEST_TIMEOUT", DefaultRequestTimeout),
		LogFormat:      strings.ToLower(r.str("LOG_FORMAT", "console")),
		Port:           r.port("PORT", DefaultPort),
		ReaderURL:      r.endpoint("JINA_READER_URL", DefaultReaderURL),
		SearchURL:      r.endpoint("JINA_SEARCH_URL", DefaultSearchURL),
		OTLPToken:      cstr.MaskedString(r.str("OTEL_EXPORTER_OTLP_TOKEN", "")),
	}
	if r.str("OTEL_EXPORTER_OTLP_ENDPOINT", "") != "" {
		s.OTLPEndpoint = r.endpoint("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	}
	rawLevel := r.str("LOG_LEVEL", "info")
	level, ok := logger.ParseLevel(rawLevel)
	if !ok {
		r.errs = append(r.errs, invalid("LOG_LEVEL", rawLevel, "is not a log level"))
	}
	s.LogLevel = level
	if s.LogFormat != "console" && s.LogFormat != "json" {
		r.errs = append(r.errs, invalid("LOG_FORMAT", s.LogFormat, "must be console or json"))
		s.LogFormat = "console"
	}
	if err := errors.Join(r.errs...); err != nil {
		return nil, err
	}
	return s, nil
}

// Load seeds the process environment from envFile (when non-empty) without
// overriding variables already set, then reads Settings through lookup. A nil
// lookup reads the process environment.
func Load(envFile string, lookup LookupFunc) (*Settings, error) {
	if envFile != "" {
		if _, err := env.Load(envFile); err != nil {
			return nil, err
		}
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return FromLookup(lookup)
}

// Telemetry is the logging setup these settings describe
func (s Settings) Telemetry() env.Telemetry {
	return env.Telemetry{
		Level:   s.LogLevel,
		Format:  s.LogFormat,
		OTLPURL: s.OTLPEndpoint,
		Token:   s.OTLPToken.Text(),
	}
}

// Redacted returns a copy safe to log. JinaAPIKey masks itself.
func (s Settings) Redacted() Settings {
	if s.RedisURL != "" {
		masked, err := cstr.MaskURL(s.RedisURL)
		if err != nil {
			masked = cstr.Mask(s.RedisURL)
		}
		s.RedisURL = masked
	}
	return s
}
