package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Store is a single cache backend.
type Store interface {
	// GetContext retrieves a value. found is false on a miss or when the entry has expired.
	GetContext(ctx context.Context, key string) (found bool, val any, err error)
	// SetContext stores a value with a TTL. If expires <= 0, the store's configured
	// default TTL is used.
	SetContext(ctx context.Context, key string, val any, expires time.Duration) error
	// ExpireContext removes a key, reporting whether it was present.
	ExpireContext(ctx context.Context, key string) (bool, error)
	// CloseContext shuts down the store.
	CloseContext(ctx context.Context) error
}

// Encoded is a msgpack payload returned by serializing stores. It is a distinct type
// so that decoding can tell it apart from a stored []byte value.
type Encoded []byte

// GetContext retrieves a typed value from the store. In-memory values are type asserted,
// serialized values are decoded with msgpack.
func GetContext[T any](ctx context.Context, s Store, key string) (bool, T, error) {
	var zero T
	found, val, err := s.GetContext(ctx, key)
	if !found || err != nil {
		return false, zero, err
	}
	return decode[T](val)
}

func decode[T any](val any) (bool, T, error) {
	var zero T
	if data, ok := val.(Encoded); ok {
		var result T
		if err := msgpack.Unmarshal(data, &result); err != nil {
			return false, zero, fmt.Errorf("cache: failed to unmarshal value: %w", err)
		}
		return true, result, nil
	}
	if typed, ok := val.(T); ok {
		return true, typed, nil
	}
	return false, zero, fmt.Errorf("cache: cannot convert value of type %T to %T", val, zero)
}

// DefaultExpires is the TTL used when no TTL is configured, matching CACHE_TTL's default.
const DefaultExpires = time.Hour

// DefaultQueryTimeout is the per-operation timeout for the Redis store.
const DefaultQueryTimeout = 5 * time.Second

// DefaultExpiryCheck is how often the in-memory store sweeps expired entries.
const DefaultExpiryCheck = time.Minute

type config struct {
	defaultExpires time.Duration
	queryTimeout   time.Duration
	expiryCheck    time.Duration
	prefix         string
}

// Option configures a Store implementation.
type Option func(*config)

func applyOptions(opts []Option) config {
	cfg := config{
		defaultExpires: DefaultExpires,
		queryTimeout:   DefaultQueryTimeout,
		expiryCheck:    DefaultExpiryCheck,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithExpires sets the default TTL used when SetContext is called with expires <= 0.
func WithExpires(d time.Duration) Option {
	return func(c *config) { c.defaultExpires = d }
}

// WithQueryTimeout sets the per-operation timeout for the Redis store.
func WithQueryTimeout(d time.Duration) Option {
	return func(c *config) { c.queryTimeout = d }
}

// WithExpiryCheck sets the interval for background expired entry cleanup in the in-memory store.
// Zero disables the sweeper; expired entries are then only removed when read.
func WithExpiryCheck(d time.Duration) Option {
	return func(c *config) { c.expiryCheck = d }
}

// WithPrefix namespaces Redis keys as prefix:key.
func WithPrefix(p string) Option {
	return func(c *config) { c.prefix = p }
}
