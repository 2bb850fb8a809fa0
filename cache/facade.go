package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentuity/fetch-mcp/logger"
	"github.com/redis/go-redis/v9"
)

// DefaultProbeTimeout bounds the connect and PING round trip made when resolving the backend.
const DefaultProbeTimeout = 2 * time.Second

// BackendKind identifies the store a Facade resolved to.
type BackendKind int

const (
	BackendUnresolved BackendKind = iota
	BackendExternal
	BackendLocal
)

func (k BackendKind) String() string {
	switch k {
	case BackendExternal:
		return "redis"
	case BackendLocal:
		return "memory"
	default:
		return "unresolved"
	}
}

// Connector dials the external store at url and verifies it answers within timeout.
type Connector func(ctx context.Context, url string, timeout time.Duration) (Store, error)

// RedisConnector returns the default Connector: parse url, dial with timeout and PING.
func RedisConnector(opts ...Option) Connector {
	return func(ctx context.Context, url string, timeout time.Duration) (Store, error) {
		ropts, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("error parsing redis url: %w", err)
		}
		ropts.DialTimeout = timeout
		client := redis.NewClient(ropts)
		pctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := client.Ping(pctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("error pinging redis: %w", err)
		}
		return NewRedis(client, opts...), nil
	}
}

// FacadeConfig configures a Facade.
type FacadeConfig struct {
	// URL is the external store connection string. Empty selects the in-memory store.
	URL string
	// ProbeTimeout bounds the liveness probe. Defaults to DefaultProbeTimeout.
	ProbeTimeout time.Duration
	// DefaultTTL is used when a value is set without a TTL. Defaults to DefaultExpires.
	DefaultTTL time.Duration
	Logger     logger.Logger
}

// FacadeOption customizes a Facade.
type FacadeOption func(*Facade)

// WithConnector replaces the function used to reach the external store.
func WithConnector(connect Connector) FacadeOption {
	return func(f *Facade) { f.connect = connect }
}

// WithStoreOptions passes options to whichever store is resolved.
func WithStoreOptions(opts ...Option) FacadeOption {
	return func(f *Facade) { f.storeOpts = append(f.storeOpts, opts...) }
}

// Facade picks the cache backend on first use and keeps it for its lifetime.
// Resolution happens once: with a URL it probes the external store and falls back to
// an in-memory store if the probe fails. A backend that fails later is not re-probed;
// its errors are returned to the caller.
type Facade struct {
	ctx       context.Context
	cfg       FacadeConfig
	logger    logger.Logger
	connect   Connector
	storeOpts []Option

	mu     sync.Mutex
	kind   BackendKind
	store  Store
	reason error
}

// NewFacade returns an unresolved Facade. ctx bounds the lifetime of the resolved store
// and of the probe, so a cancelled request cannot force a fallback.
func NewFacade(ctx context.Context, cfg FacadeConfig, opts ...FacadeOption) *Facade {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultExpires
	}
	f := &Facade{
		ctx:    ctx,
		cfg:    cfg,
		logger: cfg.Logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = logger.NewConsoleLogger()
	}
	f.logger = f.logger.WithPrefix("[cache]")
	f.storeOpts = append([]Option{WithExpires(cfg.DefaultTTL)}, f.storeOpts...)
	if f.connect == nil {
		f.connect = RedisConnector(f.storeOpts...)
	}
	return f
}

func (f *Facade) resolve() Store {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.store != nil {
		return f.store
	}
	if f.cfg.URL == "" {
		f.logger.Info("Redis not configured, using memory cache.")
		f.useLocal(nil)
		return f.store
	}
	store, err := f.connect(f.ctx, f.cfg.URL, f.cfg.ProbeTimeout)
	if err != nil {
		f.logger.Warn("Failed to connect to Redis, using memory cache: %s", err)
		f.useLocal(err)
		return f.store
	}
	f.logger.Info("Redis cache connected successfully.")
	f.kind = BackendExternal
	f.store = store
	return f.store
}

func (f *Facade) useLocal(reason error) {
	f.kind = BackendLocal
	f.reason = reason
	f.store = NewInMemory(f.ctx, f.storeOpts...)
}

// Get returns the cached value for key, resolving the backend on first use.
func (f *Facade) Get(ctx context.Context, key string) (bool, any, error) {
	return f.resolve().GetContext(ctx, key)
}

// Set stores val for ttl, resolving the backend on first use. ttl <= 0 uses the default TTL.
func (f *Facade) Set(ctx context.Context, key string, val any, ttl time.Duration) error {
	return f.resolve().SetContext(ctx, key, val, ttl)
}

// Backend resolves the backend if needed and reports which one is in use.
func (f *Facade) Backend() BackendKind {
	f.resolve()
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.kind
}

// FallbackReason returns why the external store was rejected, or nil.
func (f *Facade) FallbackReason() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reason
}

// DefaultTTL is the TTL applied when none is given.
func (f *Facade) DefaultTTL() time.Duration {
	return f.cfg.DefaultTTL
}

// Close releases the resolved store. A Facade that was never used has nothing to close.
func (f *Facade) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.store == nil {
		return nil
	}
	return f.store.CloseContext(f.ctx)
}
