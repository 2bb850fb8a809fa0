package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

type redisStore struct {
	client *redis.Client
	cfg    config
}

var _ Store = (*redisStore)(nil)

// NewRedis returns a Store backed by Redis. Values are msgpack encoded and expire through
// Redis' native TTL. The store takes ownership of client and closes it on CloseContext.
func NewRedis(client *redis.Client, opts ...Option) Store {
	return &redisStore{
		client: client,
		cfg:    applyOptions(opts),
	}
}

func (c *redisStore) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, c.cfg.queryTimeout)
}

func (c *redisStore) prefixKey(key string) string {
	if c.cfg.prefix == "" {
		return key
	}
	return c.cfg.prefix + ":" + key
}

func (c *redisStore) GetContext(ctx context.Context, key string) (bool, any, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	data, err := c.client.Get(qctx, c.prefixKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return true, Encoded(data), nil
}

func (c *redisStore) SetContext(ctx context.Context, key string, val any, expires time.Duration) error {
	if expires <= 0 {
		expires = c.cfg.defaultExpires
	}
	data, err := msgpack.Marshal(val)
	if err != nil {
		return err
	}
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	return c.client.Set(qctx, c.prefixKey(key), data, expires).Err()
}

func (c *redisStore) ExpireContext(ctx context.Context, key string) (bool, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	n, err := c.client.Del(qctx, c.prefixKey(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *redisStore) CloseContext(_ context.Context) error {
	return c.client.Close()
}
