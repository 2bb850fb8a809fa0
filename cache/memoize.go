package cache

import (
	"context"
	"reflect"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"
)

// Producer computes a value for args. found=false means there is no value (the
// equivalent of null); such results are returned but never cached.
type Producer[A, T any] func(ctx context.Context, args A) (val T, found bool, err error)

// Hook observes memoized calls, for example to export metrics.
type Hook interface {
	Hit(name string)
	Miss(name string)
	// Error reports a cache read ("get") or write ("set") failure that was tolerated.
	Error(name string, op string, err error)
}

type noopHook struct{}

func (noopHook) Hit(string) {}

func (noopHook) Miss(string) {}

func (noopHook) Error(string, string, error) {}

type memoizeConfig struct {
	ttl          time.Duration
	singleflight bool
	hook         Hook
}

// MemoizeOption configures Memoize.
type MemoizeOption func(*memoizeConfig)

// WithTTL overrides the Facade's default TTL for this function.
func WithTTL(ttl time.Duration) MemoizeOption {
	return func(c *memoizeConfig) { c.ttl = ttl }
}

// WithSingleflight makes concurrent misses on the same key share one producer call.
// The shared call keeps the values of the first caller's context but not its
// cancellation, so the producer must bound its own run time. Each caller stops
// waiting when its own context is done.
func WithSingleflight() MemoizeOption {
	return func(c *memoizeConfig) { c.singleflight = true }
}

// WithHook registers a Hook for this function.
func WithHook(hook Hook) MemoizeOption {
	return func(c *memoizeConfig) {
		if hook != nil {
			c.hook = hook
		}
	}
}

func scalar(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// copyValue returns a msgpack copy of a non-scalar v so the caller and the
// in-memory store never share it. Scalars are returned as is.
func copyValue[T any](v T) (T, error) {
	if scalar(reflect.TypeFor[T]()) {
		return v, nil
	}
	data, err := msgpack.Marshal(v)
	if err != nil {
		return v, err
	}
	_, cp, err := decode[T](Encoded(data))
	return cp, err
}

// decodeCopy is decode, except that a value held in memory is returned as a copy
func decodeCopy[T any](val any) (bool, T, error) {
	ok, typed, err := decode[T](val)
	if err != nil || !ok {
		return ok, typed, err
	}
	if _, encoded := val.(Encoded); encoded {
		return true, typed, nil
	}
	cp, err := copyValue(typed)
	if err != nil {
		return false, typed, err
	}
	return true, cp, nil
}

// Memoize wraps fn so that results are cached in c under Key(name, key(args)).
//
// A hit returns the cached value without calling fn. On a miss fn is called and a found
// result is stored with the configured TTL. Errors from fn are returned and nothing is
// cached. A key that cannot be encoded is returned as an error before fn runs.
//
// Cache read and write failures never change the result: a failed read is treated as a
// miss and a failed write is logged and dropped.
//
// T must round trip through msgpack. Hits of non-scalar T from the in-memory store
// are copied that way, so mutating a result never changes the cached entry.
func Memoize[A, T any](c *Facade, name string, fn Producer[A, T], key KeyFunc[A], opts ...MemoizeOption) Producer[A, T] {
	cfg := memoizeConfig{hook: noopHook{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	ttl := cfg.ttl
	if ttl <= 0 {
		ttl = c.DefaultTTL()
	}
	log := c.logger.With(map[string]interface{}{"func": name})
	var group singleflight.Group

	invoke := func(ctx context.Context, args A, k string) (T, bool, error) {
		var zero T
		result, found, err := fn(ctx, args)
		if err != nil {
			return zero, false, err
		}
		if !found {
			return zero, false, nil
		}
		stored, err := copyValue(result)
		if err != nil {
			log.Warn("not caching %s, value does not round trip: %s", k, err)
			cfg.hook.Error(name, "set", err)
			return result, true, nil
		}
		if err := c.Set(ctx, k, stored, ttl); err != nil {
			log.Warn("cache write failed for %s: %s", k, err)
			cfg.hook.Error(name, "set", err)
		}
		return result, true, nil
	}

	type shared struct {
		val   T
		found bool
	}

	return func(ctx context.Context, args A) (T, bool, error) {
		var zero T
		positional, keyword := key(args)
		k, err := Key(name, positional, keyword)
		if err != nil {
			return zero, false, err
		}

		found, val, err := c.Get(ctx, k)
		switch {
		case err != nil:
			log.Warn("cache read failed for %s, treating as miss: %s", k, err)
			cfg.hook.Error(name, "get", err)
		case found:
			ok, typed, derr := decodeCopy[T](val)
			if derr == nil && ok {
				log.Debug("Cache hit %s", k)
				cfg.hook.Hit(name)
				return typed, true, nil
			}
			log.Warn("discarding undecodable cache entry %s: %s", k, derr)
		}

		log.Debug("Cache miss %s", k)
		cfg.hook.Miss(name)
		if !cfg.singleflight {
			return invoke(ctx, args, k)
		}
		ch := group.DoChan(k, func() (any, error) {
			val, found, err := invoke(context.WithoutCancel(ctx), args, k)
			return shared{val, found}, err
		})
		select {
		case <-ctx.Done():
			return zero, false, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				return zero, false, res.Err
			}
			r := res.Val.(shared)
			return r.val, r.found, nil
		}
	}
}
