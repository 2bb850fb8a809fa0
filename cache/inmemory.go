package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	object  any
	expires time.Time
}

type inMemoryStore struct {
	ctx       context.Context
	cancel    context.CancelFunc
	cache     map[string]*entry
	mutex     sync.Mutex
	waitGroup sync.WaitGroup
	once      sync.Once
	cfg       config
}

var _ Store = (*inMemoryStore)(nil)

func (c *inMemoryStore) GetContext(_ context.Context, key string) (bool, any, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	val, ok := c.cache[key]
	if !ok {
		return false, nil, nil
	}
	if !time.Now().Before(val.expires) {
		delete(c.cache, key)
		return false, nil, nil
	}
	return true, val.object, nil
}

func (c *inMemoryStore) SetContext(_ context.Context, key string, val any, expires time.Duration) error {
	if expires <= 0 {
		expires = c.cfg.defaultExpires
	}
	c.mutex.Lock()
	c.cache[key] = &entry{object: val, expires: time.Now().Add(expires)}
	c.mutex.Unlock()
	return nil
}

func (c *inMemoryStore) ExpireContext(_ context.Context, key string) (bool, error) {
	c.mutex.Lock()
	_, ok := c.cache[key]
	delete(c.cache, key)
	c.mutex.Unlock()
	return ok, nil
}

func (c *inMemoryStore) CloseContext(_ context.Context) error {
	c.once.Do(func() {
		c.cancel()
		c.waitGroup.Wait()
	})
	return nil
}

// Len returns the number of entries held, expired or not.
func (c *inMemoryStore) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.cache)
}

func (c *inMemoryStore) sweep(now time.Time) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	var removed int
	for key, val := range c.cache {
		if !now.Before(val.expires) {
			delete(c.cache, key)
			removed++
		}
	}
	return removed
}

func (c *inMemoryStore) run() {
	defer c.waitGroup.Done()
	ticker := time.NewTicker(c.cfg.expiryCheck)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case now := <-ticker.C:
			c.sweep(now)
		}
	}
}

// NewInMemory returns a process-local Store. Every read and write holds the store's mutex.
// Expired entries are removed when read and by a background sweeper that stops when
// the store is closed or parent is cancelled.
func NewInMemory(parent context.Context, opts ...Option) Store {
	cfg := applyOptions(opts)
	ctx, cancel := context.WithCancel(parent)
	c := &inMemoryStore{
		ctx:    ctx,
		cancel: cancel,
		cache:  make(map[string]*entry),
		cfg:    cfg,
	}
	if cfg.expiryCheck > 0 {
		c.waitGroup.Add(1)
		go c.run()
	}
	return c
}
