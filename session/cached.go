package session

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// CachedStore keeps recently used sessions in an LRU in front of another
// Store. Writes go through to the underlying store.
type CachedStore struct {
	base  Store
	cache *lru.Cache
}

func NewCachedStore(base Store, size int) (*CachedStore, error) {
	if size <= 0 {
		size = 1000
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{base: base, cache: cache}, nil
}

func (c *CachedStore) Load(ctx context.Context, id string) (*Session, error) {
	if v, ok := c.cache.Get(id); ok {
		s := v.(*Session)
		if !s.Expired(time.Now()) {
			return s.clone(), nil
		}
		c.cache.Remove(id)
		return nil, ErrNotFound
	}

	s, err := c.base.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, s.clone())
	return s, nil
}

func (c *CachedStore) Save(ctx context.Context, s *Session) error {
	if err := c.base.Save(ctx, s); err != nil {
		c.cache.Remove(s.ID)
		return err
	}
	c.cache.Add(s.ID, s.clone())
	return nil
}

func (c *CachedStore) Delete(ctx context.Context, id string) error {
	c.cache.Remove(id)
	return c.base.Delete(ctx, id)
}

// Sweep delegates to the underlying store when it needs sweeping and drops
// every cached entry.
func (c *CachedStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	sw, ok := c.base.(Sweeper)
	if !ok {
		return 0, nil
	}
	n, err := sw.Sweep(ctx, now)
	if n > 0 {
		c.cache.Purge()
	}
	return n, err
}
