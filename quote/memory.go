package quote

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
)

// MemoryCache is an in-process TTL cache of quotes.
type MemoryCache struct {
	c   *ristretto.Cache
	ttl time.Duration
}

// NewMemoryCache holds up to maxItems quotes, each for ttl.
func NewMemoryCache(maxItems int64, ttl time.Duration) (*MemoryCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxItems * 10,
		MaxCost:            maxItems,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &MemoryCache{c: c, ttl: ttl}, nil
}

func (m *MemoryCache) Get(_ context.Context, symbol string) (*Quote, bool) {
	v, ok := m.c.Get(symbol)
	if !ok {
		return nil, false
	}
	q, ok := v.(*Quote)
	return q, ok
}

func (m *MemoryCache) Set(_ context.Context, q *Quote) {
	m.c.SetWithTTL(q.Symbol, q, 1, m.ttl)
}

// Wait blocks until pending writes are visible to Get.
func (m *MemoryCache) Wait() { m.c.Wait() }

func (m *MemoryCache) Close() { m.c.Close() }
