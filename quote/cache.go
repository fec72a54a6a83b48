package quote

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// Cache stores recent quotes by normalized symbol.
type Cache interface {
	Get(ctx context.Context, symbol string) (*Quote, bool)
	Set(ctx context.Context, q *Quote)
}

// Cached is a Provider that consults a Cache before calling the next
// Provider. Misses and errors are never cached.
type Cached struct {
	next   Provider
	cache  Cache
	logger *logrus.Entry
}

func NewCached(next Provider, cache Cache, logger *logrus.Entry) *Cached {
	return &Cached{
		next:   next,
		cache:  cache,
		logger: logger.WithField("module", "quote.cache"),
	}
}

func (c *Cached) Lookup(ctx context.Context, symbol string) (*Quote, error) {
	symbol = Normalize(symbol)
	if symbol == "" {
		return nil, ErrNotFound
	}

	if q, ok := c.cache.Get(ctx, symbol); ok {
		return q, nil
	}

	q, err := c.next.Lookup(ctx, symbol)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.WithField("param_symbol", symbol).Warnf("Upstream lookup failed: %v", err)
		}
		return nil, err
	}

	c.cache.Set(ctx, q)
	if q.Symbol != symbol {
		c.cache.Set(ctx, &Quote{Symbol: symbol, Name: q.Name, Price: q.Price})
	}
	return q, nil
}
