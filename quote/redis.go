package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCache keeps quotes in Redis so every server instance shares them.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func redisKey(symbol string) string {
	return fmt.Sprintf("stock:%s:quote", symbol)
}

func (c *RedisCache) Get(ctx context.Context, symbol string) (*Quote, bool) {
	cached, err := c.rdb.Get(ctx, redisKey(symbol)).Bytes()
	if err != nil {
		return nil, false
	}
	var q Quote
	if err := json.Unmarshal(cached, &q); err != nil {
		return nil, false
	}
	return &q, true
}

func (c *RedisCache) Set(ctx context.Context, q *Quote) {
	data, err := json.Marshal(q)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, redisKey(q.Symbol), data, c.ttl)
}
