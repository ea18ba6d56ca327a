package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"wmscore/logging"
	"wmscore/store"
)

// RedisCache keeps finalized responses in Redis for ttl.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func replayKey(s store.IdempotencyScope) string {
	return fmt.Sprintf("wmscore:idem:%d:%s:%s:%s", s.UserID, s.Method, s.Path, s.Key)
}

func (c *RedisCache) Get(ctx context.Context, s store.IdempotencyScope) (*Entry, bool) {
	data, err := c.client.Get(ctx, replayKey(s)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		logging.Debug(ctx).Err(err).Msg("idempotency: redis get")
		return nil, false
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false
	}
	return &e, true
}

func (c *RedisCache) Put(ctx context.Context, s store.IdempotencyScope, e *Entry) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, replayKey(s), data, c.ttl).Err(); err != nil {
		logging.Debug(ctx).Err(err).Msg("idempotency: redis set")
	}
}
