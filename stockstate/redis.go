package stockstate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func stockKey(locationID int64) string {
	return fmt.Sprintf("wmscore:location:%d:stock", locationID)
}

func metaKey(locationID int64) string {
	return fmt.Sprintf("wmscore:location:%d:meta", locationID)
}

const allLocationsKey = "wmscore:locations"

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// setStockScript replaces a location's snapshot unless the stored one was
// taken at a newer watermark.
var setStockScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'watermark')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'watermark', ARGV[1], 'items', ARGV[2])
return 1
`)

// SetLocationStock stores items taken at watermark. It reports false when
// a newer snapshot is already stored.
func (r *RedisStore) SetLocationStock(ctx context.Context, locationID, watermark int64, items []StockItem) (bool, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return false, err
	}
	n, err := setStockScript.Run(ctx, r.client, []string{stockKey(locationID)}, watermark, data).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetLocationStock reports false when no snapshot is stored.
func (r *RedisStore) GetLocationStock(ctx context.Context, locationID int64) ([]StockItem, bool, error) {
	data, err := r.client.HGet(ctx, stockKey(locationID), "items").Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var items []StockItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false, err
	}
	return items, true, nil
}

func (r *RedisStore) UpdateLocationMeta(ctx context.Context, locationID int64, meta *LocationMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	pipe := r.client.Pipeline()
	pipe.Set(ctx, metaKey(locationID), data, 0)
	pipe.SAdd(ctx, allLocationsKey, locationID)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) GetLocationMeta(ctx context.Context, locationID int64) (*LocationMeta, error) {
	data, err := r.client.Get(ctx, metaKey(locationID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var meta LocationMeta
	return &meta, json.Unmarshal(data, &meta)
}

func (r *RedisStore) GetAllLocationIDs(ctx context.Context) ([]int64, error) {
	members, err := r.client.SMembers(ctx, allLocationsKey).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *RedisStore) RemoveLocation(ctx context.Context, locationID int64) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, stockKey(locationID), metaKey(locationID))
	pipe.SRem(ctx, allLocationsKey, locationID)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) FlushAll(ctx context.Context) error {
	ids, err := r.GetAllLocationIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		r.RemoveLocation(ctx, id)
	}
	return r.client.Del(ctx, allLocationsKey).Err()
}
