package boundary

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

const redisKeyPrefix = "tqgap:boundary:"

// RedisClient is the subset of *redis.Client used by RedisCache.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisCache shares boundary payloads between server replicas.
type RedisCache struct {
	client RedisClient
	ttl    time.Duration
}

// NewRedisCache creates a cache over client. A zero ttl keeps entries forever.
func NewRedisCache(client RedisClient, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// OpenRedis connects a client and checks it with PING.
func OpenRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rc := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, eris.Wrapf(err, "redis: ping %s", addr)
	}
	return rc, nil
}

// Name implements Cache.
func (c *RedisCache) Name() string { return "redis" }

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "redis: get")
	}
	return data, true, nil
}

// Put implements Cache.
func (c *RedisCache) Put(ctx context.Context, key string, data []byte) error {
	return eris.Wrap(c.client.Set(ctx, redisKeyPrefix+key, data, c.ttl).Err(), "redis: set")
}
