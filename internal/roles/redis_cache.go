package roles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/microloan/gate"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "microloan:role:"

// RedisCache shares resolved roles between server instances. Redis errors
// are logged and reported as misses so a cache outage only costs lookups.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisClient connects and pings.
func NewRedisClient(ctx context.Context, addr, password string, db int, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Error("failed to connect to redis", zap.String("address", addr), zap.Error(err))
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	logger.Info("connected to redis", zap.String("address", addr))
	return rdb, nil
}

func NewRedisCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisCache) Get(ctx context.Context, email string) (gate.Role, bool) {
	val, err := c.client.Get(ctx, keyPrefix+email).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis role get failed", zap.String("email", email), zap.Error(err))
		}
		return "", false
	}
	return gate.Role(val), true
}

func (c *RedisCache) Set(ctx context.Context, email string, role gate.Role) {
	if err := c.client.Set(ctx, keyPrefix+email, string(role), c.ttl).Err(); err != nil {
		c.logger.Warn("redis role set failed", zap.String("email", email), zap.Error(err))
	}
}

func (c *RedisCache) Delete(ctx context.Context, email string) {
	if err := c.client.Del(ctx, keyPrefix+email).Err(); err != nil {
		c.logger.Warn("redis role delete failed", zap.String("email", email), zap.Error(err))
	}
}

// Clear removes every role key this cache owns.
func (c *RedisCache) Clear(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		c.client.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("redis role clear failed", zap.Error(err))
	}
}
