package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"autoparts/internal/domain/model"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func InitRedis(ctx context.Context, addr, password string, db int, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established", zap.String("addr", addr))
	return rdb, nil
}

// 商品詳細のキャッシュ。キー: product:{id}
type RedisProductCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisProductCache(rdb *redis.Client, ttl time.Duration) *RedisProductCache {
	return &RedisProductCache{rdb: rdb, ttl: ttl}
}

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

// 未キャッシュは (_, false, nil)
func (c *RedisProductCache) Get(ctx context.Context, id int64) (model.Product, bool, error) {
	data, err := c.rdb.Get(ctx, productKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Product{}, false, nil
	}
	if err != nil {
		return model.Product{}, false, err
	}
	var p model.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return model.Product{}, false, err
	}
	return p, true, nil
}

func (c *RedisProductCache) Set(ctx context.Context, p model.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, productKey(p.ID), data, c.ttl).Err()
}

func (c *RedisProductCache) Delete(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, productKey(id))
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// Redis未設定のとき用
type NoopProductCache struct{}

func (NoopProductCache) Get(context.Context, int64) (model.Product, bool, error) {
	return model.Product{}, false, nil
}
func (NoopProductCache) Set(context.Context, model.Product) error { return nil }
func (NoopProductCache) Delete(context.Context, ...int64) error   { return nil }
