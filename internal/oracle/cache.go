package oracle

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"Intent-Solver/pkg/logger"
)

const cacheKey = "intentsolver:price:eth_usd"

// CacheConfig 描述价格缓存的连接参数。
type CacheConfig struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// Cache 是 Oracle 的 Redis 读穿缓存，降低对行情接口的调用频率。
// 缓存不可用时直接穿透到内层 Oracle。
type Cache struct {
	inner  Oracle
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

// NewCache 包装一个带 Redis 缓存的 Oracle。
func NewCache(inner Oracle, cfg CacheConfig) (*Cache, error) {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &Cache{
		inner:  inner,
		client: client,
		ttl:    ttl,
		log:    logger.Named("oracle_cache"),
	}, nil
}

// Price 优先读取缓存，未命中时回源并写回。
func (c *Cache) Price(ctx context.Context) (*big.Rat, error) {
	cached, err := c.client.Get(ctx, cacheKey).Result()
	if err == nil {
		price := new(big.Rat)
		if _, ok := price.SetString(cached); ok {
			return price, nil
		}
	} else if err != redis.Nil {
		c.log.Warn("读取价格缓存失败", slog.Any("error", err))
	}

	price, err := c.inner.Price(ctx)
	if err != nil {
		return nil, err
	}
	if setErr := c.client.Set(ctx, cacheKey, price.FloatString(8), c.ttl).Err(); setErr != nil {
		c.log.Warn("写入价格缓存失败", slog.Any("error", setErr))
	}
	return price, nil
}

// Close 释放 Redis 连接。
func (c *Cache) Close() error {
	return c.client.Close()
}

var _ Oracle = (*Cache)(nil)
