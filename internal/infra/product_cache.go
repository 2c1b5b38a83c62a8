package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bakery-orders/internal/domain"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	productCacheTTL       = time.Minute
	productWarmupCacheTTL = 5 * time.Minute
)

// CachedProductClient puts a redis read-through cache in front of another
// ProductClientInterface. Concurrent misses for the same id share one upstream call.
// A nil redis client disables caching but keeps call collapsing.
type CachedProductClient struct {
	next   ProductClientInterface
	rdb    *redis.Client
	group  singleflight.Group
	logger *zap.Logger
}

func NewCachedProductClient(next ProductClientInterface, rdb *redis.Client, logger *zap.Logger) *CachedProductClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProductClient{next: next, rdb: rdb, logger: logger}
}

func productCacheKey(id uint64) string {
	return fmt.Sprintf("product:%d", id)
}

func (c *CachedProductClient) GetProductById(ctx context.Context, id uint64) (*domain.Product, error) {
	key := productCacheKey(id)

	if c.rdb != nil {
		cached, err := c.rdb.Get(ctx, key).Result()
		if err == nil {
			var p domain.Product
			if err := json.Unmarshal([]byte(cached), &p); err == nil {
				return &p, nil
			}
		} else if err != redis.Nil {
			c.logger.Warn("product cache read failed", zap.Uint64("product_id", id), zap.Error(err))
		}
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		p, err := c.next.GetProductById(ctx, id)
		if err != nil || p == nil {
			return p, err
		}
		c.store(ctx, p, productCacheTTL)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	p, _ := v.(*domain.Product)
	if p == nil {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// Warmup preloads the given products. Lookup failures are logged and skipped.
func (c *CachedProductClient) Warmup(ctx context.Context, ids []uint64) {
	if c.rdb == nil {
		return
	}
	for _, id := range ids {
		p, err := c.next.GetProductById(ctx, id)
		if err != nil {
			c.logger.Warn("product cache warmup failed", zap.Uint64("product_id", id), zap.Error(err))
			continue
		}
		if p != nil {
			c.store(ctx, p, productWarmupCacheTTL)
		}
	}
}

func (c *CachedProductClient) store(ctx context.Context, p *domain.Product, ttl time.Duration) {
	if c.rdb == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, productCacheKey(p.ID), data, ttl).Err(); err != nil {
		c.logger.Warn("product cache write failed", zap.Uint64("product_id", p.ID), zap.Error(err))
	}
}
