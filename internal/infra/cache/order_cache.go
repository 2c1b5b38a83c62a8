package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bakery-orders/internal/domain"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	detailPrefix  = "orders:detail:"
	listPrefix    = "orders:list:"
	listGenKey    = "orders:list:gen"
	defaultTTL    = 30 * time.Second
	invalidateTTL = 5 * time.Second
)

// OrderCache keeps order detail and list views in redis. Detail entries are
// deleted on invalidation; list entries are keyed by a generation counter
// that every invalidation bumps, so stale pages simply stop being read.
// A nil client turns every method into a no-op.
type OrderCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

type listEntry struct {
	Orders []domain.Order `json:"orders"`
	Total  int64          `json:"total"`
}

func NewOrderCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *OrderCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderCache{rdb: rdb, ttl: ttl, logger: logger}
}

func detailKey(id uint64) string {
	return fmt.Sprintf("%s%d", detailPrefix, id)
}

func listKey(gen int64, key string) string {
	return fmt.Sprintf("%sv%d:%s", listPrefix, gen, key)
}

func (c *OrderCache) GetOrder(ctx context.Context, id uint64) (*domain.Order, bool) {
	if c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, detailKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("order cache read failed", zap.Uint64("order_id", id), zap.Error(err))
		}
		return nil, false
	}
	var o domain.Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, false
	}
	return &o, true
}

func (c *OrderCache) SetOrder(ctx context.Context, o *domain.Order) {
	if c.rdb == nil || o == nil {
		return
	}
	c.set(ctx, detailKey(o.ID), o)
}

func (c *OrderCache) GetOrderList(ctx context.Context, key string) ([]domain.Order, int64, bool) {
	if c.rdb == nil {
		return nil, 0, false
	}
	gen, err := c.generation(ctx)
	if err != nil {
		return nil, 0, false
	}
	raw, err := c.rdb.Get(ctx, listKey(gen, key)).Bytes()
	if err != nil {
		return nil, 0, false
	}
	var entry listEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, 0, false
	}
	return entry.Orders, entry.Total, true
}

func (c *OrderCache) SetOrderList(ctx context.Context, key string, orders []domain.Order, total int64) {
	if c.rdb == nil {
		return
	}
	gen, err := c.generation(ctx)
	if err != nil {
		return
	}
	c.set(ctx, listKey(gen, key), listEntry{Orders: orders, Total: total})
}

// InvalidateOrder drops the order's detail view and retires every cached list page.
func (c *OrderCache) InvalidateOrder(ctx context.Context, o *domain.Order) {
	if c.rdb == nil || o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTTL)
	defer cancel()

	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, detailKey(o.ID))
		pipe.Incr(ctx, listGenKey)
		return nil
	})
	if err != nil {
		c.logger.Warn("order cache invalidation failed", zap.Uint64("order_id", o.ID), zap.Error(err))
	}
}

func (c *OrderCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, listGenKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		c.logger.Warn("order cache generation read failed", zap.Error(err))
	}
	return gen, err
}

func (c *OrderCache) set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("order cache write failed", zap.String("key", key), zap.Error(err))
	}
}
