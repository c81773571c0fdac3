package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache is the optional fast path in front of the store. A nil client turns
// every method into a miss/no-op; the store always stays the source of truth.
type Cache struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewCache(rdb *redis.Client, logger *zap.Logger) *Cache {
	return &Cache{rdb: rdb, logger: logger}
}

func (c *Cache) Enabled() bool { return c != nil && c.rdb != nil }

const idempotencyPending = "pending"

// ClaimIdempotencyKey reserves key for one create call with SETNX. When the
// key was taken already it returns the order stored under it, or "" while
// the first call is still running. Without redis every call claims.
func (c *Cache) ClaimIdempotencyKey(ctx context.Context, key string) (orderID string, claimed bool) {
	if !c.Enabled() || key == "" {
		return "", true
	}
	ok, err := c.rdb.SetNX(ctx, idempotencyKey(key), idempotencyPending, IdempotencyTTL).Result()
	if err != nil {
		c.logger.Warn("idempotency claim failed", zap.Error(err))
		return "", true
	}
	if ok {
		return "", true
	}
	id, err := c.rdb.Get(ctx, idempotencyKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// expired between SETNX and GET
			return "", true
		}
		c.logger.Warn("idempotency lookup failed", zap.Error(err))
		return "", false
	}
	if id == idempotencyPending {
		return "", false
	}
	return id, false
}

// ReleaseIdempotencyKey drops a claim whose create call failed so the client
// can retry.
func (c *Cache) ReleaseIdempotencyKey(ctx context.Context, key string) {
	if !c.Enabled() || key == "" {
		return
	}
	if err := c.rdb.Del(ctx, idempotencyKey(key)).Err(); err != nil {
		c.logger.Warn("idempotency release failed", zap.Error(err))
	}
}

func (c *Cache) RememberIdempotencyKey(ctx context.Context, key, orderID string) {
	if !c.Enabled() || key == "" {
		return
	}
	if err := c.rdb.Set(ctx, idempotencyKey(key), orderID, IdempotencyTTL).Err(); err != nil {
		c.logger.Warn("idempotency store failed", zap.String("order_id", orderID), zap.Error(err))
	}
}

type StatusEntry struct {
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (c *Cache) SetOrderStatus(ctx context.Context, orderID string, e StatusEntry) {
	if !c.Enabled() {
		return
	}
	b, _ := json.Marshal(e)
	if err := c.rdb.Set(ctx, orderStatusKey(orderID), b, StatusTTL).Err(); err != nil {
		c.logger.Warn("status cache store failed", zap.String("order_id", orderID), zap.Error(err))
	}
}

func (c *Cache) OrderStatus(ctx context.Context, orderID string) (StatusEntry, bool) {
	var e StatusEntry
	if !c.Enabled() {
		return e, false
	}
	s, err := c.rdb.Get(ctx, orderStatusKey(orderID)).Result()
	if err != nil || s == "" {
		return e, false
	}
	if err := json.Unmarshal([]byte(s), &e); err != nil {
		return e, false
	}
	return e, true
}

// FirstDelivery reports whether eventID is seen for the first time by
// service. Without redis every delivery counts as the first.
func (c *Cache) FirstDelivery(ctx context.Context, service, eventID string) bool {
	if !c.Enabled() {
		return true
	}
	ok, err := c.rdb.SetNX(ctx, dedupKey(service, eventID), "1", DedupTTL).Result()
	if err != nil {
		c.logger.Warn("dedup check failed", zap.String("event_id", eventID), zap.Error(err))
		return true
	}
	return ok
}
