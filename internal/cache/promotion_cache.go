package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vendora/promotion/internal/domain"
)

const evaluableKey = "promotion:evaluable"

// PromotionCache caches the evaluable promotion set in Redis with a short
// TTL. Every promotion write path invalidates it.
type PromotionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPromotionCache creates a Redis-backed promotion cache.
func NewPromotionCache(client *redis.Client, ttl time.Duration) *PromotionCache {
	return &PromotionCache{
		client: client,
		ttl:    ttl,
	}
}

// GetEvaluable returns the cached evaluable set. The second return value is
// false on a cache miss.
func (c *PromotionCache) GetEvaluable(ctx context.Context) ([]domain.Promotion, bool, error) {
	data, err := c.client.Get(ctx, evaluableKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get evaluable promotions: %w", err)
	}

	var promotions []domain.Promotion
	if err := json.Unmarshal(data, &promotions); err != nil {
		return nil, false, fmt.Errorf("unmarshal evaluable promotions: %w", err)
	}

	return promotions, true, nil
}

// SetEvaluable stores the evaluable set with the configured TTL.
func (c *PromotionCache) SetEvaluable(ctx context.Context, promotions []domain.Promotion) error {
	data, err := json.Marshal(promotions)
	if err != nil {
		return fmt.Errorf("marshal evaluable promotions: %w", err)
	}

	if err := c.client.Set(ctx, evaluableKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set evaluable promotions: %w", err)
	}

	return nil
}

// Invalidate drops the cached evaluable set.
func (c *PromotionCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, evaluableKey).Err(); err != nil {
		return fmt.Errorf("redis del evaluable promotions: %w", err)
	}

	return nil
}
