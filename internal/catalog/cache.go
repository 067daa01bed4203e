package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/checkout-engine/internal/cache"
)

// Cache stores product snapshots in Redis so repeated quote requests for the
// same cart avoid catalog round-trips.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// GetProduct returns a cached product snapshot. It reports whether the key existed.
func (c *Cache) GetProduct(ctx context.Context, id uuid.UUID) (Product, bool, error) {
	if c == nil || c.client == nil {
		return Product{}, false, nil
	}
	data, err := c.client.Get(ctx, cache.KeyProduct(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Product{}, false, nil
		}
		return Product{}, false, err
	}
	var p Product
	if err := json.Unmarshal(data, &p); err != nil {
		return Product{}, false, err
	}
	return p, true, nil
}

// SetProduct stores the product snapshot with the configured TTL.
func (c *Cache) SetProduct(ctx context.Context, p Product) error {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cache.KeyProduct(p.ID), data, c.ttl).Err()
}
