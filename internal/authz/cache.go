package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores resolved capability sets per actor with a bounded TTL.
// Writes to capability grants must invalidate the actor's entry.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a Cache. A zero TTL falls back to five minutes.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(actorID int64) string {
	return fmt.Sprintf("authz:actor:%d:capabilities", actorID)
}

// Get returns the cached capability set, or ok=false on miss.
func (c *Cache) Get(ctx context.Context, actorID int64) ([]Capability, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, cacheKey(actorID)).Bytes()
	if err != nil {
		return nil, false
	}
	var caps []Capability
	if err := json.Unmarshal(raw, &caps); err != nil {
		return nil, false
	}
	return caps, true
}

// Put stores the capability set for the configured TTL.
func (c *Cache) Put(ctx context.Context, actorID int64, caps []Capability) error {
	if c == nil || c.client == nil {
		return errors.New("authz: cache not initialised")
	}
	raw, err := json.Marshal(caps)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(actorID), raw, c.ttl).Err()
}

// Invalidate drops the cached set after a grant or revoke.
func (c *Cache) Invalidate(ctx context.Context, actorID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, cacheKey(actorID)).Err()
}
