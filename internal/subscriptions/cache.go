package subscriptions

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/calebreyes/taskdeck-backend/pkg/db/models"
	"github.com/calebreyes/taskdeck-backend/pkg/redis"
)

const cacheScope = "subscriptions"

// Cache caches the active subscription set of a project between resolver
// lookups. A miss returns (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, projectID uuid.UUID) ([]models.WebhookSubscription, bool, error)
	Set(ctx context.Context, projectID uuid.UUID, subs []models.WebhookSubscription) error
	Invalidate(ctx context.Context, projectID uuid.UUID) error
}

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache builds a project-keyed subscription cache on top of Redis.
func NewRedisCache(client *redis.Client, ttl time.Duration) (Cache, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &redisCache{client: client, ttl: ttl}, nil
}

func (c *redisCache) Get(ctx context.Context, projectID uuid.UUID) ([]models.WebhookSubscription, bool, error) {
	raw, err := c.client.Get(ctx, c.client.CacheKey(cacheScope, projectID.String()))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var subs []models.WebhookSubscription
	if err := json.Unmarshal([]byte(raw), &subs); err != nil {
		// Stale or corrupt entry; treat as a miss so the repo repopulates it.
		return nil, false, nil
	}
	return subs, true, nil
}

func (c *redisCache) Set(ctx context.Context, projectID uuid.UUID, subs []models.WebhookSubscription) error {
	raw, err := json.Marshal(subs)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.client.CacheKey(cacheScope, projectID.String()), raw, c.ttl)
}

func (c *redisCache) Invalidate(ctx context.Context, projectID uuid.UUID) error {
	return c.client.Del(ctx, c.client.CacheKey(cacheScope, projectID.String()))
}
