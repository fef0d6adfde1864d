package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"classchat/internal/models"
	"classchat/pkg/logger"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// CachedUsers puts a Redis cache-aside layer in front of a UserRepository so
// reconnect storms do not hammer the account store.
type CachedUsers struct {
	next    UserRepository
	client  *redis.Client
	ttl     time.Duration
	sfGroup singleflight.Group
}

func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func NewCachedUsers(next UserRepository, client *redis.Client, ttl time.Duration) *CachedUsers {
	return &CachedUsers{next: next, client: client, ttl: ttl}
}

func userCacheKey(id string) string {
	return "classchat:user:" + id
}

func (c *CachedUsers) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	key := userCacheKey(id)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var u models.User
		if err := json.Unmarshal(data, &u); err == nil {
			return &u, nil
		}
		logger.Warn("Dropping corrupt cache entry %s", key)
	case !errors.Is(err, redis.Nil):
		// Continue to the account store on cache errors
		logger.Warn("User cache read failed for %s: %v", id, err)
	}

	val, err, _ := c.sfGroup.Do(key, func() (interface{}, error) {
		u, err := c.next.GetUserByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(u); err == nil {
			if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
				logger.Warn("User cache write failed for %s: %v", id, err)
			}
		}
		return u, nil
	})
	if err != nil {
		return nil, err
	}
	u := *val.(*models.User)
	return &u, nil
}
