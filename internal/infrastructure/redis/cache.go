package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const analyticsKey = "analytics:events"

type Cache struct {
	Client *redis.Client
}

func New(addr, pass string, db int) *Cache {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr, Password: pass, DB: db,
	})
	return &Cache{Client: rdb}
}

// NewWithClient wraps an existing client (tests, shared connections).
func NewWithClient(client *redis.Client) *Cache {
	return &Cache{Client: client}
}

func eventKey(eventID uuid.UUID) string {
	return fmt.Sprintf("event:%s", eventID)
}

func (c *Cache) InvalidateEvent(ctx context.Context, eventID uuid.UUID) error {
	return c.Client.Del(ctx, eventKey(eventID)).Err()
}

func (c *Cache) InvalidateAnalytics(ctx context.Context) error {
	return c.Client.Del(ctx, analyticsKey).Err()
}

// AllowRequest: simple fixed window rate limit.
func (c *Cache) AllowRequest(ctx context.Context, ip string, limit int, window time.Duration) (bool, error) {
	key := "ratelimit:" + ip
	count, err := c.Client.Incr(ctx, key).Result()
	if err != nil {
		return true, nil // fail open
	}
	if count == 1 {
		_ = c.Client.Expire(ctx, key, window).Err()
	}
	return count <= int64(limit), nil
}
