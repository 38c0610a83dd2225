package redisx

import (
	"context"
	"fmt"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// StatusCache caches rendered reservation JSON for GET /api/bookings/{id}.
// The database stays the source of truth; entries are dropped on every transition.
type StatusCache struct {
	Redis *redis.Client
	Log   logrus.FieldLogger
}

func (c *StatusCache) key(id string) string { return fmt.Sprintf(KeyBookingStatus, id) }

func (c *StatusCache) Get(ctx context.Context, id string) ([]byte, bool) {
	b, err := c.Redis.Get(ctx, c.key(id)).Bytes()
	if err != nil || len(b) == 0 {
		return nil, false
	}
	return b, true
}

func (c *StatusCache) Set(ctx context.Context, id string, body []byte) {
	_ = c.Redis.Set(ctx, c.key(id), body, TTLStatusCache).Err()
}

func (c *StatusCache) Invalidate(ctx context.Context, id string) {
	if err := c.Redis.Del(ctx, c.key(id)).Err(); err != nil && c.Log != nil {
		c.Log.WithError(err).WithField("reservation_id", id).Warn("status cache invalidate failed")
	}
}
