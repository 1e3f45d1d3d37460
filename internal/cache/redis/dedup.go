package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// EventDedup implements domain.EventDedup with SET NX and a TTL, so multiple
// processes watching the same venues agree on which events were already
// handled.
type EventDedup struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewEventDedup creates an EventDedup with the given window.
func NewEventDedup(c *Client, ttl time.Duration) *EventDedup {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &EventDedup{rdb: c.Underlying(), ttl: ttl}
}

var _ domain.EventDedup = (*EventDedup)(nil)

// Seen atomically records txID and reports whether it was already present.
func (d *EventDedup) Seen(ctx context.Context, txID string) (bool, error) {
	set, err := d.rdb.SetNX(ctx, "crossarb:event:"+txID, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: dedup %s: %w", txID, err)
	}
	return !set, nil
}
