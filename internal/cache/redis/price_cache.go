package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// quoteKey holds the shared USD reference price as a hash with fields "price"
// and "ts" (Unix nanoseconds).
const quoteKey = "crossarb:quote_usd"

// PriceCache implements domain.PriceCache on Redis so sibling processes and
// restarts share the oracle's last fetch.
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPriceCache creates a PriceCache. Entries expire after ttl so a dead
// oracle cannot serve an arbitrarily old price forever.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &PriceCache{rdb: c.Underlying(), ttl: ttl}
}

var _ domain.PriceCache = (*PriceCache)(nil)

// SetQuoteUSD stores the price and its fetch time.
func (pc *PriceCache) SetQuoteUSD(ctx context.Context, price float64, ts time.Time) error {
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	pipe := pc.rdb.Pipeline()
	pipe.HSet(ctx, quoteKey, fields)
	pipe.Expire(ctx, quoteKey, pc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote price: %w", err)
	}
	return nil
}

// GetQuoteUSD returns the stored price and fetch time, or domain.ErrNotFound
// when nothing is stored.
func (pc *PriceCache) GetQuoteUSD(ctx context.Context) (float64, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, quoteKey).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get quote price: %w", err)
	}
	if len(vals) == 0 {
		return 0, time.Time{}, domain.ErrNotFound
	}

	price, err := strconv.ParseFloat(vals["price"], 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse quote price: %w", err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse quote ts: %w", err)
	}
	return price, time.Unix(0, tsNano), nil
}
