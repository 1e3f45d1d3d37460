package domain

import (
	"context"
	"time"
)

// PriceCache stores the last known USD reference price so sibling processes
// and restarts share it. Implementations return ErrNotFound when no value
// has been stored yet.
type PriceCache interface {
	SetQuoteUSD(ctx context.Context, price float64, ts time.Time) error
	GetQuoteUSD(ctx context.Context) (float64, time.Time, error)
}

// EventDedup suppresses redelivered trade events by transaction id. Seen
// returns true when the id was already recorded inside the TTL window, and
// records it otherwise.
type EventDedup interface {
	Seen(ctx context.Context, txID string) (bool, error)
}
