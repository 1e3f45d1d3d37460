package domain

import (
	"math/big"
	"time"
)

// TradeEvent is one swap observed on a venue's activity feed. BaseAmount and
// QuoteAmount are venue-native integer units; either may be nil when the feed
// could not decode the leg amounts (the event still carries a usable price
// when both are set).
type TradeEvent struct {
	Venue       VenueID
	Side        Side
	BaseAmount  *big.Int
	QuoteAmount *big.Int
	TxID        string
	ObservedAt  time.Time
}

// Price returns the event's implied quote/base price in natural units, or
// false when the amounts are missing or zero.
func (e TradeEvent) Price(baseDecimals, quoteDecimals uint8) (float64, bool) {
	if e.BaseAmount == nil || e.QuoteAmount == nil || e.BaseAmount.Sign() == 0 {
		return 0, false
	}
	raw := new(big.Rat).SetFrac(e.QuoteAmount, e.BaseAmount)
	f, _ := NormalizePrice(raw, baseDecimals, quoteDecimals).Float64()
	return f, true
}
