package domain

import (
	"math/big"
	"time"
)

// VenueSnapshot is one venue's reserve state plus the decimal scales needed
// to compare it against the other venue. FeeBps is the venue's trade fee in
// basis points.
type VenueSnapshot struct {
	Venue         VenueID
	Kind          VenueKind
	Reserves      Reserves
	BaseDecimals  uint8
	QuoteDecimals uint8
	FeeBps        int64
	FetchedAt     time.Time
}

// MarketSnapshot is an immutable pair of venue states captured as close to
// simultaneously as the two ledgers allow, plus the quote-asset USD reference
// price in effect at capture time. Snapshots are created fresh every cycle
// and superseded, never updated in place.
type MarketSnapshot struct {
	Solana   VenueSnapshot
	EVM      VenueSnapshot
	QuoteUSD float64
	TakenAt  time.Time
}

// ByID returns the venue snapshot for the given venue.
func (s MarketSnapshot) ByID(id VenueID) VenueSnapshot {
	if id == VenueEVM {
		return s.EVM
	}
	return s.Solana
}

// NormalizePrice converts a raw quote/base integer ratio into natural units
// (whole quote per whole base) by correcting for the two assets' decimal
// scales. The result is exact.
func NormalizePrice(raw *big.Rat, baseDecimals, quoteDecimals uint8) *big.Rat {
	out := new(big.Rat).Set(raw)
	if baseDecimals > quoteDecimals {
		out.Mul(out, new(big.Rat).SetInt(pow10(int(baseDecimals-quoteDecimals))))
	} else if quoteDecimals > baseDecimals {
		out.Quo(out, new(big.Rat).SetInt(pow10(int(quoteDecimals-baseDecimals))))
	}
	return out
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
