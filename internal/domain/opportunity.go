package domain

import (
	"math/big"
	"time"
)

// Direction names the venue pair of an opportunity: buy on the cheap venue,
// sell on the expensive one.
type Direction string

const (
	// DirectionBuySolSellEVM buys base on the Solana curve, sells on the EVM pool.
	DirectionBuySolSellEVM Direction = "buy_solana_sell_evm"
	// DirectionBuyEVMSellSol buys base on the EVM pool, sells on the Solana curve.
	DirectionBuyEVMSellSol Direction = "buy_evm_sell_solana"
)

// BuyVenue returns the venue the base asset is bought on.
func (d Direction) BuyVenue() VenueID {
	if d == DirectionBuyEVMSellSol {
		return VenueEVM
	}
	return VenueSolana
}

// SellVenue returns the venue the base asset is sold on.
func (d Direction) SellVenue() VenueID {
	if d == DirectionBuyEVMSellSol {
		return VenueSolana
	}
	return VenueEVM
}

// Opportunity is the analyzer's verdict on one snapshot: a direction and the
// equilibrium trade size in canonical base units, plus the profit projected
// from the snapshot it was derived from. Opportunities are consumed once by
// the simulator and then discarded; their embedded numbers are never trusted
// at execution time.
type Opportunity struct {
	ID                 string
	Direction          Direction
	EquilibriumSize    *big.Int // canonical base units
	CanonicalDecimals  uint8
	ProjectedProfitUSD float64
	PriceGapBefore     float64 // relative gap at the snapshot
	PriceGapAfter      float64 // relative gap after the simulated legs
	Converged          bool
	SnapshotAt         time.Time
}

// Leg is one concrete side of a trade plan: a buy or sell of AmountBase on a
// single venue, with the slippage-bounded worst acceptable counter amount.
type Leg struct {
	Venue      VenueID
	Side       Side
	AmountBase *big.Int // venue-native base units
	// ExpectedCounter is the simulated quote amount (paid for a buy, received
	// for a sell) in venue-native quote units.
	ExpectedCounter *big.Int
	// MinCounter is the slippage-bounded minimum output. For a buy leg it is
	// interpreted as the maximum quote the executor may pay.
	MinCounter *big.Int
	FeeQuote   *big.Int
}

// TradePlan is the simulator's output: the two concrete legs of one
// opportunity priced against a fresh snapshot, never reused across execution
// attempts.
type TradePlan struct {
	OpportunityID string
	Direction     Direction
	Buy           Leg
	Sell          Leg
	// Economics in USD, for the outcome record.
	CostUSD     float64
	RevenueUSD  float64
	OverheadUSD float64
	NetUSD      float64
	SimulatedAt time.Time
}
