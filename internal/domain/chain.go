package domain

import (
	"context"
	"math/big"
	"time"
)

// TradeEstimate is a chain client's dry-run of a trade: the counter amount it
// would produce right now and whether the node predicts a revert.
type TradeEstimate struct {
	CounterAmount *big.Int
	NetworkFee    *big.Int // in quote units of the venue's ledger
	WillRevert    bool
}

// TradeReceipt is the observable result of a submitted leg.
type TradeReceipt struct {
	TxID          string
	CounterAmount *big.Int
	Confirmed     bool
	SubmittedAt   time.Time
}

// ChainClient is the per-venue collaborator the core depends on for state
// reads and leg submission. Implementations bind the pool/pair identity at
// construction and must surface the distinguishable error kinds from
// errors.go (ErrNetwork, ErrSimulationRevert, ErrInsufficientBalance,
// ErrDeadlineExceeded, ErrConfirmTimeout).
type ChainClient interface {
	VenueID() VenueID

	// GetReserves returns the pool's current reserve state.
	GetReserves(ctx context.Context) (Reserves, error)

	// EstimateTrade dry-runs a trade of amountBase (venue-native units).
	EstimateTrade(ctx context.Context, side Side, amountBase *big.Int) (TradeEstimate, error)

	// Submit sends the trade with an explicit worst-acceptable counter amount
	// and a deadline, then polls confirmation up to a bounded budget.
	Submit(ctx context.Context, side Side, amountBase, minCounter *big.Int, deadline time.Time) (TradeReceipt, error)

	// BaseBalance and QuoteBalance report the trading wallet's holdings in
	// venue-native units.
	BaseBalance(ctx context.Context) (*big.Int, error)
	QuoteBalance(ctx context.Context) (*big.Int, error)
}

// EventFeed delivers swap activity for one venue into the coordinator's
// event channel. Run blocks until the context is cancelled.
type EventFeed interface {
	VenueID() VenueID
	Run(ctx context.Context, out chan<- TradeEvent) error
}

// PriceOracle supplies the quote-asset USD reference price. Implementations
// cache with a TTL; consumers must tolerate staleness between refreshes.
type PriceOracle interface {
	QuoteUSD(ctx context.Context) (float64, error)
}
