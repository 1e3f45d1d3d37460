// Package domain defines the core types and interfaces shared by every layer
// of the crossarb bot: venue reserve models, market snapshots, opportunities,
// trade plans, execution outcomes, and the collaborator contracts (chain
// clients, caches, stores, feeds) the engine depends on.
package domain

import (
	"fmt"
	"math/big"
)

// VenueID identifies one of the two trading venues.
type VenueID string

const (
	// VenueSolana is the bonding-curve launchpad pool on Solana.
	VenueSolana VenueID = "solana"
	// VenueEVM is the constant-product pair on the EVM chain.
	VenueEVM VenueID = "evm"
)

// VenueKind selects which AMM invariant a venue implements. It is a closed
// set: exactly one model exists per kind.
type VenueKind string

const (
	KindBondingCurve    VenueKind = "bonding_curve"
	KindConstantProduct VenueKind = "constant_product"
)

// Side is the direction of a trade in base-asset terms.
type Side string

const (
	SideBuy  Side = "buy"  // remove base from the pool, pay quote
	SideSell Side = "sell" // add base to the pool, receive quote
)

// Reserves is the state that defines a venue's invariant at one instant.
// Implementations are immutable in practice: AMM math never mutates a
// Reserves value, every hypothetical trade produces a fresh one.
type Reserves interface {
	Kind() VenueKind
	// Clone returns a deep copy; candidate states in the solver are always
	// derived from clones so a fetched value is never written through.
	Clone() Reserves
}

// BondingCurveReserves holds the virtual pricing reserves and the real
// withdrawable reserves of a bonding-curve pool. Virtual reserves define the
// spot price; real reserves cap how much a single trade may consume.
type BondingCurveReserves struct {
	VirtualBase  *big.Int
	VirtualQuote *big.Int
	RealBase     *big.Int
	RealQuote    *big.Int
}

func (r *BondingCurveReserves) Kind() VenueKind { return KindBondingCurve }

func (r *BondingCurveReserves) Clone() Reserves {
	return &BondingCurveReserves{
		VirtualBase:  new(big.Int).Set(r.VirtualBase),
		VirtualQuote: new(big.Int).Set(r.VirtualQuote),
		RealBase:     new(big.Int).Set(r.RealBase),
		RealQuote:    new(big.Int).Set(r.RealQuote),
	}
}

func (r *BondingCurveReserves) String() string {
	return fmt.Sprintf("BondingCurve(vb=%s vq=%s rb=%s rq=%s)",
		r.VirtualBase, r.VirtualQuote, r.RealBase, r.RealQuote)
}

// ConstantProductReserves holds the pool balances of a constant-product pair
// (reserveBase * reserveQuote = k).
type ConstantProductReserves struct {
	ReserveBase  *big.Int
	ReserveQuote *big.Int
}

func (r *ConstantProductReserves) Kind() VenueKind { return KindConstantProduct }

func (r *ConstantProductReserves) Clone() Reserves {
	return &ConstantProductReserves{
		ReserveBase:  new(big.Int).Set(r.ReserveBase),
		ReserveQuote: new(big.Int).Set(r.ReserveQuote),
	}
}

func (r *ConstantProductReserves) String() string {
	return fmt.Sprintf("ConstantProduct(base=%s quote=%s)", r.ReserveBase, r.ReserveQuote)
}
