// Package amm implements the pure pricing math for the two venue kinds: the
// bonding-curve launchpad pool and the constant-product pair. All invariant
// arithmetic is exact (math/big); rounding always goes against the trader so
// no rounding error can manufacture a phantom edge. No I/O happens here.
package amm

import (
	"fmt"
	"math/big"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

const bpsDenom = 10_000

// TradeResult is the outcome of applying a hypothetical trade to a reserve
// state. Reserves is always a fresh value; the input reserves are never
// written through.
type TradeResult struct {
	Reserves domain.Reserves
	// CounterAmount is the quote paid (buy, fee included) or the quote
	// received net of fees (sell). For a constant-product sell the fee is
	// taken on the base input instead; see Fee.
	CounterAmount *big.Int
	// Fee is the venue fee. Quote units everywhere except the
	// constant-product sell, where the input-side fee is in base units.
	Fee *big.Int
}

// Model is one venue kind's invariant math.
type Model interface {
	Kind() domain.VenueKind

	// SpotPrice returns the raw marginal quote/base ratio in the venue's
	// native integer units. Use domain.NormalizePrice before comparing across
	// venues.
	SpotPrice(r domain.Reserves) (*big.Rat, error)

	// ApplyTrade simulates a buy or sell of amountBase (venue-native base
	// units) against r and returns the post-trade state. It returns
	// domain.ErrInsufficientLiquidity when the pool cannot absorb the size.
	ApplyTrade(r domain.Reserves, amountBase *big.Int, side domain.Side) (TradeResult, error)

	// MaxTradeBase returns the largest base size worth probing for the given
	// side, before the analyzer's fractional ceiling is applied.
	MaxTradeBase(r domain.Reserves, side domain.Side) (*big.Int, error)
}

// ForKind returns the model for a venue kind with the given fee.
func ForKind(kind domain.VenueKind, feeBps int64) (Model, error) {
	switch kind {
	case domain.KindBondingCurve:
		return NewBondingCurve(feeBps), nil
	case domain.KindConstantProduct:
		return NewConstantProduct(feeBps), nil
	default:
		return nil, fmt.Errorf("amm: unknown venue kind %q", kind)
	}
}

// ceilDiv returns ceil(a/b) for positive a, b.
func ceilDiv(a, b *big.Int) *big.Int {
	q, m := new(big.Int).QuoRem(a, b, new(big.Int))
	if m.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// feeOn returns ceil(amount * feeBps / 10000).
func feeOn(amount *big.Int, feeBps int64) *big.Int {
	n := new(big.Int).Mul(amount, big.NewInt(feeBps))
	return ceilDiv(n, big.NewInt(bpsDenom))
}
