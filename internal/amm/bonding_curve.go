package amm

import (
	"fmt"
	"math/big"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// BondingCurve prices trades against virtual reserves while real reserves cap
// the size a single trade may consume. The curve invariant is
// virtualBase * virtualQuote = k; k/newReserve is always rounded up so the
// invariant is never violated in the trader's favor.
type BondingCurve struct {
	feeBps int64
}

// NewBondingCurve creates the bonding-curve model with the venue's fee in
// basis points. The fee is charged on the quote leg of every trade.
func NewBondingCurve(feeBps int64) *BondingCurve {
	return &BondingCurve{feeBps: feeBps}
}

func (m *BondingCurve) Kind() domain.VenueKind { return domain.KindBondingCurve }

// SpotPrice returns virtualQuote/virtualBase in raw integer units.
func (m *BondingCurve) SpotPrice(r domain.Reserves) (*big.Rat, error) {
	bc, err := m.reserves(r)
	if err != nil {
		return nil, err
	}
	if bc.VirtualBase.Sign() <= 0 || bc.VirtualQuote.Sign() <= 0 {
		return nil, fmt.Errorf("amm: bonding curve has non-positive virtual reserves")
	}
	return new(big.Rat).SetFrac(bc.VirtualQuote, bc.VirtualBase), nil
}

// ApplyTrade simulates a trade against the curve.
//
// Buy: newVirtualBase = virtualBase - amount; quote required is the increase
// of ceil(k/newVirtualBase) over virtualQuote, with the proportional fee added
// on top of what the trader pays in. Fails when the size reaches either the
// virtual base (curve singularity) or the real base (withdrawable liquidity).
//
// Sell: symmetric; the fee is deducted from the quote released, and the trade
// fails when the released quote exceeds the real quote reserve.
func (m *BondingCurve) ApplyTrade(r domain.Reserves, amountBase *big.Int, side domain.Side) (TradeResult, error) {
	bc, err := m.reserves(r)
	if err != nil {
		return TradeResult{}, err
	}
	if amountBase == nil || amountBase.Sign() <= 0 {
		return TradeResult{}, fmt.Errorf("amm: trade size must be positive")
	}

	k := new(big.Int).Mul(bc.VirtualBase, bc.VirtualQuote)

	switch side {
	case domain.SideBuy:
		if amountBase.Cmp(bc.VirtualBase) >= 0 || amountBase.Cmp(bc.RealBase) >= 0 {
			return TradeResult{}, domain.ErrInsufficientLiquidity
		}
		newVB := new(big.Int).Sub(bc.VirtualBase, amountBase)
		newVQ := ceilDiv(k, newVB)
		quoteIn := new(big.Int).Sub(newVQ, bc.VirtualQuote)
		fee := feeOn(quoteIn, m.feeBps)

		out := &domain.BondingCurveReserves{
			VirtualBase:  newVB,
			VirtualQuote: newVQ,
			RealBase:     new(big.Int).Sub(bc.RealBase, amountBase),
			RealQuote:    new(big.Int).Add(bc.RealQuote, quoteIn),
		}
		return TradeResult{
			Reserves:      out,
			CounterAmount: new(big.Int).Add(quoteIn, fee),
			Fee:           fee,
		}, nil

	case domain.SideSell:
		newVB := new(big.Int).Add(bc.VirtualBase, amountBase)
		newVQ := ceilDiv(k, newVB)
		quoteOut := new(big.Int).Sub(bc.VirtualQuote, newVQ)
		if quoteOut.Sign() <= 0 {
			return TradeResult{}, domain.ErrInsufficientLiquidity
		}
		fee := feeOn(quoteOut, m.feeBps)
		net := new(big.Int).Sub(quoteOut, fee)
		if net.Cmp(bc.RealQuote) > 0 {
			return TradeResult{}, domain.ErrInsufficientLiquidity
		}

		out := &domain.BondingCurveReserves{
			VirtualBase:  newVB,
			VirtualQuote: newVQ,
			RealBase:     new(big.Int).Add(bc.RealBase, amountBase),
			RealQuote:    new(big.Int).Sub(bc.RealQuote, quoteOut),
		}
		return TradeResult{
			Reserves:      out,
			CounterAmount: net,
			Fee:           fee,
		}, nil

	default:
		return TradeResult{}, fmt.Errorf("amm: unknown side %q", side)
	}
}

// MaxTradeBase bounds the probe range: for a buy the usable base is whichever
// of the real and virtual base reserves runs out first; for a sell it is the
// base size whose released quote roughly exhausts the real quote reserve.
func (m *BondingCurve) MaxTradeBase(r domain.Reserves, side domain.Side) (*big.Int, error) {
	bc, err := m.reserves(r)
	if err != nil {
		return nil, err
	}
	switch side {
	case domain.SideBuy:
		max := new(big.Int).Set(bc.RealBase)
		if bc.VirtualBase.Cmp(max) < 0 {
			max.Set(bc.VirtualBase)
		}
		return max, nil
	case domain.SideSell:
		if bc.VirtualQuote.Sign() <= 0 {
			return big.NewInt(0), nil
		}
		// realQuote / spotPrice = realQuote * virtualBase / virtualQuote.
		n := new(big.Int).Mul(bc.RealQuote, bc.VirtualBase)
		return n.Quo(n, bc.VirtualQuote), nil
	default:
		return nil, fmt.Errorf("amm: unknown side %q", side)
	}
}

func (m *BondingCurve) reserves(r domain.Reserves) (*domain.BondingCurveReserves, error) {
	bc, ok := r.(*domain.BondingCurveReserves)
	if !ok {
		return nil, fmt.Errorf("amm: bonding curve model given %T reserves", r)
	}
	return bc, nil
}

var _ Model = (*BondingCurve)(nil)
