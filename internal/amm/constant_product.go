package amm

import (
	"fmt"
	"math/big"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// ConstantProduct prices trades against a reserveBase * reserveQuote = k pair
// with the fee charged on the input side of every trade, UniswapV2-style.
type ConstantProduct struct {
	feeBps int64
}

// NewConstantProduct creates the constant-product model with the venue's fee
// in basis points.
func NewConstantProduct(feeBps int64) *ConstantProduct {
	return &ConstantProduct{feeBps: feeBps}
}

func (m *ConstantProduct) Kind() domain.VenueKind { return domain.KindConstantProduct }

// SpotPrice returns reserveQuote/reserveBase in raw integer units.
func (m *ConstantProduct) SpotPrice(r domain.Reserves) (*big.Rat, error) {
	cp, err := m.reserves(r)
	if err != nil {
		return nil, err
	}
	if cp.ReserveBase.Sign() <= 0 || cp.ReserveQuote.Sign() <= 0 {
		return nil, fmt.Errorf("amm: constant product pair has non-positive reserves")
	}
	return new(big.Rat).SetFrac(cp.ReserveQuote, cp.ReserveBase), nil
}

// ApplyTrade simulates a trade against the pair.
//
// Buy: the raw quote needed is the increase of ceil(k/newReserveBase) over
// reserveQuote; because the fee is charged on input, the trader actually pays
// rawQuote / (1 - feeRate), rounded up.
//
// Sell: the base input is first reduced by the fee, then the standard output
// formula applies with no further quote-side deduction.
func (m *ConstantProduct) ApplyTrade(r domain.Reserves, amountBase *big.Int, side domain.Side) (TradeResult, error) {
	cp, err := m.reserves(r)
	if err != nil {
		return TradeResult{}, err
	}
	if amountBase == nil || amountBase.Sign() <= 0 {
		return TradeResult{}, fmt.Errorf("amm: trade size must be positive")
	}

	k := new(big.Int).Mul(cp.ReserveBase, cp.ReserveQuote)

	switch side {
	case domain.SideBuy:
		if amountBase.Cmp(cp.ReserveBase) >= 0 {
			return TradeResult{}, domain.ErrInsufficientLiquidity
		}
		newRB := new(big.Int).Sub(cp.ReserveBase, amountBase)
		newRQ := ceilDiv(k, newRB)
		rawQuote := new(big.Int).Sub(newRQ, cp.ReserveQuote)

		// quotePaid = ceil(rawQuote * 10000 / (10000 - feeBps))
		paid := new(big.Int).Mul(rawQuote, big.NewInt(bpsDenom))
		paid = ceilDiv(paid, big.NewInt(bpsDenom-m.feeBps))
		fee := new(big.Int).Sub(paid, rawQuote)

		out := &domain.ConstantProductReserves{
			ReserveBase:  newRB,
			ReserveQuote: newRQ,
		}
		return TradeResult{
			Reserves:      out,
			CounterAmount: paid,
			Fee:           fee,
		}, nil

	case domain.SideSell:
		// Fee on the base input.
		effective := new(big.Int).Mul(amountBase, big.NewInt(bpsDenom-m.feeBps))
		effective.Quo(effective, big.NewInt(bpsDenom))
		if effective.Sign() <= 0 {
			return TradeResult{}, domain.ErrInsufficientLiquidity
		}
		feeBase := new(big.Int).Sub(amountBase, effective)

		newRB := new(big.Int).Add(cp.ReserveBase, effective)
		newRQ := ceilDiv(k, newRB)
		quoteOut := new(big.Int).Sub(cp.ReserveQuote, newRQ)
		if quoteOut.Sign() <= 0 {
			return TradeResult{}, domain.ErrInsufficientLiquidity
		}

		out := &domain.ConstantProductReserves{
			ReserveBase:  newRB,
			ReserveQuote: newRQ,
		}
		return TradeResult{
			Reserves:      out,
			CounterAmount: quoteOut,
			Fee:           feeBase,
		}, nil

	default:
		return TradeResult{}, fmt.Errorf("amm: unknown side %q", side)
	}
}

// MaxTradeBase bounds the probe range at the pair's base reserve for either
// side; past that point the formula has no meaningful solutions.
func (m *ConstantProduct) MaxTradeBase(r domain.Reserves, side domain.Side) (*big.Int, error) {
	cp, err := m.reserves(r)
	if err != nil {
		return nil, err
	}
	switch side {
	case domain.SideBuy, domain.SideSell:
		return new(big.Int).Set(cp.ReserveBase), nil
	default:
		return nil, fmt.Errorf("amm: unknown side %q", side)
	}
}

func (m *ConstantProduct) reserves(r domain.Reserves) (*domain.ConstantProductReserves, error) {
	cp, ok := r.(*domain.ConstantProductReserves)
	if !ok {
		return nil, fmt.Errorf("amm: constant product model given %T reserves", r)
	}
	return cp, nil
}

var _ Model = (*ConstantProduct)(nil)
