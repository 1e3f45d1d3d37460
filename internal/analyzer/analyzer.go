// Package analyzer finds the equilibrium trade size between the two venues:
// the size that, bought on the cheap venue and sold on the expensive one,
// brings their post-trade marginal prices together net of fees.
package analyzer

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/crossarb/internal/amm"
	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Config tunes the equilibrium search and the profit gates.
type Config struct {
	// TolerancePct is the relative post-trade price gap (in percent) under
	// which the search is considered converged, e.g. 0.001 for 0.001%.
	TolerancePct float64
	// MaxIterations bounds the bisection. When exhausted the best size seen
	// (lowest gap) is returned unconverged rather than an unexamined value.
	MaxIterations int
	// MaxReserveBps caps the search at this fraction of each venue's usable
	// reserve, in basis points (8000 = 80%), keeping the bisection away from
	// the invariant singularity near full depletion.
	MaxReserveBps int64
	// NotionalCapUSD is the maximum exposure per cycle.
	NotionalCapUSD float64
	// MinProfitUSD and MinProfitPct gate the projected profit.
	MinProfitUSD float64
	MinProfitPct float64
}

// Defaults returns the analyzer configuration used when the operator sets
// nothing.
func Defaults() Config {
	return Config{
		TolerancePct:   0.001,
		MaxIterations:  96,
		MaxReserveBps:  8_000,
		NotionalCapUSD: 1_000,
		MinProfitUSD:   1,
		MinProfitPct:   1,
	}
}

// Analyzer runs the equilibrium binary search over immutable snapshots.
type Analyzer struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an Analyzer.
func New(cfg Config, logger *slog.Logger) *Analyzer {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = Defaults().MaxIterations
	}
	if cfg.MaxReserveBps <= 0 || cfg.MaxReserveBps >= 10_000 {
		cfg.MaxReserveBps = Defaults().MaxReserveBps
	}
	if cfg.TolerancePct <= 0 {
		cfg.TolerancePct = Defaults().TolerancePct
	}
	return &Analyzer{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "analyzer")),
	}
}

// legState is one side of the hypothesis: a venue snapshot plus its model.
type legState struct {
	snap  domain.VenueSnapshot
	model amm.Model
}

func (l legState) normPrice(r domain.Reserves) (*big.Rat, error) {
	raw, err := l.model.SpotPrice(r)
	if err != nil {
		return nil, err
	}
	return domain.NormalizePrice(raw, l.snap.BaseDecimals, l.snap.QuoteDecimals), nil
}

// Analyze runs the direction hypothesis and the bisection against one
// snapshot. It returns domain.ErrNoOpportunity when the spread is absent, the
// liquidity bound collapses to zero, or the projected profit misses the
// configured gates.
func (a *Analyzer) Analyze(snap domain.MarketSnapshot) (*domain.Opportunity, error) {
	sol, err := newLegState(snap.Solana)
	if err != nil {
		return nil, err
	}
	evm, err := newLegState(snap.EVM)
	if err != nil {
		return nil, err
	}

	pSol, err := sol.normPrice(sol.snap.Reserves)
	if err != nil {
		return nil, err
	}
	pEVM, err := evm.normPrice(evm.snap.Reserves)
	if err != nil {
		return nil, err
	}

	// Direction hypothesis: buy the cheaper venue, sell the pricier one.
	var buy, sell legState
	var direction domain.Direction
	switch pSol.Cmp(pEVM) {
	case -1:
		buy, sell = sol, evm
		direction = domain.DirectionBuySolSellEVM
	case 1:
		buy, sell = evm, sol
		direction = domain.DirectionBuyEVMSellSol
	default:
		return nil, domain.ErrNoOpportunity
	}

	gapBefore := relGapPct(pSol, pEVM)
	canonical := amm.CanonicalDecimals(buy.snap.BaseDecimals, sell.snap.BaseDecimals)

	high, err := a.upperBound(buy, sell, pSol, pEVM, canonical, snap.QuoteUSD)
	if err != nil {
		return nil, err
	}
	if high.Sign() <= 0 {
		return nil, domain.ErrNoOpportunity
	}

	size, gapAfter, converged, err := a.bisect(buy, sell, canonical, high)
	if err != nil {
		return nil, err
	}
	if size == nil || size.Sign() <= 0 {
		return nil, domain.ErrNoOpportunity
	}

	profit, err := a.projectProfit(buy, sell, canonical, size, snap.QuoteUSD)
	if err != nil {
		return nil, err
	}
	profitUSD, _ := profit.usd.Float64()

	if profitUSD < a.cfg.MinProfitUSD || profit.pct < a.cfg.MinProfitPct {
		a.logger.Debug("opportunity below profit gates",
			slog.Float64("profit_usd", profitUSD),
			slog.Float64("profit_pct", profit.pct),
		)
		return nil, domain.ErrNoOpportunity
	}

	return &domain.Opportunity{
		ID:                 uuid.New().String(),
		Direction:          direction,
		EquilibriumSize:    size,
		CanonicalDecimals:  canonical,
		ProjectedProfitUSD: profitUSD,
		PriceGapBefore:     gapBefore,
		PriceGapAfter:      gapAfter,
		Converged:          converged,
		SnapshotAt:         snap.TakenAt,
	}, nil
}

// upperBound computes the bisection ceiling: the configured fraction of each
// venue's usable reserve and the USD notional cap, all in canonical units.
func (a *Analyzer) upperBound(buy, sell legState, pSol, pEVM *big.Rat, canonical uint8, quoteUSD float64) (*big.Int, error) {
	buyMax, err := buy.model.MaxTradeBase(buy.snap.Reserves, domain.SideBuy)
	if err != nil {
		return nil, err
	}
	sellMax, err := sell.model.MaxTradeBase(sell.snap.Reserves, domain.SideSell)
	if err != nil {
		return nil, err
	}

	frac := big.NewInt(a.cfg.MaxReserveBps)
	denom := big.NewInt(10_000)

	buyCap := new(big.Int).Mul(amm.Rescale(buyMax, buy.snap.BaseDecimals, canonical), frac)
	buyCap.Quo(buyCap, denom)
	sellCap := new(big.Int).Mul(amm.Rescale(sellMax, sell.snap.BaseDecimals, canonical), frac)
	sellCap.Quo(sellCap, denom)

	high := buyCap
	if sellCap.Cmp(high) < 0 {
		high = sellCap
	}

	if a.cfg.NotionalCapUSD > 0 && quoteUSD > 0 {
		avg := new(big.Rat).Add(pSol, pEVM)
		avg.Quo(avg, big.NewRat(2, 1))
		avgPrice, _ := avg.Float64()
		if avgPrice > 0 {
			capWhole := a.cfg.NotionalCapUSD / (avgPrice * quoteUSD)
			capBase := decimal.NewFromFloat(capWhole).Shift(int32(canonical)).BigInt()
			if capBase.Cmp(high) < 0 {
				high = capBase
			}
		}
	}

	return high, nil
}

// probe simulates the two legs independently against the unperturbed snapshot
// and returns the post-trade normalized prices.
func (a *Analyzer) probe(buy, sell legState, canonical uint8, size *big.Int) (postBuy, postSell *big.Rat, err error) {
	buySize := amm.Rescale(size, canonical, buy.snap.BaseDecimals)
	sellSize := amm.Rescale(size, canonical, sell.snap.BaseDecimals)
	if buySize.Sign() <= 0 || sellSize.Sign() <= 0 {
		return nil, nil, domain.ErrInsufficientLiquidity
	}

	buyRes, err := buy.model.ApplyTrade(buy.snap.Reserves, buySize, domain.SideBuy)
	if err != nil {
		return nil, nil, err
	}
	sellRes, err := sell.model.ApplyTrade(sell.snap.Reserves, sellSize, domain.SideSell)
	if err != nil {
		return nil, nil, err
	}

	postBuy, err = buy.normPrice(buyRes.Reserves)
	if err != nil {
		return nil, nil, err
	}
	postSell, err = sell.normPrice(sellRes.Reserves)
	if err != nil {
		return nil, nil, err
	}
	return postBuy, postSell, nil
}

// bisect searches [0, high] for the equilibrium size. It returns the best
// size observed together with its relative gap and whether the tolerance was
// met within the iteration budget.
func (a *Analyzer) bisect(buy, sell legState, canonical uint8, high *big.Int) (*big.Int, float64, bool, error) {
	low := big.NewInt(0)
	hi := new(big.Int).Set(high)
	two := big.NewInt(2)

	var bestSize *big.Int
	bestGap := -1.0

	for i := 0; i < a.cfg.MaxIterations; i++ {
		if new(big.Int).Sub(hi, low).Cmp(big.NewInt(1)) <= 0 {
			break
		}
		mid := new(big.Int).Add(low, hi)
		mid.Quo(mid, two)
		if mid.Sign() == 0 {
			break
		}

		postBuy, postSell, err := a.probe(buy, sell, canonical, mid)
		if err != nil {
			if isLiquidityErr(err) {
				// Too big for the pools; shrink.
				hi = mid
				continue
			}
			return nil, 0, false, err
		}

		gap := relGapPct(postBuy, postSell)
		if bestGap < 0 || gap < bestGap {
			bestGap = gap
			bestSize = new(big.Int).Set(mid)
		}

		if gap < a.cfg.TolerancePct {
			return mid, gap, true, nil
		}

		// Buy-venue price rises with size, sell-venue price falls. If the buy
		// venue is still cheaper the trade undershot; otherwise it overshot.
		if postBuy.Cmp(postSell) < 0 {
			low = mid
		} else {
			hi = mid
		}
	}

	if bestSize == nil {
		return nil, 0, false, domain.ErrNoOpportunity
	}
	return bestSize, bestGap, false, nil
}

type profit struct {
	usd decimal.Decimal
	pct float64
}

// projectProfit re-runs both legs at the chosen size and converts the quote
// flows to USD through the reference price. Exact integer amounts feed the
// decimal math; floats appear only in the returned report values.
func (a *Analyzer) projectProfit(buy, sell legState, canonical uint8, size *big.Int, quoteUSD float64) (profit, error) {
	buySize := amm.Rescale(size, canonical, buy.snap.BaseDecimals)
	sellSize := amm.Rescale(size, canonical, sell.snap.BaseDecimals)

	buyRes, err := buy.model.ApplyTrade(buy.snap.Reserves, buySize, domain.SideBuy)
	if err != nil {
		return profit{}, err
	}
	sellRes, err := sell.model.ApplyTrade(sell.snap.Reserves, sellSize, domain.SideSell)
	if err != nil {
		return profit{}, err
	}

	usdPrice := decimal.NewFromFloat(quoteUSD)
	cost := decimal.NewFromBigInt(buyRes.CounterAmount, -int32(buy.snap.QuoteDecimals)).Mul(usdPrice)
	revenue := decimal.NewFromBigInt(sellRes.CounterAmount, -int32(sell.snap.QuoteDecimals)).Mul(usdPrice)

	net := revenue.Sub(cost)
	pct := 0.0
	if cost.Sign() > 0 {
		pct, _ = net.Div(cost).Mul(decimal.NewFromInt(100)).Float64()
	}
	return profit{usd: net, pct: pct}, nil
}

func newLegState(snap domain.VenueSnapshot) (legState, error) {
	model, err := amm.ForKind(snap.Kind, snap.FeeBps)
	if err != nil {
		return legState{}, fmt.Errorf("analyzer: venue %s: %w", snap.Venue, err)
	}
	return legState{snap: snap, model: model}, nil
}

// relGapPct returns |a-b| / avg(a,b) in percent.
func relGapPct(a, b *big.Rat) float64 {
	diff := new(big.Rat).Sub(a, b)
	diff.Abs(diff)
	avg := new(big.Rat).Add(a, b)
	avg.Quo(avg, big.NewRat(2, 1))
	if avg.Sign() == 0 {
		return 0
	}
	rel := new(big.Rat).Quo(diff, avg)
	f, _ := rel.Float64()
	return f * 100
}

func isLiquidityErr(err error) bool {
	return errors.Is(err, domain.ErrInsufficientLiquidity)
}
