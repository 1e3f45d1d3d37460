// Package simulator re-prices an opportunity against a fresh snapshot before
// any capital moves. The analyzer's numbers are never trusted at execution
// time: the exact candidate size is re-run through the venue math on
// just-fetched reserves, execution overhead is added, and the result either
// becomes a slippage-bounded trade plan or a structured rejection.
package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/crossarb/internal/amm"
	"github.com/alanyoungcy/crossarb/internal/domain"
)

// SnapshotFetcher is the market package's fetcher, narrowed to what the
// simulator needs.
type SnapshotFetcher interface {
	Fetch(ctx context.Context) (domain.MarketSnapshot, error)
}

// Config tunes the simulator's gates and slippage bounds.
type Config struct {
	// MinNetUSD and MinNetPct are the profit floors after overhead.
	MinNetUSD float64
	MinNetPct float64
	// SlippageBps widens the expected counter amounts into worst-acceptable
	// bounds for the executor.
	SlippageBps int64
	// FreshnessBound is the maximum age of the opportunity's snapshot; older
	// opportunities must be re-derived, not re-used.
	FreshnessBound time.Duration
	// SolanaOverheadSOL is the estimated Solana network + priority fee per
	// leg, in whole SOL (converted through the reference price).
	SolanaOverheadSOL float64
	// EVMOverheadUSD is the estimated gas cost of the EVM leg in USD.
	EVMOverheadUSD float64
}

// Simulator re-fetches and re-prices candidate trades.
type Simulator struct {
	cfg     Config
	fetcher SnapshotFetcher
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Simulator.
func New(cfg Config, fetcher SnapshotFetcher, logger *slog.Logger) *Simulator {
	if cfg.SlippageBps <= 0 {
		cfg.SlippageBps = 100
	}
	if cfg.FreshnessBound <= 0 {
		cfg.FreshnessBound = 5 * time.Second
	}
	return &Simulator{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  logger.With(slog.String("component", "simulator")),
		now:     time.Now,
	}
}

// Simulate prices the exact opportunity size on both venues at the current
// moment. It returns a TradePlan ready for the executor, or
// *domain.SimulationRejectedError when the edge no longer clears the gates,
// or domain.ErrStaleOpportunity when the opportunity outlived the freshness
// bound.
func (s *Simulator) Simulate(ctx context.Context, opp *domain.Opportunity) (*domain.TradePlan, error) {
	if age := s.now().Sub(opp.SnapshotAt); age > s.cfg.FreshnessBound {
		return nil, fmt.Errorf("simulator: opportunity is %s old: %w", age.Round(time.Millisecond), domain.ErrStaleOpportunity)
	}

	snap, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("simulator: refetch: %w", err)
	}

	buySnap := snap.ByID(opp.Direction.BuyVenue())
	sellSnap := snap.ByID(opp.Direction.SellVenue())

	buyModel, err := amm.ForKind(buySnap.Kind, buySnap.FeeBps)
	if err != nil {
		return nil, err
	}
	sellModel, err := amm.ForKind(sellSnap.Kind, sellSnap.FeeBps)
	if err != nil {
		return nil, err
	}

	buySize := amm.Rescale(opp.EquilibriumSize, opp.CanonicalDecimals, buySnap.BaseDecimals)
	sellSize := amm.Rescale(opp.EquilibriumSize, opp.CanonicalDecimals, sellSnap.BaseDecimals)

	buyRes, err := buyModel.ApplyTrade(buySnap.Reserves, buySize, domain.SideBuy)
	if err != nil {
		return nil, fmt.Errorf("simulator: buy leg on %s: %w", buySnap.Venue, err)
	}
	sellRes, err := sellModel.ApplyTrade(sellSnap.Reserves, sellSize, domain.SideSell)
	if err != nil {
		return nil, fmt.Errorf("simulator: sell leg on %s: %w", sellSnap.Venue, err)
	}

	usd := decimal.NewFromFloat(snap.QuoteUSD)
	cost := decimal.NewFromBigInt(buyRes.CounterAmount, -int32(buySnap.QuoteDecimals)).Mul(usd)
	revenue := decimal.NewFromBigInt(sellRes.CounterAmount, -int32(sellSnap.QuoteDecimals)).Mul(usd)
	overhead := decimal.NewFromFloat(s.cfg.SolanaOverheadSOL).Mul(usd).
		Add(decimal.NewFromFloat(s.cfg.EVMOverheadUSD))

	net := revenue.Sub(cost).Sub(overhead)
	netUSD, _ := net.Float64()
	costUSD, _ := cost.Float64()
	revenueUSD, _ := revenue.Float64()
	overheadUSD, _ := overhead.Float64()

	netPct := 0.0
	if cost.Sign() > 0 {
		netPct, _ = net.Div(cost).Mul(decimal.NewFromInt(100)).Float64()
	}

	if netUSD < s.cfg.MinNetUSD {
		return nil, &domain.SimulationRejectedError{
			Reason: fmt.Sprintf("overhead now exceeds spread: net %.4f below floor %.4f USD", netUSD, s.cfg.MinNetUSD),
			NetUSD: netUSD,
		}
	}
	if netPct < s.cfg.MinNetPct {
		return nil, &domain.SimulationRejectedError{
			Reason: fmt.Sprintf("relative edge %.4f%% below floor %.4f%%", netPct, s.cfg.MinNetPct),
			NetUSD: netUSD,
		}
	}

	s.logger.Info("simulation accepted",
		slog.String("opportunity", opp.ID),
		slog.String("direction", string(opp.Direction)),
		slog.Float64("cost_usd", costUSD),
		slog.Float64("revenue_usd", revenueUSD),
		slog.Float64("net_usd", netUSD),
	)

	return &domain.TradePlan{
		OpportunityID: opp.ID,
		Direction:     opp.Direction,
		Buy: domain.Leg{
			Venue:           buySnap.Venue,
			Side:            domain.SideBuy,
			AmountBase:      buySize,
			ExpectedCounter: buyRes.CounterAmount,
			MinCounter:      widen(buyRes.CounterAmount, s.cfg.SlippageBps),
			FeeQuote:        buyRes.Fee,
		},
		Sell: domain.Leg{
			Venue:           sellSnap.Venue,
			Side:            domain.SideSell,
			AmountBase:      sellSize,
			ExpectedCounter: sellRes.CounterAmount,
			MinCounter:      shrink(sellRes.CounterAmount, s.cfg.SlippageBps),
			FeeQuote:        sellRes.Fee,
		},
		CostUSD:     costUSD,
		RevenueUSD:  revenueUSD,
		OverheadUSD: overheadUSD,
		NetUSD:      netUSD,
		SimulatedAt: s.now(),
	}, nil
}

// widen raises an expected amount by the slippage bound: the most quote the
// executor may pay on the buy leg.
func widen(amount *big.Int, bps int64) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(10_000+bps))
	return out.Quo(out, big.NewInt(10_000))
}

// shrink lowers an expected amount by the slippage bound: the least quote the
// executor will accept on the sell leg.
func shrink(amount *big.Int, bps int64) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(10_000-bps))
	return out.Quo(out, big.NewInt(10_000))
}
