package simulator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

type staticFetcher struct {
	snap domain.MarketSnapshot
	err  error
}

func (f *staticFetcher) Fetch(_ context.Context) (domain.MarketSnapshot, error) {
	return f.snap, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("bad big.Int literal %q", s)
	}
	return v
}

func gapSnapshot(t *testing.T, evmQuoteWei string) domain.MarketSnapshot {
	t.Helper()
	return domain.MarketSnapshot{
		Solana: domain.VenueSnapshot{
			Venue: domain.VenueSolana,
			Kind:  domain.KindBondingCurve,
			Reserves: &domain.BondingCurveReserves{
				VirtualBase:  mustBig(t, "1000000000000000"),
				VirtualQuote: mustBig(t, "30000000000"),
				RealBase:     mustBig(t, "800000000000000"),
				RealQuote:    mustBig(t, "30000000000"),
			},
			BaseDecimals:  6,
			QuoteDecimals: 9,
			FeeBps:        30,
		},
		EVM: domain.VenueSnapshot{
			Venue: domain.VenueEVM,
			Kind:  domain.KindConstantProduct,
			Reserves: &domain.ConstantProductReserves{
				ReserveBase:  mustBig(t, "1000000000000000000000000000"),
				ReserveQuote: mustBig(t, evmQuoteWei),
			},
			BaseDecimals:  18,
			QuoteDecimals: 18,
			FeeBps:        30,
		},
		QuoteUSD: 150,
		TakenAt:  time.Now(),
	}
}

// opportunity buys 5e6 whole tokens on the Solana curve, sells on the EVM pool.
func testOpportunity() *domain.Opportunity {
	size, _ := new(big.Int).SetString("5000000000000000000000000", 10) // 5e6 tokens @ 18 dec
	return &domain.Opportunity{
		ID:                "opp-1",
		Direction:         domain.DirectionBuySolSellEVM,
		EquilibriumSize:   size,
		CanonicalDecimals: 18,
		SnapshotAt:        time.Now(),
	}
}

func TestSimulateProducesSlippageBoundedPlan(t *testing.T) {
	// ~5% gap still present at re-fetch time.
	fetcher := &staticFetcher{snap: gapSnapshot(t, "31500000000000000000")}
	sim := New(Config{
		MinNetUSD:      0.1,
		MinNetPct:      0.1,
		SlippageBps:    100,
		FreshnessBound: 5 * time.Second,
	}, fetcher, testLogger())

	plan, err := sim.Simulate(context.Background(), testOpportunity())
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}

	if plan.Buy.Venue != domain.VenueSolana || plan.Sell.Venue != domain.VenueEVM {
		t.Fatalf("legs on wrong venues: buy=%s sell=%s", plan.Buy.Venue, plan.Sell.Venue)
	}
	if plan.NetUSD <= 0 {
		t.Fatalf("net got=%v want > 0", plan.NetUSD)
	}

	// Buy bound is a ceiling (pay at most), sell bound a floor (receive at least).
	if plan.Buy.MinCounter.Cmp(plan.Buy.ExpectedCounter) <= 0 {
		t.Fatalf("buy bound %s not above expected %s", plan.Buy.MinCounter, plan.Buy.ExpectedCounter)
	}
	if plan.Sell.MinCounter.Cmp(plan.Sell.ExpectedCounter) >= 0 {
		t.Fatalf("sell bound %s not below expected %s", plan.Sell.MinCounter, plan.Sell.ExpectedCounter)
	}

	// Sizes are venue-native: 5e6 tokens is 5e12 at 6 decimals.
	if got, want := plan.Buy.AmountBase.String(), "5000000000000"; got != want {
		t.Fatalf("buy size got=%s want=%s", got, want)
	}
}

func TestSimulateRejectsWhenSpreadGone(t *testing.T) {
	// Fresh fetch shows the gap collapsed to zero; fees and overhead now
	// exceed the spread.
	fetcher := &staticFetcher{snap: gapSnapshot(t, "30000000000000000000")}
	sim := New(Config{
		MinNetUSD:      0.1,
		MinNetPct:      0.1,
		SlippageBps:    100,
		FreshnessBound: 5 * time.Second,
	}, fetcher, testLogger())

	_, err := sim.Simulate(context.Background(), testOpportunity())
	var rej *domain.SimulationRejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("got err=%v want SimulationRejectedError", err)
	}
	if rej.NetUSD >= 0.1 {
		t.Fatalf("rejected net got=%v want < floor", rej.NetUSD)
	}
}

func TestSimulateOverheadGate(t *testing.T) {
	fetcher := &staticFetcher{snap: gapSnapshot(t, "31500000000000000000")}
	sim := New(Config{
		MinNetUSD:      0.1,
		MinNetPct:      0.1,
		SlippageBps:    100,
		FreshnessBound: 5 * time.Second,
		EVMOverheadUSD: 10_000, // absurd gas estimate swamps any edge
	}, fetcher, testLogger())

	_, err := sim.Simulate(context.Background(), testOpportunity())
	var rej *domain.SimulationRejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("got err=%v want SimulationRejectedError", err)
	}
}

func TestSimulateStaleOpportunity(t *testing.T) {
	fetcher := &staticFetcher{snap: gapSnapshot(t, "31500000000000000000")}
	sim := New(Config{FreshnessBound: time.Second}, fetcher, testLogger())

	opp := testOpportunity()
	opp.SnapshotAt = time.Now().Add(-10 * time.Second)

	if _, err := sim.Simulate(context.Background(), opp); !errors.Is(err, domain.ErrStaleOpportunity) {
		t.Fatalf("got err=%v want ErrStaleOpportunity", err)
	}
}

func TestSimulateFetchFailureAbortsCycle(t *testing.T) {
	fetcher := &staticFetcher{err: domain.ErrDataFetch}
	sim := New(Config{FreshnessBound: time.Minute}, fetcher, testLogger())

	if _, err := sim.Simulate(context.Background(), testOpportunity()); !errors.Is(err, domain.ErrDataFetch) {
		t.Fatalf("got err=%v want ErrDataFetch", err)
	}
}
