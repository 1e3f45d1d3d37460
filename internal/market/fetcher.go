// Package market assembles coherent snapshots of both venues. A snapshot is
// all-or-nothing: reserves from each venue and the USD reference price are
// fetched concurrently, and any failure aborts the whole snapshot rather than
// letting the analyzer price one fresh side against one stale side.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// VenueSpec is the static metadata of one venue: everything about it that does
// not change between snapshots.
type VenueSpec struct {
	Kind          domain.VenueKind
	BaseDecimals  uint8
	QuoteDecimals uint8
	FeeBps        int64
}

// Fetcher builds MarketSnapshots from the two chain clients and the price
// oracle.
type Fetcher struct {
	solana     domain.ChainClient
	evm        domain.ChainClient
	solanaSpec VenueSpec
	evmSpec    VenueSpec
	oracle     domain.PriceOracle
	logger     *slog.Logger
	now        func() time.Time
}

// NewFetcher creates a Fetcher.
func NewFetcher(
	solana domain.ChainClient, solanaSpec VenueSpec,
	evm domain.ChainClient, evmSpec VenueSpec,
	oracle domain.PriceOracle,
	logger *slog.Logger,
) *Fetcher {
	return &Fetcher{
		solana:     solana,
		evm:        evm,
		solanaSpec: solanaSpec,
		evmSpec:    evmSpec,
		oracle:     oracle,
		logger:     logger.With(slog.String("component", "market")),
		now:        time.Now,
	}
}

// Fetch reads both venues and the reference price concurrently. Every error
// wraps domain.ErrDataFetch so callers can classify the cycle abort with a
// single errors.Is.
func (f *Fetcher) Fetch(ctx context.Context) (domain.MarketSnapshot, error) {
	var (
		solReserves domain.Reserves
		evmReserves domain.Reserves
		quoteUSD    float64
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := f.solana.GetReserves(ctx)
		if err != nil {
			return fmt.Errorf("solana reserves: %w", err)
		}
		solReserves = r
		return nil
	})
	g.Go(func() error {
		r, err := f.evm.GetReserves(ctx)
		if err != nil {
			return fmt.Errorf("evm reserves: %w", err)
		}
		evmReserves = r
		return nil
	})
	g.Go(func() error {
		p, err := f.oracle.QuoteUSD(ctx)
		if err != nil {
			return fmt.Errorf("reference price: %w", err)
		}
		quoteUSD = p
		return nil
	})

	if err := g.Wait(); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("market: %w: %w", domain.ErrDataFetch, err)
	}

	taken := f.now()
	snap := domain.MarketSnapshot{
		Solana: domain.VenueSnapshot{
			Venue:         domain.VenueSolana,
			Kind:          f.solanaSpec.Kind,
			Reserves:      solReserves,
			BaseDecimals:  f.solanaSpec.BaseDecimals,
			QuoteDecimals: f.solanaSpec.QuoteDecimals,
			FeeBps:        f.solanaSpec.FeeBps,
			FetchedAt:     taken,
		},
		EVM: domain.VenueSnapshot{
			Venue:         domain.VenueEVM,
			Kind:          f.evmSpec.Kind,
			Reserves:      evmReserves,
			BaseDecimals:  f.evmSpec.BaseDecimals,
			QuoteDecimals: f.evmSpec.QuoteDecimals,
			FeeBps:        f.evmSpec.FeeBps,
			FetchedAt:     taken,
		},
		QuoteUSD: quoteUSD,
		TakenAt:  taken,
	}

	f.logger.Debug("snapshot taken", slog.Float64("quote_usd", quoteUSD))
	return snap, nil
}
