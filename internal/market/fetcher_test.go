package market

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeChain struct {
	venue    domain.VenueID
	reserves domain.Reserves
	err      error
}

func (c *fakeChain) VenueID() domain.VenueID { return c.venue }

func (c *fakeChain) GetReserves(_ context.Context) (domain.Reserves, error) {
	return c.reserves, c.err
}

func (c *fakeChain) EstimateTrade(_ context.Context, _ domain.Side, _ *big.Int) (domain.TradeEstimate, error) {
	return domain.TradeEstimate{}, errors.New("not used")
}

func (c *fakeChain) Submit(_ context.Context, _ domain.Side, _, _ *big.Int, _ time.Time) (domain.TradeReceipt, error) {
	return domain.TradeReceipt{}, errors.New("not used")
}

func (c *fakeChain) BaseBalance(_ context.Context) (*big.Int, error)  { return big.NewInt(0), nil }
func (c *fakeChain) QuoteBalance(_ context.Context) (*big.Int, error) { return big.NewInt(0), nil }

type fixedOracle struct {
	price float64
	err   error
}

func (o *fixedOracle) QuoteUSD(_ context.Context) (float64, error) { return o.price, o.err }

func healthyFetcher(oracle domain.PriceOracle) *Fetcher {
	sol := &fakeChain{
		venue: domain.VenueSolana,
		reserves: &domain.BondingCurveReserves{
			VirtualBase:  big.NewInt(1_000_000_000),
			VirtualQuote: big.NewInt(30_000_000),
			RealBase:     big.NewInt(800_000_000),
			RealQuote:    big.NewInt(30_000_000),
		},
	}
	evm := &fakeChain{
		venue: domain.VenueEVM,
		reserves: &domain.ConstantProductReserves{
			ReserveBase:  big.NewInt(1_000_000_000),
			ReserveQuote: big.NewInt(31_000_000),
		},
	}
	return NewFetcher(
		sol, VenueSpec{Kind: domain.KindBondingCurve, BaseDecimals: 6, QuoteDecimals: 9, FeeBps: 30},
		evm, VenueSpec{Kind: domain.KindConstantProduct, BaseDecimals: 18, QuoteDecimals: 18, FeeBps: 30},
		oracle,
		testLogger(),
	)
}

func TestFetchAssemblesCoherentSnapshot(t *testing.T) {
	f := healthyFetcher(&fixedOracle{price: 150})

	snap, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if snap.QuoteUSD != 150 {
		t.Fatalf("quote usd got=%v want=150", snap.QuoteUSD)
	}
	if snap.Solana.Kind != domain.KindBondingCurve || snap.EVM.Kind != domain.KindConstantProduct {
		t.Fatalf("venue kinds wrong: %s / %s", snap.Solana.Kind, snap.EVM.Kind)
	}
	if snap.Solana.FetchedAt != snap.EVM.FetchedAt || snap.TakenAt != snap.Solana.FetchedAt {
		t.Fatal("snapshot sides must share one timestamp")
	}
	if snap.Solana.Reserves == nil || snap.EVM.Reserves == nil {
		t.Fatal("reserves missing")
	}
}

func TestFetchVenueFailureAbortsSnapshot(t *testing.T) {
	f := healthyFetcher(&fixedOracle{price: 150})
	f.evm.(*fakeChain).err = domain.ErrNetwork

	if _, err := f.Fetch(context.Background()); !errors.Is(err, domain.ErrDataFetch) {
		t.Fatalf("got err=%v want ErrDataFetch", err)
	}
}

func TestFetchOracleFailureAbortsSnapshot(t *testing.T) {
	f := healthyFetcher(&fixedOracle{err: errors.New("provider down")})

	if _, err := f.Fetch(context.Background()); !errors.Is(err, domain.ErrDataFetch) {
		t.Fatalf("got err=%v want ErrDataFetch", err)
	}
}

type memPriceCache struct {
	mu    sync.Mutex
	price float64
	ts    time.Time
	set   bool
}

func (c *memPriceCache) SetQuoteUSD(_ context.Context, price float64, ts time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.price, c.ts, c.set = price, ts, true
	return nil
}

func (c *memPriceCache) GetQuoteUSD(_ context.Context) (float64, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.set {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return c.price, c.ts, nil
}

func TestOracleCachesWithinTTL(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.Write([]byte(`{"solana":{"usd":151.5}}`))
	}))
	defer srv.Close()

	o := NewHTTPOracle(OracleConfig{URL: srv.URL, TTL: time.Minute}, nil, testLogger())

	for i := 0; i < 3; i++ {
		price, err := o.QuoteUSD(context.Background())
		if err != nil {
			t.Fatalf("QuoteUSD: %v", err)
		}
		if price != 151.5 {
			t.Fatalf("price got=%v want=151.5", price)
		}
	}
	if hits != 1 {
		t.Fatalf("endpoint hits got=%d want=1", hits)
	}
}

func TestOracleWritesSharedCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"solana":{"usd":149.0}}`))
	}))
	defer srv.Close()

	cache := &memPriceCache{}
	o := NewHTTPOracle(OracleConfig{URL: srv.URL, TTL: time.Minute}, cache, testLogger())

	if _, err := o.QuoteUSD(context.Background()); err != nil {
		t.Fatalf("QuoteUSD: %v", err)
	}
	if got, _, err := cache.GetQuoteUSD(context.Background()); err != nil || got != 149.0 {
		t.Fatalf("shared cache got=%v err=%v want 149.0", got, err)
	}
}

func TestOracleFallsBackToSharedCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cache := &memPriceCache{}
	cache.SetQuoteUSD(context.Background(), 148.2, time.Now().Add(-time.Minute))

	o := NewHTTPOracle(OracleConfig{URL: srv.URL, TTL: time.Second, StaleBound: 10 * time.Minute}, cache, testLogger())
	price, err := o.QuoteUSD(context.Background())
	if err != nil {
		t.Fatalf("QuoteUSD: %v", err)
	}
	if price != 148.2 {
		t.Fatalf("price got=%v want cached 148.2", price)
	}
}

func TestOracleErrorsWhenCacheTooStale(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cache := &memPriceCache{}
	cache.SetQuoteUSD(context.Background(), 148.2, time.Now().Add(-time.Hour))

	o := NewHTTPOracle(OracleConfig{URL: srv.URL, TTL: time.Second, StaleBound: time.Minute}, cache, testLogger())
	if _, err := o.QuoteUSD(context.Background()); !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("got err=%v want ErrNetwork", err)
	}
}
