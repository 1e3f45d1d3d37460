package amm

import (
	"errors"
	"math/big"
	"testing"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

func bcReserves(vb, vq, rb, rq int64) *domain.BondingCurveReserves {
	return &domain.BondingCurveReserves{
		VirtualBase:  big.NewInt(vb),
		VirtualQuote: big.NewInt(vq),
		RealBase:     big.NewInt(rb),
		RealQuote:    big.NewInt(rq),
	}
}

func TestBondingCurveSpotPrice(t *testing.T) {
	m := NewBondingCurve(100)
	r := bcReserves(1_000_000, 2_000_000, 800_000, 0)

	p, err := m.SpotPrice(r)
	if err != nil {
		t.Fatalf("SpotPrice: %v", err)
	}
	want := big.NewRat(2, 1)
	if p.Cmp(want) != 0 {
		t.Fatalf("spot price got=%s want=%s", p, want)
	}
}

func TestBondingCurveBuy(t *testing.T) {
	m := NewBondingCurve(100) // 1%
	r := bcReserves(1_000_000, 2_000_000, 800_000, 0)

	res, err := m.ApplyTrade(r, big.NewInt(100_000), domain.SideBuy)
	if err != nil {
		t.Fatalf("ApplyTrade buy: %v", err)
	}

	// k = 2e12; newVB = 900000; newVQ = ceil(2e12/900000) = 2222223.
	out := res.Reserves.(*domain.BondingCurveReserves)
	if got, want := out.VirtualBase.Int64(), int64(900_000); got != want {
		t.Fatalf("newVirtualBase got=%d want=%d", got, want)
	}
	if got, want := out.VirtualQuote.Int64(), int64(2_222_223); got != want {
		t.Fatalf("newVirtualQuote got=%d want=%d", got, want)
	}

	// quoteIn = 222223, fee = ceil(1%) = 2223, paid = 224446.
	if got, want := res.Fee.Int64(), int64(2_223); got != want {
		t.Fatalf("fee got=%d want=%d", got, want)
	}
	if got, want := res.CounterAmount.Int64(), int64(224_446); got != want {
		t.Fatalf("quote paid got=%d want=%d", got, want)
	}

	// Real reserves move by the trade, not the fee.
	if got, want := out.RealBase.Int64(), int64(700_000); got != want {
		t.Fatalf("realBase got=%d want=%d", got, want)
	}
	if got, want := out.RealQuote.Int64(), int64(222_223); got != want {
		t.Fatalf("realQuote got=%d want=%d", got, want)
	}

	// Input reserves untouched.
	if r.VirtualBase.Int64() != 1_000_000 || r.RealBase.Int64() != 800_000 {
		t.Fatalf("input reserves mutated: %s", r)
	}
}

func TestBondingCurveBuyInvariantNeverDrops(t *testing.T) {
	m := NewBondingCurve(0)
	r := bcReserves(999_983, 1_000_019, 999_983, 0)
	k := new(big.Int).Mul(r.VirtualBase, r.VirtualQuote)

	for _, size := range []int64{1, 7, 999, 123_457, 499_991} {
		res, err := m.ApplyTrade(r, big.NewInt(size), domain.SideBuy)
		if err != nil {
			t.Fatalf("size=%d: %v", size, err)
		}
		out := res.Reserves.(*domain.BondingCurveReserves)
		k2 := new(big.Int).Mul(out.VirtualBase, out.VirtualQuote)
		if k2.Cmp(k) < 0 {
			t.Fatalf("size=%d: invariant dropped: k=%s k'=%s", size, k, k2)
		}
	}
}

func TestBondingCurveInsufficientLiquidity(t *testing.T) {
	m := NewBondingCurve(100)

	// Buy capped by real base even when virtual base is deeper.
	r := bcReserves(1_000_000, 2_000_000, 50_000, 0)
	if _, err := m.ApplyTrade(r, big.NewInt(50_000), domain.SideBuy); !errors.Is(err, domain.ErrInsufficientLiquidity) {
		t.Fatalf("buy at realBase: got err=%v want ErrInsufficientLiquidity", err)
	}
	if _, err := m.ApplyTrade(r, big.NewInt(49_999), domain.SideBuy); err != nil {
		t.Fatalf("buy below realBase: %v", err)
	}

	// Sell capped by real quote.
	r = bcReserves(1_000_000, 2_000_000, 800_000, 1_000)
	if _, err := m.ApplyTrade(r, big.NewInt(500_000), domain.SideSell); !errors.Is(err, domain.ErrInsufficientLiquidity) {
		t.Fatalf("sell past realQuote: got err=%v want ErrInsufficientLiquidity", err)
	}
}

func TestBondingCurveSell(t *testing.T) {
	m := NewBondingCurve(100)
	r := bcReserves(900_000, 2_222_223, 700_000, 500_000)

	res, err := m.ApplyTrade(r, big.NewInt(100_000), domain.SideSell)
	if err != nil {
		t.Fatalf("ApplyTrade sell: %v", err)
	}
	out := res.Reserves.(*domain.BondingCurveReserves)

	// k = 900000*2222223; newVB = 1000000; newVQ = ceil(k/1e6) = 2000001.
	if got, want := out.VirtualQuote.Int64(), int64(2_000_001); got != want {
		t.Fatalf("newVirtualQuote got=%d want=%d", got, want)
	}
	quoteOut := int64(2_222_223 - 2_000_001) // 222222
	fee := int64(2_223)                      // ceil(1%)
	if got, want := res.CounterAmount.Int64(), quoteOut-fee; got != want {
		t.Fatalf("net quote got=%d want=%d", got, want)
	}
	if got, want := out.RealBase.Int64(), int64(800_000); got != want {
		t.Fatalf("realBase got=%d want=%d", got, want)
	}
}

func TestBondingCurveBuyMonotonicPrice(t *testing.T) {
	m := NewBondingCurve(50)
	r := bcReserves(10_000_000, 30_000_000, 8_000_000, 0)

	prev, err := m.SpotPrice(r)
	if err != nil {
		t.Fatalf("SpotPrice: %v", err)
	}
	for _, size := range []int64{100_000, 500_000, 1_000_000, 4_000_000} {
		res, err := m.ApplyTrade(r, big.NewInt(size), domain.SideBuy)
		if err != nil {
			t.Fatalf("size=%d: %v", size, err)
		}
		p, err := m.SpotPrice(res.Reserves)
		if err != nil {
			t.Fatalf("post SpotPrice: %v", err)
		}
		if p.Cmp(prev) <= 0 {
			t.Fatalf("size=%d: buy did not raise price: prev=%s now=%s", size, prev, p)
		}
		prev = p
	}
}

func TestBondingCurveRoundTripLosesAtLeastFees(t *testing.T) {
	m := NewBondingCurve(100)
	r := bcReserves(10_000_000, 30_000_000, 8_000_000, 10_000_000)
	size := big.NewInt(1_000_000)

	buy, err := m.ApplyTrade(r, size, domain.SideBuy)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	sell, err := m.ApplyTrade(buy.Reserves, size, domain.SideSell)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}

	loss := new(big.Int).Sub(buy.CounterAmount, sell.CounterAmount)
	fees := new(big.Int).Add(buy.Fee, sell.Fee)
	if loss.Cmp(fees) < 0 {
		t.Fatalf("round trip loss %s below fee total %s", loss, fees)
	}
}

func TestBondingCurveRejectsBadInput(t *testing.T) {
	m := NewBondingCurve(100)
	r := bcReserves(1_000_000, 2_000_000, 800_000, 0)

	if _, err := m.ApplyTrade(r, big.NewInt(0), domain.SideBuy); err == nil {
		t.Fatal("zero size accepted")
	}
	if _, err := m.ApplyTrade(r, big.NewInt(-5), domain.SideSell); err == nil {
		t.Fatal("negative size accepted")
	}
	if _, err := m.ApplyTrade(&domain.ConstantProductReserves{
		ReserveBase:  big.NewInt(1),
		ReserveQuote: big.NewInt(1),
	}, big.NewInt(1), domain.SideBuy); err == nil {
		t.Fatal("wrong reserve type accepted")
	}
}
