package evm

import (
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

func swapLog(t *testing.T, amount0In, amount1In, amount0Out, amount1Out int64) types.Log {
	t.Helper()
	data := make([]byte, 128)
	for i, v := range []int64{amount0In, amount1In, amount0Out, amount1Out} {
		big.NewInt(v).FillBytes(data[i*32 : (i+1)*32])
	}
	return types.Log{
		TxHash: common.HexToHash("0xabc123"),
		Data:   data,
	}
}

func TestDecodeSwapBuy(t *testing.T) {
	f := NewFeed("ws://unused", "0x0", true, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// Pool paid out 500 base (token0) for 40 quote in: a buy.
	ev, ok := f.decode(swapLog(t, 0, 40, 500, 0))
	if !ok {
		t.Fatal("decode failed")
	}
	if ev.Side != domain.SideBuy {
		t.Fatalf("side got=%s want=%s", ev.Side, domain.SideBuy)
	}
	if ev.BaseAmount.Int64() != 500 || ev.QuoteAmount.Int64() != 40 {
		t.Fatalf("amounts got base=%s quote=%s", ev.BaseAmount, ev.QuoteAmount)
	}
	if ev.TxID == "" {
		t.Fatal("tx id missing")
	}
}

func TestDecodeSwapSellWithBaseAsToken1(t *testing.T) {
	f := NewFeed("ws://unused", "0x0", false, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// token1 is base: pool took 500 base in, paid 38 quote (token0) out.
	ev, ok := f.decode(swapLog(t, 0, 500, 38, 0))
	if !ok {
		t.Fatal("decode failed")
	}
	if ev.Side != domain.SideSell {
		t.Fatalf("side got=%s want=%s", ev.Side, domain.SideSell)
	}
	if ev.BaseAmount.Int64() != 500 || ev.QuoteAmount.Int64() != 38 {
		t.Fatalf("amounts got base=%s quote=%s", ev.BaseAmount, ev.QuoteAmount)
	}
}

func TestDecodeMalformedLogSkipped(t *testing.T) {
	f := NewFeed("ws://unused", "0x0", true, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if _, ok := f.decode(types.Log{Data: []byte{1, 2, 3}}); ok {
		t.Fatal("short data must not decode")
	}
	// No movement on either side.
	if _, ok := f.decode(swapLog(t, 0, 0, 0, 0)); ok {
		t.Fatal("empty swap must not decode")
	}
}
