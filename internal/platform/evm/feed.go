package evm

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// swapTopic is the UniswapV2 Swap event signature.
var swapTopic = crypto.Keccak256Hash(
	[]byte("Swap(address,uint256,uint256,uint256,uint256,address)"),
)

// Feed streams the pair's Swap events as trade events. It needs a websocket
// RPC endpoint; the coordinator restarts it with backoff when the
// subscription drops.
type Feed struct {
	wsURL        string
	pair         common.Address
	baseIsToken0 bool
	logger       *slog.Logger
}

var _ domain.EventFeed = (*Feed)(nil)

// NewFeed creates a Feed over the pair's Swap log stream.
func NewFeed(wsURL string, pair string, baseIsToken0 bool, logger *slog.Logger) *Feed {
	return &Feed{
		wsURL:        wsURL,
		pair:         common.HexToAddress(pair),
		baseIsToken0: baseIsToken0,
		logger:       logger.With(slog.String("component", "evm_feed")),
	}
}

func (f *Feed) VenueID() domain.VenueID { return domain.VenueEVM }

// Run subscribes and forwards decoded swaps until the context ends or the
// subscription fails.
func (f *Feed) Run(ctx context.Context, out chan<- domain.TradeEvent) error {
	eth, err := ethclient.DialContext(ctx, f.wsURL)
	if err != nil {
		return fmt.Errorf("evm feed: dial %s: %w: %w", f.wsURL, domain.ErrNetwork, err)
	}
	defer eth.Close()

	logs := make(chan types.Log, 64)
	sub, err := eth.SubscribeFilterLogs(ctx, ethereum.FilterQuery{
		Addresses: []common.Address{f.pair},
		Topics:    [][]common.Hash{{swapTopic}},
	}, logs)
	if err != nil {
		return fmt.Errorf("evm feed: subscribe: %w: %w", domain.ErrNetwork, err)
	}
	defer sub.Unsubscribe()

	f.logger.Info("subscribed", slog.String("pair", f.pair.Hex()))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("evm feed: subscription: %w: %w", domain.ErrNetwork, err)
		case lg := <-logs:
			ev, ok := f.decode(lg)
			if !ok {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// decode turns a Swap log into a TradeEvent. The event data is four uint256
// words: amount0In, amount1In, amount0Out, amount1Out.
func (f *Feed) decode(lg types.Log) (domain.TradeEvent, bool) {
	if len(lg.Data) != 128 {
		f.logger.Debug("malformed swap log", slog.String("tx", lg.TxHash.Hex()))
		return domain.TradeEvent{}, false
	}
	amount0In := new(big.Int).SetBytes(lg.Data[0:32])
	amount1In := new(big.Int).SetBytes(lg.Data[32:64])
	amount0Out := new(big.Int).SetBytes(lg.Data[64:96])
	amount1Out := new(big.Int).SetBytes(lg.Data[96:128])

	baseIn, quoteIn := amount0In, amount1In
	baseOut, quoteOut := amount0Out, amount1Out
	if !f.baseIsToken0 {
		baseIn, quoteIn = amount1In, amount0In
		baseOut, quoteOut = amount1Out, amount0Out
	}

	ev := domain.TradeEvent{
		Venue:      domain.VenueEVM,
		TxID:       lg.TxHash.Hex(),
		ObservedAt: time.Now(),
	}
	switch {
	case baseOut.Sign() > 0: // pool paid out base: someone bought
		ev.Side = domain.SideBuy
		ev.BaseAmount = baseOut
		ev.QuoteAmount = quoteIn
	case baseIn.Sign() > 0: // pool took in base: someone sold
		ev.Side = domain.SideSell
		ev.BaseAmount = baseIn
		ev.QuoteAmount = quoteOut
	default:
		return domain.TradeEvent{}, false
	}
	return ev, true
}
