// Package evm is the constant-product venue adapter: a UniswapV2-style pair
// traded through its router on an EVM chain.
package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Minimal ABI fragments for the pair, the router, and ERC20 balances.
const (
	pairABIJSON = `[
		{"name":"getReserves","type":"function","stateMutability":"view","inputs":[],"outputs":[
			{"name":"reserve0","type":"uint112"},
			{"name":"reserve1","type":"uint112"},
			{"name":"blockTimestampLast","type":"uint32"}]}
	]`
	routerABIJSON = `[
		{"name":"getAmountsOut","type":"function","stateMutability":"view",
			"inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],
			"outputs":[{"name":"amounts","type":"uint256[]"}]},
		{"name":"getAmountsIn","type":"function","stateMutability":"view",
			"inputs":[{"name":"amountOut","type":"uint256"},{"name":"path","type":"address[]"}],
			"outputs":[{"name":"amounts","type":"uint256[]"}]},
		{"name":"swapExactTokensForTokens","type":"function","stateMutability":"nonpayable",
			"inputs":[
				{"name":"amountIn","type":"uint256"},
				{"name":"amountOutMin","type":"uint256"},
				{"name":"path","type":"address[]"},
				{"name":"to","type":"address"},
				{"name":"deadline","type":"uint256"}],
			"outputs":[{"name":"amounts","type":"uint256[]"}]},
		{"name":"swapTokensForExactTokens","type":"function","stateMutability":"nonpayable",
			"inputs":[
				{"name":"amountOut","type":"uint256"},
				{"name":"amountInMax","type":"uint256"},
				{"name":"path","type":"address[]"},
				{"name":"to","type":"address"},
				{"name":"deadline","type":"uint256"}],
			"outputs":[{"name":"amounts","type":"uint256[]"}]}
	]`
	erc20ABIJSON = `[
		{"name":"balanceOf","type":"function","stateMutability":"view",
			"inputs":[{"name":"owner","type":"address"}],
			"outputs":[{"name":"balance","type":"uint256"}]}
	]`
)

// Config identifies the pair and how to trade it.
type Config struct {
	RPCURL string
	// Pair is the liquidity pool contract; Router is the swap entrypoint.
	Pair   string
	Router string
	// BaseToken and QuoteToken are the ERC20 addresses; BaseIsToken0 maps the
	// pair's reserve ordering onto base/quote.
	BaseToken    string
	QuoteToken   string
	BaseIsToken0 bool
	// GasLimit for swap transactions.
	GasLimit uint64
	// ConfirmAttempts x ConfirmInterval bounds the receipt poll.
	ConfirmAttempts int
	ConfirmInterval time.Duration
}

// Client implements domain.ChainClient for the EVM venue.
type Client struct {
	cfg    Config
	eth    *ethclient.Client
	key    *ecdsa.PrivateKey
	from   common.Address
	chain  *big.Int
	pair   common.Address
	router common.Address
	base   common.Address
	quote  common.Address

	pairABI   abi.ABI
	routerABI abi.ABI
	erc20ABI  abi.ABI

	logger *slog.Logger
}

var _ domain.ChainClient = (*Client)(nil)

// NewClient dials the RPC endpoint and prepares the signer.
func NewClient(ctx context.Context, cfg Config, key *ecdsa.PrivateKey, logger *slog.Logger) (*Client, error) {
	if cfg.GasLimit == 0 {
		cfg.GasLimit = 300_000
	}
	if cfg.ConfirmAttempts <= 0 {
		cfg.ConfirmAttempts = 40
	}
	if cfg.ConfirmInterval <= 0 {
		cfg.ConfirmInterval = 3 * time.Second
	}

	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("evm: dial %s: %w", cfg.RPCURL, err)
	}
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("evm: chain id: %w", err)
	}

	pairABI, err := abi.JSON(strings.NewReader(pairABIJSON))
	if err != nil {
		return nil, fmt.Errorf("evm: pair abi: %w", err)
	}
	routerABI, err := abi.JSON(strings.NewReader(routerABIJSON))
	if err != nil {
		return nil, fmt.Errorf("evm: router abi: %w", err)
	}
	erc20ABI, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("evm: erc20 abi: %w", err)
	}

	// A nil key gives a read-only client: reserves and estimates work,
	// Submit refuses.
	var from common.Address
	if key != nil {
		from = crypto.PubkeyToAddress(key.PublicKey)
	}

	c := &Client{
		cfg:       cfg,
		eth:       eth,
		key:       key,
		from:      from,
		chain:     chainID,
		pair:      common.HexToAddress(cfg.Pair),
		router:    common.HexToAddress(cfg.Router),
		base:      common.HexToAddress(cfg.BaseToken),
		quote:     common.HexToAddress(cfg.QuoteToken),
		pairABI:   pairABI,
		routerABI: routerABI,
		erc20ABI:  erc20ABI,
		logger:    logger.With(slog.String("component", "evm_client")),
	}
	c.logger.Info("connected",
		slog.String("chain_id", chainID.String()),
		slog.String("pair", cfg.Pair),
		slog.String("wallet", c.from.Hex()),
	)
	return c, nil
}

// Close releases the RPC connection.
func (c *Client) Close() error {
	c.eth.Close()
	return nil
}

func (c *Client) VenueID() domain.VenueID { return domain.VenueEVM }

// GetReserves reads the pair's reserves and orients them base/quote.
func (c *Client) GetReserves(ctx context.Context) (domain.Reserves, error) {
	out, err := c.call(ctx, c.pair, c.pairABI, "getReserves")
	if err != nil {
		return nil, fmt.Errorf("evm: get reserves: %w: %w", domain.ErrNetwork, err)
	}
	reserve0, ok0 := out[0].(*big.Int)
	reserve1, ok1 := out[1].(*big.Int)
	if !ok0 || !ok1 {
		return nil, fmt.Errorf("evm: get reserves: unexpected return types")
	}
	r := &domain.ConstantProductReserves{ReserveBase: reserve0, ReserveQuote: reserve1}
	if !c.cfg.BaseIsToken0 {
		r.ReserveBase, r.ReserveQuote = reserve1, reserve0
	}
	return r, nil
}

// EstimateTrade asks the router what the trade would move right now. A revert
// on the view call is reported as WillRevert rather than an error so the
// executor can fail the plan cleanly.
func (c *Client) EstimateTrade(ctx context.Context, side domain.Side, amountBase *big.Int) (domain.TradeEstimate, error) {
	var (
		out []interface{}
		err error
	)
	switch side {
	case domain.SideBuy:
		out, err = c.call(ctx, c.router, c.routerABI, "getAmountsIn", amountBase, c.path(domain.SideBuy))
	case domain.SideSell:
		out, err = c.call(ctx, c.router, c.routerABI, "getAmountsOut", amountBase, c.path(domain.SideSell))
	default:
		return domain.TradeEstimate{}, fmt.Errorf("evm: unknown side %q", side)
	}
	if err != nil {
		if isRevert(err) {
			return domain.TradeEstimate{WillRevert: true}, nil
		}
		return domain.TradeEstimate{}, fmt.Errorf("evm: estimate: %w: %w", domain.ErrNetwork, err)
	}

	amounts, ok := out[0].([]*big.Int)
	if !ok || len(amounts) < 2 {
		return domain.TradeEstimate{}, fmt.Errorf("evm: estimate: unexpected amounts shape")
	}
	// getAmountsIn returns [quoteIn, baseOut]; getAmountsOut [baseIn, quoteOut].
	counter := amounts[0]
	if side == domain.SideSell {
		counter = amounts[len(amounts)-1]
	}

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		gasPrice = big.NewInt(0)
	}
	fee := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(c.cfg.GasLimit))
	return domain.TradeEstimate{CounterAmount: counter, NetworkFee: fee}, nil
}

// Submit signs and sends the swap, then polls the receipt up to the confirm
// budget.
func (c *Client) Submit(ctx context.Context, side domain.Side, amountBase, minCounter *big.Int, deadline time.Time) (domain.TradeReceipt, error) {
	if c.key == nil {
		return domain.TradeReceipt{}, fmt.Errorf("evm: submit: no signing key configured")
	}
	var (
		input []byte
		err   error
	)
	deadlineArg := big.NewInt(deadline.Unix())
	switch side {
	case domain.SideBuy:
		// Exact base out, bounded quote in.
		input, err = c.routerABI.Pack("swapTokensForExactTokens",
			amountBase, minCounter, c.path(domain.SideBuy), c.from, deadlineArg)
	case domain.SideSell:
		// Exact base in, bounded quote out.
		input, err = c.routerABI.Pack("swapExactTokensForTokens",
			amountBase, minCounter, c.path(domain.SideSell), c.from, deadlineArg)
	default:
		return domain.TradeReceipt{}, fmt.Errorf("evm: unknown side %q", side)
	}
	if err != nil {
		return domain.TradeReceipt{}, fmt.Errorf("evm: pack swap: %w", err)
	}

	nonce, err := c.eth.PendingNonceAt(ctx, c.from)
	if err != nil {
		return domain.TradeReceipt{}, fmt.Errorf("evm: nonce: %w: %w", domain.ErrNetwork, err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return domain.TradeReceipt{}, fmt.Errorf("evm: gas price: %w: %w", domain.ErrNetwork, err)
	}

	tx := types.NewTransaction(nonce, c.router, big.NewInt(0), c.cfg.GasLimit, gasPrice, input)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chain), c.key)
	if err != nil {
		return domain.TradeReceipt{}, fmt.Errorf("evm: sign: %w", err)
	}

	submittedAt := time.Now()
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return domain.TradeReceipt{}, fmt.Errorf("evm: send: %w: %w", domain.ErrNetwork, err)
	}
	receipt := domain.TradeReceipt{TxID: signed.Hash().Hex(), SubmittedAt: submittedAt}
	c.logger.Info("swap submitted",
		slog.String("side", string(side)),
		slog.String("tx", receipt.TxID),
	)

	// Bounded confirmation poll. An exhausted budget returns the unconfirmed
	// receipt, not an error: the caller decides what an unknown tx means.
	for attempt := 0; attempt < c.cfg.ConfirmAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return receipt, ctx.Err()
		case <-time.After(c.cfg.ConfirmInterval):
		}
		rc, err := c.eth.TransactionReceipt(ctx, signed.Hash())
		if err != nil {
			continue // not mined yet
		}
		if rc.Status != types.ReceiptStatusSuccessful {
			return receipt, fmt.Errorf("evm: tx %s: %w", receipt.TxID, domain.ErrSimulationRevert)
		}
		receipt.Confirmed = true
		receipt.CounterAmount = minCounter
		return receipt, nil
	}
	return receipt, nil
}

// BaseBalance returns the wallet's base-token balance.
func (c *Client) BaseBalance(ctx context.Context) (*big.Int, error) {
	return c.balanceOf(ctx, c.base)
}

// QuoteBalance returns the wallet's quote-token balance.
func (c *Client) QuoteBalance(ctx context.Context) (*big.Int, error) {
	return c.balanceOf(ctx, c.quote)
}

func (c *Client) balanceOf(ctx context.Context, token common.Address) (*big.Int, error) {
	out, err := c.call(ctx, token, c.erc20ABI, "balanceOf", c.from)
	if err != nil {
		return nil, fmt.Errorf("evm: balance of %s: %w: %w", token.Hex(), domain.ErrNetwork, err)
	}
	bal, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("evm: balance of %s: unexpected return type", token.Hex())
	}
	return bal, nil
}

// path orders the swap path for the side: buys pay quote for base, sells the
// reverse.
func (c *Client) path(side domain.Side) []common.Address {
	if side == domain.SideBuy {
		return []common.Address{c.quote, c.base}
	}
	return []common.Address{c.base, c.quote}
}

func (c *Client) call(ctx context.Context, to common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	input, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return nil, err
	}
	out, err := contractABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty return", method)
	}
	return out, nil
}

func isRevert(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "revert")
}
