// Package solana is the bonding-curve venue adapter: a launchpad-style curve
// program holding virtual and real reserves in a single curve account.
package solana

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/alanyoungcy/crossarb/internal/amm"
	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Instruction discriminators of the curve program's buy and sell entrypoints.
var (
	buyDiscriminator  = [8]byte{102, 6, 61, 18, 1, 218, 235, 234}
	sellDiscriminator = [8]byte{51, 230, 133, 164, 1, 127, 131, 173}
)

// curveState is the on-chain curve account layout: an 8-byte discriminator
// followed by five little-endian u64 fields and a completion flag.
type curveState struct {
	Discriminator        [8]byte
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
}

// Config identifies the curve and how to trade it.
type Config struct {
	RPCURL string
	// Program is the curve program id; Curve is the pool state account.
	Program string
	Curve   string
	// BaseMint is the token mint; BaseTokenAccount the wallet's ATA for it.
	BaseMint         string
	BaseTokenAccount string
	// FeeBps is the curve's trade fee, used for local estimates.
	FeeBps int64
	// ConfirmAttempts x ConfirmInterval bounds the signature status poll.
	ConfirmAttempts int
	ConfirmInterval time.Duration
}

// Client implements domain.ChainClient for the bonding-curve venue.
type Client struct {
	cfg     Config
	rpc     *rpc.Client
	signer  solana.PrivateKey
	wallet  solana.PublicKey
	program solana.PublicKey
	curve   solana.PublicKey
	ata     solana.PublicKey
	model   amm.Model
	logger  *slog.Logger
}

var _ domain.ChainClient = (*Client)(nil)

// NewClient creates a Client for the configured curve.
func NewClient(cfg Config, signer solana.PrivateKey, logger *slog.Logger) (*Client, error) {
	if cfg.ConfirmAttempts <= 0 {
		cfg.ConfirmAttempts = 30
	}
	if cfg.ConfirmInterval <= 0 {
		cfg.ConfirmInterval = 2 * time.Second
	}

	program, err := solana.PublicKeyFromBase58(cfg.Program)
	if err != nil {
		return nil, fmt.Errorf("solana: program key: %w", err)
	}
	curve, err := solana.PublicKeyFromBase58(cfg.Curve)
	if err != nil {
		return nil, fmt.Errorf("solana: curve key: %w", err)
	}
	ata, err := solana.PublicKeyFromBase58(cfg.BaseTokenAccount)
	if err != nil {
		return nil, fmt.Errorf("solana: token account key: %w", err)
	}
	model, err := amm.ForKind(domain.KindBondingCurve, cfg.FeeBps)
	if err != nil {
		return nil, err
	}

	// A nil signer gives a read-only client: reserves and estimates work,
	// Submit refuses.
	var wallet solana.PublicKey
	if signer != nil {
		wallet = signer.PublicKey()
	}

	c := &Client{
		cfg:     cfg,
		rpc:     rpc.New(cfg.RPCURL),
		signer:  signer,
		wallet:  wallet,
		program: program,
		curve:   curve,
		ata:     ata,
		model:   model,
		logger:  logger.With(slog.String("component", "solana_client")),
	}
	c.logger.Info("configured",
		slog.String("curve", cfg.Curve),
		slog.String("wallet", c.wallet.String()),
	)
	return c, nil
}

func (c *Client) VenueID() domain.VenueID { return domain.VenueSolana }

// GetReserves reads and decodes the curve account.
func (c *Client) GetReserves(ctx context.Context) (domain.Reserves, error) {
	out, err := c.rpc.GetAccountInfoWithOpts(ctx, c.curve, &rpc.GetAccountInfoOpts{
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return nil, fmt.Errorf("solana: curve account: %w: %w", domain.ErrNetwork, err)
	}
	if out == nil || out.Value == nil {
		return nil, fmt.Errorf("solana: curve account %s: %w", c.cfg.Curve, domain.ErrNotFound)
	}
	return decodeCurve(out.Value.Data.GetBinary())
}

// decodeCurve parses the raw curve account bytes.
func decodeCurve(data []byte) (domain.Reserves, error) {
	var state curveState
	if err := bin.NewBinDecoder(data).Decode(&state); err != nil {
		return nil, fmt.Errorf("solana: decode curve account: %w", err)
	}
	return &domain.BondingCurveReserves{
		VirtualBase:  new(big.Int).SetUint64(state.VirtualTokenReserves),
		VirtualQuote: new(big.Int).SetUint64(state.VirtualSolReserves),
		RealBase:     new(big.Int).SetUint64(state.RealTokenReserves),
		RealQuote:    new(big.Int).SetUint64(state.RealSolReserves),
	}, nil
}

// EstimateTrade prices the trade locally against the freshest curve state.
// The curve program has no view entrypoint, so the estimate runs the same
// invariant math the program enforces.
func (c *Client) EstimateTrade(ctx context.Context, side domain.Side, amountBase *big.Int) (domain.TradeEstimate, error) {
	reserves, err := c.GetReserves(ctx)
	if err != nil {
		return domain.TradeEstimate{}, err
	}
	res, err := c.model.ApplyTrade(reserves, amountBase, side)
	if err != nil {
		// The trade cannot clear the curve at current state.
		return domain.TradeEstimate{WillRevert: true}, nil
	}
	// Flat signature fee; priority fees are covered by the simulator's
	// overhead config.
	return domain.TradeEstimate{
		CounterAmount: res.CounterAmount,
		NetworkFee:    big.NewInt(5_000),
	}, nil
}

// Submit builds, signs, and sends the curve instruction, then polls the
// signature status up to the confirm budget.
func (c *Client) Submit(ctx context.Context, side domain.Side, amountBase, minCounter *big.Int, deadline time.Time) (domain.TradeReceipt, error) {
	if c.signer == nil {
		return domain.TradeReceipt{}, fmt.Errorf("solana: submit: no signing key configured")
	}
	if time.Now().After(deadline) {
		return domain.TradeReceipt{}, fmt.Errorf("solana: %w", domain.ErrDeadlineExceeded)
	}

	recent, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return domain.TradeReceipt{}, fmt.Errorf("solana: blockhash: %w: %w", domain.ErrNetwork, err)
	}

	inst, err := c.buildInstruction(side, amountBase, minCounter)
	if err != nil {
		return domain.TradeReceipt{}, err
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{inst},
		recent.Value.Blockhash,
		solana.TransactionPayer(c.wallet),
	)
	if err != nil {
		return domain.TradeReceipt{}, fmt.Errorf("solana: build tx: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(c.wallet) {
			return &c.signer
		}
		return nil
	}); err != nil {
		return domain.TradeReceipt{}, fmt.Errorf("solana: sign: %w", err)
	}

	submittedAt := time.Now()
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return domain.TradeReceipt{}, fmt.Errorf("solana: send: %w: %w", domain.ErrNetwork, err)
	}
	receipt := domain.TradeReceipt{TxID: sig.String(), SubmittedAt: submittedAt}
	c.logger.Info("trade submitted",
		slog.String("side", string(side)),
		slog.String("signature", receipt.TxID),
	)

	// Bounded confirmation poll; an exhausted budget returns unconfirmed.
	for attempt := 0; attempt < c.cfg.ConfirmAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return receipt, ctx.Err()
		case <-time.After(c.cfg.ConfirmInterval):
		}
		statuses, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
		if err != nil || statuses == nil || len(statuses.Value) == 0 || statuses.Value[0] == nil {
			continue
		}
		st := statuses.Value[0]
		if st.Err != nil {
			return receipt, fmt.Errorf("solana: tx %s failed on chain: %v: %w", sig, st.Err, domain.ErrSimulationRevert)
		}
		if st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
			st.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
			receipt.Confirmed = true
			receipt.CounterAmount = minCounter
			return receipt, nil
		}
	}
	return receipt, nil
}

// buildInstruction encodes the buy/sell call: discriminator, base amount, and
// the quote bound (max cost for buys, min proceeds for sells).
func (c *Client) buildInstruction(side domain.Side, amountBase, bound *big.Int) (solana.Instruction, error) {
	if !amountBase.IsUint64() || !bound.IsUint64() {
		return nil, fmt.Errorf("solana: amounts exceed u64: base=%s bound=%s", amountBase, bound)
	}

	data := make([]byte, 24)
	switch side {
	case domain.SideBuy:
		copy(data[0:8], buyDiscriminator[:])
	case domain.SideSell:
		copy(data[0:8], sellDiscriminator[:])
	default:
		return nil, fmt.Errorf("solana: unknown side %q", side)
	}
	binary.LittleEndian.PutUint64(data[8:16], amountBase.Uint64())
	binary.LittleEndian.PutUint64(data[16:24], bound.Uint64())

	accounts := solana.AccountMetaSlice{
		solana.Meta(c.curve).WRITE(),
		solana.Meta(c.ata).WRITE(),
		solana.Meta(c.wallet).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.TokenProgramID),
	}
	return solana.NewInstruction(c.program, accounts, data), nil
}

// BaseBalance reads the wallet's token account balance.
func (c *Client) BaseBalance(ctx context.Context) (*big.Int, error) {
	out, err := c.rpc.GetTokenAccountBalance(ctx, c.ata, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("solana: token balance: %w: %w", domain.ErrNetwork, err)
	}
	if out == nil || out.Value == nil {
		return big.NewInt(0), nil
	}
	bal, ok := new(big.Int).SetString(out.Value.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("solana: token balance: bad amount %q", out.Value.Amount)
	}
	return bal, nil
}

// QuoteBalance reads the wallet's lamport balance.
func (c *Client) QuoteBalance(ctx context.Context) (*big.Int, error) {
	out, err := c.rpc.GetBalance(ctx, c.wallet, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("solana: balance: %w: %w", domain.ErrNetwork, err)
	}
	return new(big.Int).SetUint64(out.Value), nil
}
