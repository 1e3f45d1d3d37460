// Package executor runs the two legs of a trade plan as a saga. The legs live
// on different ledgers with no shared transaction, so a failed second leg
// after a confirmed first leg is a first-class terminal state (PARTIAL), not
// an exception to swallow: it is surfaced with full state for manual
// remediation and never auto-compensated.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Executor submits trade plans leg by leg through the venue chain clients.
type Executor struct {
	clients map[domain.VenueID]domain.ChainClient
	// legDeadline bounds each leg's submission; the chain client's own
	// confirmation poll budget applies underneath it.
	legDeadline time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// New creates an Executor over the two venue clients.
func New(solana, evm domain.ChainClient, legDeadline time.Duration, logger *slog.Logger) *Executor {
	if legDeadline <= 0 {
		legDeadline = 60 * time.Second
	}
	return &Executor{
		clients: map[domain.VenueID]domain.ChainClient{
			solana.VenueID(): solana,
			evm.VenueID():    evm,
		},
		legDeadline: legDeadline,
		logger:      logger.With(slog.String("component", "executor")),
		now:         time.Now,
	}
}

// Execute runs the saga for one plan. The buy leg is always submitted first
// and the sell leg only after the buy leg's outcome is known, because the
// plan's sell amounts assume the buy happened. The returned result always
// carries a terminal state; err is nil only for COMPLETED, a
// *domain.PartialExecutionError for PARTIAL, and a plain error for FAILED.
func (e *Executor) Execute(ctx context.Context, plan *domain.TradePlan) (domain.ExecutionResult, error) {
	result := domain.ExecutionResult{
		PlanID:    plan.OpportunityID,
		StartedAt: e.now(),
	}
	log := e.logger.With(
		slog.String("plan", plan.OpportunityID),
		slog.String("direction", string(plan.Direction)),
	)

	buyClient, ok := e.clients[plan.Buy.Venue]
	if !ok {
		return e.fail(&result, log, fmt.Errorf("executor: no client for venue %s", plan.Buy.Venue))
	}
	sellClient, ok := e.clients[plan.Sell.Venue]
	if !ok {
		return e.fail(&result, log, fmt.Errorf("executor: no client for venue %s", plan.Sell.Venue))
	}

	// 1. VALIDATING: balances and bounds must still hold before the first leg.
	e.transition(&result, log, domain.ExecValidating)
	if err := e.validate(ctx, plan, buyClient, sellClient); err != nil {
		return e.fail(&result, log, fmt.Errorf("executor: validation: %w", err))
	}

	// 2. Buy leg.
	e.transition(&result, log, domain.ExecBuying)
	buyReceipt, err := e.submitLeg(ctx, buyClient, plan.Buy, &result, log, domain.ExecBuyPending)
	result.Buy = legResult(plan.Buy, buyReceipt, err)
	if err != nil {
		return e.fail(&result, log, fmt.Errorf("executor: buy leg on %s: %w", plan.Buy.Venue, err))
	}

	// 3. Sell leg. Failure past this point is PARTIAL: the buy is already on
	// chain and there is no cross-ledger undo.
	e.transition(&result, log, domain.ExecSelling)
	sellReceipt, err := e.submitLeg(ctx, sellClient, plan.Sell, &result, log, domain.ExecSellPending)
	result.Sell = legResult(plan.Sell, sellReceipt, err)
	if err != nil {
		e.transition(&result, log, domain.ExecPartial)
		result.FailReason = err.Error()
		result.FinishedAt = e.now()
		partial := &domain.PartialExecutionError{
			PlanID:    plan.OpportunityID,
			BuyVenue:  plan.Buy.Venue,
			BuyTxID:   buyReceipt.TxID,
			SellVenue: plan.Sell.Venue,
			SellTxID:  sellReceipt.TxID,
			BaseHeld:  plan.Buy.AmountBase.String(),
			Cause:     err,
		}
		log.Error("partial execution, manual remediation required",
			slog.String("buy_tx", buyReceipt.TxID),
			slog.String("base_held", partial.BaseHeld),
			slog.String("error", err.Error()),
		)
		return result, partial
	}

	e.transition(&result, log, domain.ExecCompleted)
	result.FinishedAt = e.now()
	log.Info("plan completed",
		slog.String("buy_tx", buyReceipt.TxID),
		slog.String("sell_tx", sellReceipt.TxID),
	)
	return result, nil
}

// validate re-checks wallet balances and that the plan's slippage bounds are
// still satisfiable at current state.
func (e *Executor) validate(ctx context.Context, plan *domain.TradePlan, buyClient, sellClient domain.ChainClient) error {
	quoteBal, err := buyClient.QuoteBalance(ctx)
	if err != nil {
		return fmt.Errorf("quote balance on %s: %w", plan.Buy.Venue, err)
	}
	// Buy.MinCounter is the most quote the buy may cost.
	if quoteBal.Cmp(plan.Buy.MinCounter) < 0 {
		return fmt.Errorf("%w: have %s quote on %s, need up to %s",
			domain.ErrInsufficientBalance, quoteBal, plan.Buy.Venue, plan.Buy.MinCounter)
	}

	baseBal, err := sellClient.BaseBalance(ctx)
	if err != nil {
		return fmt.Errorf("base balance on %s: %w", plan.Sell.Venue, err)
	}
	if baseBal.Cmp(plan.Sell.AmountBase) < 0 {
		return fmt.Errorf("%w: have %s base on %s, need %s",
			domain.ErrInsufficientBalance, baseBal, plan.Sell.Venue, plan.Sell.AmountBase)
	}

	buyEst, err := buyClient.EstimateTrade(ctx, domain.SideBuy, plan.Buy.AmountBase)
	if err != nil {
		return fmt.Errorf("buy estimate on %s: %w", plan.Buy.Venue, err)
	}
	if buyEst.WillRevert {
		return fmt.Errorf("buy estimate on %s: %w", plan.Buy.Venue, domain.ErrSimulationRevert)
	}
	if buyEst.CounterAmount.Cmp(plan.Buy.MinCounter) > 0 {
		return fmt.Errorf("buy now costs %s quote, bound is %s", buyEst.CounterAmount, plan.Buy.MinCounter)
	}

	sellEst, err := sellClient.EstimateTrade(ctx, domain.SideSell, plan.Sell.AmountBase)
	if err != nil {
		return fmt.Errorf("sell estimate on %s: %w", plan.Sell.Venue, err)
	}
	if sellEst.WillRevert {
		return fmt.Errorf("sell estimate on %s: %w", plan.Sell.Venue, domain.ErrSimulationRevert)
	}
	if sellEst.CounterAmount.Cmp(plan.Sell.MinCounter) < 0 {
		return fmt.Errorf("sell now yields %s quote, bound is %s", sellEst.CounterAmount, plan.Sell.MinCounter)
	}

	return nil
}

// submitLeg submits one leg and advances to its pending state while the chain
// client polls confirmation. A leg is never retried with the same bound;
// failure is terminal for this cycle.
func (e *Executor) submitLeg(ctx context.Context, client domain.ChainClient, leg domain.Leg, result *domain.ExecutionResult, log *slog.Logger, pending domain.ExecState) (domain.TradeReceipt, error) {
	e.transition(result, log, pending)

	deadline := e.now().Add(e.legDeadline)
	receipt, err := client.Submit(ctx, leg.Side, leg.AmountBase, leg.MinCounter, deadline)
	if err != nil {
		return receipt, err
	}
	if !receipt.Confirmed {
		return receipt, fmt.Errorf("tx %s: %w", receipt.TxID, domain.ErrConfirmTimeout)
	}
	return receipt, nil
}

func (e *Executor) transition(result *domain.ExecutionResult, log *slog.Logger, state domain.ExecState) {
	result.State = state
	log.Debug("state transition", slog.String("state", string(state)))
}

func (e *Executor) fail(result *domain.ExecutionResult, log *slog.Logger, err error) (domain.ExecutionResult, error) {
	e.transition(result, log, domain.ExecFailed)
	result.FailReason = err.Error()
	result.FinishedAt = e.now()
	log.Warn("plan failed", slog.String("error", err.Error()))
	return *result, err
}

func legResult(leg domain.Leg, receipt domain.TradeReceipt, err error) *domain.LegResult {
	lr := &domain.LegResult{
		Venue:       leg.Venue,
		Side:        leg.Side,
		TxID:        receipt.TxID,
		AmountBase:  leg.AmountBase.String(),
		Confirmed:   receipt.Confirmed,
		SubmittedAt: receipt.SubmittedAt,
	}
	if receipt.CounterAmount != nil {
		lr.CounterAmt = receipt.CounterAmount.String()
	}
	if err != nil {
		lr.Error = err.Error()
	}
	return lr
}
