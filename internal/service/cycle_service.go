// Package service orchestrates one analysis cycle end to end: snapshot,
// analysis, simulation, execution, and the outcome record. Exactly one
// CycleOutcome is produced per cycle whatever happens inside it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// SnapshotFetcher assembles a coherent two-venue snapshot.
type SnapshotFetcher interface {
	Fetch(ctx context.Context) (domain.MarketSnapshot, error)
}

// OpportunityAnalyzer sizes the equilibrium trade on a snapshot.
type OpportunityAnalyzer interface {
	Analyze(snap domain.MarketSnapshot) (*domain.Opportunity, error)
}

// PlanSimulator re-prices an opportunity on fresh state into a bounded plan.
type PlanSimulator interface {
	Simulate(ctx context.Context, opp *domain.Opportunity) (*domain.TradePlan, error)
}

// PlanExecutor runs a plan's two legs as a saga.
type PlanExecutor interface {
	Execute(ctx context.Context, plan *domain.TradePlan) (domain.ExecutionResult, error)
}

// Notifier pushes operator alerts. Matches notify.Notifier.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// CycleService wires the pipeline stages together. The outcome store and
// notifier are optional; a nil store means outcomes are only logged.
type CycleService struct {
	fetcher   SnapshotFetcher
	analyzer  OpportunityAnalyzer
	simulator PlanSimulator
	executor  PlanExecutor
	outcomes  domain.OutcomeStore
	notifier  Notifier
	// dryRun stops the pipeline after simulation: plans are produced and
	// recorded but never executed.
	dryRun bool
	logger *slog.Logger
	now    func() time.Time
}

// NewCycleService creates a CycleService. outcomes and notifier may be nil.
func NewCycleService(
	fetcher SnapshotFetcher,
	analyzer OpportunityAnalyzer,
	simulator PlanSimulator,
	executor PlanExecutor,
	outcomes domain.OutcomeStore,
	notifier Notifier,
	dryRun bool,
	logger *slog.Logger,
) *CycleService {
	return &CycleService{
		fetcher:   fetcher,
		analyzer:  analyzer,
		simulator: simulator,
		executor:  executor,
		outcomes:  outcomes,
		notifier:  notifier,
		dryRun:    dryRun,
		logger:    logger.With(slog.String("component", "cycle_service")),
		now:       time.Now,
	}
}

// RunCycle drives one full cycle for a trigger event. The returned error is
// non-nil only for abnormal endings (fetch errors, failed or partial
// execution); clean endings such as no-opportunity or a simulation rejection
// return a nil error with the status explaining the outcome.
func (s *CycleService) RunCycle(ctx context.Context, trigger domain.TradeEvent) (domain.CycleOutcome, error) {
	outcome := domain.CycleOutcome{
		ID:           uuid.NewString(),
		TriggerVenue: trigger.Venue,
		TriggerTxID:  trigger.TxID,
		StartedAt:    s.now(),
	}
	log := s.logger.With(slog.String("cycle", outcome.ID))

	// 1. Snapshot both venues.
	snap, err := s.fetcher.Fetch(ctx)
	if err != nil {
		outcome.Status = domain.CycleError
		outcome.Reason = err.Error()
		return s.finish(ctx, log, outcome), err
	}

	// 2. Size the equilibrium trade.
	opp, err := s.analyzer.Analyze(snap)
	if err != nil {
		if errors.Is(err, domain.ErrNoOpportunity) {
			outcome.Status = domain.CycleNoOpportunity
			outcome.Reason = err.Error()
			return s.finish(ctx, log, outcome), nil
		}
		outcome.Status = domain.CycleError
		outcome.Reason = err.Error()
		return s.finish(ctx, log, outcome), err
	}
	outcome.Direction = opp.Direction
	outcome.SizeBase = opp.EquilibriumSize.String()
	outcome.GapBefore = opp.PriceGapBefore
	outcome.GapAfter = opp.PriceGapAfter
	outcome.ProjectedUSD = opp.ProjectedProfitUSD

	// 3. Re-price on fresh state.
	plan, err := s.simulator.Simulate(ctx, opp)
	if err != nil {
		var rejected *domain.SimulationRejectedError
		switch {
		case errors.As(err, &rejected):
			outcome.Status = domain.CycleRejected
			outcome.Reason = rejected.Reason
			outcome.NetUSD = rejected.NetUSD
			return s.finish(ctx, log, outcome), nil
		case errors.Is(err, domain.ErrStaleOpportunity):
			outcome.Status = domain.CycleRejected
			outcome.Reason = err.Error()
			return s.finish(ctx, log, outcome), nil
		default:
			outcome.Status = domain.CycleError
			outcome.Reason = err.Error()
			return s.finish(ctx, log, outcome), err
		}
	}
	outcome.NetUSD = plan.NetUSD

	// 4. Monitor mode stops here.
	if s.dryRun {
		outcome.Status = domain.CycleDryRun
		outcome.Reason = fmt.Sprintf("dry run: plan for %s base held back", plan.Buy.AmountBase)
		return s.finish(ctx, log, outcome), nil
	}

	// 5. Execute the saga.
	result, err := s.executor.Execute(ctx, plan)
	outcome.ExecState = result.State
	if result.Buy != nil {
		outcome.BuyTxID = result.Buy.TxID
	}
	if result.Sell != nil {
		outcome.SellTxID = result.Sell.TxID
	}
	switch {
	case err == nil:
		outcome.Status = domain.CycleExecuted
		return s.finish(ctx, log, outcome), nil
	case result.State == domain.ExecPartial:
		outcome.Status = domain.CyclePartial
		outcome.Reason = err.Error()
		return s.finish(ctx, log, outcome), err
	default:
		outcome.Status = domain.CycleFailed
		outcome.Reason = err.Error()
		return s.finish(ctx, log, outcome), err
	}
}

// finish stamps, persists, and announces the outcome. Store and notifier
// failures are logged, never escalated: the cycle's own status must survive
// infrastructure trouble.
func (s *CycleService) finish(ctx context.Context, log *slog.Logger, outcome domain.CycleOutcome) domain.CycleOutcome {
	outcome.FinishedAt = s.now()

	log.InfoContext(ctx, "cycle outcome",
		slog.String("status", string(outcome.Status)),
		slog.String("direction", string(outcome.Direction)),
		slog.Float64("net_usd", outcome.NetUSD),
		slog.String("reason", outcome.Reason),
	)

	if s.outcomes != nil {
		if err := s.outcomes.Create(ctx, outcome); err != nil {
			log.ErrorContext(ctx, "outcome store write failed", slog.Any("error", err))
		}
	}
	if s.notifier != nil {
		title, message := formatOutcome(outcome)
		if err := s.notifier.Notify(ctx, string(outcome.Status), title, message); err != nil {
			log.WarnContext(ctx, "notify failed", slog.Any("error", err))
		}
	}
	return outcome
}

func formatOutcome(o domain.CycleOutcome) (title, message string) {
	switch o.Status {
	case domain.CycleExecuted:
		title = fmt.Sprintf("Executed %s for %.2f USD", o.Direction, o.NetUSD)
	case domain.CyclePartial:
		title = "PARTIAL EXECUTION - manual action required"
	case domain.CycleFailed:
		title = "Execution failed"
	case domain.CycleDryRun:
		title = fmt.Sprintf("Dry run: %s would net %.2f USD", o.Direction, o.NetUSD)
	default:
		title = fmt.Sprintf("Cycle %s", o.Status)
	}
	message = fmt.Sprintf(
		"cycle=%s trigger=%s/%s direction=%s size=%s gap %.4f%%->%.4f%% net=%.2f USD buy_tx=%s sell_tx=%s reason=%s",
		o.ID, o.TriggerVenue, o.TriggerTxID, o.Direction, o.SizeBase,
		o.GapBefore, o.GapAfter, o.NetUSD, o.BuyTxID, o.SellTxID, o.Reason,
	)
	return title, message
}
