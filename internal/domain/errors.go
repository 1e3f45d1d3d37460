package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Chain clients must map their transport failures onto the
// distinguishable kinds below so callers can branch with errors.Is.
var (
	ErrNotFound              = errors.New("not found")
	ErrDataFetch             = errors.New("market data fetch failed")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrNoOpportunity         = errors.New("no opportunity")
	ErrStaleOpportunity      = errors.New("opportunity snapshot too old")
	ErrCycleInFlight         = errors.New("analysis cycle already in flight")

	// Chain client error kinds.
	ErrNetwork             = errors.New("network failure")
	ErrSimulationRevert    = errors.New("transaction would revert")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDeadlineExceeded    = errors.New("deadline exceeded")
	ErrConfirmTimeout      = errors.New("confirmation poll budget exhausted")
)

// SimulationRejectedError reports why a fresh re-price no longer clears the
// profit gate. The cycle ends cleanly; this is not a failure.
type SimulationRejectedError struct {
	Reason string
	NetUSD float64
}

func (e *SimulationRejectedError) Error() string {
	return fmt.Sprintf("simulation rejected: %s (net=%.4f USD)", e.Reason, e.NetUSD)
}

// PartialExecutionError is the most severe category: the buy leg confirmed
// but the sell leg did not, leaving an unbalanced position with no possible
// rollback. It carries full state for external remediation.
type PartialExecutionError struct {
	PlanID    string
	BuyVenue  VenueID
	BuyTxID   string
	SellVenue VenueID
	SellTxID  string
	BaseHeld  string // venue-native base units acquired by the buy leg
	Cause     error
}

func (e *PartialExecutionError) Error() string {
	return fmt.Sprintf("partial execution: plan %s bought %s base on %s (tx %s) but sell on %s failed: %v",
		e.PlanID, e.BaseHeld, e.BuyVenue, e.BuyTxID, e.SellVenue, e.Cause)
}

func (e *PartialExecutionError) Unwrap() error { return e.Cause }
