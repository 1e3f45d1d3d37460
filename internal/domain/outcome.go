package domain

import "time"

// ExecState is the executor saga state. Terminal states are Completed,
// Failed, and Partial.
type ExecState string

const (
	ExecValidating  ExecState = "VALIDATING"
	ExecBuying      ExecState = "BUYING"
	ExecBuyPending  ExecState = "BUY_PENDING"
	ExecSelling     ExecState = "SELLING"
	ExecSellPending ExecState = "SELL_PENDING"
	ExecCompleted   ExecState = "COMPLETED"
	ExecFailed      ExecState = "FAILED"
	// ExecPartial means the buy leg confirmed but the sell leg did not. There
	// is no cross-ledger undo; the unbalanced position is surfaced for manual
	// remediation.
	ExecPartial ExecState = "PARTIAL"
)

// Terminal reports whether the state ends the saga.
func (s ExecState) Terminal() bool {
	return s == ExecCompleted || s == ExecFailed || s == ExecPartial
}

// LegResult records the observable outcome of one submitted leg.
type LegResult struct {
	Venue       VenueID
	Side        Side
	TxID        string
	AmountBase  string // decimal string of venue-native base units
	CounterAmt  string // decimal string of venue-native quote units
	Confirmed   bool
	SubmittedAt time.Time
	Error       string
}

// ExecutionResult is the structured record of one executor run. Exactly one
// is produced per saga, whatever the terminal state.
type ExecutionResult struct {
	PlanID     string
	State      ExecState
	Buy        *LegResult
	Sell       *LegResult
	FailReason string
	StartedAt  time.Time
	FinishedAt time.Time
}

// CycleStatus classifies how an analysis cycle ended.
type CycleStatus string

const (
	CycleNoOpportunity CycleStatus = "no_opportunity"
	CycleRejected      CycleStatus = "rejected"  // simulation re-price failed the profit gate
	CycleDryRun        CycleStatus = "dry_run"   // monitor mode, plan produced but not executed
	CycleExecuted      CycleStatus = "executed"  // terminal COMPLETED
	CycleFailed        CycleStatus = "failed"    // terminal FAILED
	CyclePartial       CycleStatus = "partial"   // terminal PARTIAL
	CycleError         CycleStatus = "error"     // fetch or internal error, cycle aborted
)

// CycleOutcome is the one structured record emitted per completed analysis
// cycle. It is what the notifier formats, the outcome store persists, and the
// status API serves.
type CycleOutcome struct {
	ID           string
	Status       CycleStatus
	TriggerVenue VenueID
	TriggerTxID  string
	Direction    Direction
	SizeBase     string // canonical base units, decimal string
	GapBefore    float64
	GapAfter     float64
	ProjectedUSD float64
	NetUSD       float64
	ExecState    ExecState
	BuyTxID      string
	SellTxID     string
	Reason       string
	StartedAt    time.Time
	FinishedAt   time.Time
}
