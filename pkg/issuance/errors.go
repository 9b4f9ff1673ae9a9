package issuance

import (
	"errors"
	"fmt"

	"solmint/pkg/token"
)

// Stage identifies how far an issuance workflow progressed before failing.
type Stage string

const (
	StageAffordability  Stage = "affordability"
	StageMint           Stage = "mint"
	StageHoldingAccount Stage = "holding-account"
	StageSupply         Stage = "supply"
)

var (
	// ErrSignerUnavailable reports a disconnected signer or one without a
	// submission capability.
	ErrSignerUnavailable = errors.New("signer is not connected or cannot submit transactions")

	// ErrAmountTooSmall reports an amount whose base-unit representation
	// truncates to zero.
	ErrAmountTooSmall = errors.New("amount is below one base unit")

	// ErrIssuanceInFlight reports a re-entrant Issue call while a workflow
	// run is still executing.
	ErrIssuanceInFlight = errors.New("an issuance workflow is already in flight")
)

// ValidationError reports bad input caught before any ledger interaction.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InsufficientFundsError reports that the signer cannot afford the
// estimated issuance cost. No ledger mutation has occurred.
type InsufficientFundsError struct {
	Shortfall float64 // SOL still needed
	Breakdown token.CostEstimate
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf(
		"insufficient balance: need %.4f SOL more (mint rent %.6f + account rent %.6f + fees %.3f = %.4f SOL total)",
		e.Shortfall, e.Breakdown.MintRent, e.Breakdown.AccountRent, e.Breakdown.NetworkFee, e.Breakdown.Total,
	)
}

// NetworkError reports a transport or confirmation-timeout failure after the
// stage's retry budget was spent. The stage records how far the workflow got.
type NetworkError struct {
	Stage Stage
	Cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure at %s stage: %v", e.Stage, e.Cause)
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// LedgerRejectedError reports that the ledger executed a stage's transaction
// and rejected it. Resubmission is not meaningful, so it is never retried.
type LedgerRejectedError struct {
	Stage  Stage
	Reason string
}

func (e *LedgerRejectedError) Error() string {
	return fmt.Sprintf("ledger rejected %s stage transaction: %s", e.Stage, e.Reason)
}
