// Package vesting holds the configuration and failure taxonomy of the vesting transaction engine.
package vesting

import (
	"errors"
	"fmt"

	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/model"
)

var (
	// ErrInsufficientFunds is returned when the available outputs cannot cover a target.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrNoUtxosAvailable is returned when a deposit is requested from an empty wallet.
	ErrNoUtxosAvailable = errors.New("no utxos available")
	// ErrMissingDatum is returned when a script output carries no inline datum.
	ErrMissingDatum = errors.New("missing datum")
	// ErrMalformedDatum is returned when a datum is not an escrow record.
	ErrMalformedDatum = errors.New("malformed datum")
	// ErrMissingCollateral is returned when a script spend has no collateral.
	ErrMissingCollateral = errors.New("missing collateral")
	// ErrScriptOutputNotFound is returned when a deposit transaction has no output at the script address.
	ErrScriptOutputNotFound = errors.New("script output not found")
	// ErrLedgerQueryFailure wraps transient indexer failures.
	ErrLedgerQueryFailure = errors.New("ledger query failure")
	// ErrSubmissionFailure wraps failures reported by the submitter.
	ErrSubmissionFailure = errors.New("submission failure")
	// ErrBeneficiaryMismatch is returned when the withdrawing address is not the datum beneficiary.
	ErrBeneficiaryMismatch = errors.New("beneficiary mismatch")
	// ErrMissingCostModel is returned when a script spend is built without a PlutusV3 cost model.
	ErrMissingCostModel = errors.New("missing cost model")
	// ErrInvalidAddress is returned when an address cannot be decoded into a key hash.
	ErrInvalidAddress = errors.New("invalid address")
)

// InsufficientFundsError reports the first unit that could not be covered.
type InsufficientFundsError struct {
	Unit      model.Unit
	Shortfall uint64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: %s short by %d", e.Unit, e.Shortfall)
}

// Is makes errors.Is(err, ErrInsufficientFunds) hold.
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// Retryable reports whether an operation that failed with err may be repeated as is.
// Only ledger reads qualify; submissions must be checked for acceptance first.
func Retryable(err error) bool {
	return errors.Is(err, ErrLedgerQueryFailure) && !errors.Is(err, ErrSubmissionFailure)
}
