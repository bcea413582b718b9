/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Calculation paths (rates.go, penalty.go) never return errors; only the
  durable state transitions (generation, settlement) do.

ERROR CATEGORIES:
  1. Generation errors - Preconditions for creating a bill
  2. Settlement errors - Preconditions for marking a bill paid
  3. Lookup errors     - Missing documents

USAGE:
  if errors.Is(err, billing.ErrDuplicateBill) {
      // retry of an already-generated bill, safe to ignore
  }
*/
package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientReadings is returned when an account has fewer than two
	// persisted meter readings, so consumption cannot be derived.
	ErrInsufficientReadings = errors.New("insufficient meter readings")

	// ErrNegativeConsumption is returned when the latest reading is below the
	// previous one. The calculation is rejected, not clamped.
	ErrNegativeConsumption = errors.New("negative consumption")

	// ErrDuplicateBill is returned when a bill already exists for the
	// account and billing period. This is the idempotency guard preventing
	// double-billing on retry.
	ErrDuplicateBill = errors.New("bill already exists for period")

	// ErrPartialPayment is returned when the amount tendered is below the
	// total due. Payments are all-or-nothing.
	ErrPartialPayment = errors.New("partial payment not allowed")

	// ErrBillNotFound is returned when a referenced bill doesn't exist.
	ErrBillNotFound = errors.New("bill not found")

	// ErrProfileNotFound is returned when a referenced account doesn't exist.
	ErrProfileNotFound = errors.New("customer profile not found")

	// ErrReadingOutOfOrder is returned when a submitted reading is below the
	// latest persisted reading for the account.
	ErrReadingOutOfOrder = errors.New("meter reading below previous value")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NegativeConsumptionError reports a reading pair that moves backwards.
type NegativeConsumptionError struct {
	AccountID AccountID
	Previous  decimal.Decimal
	Current   decimal.Decimal
}

func (e *NegativeConsumptionError) Error() string {
	return fmt.Sprintf("negative consumption for %s: previous %v, current %v",
		e.AccountID, e.Previous, e.Current)
}

func (e *NegativeConsumptionError) Unwrap() error { return ErrNegativeConsumption }

// PartialPaymentError reports an underpayment attempt.
type PartialPaymentError struct {
	BillID    BillID
	TotalDue  decimal.Decimal
	Tendered  decimal.Decimal
	Shortfall decimal.Decimal
}

func (e *PartialPaymentError) Error() string {
	return fmt.Sprintf("partial payment on %s: due %v, tendered %v, short %v",
		e.BillID, e.TotalDue, e.Tendered, e.Shortfall)
}

func (e *PartialPaymentError) Unwrap() error { return ErrPartialPayment }

// DuplicateBillError reports the existing bill blocking generation.
type DuplicateBillError struct {
	AccountID AccountID
	Period    string
	Existing  BillID
}

func (e *DuplicateBillError) Error() string {
	return fmt.Sprintf("bill already exists for %s period %s (bill: %s)",
		e.AccountID, e.Period, e.Existing)
}

func (e *DuplicateBillError) Unwrap() error { return ErrDuplicateBill }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input
// or a safe-to-ignore retry, as opposed to a storage failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientReadings) ||
		errors.Is(err, ErrNegativeConsumption) ||
		errors.Is(err, ErrDuplicateBill) ||
		errors.Is(err, ErrPartialPayment) ||
		errors.Is(err, ErrReadingOutOfOrder)
}

// IsNotFound returns true if the error indicates a missing document.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBillNotFound) ||
		errors.Is(err, ErrProfileNotFound)
}
