/*
store.go - Persistence interfaces for bills, readings, and profiles

PURPOSE:
  Defines the interface between the billing rules and the document store.
  The store is opaque to the engine: get/query/insert/atomic-settle
  primitives only, no SQL leaks into the domain.

IDEMPOTENCY:
  InsertBill must reject a second bill for the same (account, period) with
  ErrDuplicateBill, preferably via a conditional write (unique index) rather
  than a read-then-write, so a race between two generation attempts cannot
  double-bill.

ATOMIC SETTLEMENT:
  SettleBill writes penalty snapshot, adjusted total, Paid status, and the
  payment record in one atomic multi-field update. A crash mid-settlement
  must not leave a payment recorded without its penalty snapshot.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - store/memory: In-memory for testing

SEE ALSO:
  - lifecycle.go: Uses ReadingStore + BillStore
  - settlement.go: Uses BillStore
*/
package billing

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// READING STORE
// =============================================================================

// ReadingStore persists cumulative meter readings.
type ReadingStore interface {
	// AppendReading persists a reading. A reading below the account's latest
	// persisted value is rejected with ErrReadingOutOfOrder.
	AppendReading(ctx context.Context, r MeterReading) error

	// LatestReadings returns up to limit readings for the account,
	// most recent first.
	LatestReadings(ctx context.Context, accountID AccountID, limit int) ([]MeterReading, error)
}

// =============================================================================
// BILL STORE
// =============================================================================

// BillStore persists bills and performs the two durable state transitions.
type BillStore interface {
	// InsertBill persists a new Unpaid bill. Returns ErrDuplicateBill if a
	// bill already exists for the same account and billing period.
	InsertBill(ctx context.Context, b Bill) error

	// GetBill returns a bill by ID, or ErrBillNotFound.
	GetBill(ctx context.Context, id BillID) (Bill, error)

	// BillForPeriod returns the account's bill for a period label,
	// or ErrBillNotFound when none exists.
	BillForPeriod(ctx context.Context, accountID AccountID, period string) (Bill, error)

	// BillsByStatus returns the account's bills with the given status,
	// newest bill date first.
	BillsByStatus(ctx context.Context, accountID AccountID, status BillStatus) ([]Bill, error)

	// SettleBill atomically writes the penalty snapshot, adjusted total,
	// Paid status, and payment record. Returns ErrBillNotFound for an
	// unknown bill.
	SettleBill(ctx context.Context, id BillID, penalty PenaltyState, totalDue decimal.Decimal, payment PaymentRecord) error
}

// =============================================================================
// PROFILE STORE
// =============================================================================

// ProfileStore reads customer profiles. The engine never mutates profiles;
// rewards keeps its ledger mirror behind its own store.
type ProfileStore interface {
	// GetProfile returns the account's profile, or ErrProfileNotFound.
	GetProfile(ctx context.Context, accountID AccountID) (CustomerProfile, error)
}
