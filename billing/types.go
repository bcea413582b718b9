/*
Package billing provides the core water-utility billing engine.

PURPOSE:
  This package contains the rule components for pricing consumption,
  generating bills, applying late penalties, and settling payments.
  It is a library: no transport, no rendering, no ambient globals.
  Every calculation receives its configuration and its clock explicitly.

KEY CONCEPTS IN THIS FILE (types.go):
  - MeterReading: A cumulative meter value at a point in time
  - Bill: The central entity, created Unpaid and settled exactly once
  - ChargeBreakdown: Itemized output of the rate engine
  - PenaltyState: Tagged "compute once, then freeze" late-fee snapshot
  - AccountID/BillID: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Purity: Rate and penalty calculators have no side effects
  3. Idempotency: Durable writes are guarded by existence checks, safe to retry
  4. Explicit config: No calculation reads ambient/global state

SEE ALSO:
  - rates.go: Tiered-rate charge calculation
  - lifecycle.go: Bill generation
  - penalty.go: Potential vs dynamic penalty
  - settlement.go: Payment settlement and rewards trigger
*/
package billing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type BillID string

// =============================================================================
// SERVICE CLASS - Selects tier table and surcharge treatment
// =============================================================================

type ServiceClass string

const (
	ClassResidential          ServiceClass = "residential"
	ClassResidentialLowIncome ServiceClass = "residential_low_income"
	ClassSemiBusiness         ServiceClass = "semi_business"
	ClassCommercial           ServiceClass = "commercial"
	ClassAdmin                ServiceClass = "admin"
	ClassIndustrial           ServiceClass = "industrial"
	ClassPersonnel            ServiceClass = "personnel"
)

// IsCommercialRate reports whether the class pays the commercial sewerage rate.
func (c ServiceClass) IsCommercialRate() bool {
	switch c {
	case ClassCommercial, ClassAdmin, ClassIndustrial, ClassPersonnel:
		return true
	}
	return false
}

// IsFlatRate reports whether the class is billed at a flat per-unit rate
// instead of progressive tiers.
func (c ServiceClass) IsFlatRate() bool {
	return c == ClassIndustrial || c == ClassPersonnel
}

// =============================================================================
// METER READING - Cumulative register value, non-decreasing per account
// =============================================================================

type MeterReading struct {
	AccountID AccountID
	Value     decimal.Decimal
	ReadAt    time.Time
	ReadBy    string
}

// =============================================================================
// CUSTOMER PROFILE - The slice of the customer document the engine needs
// =============================================================================

type DiscountStatus string

const (
	DiscountNone     DiscountStatus = "none"
	DiscountPending  DiscountStatus = "pending"
	DiscountVerified DiscountStatus = "verified"
)

type CustomerProfile struct {
	AccountID      AccountID
	Name           string
	ServiceClass   ServiceClass
	MeterSize      string
	DiscountStatus DiscountStatus
}

// =============================================================================
// CHARGE BREAKDOWN - Itemized rate engine output
// =============================================================================

// ChargeBreakdown is the itemized result of pricing one period's consumption.
// All amounts are rounded to 2 decimal places at construction; intermediate
// math inside the engine is unrounded.
type ChargeBreakdown struct {
	Consumption         decimal.Decimal
	BasicCharge         decimal.Decimal
	FCDA                decimal.Decimal
	WaterCharge         decimal.Decimal
	EnvironmentalCharge decimal.Decimal
	SewerageCharge      decimal.Decimal
	MaintenanceFee      decimal.Decimal
	Subtotal            decimal.Decimal
	GovernmentTax       decimal.Decimal
	VAT                 decimal.Decimal
	Total               decimal.Decimal
}

// =============================================================================
// PENALTY STATE - Compute once, then freeze
// =============================================================================

// PenaltyState is a tagged snapshot: either the penalty has never been
// evaluated durably, or it was snapshotted once and is authoritative forever
// after. A zero-amount evaluation never becomes a snapshot.
type PenaltyState struct {
	Snapshotted bool
	Amount      decimal.Decimal
}

func PenaltyUnevaluated() PenaltyState {
	return PenaltyState{Amount: decimal.Zero}
}

func PenaltySnapshot(amount decimal.Decimal) PenaltyState {
	if !amount.IsPositive() {
		return PenaltyUnevaluated()
	}
	return PenaltyState{Snapshotted: true, Amount: amount}
}

// =============================================================================
// BILL - Created once, settled once, never deleted
// =============================================================================

type BillStatus string

const (
	StatusUnpaid BillStatus = "unpaid"
	StatusPaid   BillStatus = "paid"
)

type Bill struct {
	ID            BillID
	AccountID     AccountID
	InvoiceNumber string

	BillingPeriod string // "2006-01" label derived from the latest reading
	BillDate      time.Time
	DueDate       time.Time

	PreviousReading decimal.Decimal
	CurrentReading  decimal.Decimal
	Consumption     decimal.Decimal

	Charges              ChargeBreakdown
	PreviousUnpaidAmount decimal.Decimal
	DiscountAmount       decimal.Decimal
	Penalty              PenaltyState
	TotalAmountDue       decimal.Decimal

	Status  BillStatus
	Payment *PaymentRecord
}

// PaymentRecord holds settlement metadata, present only on Paid bills.
type PaymentRecord struct {
	PaidAt      time.Time
	Method      string
	Reference   string
	AmountPaid  decimal.Decimal
	ProcessedBy string
}

// PreTaxTotal is the base on which late penalties are assessed.
func (b Bill) PreTaxTotal() decimal.Decimal {
	return b.Charges.Subtotal
}

// IsOverdue reports whether the bill is unpaid past its due date.
func (b Bill) IsOverdue(now time.Time) bool {
	return b.Status == StatusUnpaid && !b.DueDate.IsZero() && now.After(b.DueDate)
}

// =============================================================================
// INVOICE NUMBER
// =============================================================================

// InvoiceNumber derives a human-readable invoice number from the bill's
// document identifier and bill date, e.g. INV-202608-4F21C9.
func InvoiceNumber(id BillID, billDate time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(string(id), "-", ""))
	if len(suffix) > 6 {
		suffix = suffix[:6]
	}
	return "INV-" + billDate.Format("200601") + "-" + suffix
}

// round2 rounds a monetary amount to 2 decimal places. Applied only at
// output boundaries, never at intermediate steps.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
