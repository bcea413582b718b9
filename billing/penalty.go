/*
penalty.go - Late-fee calculation

PURPOSE:
  Two pure functions share one rule and differ only in when they may
  assume "today":

  PotentialPenalty: forward-looking "what you'd owe if late", shown to the
  payer before the due date. Never persisted.

  DynamicPenalty: the authoritative figure for the current render, zero
  until the due date passes. Also never persisted here - the snapshot is
  written exactly once, at settlement, the moment it gains financial
  consequence. The display path is read-heavy and write-rare; recomputing
  on every render is cheaper than writing on every render.

  In both, a stored snapshot wins over recomputation.

SEE ALSO:
  - settlement.go: The only writer of the penalty snapshot
  - types.go: PenaltyState
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// PotentialPenalty returns the late fee the bill would carry if it went
// overdue. A stored snapshot wins; otherwise preTaxTotal x penaltyRate.
func PotentialPenalty(b Bill, cfg BillingConfig) decimal.Decimal {
	if b.Penalty.Snapshotted {
		return b.Penalty.Amount
	}
	cfg = cfg.Normalized()
	return round2(b.PreTaxTotal().Mul(cfg.PenaltyRate))
}

// DynamicPenalty returns the penalty currently owed. Zero for Paid bills,
// bills without a due date, and bills not yet past due. Past due, the
// stored snapshot wins; otherwise the fee is computed fresh (and not
// persisted - persistence happens only at settlement).
func DynamicPenalty(b Bill, cfg BillingConfig, now time.Time) decimal.Decimal {
	if b.Status == StatusPaid || b.DueDate.IsZero() {
		return decimal.Zero
	}
	if !now.After(b.DueDate) {
		return decimal.Zero
	}
	if b.Penalty.Snapshotted {
		return b.Penalty.Amount
	}
	cfg = cfg.Normalized()
	return round2(b.PreTaxTotal().Mul(cfg.PenaltyRate))
}

// =============================================================================
// BILL VIEW - What the display layer renders
// =============================================================================

// BillView combines a stored bill with its current dynamic penalty, so the
// UI can show an accurate "amount now due" without writing to storage.
type BillView struct {
	Bill           Bill
	DynamicPenalty decimal.Decimal
	AmountNowDue   decimal.Decimal
}

// NewBillView builds the display model for a bill as of now.
func NewBillView(b Bill, cfg BillingConfig, now time.Time) BillView {
	penalty := DynamicPenalty(b, cfg, now)
	due := b.TotalAmountDue
	if !b.Penalty.Snapshotted {
		// Snapshotted penalties are already folded into the stored total.
		due = due.Add(penalty)
	}
	if b.Status == StatusPaid {
		due = decimal.Zero
	}
	return BillView{
		Bill:           b,
		DynamicPenalty: penalty,
		AmountNowDue:   round2(due),
	}
}
