/*
settlement.go - Payment settlement and rewards trigger

PURPOSE:
  Marks a bill Paid. This is the only place the penalty snapshot is
  durably written: an overdue bill with no snapshot gets one here, folded
  into the total, in the same atomic write as the Paid status and payment
  record. A second settlement attempt observes the already-written
  snapshot and total and changes nothing, which is what makes the
  operation safe to retry without locks.

REWARDS:
  Accrual is best-effort. A failed loyalty credit is logged and swallowed:
  a payment's success must never depend on the rewards program.

SEE ALSO:
  - penalty.go: The shared penalty rule
  - rewards/: The accrual implementation
*/
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentDetails carries the caller-supplied settlement metadata.
type PaymentDetails struct {
	Method      string
	Reference   string
	AmountPaid  decimal.Decimal
	ProcessedBy string
}

// RewardsService accrues loyalty points for a settled payment.
// Implemented by rewards.Service; nil disables accrual.
type RewardsService interface {
	Accrue(ctx context.Context, accountID AccountID, dueDate time.Time, amountPaid decimal.Decimal) error
}

// Settlement performs the Unpaid -> Paid transition.
type Settlement struct {
	Bills   BillStore
	Config  BillingConfig
	Clock   Clock
	Rewards RewardsService
	Logger  *zap.Logger
}

// SettlePayment settles a bill in full.
//
// Settling an already-Paid bill is a no-op returning nil: the transition
// is one-way and terminal, and retries must be safe.
func (s *Settlement) SettlePayment(ctx context.Context, billID BillID, p PaymentDetails) error {
	bill, err := s.Bills.GetBill(ctx, billID)
	if err != nil {
		return fmt.Errorf("loading bill %s: %w", billID, err)
	}
	if bill.Status == StatusPaid {
		return nil
	}

	cfg := s.Config.Normalized()
	now := s.clock().Now()

	// Fold in the penalty snapshot if the bill went overdue and none was
	// written yet. The snapshot, once set, is immutable.
	penalty := bill.Penalty
	totalDue := bill.TotalAmountDue
	if bill.IsOverdue(now) && !penalty.Snapshotted {
		amount := round2(bill.PreTaxTotal().Mul(cfg.PenaltyRate))
		if amount.IsPositive() {
			penalty = PenaltySnapshot(amount)
			totalDue = round2(totalDue.Add(amount))
		}
	}

	if p.AmountPaid.LessThan(totalDue) {
		return &PartialPaymentError{
			BillID:    billID,
			TotalDue:  totalDue,
			Tendered:  p.AmountPaid,
			Shortfall: totalDue.Sub(p.AmountPaid),
		}
	}

	record := PaymentRecord{
		PaidAt:      now,
		Method:      p.Method,
		Reference:   p.Reference,
		AmountPaid:  p.AmountPaid,
		ProcessedBy: p.ProcessedBy,
	}
	if err := s.Bills.SettleBill(ctx, billID, penalty, totalDue, record); err != nil {
		return fmt.Errorf("settling bill %s: %w", billID, err)
	}

	// Best-effort: never propagate accrual failure past a recorded payment.
	if s.Rewards != nil {
		if err := s.Rewards.Accrue(ctx, bill.AccountID, bill.DueDate, p.AmountPaid); err != nil {
			s.logger().Warn("rewards accrual failed",
				zap.String("account_id", string(bill.AccountID)),
				zap.String("bill_id", string(billID)),
				zap.Error(err))
		}
	}
	return nil
}

func (s *Settlement) clock() Clock {
	if s.Clock != nil {
		return s.Clock
	}
	return SystemClock{}
}

func (s *Settlement) logger() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop()
}
