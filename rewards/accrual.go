/*
accrual.go - Points accrual for settled payments

PURPOSE:
  One read/write round trip per settlement: compute the award from the
  payment, credit the ledger, recompute the tier, persist both together.

RULE:
  basePoints = amountPaid x pointsPerCurrencyUnit
  + earlyPaymentBonusPoints when paid earlyPaymentDaysThreshold or more
    days before the due date
  Rounded to the nearest integer only at the end. An award of zero or
  less is a no-op: no write happens.

SEE ALSO:
  - types.go: Ledger and tier thresholds
  - billing/settlement.go: Invokes Accrue best-effort after payment
*/
package rewards

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearflow/billing-engine/billing"
)

// ComputeAward returns the integer points awarded for a payment made at
// 'now' against a bill due at 'dueDate'. Pure; rounding happens once,
// at the end.
func ComputeAward(amountPaid decimal.Decimal, dueDate, now time.Time, cfg billing.RewardConfig) int64 {
	cfg = cfg.Normalized()

	points := amountPaid.Mul(cfg.PointsPerCurrencyUnit)
	if !dueDate.IsZero() && billing.DaysUntil(now, dueDate) >= cfg.EarlyPaymentDaysThreshold {
		points = points.Add(cfg.EarlyPaymentBonusPoints)
	}
	return points.Round(0).IntPart()
}

// =============================================================================
// SERVICE
// =============================================================================

// Service implements billing.RewardsService over a LedgerStore.
type Service struct {
	Ledgers LedgerStore
	Config  billing.RewardConfig
	Clock   billing.Clock
}

var _ billing.RewardsService = (*Service)(nil)

// Accrue credits the account's ledger for a settled payment. Skips
// entirely when the program is disabled or the account is absent; a
// non-positive award is a no-op.
func (s *Service) Accrue(ctx context.Context, accountID billing.AccountID, dueDate time.Time, amountPaid decimal.Decimal) error {
	if !s.Config.Enabled || accountID == "" {
		return nil
	}

	award := ComputeAward(amountPaid, dueDate, s.clock().Now(), s.Config)
	if award <= 0 {
		return nil
	}

	ledger, err := s.Ledgers.Ledger(ctx, accountID)
	if err != nil {
		return fmt.Errorf("loading ledger for %s: %w", accountID, err)
	}
	if err := s.Ledgers.SaveLedger(ctx, accountID, ledger.Credit(award)); err != nil {
		return fmt.Errorf("saving ledger for %s: %w", accountID, err)
	}
	return nil
}

func (s *Service) clock() billing.Clock {
	if s.Clock != nil {
		return s.Clock
	}
	return billing.SystemClock{}
}

// =============================================================================
// REDEMPTION PREVIEW
// =============================================================================

// RedeemablePreview returns how many points could offset a bill total at
// the fixed 1:1 redemption rate, capped by the available balance. Pure:
// actual redemption is a billing operation, not a ledger mutation here.
func RedeemablePreview(l Ledger, billTotal decimal.Decimal) int64 {
	limit := billTotal.Floor().IntPart()
	if limit < 0 {
		limit = 0
	}
	if l.Points < limit {
		return l.Points
	}
	return limit
}
