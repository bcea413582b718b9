/*
Package rewards provides the loyalty-points ledger for the billing engine.

PURPOSE:
  Customers accrue points for settled payments and climb tiers as points
  accumulate. Points are redeemable 1:1 against future bills.

KEY INVARIANTS:
  1. Points are integers >= 0 and monotonically non-decreasing
  2. Tier is a pure function of points against ascending thresholds,
     always recomputed from the total, never incremented
  3. Points and tier are persisted together in one atomic update

SEE ALSO:
  - accrual.go: The accrual rule and service
  - billing/settlement.go: The only caller
*/
package rewards

import (
	"context"

	"github.com/clearflow/billing-engine/billing"
)

// =============================================================================
// TIERS
// =============================================================================

type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// Ascending thresholds: Bronze < 500 <= Silver < 1500 <= Gold < 3000 <= Platinum.
const (
	silverThreshold   = 500
	goldThreshold     = 1500
	platinumThreshold = 3000
)

// TierForPoints derives the tier from accumulated points.
func TierForPoints(points int64) Tier {
	switch {
	case points >= platinumThreshold:
		return TierPlatinum
	case points >= goldThreshold:
		return TierGold
	case points >= silverThreshold:
		return TierSilver
	default:
		return TierBronze
	}
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger is the customer's loyalty balance, embedded in the profile document.
type Ledger struct {
	Points int64
	Tier   Tier
}

// NewLedger returns an empty Bronze ledger.
func NewLedger() Ledger {
	return Ledger{Points: 0, Tier: TierBronze}
}

// Credit returns the ledger after awarding points, tier recomputed from the
// new total.
func (l Ledger) Credit(points int64) Ledger {
	total := l.Points + points
	return Ledger{Points: total, Tier: TierForPoints(total)}
}

// =============================================================================
// LEDGER STORE
// =============================================================================

// LedgerStore persists loyalty ledgers. SaveLedger must write points and
// tier together atomically - never one without the other.
type LedgerStore interface {
	Ledger(ctx context.Context, accountID billing.AccountID) (Ledger, error)
	SaveLedger(ctx context.Context, accountID billing.AccountID, l Ledger) error
}
