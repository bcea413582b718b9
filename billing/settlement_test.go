package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearflow/billing-engine/billing"
	"github.com/clearflow/billing-engine/rewards"
	"github.com/clearflow/billing-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newSettlement(store *memory.Store, now time.Time) *billing.Settlement {
	return &billing.Settlement{
		Bills:  store,
		Config: billing.DefaultBillingConfig(),
		Clock:  billing.FixedClock{T: now},
		Rewards: &rewards.Service{
			Ledgers: store,
			Config:  billing.DefaultRewardConfig(),
			Clock:   billing.FixedClock{T: now},
		},
	}
}

func insertOverdueBill(t *testing.T, store *memory.Store) billing.Bill {
	t.Helper()
	bill := overdueBill()
	require.NoError(t, store.InsertBill(context.Background(), bill))
	return bill
}

// =============================================================================
// PENALTY SNAPSHOT AT SETTLEMENT
// =============================================================================

func TestSettlePayment_OverdueSnapshotsPenaltyIntoTotal(t *testing.T) {
	// GIVEN: Unpaid bill, pre-tax total 1000.00, rate 2%, due yesterday
	// WHEN: Settling with 1020.00
	// THEN: Persisted bill has penaltyAmount 20.00, total 1020.00, status Paid

	store := memory.New()
	ctx := context.Background()
	bill := insertOverdueBill(t, store)

	settlement := newSettlement(store, testNow)
	err := settlement.SettlePayment(ctx, bill.ID, billing.PaymentDetails{
		Method:     "cash",
		Reference:  "OR-1001",
		AmountPaid: d("1020.00"),
	})
	require.NoError(t, err)

	settled, err := store.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPaid, settled.Status)
	assert.True(t, settled.Penalty.Snapshotted)
	assertDecimalEqual(t, d("20.00"), settled.Penalty.Amount)
	assertDecimalEqual(t, d("1020.00"), settled.TotalAmountDue)
	require.NotNil(t, settled.Payment)
	assert.Equal(t, "cash", settled.Payment.Method)
	assertDecimalEqual(t, d("1020.00"), settled.Payment.AmountPaid)
	assert.Equal(t, testNow, settled.Payment.PaidAt)
}

func TestSettlePayment_BeforeDueDateNoPenalty(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	bill := overdueBill()
	bill.DueDate = testNow.AddDate(0, 0, 10)
	require.NoError(t, store.InsertBill(ctx, bill))

	settlement := newSettlement(store, testNow)
	err := settlement.SettlePayment(ctx, bill.ID, billing.PaymentDetails{
		Method:     "gcash",
		AmountPaid: d("1000.00"),
	})
	require.NoError(t, err)

	settled, _ := store.GetBill(ctx, bill.ID)
	assert.False(t, settled.Penalty.Snapshotted)
	assertDecimalEqual(t, d("1000.00"), settled.TotalAmountDue)
}

// =============================================================================
// PARTIAL PAYMENT
// =============================================================================

func TestSettlePayment_PartialPaymentRejectedNoStateChange(t *testing.T) {
	// GIVEN: totalAmountDue 1000.00, bill not overdue
	// WHEN: Tendering 999.99
	// THEN: PartialPaymentError; bill untouched

	store := memory.New()
	ctx := context.Background()

	bill := overdueBill()
	bill.DueDate = testNow.AddDate(0, 0, 10)
	require.NoError(t, store.InsertBill(ctx, bill))

	settlement := newSettlement(store, testNow)
	err := settlement.SettlePayment(ctx, bill.ID, billing.PaymentDetails{
		Method:     "cash",
		AmountPaid: d("999.99"),
	})

	assert.ErrorIs(t, err, billing.ErrPartialPayment)
	var detail *billing.PartialPaymentError
	require.ErrorAs(t, err, &detail)
	assertDecimalEqual(t, d("0.01"), detail.Shortfall)

	unchanged, _ := store.GetBill(ctx, bill.ID)
	assert.Equal(t, billing.StatusUnpaid, unchanged.Status)
	assert.False(t, unchanged.Penalty.Snapshotted)
	assertDecimalEqual(t, d("1000.00"), unchanged.TotalAmountDue)
}

func TestSettlePayment_PartialIncludesPenaltyForOverdueBill(t *testing.T) {
	// Tendering the pre-penalty total against an overdue bill is a partial
	// payment: the snapshot-to-be counts toward what's due.

	store := memory.New()
	ctx := context.Background()
	bill := insertOverdueBill(t, store)

	settlement := newSettlement(store, testNow)
	err := settlement.SettlePayment(ctx, bill.ID, billing.PaymentDetails{
		Method:     "cash",
		AmountPaid: d("1000.00"),
	})

	assert.ErrorIs(t, err, billing.ErrPartialPayment)

	unchanged, _ := store.GetBill(ctx, bill.ID)
	assert.Equal(t, billing.StatusUnpaid, unchanged.Status)
	assert.False(t, unchanged.Penalty.Snapshotted, "rejected settlement must not persist the snapshot")
}

// =============================================================================
// IDEMPOTENCY
// =============================================================================

func TestSettlePayment_SecondSettlementChangesNothing(t *testing.T) {
	// Settling an already-Paid bill is a safe no-op: penaltyAmount and
	// totalAmountDue are identical between calls.

	store := memory.New()
	ctx := context.Background()
	bill := insertOverdueBill(t, store)

	settlement := newSettlement(store, testNow)
	require.NoError(t, settlement.SettlePayment(ctx, bill.ID, billing.PaymentDetails{
		Method:     "cash",
		AmountPaid: d("1020.00"),
	}))
	first, _ := store.GetBill(ctx, bill.ID)

	// Retry much later, when a fresh computation would differ.
	retry := newSettlement(store, testNow.AddDate(0, 2, 0))
	require.NoError(t, retry.SettlePayment(ctx, bill.ID, billing.PaymentDetails{
		Method:     "cash",
		AmountPaid: d("1020.00"),
	}))
	second, _ := store.GetBill(ctx, bill.ID)

	assertDecimalEqual(t, first.Penalty.Amount, second.Penalty.Amount)
	assertDecimalEqual(t, first.TotalAmountDue, second.TotalAmountDue)
	assert.Equal(t, first.Payment.PaidAt, second.Payment.PaidAt)
}

func TestSettlePayment_UnknownBill(t *testing.T) {
	settlement := newSettlement(memory.New(), testNow)
	err := settlement.SettlePayment(context.Background(), "missing", billing.PaymentDetails{
		Method:     "cash",
		AmountPaid: d("10.00"),
	})
	assert.ErrorIs(t, err, billing.ErrBillNotFound)
}

// =============================================================================
// REWARDS TRIGGER
// =============================================================================

func TestSettlePayment_AccruesRewards(t *testing.T) {
	// GIVEN: Rewards enabled, 0.01 points per unit, payment of 1020.00 made
	//        10 days before the due date (threshold 7, bonus 10)
	// THEN: round(1020 x 0.01) + 10 = 20 points on the ledger

	store := memory.New()
	ctx := context.Background()

	bill := overdueBill()
	bill.DueDate = testNow.AddDate(0, 0, 10)
	require.NoError(t, store.InsertBill(ctx, bill))

	settlement := newSettlement(store, testNow)
	require.NoError(t, settlement.SettlePayment(ctx, bill.ID, billing.PaymentDetails{
		Method:     "card",
		AmountPaid: d("1020.00"),
	}))

	ledger, err := store.Ledger(ctx, bill.AccountID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), ledger.Points)
	assert.Equal(t, rewards.TierBronze, ledger.Tier)
}

// failingRewards always errors, to prove accrual failures stay contained.
type failingRewards struct{}

func (failingRewards) Accrue(context.Context, billing.AccountID, time.Time, decimal.Decimal) error {
	return errors.New("loyalty service down")
}

func TestSettlePayment_RewardsFailureDoesNotRollBackPayment(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	bill := insertOverdueBill(t, store)

	settlement := newSettlement(store, testNow)
	settlement.Rewards = failingRewards{}

	err := settlement.SettlePayment(ctx, bill.ID, billing.PaymentDetails{
		Method:     "cash",
		AmountPaid: d("1020.00"),
	})
	require.NoError(t, err, "accrual failure must never propagate")

	settled, _ := store.GetBill(ctx, bill.ID)
	assert.Equal(t, billing.StatusPaid, settled.Status)
}
