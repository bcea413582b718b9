package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearflow/billing-engine/billing"
	"github.com/clearflow/billing-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newGenerator(store *memory.Store, now time.Time) *billing.Generator {
	return &billing.Generator{
		Readings: store,
		Bills:    store,
		Rates:    billing.DefaultRateConfig(),
		Config:   billing.DefaultBillingConfig(),
		Clock:    billing.FixedClock{T: now},
	}
}

func residentialProfile() billing.CustomerProfile {
	return billing.CustomerProfile{
		AccountID:      "acct-1",
		Name:           "Maria Santos",
		ServiceClass:   billing.ClassResidential,
		MeterSize:      "1/2",
		DiscountStatus: billing.DiscountNone,
	}
}

func addReading(t *testing.T, store *memory.Store, accountID string, value string, readAt time.Time) {
	t.Helper()
	err := store.AppendReading(context.Background(), billing.MeterReading{
		AccountID: billing.AccountID(accountID),
		Value:     d(value),
		ReadAt:    readAt,
	})
	require.NoError(t, err)
}

// =============================================================================
// GENERATION
// =============================================================================

func TestGenerateBill_PricesConsumptionFromLastTwoReadings(t *testing.T) {
	// GIVEN: Readings 1000 (July) and 1025 (August)
	// WHEN: Generating the August bill
	// THEN: Consumption is 25, priced through the tariff, due in 15 days

	store := memory.New()
	ctx := context.Background()
	now := time.Date(2026, time.August, 15, 9, 0, 0, 0, time.UTC)

	addReading(t, store, "acct-1", "1000", time.Date(2026, time.July, 14, 0, 0, 0, 0, time.UTC))
	addReading(t, store, "acct-1", "1025", time.Date(2026, time.August, 14, 0, 0, 0, 0, time.UTC))

	gen := newGenerator(store, now)
	billID, err := gen.GenerateBill(ctx, residentialProfile())
	require.NoError(t, err)

	bill, err := store.GetBill(ctx, billID)
	require.NoError(t, err)

	assert.Equal(t, "2026-08", bill.BillingPeriod)
	assert.Equal(t, billing.StatusUnpaid, bill.Status)
	assertDecimalEqual(t, d("25"), bill.Consumption)
	assertDecimalEqual(t, d("659.54"), bill.Charges.BasicCharge)
	assertDecimalEqual(t, d("915.33"), bill.TotalAmountDue)
	assert.False(t, bill.Penalty.Snapshotted, "penalty is never pre-computed at generation")
	assert.Equal(t, now.AddDate(0, 0, 15), bill.DueDate)
	assert.NotEmpty(t, bill.InvoiceNumber)
	assert.Contains(t, bill.InvoiceNumber, "INV-202608-")
}

func TestGenerateBill_InsufficientReadings(t *testing.T) {
	store := memory.New()
	addReading(t, store, "acct-1", "1000", time.Date(2026, time.August, 14, 0, 0, 0, 0, time.UTC))

	gen := newGenerator(store, time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC))
	_, err := gen.GenerateBill(context.Background(), residentialProfile())

	assert.ErrorIs(t, err, billing.ErrInsufficientReadings)
}

// backwardsReadings serves a reading pair the store-level monotonic guard
// would normally never let through, to exercise the generator's own check.
type backwardsReadings struct{}

func (backwardsReadings) AppendReading(context.Context, billing.MeterReading) error { return nil }

func (backwardsReadings) LatestReadings(_ context.Context, accountID billing.AccountID, _ int) ([]billing.MeterReading, error) {
	return []billing.MeterReading{
		{AccountID: accountID, Value: d("1028"), ReadAt: time.Date(2026, time.August, 14, 0, 0, 0, 0, time.UTC)},
		{AccountID: accountID, Value: d("1030"), ReadAt: time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)},
	}, nil
}

func TestGenerateBill_NegativeConsumptionRejected(t *testing.T) {
	// A reading pair that moves backwards is rejected, not clamped.

	store := memory.New()
	gen := newGenerator(store, time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC))
	gen.Readings = backwardsReadings{}

	_, err := gen.GenerateBill(context.Background(), residentialProfile())

	assert.ErrorIs(t, err, billing.ErrNegativeConsumption)
	var detail *billing.NegativeConsumptionError
	assert.ErrorAs(t, err, &detail)
}

func TestGenerateBill_DuplicatePeriodIdempotent(t *testing.T) {
	// GIVEN: A bill already generated for the period
	// WHEN: Generating again (retry, double-click)
	// THEN: Second call fails with ErrDuplicateBill, exactly one bill persisted

	store := memory.New()
	ctx := context.Background()

	addReading(t, store, "acct-1", "1000", time.Date(2026, time.July, 14, 0, 0, 0, 0, time.UTC))
	addReading(t, store, "acct-1", "1025", time.Date(2026, time.August, 14, 0, 0, 0, 0, time.UTC))

	gen := newGenerator(store, time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC))

	first, err := gen.GenerateBill(ctx, residentialProfile())
	require.NoError(t, err)

	_, err = gen.GenerateBill(ctx, residentialProfile())
	assert.ErrorIs(t, err, billing.ErrDuplicateBill)

	unpaid, err := store.BillsByStatus(ctx, "acct-1", billing.StatusUnpaid)
	require.NoError(t, err)
	require.Len(t, unpaid, 1)
	assert.Equal(t, first, unpaid[0].ID)
}

// =============================================================================
// DISCOUNT
// =============================================================================

func TestGenerateBill_VerifiedDiscountApplied(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	addReading(t, store, "acct-1", "1000", time.Date(2026, time.July, 14, 0, 0, 0, 0, time.UTC))
	addReading(t, store, "acct-1", "1025", time.Date(2026, time.August, 14, 0, 0, 0, 0, time.UTC))

	profile := residentialProfile()
	profile.DiscountStatus = billing.DiscountVerified

	gen := newGenerator(store, time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC))
	billID, err := gen.GenerateBill(ctx, profile)
	require.NoError(t, err)

	bill, _ := store.GetBill(ctx, billID)
	expectedDiscount := d("915.33").Mul(d("0.05")).Round(2) // 45.77
	assertDecimalEqual(t, expectedDiscount, bill.DiscountAmount)
	assertDecimalEqual(t, d("915.33").Sub(expectedDiscount), bill.TotalAmountDue)
}

func TestGenerateBill_PendingDiscountNotApplied(t *testing.T) {
	// Discount is never applied speculatively: pending yields nothing.

	store := memory.New()
	ctx := context.Background()

	addReading(t, store, "acct-1", "1000", time.Date(2026, time.July, 14, 0, 0, 0, 0, time.UTC))
	addReading(t, store, "acct-1", "1025", time.Date(2026, time.August, 14, 0, 0, 0, 0, time.UTC))

	profile := residentialProfile()
	profile.DiscountStatus = billing.DiscountPending

	gen := newGenerator(store, time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC))
	billID, err := gen.GenerateBill(ctx, profile)
	require.NoError(t, err)

	bill, _ := store.GetBill(ctx, billID)
	assertDecimalEqual(t, decimal.Zero, bill.DiscountAmount)
}

// =============================================================================
// CARRY-FORWARD
// =============================================================================

func TestGenerateBill_CarriesForwardUnpaidBalance(t *testing.T) {
	// GIVEN: An unpaid July bill of 500.00
	// WHEN: Generating August
	// THEN: previousUnpaidAmount = 500.00, folded into the new total

	store := memory.New()
	ctx := context.Background()

	require.NoError(t, store.InsertBill(ctx, billing.Bill{
		ID:             "bill-july",
		AccountID:      "acct-1",
		BillingPeriod:  "2026-07",
		BillDate:       time.Date(2026, time.July, 15, 0, 0, 0, 0, time.UTC),
		TotalAmountDue: d("500.00"),
		Status:         billing.StatusUnpaid,
	}))

	addReading(t, store, "acct-1", "1000", time.Date(2026, time.July, 14, 0, 0, 0, 0, time.UTC))
	addReading(t, store, "acct-1", "1025", time.Date(2026, time.August, 14, 0, 0, 0, 0, time.UTC))

	gen := newGenerator(store, time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC))
	billID, err := gen.GenerateBill(ctx, residentialProfile())
	require.NoError(t, err)

	bill, _ := store.GetBill(ctx, billID)
	assertDecimalEqual(t, d("500.00"), bill.PreviousUnpaidAmount)
	assertDecimalEqual(t, d("1415.33"), bill.TotalAmountDue)
}

func TestGenerateBill_PaidBillsNotCarriedForward(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	require.NoError(t, store.InsertBill(ctx, billing.Bill{
		ID:             "bill-july",
		AccountID:      "acct-1",
		BillingPeriod:  "2026-07",
		TotalAmountDue: d("500.00"),
		Status:         billing.StatusPaid,
	}))

	addReading(t, store, "acct-1", "1000", time.Date(2026, time.July, 14, 0, 0, 0, 0, time.UTC))
	addReading(t, store, "acct-1", "1025", time.Date(2026, time.August, 14, 0, 0, 0, 0, time.UTC))

	gen := newGenerator(store, time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC))
	billID, err := gen.GenerateBill(ctx, residentialProfile())
	require.NoError(t, err)

	bill, _ := store.GetBill(ctx, billID)
	assertDecimalEqual(t, decimal.Zero, bill.PreviousUnpaidAmount)
}
