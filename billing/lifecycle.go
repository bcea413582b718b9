/*
lifecycle.go - Bill generation

PURPOSE:
  Orchestrates creating one bill from the account's two most recent meter
  readings: prices consumption through the rate engine, applies the
  senior/PWD discount, carries forward unpaid balances, computes the due
  date, and persists the new bill atomically.

IDEMPOTENCY:
  Exactly one bill may exist per (account, period). Generation checks for
  an existing bill before pricing, and the store's conditional insert
  enforces the same invariant at write time, so a retry or a race between
  two generation attempts yields one bill and one ErrDuplicateBill.

PENALTY AT GENERATION:
  PenaltyAmount starts Unevaluated. It is never pre-computed here - only
  at settlement, or recomputed on demand for display (penalty.go).

SEE ALSO:
  - rates.go: Pricing
  - settlement.go: The Unpaid -> Paid transition
*/
package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Generator creates bills. All dependencies are explicit; nothing is read
// from ambient state.
type Generator struct {
	Readings ReadingStore
	Bills    BillStore
	Rates    RateConfig
	Config   BillingConfig
	Clock    Clock
}

// GenerateBill prices and persists a new Unpaid bill for the profile's
// account, returning the new bill's ID.
//
// Preconditions, checked in order:
//  1. At least two persisted readings (ErrInsufficientReadings)
//  2. Non-negative consumption (ErrNegativeConsumption)
//  3. No existing bill for the period (ErrDuplicateBill)
func (g *Generator) GenerateBill(ctx context.Context, profile CustomerProfile) (BillID, error) {
	cfg := g.Config.Normalized()
	accountID := profile.AccountID

	readings, err := g.Readings.LatestReadings(ctx, accountID, 2)
	if err != nil {
		return "", fmt.Errorf("loading readings for %s: %w", accountID, err)
	}
	if len(readings) < 2 {
		return "", fmt.Errorf("account %s has %d readings: %w",
			accountID, len(readings), ErrInsufficientReadings)
	}

	latest, previous := readings[0], readings[1]
	consumption := latest.Value.Sub(previous.Value)
	if consumption.IsNegative() {
		return "", &NegativeConsumptionError{
			AccountID: accountID,
			Previous:  previous.Value,
			Current:   latest.Value,
		}
	}

	period := PeriodLabel(latest.ReadAt)
	if existing, err := g.Bills.BillForPeriod(ctx, accountID, period); err == nil {
		return "", &DuplicateBillError{AccountID: accountID, Period: period, Existing: existing.ID}
	} else if !IsNotFound(err) {
		return "", fmt.Errorf("checking existing bill for %s %s: %w", accountID, period, err)
	}

	charges := ComputeCharges(consumption, profile.ServiceClass, profile.MeterSize, g.Rates)

	// Discount applies only once verified, never speculatively.
	discount := decimal.Zero
	if profile.DiscountStatus == DiscountVerified {
		discount = round2(charges.Total.Mul(cfg.DiscountRate))
	}

	// Carry-forward: normally at most one unpaid bill exists, but the sum
	// is taken defensively over all of them.
	unpaid, err := g.Bills.BillsByStatus(ctx, accountID, StatusUnpaid)
	if err != nil {
		return "", fmt.Errorf("loading unpaid bills for %s: %w", accountID, err)
	}
	carryForward := decimal.Zero
	for _, b := range unpaid {
		carryForward = carryForward.Add(b.TotalAmountDue)
	}

	billDate := g.clock().Now()
	id := BillID(uuid.NewString())

	bill := Bill{
		ID:                   id,
		AccountID:            accountID,
		InvoiceNumber:        InvoiceNumber(id, billDate),
		BillingPeriod:        period,
		BillDate:             billDate,
		DueDate:              DueDate(billDate, cfg.GracePeriodDays),
		PreviousReading:      previous.Value,
		CurrentReading:       latest.Value,
		Consumption:          consumption,
		Charges:              charges,
		PreviousUnpaidAmount: round2(carryForward),
		DiscountAmount:       discount,
		Penalty:              PenaltyUnevaluated(),
		TotalAmountDue:       round2(charges.Total.Sub(discount).Add(carryForward)),
		Status:               StatusUnpaid,
	}

	if err := g.Bills.InsertBill(ctx, bill); err != nil {
		return "", fmt.Errorf("persisting bill %s: %w", id, err)
	}
	return id, nil
}

func (g *Generator) clock() Clock {
	if g.Clock != nil {
		return g.Clock
	}
	return SystemClock{}
}
