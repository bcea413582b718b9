package billing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/clearflow/billing-engine/billing"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func assertDecimalEqual(t *testing.T, expected, actual decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, expected.Equal(actual), "expected %s, got %s %v", expected, actual, msgAndArgs)
}

// =============================================================================
// TIERED PRICING
// =============================================================================

func TestComputeCharges_ResidentialScenario(t *testing.T) {
	// GIVEN: Residential account, consumption 25 m3, default tariff
	// WHEN: Pricing the consumption
	// THEN: basic = 195.49 (fixed fee, 0-10) + 23.82x10 (10-20) + 45.17x5 (20-25)

	charges := billing.ComputeCharges(d("25"), billing.ClassResidential, "1/2", billing.DefaultRateConfig())

	assertDecimalEqual(t, d("659.54"), charges.BasicCharge)
	assertDecimalEqual(t, d("8.31"), charges.FCDA)
	assertDecimalEqual(t, d("667.85"), charges.WaterCharge)
	assertDecimalEqual(t, d("133.57"), charges.EnvironmentalCharge)
	assertDecimalEqual(t, d("0.00"), charges.SewerageCharge)
	assertDecimalEqual(t, d("1.50"), charges.MaintenanceFee)
	assertDecimalEqual(t, d("802.92"), charges.Subtotal)
	assertDecimalEqual(t, d("16.06"), charges.GovernmentTax)
	assertDecimalEqual(t, d("96.35"), charges.VAT)
	assertDecimalEqual(t, d("915.33"), charges.Total)
}

func TestComputeCharges_FirstTierOnly(t *testing.T) {
	// GIVEN: Consumption inside the first tier
	// THEN: Basic charge is exactly the fixed fee

	for _, c := range []string{"0.5", "5", "10"} {
		charges := billing.ComputeCharges(d(c), billing.ClassResidential, "1/2", billing.DefaultRateConfig())
		assertDecimalEqual(t, d("195.49"), charges.BasicCharge, "consumption "+c)
	}
}

func TestComputeCharges_ZeroConsumption(t *testing.T) {
	// The first-tier fixed fee applies only for consumption > 0;
	// a zero-consumption bill still carries the maintenance fee.

	charges := billing.ComputeCharges(decimal.Zero, billing.ClassResidential, "1/2", billing.DefaultRateConfig())
	assertDecimalEqual(t, decimal.Zero, charges.BasicCharge)
	assertDecimalEqual(t, d("1.50"), charges.MaintenanceFee)
}

func TestComputeCharges_NegativeCoercedToZero(t *testing.T) {
	// The engine never errors: invalid consumption degrades to zero.

	charges := billing.ComputeCharges(d("-3"), billing.ClassResidential, "1/2", billing.DefaultRateConfig())
	assertDecimalEqual(t, decimal.Zero, charges.Consumption)
	assertDecimalEqual(t, decimal.Zero, charges.BasicCharge)
}

func TestComputeCharges_TierBoundaryBilledInLowerTier(t *testing.T) {
	// GIVEN: Consumption exactly at a tier's upper bound
	// THEN: The boundary unit bills entirely within that tier, and the next
	//       unit spills to the next tier at its rate (continuity)

	cfg := billing.DefaultRateConfig()

	at20 := billing.ComputeCharges(d("20"), billing.ClassResidential, "1/2", cfg)
	assertDecimalEqual(t, d("433.69"), at20.BasicCharge) // 195.49 + 23.82x10

	eps := d("0.25")
	above := billing.ComputeCharges(d("20").Add(eps), billing.ClassResidential, "1/2", cfg)
	expected := at20.BasicCharge.Add(eps.Mul(d("45.17")))
	assertDecimalEqual(t, expected.Round(2), above.BasicCharge)
}

func TestComputeCharges_MonotonicInConsumption(t *testing.T) {
	// For all c >= 0, the total is monotonically non-decreasing in c.

	cfg := billing.DefaultRateConfig()
	for _, class := range []billing.ServiceClass{
		billing.ClassResidential,
		billing.ClassSemiBusiness,
		billing.ClassCommercial,
		billing.ClassIndustrial,
	} {
		prev := decimal.Zero
		for c := decimal.Zero; c.LessThanOrEqual(d("60")); c = c.Add(d("0.5")) {
			total := billing.ComputeCharges(c, class, "1/2", cfg).Total
			if total.LessThan(prev) {
				t.Fatalf("%s: total decreased at consumption %s: %s < %s", class, c, total, prev)
			}
			prev = total
		}
	}
}

func TestComputeCharges_BreakdownSumsToTotal(t *testing.T) {
	// subtotal = water + environmental + sewerage + maintenance
	// total = subtotal + govTax + vat, within 0.01 for rounding.

	tolerance := d("0.01")
	for _, c := range []string{"3", "17", "25", "42", "99"} {
		for _, class := range []billing.ServiceClass{billing.ClassResidential, billing.ClassCommercial} {
			ch := billing.ComputeCharges(d(c), class, "3/4", billing.DefaultRateConfig())

			subtotal := ch.WaterCharge.Add(ch.EnvironmentalCharge).Add(ch.SewerageCharge).Add(ch.MaintenanceFee)
			assert.True(t, ch.Subtotal.Sub(subtotal).Abs().LessThanOrEqual(tolerance),
				"subtotal mismatch at c=%s class=%s: %s vs %s", c, class, ch.Subtotal, subtotal)

			total := ch.Subtotal.Add(ch.GovernmentTax).Add(ch.VAT)
			assert.True(t, ch.Total.Sub(total).Abs().LessThanOrEqual(tolerance),
				"total mismatch at c=%s class=%s: %s vs %s", c, class, ch.Total, total)
		}
	}
}

// =============================================================================
// CLASS AND METER HANDLING
// =============================================================================

func TestComputeCharges_IndustrialFlatRate(t *testing.T) {
	// Industrial classes use a flat per-unit rate with no tiering.

	charges := billing.ComputeCharges(d("25"), billing.ClassIndustrial, "2", billing.DefaultRateConfig())
	assertDecimalEqual(t, d("25").Mul(d("52.85")).Round(2), charges.BasicCharge)
}

func TestComputeCharges_CommercialSewerageRate(t *testing.T) {
	// Commercial/industrial/admin classes pay the commercial sewerage rate.

	cfg := billing.DefaultRateConfig()
	commercial := billing.ComputeCharges(d("25"), billing.ClassCommercial, "1", cfg)
	assert.True(t, commercial.SewerageCharge.IsPositive(), "commercial sewerage should be non-zero")

	residential := billing.ComputeCharges(d("25"), billing.ClassResidential, "1", cfg)
	assertDecimalEqual(t, decimal.Zero, residential.SewerageCharge)
}

func TestComputeCharges_UnknownMeterSizeFallsBack(t *testing.T) {
	// Unknown meter sizes fall back to the smallest-meter fee.

	known := billing.ComputeCharges(d("25"), billing.ClassResidential, "1/2", billing.DefaultRateConfig())
	unknown := billing.ComputeCharges(d("25"), billing.ClassResidential, "7/8", billing.DefaultRateConfig())
	assertDecimalEqual(t, known.MaintenanceFee, unknown.MaintenanceFee)
}

func TestComputeCharges_EmptyConfigUsesDefaults(t *testing.T) {
	// A zero-value config normalizes to the built-in tariff.

	fromEmpty := billing.ComputeCharges(d("25"), billing.ClassResidential, "1/2", billing.RateConfig{})
	fromDefault := billing.ComputeCharges(d("25"), billing.ClassResidential, "1/2", billing.DefaultRateConfig())
	assertDecimalEqual(t, fromDefault.Total, fromEmpty.Total)
}
