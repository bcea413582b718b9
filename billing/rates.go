/*
rates.go - Tiered-rate charge calculation

PURPOSE:
  Pure pricing of one period's consumption. No side effects, no storage,
  never returns an error: invalid input degrades to zero because the
  output feeds read-only displays.

ALGORITHM (increasing-block tariff):
  The first tier contributes its fixed fee once (for any consumption > 0)
  and consumes its own bound from the running total. Each subsequent tier
  charges min(remaining, tier width) x tier unit rate, where tier width is
  tier.UpperBound - previousTier.UpperBound. A boundary value is billed
  entirely within the lower tier: consuming exactly a tier's upper bound
  fully consumes that tier and nothing spills to the next.

SURCHARGE CHAIN (fixed order):
  fcda          = basic x fcdaRate
  waterCharge   = basic + fcda
  environmental = waterCharge x ecRate
  sewerage      = waterCharge x (commercial | residential rate)
  subtotal      = waterCharge + environmental + sewerage + maintenanceFee
  govTax        = subtotal x govTaxRate
  vat           = subtotal x vatRate        (on the pre-tax subtotal)
  total         = subtotal + govTax + vat

ROUNDING:
  Each output field is rounded to 2 decimal places at the end; intermediate
  values are carried unrounded to avoid compounding rounding error.

SEE ALSO:
  - config.go: RateConfig and tier table invariants
  - lifecycle.go: The one caller that prices new bills
*/
package billing

import (
	"github.com/shopspring/decimal"
)

// ComputeCharges prices the given consumption for a service class and meter
// size under the supplied configuration. Negative or invalid consumption is
// coerced to zero; unknown meter sizes fall back to the smallest-meter fee.
func ComputeCharges(consumption decimal.Decimal, class ServiceClass, meterSize string, cfg RateConfig) ChargeBreakdown {
	cfg = cfg.Normalized()

	if consumption.IsNegative() {
		consumption = decimal.Zero
	}

	var basic decimal.Decimal
	if class.IsFlatRate() {
		basic = consumption.Mul(cfg.FlatUnitRate)
	} else {
		basic = tieredCharge(consumption, cfg.tiersFor(class))
	}

	maintenance, ok := cfg.MeterFees[meterSize]
	if !ok {
		maintenance = cfg.MeterFees[cfg.DefaultMeterSize]
	}

	fcda := basic.Mul(cfg.FCDARate)
	water := basic.Add(fcda)
	environmental := water.Mul(cfg.EnvironmentalRate)

	sewerageRate := cfg.SewerageResidentialRate
	if class.IsCommercialRate() {
		sewerageRate = cfg.SewerageCommercialRate
	}
	sewerage := water.Mul(sewerageRate)

	subtotal := water.Add(environmental).Add(sewerage).Add(maintenance)
	govTax := subtotal.Mul(cfg.GovernmentTaxRate)
	vat := subtotal.Mul(cfg.VATRate)
	total := subtotal.Add(govTax).Add(vat)

	return ChargeBreakdown{
		Consumption:         consumption,
		BasicCharge:         round2(basic),
		FCDA:                round2(fcda),
		WaterCharge:         round2(water),
		EnvironmentalCharge: round2(environmental),
		SewerageCharge:      round2(sewerage),
		MaintenanceFee:      round2(maintenance),
		Subtotal:            round2(subtotal),
		GovernmentTax:       round2(govTax),
		VAT:                 round2(vat),
		Total:               round2(total),
	}
}

// tiersFor selects the tier table for a class, falling back to residential
// for classes without their own table.
func (c RateConfig) tiersFor(class ServiceClass) []Tier {
	if tiers, ok := c.Tiers[class]; ok && len(tiers) > 0 {
		return tiers
	}
	return c.Tiers[ClassResidential]
}

// tieredCharge walks the tier table accumulating the basic charge.
func tieredCharge(consumption decimal.Decimal, tiers []Tier) decimal.Decimal {
	if len(tiers) == 0 || !consumption.IsPositive() {
		return decimal.Zero
	}

	charge := decimal.Zero
	remaining := consumption

	// First tier: fixed fee covers the whole block.
	first := tiers[0]
	charge = charge.Add(first.FixedFee)
	remaining = remaining.Sub(first.UpperBound)
	prevBound := first.UpperBound

	for _, tier := range tiers[1:] {
		if !remaining.IsPositive() {
			break
		}
		if tier.UpperBound.IsZero() {
			// Unbounded top tier takes everything left.
			charge = charge.Add(remaining.Mul(tier.UnitRate))
			remaining = decimal.Zero
			break
		}
		width := tier.UpperBound.Sub(prevBound)
		used := decimal.Min(remaining, width)
		charge = charge.Add(used.Mul(tier.UnitRate))
		remaining = remaining.Sub(used)
		prevBound = tier.UpperBound
	}

	return charge
}
