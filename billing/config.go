/*
config.go - Rate, billing, and reward configuration

PURPOSE:
  Configuration is supplied wholesale to every calculation call. The engine
  never mutates it and never reads ambient state. A missing field means
  "use the built-in default", never an error: these values feed read-only
  displays where a blocked render is worse than a defaulted number.

TIER TABLE INVARIANT:
  Tiers are strictly increasing in UpperBound, the last tier is unbounded
  (UpperBound zero), and only the first tier carries a fixed fee.

SEE ALSO:
  - rates.go: Consumes RateConfig
  - factory/: Builds these configs from the JSON settings document
*/
package billing

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// TIERS
// =============================================================================

// Tier is one consumption block of an increasing-block tariff.
// UpperBound is cumulative consumption (inclusive); zero means unbounded.
// FixedFee is only meaningful on the first tier and covers it entirely.
type Tier struct {
	UpperBound decimal.Decimal
	UnitRate   decimal.Decimal
	FixedFee   decimal.Decimal
}

// =============================================================================
// RATE CONFIG
// =============================================================================

type RateConfig struct {
	// Tier tables keyed by service class. Flat-rate classes are priced by
	// FlatUnitRate instead.
	Tiers map[ServiceClass][]Tier

	// Flat per-unit rate for industrial/personnel classes.
	FlatUnitRate decimal.Decimal

	// Maintenance fee by meter size. Unknown sizes fall back to the
	// smallest-meter fee (DefaultMeterSize).
	MeterFees        map[string]decimal.Decimal
	DefaultMeterSize string

	// Surcharge chain rates, applied multiplicatively and cumulatively.
	FCDARate               decimal.Decimal
	EnvironmentalRate      decimal.Decimal
	SewerageResidentialRate decimal.Decimal
	SewerageCommercialRate  decimal.Decimal
	GovernmentTaxRate      decimal.Decimal
	VATRate                decimal.Decimal
}

// =============================================================================
// BILLING CONFIG
// =============================================================================

type BillingConfig struct {
	GracePeriodDays int
	PenaltyRate     decimal.Decimal
	DiscountRate    decimal.Decimal
}

// =============================================================================
// REWARD CONFIG
// =============================================================================

type RewardConfig struct {
	Enabled                   bool
	PointsPerCurrencyUnit     decimal.Decimal
	EarlyPaymentDaysThreshold int
	EarlyPaymentBonusPoints   decimal.Decimal
}

// =============================================================================
// BUILT-IN DEFAULTS
// =============================================================================

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// DefaultRateConfig returns the built-in tariff.
func DefaultRateConfig() RateConfig {
	residential := []Tier{
		{UpperBound: dec("10"), UnitRate: decimal.Zero, FixedFee: dec("195.49")},
		{UpperBound: dec("20"), UnitRate: dec("23.82")},
		{UpperBound: dec("30"), UnitRate: dec("45.17")},
		{UpperBound: dec("40"), UnitRate: dec("68.09")},
		{UnitRate: dec("91.34")},
	}
	lowIncome := []Tier{
		{UpperBound: dec("10"), UnitRate: decimal.Zero, FixedFee: dec("97.75")},
		{UpperBound: dec("20"), UnitRate: dec("11.91")},
		{UpperBound: dec("30"), UnitRate: dec("22.59")},
		{UnitRate: dec("45.67")},
	}
	semiBusiness := []Tier{
		{UpperBound: dec("10"), UnitRate: decimal.Zero, FixedFee: dec("390.98")},
		{UpperBound: dec("20"), UnitRate: dec("47.64")},
		{UpperBound: dec("30"), UnitRate: dec("90.34")},
		{UnitRate: dec("136.18")},
	}
	commercial := []Tier{
		{UpperBound: dec("10"), UnitRate: decimal.Zero, FixedFee: dec("586.47")},
		{UpperBound: dec("20"), UnitRate: dec("71.46")},
		{UpperBound: dec("30"), UnitRate: dec("135.51")},
		{UnitRate: dec("204.27")},
	}

	return RateConfig{
		Tiers: map[ServiceClass][]Tier{
			ClassResidential:          residential,
			ClassResidentialLowIncome: lowIncome,
			ClassSemiBusiness:         semiBusiness,
			ClassCommercial:           commercial,
			ClassAdmin:                commercial,
		},
		FlatUnitRate: dec("52.85"),
		MeterFees: map[string]decimal.Decimal{
			"1/2":   dec("1.50"),
			"3/4":   dec("2.00"),
			"1":     dec("3.00"),
			"1-1/2": dec("4.00"),
			"2":     dec("6.00"),
		},
		DefaultMeterSize:        "1/2",
		FCDARate:                dec("0.0126"),
		EnvironmentalRate:       dec("0.20"),
		SewerageResidentialRate: dec("0.00"),
		SewerageCommercialRate:  dec("0.30"),
		GovernmentTaxRate:       dec("0.02"),
		VATRate:                 dec("0.12"),
	}
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		GracePeriodDays: 15,
		PenaltyRate:     dec("0.02"),
		DiscountRate:    dec("0.05"),
	}
}

func DefaultRewardConfig() RewardConfig {
	return RewardConfig{
		Enabled:                   true,
		PointsPerCurrencyUnit:     dec("0.01"),
		EarlyPaymentDaysThreshold: 7,
		EarlyPaymentBonusPoints:   dec("10"),
	}
}

// =============================================================================
// MISSING-FIELD FALLBACK
// =============================================================================

// Normalized fills any missing field from the built-in defaults.
// A zero-value RateConfig normalizes to DefaultRateConfig().
func (c RateConfig) Normalized() RateConfig {
	def := DefaultRateConfig()
	if len(c.Tiers) == 0 {
		c.Tiers = def.Tiers
	}
	if c.FlatUnitRate.IsZero() {
		c.FlatUnitRate = def.FlatUnitRate
	}
	if len(c.MeterFees) == 0 {
		c.MeterFees = def.MeterFees
		c.DefaultMeterSize = def.DefaultMeterSize
	}
	if c.DefaultMeterSize == "" {
		c.DefaultMeterSize = def.DefaultMeterSize
	}
	if c.FCDARate.IsZero() {
		c.FCDARate = def.FCDARate
	}
	if c.EnvironmentalRate.IsZero() {
		c.EnvironmentalRate = def.EnvironmentalRate
	}
	if c.SewerageCommercialRate.IsZero() {
		c.SewerageCommercialRate = def.SewerageCommercialRate
	}
	if c.GovernmentTaxRate.IsZero() {
		c.GovernmentTaxRate = def.GovernmentTaxRate
	}
	if c.VATRate.IsZero() {
		c.VATRate = def.VATRate
	}
	return c
}

// Normalized fills any missing field from the built-in defaults.
func (c BillingConfig) Normalized() BillingConfig {
	def := DefaultBillingConfig()
	if c.GracePeriodDays <= 0 {
		c.GracePeriodDays = def.GracePeriodDays
	}
	if c.PenaltyRate.IsZero() {
		c.PenaltyRate = def.PenaltyRate
	}
	if c.DiscountRate.IsZero() {
		c.DiscountRate = def.DiscountRate
	}
	return c
}

// Normalized fills any missing field from the built-in defaults.
// Enabled is respected as-is: a disabled program stays disabled.
func (c RewardConfig) Normalized() RewardConfig {
	def := DefaultRewardConfig()
	if c.PointsPerCurrencyUnit.IsZero() {
		c.PointsPerCurrencyUnit = def.PointsPerCurrencyUnit
	}
	if c.EarlyPaymentDaysThreshold <= 0 {
		c.EarlyPaymentDaysThreshold = def.EarlyPaymentDaysThreshold
	}
	if c.EarlyPaymentBonusPoints.IsZero() {
		c.EarlyPaymentBonusPoints = def.EarlyPaymentBonusPoints
	}
	return c
}
