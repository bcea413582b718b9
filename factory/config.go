/*
Package factory provides JSON to Go configuration conversion.

PURPOSE:
  Converts the utility's JSON settings document - a single read-mostly
  document holding every rate percentage, tier table, grace period, penalty
  rate, and reward parameter - into billing.RateConfig, billing.BillingConfig,
  and billing.RewardConfig. This enables tariff changes without code changes:
  admin staff edit the settings document, and the factory builds the proper
  Go structs.

MISSING FIELDS:
  A missing or zero field is never an error; the resulting config falls
  back to the built-in defaults field by field (Normalized()). Only a
  malformed document or a broken tier table is rejected.

JSON SCHEMA:
  {
    "rates": {
      "fcda_rate": 0.0126,
      "environmental_rate": 0.20,
      "sewerage_commercial_rate": 0.30,
      "government_tax_rate": 0.02,
      "vat_rate": 0.12,
      "flat_unit_rate": 52.85,
      "meter_fees": {"1/2": 1.50, "3/4": 2.00},
      "default_meter_size": "1/2",
      "tiers": {
        "residential": [
          {"upper_bound": 10, "fixed_fee": 195.49},
          {"upper_bound": 20, "unit_rate": 23.82},
          {"unit_rate": 91.34}
        ]
      }
    },
    "billing": {"grace_period_days": 15, "penalty_rate": 0.02, "discount_rate": 0.05},
    "rewards": {
      "enabled": true,
      "points_per_currency_unit": 0.01,
      "early_payment_days_threshold": 7,
      "early_payment_bonus_points": 10
    }
  }

SEE ALSO:
  - billing/config.go: Config types, defaults, Normalized()
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/clearflow/billing-engine/billing"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// SettingsJSON is the JSON representation of the settings document.
type SettingsJSON struct {
	Rates   RatesJSON   `json:"rates"`
	Billing BillingJSON `json:"billing"`
	Rewards RewardsJSON `json:"rewards"`
}

type RatesJSON struct {
	FCDARate                float64               `json:"fcda_rate"`
	EnvironmentalRate       float64               `json:"environmental_rate"`
	SewerageResidentialRate float64               `json:"sewerage_residential_rate"`
	SewerageCommercialRate  float64               `json:"sewerage_commercial_rate"`
	GovernmentTaxRate       float64               `json:"government_tax_rate"`
	VATRate                 float64               `json:"vat_rate"`
	FlatUnitRate            float64               `json:"flat_unit_rate"`
	MeterFees               map[string]float64    `json:"meter_fees"`
	DefaultMeterSize        string                `json:"default_meter_size"`
	Tiers                   map[string][]TierJSON `json:"tiers"`
}

type TierJSON struct {
	UpperBound float64 `json:"upper_bound,omitempty"` // 0 = unbounded (last tier only)
	UnitRate   float64 `json:"unit_rate,omitempty"`
	FixedFee   float64 `json:"fixed_fee,omitempty"` // first tier only
}

type BillingJSON struct {
	GracePeriodDays int     `json:"grace_period_days"`
	PenaltyRate     float64 `json:"penalty_rate"`
	DiscountRate    float64 `json:"discount_rate"`
}

type RewardsJSON struct {
	Enabled                   bool    `json:"enabled"`
	PointsPerCurrencyUnit     float64 `json:"points_per_currency_unit"`
	EarlyPaymentDaysThreshold int     `json:"early_payment_days_threshold"`
	EarlyPaymentBonusPoints   float64 `json:"early_payment_bonus_points"`
}

// =============================================================================
// FACTORY
// =============================================================================

type ConfigFactory struct{}

func NewConfigFactory() *ConfigFactory {
	return &ConfigFactory{}
}

// Parse converts the settings document into the three engine configs,
// with built-in defaults filled for every missing field.
func (f *ConfigFactory) Parse(data []byte) (billing.RateConfig, billing.BillingConfig, billing.RewardConfig, error) {
	var doc SettingsJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return billing.RateConfig{}, billing.BillingConfig{}, billing.RewardConfig{},
			fmt.Errorf("invalid settings document: %w", err)
	}

	rates, err := f.buildRates(doc.Rates)
	if err != nil {
		return billing.RateConfig{}, billing.BillingConfig{}, billing.RewardConfig{}, err
	}

	billingCfg := billing.BillingConfig{
		GracePeriodDays: doc.Billing.GracePeriodDays,
		PenaltyRate:     decimal.NewFromFloat(doc.Billing.PenaltyRate),
		DiscountRate:    decimal.NewFromFloat(doc.Billing.DiscountRate),
	}.Normalized()

	rewardCfg := billing.RewardConfig{
		Enabled:                   doc.Rewards.Enabled,
		PointsPerCurrencyUnit:     decimal.NewFromFloat(doc.Rewards.PointsPerCurrencyUnit),
		EarlyPaymentDaysThreshold: doc.Rewards.EarlyPaymentDaysThreshold,
		EarlyPaymentBonusPoints:   decimal.NewFromFloat(doc.Rewards.EarlyPaymentBonusPoints),
	}.Normalized()

	return rates, billingCfg, rewardCfg, nil
}

func (f *ConfigFactory) buildRates(r RatesJSON) (billing.RateConfig, error) {
	cfg := billing.RateConfig{
		FCDARate:                decimal.NewFromFloat(r.FCDARate),
		EnvironmentalRate:       decimal.NewFromFloat(r.EnvironmentalRate),
		SewerageResidentialRate: decimal.NewFromFloat(r.SewerageResidentialRate),
		SewerageCommercialRate:  decimal.NewFromFloat(r.SewerageCommercialRate),
		GovernmentTaxRate:       decimal.NewFromFloat(r.GovernmentTaxRate),
		VATRate:                 decimal.NewFromFloat(r.VATRate),
		FlatUnitRate:            decimal.NewFromFloat(r.FlatUnitRate),
		DefaultMeterSize:        r.DefaultMeterSize,
	}

	if len(r.MeterFees) > 0 {
		cfg.MeterFees = make(map[string]decimal.Decimal, len(r.MeterFees))
		for size, fee := range r.MeterFees {
			cfg.MeterFees[size] = decimal.NewFromFloat(fee)
		}
	}

	if len(r.Tiers) > 0 {
		cfg.Tiers = make(map[billing.ServiceClass][]billing.Tier, len(r.Tiers))
		for class, tiers := range r.Tiers {
			built, err := buildTierTable(class, tiers)
			if err != nil {
				return billing.RateConfig{}, err
			}
			cfg.Tiers[billing.ServiceClass(class)] = built
		}
	}

	return cfg.Normalized(), nil
}

// buildTierTable validates the tier invariant: strictly increasing bounds,
// unbounded last tier, fixed fee only on the first.
func buildTierTable(class string, tiers []TierJSON) ([]billing.Tier, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("tier table for %q is empty", class)
	}

	built := make([]billing.Tier, 0, len(tiers))
	prev := 0.0
	for i, t := range tiers {
		last := i == len(tiers)-1
		if last && t.UpperBound != 0 {
			return nil, fmt.Errorf("tier table for %q: last tier must be unbounded", class)
		}
		if !last && t.UpperBound <= prev {
			return nil, fmt.Errorf("tier table for %q: bounds must be strictly increasing", class)
		}
		if i > 0 && t.FixedFee != 0 {
			return nil, fmt.Errorf("tier table for %q: only the first tier carries a fixed fee", class)
		}
		built = append(built, billing.Tier{
			UpperBound: decimal.NewFromFloat(t.UpperBound),
			UnitRate:   decimal.NewFromFloat(t.UnitRate),
			FixedFee:   decimal.NewFromFloat(t.FixedFee),
		})
		prev = t.UpperBound
	}
	return built, nil
}
