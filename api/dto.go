/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract. Monetary
  amounts travel as strings to keep 2-decimal precision intact.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/clearflow/billing-engine/billing"
	"github.com/clearflow/billing-engine/rewards"
)

// =============================================================================
// ACCOUNT TYPES
// =============================================================================

type AccountDTO struct {
	AccountID      string `json:"account_id"`
	Name           string `json:"name"`
	ServiceClass   string `json:"service_class"`
	MeterSize      string `json:"meter_size"`
	DiscountStatus string `json:"discount_status"`
}

type CreateAccountRequest struct {
	AccountID      string `json:"account_id"`
	Name           string `json:"name"`
	ServiceClass   string `json:"service_class"`
	MeterSize      string `json:"meter_size"`
	DiscountStatus string `json:"discount_status"`
}

// =============================================================================
// READING TYPES
// =============================================================================

type SubmitReadingRequest struct {
	Value  float64 `json:"value"`
	ReadAt string  `json:"read_at,omitempty"` // RFC3339; defaults to now
	ReadBy string  `json:"read_by,omitempty"`
}

// =============================================================================
// BILL TYPES
// =============================================================================

type ChargeBreakdownDTO struct {
	Consumption         string `json:"consumption"`
	BasicCharge         string `json:"basic_charge"`
	FCDA                string `json:"fcda"`
	WaterCharge         string `json:"water_charge"`
	EnvironmentalCharge string `json:"environmental_charge"`
	SewerageCharge      string `json:"sewerage_charge"`
	MaintenanceFee      string `json:"maintenance_fee"`
	Subtotal            string `json:"subtotal"`
	GovernmentTax       string `json:"government_tax"`
	VAT                 string `json:"vat"`
	Total               string `json:"total"`
}

type PaymentDTO struct {
	PaidAt      string `json:"paid_at"`
	Method      string `json:"method"`
	Reference   string `json:"reference,omitempty"`
	AmountPaid  string `json:"amount_paid"`
	ProcessedBy string `json:"processed_by,omitempty"`
}

type BillDTO struct {
	ID                   string             `json:"id"`
	AccountID            string             `json:"account_id"`
	InvoiceNumber        string             `json:"invoice_number"`
	BillingPeriod        string             `json:"billing_period"`
	BillDate             string             `json:"bill_date"`
	DueDate              string             `json:"due_date"`
	PreviousReading      string             `json:"previous_reading"`
	CurrentReading       string             `json:"current_reading"`
	Consumption          string             `json:"consumption"`
	Charges              ChargeBreakdownDTO `json:"charges"`
	PreviousUnpaidAmount string             `json:"previous_unpaid_amount"`
	DiscountAmount       string             `json:"discount_amount"`
	PenaltyAmount        string             `json:"penalty_amount"`
	PenaltySnapshotted   bool               `json:"penalty_snapshotted"`
	DynamicPenalty       string             `json:"dynamic_penalty"`
	TotalAmountDue       string             `json:"total_amount_due"`
	AmountNowDue         string             `json:"amount_now_due"`
	Status               string             `json:"status"`
	Payment              *PaymentDTO        `json:"payment,omitempty"`
}

type SettlePaymentRequest struct {
	Method      string  `json:"method"`
	Reference   string  `json:"reference,omitempty"`
	AmountPaid  float64 `json:"amount_paid"`
	ProcessedBy string  `json:"processed_by,omitempty"`
}

// =============================================================================
// REWARDS TYPES
// =============================================================================

type RewardsDTO struct {
	AccountID string `json:"account_id"`
	Points    int64  `json:"points"`
	Tier      string `json:"tier"`
}

// =============================================================================
// ERROR RESPONSE
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toChargesDTO(c billing.ChargeBreakdown) ChargeBreakdownDTO {
	return ChargeBreakdownDTO{
		Consumption:         c.Consumption.String(),
		BasicCharge:         c.BasicCharge.StringFixed(2),
		FCDA:                c.FCDA.StringFixed(2),
		WaterCharge:         c.WaterCharge.StringFixed(2),
		EnvironmentalCharge: c.EnvironmentalCharge.StringFixed(2),
		SewerageCharge:      c.SewerageCharge.StringFixed(2),
		MaintenanceFee:      c.MaintenanceFee.StringFixed(2),
		Subtotal:            c.Subtotal.StringFixed(2),
		GovernmentTax:       c.GovernmentTax.StringFixed(2),
		VAT:                 c.VAT.StringFixed(2),
		Total:               c.Total.StringFixed(2),
	}
}

func toBillDTO(v billing.BillView) BillDTO {
	b := v.Bill
	dto := BillDTO{
		ID:                   string(b.ID),
		AccountID:            string(b.AccountID),
		InvoiceNumber:        b.InvoiceNumber,
		BillingPeriod:        b.BillingPeriod,
		BillDate:             b.BillDate.Format(time.RFC3339),
		DueDate:              b.DueDate.Format(time.RFC3339),
		PreviousReading:      b.PreviousReading.String(),
		CurrentReading:       b.CurrentReading.String(),
		Consumption:          b.Consumption.String(),
		Charges:              toChargesDTO(b.Charges),
		PreviousUnpaidAmount: b.PreviousUnpaidAmount.StringFixed(2),
		DiscountAmount:       b.DiscountAmount.StringFixed(2),
		PenaltyAmount:        b.Penalty.Amount.StringFixed(2),
		PenaltySnapshotted:   b.Penalty.Snapshotted,
		DynamicPenalty:       v.DynamicPenalty.StringFixed(2),
		TotalAmountDue:       b.TotalAmountDue.StringFixed(2),
		AmountNowDue:         v.AmountNowDue.StringFixed(2),
		Status:               string(b.Status),
	}
	if b.Payment != nil {
		dto.Payment = &PaymentDTO{
			PaidAt:      b.Payment.PaidAt.Format(time.RFC3339),
			Method:      b.Payment.Method,
			Reference:   b.Payment.Reference,
			AmountPaid:  b.Payment.AmountPaid.StringFixed(2),
			ProcessedBy: b.Payment.ProcessedBy,
		}
	}
	return dto
}

func toAccountDTO(p billing.CustomerProfile) AccountDTO {
	return AccountDTO{
		AccountID:      string(p.AccountID),
		Name:           p.Name,
		ServiceClass:   string(p.ServiceClass),
		MeterSize:      p.MeterSize,
		DiscountStatus: string(p.DiscountStatus),
	}
}

func toRewardsDTO(accountID billing.AccountID, l rewards.Ledger) RewardsDTO {
	return RewardsDTO{
		AccountID: string(accountID),
		Points:    l.Points,
		Tier:      string(l.Tier),
	}
}
