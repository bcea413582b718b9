/*
handlers.go - HTTP API handlers for the billing engine

PURPOSE:
  Exposes the billing engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic. The engine stays a
  library; this layer only adapts it.

ENDPOINTS:
  Accounts:
    POST   /api/accounts                    Create/replace customer profile
    GET    /api/accounts/{id}               Get profile
    POST   /api/accounts/{id}/readings      Submit a meter reading
    GET    /api/accounts/{id}/bills         List bills with dynamic penalty
    POST   /api/accounts/{id}/bills         Generate the next bill
    GET    /api/accounts/{id}/rewards       Loyalty balance

  Bills:
    GET    /api/bills/{id}                  Bill with current amount due
    POST   /api/bills/{id}/payments         Settle in full

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 402: Partial payment attempts
  - 404: Missing bill/account
  - 409: Duplicate bill, out-of-order reading
  - 500: Storage errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/clearflow/billing-engine/billing"
	"github.com/clearflow/billing-engine/rewards"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the persistence surface the API needs: every engine interface
// plus profile writes. Both store/sqlite and store/memory satisfy it.
type Store interface {
	billing.ReadingStore
	billing.BillStore
	billing.ProfileStore
	rewards.LedgerStore
	PutProfile(ctx context.Context, p billing.CustomerProfile) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      Store
	Generator  *billing.Generator
	Settlement *billing.Settlement
	Billing    billing.BillingConfig
	Clock      billing.Clock
	Logger     *zap.Logger
}

// NewHandler wires the engine components over one store.
func NewHandler(store Store, rates billing.RateConfig, billingCfg billing.BillingConfig, rewardCfg billing.RewardConfig, clock billing.Clock, logger *zap.Logger) *Handler {
	if clock == nil {
		clock = billing.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store: store,
		Generator: &billing.Generator{
			Readings: store,
			Bills:    store,
			Rates:    rates,
			Config:   billingCfg,
			Clock:    clock,
		},
		Settlement: &billing.Settlement{
			Bills:  store,
			Config: billingCfg,
			Clock:  clock,
			Rewards: &rewards.Service{
				Ledgers: store,
				Config:  rewardCfg,
				Clock:   clock,
			},
			Logger: logger,
		},
		Billing: billingCfg,
		Clock:   clock,
		Logger:  logger,
	}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// CreateAccount creates or replaces a customer profile.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.AccountID == "" {
		writeError(w, http.StatusBadRequest, "account_id is required", nil)
		return
	}

	status := billing.DiscountStatus(req.DiscountStatus)
	if status == "" {
		status = billing.DiscountNone
	}
	profile := billing.CustomerProfile{
		AccountID:      billing.AccountID(req.AccountID),
		Name:           req.Name,
		ServiceClass:   billing.ServiceClass(req.ServiceClass),
		MeterSize:      req.MeterSize,
		DiscountStatus: status,
	}
	if err := h.Store.PutProfile(r.Context(), profile); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save profile", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(profile))
}

// GetAccount returns a customer profile.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID := billing.AccountID(chi.URLParam(r, "id"))
	profile, err := h.Store.GetProfile(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, "Failed to load profile", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(profile))
}

// SubmitReading records a new cumulative meter reading.
func (h *Handler) SubmitReading(w http.ResponseWriter, r *http.Request) {
	accountID := billing.AccountID(chi.URLParam(r, "id"))

	var req SubmitReadingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	readAt := h.Clock.Now()
	if req.ReadAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ReadAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "read_at must be RFC3339", err)
			return
		}
		readAt = parsed
	}

	reading := billing.MeterReading{
		AccountID: accountID,
		Value:     decimal.NewFromFloat(req.Value),
		ReadAt:    readAt,
		ReadBy:    req.ReadBy,
	}
	if err := h.Store.AppendReading(r.Context(), reading); err != nil {
		writeDomainError(w, "Failed to record reading", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

// =============================================================================
// BILL HANDLERS
// =============================================================================

// GenerateBill creates the next bill for an account.
func (h *Handler) GenerateBill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := billing.AccountID(chi.URLParam(r, "id"))

	profile, err := h.Store.GetProfile(ctx, accountID)
	if err != nil {
		writeDomainError(w, "Failed to load profile", err)
		return
	}

	billID, err := h.Generator.GenerateBill(ctx, profile)
	if err != nil {
		writeDomainError(w, "Failed to generate bill", err)
		return
	}

	bill, err := h.Store.GetBill(ctx, billID)
	if err != nil {
		writeDomainError(w, "Failed to load generated bill", err)
		return
	}
	view := billing.NewBillView(bill, h.Billing, h.Clock.Now())
	writeJSON(w, http.StatusCreated, toBillDTO(view))
}

// ListBills returns all of an account's bills, unpaid first.
func (h *Handler) ListBills(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := billing.AccountID(chi.URLParam(r, "id"))
	now := h.Clock.Now()

	dtos := []BillDTO{}
	for _, status := range []billing.BillStatus{billing.StatusUnpaid, billing.StatusPaid} {
		bills, err := h.Store.BillsByStatus(ctx, accountID, status)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list bills", err)
			return
		}
		for _, b := range bills {
			dtos = append(dtos, toBillDTO(billing.NewBillView(b, h.Billing, now)))
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetBill returns one bill with its current amount due.
func (h *Handler) GetBill(w http.ResponseWriter, r *http.Request) {
	billID := billing.BillID(chi.URLParam(r, "id"))
	bill, err := h.Store.GetBill(r.Context(), billID)
	if err != nil {
		writeDomainError(w, "Failed to load bill", err)
		return
	}
	view := billing.NewBillView(bill, h.Billing, h.Clock.Now())
	writeJSON(w, http.StatusOK, toBillDTO(view))
}

// SettlePayment settles a bill in full.
func (h *Handler) SettlePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	billID := billing.BillID(chi.URLParam(r, "id"))

	var req SettlePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, "method is required", nil)
		return
	}

	err := h.Settlement.SettlePayment(ctx, billID, billing.PaymentDetails{
		Method:      req.Method,
		Reference:   req.Reference,
		AmountPaid:  decimal.NewFromFloat(req.AmountPaid),
		ProcessedBy: req.ProcessedBy,
	})
	if err != nil {
		writeDomainError(w, "Failed to settle payment", err)
		return
	}

	bill, err := h.Store.GetBill(ctx, billID)
	if err != nil {
		writeDomainError(w, "Failed to load settled bill", err)
		return
	}
	view := billing.NewBillView(bill, h.Billing, h.Clock.Now())
	writeJSON(w, http.StatusOK, toBillDTO(view))
}

// =============================================================================
// REWARDS HANDLERS
// =============================================================================

// GetRewards returns the account's loyalty balance.
func (h *Handler) GetRewards(w http.ResponseWriter, r *http.Request) {
	accountID := billing.AccountID(chi.URLParam(r, "id"))
	ledger, err := h.Store.Ledger(r.Context(), accountID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load rewards", err)
		return
	}
	writeJSON(w, http.StatusOK, toRewardsDTO(accountID, ledger))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case billing.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, billing.ErrPartialPayment):
		writeError(w, http.StatusPaymentRequired, message, err)
	case errors.Is(err, billing.ErrDuplicateBill), errors.Is(err, billing.ErrReadingOutOfOrder):
		writeError(w, http.StatusConflict, message, err)
	case billing.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
