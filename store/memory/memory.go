// Package memory provides an in-memory store implementation (for testing/dev).
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/clearflow/billing-engine/billing"
	"github.com/clearflow/billing-engine/rewards"
)

// =============================================================================
// MEMORY STORE - Implements every persistence interface in one struct
// =============================================================================

type Store struct {
	mu       sync.RWMutex
	readings map[billing.AccountID][]billing.MeterReading
	bills    map[billing.BillID]billing.Bill
	byPeriod map[periodKey]billing.BillID
	profiles map[billing.AccountID]billing.CustomerProfile
	ledgers  map[billing.AccountID]rewards.Ledger
}

type periodKey struct {
	AccountID billing.AccountID
	Period    string
}

func New() *Store {
	return &Store{
		readings: make(map[billing.AccountID][]billing.MeterReading),
		bills:    make(map[billing.BillID]billing.Bill),
		byPeriod: make(map[periodKey]billing.BillID),
		profiles: make(map[billing.AccountID]billing.CustomerProfile),
		ledgers:  make(map[billing.AccountID]rewards.Ledger),
	}
}

var (
	_ billing.ReadingStore = (*Store)(nil)
	_ billing.BillStore    = (*Store)(nil)
	_ billing.ProfileStore = (*Store)(nil)
	_ rewards.LedgerStore  = (*Store)(nil)
)

// =============================================================================
// READINGS
// =============================================================================

func (s *Store) AppendReading(_ context.Context, r billing.MeterReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.readings[r.AccountID]
	if len(existing) > 0 && r.Value.LessThan(existing[len(existing)-1].Value) {
		return billing.ErrReadingOutOfOrder
	}

	// Insert keeping chronological order.
	i := sort.Search(len(existing), func(i int) bool {
		return existing[i].ReadAt.After(r.ReadAt)
	})
	existing = append(existing, billing.MeterReading{})
	copy(existing[i+1:], existing[i:])
	existing[i] = r
	s.readings[r.AccountID] = existing
	return nil
}

func (s *Store) LatestReadings(_ context.Context, accountID billing.AccountID, limit int) ([]billing.MeterReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.readings[accountID]
	var result []billing.MeterReading
	for i := len(all) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, all[i])
	}
	return result, nil
}

// =============================================================================
// BILLS
// =============================================================================

func (s *Store) InsertBill(_ context.Context, b billing.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := periodKey{AccountID: b.AccountID, Period: b.BillingPeriod}
	if existing, ok := s.byPeriod[k]; ok {
		return &billing.DuplicateBillError{
			AccountID: b.AccountID,
			Period:    b.BillingPeriod,
			Existing:  existing,
		}
	}
	s.bills[b.ID] = b
	s.byPeriod[k] = b.ID
	return nil
}

func (s *Store) GetBill(_ context.Context, id billing.BillID) (billing.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bills[id]
	if !ok {
		return billing.Bill{}, billing.ErrBillNotFound
	}
	return b, nil
}

func (s *Store) BillForPeriod(_ context.Context, accountID billing.AccountID, period string) (billing.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byPeriod[periodKey{AccountID: accountID, Period: period}]
	if !ok {
		return billing.Bill{}, billing.ErrBillNotFound
	}
	return s.bills[id], nil
}

func (s *Store) BillsByStatus(_ context.Context, accountID billing.AccountID, status billing.BillStatus) ([]billing.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []billing.Bill
	for _, b := range s.bills {
		if b.AccountID == accountID && b.Status == status {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].BillDate.After(result[j].BillDate)
	})
	return result, nil
}

// SettleBill writes penalty, total, status, and payment in one critical
// section, mirroring the atomic multi-field update of the real store.
func (s *Store) SettleBill(_ context.Context, id billing.BillID, penalty billing.PenaltyState, totalDue decimal.Decimal, payment billing.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bills[id]
	if !ok {
		return billing.ErrBillNotFound
	}
	b.Penalty = penalty
	b.TotalAmountDue = totalDue
	b.Status = billing.StatusPaid
	b.Payment = &payment
	s.bills[id] = b
	return nil
}

// =============================================================================
// PROFILES + LEDGERS
// =============================================================================

func (s *Store) PutProfile(_ context.Context, p billing.CustomerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.AccountID] = p
	return nil
}

func (s *Store) GetProfile(_ context.Context, accountID billing.AccountID) (billing.CustomerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[accountID]
	if !ok {
		return billing.CustomerProfile{}, billing.ErrProfileNotFound
	}
	return p, nil
}

func (s *Store) Ledger(_ context.Context, accountID billing.AccountID) (rewards.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if l, ok := s.ledgers[accountID]; ok {
		return l, nil
	}
	return rewards.NewLedger(), nil
}

func (s *Store) SaveLedger(_ context.Context, accountID billing.AccountID, l rewards.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledgers[accountID] = l
	return nil
}
