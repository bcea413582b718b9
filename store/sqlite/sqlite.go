/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements billing.ReadingStore, billing.BillStore, billing.ProfileStore,
  and rewards.LedgerStore using SQLite. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  readings:  Append-only meter readings per account
  bills:     One row per bill; settled in place exactly once
  profiles:  Customer profile with the embedded loyalty ledger

INVARIANTS ENFORCED AT WRITE TIME:
  - idx_bills_account_period (UNIQUE): one bill per (account, period).
    The duplicate-bill guard is a conditional write, not a read-then-write,
    so two racing generation attempts cannot both insert.
  - Reading monotonicity: an insert below the account's latest value is
    rejected inside the same transaction that reads it.
  - SettleBill: penalty snapshot, total, status, and payment record are one
    UPDATE - a crash cannot record a payment without its snapshot.
  - SaveLedger: points and tier are one UPDATE, never split.

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/billing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - billing/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/clearflow/billing-engine/billing"
	"github.com/clearflow/billing-engine/rewards"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ billing.ReadingStore = (*Store)(nil)
	_ billing.BillStore    = (*Store)(nil)
	_ billing.ProfileStore = (*Store)(nil)
	_ rewards.LedgerStore  = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Meter readings (append-only)
	CREATE TABLE IF NOT EXISTS readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id TEXT NOT NULL,
		value TEXT NOT NULL,
		read_at TEXT NOT NULL,
		read_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_readings_account_date
		ON readings(account_id, read_at DESC);

	-- Bills
	CREATE TABLE IF NOT EXISTS bills (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		invoice_number TEXT NOT NULL,
		billing_period TEXT NOT NULL,
		bill_date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		previous_reading TEXT NOT NULL,
		current_reading TEXT NOT NULL,
		consumption TEXT NOT NULL,
		charges_json TEXT NOT NULL,
		previous_unpaid TEXT NOT NULL,
		discount TEXT NOT NULL,
		penalty_snapshotted BOOLEAN NOT NULL DEFAULT FALSE,
		penalty_amount TEXT NOT NULL DEFAULT '0',
		total_amount_due TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'unpaid',
		payment_json TEXT,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: exactly one bill per (account, billing period).
	-- This makes the duplicate-bill guard a conditional write.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_bills_account_period
		ON bills(account_id, billing_period);

	CREATE INDEX IF NOT EXISTS idx_bills_account_status
		ON bills(account_id, status);

	-- Customer profiles with embedded loyalty ledger
	CREATE TABLE IF NOT EXISTS profiles (
		account_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		service_class TEXT NOT NULL,
		meter_size TEXT NOT NULL,
		discount_status TEXT NOT NULL DEFAULT 'none',
		reward_points INTEGER NOT NULL DEFAULT 0,
		reward_tier TEXT NOT NULL DEFAULT 'bronze',
		created_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// READING STORE (billing.ReadingStore interface)
// =============================================================================

// AppendReading persists a reading, rejecting values below the account's
// latest persisted reading. Check and insert share one SQL transaction.
func (s *Store) AppendReading(ctx context.Context, r billing.MeterReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var latest sql.NullString
	err = tx.QueryRowContext(ctx,
		"SELECT value FROM readings WHERE account_id = ? ORDER BY read_at DESC, id DESC LIMIT 1",
		r.AccountID,
	).Scan(&latest)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to load latest reading: %w", err)
	}
	if latest.Valid && r.Value.LessThan(mustDecimal(latest.String)) {
		return billing.ErrReadingOutOfOrder
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO readings (account_id, value, read_at, read_by, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		r.AccountID,
		r.Value.String(),
		r.ReadAt.UTC().Format(time.RFC3339),
		nullString(r.ReadBy),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}

	return tx.Commit()
}

// LatestReadings returns up to limit readings, most recent first.
func (s *Store) LatestReadings(ctx context.Context, accountID billing.AccountID, limit int) ([]billing.MeterReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT account_id, value, read_at, COALESCE(read_by, '')
		FROM readings
		WHERE account_id = ?
		ORDER BY read_at DESC, id DESC
		LIMIT ?`,
		accountID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var readings []billing.MeterReading
	for rows.Next() {
		var (
			r      billing.MeterReading
			value  string
			readAt string
		)
		if err := rows.Scan(&r.AccountID, &value, &readAt, &r.ReadBy); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		r.Value = mustDecimal(value)
		r.ReadAt, _ = time.Parse(time.RFC3339, readAt)
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// =============================================================================
// BILL STORE (billing.BillStore interface)
// =============================================================================

// InsertBill persists a new bill. The unique (account_id, billing_period)
// index converts a duplicate into billing.ErrDuplicateBill.
func (s *Store) InsertBill(ctx context.Context, b billing.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chargesJSON, err := json.Marshal(b.Charges)
	if err != nil {
		return fmt.Errorf("failed to marshal charges: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bills
		(id, account_id, invoice_number, billing_period, bill_date, due_date,
		 previous_reading, current_reading, consumption, charges_json,
		 previous_unpaid, discount, penalty_snapshotted, penalty_amount,
		 total_amount_due, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID,
		b.AccountID,
		b.InvoiceNumber,
		b.BillingPeriod,
		b.BillDate.UTC().Format(time.RFC3339),
		b.DueDate.UTC().Format(time.RFC3339),
		b.PreviousReading.String(),
		b.CurrentReading.String(),
		b.Consumption.String(),
		string(chargesJSON),
		b.PreviousUnpaidAmount.String(),
		b.DiscountAmount.String(),
		b.Penalty.Snapshotted,
		b.Penalty.Amount.String(),
		b.TotalAmountDue.String(),
		b.Status,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &billing.DuplicateBillError{AccountID: b.AccountID, Period: b.BillingPeriod}
		}
		return fmt.Errorf("failed to insert bill: %w", err)
	}
	return nil
}

const billColumns = `
	id, account_id, invoice_number, billing_period, bill_date, due_date,
	previous_reading, current_reading, consumption, charges_json,
	previous_unpaid, discount, penalty_snapshotted, penalty_amount,
	total_amount_due, status, payment_json`

// GetBill returns a bill by ID.
func (s *Store) GetBill(ctx context.Context, id billing.BillID) (billing.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT"+billColumns+" FROM bills WHERE id = ?", id)
	return scanBill(row)
}

// BillForPeriod returns the account's bill for a period label.
func (s *Store) BillForPeriod(ctx context.Context, accountID billing.AccountID, period string) (billing.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT"+billColumns+" FROM bills WHERE account_id = ? AND billing_period = ?",
		accountID, period)
	return scanBill(row)
}

// BillsByStatus returns the account's bills with a status, newest first.
func (s *Store) BillsByStatus(ctx context.Context, accountID billing.AccountID, status billing.BillStatus) ([]billing.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT"+billColumns+" FROM bills WHERE account_id = ? AND status = ? ORDER BY bill_date DESC",
		accountID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query bills: %w", err)
	}
	defer rows.Close()

	var bills []billing.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

// SettleBill writes snapshot, total, status, and payment in one UPDATE.
func (s *Store) SettleBill(ctx context.Context, id billing.BillID, penalty billing.PenaltyState, totalDue decimal.Decimal, payment billing.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	paymentJSON, err := json.Marshal(payment)
	if err != nil {
		return fmt.Errorf("failed to marshal payment: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE bills
		SET penalty_snapshotted = ?, penalty_amount = ?, total_amount_due = ?,
		    status = ?, payment_json = ?
		WHERE id = ?`,
		penalty.Snapshotted,
		penalty.Amount.String(),
		totalDue.String(),
		billing.StatusPaid,
		string(paymentJSON),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to settle bill: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return billing.ErrBillNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBill(row rowScanner) (billing.Bill, error) {
	var (
		b           billing.Bill
		billDate    string
		dueDate     string
		prevReading string
		currReading string
		consumption string
		chargesJSON string
		prevUnpaid  string
		discount    string
		penaltyAmt  string
		totalDue    string
		paymentJSON sql.NullString
	)

	err := row.Scan(
		&b.ID, &b.AccountID, &b.InvoiceNumber, &b.BillingPeriod,
		&billDate, &dueDate, &prevReading, &currReading, &consumption,
		&chargesJSON, &prevUnpaid, &discount,
		&b.Penalty.Snapshotted, &penaltyAmt, &totalDue, &b.Status, &paymentJSON,
	)
	if err == sql.ErrNoRows {
		return billing.Bill{}, billing.ErrBillNotFound
	}
	if err != nil {
		return billing.Bill{}, fmt.Errorf("failed to scan bill: %w", err)
	}

	b.BillDate, _ = time.Parse(time.RFC3339, billDate)
	b.DueDate, _ = time.Parse(time.RFC3339, dueDate)
	b.PreviousReading = mustDecimal(prevReading)
	b.CurrentReading = mustDecimal(currReading)
	b.Consumption = mustDecimal(consumption)
	b.PreviousUnpaidAmount = mustDecimal(prevUnpaid)
	b.DiscountAmount = mustDecimal(discount)
	b.Penalty.Amount = mustDecimal(penaltyAmt)
	b.TotalAmountDue = mustDecimal(totalDue)

	if err := json.Unmarshal([]byte(chargesJSON), &b.Charges); err != nil {
		return billing.Bill{}, fmt.Errorf("failed to unmarshal charges: %w", err)
	}
	if paymentJSON.Valid {
		var p billing.PaymentRecord
		if err := json.Unmarshal([]byte(paymentJSON.String), &p); err != nil {
			return billing.Bill{}, fmt.Errorf("failed to unmarshal payment: %w", err)
		}
		b.Payment = &p
	}
	return b, nil
}

// =============================================================================
// PROFILE STORE + LEDGER STORE
// =============================================================================

// PutProfile creates or replaces a profile. Ledger columns are preserved
// for existing rows.
func (s *Store) PutProfile(ctx context.Context, p billing.CustomerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (account_id, name, service_class, meter_size, discount_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			name = excluded.name,
			service_class = excluded.service_class,
			meter_size = excluded.meter_size,
			discount_status = excluded.discount_status`,
		p.AccountID, p.Name, p.ServiceClass, p.MeterSize, p.DiscountStatus,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// GetProfile returns the account's profile.
func (s *Store) GetProfile(ctx context.Context, accountID billing.AccountID) (billing.CustomerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p billing.CustomerProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT account_id, name, service_class, meter_size, discount_status
		FROM profiles WHERE account_id = ?`,
		accountID,
	).Scan(&p.AccountID, &p.Name, &p.ServiceClass, &p.MeterSize, &p.DiscountStatus)
	if err == sql.ErrNoRows {
		return billing.CustomerProfile{}, billing.ErrProfileNotFound
	}
	if err != nil {
		return billing.CustomerProfile{}, fmt.Errorf("failed to query profile: %w", err)
	}
	return p, nil
}

// Ledger returns the account's loyalty ledger. A missing profile yields an
// empty Bronze ledger rather than an error: accrual is best-effort.
func (s *Store) Ledger(ctx context.Context, accountID billing.AccountID) (rewards.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var l rewards.Ledger
	err := s.db.QueryRowContext(ctx,
		"SELECT reward_points, reward_tier FROM profiles WHERE account_id = ?",
		accountID,
	).Scan(&l.Points, &l.Tier)
	if err == sql.ErrNoRows {
		return rewards.NewLedger(), nil
	}
	if err != nil {
		return rewards.Ledger{}, fmt.Errorf("failed to query ledger: %w", err)
	}
	return l, nil
}

// SaveLedger writes points and tier together in one UPDATE.
func (s *Store) SaveLedger(ctx context.Context, accountID billing.AccountID, l rewards.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE profiles SET reward_points = ?, reward_tier = ? WHERE account_id = ?",
		l.Points, l.Tier, accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to save ledger: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return billing.ErrProfileNotFound
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
