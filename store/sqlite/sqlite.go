/*
Package sqlite provides the SQLite-backed implementation of the Ledger Store.

PURPOSE:
  Implements ledger.Store and ledger.Tx using SQLite. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

ATOMICITY:
  WithTx wraps a database transaction; every engine mutation (entity update +
  Transaction insert + stats upsert) goes through it and commits or rolls
  back as one unit. Balance adjustments and status transitions happen inside
  the same transaction that writes the ledger row.

EXACTLY-ONCE ENFORCEMENT:
  Completion transitions are guarded UPDATEs:
    UPDATE lock_periods SET status='unlocked' ... WHERE status='locked'
  RowsAffected tells the caller whether this invocation won the transition.

KEY TABLES:
  users:         running balances (spendable + locked), decimals as TEXT
  lock_periods:  fixed-duration fund locks, never deleted
  schedules:     future-dated payout instructions
  transactions:  append-only ledger, unique reference for idempotency
  banks:         payout destinations, at most one default per user
  impulse_stats: per-(user, month) savings aggregate, unique (user_id, month)

CONCURRENCY:
  Uses sync.RWMutex so write transactions serialize at the process level;
  SQLite WAL mode allows concurrent readers. With PostgreSQL, database-level
  concurrency control would replace the mutex.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: interface definitions and the atomic contract
  - vault package: the engine driving these operations
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

	"github.com/pocketvault/ledger-engine/ledger"
)

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

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

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE,
		full_name TEXT,
		balance TEXT NOT NULL,
		total_locked TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS lock_periods (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		lock_date TEXT NOT NULL,
		unlock_date TEXT NOT NULL,
		interval_days INTEGER NOT NULL,
		description TEXT,
		status TEXT NOT NULL,
		actual_unlock_date TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_locks_user
		ON lock_periods(user_id, created_at DESC);
	-- Due scan hot path
	CREATE INDEX IF NOT EXISTS idx_locks_due
		ON lock_periods(status, unlock_date);

	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		amount TEXT NOT NULL,
		payout_amount TEXT NOT NULL,
		scheduled_date TEXT NOT NULL,
		recurrence TEXT NOT NULL DEFAULT 'once',
		status TEXT NOT NULL,
		auto_payout INTEGER NOT NULL DEFAULT 0,
		executed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_schedules_user
		ON schedules(user_id, scheduled_date);
	CREATE INDEX IF NOT EXISTS idx_schedules_due
		ON schedules(status, auto_payout, scheduled_date);

	-- Append-only ledger. No UPDATE except settling a pending deposit; no DELETE.
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		balance_before TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		status TEXT NOT NULL,
		reference TEXT,
		description TEXT,
		metadata_json TEXT,
		completed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_reference
		ON transactions(reference) WHERE reference IS NOT NULL AND reference != '';
	CREATE INDEX IF NOT EXISTS idx_transactions_user
		ON transactions(user_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_user_type
		ON transactions(user_id, tx_type);

	CREATE TABLE IF NOT EXISTS banks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		bank_name TEXT NOT NULL,
		account_number TEXT NOT NULL,
		account_name TEXT,
		bank_code TEXT,
		is_default INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_banks_user
		ON banks(user_id);
	-- At most one default account per user
	CREATE UNIQUE INDEX IF NOT EXISTS idx_banks_default
		ON banks(user_id) WHERE is_default = 1;

	CREATE TABLE IF NOT EXISTS impulse_stats (
		user_id TEXT NOT NULL,
		month TEXT NOT NULL,
		total_saved TEXT NOT NULL DEFAULT '0',
		impulses_stopped INTEGER NOT NULL DEFAULT 0,
		current_streak INTEGER NOT NULL DEFAULT 0,
		longest_streak INTEGER NOT NULL DEFAULT 0,
		savings_goal TEXT NOT NULL DEFAULT '0',
		PRIMARY KEY (user_id, month)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// USERS
// =============================================================================

func (s *Store) CreateUser(ctx context.Context, u *ledger.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, full_name, balance, total_locked, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.FullName, u.Balance.String(), u.TotalLocked.String(),
		u.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &ledger.ValidationError{Field: "email", Message: "already registered"}
		}
		return &ledger.StorageError{Op: "create user", Err: err}
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id ledger.UserID) (*ledger.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getUser(ctx, s.db, id)
}

func getUser(ctx context.Context, q querier, id ledger.UserID) (*ledger.User, error) {
	var u ledger.User
	var balance, locked, createdAt string

	err := q.QueryRowContext(ctx,
		"SELECT id, email, full_name, balance, total_locked, created_at FROM users WHERE id = ?",
		id,
	).Scan(&u.ID, &u.Email, &u.FullName, &balance, &locked, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &ledger.StorageError{Op: "get user", Err: err}
	}

	u.Balance = parseDec(balance)
	u.TotalLocked = parseDec(locked)
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &u, nil
}

// =============================================================================
// LOCK PERIODS
// =============================================================================

const lockColumns = `id, user_id, amount, lock_date, unlock_date, interval_days,
	description, status, actual_unlock_date, created_at`

func (s *Store) GetLock(ctx context.Context, userID ledger.UserID, id ledger.LockID) (*ledger.LockPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getLock(ctx, s.db, userID, id)
}

func getLock(ctx context.Context, q querier, userID ledger.UserID, id ledger.LockID) (*ledger.LockPeriod, error) {
	locks, err := queryLocks(ctx, q,
		"SELECT "+lockColumns+" FROM lock_periods WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return nil, err
	}
	if len(locks) == 0 {
		return nil, nil
	}
	return &locks[0], nil
}

func (s *Store) ListLocks(ctx context.Context, userID ledger.UserID) ([]ledger.LockPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return queryLocks(ctx, s.db,
		"SELECT "+lockColumns+" FROM lock_periods WHERE user_id = ? ORDER BY created_at DESC", userID)
}

func (s *Store) ListUpcomingUnlocks(ctx context.Context, userID ledger.UserID, limit int) ([]ledger.LockPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return queryLocks(ctx, s.db, `
		SELECT `+lockColumns+` FROM lock_periods
		WHERE user_id = ? AND status = ?
		ORDER BY unlock_date ASC
		LIMIT ?`, userID, ledger.LockStatusLocked, limit)
}

func (s *Store) ListDueLocks(ctx context.Context, asOf time.Time) ([]ledger.LockPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return queryLocks(ctx, s.db, `
		SELECT `+lockColumns+` FROM lock_periods
		WHERE status = ? AND unlock_date <= ?
		ORDER BY unlock_date ASC`,
		ledger.LockStatusLocked, asOf.UTC().Format(time.RFC3339))
}

func queryLocks(ctx context.Context, q querier, query string, args ...any) ([]ledger.LockPeriod, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ledger.StorageError{Op: "query locks", Err: err}
	}
	defer rows.Close()

	var locks []ledger.LockPeriod
	for rows.Next() {
		var l ledger.LockPeriod
		var amount, lockDate, unlockDate, createdAt string
		var description, actualUnlock sql.NullString

		if err := rows.Scan(&l.ID, &l.UserID, &amount, &lockDate, &unlockDate,
			&l.IntervalDays, &description, &l.Status, &actualUnlock, &createdAt); err != nil {
			return nil, &ledger.StorageError{Op: "scan lock", Err: err}
		}

		l.Amount = parseDec(amount)
		l.LockDate, _ = time.Parse(time.RFC3339, lockDate)
		l.UnlockDate, _ = time.Parse(time.RFC3339, unlockDate)
		l.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		l.Description = description.String
		if actualUnlock.Valid {
			t, _ := time.Parse(time.RFC3339, actualUnlock.String)
			l.ActualUnlockDate = &t
		}
		locks = append(locks, l)
	}
	return locks, rows.Err()
}

// =============================================================================
// SCHEDULES
// =============================================================================

const scheduleColumns = `id, user_id, title, amount, payout_amount, scheduled_date,
	recurrence, status, auto_payout, executed_at, created_at`

func (s *Store) GetSchedule(ctx context.Context, userID ledger.UserID, id ledger.ScheduleID) (*ledger.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getSchedule(ctx, s.db, userID, id)
}

func getSchedule(ctx context.Context, q querier, userID ledger.UserID, id ledger.ScheduleID) (*ledger.Schedule, error) {
	scheds, err := querySchedules(ctx, q,
		"SELECT "+scheduleColumns+" FROM schedules WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return nil, err
	}
	if len(scheds) == 0 {
		return nil, nil
	}
	return &scheds[0], nil
}

func (s *Store) ListSchedules(ctx context.Context, userID ledger.UserID) ([]ledger.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return querySchedules(ctx, s.db,
		"SELECT "+scheduleColumns+" FROM schedules WHERE user_id = ? ORDER BY scheduled_date ASC", userID)
}

func (s *Store) ListDueAutoPayouts(ctx context.Context, asOf time.Time) ([]ledger.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return querySchedules(ctx, s.db, `
		SELECT `+scheduleColumns+` FROM schedules
		WHERE status IN (?, ?) AND auto_payout = 1 AND scheduled_date <= ?
		ORDER BY scheduled_date ASC`,
		ledger.ScheduleStatusPending, ledger.ScheduleStatusLocked,
		asOf.UTC().Format(time.RFC3339))
}

func querySchedules(ctx context.Context, q querier, query string, args ...any) ([]ledger.Schedule, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ledger.StorageError{Op: "query schedules", Err: err}
	}
	defer rows.Close()

	var scheds []ledger.Schedule
	for rows.Next() {
		var sc ledger.Schedule
		var amount, payout, schedDate, createdAt string
		var executedAt sql.NullString
		var autoPayout int

		if err := rows.Scan(&sc.ID, &sc.UserID, &sc.Title, &amount, &payout, &schedDate,
			&sc.Recurrence, &sc.Status, &autoPayout, &executedAt, &createdAt); err != nil {
			return nil, &ledger.StorageError{Op: "scan schedule", Err: err}
		}

		sc.Amount = parseDec(amount)
		sc.PayoutAmount = parseDec(payout)
		sc.ScheduledDate, _ = time.Parse(time.RFC3339, schedDate)
		sc.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		sc.AutoPayout = autoPayout != 0
		if executedAt.Valid {
			t, _ := time.Parse(time.RFC3339, executedAt.String)
			sc.ExecutedAt = &t
		}
		scheds = append(scheds, sc)
	}
	return scheds, rows.Err()
}

// =============================================================================
// BANKS
// =============================================================================

const bankColumns = `id, user_id, bank_name, account_number, account_name, bank_code,
	is_default, created_at`

func (s *Store) ListBanks(ctx context.Context, userID ledger.UserID) ([]ledger.Bank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return queryBanks(ctx, s.db,
		"SELECT "+bankColumns+" FROM banks WHERE user_id = ? ORDER BY created_at DESC", userID)
}

func (s *Store) DefaultBank(ctx context.Context, userID ledger.UserID) (*ledger.Bank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return defaultBank(ctx, s.db, userID)
}

func defaultBank(ctx context.Context, q querier, userID ledger.UserID) (*ledger.Bank, error) {
	banks, err := queryBanks(ctx, q,
		"SELECT "+bankColumns+" FROM banks WHERE user_id = ? AND is_default = 1 LIMIT 1", userID)
	if err != nil {
		return nil, err
	}
	if len(banks) == 0 {
		return nil, nil
	}
	return &banks[0], nil
}

func getBank(ctx context.Context, q querier, userID ledger.UserID, id ledger.BankID) (*ledger.Bank, error) {
	banks, err := queryBanks(ctx, q,
		"SELECT "+bankColumns+" FROM banks WHERE id = ? AND user_id = ? LIMIT 1", id, userID)
	if err != nil {
		return nil, err
	}
	if len(banks) == 0 {
		return nil, nil
	}
	return &banks[0], nil
}

func queryBanks(ctx context.Context, q querier, query string, args ...any) ([]ledger.Bank, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ledger.StorageError{Op: "query banks", Err: err}
	}
	defer rows.Close()

	var banks []ledger.Bank
	for rows.Next() {
		var b ledger.Bank
		var accountName, bankCode sql.NullString
		var isDefault int
		var createdAt string

		if err := rows.Scan(&b.ID, &b.UserID, &b.BankName, &b.AccountNumber,
			&accountName, &bankCode, &isDefault, &createdAt); err != nil {
			return nil, &ledger.StorageError{Op: "scan bank", Err: err}
		}

		b.AccountName = accountName.String
		b.BankCode = bankCode.String
		b.IsDefault = isDefault != 0
		b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		banks = append(banks, b)
	}
	return banks, rows.Err()
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

const txnColumns = `id, user_id, tx_type, amount, balance_before, balance_after,
	status, reference, description, metadata_json, completed_at, created_at`

func (s *Store) ListTransactions(ctx context.Context, userID ledger.UserID, f ledger.TxnFilter) ([]ledger.Transaction, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	offset := (f.Page - 1) * f.Limit

	where := "user_id = ?"
	args := []any{userID}
	if f.Type != "" {
		where += " AND tx_type = ?"
		args = append(args, f.Type)
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, &ledger.StorageError{Op: "count transactions", Err: err}
	}

	txns, err := queryTransactions(ctx, s.db,
		"SELECT "+txnColumns+" FROM transactions WHERE "+where+
			" ORDER BY created_at DESC LIMIT ? OFFSET ?",
		append(args, f.Limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

func (s *Store) GetTransaction(ctx context.Context, userID ledger.UserID, id ledger.TransactionID) (*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txns, err := queryTransactions(ctx, s.db,
		"SELECT "+txnColumns+" FROM transactions WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return nil, nil
	}
	return &txns[0], nil
}

func (s *Store) GetTransactionByReference(ctx context.Context, userID ledger.UserID, reference string) (*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txns, err := queryTransactions(ctx, s.db,
		"SELECT "+txnColumns+" FROM transactions WHERE user_id = ? AND reference = ?", userID, reference)
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return nil, nil
	}
	return &txns[0], nil
}

func queryTransactions(ctx context.Context, q querier, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ledger.StorageError{Op: "query transactions", Err: err}
	}
	defer rows.Close()

	var txns []ledger.Transaction
	for rows.Next() {
		var t ledger.Transaction
		var amount, before, after, createdAt string
		var reference, description, metadataJSON, completedAt sql.NullString

		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &amount, &before, &after,
			&t.Status, &reference, &description, &metadataJSON, &completedAt, &createdAt); err != nil {
			return nil, &ledger.StorageError{Op: "scan transaction", Err: err}
		}

		t.Amount = parseDec(amount)
		t.BalanceBefore = parseDec(before)
		t.BalanceAfter = parseDec(after)
		t.Reference = reference.String
		t.Description = description.String
		t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if completedAt.Valid {
			ct, _ := time.Parse(time.RFC3339, completedAt.String)
			t.CompletedAt = &ct
		}
		if metadataJSON.Valid && metadataJSON.String != "" {
			json.Unmarshal([]byte(metadataJSON.String), &t.Metadata)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// =============================================================================
// STATS
// =============================================================================

func (s *Store) GetMonthlyStats(ctx context.Context, userID ledger.UserID, month time.Time) (*ledger.ImpulseStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getMonthlyStats(ctx, s.db, userID, month)
}

func getMonthlyStats(ctx context.Context, q querier, userID ledger.UserID, month time.Time) (*ledger.ImpulseStats, error) {
	var st ledger.ImpulseStats
	var monthStr, saved, goal string

	err := q.QueryRowContext(ctx, `
		SELECT user_id, month, total_saved, impulses_stopped, current_streak,
		       longest_streak, savings_goal
		FROM impulse_stats WHERE user_id = ? AND month = ?`,
		userID, monthKey(month),
	).Scan(&st.UserID, &monthStr, &saved, &st.ImpulsesStopped,
		&st.CurrentStreak, &st.LongestStreak, &goal)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &ledger.StorageError{Op: "get stats", Err: err}
	}

	st.Month, _ = time.Parse("2006-01-02", monthStr)
	st.TotalSaved = parseDec(saved)
	st.SavingsGoal = parseDec(goal)
	return &st, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func monthKey(t time.Time) string {
	return ledger.MonthOf(t).Format("2006-01-02")
}

func parseDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
