/*
Package ledger provides the core types for the fund lock & scheduled
payout engine.

PURPOSE:
  This package contains the domain entities and algorithms shared by the
  whole system: users with a spendable and a locked balance, fixed-period
  locks, future-dated (optionally recurring) payout schedules, and the
  append-only transaction ledger that audits every balance movement.

KEY CONCEPTS IN THIS FILE (types.go):
  - User: one spendable balance plus one committed (locked) balance
  - LockPeriod: a fixed-duration commitment of funds
  - Schedule: a future-dated payout instruction, optionally recurring
  - Transaction: an immutable ledger entry bracketing one balance change
  - Bank / ImpulseStats: payout destination and per-month savings aggregate

DESIGN PRINCIPLES:
  1. Precision: uses decimal.Decimal to avoid floating-point errors
  2. Auditability: every balance mutation produces exactly one Transaction
     whose BalanceBefore/BalanceAfter bracket the change
  3. Exactly-once: state transitions are guarded by status preconditions
     checked inside the same atomic step that applies them

SEE ALSO:
  - errors.go: Error taxonomy (validation, not-found, invalid-state, ...)
  - recurrence.go: Next-occurrence calculation for recurring schedules
  - store.go: Persistence interfaces, including the atomic Tx primitive
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type LockID string
type ScheduleID string
type TransactionID string
type BankID string

// =============================================================================
// USER - Owner of a spendable balance and a committed balance
// =============================================================================

// User holds the two running balances every engine operation revolves
// around. Balance and TotalLocked are independent fields, not derived from
// one another; the engine keeps them consistent by construction, only ever
// mutating them inside atomic ledger operations.
type User struct {
	ID          UserID
	Email       string
	FullName    string
	Balance     decimal.Decimal // spendable funds, never negative
	TotalLocked decimal.Decimal // funds committed to active locks + schedules
	CreatedAt   time.Time
}

// =============================================================================
// LOCK PERIOD - Fixed-duration commitment of funds
// =============================================================================

type LockStatus string

const (
	LockStatusLocked   LockStatus = "locked"
	LockStatusUnlocked LockStatus = "unlocked"
)

// LockPeriod commits Amount from the owner's balance until UnlockDate.
// It transitions locked -> unlocked exactly once and is never deleted.
type LockPeriod struct {
	ID               LockID
	UserID           UserID
	Amount           decimal.Decimal
	LockDate         time.Time
	UnlockDate       time.Time
	IntervalDays     int
	Description      string
	Status           LockStatus
	ActualUnlockDate *time.Time // set when the lock completes
	CreatedAt        time.Time
}

// =============================================================================
// SCHEDULE - Future-dated, optionally recurring payout instruction
// =============================================================================

type ScheduleStatus string

const (
	ScheduleStatusPending   ScheduleStatus = "pending"
	ScheduleStatusLocked    ScheduleStatus = "locked"
	ScheduleStatusCompleted ScheduleStatus = "completed"
)

// Schedule releases PayoutAmount on ScheduledDate. Amount is the committed
// principal and may differ from PayoutAmount. Recurring schedules spawn an
// independent successor row when completed; the chain is unbounded until the
// recurrence's until-date is reached.
type Schedule struct {
	ID            ScheduleID
	UserID        UserID
	Title         string
	Amount        decimal.Decimal // committed principal
	PayoutAmount  decimal.Decimal // released at completion
	ScheduledDate time.Time
	Recurrence    string // "once"|"daily"|"weekly"|"monthly", optional ";until=<ISO date>"
	Status        ScheduleStatus
	AutoPayout    bool // pay to the default bank instead of the wallet
	ExecutedAt    *time.Time
	CreatedAt     time.Time
}

// =============================================================================
// TRANSACTION - Immutable ledger entry
// =============================================================================

type TxnType string

const (
	TxnDeposit    TxnType = "deposit"
	TxnWithdrawal TxnType = "withdrawal"
	TxnLock       TxnType = "lock"
	TxnUnlock     TxnType = "unlock"
	TxnPayout     TxnType = "payout"
	TxnFee        TxnType = "fee"
)

type TxnStatus string

const (
	TxnStatusPending   TxnStatus = "pending"
	TxnStatusCompleted TxnStatus = "completed"
	TxnStatusFailed    TxnStatus = "failed"
)

// Transaction is an append-only audit record of one balance movement.
// BalanceBefore/BalanceAfter bracket the mutation and are computed from the
// balance actually written in the same atomic step, never from a stale
// pre-transaction snapshot.
type Transaction struct {
	ID            TransactionID
	UserID        UserID
	Type          TxnType
	Amount        decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	Status        TxnStatus
	Reference     string // unique; carries deposit/withdrawal idempotency
	Description   string
	Metadata      map[string]string // bank details, originating schedule id
	CompletedAt   *time.Time
	CreatedAt     time.Time
}

// =============================================================================
// BANK - External payout destination
// =============================================================================

// Bank is a user's registered bank account. At most one account per user is
// the default; the payout engine resolves auto-payouts against it.
type Bank struct {
	ID            BankID
	UserID        UserID
	BankName      string
	AccountNumber string
	AccountName   string
	BankCode      string
	IsDefault     bool
	CreatedAt     time.Time
}

// =============================================================================
// IMPULSE STATS - Per-(user, calendar month) savings aggregate
// =============================================================================

// ImpulseStats rolls completed lock/schedule amounts into a monthly savings
// figure and tracks the user's impulse-resisting streak. The two update
// paths are independent: TotalSaved moves with the ledger, the streak fields
// move only when the user explicitly logs a stopped impulse.
type ImpulseStats struct {
	UserID          UserID
	Month           time.Time // first day of the month, UTC midnight
	TotalSaved      decimal.Decimal
	ImpulsesStopped int
	CurrentStreak   int
	LongestStreak   int
	SavingsGoal     decimal.Decimal
}

// MonthOf truncates t to the first day of its calendar month in UTC.
// All stats rows are keyed by this value.
func MonthOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MustDecimal parses s or returns zero. Intended for literals in tests and
// configuration defaults.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
