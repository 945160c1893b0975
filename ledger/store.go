/*
store.go - Persistence interfaces for the ledger engine

PURPOSE:
  Defines the boundary between the engine and the database. The Store is the
  only consistency primitive the engine relies on: every state-changing
  operation runs inside WithTx, and either all of its row changes commit
  together or none do.

THE ATOMIC CONTRACT:
  WithTx executes a function against a Tx. If the function returns an error
  the whole unit is rolled back. Partial application (balance debited but no
  Transaction written) is a correctness failure, so the engine never mutates
  rows outside a Tx.

EXACTLY-ONCE TRANSITIONS:
  CompleteLock / CompleteSchedule are guarded updates: they change status
  only when the row is still in the expected state, and report whether the
  transition happened. Two concurrent completions of the same item therefore
  yield exactly one success; the loser sees transitioned=false and surfaces
  ErrInvalidState.

RELATIVE BALANCE UPDATES:
  AdjustBalances applies deltas to balance/totalLocked inside the Tx and
  returns the balance actually written, so BalanceBefore/BalanceAfter on the
  ledger row are derived from the committed value, never from a stale
  pre-transaction snapshot.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store (schema migrated on New)

SEE ALSO:
  - vault package: the only caller of these interfaces
  - store/sqlite/sqlite.go: concrete implementation
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// READ-SIDE
// =============================================================================

// TxnFilter narrows and pages transaction history queries.
type TxnFilter struct {
	Type  TxnType // empty = all types
	Page  int     // 1-based
	Limit int
}

// =============================================================================
// STORE - Ledger Store boundary
// =============================================================================

// Store is the persistence boundary for the engine. Reads outside WithTx see
// committed state only; all writes go through WithTx.
type Store interface {
	// Users
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id UserID) (*User, error) // nil, nil when absent

	// Locks
	GetLock(ctx context.Context, userID UserID, id LockID) (*LockPeriod, error)
	ListLocks(ctx context.Context, userID UserID) ([]LockPeriod, error)
	ListUpcomingUnlocks(ctx context.Context, userID UserID, limit int) ([]LockPeriod, error)
	// ListDueLocks returns locks with status=locked and unlockDate <= asOf.
	ListDueLocks(ctx context.Context, asOf time.Time) ([]LockPeriod, error)

	// Schedules
	GetSchedule(ctx context.Context, userID UserID, id ScheduleID) (*Schedule, error)
	ListSchedules(ctx context.Context, userID UserID) ([]Schedule, error)
	// ListDueAutoPayouts returns schedules with status in {pending, locked},
	// autoPayout=true and scheduledDate <= asOf.
	ListDueAutoPayouts(ctx context.Context, asOf time.Time) ([]Schedule, error)

	// Banks
	ListBanks(ctx context.Context, userID UserID) ([]Bank, error)
	DefaultBank(ctx context.Context, userID UserID) (*Bank, error) // nil, nil when none

	// Transactions
	ListTransactions(ctx context.Context, userID UserID, f TxnFilter) ([]Transaction, int, error)
	GetTransaction(ctx context.Context, userID UserID, id TransactionID) (*Transaction, error)
	GetTransactionByReference(ctx context.Context, userID UserID, reference string) (*Transaction, error)

	// Stats
	GetMonthlyStats(ctx context.Context, userID UserID, month time.Time) (*ImpulseStats, error)

	// WithTx executes fn atomically. If fn returns an error the transaction
	// is rolled back; otherwise it is committed.
	WithTx(ctx context.Context, fn func(Tx) error) error
}

// =============================================================================
// TX - One atomic, isolated unit of work
// =============================================================================

// Tx is the handle fn receives inside Store.WithTx. Everything done through
// it commits or rolls back as one unit.
type Tx interface {
	// GetUser reads the user's row inside the transaction.
	GetUser(ctx context.Context, id UserID) (*User, error)

	// AdjustBalances applies relative deltas to balance and totalLocked and
	// returns the balance as written. Fails with InsufficientFundsError if
	// the spendable balance would go negative.
	AdjustBalances(ctx context.Context, userID UserID, balanceDelta, lockedDelta decimal.Decimal) (decimal.Decimal, error)

	// Locks
	InsertLock(ctx context.Context, l *LockPeriod) error
	GetLock(ctx context.Context, userID UserID, id LockID) (*LockPeriod, error)
	// CompleteLock transitions locked -> unlocked, setting actualUnlockDate.
	// Returns false when the lock was not in status locked.
	CompleteLock(ctx context.Context, userID UserID, id LockID, at time.Time) (bool, error)

	// Schedules
	InsertSchedule(ctx context.Context, s *Schedule) error
	GetSchedule(ctx context.Context, userID UserID, id ScheduleID) (*Schedule, error)
	// CompleteSchedule transitions {pending|locked} -> completed, setting
	// executedAt. Returns false when the schedule was already completed.
	CompleteSchedule(ctx context.Context, userID UserID, id ScheduleID, at time.Time) (bool, error)
	// UpdateSchedule rewrites mutable fields of a non-completed schedule.
	// Returns false when the row is absent or already completed.
	UpdateSchedule(ctx context.Context, s *Schedule) (bool, error)
	// DeleteSchedule removes a non-completed schedule.
	// Returns false when the row is absent or already completed.
	DeleteSchedule(ctx context.Context, userID UserID, id ScheduleID) (bool, error)

	// Ledger
	InsertTransaction(ctx context.Context, t *Transaction) error
	// CompleteTransactionByRef flips a pending row to completed and records
	// the balances as settled. Returns false when the row was not pending.
	CompleteTransactionByRef(ctx context.Context, userID UserID, reference string, balanceBefore, balanceAfter decimal.Decimal, at time.Time) (bool, error)

	// Stats
	// AddMonthlySavings upserts the (userID, month) stats row, creating it
	// with TotalSaved=amount or incrementing the existing TotalSaved.
	AddMonthlySavings(ctx context.Context, userID UserID, month time.Time, amount decimal.Decimal) error
	GetMonthlyStats(ctx context.Context, userID UserID, month time.Time) (*ImpulseStats, error)
	SaveMonthlyStats(ctx context.Context, s *ImpulseStats) error

	// Banks
	DefaultBank(ctx context.Context, userID UserID) (*Bank, error)
	GetBank(ctx context.Context, userID UserID, id BankID) (*Bank, error)
	InsertBank(ctx context.Context, b *Bank) error
	CountBanks(ctx context.Context, userID UserID) (int, error)
	ClearDefaultBank(ctx context.Context, userID UserID) error
	SetDefaultBank(ctx context.Context, userID UserID, id BankID) (bool, error)
	DeleteBank(ctx context.Context, userID UserID, id BankID) (bool, error)
	// PromoteOldestBank makes the oldest remaining account the default when
	// no default exists. No-op otherwise.
	PromoteOldestBank(ctx context.Context, userID UserID) error
}
