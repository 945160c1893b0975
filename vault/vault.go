/*
Package vault is the fund lock & scheduled payout engine.

PURPOSE:
  Moves money between a user's spendable and locked balances and the
  append-only transaction ledger. Contains the lock and schedule state
  machines, the shared payout-completion transition, the due-item scanner
  invoked by the periodic trigger, and the monthly savings aggregation.

COMPONENTS:
  LockManager     creates fixed-period locks and serves lock queries
  ScheduleManager creates/updates/deletes future-dated payout schedules
  PayoutEngine    the shared locked->released transition for both kinds,
                  with recurrence regeneration and auto-payout resolution
  ImpulseTracker  per-month savings/streak aggregate
  BankRegistry    payout destinations, at most one default per user
  Funding         deposits, withdrawals and ledger history
  Users           user records and balance views

GUARANTEES:
  - Every balance mutation runs inside one Store.WithTx unit and writes
    exactly one Transaction row bracketing the change.
  - Completion is exactly-once: the status precondition is checked inside
    the same atomic step that transitions it; the second attempt fails
    with ErrInvalidState and never double-pays.
  - Notifications are dispatched after commit, best-effort; their failure
    never rolls back a ledger operation.

SEE ALSO:
  - ledger: domain types, errors, recurrence, store interfaces
  - store/sqlite: the Ledger Store implementation
  - api: HTTP surface and the periodic payout scheduler
*/
package vault

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pocketvault/ledger-engine/ledger"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config carries the engine's policy bounds.
type Config struct {
	MinLockAmount      decimal.Decimal // floor for CreateLock
	MaxLockDays        int             // ceiling for lock duration
	MinDeposit         decimal.Decimal // floor for InitiateDeposit
	MinSavingsGoal     decimal.Decimal // floor for SetSavingsGoal
	DefaultSavingsGoal decimal.Decimal // goal applied to a fresh stats month
}

// DefaultConfig mirrors the deployment defaults.
func DefaultConfig() Config {
	return Config{
		MinLockAmount:      decimal.NewFromInt(1000),
		MaxLockDays:        365,
		MinDeposit:         decimal.NewFromInt(1000),
		MinSavingsGoal:     decimal.NewFromInt(1000),
		DefaultSavingsGoal: decimal.NewFromInt(500000),
	}
}

// upcomingUnlockLimit bounds the "soonest unlocks" dashboard query.
const upcomingUnlockLimit = 5

// =============================================================================
// HELPERS
// =============================================================================

func newID() string {
	return uuid.NewString()
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// fetchUser loads a user or returns NotFoundError.
func fetchUser(ctx context.Context, store ledger.Store, id ledger.UserID) (*ledger.User, error) {
	u, err := store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, &ledger.NotFoundError{Kind: "user", ID: string(id)}
	}
	return u, nil
}
