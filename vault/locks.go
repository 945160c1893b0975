/*
locks.go - Lock Manager

PURPOSE:
  Creates fixed-period fund locks and serves lock queries. Creating a lock
  atomically debits the spendable balance, credits the locked balance and
  appends a `lock` ledger row; the unlock side lives in payout.go.

VALIDATION ORDER:
  All validation happens before any mutation. Once the atomic step begins,
  the only outcomes are full commit or full rollback.
*/
package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pocketvault/ledger-engine/ledger"
)

// LockManager creates and queries fixed-period fund locks.
type LockManager struct {
	store    ledger.Store
	cfg      Config
	notifier Notifier

	// Now is injectable for tests; defaults to time.Now in UTC.
	Now func() time.Time
}

func NewLockManager(store ledger.Store, cfg Config, notifier Notifier) *LockManager {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &LockManager{store: store, cfg: cfg, notifier: notifier, Now: nowUTC}
}

// CreateLock commits amount from the user's balance for intervalDays.
// Fails with ValidationError for amounts/durations outside policy bounds,
// NotFoundError for a missing user and InsufficientFundsError when the
// spendable balance cannot cover the amount. No partial lock is ever created.
func (m *LockManager) CreateLock(ctx context.Context, userID ledger.UserID, amount decimal.Decimal, intervalDays int, description string) (*ledger.LockPeriod, error) {
	if amount.LessThan(m.cfg.MinLockAmount) {
		return nil, &ledger.ValidationError{
			Field:   "amount",
			Message: fmt.Sprintf("minimum lock amount is %s", m.cfg.MinLockAmount),
		}
	}
	if intervalDays < 1 || intervalDays > m.cfg.MaxLockDays {
		return nil, &ledger.ValidationError{
			Field:   "intervalDays",
			Message: fmt.Sprintf("lock period must be between 1 and %d days", m.cfg.MaxLockDays),
		}
	}

	user, err := fetchUser(ctx, m.store, userID)
	if err != nil {
		return nil, err
	}
	if user.Balance.LessThan(amount) {
		return nil, &ledger.InsufficientFundsError{
			UserID:    userID,
			Available: user.Balance,
			Requested: amount,
		}
	}

	now := m.Now()
	if description == "" {
		description = fmt.Sprintf("%d Day Lock", intervalDays)
	}

	lock := &ledger.LockPeriod{
		ID:           ledger.LockID(newID()),
		UserID:       userID,
		Amount:       amount,
		LockDate:     now,
		UnlockDate:   now.AddDate(0, 0, intervalDays),
		IntervalDays: intervalDays,
		Description:  description,
		Status:       ledger.LockStatusLocked,
	}

	err = m.store.WithTx(ctx, func(tx ledger.Tx) error {
		if err := tx.InsertLock(ctx, lock); err != nil {
			return err
		}

		balanceAfter, err := tx.AdjustBalances(ctx, userID, amount.Neg(), amount)
		if err != nil {
			return err
		}

		completed := now
		return tx.InsertTransaction(ctx, &ledger.Transaction{
			ID:            ledger.TransactionID(newID()),
			UserID:        userID,
			Type:          ledger.TxnLock,
			Amount:        amount,
			BalanceBefore: balanceAfter.Add(amount),
			BalanceAfter:  balanceAfter,
			Status:        ledger.TxnStatusCompleted,
			Description:   fmt.Sprintf("Locked %s for %d days", amount, intervalDays),
			Metadata:      map[string]string{"lockId": string(lock.ID)},
			CompletedAt:   &completed,
		})
	})
	if err != nil {
		return nil, err
	}

	// Best-effort, after commit.
	m.notifier.Notify(ctx, userID, EventLockCreated, map[string]string{
		"lockId":     string(lock.ID),
		"amount":     amount.String(),
		"unlockDate": lock.UnlockDate.Format(time.RFC3339),
	})

	return lock, nil
}

// GetAllLocks returns the user's locks, newest first.
func (m *LockManager) GetAllLocks(ctx context.Context, userID ledger.UserID) ([]ledger.LockPeriod, error) {
	return m.store.ListLocks(ctx, userID)
}

// GetLockByID returns one lock owned by the user.
func (m *LockManager) GetLockByID(ctx context.Context, userID ledger.UserID, id ledger.LockID) (*ledger.LockPeriod, error) {
	lock, err := m.store.GetLock(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if lock == nil {
		return nil, &ledger.NotFoundError{Kind: "lock", ID: string(id)}
	}
	return lock, nil
}

// GetUpcomingUnlocks returns the 5 soonest still-locked locks.
func (m *LockManager) GetUpcomingUnlocks(ctx context.Context, userID ledger.UserID) ([]ledger.LockPeriod, error) {
	return m.store.ListUpcomingUnlocks(ctx, userID, upcomingUnlockLimit)
}
