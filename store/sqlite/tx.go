/*
tx.go - Atomic transaction primitive for the Ledger Store

PURPOSE:
  Implements Store.WithTx and the ledger.Tx handle. Everything performed
  through the handle commits or rolls back as one unit; the engine never
  half-applies a balance movement.

GUARDED TRANSITIONS:
  CompleteLock/CompleteSchedule/CompleteTransactionByRef use status-guarded
  UPDATEs and report via RowsAffected whether this invocation performed the
  transition. That is the optimistic precondition check the payout engine
  relies on for exactly-once completion.
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pocketvault/ledger-engine/ledger"
)

// WithTx executes fn within a database transaction. The store mutex is held
// for the duration, so write transactions serialize at the process level.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &ledger.StorageError{Op: "begin transaction", Err: err}
	}
	defer sqlTx.Rollback()

	if err := fn(&storeTx{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return &ledger.StorageError{Op: "commit transaction", Err: err}
	}
	return nil
}

type storeTx struct {
	tx *sql.Tx
}

// =============================================================================
// USERS & BALANCES
// =============================================================================

func (t *storeTx) GetUser(ctx context.Context, id ledger.UserID) (*ledger.User, error) {
	return getUser(ctx, t.tx, id)
}

func (t *storeTx) AdjustBalances(ctx context.Context, userID ledger.UserID, balanceDelta, lockedDelta decimal.Decimal) (decimal.Decimal, error) {
	var balance, locked string
	err := t.tx.QueryRowContext(ctx,
		"SELECT balance, total_locked FROM users WHERE id = ?", userID,
	).Scan(&balance, &locked)
	if err == sql.ErrNoRows {
		return decimal.Zero, &ledger.NotFoundError{Kind: "user", ID: string(userID)}
	}
	if err != nil {
		return decimal.Zero, &ledger.StorageError{Op: "read balances", Err: err}
	}

	newBalance := parseDec(balance).Add(balanceDelta)
	newLocked := parseDec(locked).Add(lockedDelta)

	if newBalance.IsNegative() {
		return decimal.Zero, &ledger.InsufficientFundsError{
			UserID:    userID,
			Available: parseDec(balance),
			Requested: balanceDelta.Neg(),
		}
	}
	if newLocked.IsNegative() {
		return decimal.Zero, &ledger.StorageError{
			Op: "adjust balances", Err: errors.New("total_locked would go negative"),
		}
	}

	_, err = t.tx.ExecContext(ctx,
		"UPDATE users SET balance = ?, total_locked = ? WHERE id = ?",
		newBalance.String(), newLocked.String(), userID,
	)
	if err != nil {
		return decimal.Zero, &ledger.StorageError{Op: "adjust balances", Err: err}
	}
	return newBalance, nil
}

// =============================================================================
// LOCKS
// =============================================================================

func (t *storeTx) InsertLock(ctx context.Context, l *ledger.LockPeriod) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO lock_periods
		(id, user_id, amount, lock_date, unlock_date, interval_days, description,
		 status, actual_unlock_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.UserID, l.Amount.String(),
		l.LockDate.UTC().Format(time.RFC3339),
		l.UnlockDate.UTC().Format(time.RFC3339),
		l.IntervalDays, nullString(l.Description), l.Status,
		nullTime(l.ActualUnlockDate),
		l.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return &ledger.StorageError{Op: "insert lock", Err: err}
	}
	return nil
}

func (t *storeTx) GetLock(ctx context.Context, userID ledger.UserID, id ledger.LockID) (*ledger.LockPeriod, error) {
	return getLock(ctx, t.tx, userID, id)
}

func (t *storeTx) CompleteLock(ctx context.Context, userID ledger.UserID, id ledger.LockID, at time.Time) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE lock_periods SET status = ?, actual_unlock_date = ?
		WHERE id = ? AND user_id = ? AND status = ?`,
		ledger.LockStatusUnlocked, at.UTC().Format(time.RFC3339),
		id, userID, ledger.LockStatusLocked,
	)
	if err != nil {
		return false, &ledger.StorageError{Op: "complete lock", Err: err}
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// =============================================================================
// SCHEDULES
// =============================================================================

func (t *storeTx) InsertSchedule(ctx context.Context, sc *ledger.Schedule) error {
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO schedules
		(id, user_id, title, amount, payout_amount, scheduled_date, recurrence,
		 status, auto_payout, executed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.UserID, sc.Title, sc.Amount.String(), sc.PayoutAmount.String(),
		sc.ScheduledDate.UTC().Format(time.RFC3339), sc.Recurrence, sc.Status,
		boolInt(sc.AutoPayout), nullTime(sc.ExecutedAt),
		sc.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return &ledger.StorageError{Op: "insert schedule", Err: err}
	}
	return nil
}

func (t *storeTx) GetSchedule(ctx context.Context, userID ledger.UserID, id ledger.ScheduleID) (*ledger.Schedule, error) {
	return getSchedule(ctx, t.tx, userID, id)
}

func (t *storeTx) CompleteSchedule(ctx context.Context, userID ledger.UserID, id ledger.ScheduleID, at time.Time) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE schedules SET status = ?, executed_at = ?
		WHERE id = ? AND user_id = ? AND status != ?`,
		ledger.ScheduleStatusCompleted, at.UTC().Format(time.RFC3339),
		id, userID, ledger.ScheduleStatusCompleted,
	)
	if err != nil {
		return false, &ledger.StorageError{Op: "complete schedule", Err: err}
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (t *storeTx) UpdateSchedule(ctx context.Context, sc *ledger.Schedule) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE schedules
		SET title = ?, payout_amount = ?, scheduled_date = ?, recurrence = ?, auto_payout = ?
		WHERE id = ? AND user_id = ? AND status != ?`,
		sc.Title, sc.PayoutAmount.String(),
		sc.ScheduledDate.UTC().Format(time.RFC3339), sc.Recurrence,
		boolInt(sc.AutoPayout),
		sc.ID, sc.UserID, ledger.ScheduleStatusCompleted,
	)
	if err != nil {
		return false, &ledger.StorageError{Op: "update schedule", Err: err}
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (t *storeTx) DeleteSchedule(ctx context.Context, userID ledger.UserID, id ledger.ScheduleID) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		"DELETE FROM schedules WHERE id = ? AND user_id = ? AND status != ?",
		id, userID, ledger.ScheduleStatusCompleted,
	)
	if err != nil {
		return false, &ledger.StorageError{Op: "delete schedule", Err: err}
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// =============================================================================
// LEDGER TRANSACTIONS
// =============================================================================

func (t *storeTx) InsertTransaction(ctx context.Context, txn *ledger.Transaction) error {
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	metadataJSON, _ := json.Marshal(txn.Metadata)

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO transactions
		(id, user_id, tx_type, amount, balance_before, balance_after, status,
		 reference, description, metadata_json, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.UserID, txn.Type, txn.Amount.String(),
		txn.BalanceBefore.String(), txn.BalanceAfter.String(), txn.Status,
		nullString(txn.Reference), nullString(txn.Description),
		string(metadataJSON), nullTime(txn.CompletedAt),
		txn.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &ledger.ValidationError{Field: "reference", Message: "already used"}
		}
		return &ledger.StorageError{Op: "insert transaction", Err: err}
	}
	return nil
}

func (t *storeTx) CompleteTransactionByRef(ctx context.Context, userID ledger.UserID, reference string, balanceBefore, balanceAfter decimal.Decimal, at time.Time) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE transactions SET status = ?, balance_before = ?, balance_after = ?, completed_at = ?
		WHERE user_id = ? AND reference = ? AND status = ?`,
		ledger.TxnStatusCompleted, balanceBefore.String(), balanceAfter.String(),
		at.UTC().Format(time.RFC3339), userID, reference, ledger.TxnStatusPending,
	)
	if err != nil {
		return false, &ledger.StorageError{Op: "complete transaction", Err: err}
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// =============================================================================
// STATS
// =============================================================================

func (t *storeTx) AddMonthlySavings(ctx context.Context, userID ledger.UserID, month time.Time, amount decimal.Decimal) error {
	existing, err := getMonthlyStats(ctx, t.tx, userID, month)
	if err != nil {
		return err
	}

	if existing == nil {
		_, err = t.tx.ExecContext(ctx, `
			INSERT INTO impulse_stats (user_id, month, total_saved)
			VALUES (?, ?, ?)`,
			userID, monthKey(month), amount.String(),
		)
	} else {
		_, err = t.tx.ExecContext(ctx, `
			UPDATE impulse_stats SET total_saved = ?
			WHERE user_id = ? AND month = ?`,
			existing.TotalSaved.Add(amount).String(), userID, monthKey(month),
		)
	}
	if err != nil {
		return &ledger.StorageError{Op: "add monthly savings", Err: err}
	}
	return nil
}

func (t *storeTx) GetMonthlyStats(ctx context.Context, userID ledger.UserID, month time.Time) (*ledger.ImpulseStats, error) {
	return getMonthlyStats(ctx, t.tx, userID, month)
}

func (t *storeTx) SaveMonthlyStats(ctx context.Context, st *ledger.ImpulseStats) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO impulse_stats
		(user_id, month, total_saved, impulses_stopped, current_streak, longest_streak, savings_goal)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, month) DO UPDATE SET
			total_saved = excluded.total_saved,
			impulses_stopped = excluded.impulses_stopped,
			current_streak = excluded.current_streak,
			longest_streak = excluded.longest_streak,
			savings_goal = excluded.savings_goal`,
		st.UserID, monthKey(st.Month), st.TotalSaved.String(),
		st.ImpulsesStopped, st.CurrentStreak, st.LongestStreak,
		st.SavingsGoal.String(),
	)
	if err != nil {
		return &ledger.StorageError{Op: "save monthly stats", Err: err}
	}
	return nil
}

// =============================================================================
// BANKS
// =============================================================================

func (t *storeTx) DefaultBank(ctx context.Context, userID ledger.UserID) (*ledger.Bank, error) {
	return defaultBank(ctx, t.tx, userID)
}

func (t *storeTx) GetBank(ctx context.Context, userID ledger.UserID, id ledger.BankID) (*ledger.Bank, error) {
	return getBank(ctx, t.tx, userID, id)
}

func (t *storeTx) InsertBank(ctx context.Context, b *ledger.Bank) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO banks
		(id, user_id, bank_name, account_number, account_name, bank_code, is_default, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.BankName, b.AccountNumber,
		nullString(b.AccountName), nullString(b.BankCode),
		boolInt(b.IsDefault), b.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &ledger.ValidationError{Field: "isDefault", Message: "user already has a default bank"}
		}
		return &ledger.StorageError{Op: "insert bank", Err: err}
	}
	return nil
}

func (t *storeTx) CountBanks(ctx context.Context, userID ledger.UserID) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM banks WHERE user_id = ?", userID).Scan(&n)
	if err != nil {
		return 0, &ledger.StorageError{Op: "count banks", Err: err}
	}
	return n, nil
}

func (t *storeTx) ClearDefaultBank(ctx context.Context, userID ledger.UserID) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE banks SET is_default = 0 WHERE user_id = ? AND is_default = 1", userID)
	if err != nil {
		return &ledger.StorageError{Op: "clear default bank", Err: err}
	}
	return nil
}

func (t *storeTx) SetDefaultBank(ctx context.Context, userID ledger.UserID, id ledger.BankID) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE banks SET is_default = 1 WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return false, &ledger.StorageError{Op: "set default bank", Err: err}
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (t *storeTx) DeleteBank(ctx context.Context, userID ledger.UserID, id ledger.BankID) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		"DELETE FROM banks WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return false, &ledger.StorageError{Op: "delete bank", Err: err}
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (t *storeTx) PromoteOldestBank(ctx context.Context, userID ledger.UserID) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE banks SET is_default = 1
		WHERE user_id = ?
		  AND NOT EXISTS (SELECT 1 FROM banks WHERE user_id = ? AND is_default = 1)
		  AND id = (SELECT id FROM banks WHERE user_id = ? ORDER BY created_at ASC, id ASC LIMIT 1)`,
		userID, userID, userID)
	if err != nil {
		return &ledger.StorageError{Op: "promote oldest bank", Err: err}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
