/*
payout.go - Payout Engine

PURPOSE:
  The single completion path for both lock periods and payout schedules.
  Completion flips the item's status exactly once, releases the committed
  principal, credits the payout amount to the wallet (or marks it as a bank
  withdrawal), writes one ledger transaction and, for schedules, spawns the
  next occurrence when a recurrence rule is set.

EXACTLY-ONCE:
  The status flip is a guarded UPDATE (WHERE status = current). Concurrent
  completions of the same item lose the guard and the whole transaction
  rolls back, so funds move at most once per item.
*/
package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pocketvault/ledger-engine/ledger"
)

// PayoutKind selects which kind of item a completion targets.
type PayoutKind string

const (
	KindLock     PayoutKind = "lock"
	KindSchedule PayoutKind = "schedule"
)

// PayoutResult reports what a single completion did.
type PayoutResult struct {
	ItemID       string
	Kind         PayoutKind
	Amount       decimal.Decimal // principal released from totalLocked
	PayoutAmount decimal.Decimal // amount credited (or sent to bank)
	Destination  string          // "wallet" or a bank ID
	Transaction  *ledger.Transaction
	NextSchedule *ledger.Schedule // non-nil when a recurrence spawned a successor
}

// PayoutEngine completes due items. Safe for concurrent use.
type PayoutEngine struct {
	store    ledger.Store
	notifier Notifier
	log      *zap.Logger

	Now func() time.Time
}

func NewPayoutEngine(store ledger.Store, notifier Notifier, log *zap.Logger) *PayoutEngine {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PayoutEngine{store: store, notifier: notifier, log: log, Now: nowUTC}
}

// CompletePayout settles one lock or schedule for the user. Returns
// InvalidStateError when the item was already completed and NotFoundError
// when it does not exist or belongs to someone else.
func (e *PayoutEngine) CompletePayout(ctx context.Context, userID ledger.UserID, itemID string, kind PayoutKind) (*PayoutResult, error) {
	now := e.Now()

	var result *PayoutResult
	err := e.store.WithTx(ctx, func(tx ledger.Tx) error {
		var err error
		switch kind {
		case KindLock:
			result, err = e.completeLock(ctx, tx, userID, ledger.LockID(itemID), now)
		case KindSchedule:
			result, err = e.completeSchedule(ctx, tx, userID, ledger.ScheduleID(itemID), now)
		default:
			err = &ledger.ValidationError{Field: "kind", Message: fmt.Sprintf("unknown payout kind %q", kind)}
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	event := EventLockUnlocked
	if kind == KindSchedule {
		event = EventScheduleCompleted
	}
	e.notifier.Notify(ctx, userID, event, map[string]string{
		"itemId":      result.ItemID,
		"amount":      result.PayoutAmount.String(),
		"destination": result.Destination,
	})
	if result.Destination != destinationWallet {
		e.notifier.Notify(ctx, userID, EventPayoutSent, map[string]string{
			"itemId": result.ItemID,
			"amount": result.PayoutAmount.String(),
			"bankId": result.Destination,
		})
	}

	return result, nil
}

const destinationWallet = "wallet"

func (e *PayoutEngine) completeLock(ctx context.Context, tx ledger.Tx, userID ledger.UserID, id ledger.LockID, now time.Time) (*PayoutResult, error) {
	l, err := tx.GetLock(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, &ledger.NotFoundError{Kind: "lock", ID: string(id)}
	}

	ok, err := tx.CompleteLock(ctx, userID, id, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ledger.InvalidStateError{Kind: "lock", ID: string(id), Status: string(l.Status)}
	}

	// A lock always pays its principal back to the wallet.
	txn, _, err := e.settle(ctx, tx, userID, l.Amount, l.Amount, false, ledger.TxnUnlock, now,
		fmt.Sprintf("Unlock: %s", l.Description),
		map[string]string{"lockId": string(id)})
	if err != nil {
		return nil, err
	}

	if err := tx.AddMonthlySavings(ctx, userID, ledger.MonthOf(now), l.Amount); err != nil {
		return nil, err
	}

	return &PayoutResult{
		ItemID:       string(id),
		Kind:         KindLock,
		Amount:       l.Amount,
		PayoutAmount: l.Amount,
		Destination:  destinationWallet,
		Transaction:  txn,
	}, nil
}

func (e *PayoutEngine) completeSchedule(ctx context.Context, tx ledger.Tx, userID ledger.UserID, id ledger.ScheduleID, now time.Time) (*PayoutResult, error) {
	sc, err := tx.GetSchedule(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if sc == nil {
		return nil, &ledger.NotFoundError{Kind: "schedule", ID: string(id)}
	}

	ok, err := tx.CompleteSchedule(ctx, userID, id, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ledger.InvalidStateError{Kind: "schedule", ID: string(id), Status: string(sc.Status)}
	}

	// Spawn the successor before settling so a recurrence failure rolls the
	// whole completion back.
	var next *ledger.Schedule
	rec := ledger.ParseRecurrence(sc.Recurrence)
	if rec.IsRepeating() {
		if nextDate, more := rec.NextOccurrence(sc.ScheduledDate); more {
			next = &ledger.Schedule{
				ID:            ledger.ScheduleID(newID()),
				UserID:        userID,
				Title:         sc.Title,
				Amount:        sc.Amount,
				PayoutAmount:  sc.PayoutAmount,
				ScheduledDate: nextDate,
				Recurrence:    sc.Recurrence,
				Status:        ledger.ScheduleStatusLocked,
				AutoPayout:    sc.AutoPayout,
			}
			if err := tx.InsertSchedule(ctx, next); err != nil {
				return nil, err
			}
			// The successor commits the principal anew.
			if _, err := tx.AdjustBalances(ctx, userID, decimal.Zero, sc.Amount); err != nil {
				return nil, err
			}
			if err := tx.AddMonthlySavings(ctx, userID, ledger.MonthOf(now), sc.Amount); err != nil {
				return nil, err
			}
		}
	}

	// Auto-payout routes to the default bank when one is registered,
	// otherwise the wallet gets the funds.
	destination := destinationWallet
	toBank := false
	if sc.AutoPayout {
		bank, err := tx.DefaultBank(ctx, userID)
		if err != nil {
			return nil, err
		}
		if bank != nil {
			destination = string(bank.ID)
			toBank = true
		}
	}

	txType := ledger.TxnPayout
	desc := fmt.Sprintf("Payout: %s", sc.Title)
	if toBank {
		txType = ledger.TxnWithdrawal
		desc = fmt.Sprintf("Bank payout: %s", sc.Title)
	}

	meta := map[string]string{"scheduleId": string(id)}
	if toBank {
		meta["bankId"] = destination
	}
	if next != nil {
		meta["nextScheduleId"] = string(next.ID)
	}

	txn, _, err := e.settle(ctx, tx, userID, sc.Amount, sc.PayoutAmount, toBank, txType, now, desc, meta)
	if err != nil {
		return nil, err
	}

	if err := tx.AddMonthlySavings(ctx, userID, ledger.MonthOf(now), sc.Amount); err != nil {
		return nil, err
	}

	return &PayoutResult{
		ItemID:       string(id),
		Kind:         KindSchedule,
		Amount:       sc.Amount,
		PayoutAmount: sc.PayoutAmount,
		Destination:  destination,
		Transaction:  txn,
		NextSchedule: next,
	}, nil
}

// settle releases principal from totalLocked, credits payout to the wallet
// unless the funds leave for a bank, and writes the ledger row.
func (e *PayoutEngine) settle(ctx context.Context, tx ledger.Tx, userID ledger.UserID, principal, payout decimal.Decimal, toBank bool, txType ledger.TxnType, now time.Time, description string, meta map[string]string) (*ledger.Transaction, decimal.Decimal, error) {
	balanceDelta := payout
	if toBank {
		balanceDelta = decimal.Zero
	}
	balanceAfter, err := tx.AdjustBalances(ctx, userID, balanceDelta, principal.Neg())
	if err != nil {
		return nil, decimal.Zero, err
	}
	balanceBefore := balanceAfter.Sub(balanceDelta)

	completedAt := now
	txn := &ledger.Transaction{
		ID:            ledger.TransactionID(newID()),
		UserID:        userID,
		Type:          txType,
		Amount:        payout,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		Status:        ledger.TxnStatusCompleted,
		Description:   description,
		Metadata:      meta,
		CompletedAt:   &completedAt,
	}
	if err := tx.InsertTransaction(ctx, txn); err != nil {
		return nil, decimal.Zero, err
	}
	return txn, balanceAfter, nil
}

// =============================================================================
// DUE SCAN
// =============================================================================

// ScanResult tallies one sweep over due items.
type ScanResult struct {
	LocksCompleted     int
	SchedulesCompleted int
	Skipped            int
	Failed             int
}

// ScanAndCompleteDue completes every lock past its unlock date and every
// auto-payout schedule past its scheduled date. Items completed by a
// concurrent caller count as skipped, other failures are logged and counted
// without stopping the sweep.
func (e *PayoutEngine) ScanAndCompleteDue(ctx context.Context) (ScanResult, error) {
	now := e.Now()
	var res ScanResult

	locks, err := e.store.ListDueLocks(ctx, now)
	if err != nil {
		return res, err
	}
	for _, l := range locks {
		if _, err := e.CompletePayout(ctx, l.UserID, string(l.ID), KindLock); err != nil {
			if ledger.IsInvalidState(err) {
				res.Skipped++
				continue
			}
			res.Failed++
			e.log.Error("due lock completion failed",
				zap.String("lockId", string(l.ID)),
				zap.String("userId", string(l.UserID)),
				zap.Error(err))
			continue
		}
		res.LocksCompleted++
	}

	scheds, err := e.store.ListDueAutoPayouts(ctx, now)
	if err != nil {
		return res, err
	}
	for _, sc := range scheds {
		if _, err := e.CompletePayout(ctx, sc.UserID, string(sc.ID), KindSchedule); err != nil {
			if ledger.IsInvalidState(err) {
				res.Skipped++
				continue
			}
			res.Failed++
			e.log.Error("due schedule completion failed",
				zap.String("scheduleId", string(sc.ID)),
				zap.String("userId", string(sc.UserID)),
				zap.Error(err))
			continue
		}
		res.SchedulesCompleted++
	}

	if res.LocksCompleted+res.SchedulesCompleted > 0 {
		e.log.Info("due payout sweep",
			zap.Int("locks", res.LocksCompleted),
			zap.Int("schedules", res.SchedulesCompleted),
			zap.Int("skipped", res.Skipped),
			zap.Int("failed", res.Failed))
	}
	return res, nil
}
