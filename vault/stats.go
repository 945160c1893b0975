/*
stats.go - Impulse Savings Tracker

PURPOSE:
  Monthly savings aggregates and the impulse-stopped counters. Savings roll
  in automatically when funds are committed or released (locks.go,
  schedules.go, payout.go); this file serves reads and the explicit
  user-driven counters.
*/
package vault

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pocketvault/ledger-engine/ledger"
)

// ImpulseTracker reads and mutates per-month impulse stats.
type ImpulseTracker struct {
	store ledger.Store
	cfg   Config

	Now func() time.Time
}

func NewImpulseTracker(store ledger.Store, cfg Config) *ImpulseTracker {
	return &ImpulseTracker{store: store, cfg: cfg, Now: nowUTC}
}

// GetStats returns the user's stats for the current month. A month with no
// activity yet reads as zeroes with the default savings goal.
func (t *ImpulseTracker) GetStats(ctx context.Context, userID ledger.UserID) (*ledger.ImpulseStats, error) {
	if _, err := fetchUser(ctx, t.store, userID); err != nil {
		return nil, err
	}
	month := ledger.MonthOf(t.Now())
	stats, err := t.store.GetMonthlyStats(ctx, userID, month)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = &ledger.ImpulseStats{
			UserID:      userID,
			Month:       month,
			TotalSaved:  decimal.Zero,
			SavingsGoal: t.cfg.DefaultSavingsGoal,
		}
	}
	return stats, nil
}

// TrackImpulseStopped records one resisted impulse purchase and extends the
// streak counters.
func (t *ImpulseTracker) TrackImpulseStopped(ctx context.Context, userID ledger.UserID, amount decimal.Decimal) (*ledger.ImpulseStats, error) {
	if amount.IsNegative() {
		return nil, &ledger.ValidationError{Field: "amount", Message: "must not be negative"}
	}
	if _, err := fetchUser(ctx, t.store, userID); err != nil {
		return nil, err
	}

	month := ledger.MonthOf(t.Now())
	var out *ledger.ImpulseStats
	err := t.store.WithTx(ctx, func(tx ledger.Tx) error {
		stats, err := tx.GetMonthlyStats(ctx, userID, month)
		if err != nil {
			return err
		}
		if stats == nil {
			stats = &ledger.ImpulseStats{
				UserID:      userID,
				Month:       month,
				TotalSaved:  decimal.Zero,
				SavingsGoal: t.cfg.DefaultSavingsGoal,
			}
		}
		stats.ImpulsesStopped++
		stats.CurrentStreak++
		if stats.CurrentStreak > stats.LongestStreak {
			stats.LongestStreak = stats.CurrentStreak
		}
		stats.TotalSaved = stats.TotalSaved.Add(amount)
		if err := tx.SaveMonthlyStats(ctx, stats); err != nil {
			return err
		}
		out = stats
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetSavingsGoal updates the current month's goal.
func (t *ImpulseTracker) SetSavingsGoal(ctx context.Context, userID ledger.UserID, goal decimal.Decimal) (*ledger.ImpulseStats, error) {
	if goal.LessThan(t.cfg.MinSavingsGoal) {
		return nil, &ledger.ValidationError{Field: "savingsGoal", Message: "below minimum goal"}
	}
	if _, err := fetchUser(ctx, t.store, userID); err != nil {
		return nil, err
	}

	month := ledger.MonthOf(t.Now())
	var out *ledger.ImpulseStats
	err := t.store.WithTx(ctx, func(tx ledger.Tx) error {
		stats, err := tx.GetMonthlyStats(ctx, userID, month)
		if err != nil {
			return err
		}
		if stats == nil {
			stats = &ledger.ImpulseStats{
				UserID:     userID,
				Month:      month,
				TotalSaved: decimal.Zero,
			}
		}
		stats.SavingsGoal = goal
		if err := tx.SaveMonthlyStats(ctx, stats); err != nil {
			return err
		}
		out = stats
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
