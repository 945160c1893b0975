package vault_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketvault/ledger-engine/ledger"
	"github.com/pocketvault/ledger-engine/vault"
)

// =============================================================================
// CONSERVATION
// =============================================================================

// Locks shuffle funds between balance and totalLocked, so their round trip
// conserves balance + totalLocked exactly. Schedules commit without debiting
// the wallet and settle by crediting it, so across a full lifecycle
// totalLocked returns to its starting point while the wallet nets the payout.

func TestConservation_LockRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 80000)

	snapshot := func() (balance, locked, total int64) {
		t.Helper()
		bal, err := h.Users.GetBalance(ctx, userID)
		require.NoError(t, err)
		return bal.Balance.IntPart(), bal.TotalLocked.IntPart(), bal.Total.IntPart()
	}

	_, _, total := snapshot()
	assert.EqualValues(t, 80000, total)

	lock, err := h.Locks.CreateLock(ctx, userID, dec(30000), 10, "")
	require.NoError(t, err)
	balance, locked, total := snapshot()
	assert.EqualValues(t, 50000, balance)
	assert.EqualValues(t, 30000, locked)
	assert.EqualValues(t, 80000, total, "lock creation conserves the total")

	h.advance(11 * 24 * time.Hour)
	_, err = h.Payouts.CompletePayout(ctx, userID, string(lock.ID), vault.KindLock)
	require.NoError(t, err)
	balance, locked, total = snapshot()
	assert.EqualValues(t, 80000, balance)
	assert.EqualValues(t, 0, locked)
	assert.EqualValues(t, 80000, total, "lock completion conserves the total")
}

func TestConservation_ScheduleLifecycle_LockedReturnsToBaseline(t *testing.T) {
	// GIVEN: totalLocked at zero
	// WHEN: A schedule is created and later completed
	// THEN: totalLocked returns to zero and the wallet nets exactly the payout

	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 80000)

	sched, err := h.Schedules.CreateSchedule(ctx, userID, vault.CreateScheduleRequest{
		Title: "cycle", Amount: dec(20000), ScheduledDate: testClock.AddDate(0, 0, 5),
	})
	require.NoError(t, err)

	bal, err := h.Users.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, bal.Balance.Equal(dec(80000)), "commitment does not touch the wallet")
	assert.True(t, bal.TotalLocked.Equal(dec(20000)))

	_, err = h.Payouts.CompletePayout(ctx, userID, string(sched.ID), vault.KindSchedule)
	require.NoError(t, err)

	bal, err = h.Users.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, bal.TotalLocked.IsZero(), "totalLocked back to baseline")
	assert.True(t, bal.Balance.Equal(dec(100000)), "wallet netted the payout")
}

func TestConservation_LedgerRowsChainBalances(t *testing.T) {
	// GIVEN: A deposit, a lock, its unlock and a schedule payout
	// WHEN: Walking the ledger oldest first
	// THEN: Every row's balanceAfter matches the following row's balanceBefore,
	//       and the deltas sum to the final balance

	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 60000)

	lock, err := h.Locks.CreateLock(ctx, userID, dec(25000), 3, "")
	require.NoError(t, err)
	sched, err := h.Schedules.CreateSchedule(ctx, userID, vault.CreateScheduleRequest{
		Title: "extra", Amount: dec(5000), ScheduledDate: testClock.AddDate(0, 0, 2),
	})
	require.NoError(t, err)

	h.advance(4 * 24 * time.Hour)
	_, err = h.Payouts.CompletePayout(ctx, userID, string(lock.ID), vault.KindLock)
	require.NoError(t, err)
	_, err = h.Payouts.CompletePayout(ctx, userID, string(sched.ID), vault.KindSchedule)
	require.NoError(t, err)

	txns, _, err := h.Funding.ListTransactions(ctx, userID, ledger.TxnFilter{Limit: 100})
	require.NoError(t, err)
	require.Len(t, txns, 4, "deposit, lock, unlock, payout")

	// Newest first; walk backwards.
	delta := dec(0)
	for i := len(txns) - 1; i >= 0; i-- {
		row := txns[i]
		delta = delta.Add(row.BalanceAfter.Sub(row.BalanceBefore))
		if i > 0 {
			next := txns[i-1]
			assert.True(t, row.BalanceAfter.Equal(next.BalanceBefore),
				"row %s after=%s, next row %s before=%s",
				row.ID, row.BalanceAfter, next.ID, next.BalanceBefore)
		}
	}

	bal, err := h.Users.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, delta.Equal(bal.Balance), "ledger deltas %s, balance %s", delta, bal.Balance)
}

// =============================================================================
// END TO END VIA THE SWEEP
// =============================================================================

func TestEndToEnd_LockThroughPeriodicTrigger(t *testing.T) {
	// GIVEN: A 5,000 lock for 7 days
	// WHEN: Time passes its unlock date and the sweep runs
	// THEN: The lock unlocks with matching before/after balances on the row

	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 20000)

	lock, err := h.Locks.CreateLock(ctx, userID, dec(5000), 7, "")
	require.NoError(t, err)

	bal, err := h.Users.GetBalance(ctx, userID)
	require.NoError(t, err)
	require.True(t, bal.Balance.Equal(dec(15000)))
	require.True(t, bal.TotalLocked.Equal(dec(5000)))

	h.advance(8 * 24 * time.Hour)
	res, err := h.Payouts.ScanAndCompleteDue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.LocksCompleted)

	got, err := h.Locks.GetLockByID(ctx, userID, lock.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.LockStatusUnlocked, got.Status)

	bal, err = h.Users.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, bal.Balance.Equal(dec(20000)))
	assert.True(t, bal.TotalLocked.IsZero())

	unlocks, _, err := h.Funding.ListTransactions(ctx, userID, ledger.TxnFilter{Type: ledger.TxnUnlock})
	require.NoError(t, err)
	require.Len(t, unlocks, 1)
	assert.True(t, unlocks[0].BalanceBefore.Equal(dec(15000)))
	assert.True(t, unlocks[0].BalanceAfter.Equal(dec(20000)))
}

func TestEndToEnd_RecurringAutoPayoutChain(t *testing.T) {
	// GIVEN: A weekly auto-payout schedule to a bank
	// WHEN: Sweeping across three weeks
	// THEN: Each sweep settles one occurrence to the bank and spawns the next;
	//       the wallet stays flat and exactly one occurrence stays open

	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 50000)

	_, err := h.Banks.AddBank(ctx, userID, vault.AddBankRequest{
		BankName: "First National", AccountNumber: "0123456789",
	})
	require.NoError(t, err)

	_, err = h.Schedules.CreateSchedule(ctx, userID, vault.CreateScheduleRequest{
		Title:         "weekly out",
		Amount:        dec(5000),
		ScheduledDate: testClock.AddDate(0, 0, 7),
		Recurrence:    ledger.FreqWeekly,
		AutoPayout:    true,
	})
	require.NoError(t, err)

	for week := 1; week <= 3; week++ {
		h.advance(7 * 24 * time.Hour)
		res, err := h.Payouts.ScanAndCompleteDue(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, res.SchedulesCompleted, "week %d", week)

		bal, err := h.Users.GetBalance(ctx, userID)
		require.NoError(t, err)
		assert.True(t, bal.Balance.Equal(dec(50000)),
			"week %d: bank payouts bypass the wallet, balance %s", week, bal.Balance)
		assert.True(t, bal.TotalLocked.Equal(dec(5000)), "chain keeps one commitment open")
	}

	scheds, err := h.Schedules.GetUserSchedules(ctx, userID)
	require.NoError(t, err)

	var open int
	for _, sc := range scheds {
		if sc.Status != ledger.ScheduleStatusCompleted {
			open++
		}
	}
	assert.Equal(t, 1, open, "exactly one live occurrence at a time")
	assert.Len(t, scheds, 4, "three completed plus the live one")

	withdrawals, _, err := h.Funding.ListTransactions(ctx, userID, ledger.TxnFilter{Type: ledger.TxnWithdrawal})
	require.NoError(t, err)
	assert.Len(t, withdrawals, 3, "one bank withdrawal per settled week")
}
