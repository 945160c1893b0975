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
// LOCK CREATION
// =============================================================================

func TestCreateLock_MovesFundsToLocked(t *testing.T) {
	// GIVEN: A user with 50,000 in the wallet
	// WHEN: Locking 10,000 for 30 days
	// THEN: Balance drops, totalLocked rises, a lock transaction is written

	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 50000)

	lock, err := h.Locks.CreateLock(ctx, userID, dec(10000), 30, "Vacation fund")
	require.NoError(t, err)

	assert.Equal(t, ledger.LockStatusLocked, lock.Status)
	assert.Equal(t, 30, lock.IntervalDays)
	assert.True(t, lock.UnlockDate.Equal(testClock.AddDate(0, 0, 30)),
		"unlock date should be lockDate + intervalDays")

	bal, err := h.Users.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, bal.Balance.Equal(dec(40000)), "balance: %s", bal.Balance)
	assert.True(t, bal.TotalLocked.Equal(dec(10000)), "totalLocked: %s", bal.TotalLocked)
	assert.True(t, bal.Total.Equal(dec(50000)), "total should be conserved")

	txns, _, err := h.Funding.ListTransactions(ctx, userID, ledger.TxnFilter{Type: ledger.TxnLock})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.True(t, txns[0].BalanceBefore.Equal(dec(50000)))
	assert.True(t, txns[0].BalanceAfter.Equal(dec(40000)))
}

func TestCreateLock_InsufficientFunds(t *testing.T) {
	// GIVEN: A user with 5,000
	// WHEN: Locking 10,000
	// THEN: InsufficientFundsError, nothing changes

	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 5000)

	_, err := h.Locks.CreateLock(ctx, userID, dec(10000), 30, "")
	require.Error(t, err)

	var insErr *ledger.InsufficientFundsError
	assert.ErrorAs(t, err, &insErr)

	bal, err := h.Users.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, bal.Balance.Equal(dec(5000)))
	assert.True(t, bal.TotalLocked.IsZero())
}

func TestCreateLock_ValidationBounds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 100000)

	cases := []struct {
		name     string
		amount   int64
		interval int
	}{
		{"below minimum amount", 500, 30},
		{"zero interval", 10000, 0},
		{"negative interval", 10000, -5},
		{"interval beyond cap", 10000, 366},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.Locks.CreateLock(ctx, userID, dec(tc.amount), tc.interval, "")
			assert.ErrorIs(t, err, ledger.ErrValidation)
		})
	}
}

func TestCreateLock_UnknownUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.Locks.CreateLock(ctx, "nobody", dec(10000), 30, "")
	assert.True(t, ledger.IsNotFound(err), "expected not-found, got %v", err)
}

func TestCreateLock_DefaultDescription(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 20000)

	lock, err := h.Locks.CreateLock(ctx, userID, dec(10000), 90, "")
	require.NoError(t, err)
	assert.Equal(t, "90 Day Lock", lock.Description)
}

// =============================================================================
// LOCK QUERIES
// =============================================================================

func TestGetUpcomingUnlocks_OnlyLockedSoonestFirst(t *testing.T) {
	// GIVEN: Locks at 10, 30 and 90 days plus one already unlocked
	// WHEN: Fetching upcoming unlocks
	// THEN: Only still-locked ones return, soonest first

	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 100000)

	l90, err := h.Locks.CreateLock(ctx, userID, dec(10000), 90, "quarter")
	require.NoError(t, err)
	l10, err := h.Locks.CreateLock(ctx, userID, dec(10000), 10, "short")
	require.NoError(t, err)
	l30, err := h.Locks.CreateLock(ctx, userID, dec(10000), 30, "month")
	require.NoError(t, err)

	// Unlock the short one.
	h.advance(11 * 24 * time.Hour)
	_, err = h.Payouts.CompletePayout(ctx, userID, string(l10.ID), vault.KindLock)
	require.NoError(t, err)

	upcoming, err := h.Locks.GetUpcomingUnlocks(ctx, userID)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, l30.ID, upcoming[0].ID)
	assert.Equal(t, l90.ID, upcoming[1].ID)
}

func TestGetLockByID_WrongOwner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.newFundedUser(t, 20000)
	other := h.newFundedUser(t, 20000)

	lock, err := h.Locks.CreateLock(ctx, owner, dec(10000), 30, "")
	require.NoError(t, err)

	_, err = h.Locks.GetLockByID(ctx, other, lock.ID)
	assert.True(t, ledger.IsNotFound(err), "cross-user reads must look like absence")
}
