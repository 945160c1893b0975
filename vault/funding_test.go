package vault_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketvault/ledger-engine/ledger"
	"github.com/pocketvault/ledger-engine/vault"
)

// =============================================================================
// DEPOSITS
// =============================================================================

func TestDeposit_TwoPhase(t *testing.T) {
	// GIVEN: A fresh account
	// WHEN: Initiating then completing a deposit
	// THEN: Nothing is credited until completion; then the wallet holds the funds

	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 0)

	dep, err := h.Funding.InitiateDeposit(ctx, userID, dec(25000))
	require.NoError(t, err)
	assert.Equal(t, ledger.TxnStatusPending, dep.Status)
	assert.NotEmpty(t, dep.Reference)

	bal, err := h.Users.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, bal.Balance.IsZero(), "pending deposits must not credit")

	settled, err := h.Funding.CompleteDeposit(ctx, userID, dep.Reference)
	require.NoError(t, err)
	assert.Equal(t, ledger.TxnStatusCompleted, settled.Status)
	assert.True(t, settled.BalanceBefore.IsZero())
	assert.True(t, settled.BalanceAfter.Equal(dec(25000)))
	require.NotNil(t, settled.CompletedAt)

	bal, err = h.Users.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, bal.Balance.Equal(dec(25000)))
}

func TestCompleteDeposit_Idempotent(t *testing.T) {
	// GIVEN: A settled deposit
	// WHEN: Completing the same reference again
	// THEN: The settled row returns unchanged, no double credit

	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 0)

	dep, err := h.Funding.InitiateDeposit(ctx, userID, dec(25000))
	require.NoError(t, err)

	first, err := h.Funding.CompleteDeposit(ctx, userID, dep.Reference)
	require.NoError(t, err)

	second, err := h.Funding.CompleteDeposit(ctx, userID, dep.Reference)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.BalanceAfter.Equal(dec(25000)))

	bal, err := h.Users.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, bal.Balance.Equal(dec(25000)), "replay must not credit twice")
}

func TestCompleteDeposit_UnknownReference(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 0)

	_, err := h.Funding.CompleteDeposit(ctx, userID, "dep_missing")
	assert.True(t, ledger.IsNotFound(err))
}

func TestInitiateDeposit_BelowMinimum(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 0)

	_, err := h.Funding.InitiateDeposit(ctx, userID, dec(500))
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

// =============================================================================
// WITHDRAWALS
// =============================================================================

func TestWithdrawal_DebitsWallet(t *testing.T) {
	// GIVEN: 40,000 in the wallet and a registered bank
	// WHEN: Withdrawing 15,000
	// THEN: Wallet drops, a completed withdrawal row records the bank

	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 40000)

	bank, err := h.Banks.AddBank(ctx, userID, vault.AddBankRequest{
		BankName:      "First National",
		AccountNumber: "0123456789",
	})
	require.NoError(t, err)

	txn, err := h.Funding.InitiateWithdrawal(ctx, userID, dec(15000), "")
	require.NoError(t, err)

	assert.Equal(t, ledger.TxnWithdrawal, txn.Type)
	assert.Equal(t, ledger.TxnStatusCompleted, txn.Status)
	assert.Equal(t, string(bank.ID), txn.Metadata["bankId"], "defaults to the default bank")
	assert.True(t, txn.BalanceAfter.Equal(dec(25000)))

	bal, err := h.Users.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, bal.Balance.Equal(dec(25000)))
}

func TestWithdrawal_InsufficientFunds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 10000)

	_, err := h.Banks.AddBank(ctx, userID, vault.AddBankRequest{
		BankName:      "First National",
		AccountNumber: "0123456789",
	})
	require.NoError(t, err)

	_, err = h.Funding.InitiateWithdrawal(ctx, userID, dec(20000), "")
	var insErr *ledger.InsufficientFundsError
	assert.ErrorAs(t, err, &insErr)

	bal, err := h.Users.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, bal.Balance.Equal(dec(10000)), "failed withdrawal must roll back")
}

func TestWithdrawal_LockedFundsUnavailable(t *testing.T) {
	// GIVEN: 30,000 wallet with 25,000 locked
	// WHEN: Withdrawing 10,000
	// THEN: Rejected; locked funds are not spendable

	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 30000)

	_, err := h.Banks.AddBank(ctx, userID, vault.AddBankRequest{
		BankName:      "First National",
		AccountNumber: "0123456789",
	})
	require.NoError(t, err)

	_, err = h.Locks.CreateLock(ctx, userID, dec(25000), 30, "")
	require.NoError(t, err)

	_, err = h.Funding.InitiateWithdrawal(ctx, userID, dec(10000), "")
	var insErr *ledger.InsufficientFundsError
	assert.ErrorAs(t, err, &insErr)
}

func TestWithdrawal_NoBank(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 30000)

	_, err := h.Funding.InitiateWithdrawal(ctx, userID, dec(10000), "")
	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// HISTORY
// =============================================================================

func TestListTransactions_FilterAndPaging(t *testing.T) {
	// GIVEN: A deposit, two locks and one unlock
	// WHEN: Listing with a type filter and a page size of 1
	// THEN: Totals count the filtered set; pages slice it newest first

	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 100000)

	_, err := h.Locks.CreateLock(ctx, userID, dec(10000), 30, "first")
	require.NoError(t, err)
	_, err = h.Locks.CreateLock(ctx, userID, dec(10000), 60, "second")
	require.NoError(t, err)

	all, total, err := h.Funding.ListTransactions(ctx, userID, ledger.TxnFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total, "deposit + two locks")
	assert.Len(t, all, 3)

	locksOnly, total, err := h.Funding.ListTransactions(ctx, userID, ledger.TxnFilter{
		Type: ledger.TxnLock, Limit: 1, Page: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, locksOnly, 1)
	assert.Equal(t, ledger.TxnLock, locksOnly[0].Type)

	page2, _, err := h.Funding.ListTransactions(ctx, userID, ledger.TxnFilter{
		Type: ledger.TxnLock, Limit: 1, Page: 2,
	})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.NotEqual(t, locksOnly[0].ID, page2[0].ID)
}

func TestGetTransaction_WrongOwner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.newFundedUser(t, 20000)
	other := h.newFundedUser(t, 20000)

	txns, _, err := h.Funding.ListTransactions(ctx, owner, ledger.TxnFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, txns)

	_, err = h.Funding.GetTransaction(ctx, other, txns[0].ID)
	assert.True(t, ledger.IsNotFound(err))
}
