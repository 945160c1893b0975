package vault_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/pocketvault/ledger-engine/ledger"
	"github.com/pocketvault/ledger-engine/store/sqlite"
	"github.com/pocketvault/ledger-engine/vault"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// testClock is the fixed "now" every manager runs on unless a test advances it.
var testClock = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

type harness struct {
	Store     *sqlite.Store
	Users     *vault.Users
	Locks     *vault.LockManager
	Schedules *vault.ScheduleManager
	Payouts   *vault.PayoutEngine
	Banks     *vault.BankRegistry
	Funding   *vault.Funding
	Impulse   *vault.ImpulseTracker

	now time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := vault.DefaultConfig()
	h := &harness{
		Store:     store,
		Users:     vault.NewUsers(store),
		Locks:     vault.NewLockManager(store, cfg, nil),
		Schedules: vault.NewScheduleManager(store, nil),
		Payouts:   vault.NewPayoutEngine(store, nil, nil),
		Banks:     vault.NewBankRegistry(store),
		Funding:   vault.NewFunding(store, cfg, nil),
		Impulse:   vault.NewImpulseTracker(store, cfg),
		now:       testClock,
	}
	h.setNow(testClock)
	return h
}

func (h *harness) setNow(at time.Time) {
	h.now = at
	clock := func() time.Time { return at }
	h.Users.Now = clock
	h.Locks.Now = clock
	h.Schedules.Now = clock
	h.Payouts.Now = clock
	h.Banks.Now = clock
	h.Funding.Now = clock
	h.Impulse.Now = clock
}

// advance moves every manager's clock forward by d.
func (h *harness) advance(d time.Duration) {
	h.setNow(h.now.Add(d))
}

// newFundedUser creates an account and settles a deposit so the wallet holds
// the given amount.
func (h *harness) newFundedUser(t *testing.T, amount int64) ledger.UserID {
	t.Helper()
	ctx := context.Background()

	email := uuid.NewString() + "@example.com"
	user, err := h.Users.CreateUser(ctx, email, "Test User")
	require.NoError(t, err)

	if amount > 0 {
		dep, err := h.Funding.InitiateDeposit(ctx, user.ID, decimal.NewFromInt(amount))
		require.NoError(t, err)
		_, err = h.Funding.CompleteDeposit(ctx, user.ID, dep.Reference)
		require.NoError(t, err)
	}
	return user.ID
}

func dec(n int64) decimal.Decimal { return decimal.NewFromInt(n) }
