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
// SCHEDULE CREATION
// =============================================================================

func TestCreateSchedule_CommitsPrincipal(t *testing.T) {
	// GIVEN: A funded user
	// WHEN: Creating a future-dated schedule
	// THEN: totalLocked rises, wallet balance is untouched, status is locked

	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 50000)

	sched, err := h.Schedules.CreateSchedule(ctx, userID, vault.CreateScheduleRequest{
		Title:         "School fees",
		Amount:        dec(15000),
		ScheduledDate: testClock.AddDate(0, 2, 0),
	})
	require.NoError(t, err)

	assert.Equal(t, ledger.ScheduleStatusLocked, sched.Status)
	assert.True(t, sched.PayoutAmount.Equal(dec(15000)), "payout defaults to amount")
	assert.Equal(t, ledger.FreqOnce, sched.Recurrence)

	bal, err := h.Users.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, bal.Balance.Equal(dec(50000)), "schedules do not touch the wallet")
	assert.True(t, bal.TotalLocked.Equal(dec(15000)))
}

func TestCreateSchedule_PastDateRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 50000)

	for _, date := range []string{"past", "now"} {
		d := testClock
		if date == "past" {
			d = testClock.AddDate(0, 0, -1)
		}
		_, err := h.Schedules.CreateSchedule(ctx, userID, vault.CreateScheduleRequest{
			Title:         "bad date",
			Amount:        dec(10000),
			ScheduledDate: d,
		})
		assert.ErrorIs(t, err, ledger.ErrValidation, "date %q must be rejected", date)
	}
}

func TestCreateSchedule_NonPositiveAmountRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 50000)

	_, err := h.Schedules.CreateSchedule(ctx, userID, vault.CreateScheduleRequest{
		Title:         "zero",
		Amount:        dec(0),
		ScheduledDate: testClock.AddDate(0, 0, 7),
	})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestCreateSchedule_AddsToMonthlySavings(t *testing.T) {
	// GIVEN: A fresh month
	// WHEN: Creating a schedule
	// THEN: The month's totalSaved includes the committed amount

	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 50000)

	_, err := h.Schedules.CreateSchedule(ctx, userID, vault.CreateScheduleRequest{
		Title:         "Savings",
		Amount:        dec(12000),
		ScheduledDate: testClock.AddDate(0, 1, 0),
	})
	require.NoError(t, err)

	stats, err := h.Impulse.GetStats(ctx, userID)
	require.NoError(t, err)
	assert.True(t, stats.TotalSaved.Equal(dec(12000)), "totalSaved: %s", stats.TotalSaved)
}

// =============================================================================
// UPDATE / DELETE
// =============================================================================

func TestUpdateSchedule_MutableFieldsOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 50000)

	sched, err := h.Schedules.CreateSchedule(ctx, userID, vault.CreateScheduleRequest{
		Title:         "Before",
		Amount:        dec(10000),
		ScheduledDate: testClock.AddDate(0, 0, 10),
	})
	require.NoError(t, err)

	title := "After"
	payout := dec(11000)
	newDate := testClock.AddDate(0, 0, 20)
	auto := true
	updated, err := h.Schedules.UpdateSchedule(ctx, userID, sched.ID, vault.UpdateScheduleRequest{
		Title:         &title,
		PayoutAmount:  &payout,
		ScheduledDate: &newDate,
		AutoPayout:    &auto,
	})
	require.NoError(t, err)

	assert.Equal(t, "After", updated.Title)
	assert.True(t, updated.PayoutAmount.Equal(dec(11000)))
	assert.True(t, updated.ScheduledDate.Equal(newDate))
	assert.True(t, updated.AutoPayout)
	assert.True(t, updated.Amount.Equal(dec(10000)), "principal is immutable")
}

func TestUpdateSchedule_CompletedRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 50000)

	sched, err := h.Schedules.CreateSchedule(ctx, userID, vault.CreateScheduleRequest{
		Title:         "done soon",
		Amount:        dec(10000),
		ScheduledDate: testClock.AddDate(0, 0, 5),
	})
	require.NoError(t, err)

	_, err = h.Payouts.CompletePayout(ctx, userID, string(sched.ID), vault.KindSchedule)
	require.NoError(t, err)

	title := "too late"
	_, err = h.Schedules.UpdateSchedule(ctx, userID, sched.ID, vault.UpdateScheduleRequest{Title: &title})
	assert.True(t, ledger.IsInvalidState(err))
}

func TestDeleteSchedule_ReleasesCommitment(t *testing.T) {
	// GIVEN: A pending schedule holding 10,000
	// WHEN: Deleting it
	// THEN: totalLocked drops back, schedule is gone

	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 50000)

	sched, err := h.Schedules.CreateSchedule(ctx, userID, vault.CreateScheduleRequest{
		Title:         "cancel me",
		Amount:        dec(10000),
		ScheduledDate: testClock.AddDate(0, 0, 30),
	})
	require.NoError(t, err)

	require.NoError(t, h.Schedules.DeleteSchedule(ctx, userID, sched.ID))

	bal, err := h.Users.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, bal.TotalLocked.IsZero())

	_, err = h.Schedules.GetScheduleByID(ctx, userID, sched.ID)
	assert.True(t, ledger.IsNotFound(err))
}

func TestDeleteSchedule_CompletedRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 50000)

	sched, err := h.Schedules.CreateSchedule(ctx, userID, vault.CreateScheduleRequest{
		Title:         "settled",
		Amount:        dec(10000),
		ScheduledDate: testClock.AddDate(0, 0, 5),
	})
	require.NoError(t, err)

	_, err = h.Payouts.CompletePayout(ctx, userID, string(sched.ID), vault.KindSchedule)
	require.NoError(t, err)

	err = h.Schedules.DeleteSchedule(ctx, userID, sched.ID)
	assert.True(t, ledger.IsInvalidState(err), "completed schedules are ledger history")
}

// =============================================================================
// MERGED PAYOUT VIEW
// =============================================================================

func TestGetUserPayouts_MergedAndSorted(t *testing.T) {
	// GIVEN: A lock unlocking in 30 days and schedules at 10 and 60 days
	// WHEN: Fetching the merged payout view
	// THEN: Items come back sorted by payout date

	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 100000)

	_, err := h.Locks.CreateLock(ctx, userID, dec(10000), 30, "mid")
	require.NoError(t, err)
	_, err = h.Schedules.CreateSchedule(ctx, userID, vault.CreateScheduleRequest{
		Title: "soon", Amount: dec(10000), ScheduledDate: testClock.AddDate(0, 0, 10),
	})
	require.NoError(t, err)
	_, err = h.Schedules.CreateSchedule(ctx, userID, vault.CreateScheduleRequest{
		Title: "late", Amount: dec(10000), ScheduledDate: testClock.AddDate(0, 0, 60),
	})
	require.NoError(t, err)

	items, err := h.Schedules.GetUserPayouts(ctx, userID)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, vault.KindSchedule, items[0].Kind)
	assert.Equal(t, "soon", items[0].Title)
	assert.Equal(t, vault.KindLock, items[1].Kind)
	assert.Equal(t, vault.KindSchedule, items[2].Kind)
	assert.Equal(t, "late", items[2].Title)
}
