/*
schedules.go - Schedule Manager

PURPOSE:
  Creates, updates and deletes future-dated payout schedules, and serves the
  merged locks+schedules payout view. Completion lives in payout.go - it is
  the same transition for locks and schedules.

CANONICAL CREATION SEMANTICS:
  One request type, one rule set: a new schedule always starts in status
  locked, its scheduled date must be strictly in the future, and a zero
  payout amount defaults to the committed principal. Creation commits the
  principal (totalLocked) and rolls it into the month's savings aggregate;
  the spendable balance is not touched until completion.
*/
package vault

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pocketvault/ledger-engine/ledger"
)

// CreateScheduleRequest is the single, explicit schedule-creation input.
type CreateScheduleRequest struct {
	Title         string
	Amount        decimal.Decimal
	PayoutAmount  decimal.Decimal // zero = same as Amount
	ScheduledDate time.Time
	Recurrence    string // empty = "once"
	AutoPayout    bool
}

// UpdateScheduleRequest carries the mutable fields. Nil pointers leave the
// current value unchanged. The committed principal cannot be changed; that
// would require a compensating ledger movement.
type UpdateScheduleRequest struct {
	Title         *string
	PayoutAmount  *decimal.Decimal
	ScheduledDate *time.Time
	Recurrence    *string
	AutoPayout    *bool
}

// ScheduleManager owns the schedule lifecycle up to completion.
type ScheduleManager struct {
	store    ledger.Store
	notifier Notifier

	Now func() time.Time
}

func NewScheduleManager(store ledger.Store, notifier Notifier) *ScheduleManager {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &ScheduleManager{store: store, notifier: notifier, Now: nowUTC}
}

// CreateSchedule commits req.Amount to a future payout. Atomically inserts
// the schedule, raises totalLocked and rolls the amount into the current
// month's savings aggregate.
func (m *ScheduleManager) CreateSchedule(ctx context.Context, userID ledger.UserID, req CreateScheduleRequest) (*ledger.Schedule, error) {
	if !req.Amount.IsPositive() {
		return nil, &ledger.ValidationError{Field: "amount", Message: "must be positive"}
	}
	if req.PayoutAmount.IsNegative() {
		return nil, &ledger.ValidationError{Field: "payoutAmount", Message: "must not be negative"}
	}
	now := m.Now()
	if !req.ScheduledDate.After(now) {
		return nil, &ledger.ValidationError{Field: "scheduledDate", Message: "must be in the future"}
	}

	if _, err := fetchUser(ctx, m.store, userID); err != nil {
		return nil, err
	}

	payout := req.PayoutAmount
	if payout.IsZero() {
		payout = req.Amount
	}
	recurrence := req.Recurrence
	if recurrence == "" {
		recurrence = ledger.FreqOnce
	}

	sched := &ledger.Schedule{
		ID:            ledger.ScheduleID(newID()),
		UserID:        userID,
		Title:         req.Title,
		Amount:        req.Amount,
		PayoutAmount:  payout,
		ScheduledDate: req.ScheduledDate,
		Recurrence:    recurrence,
		Status:        ledger.ScheduleStatusLocked,
		AutoPayout:    req.AutoPayout,
	}

	err := m.store.WithTx(ctx, func(tx ledger.Tx) error {
		if err := tx.InsertSchedule(ctx, sched); err != nil {
			return err
		}
		if _, err := tx.AdjustBalances(ctx, userID, decimal.Zero, req.Amount); err != nil {
			return err
		}
		return tx.AddMonthlySavings(ctx, userID, ledger.MonthOf(now), req.Amount)
	})
	if err != nil {
		return nil, err
	}

	m.notifier.Notify(ctx, userID, EventScheduleCreated, map[string]string{
		"scheduleId":    string(sched.ID),
		"amount":        req.Amount.String(),
		"scheduledDate": req.ScheduledDate.Format(time.RFC3339),
	})

	return sched, nil
}

// GetUserSchedules returns all schedules, soonest first.
func (m *ScheduleManager) GetUserSchedules(ctx context.Context, userID ledger.UserID) ([]ledger.Schedule, error) {
	return m.store.ListSchedules(ctx, userID)
}

// GetScheduleByID returns one schedule owned by the user.
func (m *ScheduleManager) GetScheduleByID(ctx context.Context, userID ledger.UserID, id ledger.ScheduleID) (*ledger.Schedule, error) {
	sched, err := m.store.GetSchedule(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if sched == nil {
		return nil, &ledger.NotFoundError{Kind: "schedule", ID: string(id)}
	}
	return sched, nil
}

// UpdateSchedule rewrites mutable fields of a not-yet-completed schedule.
func (m *ScheduleManager) UpdateSchedule(ctx context.Context, userID ledger.UserID, id ledger.ScheduleID, req UpdateScheduleRequest) (*ledger.Schedule, error) {
	sched, err := m.GetScheduleByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if sched.Status == ledger.ScheduleStatusCompleted {
		return nil, &ledger.InvalidStateError{Kind: "schedule", ID: string(id), Status: string(sched.Status)}
	}

	if req.Title != nil {
		sched.Title = *req.Title
	}
	if req.PayoutAmount != nil {
		if req.PayoutAmount.IsNegative() {
			return nil, &ledger.ValidationError{Field: "payoutAmount", Message: "must not be negative"}
		}
		sched.PayoutAmount = *req.PayoutAmount
	}
	if req.ScheduledDate != nil {
		if !req.ScheduledDate.After(m.Now()) {
			return nil, &ledger.ValidationError{Field: "scheduledDate", Message: "must be in the future"}
		}
		sched.ScheduledDate = *req.ScheduledDate
	}
	if req.Recurrence != nil {
		sched.Recurrence = *req.Recurrence
	}
	if req.AutoPayout != nil {
		sched.AutoPayout = *req.AutoPayout
	}

	err = m.store.WithTx(ctx, func(tx ledger.Tx) error {
		ok, err := tx.UpdateSchedule(ctx, sched)
		if err != nil {
			return err
		}
		if !ok {
			// Completed between the read and this write.
			return &ledger.InvalidStateError{Kind: "schedule", ID: string(id), Status: string(ledger.ScheduleStatusCompleted)}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sched, nil
}

// DeleteSchedule removes a not-yet-completed schedule and releases the
// committed principal back out of totalLocked.
func (m *ScheduleManager) DeleteSchedule(ctx context.Context, userID ledger.UserID, id ledger.ScheduleID) error {
	sched, err := m.GetScheduleByID(ctx, userID, id)
	if err != nil {
		return err
	}
	if sched.Status == ledger.ScheduleStatusCompleted {
		return &ledger.InvalidStateError{Kind: "schedule", ID: string(id), Status: string(sched.Status)}
	}

	return m.store.WithTx(ctx, func(tx ledger.Tx) error {
		ok, err := tx.DeleteSchedule(ctx, userID, id)
		if err != nil {
			return err
		}
		if !ok {
			return &ledger.InvalidStateError{Kind: "schedule", ID: string(id), Status: string(ledger.ScheduleStatusCompleted)}
		}
		_, err = tx.AdjustBalances(ctx, userID, decimal.Zero, sched.Amount.Neg())
		return err
	})
}

// =============================================================================
// MERGED PAYOUT VIEW
// =============================================================================

// PayoutItem is the display shape merging locks and schedules.
type PayoutItem struct {
	ID         string
	Kind       PayoutKind
	Title      string
	Amount     decimal.Decimal
	Status     string
	LockDate   time.Time
	PayoutDate time.Time // unlockDate for locks, scheduledDate for schedules
	Recurrence string
}

// GetUserPayouts returns the user's locks and schedules as one list sorted
// by payout date ascending.
func (m *ScheduleManager) GetUserPayouts(ctx context.Context, userID ledger.UserID) ([]PayoutItem, error) {
	locks, err := m.store.ListLocks(ctx, userID)
	if err != nil {
		return nil, err
	}
	scheds, err := m.store.ListSchedules(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]PayoutItem, 0, len(locks)+len(scheds))
	for _, l := range locks {
		items = append(items, PayoutItem{
			ID:         string(l.ID),
			Kind:       KindLock,
			Title:      l.Description,
			Amount:     l.Amount,
			Status:     string(l.Status),
			LockDate:   l.LockDate,
			PayoutDate: l.UnlockDate,
			Recurrence: ledger.FreqOnce,
		})
	}
	for _, sc := range scheds {
		items = append(items, PayoutItem{
			ID:         string(sc.ID),
			Kind:       KindSchedule,
			Title:      sc.Title,
			Amount:     sc.PayoutAmount,
			Status:     string(sc.Status),
			LockDate:   sc.ScheduledDate,
			PayoutDate: sc.ScheduledDate,
			Recurrence: sc.Recurrence,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].PayoutDate.Before(items[j].PayoutDate)
	})
	return items, nil
}
