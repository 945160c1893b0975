/*
notify.go - Post-commit notification dispatch

PURPOSE:
  Notifications (push, email) are side effects, never part of the atomic
  ledger step. The engine calls Notify after a commit; a failing dispatcher
  is logged and swallowed, it cannot roll the ledger back.
*/
package vault

import (
	"context"

	"go.uber.org/zap"

	"github.com/pocketvault/ledger-engine/ledger"
)

// Notifier delivers fire-and-forget user notifications.
type Notifier interface {
	Notify(ctx context.Context, userID ledger.UserID, event string, payload map[string]string)
}

// Events emitted by the engine.
const (
	EventLockCreated       = "lock.created"
	EventLockUnlocked      = "lock.unlocked"
	EventScheduleCreated   = "schedule.created"
	EventScheduleCompleted = "schedule.completed"
	EventPayoutSent        = "payout.sent"
	EventDepositCompleted  = "deposit.completed"
)

// LogNotifier records every event on the structured log. It stands in for a
// real push/email dispatcher and is the default wiring.
type LogNotifier struct {
	Log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{Log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, userID ledger.UserID, event string, payload map[string]string) {
	fields := []zap.Field{
		zap.String("userId", string(userID)),
		zap.String("event", event),
	}
	for k, v := range payload {
		fields = append(fields, zap.String(k, v))
	}
	n.Log.Info("notification dispatched", fields...)
}

// NopNotifier drops everything. Used in tests.
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, userID ledger.UserID, event string, payload map[string]string) {
}
