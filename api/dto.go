/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY ON THE WIRE:
  All amounts travel as decimal strings ("1500.00"), never floats. Handlers
  parse them with shopspring/decimal and reject anything unparseable before
  touching the engine.

VALIDATION:
  Shape validation (parseable decimal, parseable date) lives in handlers;
  policy validation (minimums, bounds, ownership) lives in the vault engine.

SEE ALSO:
  - handlers.go: Uses these types
  - vault package: domain types these map from
*/
package api

import (
	"time"

	"github.com/pocketvault/ledger-engine/ledger"
	"github.com/pocketvault/ledger-engine/vault"
)

// =============================================================================
// USERS
// =============================================================================

// UserDTO represents an account in API responses.
type UserDTO struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	Balance     string `json:"balance"`
	TotalLocked string `json:"total_locked"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// CreateUserRequest is the request to open an account.
type CreateUserRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// BalanceDTO is the wallet summary.
type BalanceDTO struct {
	Balance     string `json:"balance"`
	TotalLocked string `json:"total_locked"`
	Total       string `json:"total"`
}

// =============================================================================
// LOCKS
// =============================================================================

// LockDTO represents a lock period in API responses.
type LockDTO struct {
	ID               string `json:"id"`
	Amount           string `json:"amount"`
	LockDate         string `json:"lock_date"`
	UnlockDate       string `json:"unlock_date"`
	IntervalDays     int    `json:"interval_days"`
	Description      string `json:"description,omitempty"`
	Status           string `json:"status"`
	ActualUnlockDate string `json:"actual_unlock_date,omitempty"`
	CreatedAt        string `json:"created_at,omitempty"`
}

// CreateLockRequest is the request to lock funds.
type CreateLockRequest struct {
	Amount       string `json:"amount"`
	IntervalDays int    `json:"interval_days"`
	Description  string `json:"description,omitempty"`
}

// =============================================================================
// SCHEDULES
// =============================================================================

// ScheduleDTO represents a payout schedule in API responses.
type ScheduleDTO struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Amount        string `json:"amount"`
	PayoutAmount  string `json:"payout_amount"`
	ScheduledDate string `json:"scheduled_date"`
	Recurrence    string `json:"recurrence"`
	Status        string `json:"status"`
	AutoPayout    bool   `json:"auto_payout"`
	ExecutedAt    string `json:"executed_at,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// CreateScheduleRequest is the request to create a payout schedule.
type CreateScheduleRequest struct {
	Title         string `json:"title"`
	Amount        string `json:"amount"`
	PayoutAmount  string `json:"payout_amount,omitempty"`
	ScheduledDate string `json:"scheduled_date"`
	Recurrence    string `json:"recurrence,omitempty"`
	AutoPayout    bool   `json:"auto_payout,omitempty"`
}

// UpdateScheduleRequest carries the mutable schedule fields. Absent fields
// stay unchanged.
type UpdateScheduleRequest struct {
	Title         *string `json:"title,omitempty"`
	PayoutAmount  *string `json:"payout_amount,omitempty"`
	ScheduledDate *string `json:"scheduled_date,omitempty"`
	Recurrence    *string `json:"recurrence,omitempty"`
	AutoPayout    *bool   `json:"auto_payout,omitempty"`
}

// =============================================================================
// PAYOUTS
// =============================================================================

// PayoutItemDTO is one entry of the merged locks+schedules view.
type PayoutItemDTO struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"` // "lock" or "schedule"
	Title      string `json:"title"`
	Amount     string `json:"amount"`
	Status     string `json:"status"`
	LockDate   string `json:"lock_date"`
	PayoutDate string `json:"payout_date"`
	Recurrence string `json:"recurrence"`
}

// PayoutResultDTO reports a settled completion.
type PayoutResultDTO struct {
	ItemID       string          `json:"item_id"`
	Kind         string          `json:"kind"`
	Amount       string          `json:"amount"`
	PayoutAmount string          `json:"payout_amount"`
	Destination  string          `json:"destination"`
	Transaction  *TransactionDTO `json:"transaction,omitempty"`
	NextSchedule *ScheduleDTO    `json:"next_schedule,omitempty"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TransactionDTO represents one ledger row in API responses.
type TransactionDTO struct {
	ID            string            `json:"id"`
	Type          string            `json:"type"`
	Amount        string            `json:"amount"`
	BalanceBefore string            `json:"balance_before"`
	BalanceAfter  string            `json:"balance_after"`
	Status        string            `json:"status"`
	Reference     string            `json:"reference,omitempty"`
	Description   string            `json:"description,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CompletedAt   string            `json:"completed_at,omitempty"`
	CreatedAt     string            `json:"created_at,omitempty"`
}

// TransactionListDTO pages history responses.
type TransactionListDTO struct {
	Transactions []TransactionDTO `json:"transactions"`
	Total        int              `json:"total"`
	Page         int              `json:"page"`
	Limit        int              `json:"limit"`
}

// DepositRequest initiates a wallet deposit.
type DepositRequest struct {
	Amount string `json:"amount"`
}

// CompleteDepositRequest settles a pending deposit by reference.
type CompleteDepositRequest struct {
	Reference string `json:"reference"`
}

// WithdrawRequest debits the wallet to a bank account.
type WithdrawRequest struct {
	Amount string `json:"amount"`
	BankID string `json:"bank_id,omitempty"` // empty = default bank
}

// =============================================================================
// BANKS
// =============================================================================

// BankDTO represents a registered payout destination.
type BankDTO struct {
	ID            string `json:"id"`
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name,omitempty"`
	BankCode      string `json:"bank_code,omitempty"`
	IsDefault     bool   `json:"is_default"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// AddBankRequest registers a bank account.
type AddBankRequest struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name,omitempty"`
	BankCode      string `json:"bank_code,omitempty"`
	SetDefault    bool   `json:"set_default,omitempty"`
}

// =============================================================================
// IMPULSE STATS
// =============================================================================

// StatsDTO is the current month's impulse savings summary.
type StatsDTO struct {
	Month           string `json:"month"`
	TotalSaved      string `json:"total_saved"`
	ImpulsesStopped int    `json:"impulses_stopped"`
	CurrentStreak   int    `json:"current_streak"`
	LongestStreak   int    `json:"longest_streak"`
	SavingsGoal     string `json:"savings_goal"`
}

// ImpulseRequest records one resisted impulse purchase.
type ImpulseRequest struct {
	Amount string `json:"amount"`
}

// GoalRequest updates the monthly savings goal.
type GoalRequest struct {
	SavingsGoal string `json:"savings_goal"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// MAPPERS
// =============================================================================

func toUserDTO(u *ledger.User) UserDTO {
	return UserDTO{
		ID:          string(u.ID),
		Email:       u.Email,
		FullName:    u.FullName,
		Balance:     u.Balance.String(),
		TotalLocked: u.TotalLocked.String(),
		CreatedAt:   u.CreatedAt.Format(time.RFC3339),
	}
}

func toLockDTO(l *ledger.LockPeriod) LockDTO {
	dto := LockDTO{
		ID:           string(l.ID),
		Amount:       l.Amount.String(),
		LockDate:     l.LockDate.Format(time.RFC3339),
		UnlockDate:   l.UnlockDate.Format(time.RFC3339),
		IntervalDays: l.IntervalDays,
		Description:  l.Description,
		Status:       string(l.Status),
		CreatedAt:    l.CreatedAt.Format(time.RFC3339),
	}
	if l.ActualUnlockDate != nil {
		dto.ActualUnlockDate = l.ActualUnlockDate.Format(time.RFC3339)
	}
	return dto
}

func toScheduleDTO(s *ledger.Schedule) ScheduleDTO {
	dto := ScheduleDTO{
		ID:            string(s.ID),
		Title:         s.Title,
		Amount:        s.Amount.String(),
		PayoutAmount:  s.PayoutAmount.String(),
		ScheduledDate: s.ScheduledDate.Format(time.RFC3339),
		Recurrence:    s.Recurrence,
		Status:        string(s.Status),
		AutoPayout:    s.AutoPayout,
		CreatedAt:     s.CreatedAt.Format(time.RFC3339),
	}
	if s.ExecutedAt != nil {
		dto.ExecutedAt = s.ExecutedAt.Format(time.RFC3339)
	}
	return dto
}

func toTransactionDTO(t *ledger.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:            string(t.ID),
		Type:          string(t.Type),
		Amount:        t.Amount.String(),
		BalanceBefore: t.BalanceBefore.String(),
		BalanceAfter:  t.BalanceAfter.String(),
		Status:        string(t.Status),
		Reference:     t.Reference,
		Description:   t.Description,
		Metadata:      t.Metadata,
		CreatedAt:     t.CreatedAt.Format(time.RFC3339),
	}
	if t.CompletedAt != nil {
		dto.CompletedAt = t.CompletedAt.Format(time.RFC3339)
	}
	return dto
}

func toBankDTO(b *ledger.Bank) BankDTO {
	return BankDTO{
		ID:            string(b.ID),
		BankName:      b.BankName,
		AccountNumber: b.AccountNumber,
		AccountName:   b.AccountName,
		BankCode:      b.BankCode,
		IsDefault:     b.IsDefault,
		CreatedAt:     b.CreatedAt.Format(time.RFC3339),
	}
}

func toStatsDTO(s *ledger.ImpulseStats) StatsDTO {
	return StatsDTO{
		Month:           s.Month.Format("2006-01"),
		TotalSaved:      s.TotalSaved.String(),
		ImpulsesStopped: s.ImpulsesStopped,
		CurrentStreak:   s.CurrentStreak,
		LongestStreak:   s.LongestStreak,
		SavingsGoal:     s.SavingsGoal.String(),
	}
}

func toPayoutItemDTO(it vault.PayoutItem) PayoutItemDTO {
	return PayoutItemDTO{
		ID:         it.ID,
		Kind:       string(it.Kind),
		Title:      it.Title,
		Amount:     it.Amount.String(),
		Status:     it.Status,
		LockDate:   it.LockDate.Format(time.RFC3339),
		PayoutDate: it.PayoutDate.Format(time.RFC3339),
		Recurrence: it.Recurrence,
	}
}

func toPayoutResultDTO(res *vault.PayoutResult) PayoutResultDTO {
	dto := PayoutResultDTO{
		ItemID:       res.ItemID,
		Kind:         string(res.Kind),
		Amount:       res.Amount.String(),
		PayoutAmount: res.PayoutAmount.String(),
		Destination:  res.Destination,
	}
	if res.Transaction != nil {
		t := toTransactionDTO(res.Transaction)
		dto.Transaction = &t
	}
	if res.NextSchedule != nil {
		s := toScheduleDTO(res.NextSchedule)
		dto.NextSchedule = &s
	}
	return dto
}
