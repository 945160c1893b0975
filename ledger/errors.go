/*
errors.go - Centralized error taxonomy for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify with errors.Is / errors.As; the HTTP layer maps the
  classes to status codes, the periodic trigger maps ErrInvalidState to a
  benign "already handled" skip.

ERROR CATEGORIES:
  1. Validation errors - input outside policy bounds, never retried
  2. Not-found errors  - missing entity or ownership mismatch
  3. Invalid-state     - wrong status for the requested transition
  4. Insufficient funds
  5. Storage errors    - atomic commit failed, fully rolled back

SEE ALSO:
  - store.go: the atomic Tx primitive whose failures surface as storage errors
  - vault package: producers of these errors
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all bad-input failures.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned for a missing user/lock/schedule/bank, or when
	// the item exists but belongs to another user.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientFunds is returned when a debit exceeds the spendable
	// balance. No partial state is ever created.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidState is returned when an item is not in the status the
	// requested transition expects, e.g. completing an already-completed
	// payout. The periodic trigger treats this as already handled.
	ErrInvalidState = errors.New("invalid state for transition")

	// ErrStorage is returned when the atomic commit itself failed. The
	// operation was rolled back in full.
	ErrStorage = errors.New("storage failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports which input violated which bound.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError identifies the missing entity.
type NotFoundError struct {
	Kind string // "user", "lock", "schedule", "bank", "transaction"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InsufficientFundsError reports the shortage.
type InsufficientFundsError struct {
	UserID    UserID
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: available %s, requested %s",
		e.Available, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// InvalidStateError reports a transition attempted from the wrong status.
type InvalidStateError struct {
	Kind   string // "lock" or "schedule"
	ID     string
	Status string // status observed inside the atomic step
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s %s cannot transition from status %q", e.Kind, e.ID, e.Status)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// StorageError wraps a database-level failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return ErrStorage }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// rather than a system fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInvalidState)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidState returns true for status-precondition failures. The due-item
// scanner uses this to tell "already handled" apart from real failures.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}
