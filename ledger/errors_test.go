package ledger_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/pocketvault/ledger-engine/ledger"
)

func TestErrorClassification(t *testing.T) {
	valErr := &ledger.ValidationError{Field: "amount", Message: "must be positive"}
	nfErr := &ledger.NotFoundError{Kind: "lock", ID: "abc"}
	insErr := &ledger.InsufficientFundsError{
		UserID:    "u1",
		Available: decimal.NewFromInt(100),
		Requested: decimal.NewFromInt(500),
	}
	stateErr := &ledger.InvalidStateError{Kind: "schedule", ID: "s1", Status: "completed"}
	storErr := &ledger.StorageError{Op: "insert lock", Err: errors.New("disk full")}

	assert.ErrorIs(t, valErr, ledger.ErrValidation)
	assert.ErrorIs(t, nfErr, ledger.ErrNotFound)
	assert.ErrorIs(t, insErr, ledger.ErrInsufficientFunds)
	assert.ErrorIs(t, stateErr, ledger.ErrInvalidState)
	assert.ErrorIs(t, storErr, ledger.ErrStorage)

	// Client-error triage drives HTTP status mapping.
	assert.True(t, ledger.IsClientError(valErr))
	assert.True(t, ledger.IsClientError(insErr))
	assert.False(t, ledger.IsClientError(storErr))

	assert.True(t, ledger.IsNotFound(nfErr))
	assert.True(t, ledger.IsInvalidState(stateErr))
	assert.False(t, ledger.IsInvalidState(nfErr))
}

func TestErrorClassification_Wrapped(t *testing.T) {
	base := &ledger.NotFoundError{Kind: "bank", ID: "b1"}
	wrapped := fmt.Errorf("resolving destination: %w", base)

	assert.True(t, ledger.IsNotFound(wrapped))

	var nf *ledger.NotFoundError
	assert.ErrorAs(t, wrapped, &nf)
	assert.Equal(t, "bank", nf.Kind)
}

func TestInsufficientFundsError_Message(t *testing.T) {
	err := &ledger.InsufficientFundsError{
		UserID:    "u1",
		Available: decimal.NewFromInt(100),
		Requested: decimal.NewFromInt(500),
	}
	msg := err.Error()
	assert.Contains(t, msg, "100")
	assert.Contains(t, msg, "500")
}
