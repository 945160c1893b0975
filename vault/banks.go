/*
banks.go - Bank Registry

PURPOSE:
  External bank accounts that auto-payout schedules can target. The first
  account a user registers becomes the default; at most one default exists
  per user at any time (enforced in one transaction and by a partial unique
  index in the store).
*/
package vault

import (
	"context"
	"strings"
	"time"

	"github.com/pocketvault/ledger-engine/ledger"
)

// AddBankRequest carries the fields for registering a bank account.
type AddBankRequest struct {
	BankName      string
	AccountNumber string
	AccountName   string
	BankCode      string
	SetDefault    bool
}

// BankRegistry manages a user's registered payout destinations.
type BankRegistry struct {
	store ledger.Store

	Now func() time.Time
}

func NewBankRegistry(store ledger.Store) *BankRegistry {
	return &BankRegistry{store: store, Now: nowUTC}
}

// AddBank registers an account. The user's first account is always made the
// default regardless of req.SetDefault.
func (r *BankRegistry) AddBank(ctx context.Context, userID ledger.UserID, req AddBankRequest) (*ledger.Bank, error) {
	if strings.TrimSpace(req.BankName) == "" {
		return nil, &ledger.ValidationError{Field: "bankName", Message: "required"}
	}
	if strings.TrimSpace(req.AccountNumber) == "" {
		return nil, &ledger.ValidationError{Field: "accountNumber", Message: "required"}
	}
	if _, err := fetchUser(ctx, r.store, userID); err != nil {
		return nil, err
	}

	bank := &ledger.Bank{
		ID:            ledger.BankID(newID()),
		UserID:        userID,
		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
		AccountName:   req.AccountName,
		BankCode:      req.BankCode,
	}

	err := r.store.WithTx(ctx, func(tx ledger.Tx) error {
		count, err := tx.CountBanks(ctx, userID)
		if err != nil {
			return err
		}
		bank.IsDefault = count == 0 || req.SetDefault
		if bank.IsDefault && count > 0 {
			if err := tx.ClearDefaultBank(ctx, userID); err != nil {
				return err
			}
		}
		return tx.InsertBank(ctx, bank)
	})
	if err != nil {
		return nil, err
	}
	return bank, nil
}

// ListBanks returns the user's registered accounts, default first.
func (r *BankRegistry) ListBanks(ctx context.Context, userID ledger.UserID) ([]ledger.Bank, error) {
	return r.store.ListBanks(ctx, userID)
}

// DefaultBank returns the default account, or nil when none is registered.
func (r *BankRegistry) DefaultBank(ctx context.Context, userID ledger.UserID) (*ledger.Bank, error) {
	return r.store.DefaultBank(ctx, userID)
}

// SetDefaultBank moves the default flag to the given account.
func (r *BankRegistry) SetDefaultBank(ctx context.Context, userID ledger.UserID, id ledger.BankID) error {
	return r.store.WithTx(ctx, func(tx ledger.Tx) error {
		if err := tx.ClearDefaultBank(ctx, userID); err != nil {
			return err
		}
		ok, err := tx.SetDefaultBank(ctx, userID, id)
		if err != nil {
			return err
		}
		if !ok {
			return &ledger.NotFoundError{Kind: "bank", ID: string(id)}
		}
		return nil
	})
}

// DeleteBank removes an account. When the default is removed the oldest
// remaining account inherits the flag.
func (r *BankRegistry) DeleteBank(ctx context.Context, userID ledger.UserID, id ledger.BankID) error {
	return r.store.WithTx(ctx, func(tx ledger.Tx) error {
		ok, err := tx.DeleteBank(ctx, userID, id)
		if err != nil {
			return err
		}
		if !ok {
			return &ledger.NotFoundError{Kind: "bank", ID: string(id)}
		}
		return tx.PromoteOldestBank(ctx, userID)
	})
}
