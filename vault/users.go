/*
users.go - User Accounts

PURPOSE:
  Account creation and balance reads. Balances are never computed here; the
  running balance and totalLocked live on the user row and every mutation
  goes through the transactional engine paths.
*/
package vault

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pocketvault/ledger-engine/ledger"
)

// Balances is the wallet summary: spendable, committed and their sum.
type Balances struct {
	Balance     decimal.Decimal
	TotalLocked decimal.Decimal
	Total       decimal.Decimal
}

// Users manages accounts.
type Users struct {
	store ledger.Store

	Now func() time.Time
}

func NewUsers(store ledger.Store) *Users {
	return &Users{store: store, Now: nowUTC}
}

// CreateUser opens an account with zero balances.
func (u *Users) CreateUser(ctx context.Context, email, fullName string) (*ledger.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, &ledger.ValidationError{Field: "email", Message: "invalid email"}
	}

	user := &ledger.User{
		ID:          ledger.UserID(newID()),
		Email:       email,
		FullName:    fullName,
		Balance:     decimal.Zero,
		TotalLocked: decimal.Zero,
	}
	if err := u.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUser returns the account or NotFoundError.
func (u *Users) GetUser(ctx context.Context, id ledger.UserID) (*ledger.User, error) {
	return fetchUser(ctx, u.store, id)
}

// GetBalance returns the wallet summary.
func (u *Users) GetBalance(ctx context.Context, id ledger.UserID) (*Balances, error) {
	user, err := fetchUser(ctx, u.store, id)
	if err != nil {
		return nil, err
	}
	return &Balances{
		Balance:     user.Balance,
		TotalLocked: user.TotalLocked,
		Total:       user.Balance.Add(user.TotalLocked),
	}, nil
}
