/*
funding.go - Wallet Funding

PURPOSE:
  Deposits and withdrawals against the spendable wallet balance, plus the
  transaction history reads. Deposits are two-phase: initiation writes a
  pending ledger row keyed by a unique reference, completion credits the
  wallet and flips the row exactly once. Replaying a completion returns the
  already-settled transaction instead of crediting twice.
*/
package vault

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pocketvault/ledger-engine/ledger"
)

// Funding moves money between the outside world and the wallet.
type Funding struct {
	store    ledger.Store
	cfg      Config
	notifier Notifier

	Now func() time.Time
}

func NewFunding(store ledger.Store, cfg Config, notifier Notifier) *Funding {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Funding{store: store, cfg: cfg, notifier: notifier, Now: nowUTC}
}

// InitiateDeposit opens a pending deposit and returns its reference. Nothing
// is credited until CompleteDeposit confirms the funds arrived.
func (f *Funding) InitiateDeposit(ctx context.Context, userID ledger.UserID, amount decimal.Decimal) (*ledger.Transaction, error) {
	if amount.LessThan(f.cfg.MinDeposit) {
		return nil, &ledger.ValidationError{Field: "amount", Message: "below minimum deposit"}
	}
	user, err := fetchUser(ctx, f.store, userID)
	if err != nil {
		return nil, err
	}

	txn := &ledger.Transaction{
		ID:            ledger.TransactionID(newID()),
		UserID:        userID,
		Type:          ledger.TxnDeposit,
		Amount:        amount,
		BalanceBefore: user.Balance,
		BalanceAfter:  user.Balance,
		Status:        ledger.TxnStatusPending,
		Reference:     fmt.Sprintf("dep_%s", newID()),
		Description:   "Wallet deposit",
	}

	err = f.store.WithTx(ctx, func(tx ledger.Tx) error {
		return tx.InsertTransaction(ctx, txn)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// CompleteDeposit settles a pending deposit by reference. Idempotent: a
// reference that already settled returns the settled transaction unchanged.
func (f *Funding) CompleteDeposit(ctx context.Context, userID ledger.UserID, reference string) (*ledger.Transaction, error) {
	txn, err := f.store.GetTransactionByReference(ctx, userID, reference)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, &ledger.NotFoundError{Kind: "transaction", ID: reference}
	}
	if txn.Status == ledger.TxnStatusCompleted {
		return txn, nil
	}
	if txn.Type != ledger.TxnDeposit {
		return nil, &ledger.ValidationError{Field: "reference", Message: "not a deposit"}
	}

	now := f.Now()
	err = f.store.WithTx(ctx, func(tx ledger.Tx) error {
		balanceAfter, err := tx.AdjustBalances(ctx, userID, txn.Amount, decimal.Zero)
		if err != nil {
			return err
		}
		ok, err := tx.CompleteTransactionByRef(ctx, userID, reference, balanceAfter.Sub(txn.Amount), balanceAfter, now)
		if err != nil {
			return err
		}
		if !ok {
			// Settled by a concurrent caller; roll back our credit.
			return &ledger.InvalidStateError{Kind: "transaction", ID: reference, Status: string(ledger.TxnStatusCompleted)}
		}
		txn.Status = ledger.TxnStatusCompleted
		txn.BalanceBefore = balanceAfter.Sub(txn.Amount)
		txn.BalanceAfter = balanceAfter
		txn.CompletedAt = &now
		return nil
	})
	if err != nil {
		if ledger.IsInvalidState(err) {
			// The race loser re-reads and serves the settled row.
			settled, rerr := f.store.GetTransactionByReference(ctx, userID, reference)
			if rerr == nil && settled != nil && settled.Status == ledger.TxnStatusCompleted {
				return settled, nil
			}
		}
		return nil, err
	}

	f.notifier.Notify(ctx, userID, EventDepositCompleted, map[string]string{
		"reference": reference,
		"amount":    txn.Amount.String(),
	})
	return txn, nil
}

// InitiateWithdrawal debits the wallet immediately and records a completed
// withdrawal to the given bank account.
func (f *Funding) InitiateWithdrawal(ctx context.Context, userID ledger.UserID, amount decimal.Decimal, bankID ledger.BankID) (*ledger.Transaction, error) {
	if !amount.IsPositive() {
		return nil, &ledger.ValidationError{Field: "amount", Message: "must be positive"}
	}
	if _, err := fetchUser(ctx, f.store, userID); err != nil {
		return nil, err
	}

	now := f.Now()
	var txn *ledger.Transaction
	err := f.store.WithTx(ctx, func(tx ledger.Tx) error {
		var bank *ledger.Bank
		var err error
		if bankID != "" {
			bank, err = tx.GetBank(ctx, userID, bankID)
		} else {
			bank, err = tx.DefaultBank(ctx, userID)
		}
		if err != nil {
			return err
		}
		if bank == nil {
			return &ledger.NotFoundError{Kind: "bank", ID: string(bankID)}
		}

		balanceAfter, err := tx.AdjustBalances(ctx, userID, amount.Neg(), decimal.Zero)
		if err != nil {
			return err
		}

		txn = &ledger.Transaction{
			ID:            ledger.TransactionID(newID()),
			UserID:        userID,
			Type:          ledger.TxnWithdrawal,
			Amount:        amount,
			BalanceBefore: balanceAfter.Add(amount),
			BalanceAfter:  balanceAfter,
			Status:        ledger.TxnStatusCompleted,
			Reference:     fmt.Sprintf("wdr_%s", newID()),
			Description:   fmt.Sprintf("Withdrawal to %s", bank.BankName),
			Metadata:      map[string]string{"bankId": string(bank.ID)},
			CompletedAt:   &now,
		}
		return tx.InsertTransaction(ctx, txn)
	})
	if err != nil {
		return nil, err
	}

	f.notifier.Notify(ctx, userID, EventPayoutSent, map[string]string{
		"transactionId": string(txn.ID),
		"amount":        amount.String(),
		"bankId":        txn.Metadata["bankId"],
	})
	return txn, nil
}

// ListTransactions pages through the user's ledger history, newest first.
func (f *Funding) ListTransactions(ctx context.Context, userID ledger.UserID, filter ledger.TxnFilter) ([]ledger.Transaction, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	return f.store.ListTransactions(ctx, userID, filter)
}

// GetTransaction returns one ledger row owned by the user.
func (f *Funding) GetTransaction(ctx context.Context, userID ledger.UserID, id ledger.TransactionID) (*ledger.Transaction, error) {
	txn, err := f.store.GetTransaction(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, &ledger.NotFoundError{Kind: "transaction", ID: string(id)}
	}
	return txn, nil
}
