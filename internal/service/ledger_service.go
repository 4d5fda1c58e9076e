package service

import (
	"context"
	"time"

	"settlement-ledger/internal/core/domain"
	"settlement-ledger/internal/core/ports"
	"settlement-ledger/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LedgerServiceImpl implements ports.LedgerService. Every Debit/Credit is one
// storage transaction: lock row, check, update balance, record entry, commit.
// Only one account row is locked at a time.
type LedgerServiceImpl struct {
	transactor ports.DBTransactor
	accounts   ports.AccountRepository
	recorder   ports.TransactionRecorder
	timeout    time.Duration
	log        zerolog.Logger
}

// NewLedgerService creates a ledger whose mutations are bounded by mutationTimeout.
func NewLedgerService(
	transactor ports.DBTransactor,
	accounts ports.AccountRepository,
	recorder ports.TransactionRecorder,
	mutationTimeout time.Duration,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		transactor: transactor,
		accounts:   accounts,
		recorder:   recorder,
		timeout:    mutationTimeout,
		log:        log,
	}
}

// Debit removes amount from the account. Fails with InsufficientFunds, without
// mutating, when the locked balance is below amount.
func (l *LedgerServiceImpl) Debit(ctx context.Context, accountNumber string, amount decimal.Decimal, paymentRef, description string) (*ports.Mutation, error) {
	return l.apply(ctx, accountNumber, amount, true, paymentRef, description)
}

// Credit adds amount to the account.
func (l *LedgerServiceImpl) Credit(ctx context.Context, accountNumber string, amount decimal.Decimal, paymentRef, description string) (*ports.Mutation, error) {
	return l.apply(ctx, accountNumber, amount, false, paymentRef, description)
}

func (l *LedgerServiceImpl) apply(
	ctx context.Context,
	accountNumber string,
	amount decimal.Decimal,
	debit bool,
	paymentRef, description string,
) (*ports.Mutation, error) {
	amount, err := domain.NormalizeAmount(amount)
	if err != nil {
		return nil, apperror.ErrInvalidAmount()
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	tx, err := l.transactor.Begin(ctx)
	if err != nil {
		return nil, storageError(ctx, err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	// 1. Lock the account row.
	account, err := l.accounts.GetByNumberForUpdate(ctx, tx, accountNumber)
	if err != nil {
		return nil, storageError(ctx, err)
	}
	if account == nil || !account.Active {
		return nil, apperror.ErrAccountNotFound(accountNumber)
	}

	// 2. Check sufficiency against the locked balance.
	signed := amount
	if debit {
		if !account.CanDebit(amount) {
			return nil, apperror.ErrInsufficientFunds()
		}
		signed = amount.Neg()
	}
	newBalance := domain.RoundMoney(account.Balance.Add(signed))

	// 3. Update balance.
	if err := l.accounts.UpdateBalance(ctx, tx, accountNumber, newBalance); err != nil {
		return nil, storageError(ctx, err)
	}
	account.Balance = newBalance

	// 4. Record the entry in the same transaction.
	entry, err := l.recorder.Record(ctx, tx, account, signed, newBalance, description, domain.EntryStatusCompleted, paymentRef)
	if err != nil {
		return nil, storageError(ctx, err)
	}

	// 5. Commit.
	if err := tx.Commit(ctx); err != nil {
		return nil, storageError(ctx, err)
	}

	l.log.Debug().
		Str("account", accountNumber).
		Str("entry_id", entry.ID).
		Str("amount", signed.StringFixed(domain.MoneyScale)).
		Str("balance", newBalance.StringFixed(domain.MoneyScale)).
		Msg("ledger mutation committed")

	return &ports.Mutation{
		AccountNumber: accountNumber,
		NewBalance:    newBalance,
		Entry:         entry,
	}, nil
}
