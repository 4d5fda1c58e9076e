package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"settlement-ledger/internal/core/domain"
	"settlement-ledger/internal/core/ports"

	"github.com/shopspring/decimal"
)

var (
	errRunningBalanceMismatch = errors.New("running balance does not match account balance")
	errZeroEntry              = errors.New("entry amount must not be zero")
)

// TransactionRecorderImpl appends immutable entries inside the caller's storage transaction.
type TransactionRecorderImpl struct {
	entries ports.EntryRepository
	now     func() time.Time
}

// NewTransactionRecorder creates a recorder over the append-only entry store.
func NewTransactionRecorder(entries ports.EntryRepository) *TransactionRecorderImpl {
	return &TransactionRecorderImpl{
		entries: entries,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Record appends one entry for account. runningBalance must equal the
// balance the account holds after the mutation, i.e. account.Balance.
func (r *TransactionRecorderImpl) Record(
	ctx context.Context,
	tx ports.Tx,
	account *domain.Account,
	signedAmount, runningBalance decimal.Decimal,
	description string,
	status domain.EntryStatus,
	paymentRef string,
) (*domain.TransactionEntry, error) {
	if account == nil {
		return nil, fmt.Errorf("record entry: account is required")
	}
	if signedAmount.IsZero() {
		return nil, errZeroEntry
	}
	if !runningBalance.Equal(account.Balance) {
		return nil, fmt.Errorf("record entry for %s: %w (running %s, balance %s)",
			account.Number, errRunningBalanceMismatch, runningBalance, account.Balance)
	}

	direction := domain.EntryDirectionCredit
	if signedAmount.IsNegative() {
		direction = domain.EntryDirectionDebit
	}

	entry := &domain.TransactionEntry{
		ID:             domain.NewEntryID(),
		AccountNumber:  account.Number,
		Direction:      direction,
		Amount:         domain.RoundMoney(signedAmount),
		RunningBalance: domain.RoundMoney(runningBalance),
		Description:    description,
		Status:         status,
		CreatedAt:      r.now(),
	}
	if paymentRef != "" {
		ref := paymentRef
		entry.PaymentRef = &ref
	}

	if err := r.entries.Create(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("record entry for %s: %w", account.Number, err)
	}
	return entry, nil
}
