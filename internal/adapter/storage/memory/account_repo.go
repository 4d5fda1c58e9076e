package memory

import (
	"context"
	"fmt"
	"time"

	"settlement-ledger/internal/core/domain"
	"settlement-ledger/internal/core/ports"

	"github.com/shopspring/decimal"
)

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	store *Store
}

// Create inserts a new account.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.accounts[a.Number]; exists {
		return ports.ErrDuplicate
	}
	cp := *a
	r.store.accounts[a.Number] = &cp
	return nil
}

// GetByNumber returns a snapshot of the committed account, or nil.
func (r *AccountRepo) GetByNumber(ctx context.Context, number string) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	a, ok := r.store.accounts[number]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

// GetByNumberForUpdate locks the account row for the lifetime of tx, waiting
// until the current holder commits or rolls back, or ctx is done.
func (r *AccountRepo) GetByNumberForUpdate(ctx context.Context, tx ports.Tx, number string) (*domain.Account, error) {
	mt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if err := mt.lock(ctx, number); err != nil {
		return nil, err
	}

	a, err := r.GetByNumber(ctx, number)
	if err != nil || a == nil {
		return a, err
	}
	if staged, ok := mt.balances[number]; ok {
		a.Balance = staged
	}
	return a, nil
}

// UpdateBalance stages a new balance. The row must be locked by tx.
func (r *AccountRepo) UpdateBalance(ctx context.Context, tx ports.Tx, number string, balance decimal.Decimal) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, held := mt.locked[number]; !held {
		return fmt.Errorf("update balance: account %s is not locked by this transaction", number)
	}

	r.store.mu.RLock()
	_, exists := r.store.accounts[number]
	r.store.mu.RUnlock()
	if !exists {
		return fmt.Errorf("account not found: %s", number)
	}

	mt.balances[number] = balance
	return nil
}

// SetActive flips the active flag.
func (r *AccountRepo) SetActive(ctx context.Context, number string, active bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	a, ok := r.store.accounts[number]
	if !ok {
		return fmt.Errorf("account not found: %s", number)
	}
	a.Active = active
	a.UpdatedAt = time.Now().UTC()
	return nil
}
