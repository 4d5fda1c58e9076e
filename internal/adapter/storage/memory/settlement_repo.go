package memory

import (
	"context"
	"fmt"

	"settlement-ledger/internal/core/domain"
	"settlement-ledger/internal/core/ports"
)

// SettlementRepo implements ports.SettlementRepository.
type SettlementRepo struct {
	store *Store
}

// Create inserts a settlement; the payment reference must be unused.
func (r *SettlementRepo) Create(ctx context.Context, st *domain.Settlement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.settlements[st.PaymentRef]; exists {
		return ports.ErrDuplicate
	}
	cp := *st
	r.store.settlements[st.PaymentRef] = &cp
	return nil
}

// GetByRef returns the settlement or nil.
func (r *SettlementRepo) GetByRef(ctx context.Context, paymentRef string) (*domain.Settlement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	st, ok := r.store.settlements[paymentRef]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

// Update overwrites the stored settlement.
func (r *SettlementRepo) Update(ctx context.Context, st *domain.Settlement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.settlements[st.PaymentRef]; !exists {
		return fmt.Errorf("settlement not found: %s", st.PaymentRef)
	}
	cp := *st
	r.store.settlements[st.PaymentRef] = &cp
	return nil
}
