package memory

import (
	"context"

	"settlement-ledger/internal/core/domain"
	"settlement-ledger/internal/core/ports"
)

// EntryRepo implements ports.EntryRepository. Entries are append-only.
type EntryRepo struct {
	store *Store
}

// Create stages an entry; it becomes visible when tx commits.
func (r *EntryRepo) Create(ctx context.Context, tx ports.Tx, e *domain.TransactionEntry) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	mt.entries = append(mt.entries, *e)
	return nil
}

// ListByAccount returns committed entries for number, newest first.
func (r *EntryRepo) ListByAccount(ctx context.Context, number string, page, pageSize int) ([]domain.TransactionEntry, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var matched []domain.TransactionEntry
	for i := len(r.store.entries) - 1; i >= 0; i-- {
		if r.store.entries[i].AccountNumber == number {
			matched = append(matched, r.store.entries[i])
		}
	}

	start, end := paginate(len(matched), page, pageSize)
	out := make([]domain.TransactionEntry, end-start)
	copy(out, matched[start:end])
	return out, int64(len(matched)), nil
}

// LatestByAccount returns the most recent entry for number, or nil.
func (r *EntryRepo) LatestByAccount(ctx context.Context, number string) (*domain.TransactionEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for i := len(r.store.entries) - 1; i >= 0; i-- {
		if r.store.entries[i].AccountNumber == number {
			e := r.store.entries[i]
			return &e, nil
		}
	}
	return nil, nil
}

// ListByPaymentRef returns the entries of one settlement in commit order.
func (r *EntryRepo) ListByPaymentRef(ctx context.Context, paymentRef string) ([]domain.TransactionEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []domain.TransactionEntry
	for _, e := range r.store.entries {
		if e.PaymentRef != nil && *e.PaymentRef == paymentRef {
			out = append(out, e)
		}
	}
	return out, nil
}
