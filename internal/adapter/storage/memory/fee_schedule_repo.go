package memory

import (
	"context"

	"settlement-ledger/internal/core/domain"
)

// FeeScheduleRepo implements ports.FeeScheduleRepository.
type FeeScheduleRepo struct {
	store *Store
}

// Get returns the stored schedule or nil.
func (r *FeeScheduleRepo) Get(ctx context.Context) (*domain.FeeSchedule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if r.store.schedule == nil {
		return nil, nil
	}
	cp := *r.store.schedule
	return &cp, nil
}

// Save replaces the stored schedule.
func (r *FeeScheduleRepo) Save(ctx context.Context, s *domain.FeeSchedule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	cp := *s
	r.store.schedule = &cp
	return nil
}
