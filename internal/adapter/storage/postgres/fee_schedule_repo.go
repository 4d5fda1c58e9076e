package postgres

import (
	"context"
	"errors"
	"fmt"

	"settlement-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// FeeScheduleRepo implements ports.FeeScheduleRepository over a single-row table.
type FeeScheduleRepo struct {
	pool Pool
}

// NewFeeScheduleRepo creates a new FeeScheduleRepo.
func NewFeeScheduleRepo(pool Pool) *FeeScheduleRepo {
	return &FeeScheduleRepo{pool: pool}
}

// Get returns the stored schedule, or nil when none was saved yet.
func (r *FeeScheduleRepo) Get(ctx context.Context) (*domain.FeeSchedule, error) {
	query := `SELECT rate, minimum_fee, maximum_fee, updated_at, updated_by FROM fee_schedules WHERE id = 1`

	s := &domain.FeeSchedule{}
	err := r.pool.QueryRow(ctx, query).Scan(&s.Rate, &s.MinimumFee, &s.MaximumFee, &s.UpdatedAt, &s.UpdatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get fee schedule: %w", err)
	}
	return s, nil
}

// Save upserts the schedule.
func (r *FeeScheduleRepo) Save(ctx context.Context, s *domain.FeeSchedule) error {
	query := `INSERT INTO fee_schedules (id, rate, minimum_fee, maximum_fee, updated_at, updated_by)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET rate = EXCLUDED.rate, minimum_fee = EXCLUDED.minimum_fee,
			maximum_fee = EXCLUDED.maximum_fee, updated_at = EXCLUDED.updated_at, updated_by = EXCLUDED.updated_by`

	if _, err := r.pool.Exec(ctx, query, s.Rate, s.MinimumFee, s.MaximumFee, s.UpdatedAt, s.UpdatedBy); err != nil {
		return fmt.Errorf("save fee schedule: %w", err)
	}
	return nil
}
