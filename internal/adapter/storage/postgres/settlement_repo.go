package postgres

import (
	"context"
	"errors"
	"fmt"

	"settlement-ledger/internal/core/domain"
	"settlement-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const settlementColumns = `payment_ref, payer_account, merchant_account, fee_collector_account, amount, fee, fee_mode,
	status, failure_kind, failure_detail, payer_entry_id, merchant_entry_id, fee_entry_id, completed_steps,
	created_at, finished_at`

// SettlementRepo implements ports.SettlementRepository.
type SettlementRepo struct {
	pool Pool
}

// NewSettlementRepo creates a new SettlementRepo.
func NewSettlementRepo(pool Pool) *SettlementRepo {
	return &SettlementRepo{pool: pool}
}

// Create inserts a settlement. The payment_ref primary key makes a reused
// reference fail with ports.ErrDuplicate.
func (r *SettlementRepo) Create(ctx context.Context, st *domain.Settlement) error {
	query := `INSERT INTO settlements (` + settlementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.pool.Exec(ctx, query,
		st.PaymentRef, st.PayerAccount, st.MerchantAccount, st.FeeCollectorAccount,
		st.Amount, st.Fee, st.FeeMode, st.Status, st.FailureKind, st.FailureDetail,
		st.PayerEntryID, st.MerchantEntryID, st.FeeEntryID, st.CompletedSteps,
		st.CreatedAt, st.FinishedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		return fmt.Errorf("insert settlement: %w", err)
	}
	return nil
}

// GetByRef fetches a settlement by payment reference.
func (r *SettlementRepo) GetByRef(ctx context.Context, paymentRef string) (*domain.Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE payment_ref = $1`

	st := &domain.Settlement{}
	err := r.pool.QueryRow(ctx, query, paymentRef).Scan(
		&st.PaymentRef, &st.PayerAccount, &st.MerchantAccount, &st.FeeCollectorAccount,
		&st.Amount, &st.Fee, &st.FeeMode, &st.Status, &st.FailureKind, &st.FailureDetail,
		&st.PayerEntryID, &st.MerchantEntryID, &st.FeeEntryID, &st.CompletedSteps,
		&st.CreatedAt, &st.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get settlement: %w", err)
	}
	return st, nil
}

// Update persists the mutable progress fields of a settlement.
func (r *SettlementRepo) Update(ctx context.Context, st *domain.Settlement) error {
	query := `UPDATE settlements SET amount = $1, fee = $2, status = $3, failure_kind = $4, failure_detail = $5,
		payer_entry_id = $6, merchant_entry_id = $7, fee_entry_id = $8, completed_steps = $9, finished_at = $10
		WHERE payment_ref = $11`

	tag, err := r.pool.Exec(ctx, query,
		st.Amount, st.Fee, st.Status, st.FailureKind, st.FailureDetail,
		st.PayerEntryID, st.MerchantEntryID, st.FeeEntryID, st.CompletedSteps, st.FinishedAt,
		st.PaymentRef,
	)
	if err != nil {
		return fmt.Errorf("update settlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("settlement not found: %s", st.PaymentRef)
	}
	return nil
}
