package postgres

import (
	"context"
	"errors"
	"fmt"

	"settlement-ledger/internal/core/domain"
	"settlement-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const accountColumns = `number, holder_name, role, balance, opening_balance, credential_hash, active, created_at, updated_at`

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// Create inserts a new account. A taken number returns ports.ErrDuplicate.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	query := `INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		a.Number, a.HolderName, a.Role, a.Balance, a.OpeningBalance,
		a.CredentialHash, a.Active, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetByNumber fetches an account (without locking).
func (r *AccountRepo) GetByNumber(ctx context.Context, number string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE number = $1`

	a, err := scanAccount(r.pool.QueryRow(ctx, query, number))
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// GetByNumberForUpdate fetches an account with pessimistic locking.
// This MUST be called within a transaction.
func (r *AccountRepo) GetByNumberForUpdate(ctx context.Context, tx ports.Tx, number string) (*domain.Account, error) {
	ptx, err := pgxTx(tx)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE number = $1 FOR UPDATE`

	a, err := scanAccount(ptx.QueryRow(ctx, query, number))
	if err != nil {
		return nil, fmt.Errorf("get account for update: %w", err)
	}
	return a, nil
}

// UpdateBalance sets the balance of a locked account within a transaction.
func (r *AccountRepo) UpdateBalance(ctx context.Context, tx ports.Tx, number string, balance decimal.Decimal) error {
	ptx, err := pgxTx(tx)
	if err != nil {
		return err
	}
	query := `UPDATE accounts SET balance = $1, updated_at = NOW() WHERE number = $2`

	tag, err := ptx.Exec(ctx, query, balance, number)
	if err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account not found: %s", number)
	}
	return nil
}

// SetActive flips the active flag.
func (r *AccountRepo) SetActive(ctx context.Context, number string, active bool) error {
	query := `UPDATE accounts SET active = $1, updated_at = NOW() WHERE number = $2`

	tag, err := r.pool.Exec(ctx, query, active, number)
	if err != nil {
		return fmt.Errorf("set account active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account not found: %s", number)
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	a := &domain.Account{}
	err := row.Scan(
		&a.Number, &a.HolderName, &a.Role, &a.Balance, &a.OpeningBalance,
		&a.CredentialHash, &a.Active, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}
