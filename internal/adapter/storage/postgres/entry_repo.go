package postgres

import (
	"context"
	"errors"
	"fmt"

	"settlement-ledger/internal/core/domain"
	"settlement-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const entryColumns = `id, account_number, payment_ref, direction, amount, running_balance, description, status, created_at`

// EntryRepo implements ports.EntryRepository. The table is insert-only.
type EntryRepo struct {
	pool Pool
}

// NewEntryRepo creates a new EntryRepo.
func NewEntryRepo(pool Pool) *EntryRepo {
	return &EntryRepo{pool: pool}
}

// Create inserts an entry within a database transaction.
func (r *EntryRepo) Create(ctx context.Context, tx ports.Tx, e *domain.TransactionEntry) error {
	ptx, err := pgxTx(tx)
	if err != nil {
		return err
	}
	query := `INSERT INTO transaction_entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = ptx.Exec(ctx, query,
		e.ID, e.AccountNumber, e.PaymentRef, e.Direction, e.Amount,
		e.RunningBalance, e.Description, e.Status, e.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// ListByAccount fetches one page of an account's entries, newest first.
func (r *EntryRepo) ListByAccount(ctx context.Context, number string, page, pageSize int) ([]domain.TransactionEntry, int64, error) {
	page, pageSize = domain.NormalizePage(page, pageSize)

	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transaction_entries WHERE account_number = $1`, number).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}

	query := `SELECT ` + entryColumns + ` FROM transaction_entries
		WHERE account_number = $1 ORDER BY seq DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, number, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list entries: %w", err)
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// LatestByAccount fetches the most recent entry of an account.
func (r *EntryRepo) LatestByAccount(ctx context.Context, number string) (*domain.TransactionEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM transaction_entries
		WHERE account_number = $1 ORDER BY seq DESC LIMIT 1`

	e := &domain.TransactionEntry{}
	err := r.pool.QueryRow(ctx, query, number).Scan(entryDest(e)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest entry: %w", err)
	}
	return e, nil
}

// ListByPaymentRef fetches the entries of one settlement in insertion order.
func (r *EntryRepo) ListByPaymentRef(ctx context.Context, paymentRef string) ([]domain.TransactionEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM transaction_entries
		WHERE payment_ref = $1 ORDER BY seq ASC`

	rows, err := r.pool.Query(ctx, query, paymentRef)
	if err != nil {
		return nil, fmt.Errorf("list entries by payment ref: %w", err)
	}
	return collectEntries(rows)
}

func entryDest(e *domain.TransactionEntry) []any {
	return []any{
		&e.ID, &e.AccountNumber, &e.PaymentRef, &e.Direction, &e.Amount,
		&e.RunningBalance, &e.Description, &e.Status, &e.CreatedAt,
	}
}

func collectEntries(rows pgx.Rows) ([]domain.TransactionEntry, error) {
	defer rows.Close()

	var entries []domain.TransactionEntry
	for rows.Next() {
		e := domain.TransactionEntry{}
		if err := rows.Scan(entryDest(&e)...); err != nil {
			return nil, fmt.Errorf("scan entry row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entry rows: %w", err)
	}
	return entries, nil
}
