package postgres

import (
	"context"
	"testing"
	"time"

	"settlement-ledger/internal/core/domain"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEntry(id string, amount, running string) *domain.TransactionEntry {
	ref := "PAY-1"
	direction := domain.EntryDirectionCredit
	if decimal.RequireFromString(amount).IsNegative() {
		direction = domain.EntryDirectionDebit
	}
	return &domain.TransactionEntry{
		ID:             id,
		AccountNumber:  "ACC-1001",
		PaymentRef:     &ref,
		Direction:      direction,
		Amount:         decimal.RequireFromString(amount),
		RunningBalance: decimal.RequireFromString(running),
		Description:    "Payment PAY-1",
		Status:         domain.EntryStatusCompleted,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
}

func entryRows(entries ...*domain.TransactionEntry) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{
		"id", "account_number", "payment_ref", "direction", "amount", "running_balance", "description", "status", "created_at",
	})
	for _, e := range entries {
		rows.AddRow(e.ID, e.AccountNumber, e.PaymentRef, e.Direction, e.Amount,
			e.RunningBalance, e.Description, e.Status, e.CreatedAt)
	}
	return rows
}

func TestEntryRepo_Create(t *testing.T) {
	mock := newMockPool(t)
	repo := NewEntryRepo(mock)
	tx := beginTx(t, mock)
	e := newTestEntry("txe_01", "-200.00", "800.00")

	mock.ExpectExec("INSERT INTO transaction_entries").
		WithArgs(e.ID, e.AccountNumber, e.PaymentRef, e.Direction, e.Amount,
			e.RunningBalance, e.Description, e.Status, e.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(context.Background(), tx, e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepo_ListByAccount(t *testing.T) {
	mock := newMockPool(t)
	repo := NewEntryRepo(mock)
	newer := newTestEntry("txe_02", "-50.00", "750.00")
	older := newTestEntry("txe_01", "-200.00", "800.00")

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM transaction_entries").
		WithArgs("ACC-1001").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(12)))
	mock.ExpectQuery("SELECT .+ FROM transaction_entries\\s+WHERE account_number = \\$1 ORDER BY seq DESC LIMIT").
		WithArgs("ACC-1001", 2, 2).
		WillReturnRows(entryRows(newer, older))

	entries, total, err := repo.ListByAccount(context.Background(), "ACC-1001", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	require.Len(t, entries, 2)
	assert.Equal(t, "txe_02", entries[0].ID)
	assert.Equal(t, domain.EntryDirectionDebit, entries[0].Direction)
	require.NotNil(t, entries[0].PaymentRef)
	assert.Equal(t, "PAY-1", *entries[0].PaymentRef)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepo_LatestByAccount(t *testing.T) {
	mock := newMockPool(t)
	repo := NewEntryRepo(mock)
	e := newTestEntry("txe_09", "4.00", "4.00")

	mock.ExpectQuery("ORDER BY seq DESC LIMIT 1").
		WithArgs("FEE-0001").
		WillReturnRows(entryRows(e))
	mock.ExpectQuery("ORDER BY seq DESC LIMIT 1").
		WithArgs("MER-0001").
		WillReturnRows(entryRows())

	got, err := repo.LatestByAccount(context.Background(), "FEE-0001")
	require.NoError(t, err)
	assert.Equal(t, "txe_09", got.ID)

	none, err := repo.LatestByAccount(context.Background(), "MER-0001")
	assert.NoError(t, err)
	assert.Nil(t, none)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepo_ListByPaymentRef(t *testing.T) {
	mock := newMockPool(t)
	repo := NewEntryRepo(mock)

	mock.ExpectQuery("WHERE payment_ref = \\$1 ORDER BY seq ASC").
		WithArgs("PAY-1").
		WillReturnRows(entryRows(
			newTestEntry("txe_01", "-200.00", "800.00"),
			newTestEntry("txe_02", "196.00", "196.00"),
			newTestEntry("txe_03", "4.00", "4.00"),
		))

	entries, err := repo.ListByPaymentRef(context.Background(), "PAY-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "txe_03", entries[2].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
