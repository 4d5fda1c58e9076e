package service

import (
	"context"
	"errors"
	"testing"

	"settlement-ledger/internal/core/domain"
	"settlement-ledger/internal/core/ports/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestRecorder_Record_Debit(t *testing.T) {
	ctrl := gomock.NewController(t)
	entries := mocks.NewMockEntryRepository(ctrl)
	tx := mocks.NewMockTx(ctrl)
	rec := NewTransactionRecorder(entries)

	account := &domain.Account{Number: "ACC-1001", Balance: dec("800.00")}
	entries.EXPECT().Create(gomock.Any(), tx, gomock.Any()).Return(nil)

	entry, err := rec.Record(context.Background(), tx, account, dec("-200"), dec("800.00"),
		"Payment PAY-1", domain.EntryStatusCompleted, "PAY-1")
	require.NoError(t, err)

	assert.True(t, domain.ValidEntryID(entry.ID))
	assert.Equal(t, domain.EntryDirectionDebit, entry.Direction)
	assertDecimal(t, "-200.00", entry.Amount)
	assertDecimal(t, "800.00", entry.RunningBalance)
	require.NotNil(t, entry.PaymentRef)
	assert.Equal(t, "PAY-1", *entry.PaymentRef)
	assert.Equal(t, domain.EntryStatusCompleted, entry.Status)
	assert.False(t, entry.CreatedAt.IsZero())
}

func TestRecorder_Record_CreditWithoutRef(t *testing.T) {
	ctrl := gomock.NewController(t)
	entries := mocks.NewMockEntryRepository(ctrl)
	rec := NewTransactionRecorder(entries)

	account := &domain.Account{Number: "MER-0001", Balance: dec("196.00")}
	entries.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	entry, err := rec.Record(context.Background(), nil, account, dec("196"), dec("196"),
		"adjustment", domain.EntryStatusCompleted, "")
	require.NoError(t, err)
	assert.Equal(t, domain.EntryDirectionCredit, entry.Direction)
	assert.Nil(t, entry.PaymentRef)
}

func TestRecorder_Record_Rejects(t *testing.T) {
	account := &domain.Account{Number: "ACC-1001", Balance: dec("800.00")}

	tests := []struct {
		name    string
		account *domain.Account
		amount  string
		running string
	}{
		{"nil account", nil, "-1", "800"},
		{"zero amount", account, "0", "800"},
		{"running balance mismatch", account, "-200", "600"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			// No Create call expected.
			rec := NewTransactionRecorder(mocks.NewMockEntryRepository(ctrl))

			_, err := rec.Record(context.Background(), nil, tt.account, dec(tt.amount), dec(tt.running),
				"", domain.EntryStatusCompleted, "PAY-1")
			assert.Error(t, err)
		})
	}
}

func TestRecorder_Record_RepoError(t *testing.T) {
	ctrl := gomock.NewController(t)
	entries := mocks.NewMockEntryRepository(ctrl)
	rec := NewTransactionRecorder(entries)

	dbErr := errors.New("disk full")
	entries.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Return(dbErr)

	_, err := rec.Record(context.Background(), nil, &domain.Account{Number: "A", Balance: dec("1")},
		dec("1"), dec("1"), "", domain.EntryStatusCompleted, "")
	assert.ErrorIs(t, err, dbErr)
}
