package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"settlement-ledger/internal/adapter/storage/memory"
	"settlement-ledger/internal/core/domain"
	"settlement-ledger/internal/core/ports/mocks"
	"settlement-ledger/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestLedger(t *testing.T, store *memory.Store) *LedgerServiceImpl {
	t.Helper()
	return NewLedgerService(store.Transactor(), store.Accounts(),
		NewTransactionRecorder(store.Entries()), 2*time.Second, newTestLogger())
}

func putAccount(t *testing.T, store *memory.Store, number string, role domain.AccountRole, balance, credentialHash string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, store.Accounts().Create(context.Background(), &domain.Account{
		Number:         number,
		HolderName:     number,
		Role:           role,
		Balance:        dec(balance),
		OpeningBalance: dec(balance),
		CredentialHash: credentialHash,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}))
}

func balanceOf(t *testing.T, store *memory.Store, number string) string {
	t.Helper()
	a, err := store.Accounts().GetByNumber(context.Background(), number)
	require.NoError(t, err)
	require.NotNil(t, a)
	return a.Balance.StringFixed(domain.MoneyScale)
}

func TestLedger_DebitAndCredit(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	putAccount(t, store, "ACC-1001", domain.AccountRolePayer, "1000.00", "")
	ledger := newTestLedger(t, store)

	m, err := ledger.Debit(ctx, "ACC-1001", dec("200"), "PAY-1", "Payment PAY-1")
	require.NoError(t, err)
	assertDecimal(t, "800.00", m.NewBalance)
	assertDecimal(t, "-200.00", m.Entry.Amount)
	assert.Equal(t, domain.EntryDirectionDebit, m.Entry.Direction)

	m, err = ledger.Credit(ctx, "ACC-1001", dec("0.05"), "", "adjustment")
	require.NoError(t, err)
	assertDecimal(t, "800.05", m.NewBalance)

	assert.Equal(t, "800.05", balanceOf(t, store, "ACC-1001"))
	latest, err := store.Entries().LatestByAccount(ctx, "ACC-1001")
	require.NoError(t, err)
	assert.Equal(t, m.Entry.ID, latest.ID)
	assertDecimal(t, "800.05", latest.RunningBalance)
}

func TestLedger_DebitInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	putAccount(t, store, "ACC-1001", domain.AccountRolePayer, "100.00", "")
	ledger := newTestLedger(t, store)

	_, err := ledger.Debit(ctx, "ACC-1001", dec("100.01"), "PAY-1", "")
	assertAppError(t, err, "LED_004")
	assert.Equal(t, "100.00", balanceOf(t, store, "ACC-1001"))

	// Debiting the exact balance is allowed.
	m, err := ledger.Debit(ctx, "ACC-1001", dec("100.00"), "PAY-2", "")
	require.NoError(t, err)
	assertDecimal(t, "0", m.NewBalance)
}

func TestLedger_UnknownOrInactiveAccount(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	putAccount(t, store, "ACC-1001", domain.AccountRolePayer, "100.00", "")
	require.NoError(t, store.Accounts().SetActive(ctx, "ACC-1001", false))
	ledger := newTestLedger(t, store)

	_, err := ledger.Credit(ctx, "ACC-1001", dec("1"), "", "")
	assertAppError(t, err, "LED_001")
	_, err = ledger.Credit(ctx, "NOPE", dec("1"), "", "")
	assertAppError(t, err, "LED_001")
}

func TestLedger_InvalidAmount(t *testing.T) {
	store := memory.NewStore()
	putAccount(t, store, "ACC-1001", domain.AccountRolePayer, "100.00", "")
	ledger := newTestLedger(t, store)

	for _, amount := range []string{"0", "-1", "0.001"} {
		_, err := ledger.Debit(context.Background(), "ACC-1001", dec(amount), "", "")
		assertAppError(t, err, "LED_003")
	}
	assert.Equal(t, "100.00", balanceOf(t, store, "ACC-1001"))
}

func TestLedger_RecorderFailureRollsBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := memory.NewStore()
	putAccount(t, store, "ACC-1001", domain.AccountRolePayer, "100.00", "")

	recorder := mocks.NewMockTransactionRecorder(ctrl)
	recorder.EXPECT().
		Record(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("entry insert failed"))

	ledger := NewLedgerService(store.Transactor(), store.Accounts(), recorder, time.Second, newTestLogger())
	_, err := ledger.Debit(context.Background(), "ACC-1001", dec("40"), "PAY-1", "")
	assertAppError(t, err, "SYS_001")

	// Balance update and entry were discarded together.
	assert.Equal(t, "100.00", balanceOf(t, store, "ACC-1001"))
	latest, _ := store.Entries().LatestByAccount(context.Background(), "ACC-1001")
	assert.Nil(t, latest)
}

func TestLedger_BeginFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"deadline", context.DeadlineExceeded, "LED_007"},
		{"cancelled", context.Canceled, "LED_010"},
		{"driver", errors.New("connection refused"), "SYS_001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			transactor := mocks.NewMockDBTransactor(ctrl)
			transactor.EXPECT().Begin(gomock.Any()).Return(nil, tt.err)

			ledger := NewLedgerService(transactor, mocks.NewMockAccountRepository(ctrl),
				mocks.NewMockTransactionRecorder(ctrl), time.Second, newTestLogger())
			_, err := ledger.Credit(context.Background(), "ACC-1001", dec("1"), "", "")
			assertAppError(t, err, tt.code)
		})
	}
}

func TestLedger_LockWaitTimesOut(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	putAccount(t, store, "ACC-1001", domain.AccountRolePayer, "100.00", "")

	holder, err := store.Transactor().Begin(ctx)
	require.NoError(t, err)
	_, err = store.Accounts().GetByNumberForUpdate(ctx, holder, "ACC-1001")
	require.NoError(t, err)
	defer func() { _ = holder.Rollback(ctx) }()

	ledger := NewLedgerService(store.Transactor(), store.Accounts(),
		NewTransactionRecorder(store.Entries()), 50*time.Millisecond, newTestLogger())
	_, err = ledger.Debit(ctx, "ACC-1001", dec("1"), "", "")
	assertAppError(t, err, "LED_007")
}

func TestLedger_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	putAccount(t, store, "ACC-1001", domain.AccountRolePayer, "100.00", "")
	ledger := newTestLedger(t, store)

	const workers = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Debit(ctx, "ACC-1001", dec("10"), "", "")
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.True(t, apperror.Is(err, apperror.KindInsufficientFunds), "unexpected error: %v", err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, "0.00", balanceOf(t, store, "ACC-1001"))
	_, total, err := store.Entries().ListByAccount(ctx, "ACC-1001", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), total)
}
