package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"settlement-ledger/internal/adapter/storage/memory"
	"settlement-ledger/internal/core/domain"
	"settlement-ledger/internal/core/ports"
	"settlement-ledger/internal/core/ports/mocks"
	"settlement-ledger/pkg/apperror"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	testPayer        = "ACC-1001"
	testPayerPIN     = "4921"
	testMerchant     = "MER-0001"
	testFeeCollector = "FEE-0001"
)

type settlementHarness struct {
	store  *memory.Store
	hasher *Argon2HashService
	fees   *FeeServiceImpl
	audit  ports.AuditService
	deps   SettlementDeps
	cfg    SettlementConfig
	svc    *SettlementServiceImpl
}

func newSettlementHarness(t *testing.T, mode domain.FeeMode, payerBalance string) *settlementHarness {
	t.Helper()
	store := memory.NewStore()
	hasher := NewArgon2HashServiceWithParams(cheapArgon2)

	pinHash, err := hasher.Hash(testPayerPIN)
	require.NoError(t, err)
	putAccount(t, store, testPayer, domain.AccountRolePayer, payerBalance, pinHash)
	putAccount(t, store, testMerchant, domain.AccountRoleMerchant, "0.00", "")
	putAccount(t, store, testFeeCollector, domain.AccountRoleFeeCollector, "0.00", "")

	audit := NewAuditService(store.Audit(), newTestLogger())
	fees, err := NewFeeService(domain.DefaultFeeSchedule(), store.FeeSchedules(), audit, newTestLogger())
	require.NoError(t, err)

	h := &settlementHarness{
		store:  store,
		hasher: hasher,
		fees:   fees,
		audit:  audit,
		cfg: SettlementConfig{
			MerchantAccount:     testMerchant,
			FeeCollectorAccount: testFeeCollector,
			FeeMode:             mode,
			LookupTimeout:       2 * time.Second,
			CacheTTL:            time.Hour,
		},
		deps: SettlementDeps{
			Accounts:    store.Accounts(),
			Settlements: store.Settlements(),
			Entries:     store.Entries(),
			Ledger:      newTestLedger(t, store),
			Fees:        fees,
			Hasher:      hasher,
			Audit:       audit,
		},
	}
	h.rebuild(t)
	return h
}

// rebuild recreates the engine after deps or cfg were swapped.
func (h *settlementHarness) rebuild(t *testing.T) {
	t.Helper()
	svc, err := NewSettlementService(h.cfg, h.deps, newTestLogger())
	require.NoError(t, err)
	h.svc = svc
}

func (h *settlementHarness) settle(ctx context.Context, ref, amount string) (*domain.SettlementResult, error) {
	return h.svc.Settle(ctx, ports.SettleRequest{
		PaymentRef:         ref,
		PayerAccountNumber: testPayer,
		PayerCredential:    testPayerPIN,
		Amount:             amount,
	})
}

func (h *settlementHarness) balances(t *testing.T) (string, string, string) {
	t.Helper()
	return balanceOf(t, h.store, testPayer), balanceOf(t, h.store, testMerchant), balanceOf(t, h.store, testFeeCollector)
}

func (h *settlementHarness) status(t *testing.T, ref string) *domain.Settlement {
	t.Helper()
	st, err := h.store.Settlements().GetByRef(context.Background(), ref)
	require.NoError(t, err)
	require.NotNil(t, st, "settlement %s not persisted", ref)
	return st
}

func (h *settlementHarness) assertConsistent(t *testing.T) {
	t.Helper()
	accounts := NewAccountService(h.store.Transactor(), h.store.Accounts(), h.store.Entries(), h.hasher, h.audit, time.Second, newTestLogger())
	for _, number := range []string{testPayer, testMerchant, testFeeCollector} {
		report, err := accounts.CheckConsistency(context.Background(), number)
		require.NoError(t, err)
		assert.Truef(t, report.Consistent, "%s: balance %s expected %s", number, report.Balance, report.ExpectedBalance)
	}
}

func TestSettle_HappyPath(t *testing.T) {
	h := newSettlementHarness(t, domain.FeeModeIncluded, "1000.00")

	result, err := h.settle(context.Background(), "PAY-1", "200.00")
	require.NoError(t, err)

	assertDecimal(t, "200.00", result.Amount)
	assertDecimal(t, "4.00", result.Fee)
	assertDecimal(t, "800.00", result.PayerBalance)
	assertDecimal(t, "196.00", result.MerchantBalance)
	assertDecimal(t, "4.00", result.FeeCollectorBalance)
	assert.False(t, result.Replayed)
	assert.False(t, result.SettledAt.IsZero())

	payer, merchant, fee := h.balances(t)
	assert.Equal(t, "800.00", payer)
	assert.Equal(t, "196.00", merchant)
	assert.Equal(t, "4.00", fee)

	st := h.status(t, "PAY-1")
	assert.Equal(t, domain.SettlementStatusSettled, st.Status)
	assert.Equal(t, 3, st.CompletedSteps)
	require.NotNil(t, st.PayerEntryID)
	assert.Equal(t, result.PayerEntryID, *st.PayerEntryID)
	assert.Equal(t, result.MerchantEntryID, *st.MerchantEntryID)
	assert.Equal(t, result.FeeEntryID, *st.FeeEntryID)
	require.NotNil(t, st.FinishedAt)

	entries, err := h.store.Entries().ListByPaymentRef(context.Background(), "PAY-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, testPayer, entries[0].AccountNumber)
	assertDecimal(t, "-200.00", entries[0].Amount)
	assert.Equal(t, testMerchant, entries[1].AccountNumber)
	assertDecimal(t, "196.00", entries[1].Amount)
	assert.Equal(t, testFeeCollector, entries[2].AccountNumber)
	assertDecimal(t, "4.00", entries[2].Amount)

	logs, _, err := h.audit.Query(context.Background(), domain.AuditFilter{Actor: testPayer, Outcome: domain.AuditOutcomeSuccess})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.AuditActionSettle, logs[0].Action)

	h.assertConsistent(t)
}

func TestSettle_FeeBounds(t *testing.T) {
	tests := []struct {
		name         string
		balance      string
		amount       string
		wantFee      string
		wantPayer    string
		wantMerchant string
	}{
		{"minimum fee", "100.00", "10.00", "0.50", "90.00", "9.50"},
		{"maximum fee", "20000.00", "10000.00", "100.00", "10000.00", "9900.00"},
		{"half-up fee", "100.00", "30.25", "0.61", "69.75", "29.64"},
		{"normalized amount", "100.00", "12.5", "0.50", "87.50", "12.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newSettlementHarness(t, domain.FeeModeIncluded, tt.balance)

			result, err := h.settle(context.Background(), "PAY-"+tt.name, tt.amount)
			require.NoError(t, err)
			assertDecimal(t, tt.wantFee, result.Fee)

			payer, merchant, fee := h.balances(t)
			assert.Equal(t, tt.wantPayer, payer)
			assert.Equal(t, tt.wantMerchant, merchant)
			assert.Equal(t, decimal.RequireFromString(tt.wantFee).StringFixed(2), fee)
		})
	}
}

func TestSettle_FeeAddedMode(t *testing.T) {
	h := newSettlementHarness(t, domain.FeeModeAdded, "1000.00")

	result, err := h.settle(context.Background(), "PAY-1", "200.00")
	require.NoError(t, err)
	assert.Equal(t, domain.FeeModeAdded, result.FeeMode)

	payer, merchant, fee := h.balances(t)
	assert.Equal(t, "796.00", payer)
	assert.Equal(t, "200.00", merchant)
	assert.Equal(t, "4.00", fee)
	h.assertConsistent(t)
}

func TestSettle_FeeAddedMode_SufficiencyIncludesFee(t *testing.T) {
	h := newSettlementHarness(t, domain.FeeModeAdded, "200.00")

	_, err := h.settle(context.Background(), "PAY-1", "200.00")
	assertAppError(t, err, "LED_004")

	payer, merchant, fee := h.balances(t)
	assert.Equal(t, "200.00", payer)
	assert.Equal(t, "0.00", merchant)
	assert.Equal(t, "0.00", fee)
}

func TestSettle_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		payer      string
		credential string
		amount     string
		code       string
	}{
		{"insufficient funds", testPayer, testPayerPIN, "1000.01", "LED_004"},
		{"wrong credential", testPayer, "0000", "10.00", "LED_002"},
		{"empty credential", testPayer, "", "10.00", "LED_002"},
		{"unknown payer", "ACC-9999", testPayerPIN, "10.00", "LED_001"},
		{"non-numeric amount", testPayer, testPayerPIN, "ten", "LED_003"},
		{"zero amount", testPayer, testPayerPIN, "0", "LED_003"},
		{"negative amount", testPayer, testPayerPIN, "-5.00", "LED_003"},
		{"sub-cent amount", testPayer, testPayerPIN, "10.001", "LED_003"},
		{"amount does not cover fee", testPayer, testPayerPIN, "0.50", "LED_003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newSettlementHarness(t, domain.FeeModeIncluded, "1000.00")

			_, err := h.svc.Settle(context.Background(), ports.SettleRequest{
				PaymentRef:         "PAY-REJ",
				PayerAccountNumber: tt.payer,
				PayerCredential:    tt.credential,
				Amount:             tt.amount,
			})
			assertAppError(t, err, tt.code)

			payer, merchant, fee := h.balances(t)
			assert.Equal(t, "1000.00", payer)
			assert.Equal(t, "0.00", merchant)
			assert.Equal(t, "0.00", fee)

			st := h.status(t, "PAY-REJ")
			assert.Equal(t, domain.SettlementStatusRejected, st.Status)
			assert.Equal(t, string(apperror.KindOf(err)), st.FailureKind)
			assert.Zero(t, st.CompletedSteps)

			entries, _ := h.store.Entries().ListByPaymentRef(context.Background(), "PAY-REJ")
			assert.Empty(t, entries)
		})
	}
}

func TestSettle_RequiresRefAndPayer(t *testing.T) {
	h := newSettlementHarness(t, domain.FeeModeIncluded, "1000.00")

	_, err := h.svc.Settle(context.Background(), ports.SettleRequest{PayerAccountNumber: testPayer, Amount: "1"})
	assertAppError(t, err, "VAL_001")
	_, err = h.svc.Settle(context.Background(), ports.SettleRequest{PaymentRef: "PAY-1", Amount: "1"})
	assertAppError(t, err, "VAL_001")
}

func TestSettle_MissingCounterparty(t *testing.T) {
	h := newSettlementHarness(t, domain.FeeModeIncluded, "1000.00")
	require.NoError(t, h.store.Accounts().SetActive(context.Background(), testFeeCollector, false))

	_, err := h.settle(context.Background(), "PAY-1", "200.00")
	assertAppError(t, err, "LED_001")

	payer, _, _ := h.balances(t)
	assert.Equal(t, "1000.00", payer)
	assert.Equal(t, domain.SettlementStatusRejected, h.status(t, "PAY-1").Status)
}

func TestSettle_PayerCannotBeCounterparty(t *testing.T) {
	h := newSettlementHarness(t, domain.FeeModeIncluded, "1000.00")
	h.cfg.MerchantAccount = testPayer
	h.cfg.FeeCollectorAccount = testFeeCollector
	h.rebuild(t)

	_, err := h.settle(context.Background(), "PAY-1", "200.00")
	assertAppError(t, err, "VAL_001")
	payer, _, _ := h.balances(t)
	assert.Equal(t, "1000.00", payer)
}

func TestSettle_ReplayReturnsOriginalResult(t *testing.T) {
	h := newSettlementHarness(t, domain.FeeModeIncluded, "1000.00")

	first, err := h.settle(context.Background(), "PAY-1", "200.00")
	require.NoError(t, err)

	second, err := h.settle(context.Background(), "PAY-1", "200.00")
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.PayerEntryID, second.PayerEntryID)
	assert.Equal(t, first.MerchantEntryID, second.MerchantEntryID)
	assert.Equal(t, first.FeeEntryID, second.FeeEntryID)
	assertDecimal(t, "800.00", second.PayerBalance)
	assertDecimal(t, "196.00", second.MerchantBalance)
	assertDecimal(t, "4.00", second.FeeCollectorBalance)

	// Money moved once.
	payer, merchant, fee := h.balances(t)
	assert.Equal(t, "800.00", payer)
	assert.Equal(t, "196.00", merchant)
	assert.Equal(t, "4.00", fee)
}

func TestSettle_DuplicateRefFromOtherCaller(t *testing.T) {
	h := newSettlementHarness(t, domain.FeeModeIncluded, "1000.00")
	pin2, err := h.hasher.Hash("1111")
	require.NoError(t, err)
	putAccount(t, h.store, "ACC-2002", domain.AccountRolePayer, "500.00", pin2)

	_, err = h.settle(context.Background(), "PAY-1", "200.00")
	require.NoError(t, err)

	// Another payer reusing the ref.
	_, err = h.svc.Settle(context.Background(), ports.SettleRequest{
		PaymentRef: "PAY-1", PayerAccountNumber: "ACC-2002", PayerCredential: "1111", Amount: "200.00",
	})
	assertAppError(t, err, "LED_008")

	// Same payer, wrong credential: no balances leak.
	_, err = h.svc.Settle(context.Background(), ports.SettleRequest{
		PaymentRef: "PAY-1", PayerAccountNumber: testPayer, PayerCredential: "bad", Amount: "200.00",
	})
	assertAppError(t, err, "LED_008")

	assert.Equal(t, "500.00", balanceOf(t, h.store, "ACC-2002"))
	assert.Equal(t, "800.00", balanceOf(t, h.store, testPayer))
}

func TestSettle_RejectedRefCannotBeRetried(t *testing.T) {
	h := newSettlementHarness(t, domain.FeeModeIncluded, "100.00")

	_, err := h.settle(context.Background(), "PAY-1", "200.00")
	assertAppError(t, err, "LED_004")

	_, err = h.settle(context.Background(), "PAY-1", "50.00")
	assertAppError(t, err, "LED_008")
	assert.Equal(t, "100.00", balanceOf(t, h.store, testPayer))
}

func TestSettle_CacheFastPath(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := newSettlementHarness(t, domain.FeeModeIncluded, "1000.00")
	cache := mocks.NewMockSettlementCache(ctrl)
	h.deps.Cache = cache
	h.rebuild(t)

	var stored *domain.SettlementResult
	cache.EXPECT().Get(gomock.Any(), "PAY-1").Return(nil, nil)
	cache.EXPECT().Set(gomock.Any(), gomock.Any(), time.Hour).DoAndReturn(
		func(_ context.Context, r *domain.SettlementResult, _ time.Duration) error {
			stored = r
			return nil
		},
	)

	first, err := h.settle(context.Background(), "PAY-1", "200.00")
	require.NoError(t, err)
	require.NotNil(t, stored)

	cache.EXPECT().Get(gomock.Any(), "PAY-1").DoAndReturn(
		func(context.Context, string) (*domain.SettlementResult, error) { return stored, nil },
	)
	second, err := h.settle(context.Background(), "PAY-1", "200.00")
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.False(t, stored.Replayed, "cached value must not be mutated")
	assert.Equal(t, first.PayerEntryID, second.PayerEntryID)
}

func TestSettle_CacheAndEventFailuresAreNotFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := newSettlementHarness(t, domain.FeeModeIncluded, "1000.00")
	cache := mocks.NewMockSettlementCache(ctrl)
	events := mocks.NewMockEventPublisher(ctrl)
	h.deps.Cache = cache
	h.deps.Events = events
	h.rebuild(t)

	cache.EXPECT().Get(gomock.Any(), "PAY-1").Return(nil, errors.New("redis down"))
	cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("redis down"))
	events.EXPECT().PublishSettlementCompleted(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, r *domain.SettlementResult) error {
			assert.Equal(t, "PAY-1", r.PaymentRef)
			return errors.New("broker unavailable")
		},
	)

	result, err := h.settle(context.Background(), "PAY-1", "200.00")
	require.NoError(t, err)
	assertDecimal(t, "800.00", result.PayerBalance)
	assert.Equal(t, domain.SettlementStatusSettled, h.status(t, "PAY-1").Status)
}

// mutation builds a ledger result for mocked ledger steps.
func mutation(account, id, balance string) *ports.Mutation {
	return &ports.Mutation{
		AccountNumber: account,
		NewBalance:    dec(balance),
		Entry:         &domain.TransactionEntry{ID: id, AccountNumber: account},
	}
}

func TestSettle_PartialFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := newSettlementHarness(t, domain.FeeModeIncluded, "1000.00")
	ledger := mocks.NewMockLedgerService(ctrl)
	h.deps.Ledger = ledger
	h.rebuild(t)

	creditErr := apperror.ErrTimeout(context.DeadlineExceeded)
	gomock.InOrder(
		ledger.EXPECT().Debit(gomock.Any(), testPayer, gomock.Any(), "PAY-1", gomock.Any()).DoAndReturn(
			func(_ context.Context, _ string, amount decimal.Decimal, _, _ string) (*ports.Mutation, error) {
				assertDecimal(t, "200.00", amount)
				return mutation(testPayer, "txe_payer", "800.00"), nil
			},
		),
		ledger.EXPECT().Credit(gomock.Any(), testMerchant, gomock.Any(), "PAY-1", gomock.Any()).Return(nil, creditErr),
	)

	_, err := h.settle(context.Background(), "PAY-1", "200.00")
	assertAppError(t, err, "LED_006")
	assert.ErrorIs(t, err, creditErr)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	pf, ok := appErr.Detail.(domain.PartialFailure)
	require.True(t, ok)
	assert.Equal(t, "PAY-1", pf.PaymentRef)
	assert.Equal(t, []domain.SettlementStep{domain.StepPayerDebit}, pf.CompletedSteps)
	assert.Equal(t, []string{"txe_payer"}, pf.EntryIDs)
	assert.Equal(t, domain.StepMerchantCredit, pf.FailedStep)

	st := h.status(t, "PAY-1")
	assert.Equal(t, domain.SettlementStatusPartial, st.Status)
	assert.Equal(t, 1, st.CompletedSteps)
	require.NotNil(t, st.PayerEntryID)
	assert.Equal(t, "txe_payer", *st.PayerEntryID)
	assert.Nil(t, st.MerchantEntryID)

	// A partial ref is never replayed or retried.
	_, err = h.settle(context.Background(), "PAY-1", "200.00")
	assertAppError(t, err, "LED_008")
}

func TestSettle_FirstStepFailureRejects(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := newSettlementHarness(t, domain.FeeModeIncluded, "1000.00")
	ledger := mocks.NewMockLedgerService(ctrl)
	h.deps.Ledger = ledger
	h.rebuild(t)

	// Balance drained between the pre-check and the locked debit.
	ledger.EXPECT().Debit(gomock.Any(), testPayer, gomock.Any(), "PAY-1", gomock.Any()).
		Return(nil, apperror.ErrInsufficientFunds())

	_, err := h.settle(context.Background(), "PAY-1", "200.00")
	assertAppError(t, err, "LED_004")
	assert.Equal(t, domain.SettlementStatusRejected, h.status(t, "PAY-1").Status)
}

// cancellingFees cancels the caller's context while the fee is computed.
type cancellingFees struct {
	ports.FeeService
	cancel context.CancelFunc
}

func (f cancellingFees) CalculateFee(amount decimal.Decimal) decimal.Decimal {
	f.cancel()
	return f.FeeService.CalculateFee(amount)
}

func TestSettle_CancelledBeforeMutation(t *testing.T) {
	h := newSettlementHarness(t, domain.FeeModeIncluded, "1000.00")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.deps.Fees = cancellingFees{FeeService: h.fees, cancel: cancel}
	h.rebuild(t)

	_, err := h.settle(ctx, "PAY-1", "200.00")
	assertAppError(t, err, "LED_010")

	payer, merchant, fee := h.balances(t)
	assert.Equal(t, "1000.00", payer)
	assert.Equal(t, "0.00", merchant)
	assert.Equal(t, "0.00", fee)
	assert.Equal(t, domain.SettlementStatusRejected, h.status(t, "PAY-1").Status)
}

func TestSettle_AlreadyCancelledContext(t *testing.T) {
	h := newSettlementHarness(t, domain.FeeModeIncluded, "1000.00")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.settle(ctx, "PAY-1", "200.00")
	assertAppError(t, err, "LED_010")
	payer, _, _ := h.balances(t)
	assert.Equal(t, "1000.00", payer)
}

func TestSettle_CancelAfterDebitRunsToCompletion(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := newSettlementHarness(t, domain.FeeModeIncluded, "1000.00")
	ledger := mocks.NewMockLedgerService(ctrl)
	h.deps.Ledger = ledger
	h.rebuild(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ledger.EXPECT().Debit(gomock.Any(), testPayer, gomock.Any(), "PAY-1", gomock.Any()).DoAndReturn(
		func(context.Context, string, decimal.Decimal, string, string) (*ports.Mutation, error) {
			cancel()
			return mutation(testPayer, "txe_p", "800.00"), nil
		},
	)
	ledger.EXPECT().Credit(gomock.Any(), gomock.Any(), gomock.Any(), "PAY-1", gomock.Any()).DoAndReturn(
		func(stepCtx context.Context, account string, _ decimal.Decimal, _, _ string) (*ports.Mutation, error) {
			assert.NoError(t, stepCtx.Err(), "steps after the debit must not observe cancellation")
			return mutation(account, "txe_"+account, "1.00"), nil
		},
	).Times(2)

	result, err := h.settle(ctx, "PAY-1", "200.00")
	require.NoError(t, err)
	assert.Equal(t, "txe_p", result.PayerEntryID)
	assert.Equal(t, domain.SettlementStatusSettled, h.status(t, "PAY-1").Status)
}

func TestSettle_ConcurrentSettlementsConserveMoney(t *testing.T) {
	h := newSettlementHarness(t, domain.FeeModeIncluded, "1000.00")

	const workers = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		settled int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.settle(context.Background(), fmt.Sprintf("PAY-%02d", i), "100.00")
			if err == nil {
				mu.Lock()
				settled++
				mu.Unlock()
				return
			}
			assert.True(t, apperror.Is(err, apperror.KindInsufficientFunds), "unexpected error: %v", err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, settled)
	payer, merchant, fee := h.balances(t)
	assert.Equal(t, "0.00", payer)
	assert.Equal(t, "980.00", merchant)
	assert.Equal(t, "20.00", fee)
	h.assertConsistent(t)
}

func TestSettle_ConcurrentSameRefMovesMoneyOnce(t *testing.T) {
	h := newSettlementHarness(t, domain.FeeModeIncluded, "1000.00")

	const workers = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		fresh  int
		others int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := h.settle(context.Background(), "PAY-SAME", "200.00")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && !result.Replayed:
				fresh++
			case err == nil || apperror.Is(err, apperror.KindDuplicateSettlement):
				others++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fresh)
	assert.Equal(t, workers-1, others)
	payer, merchant, fee := h.balances(t)
	assert.Equal(t, "800.00", payer)
	assert.Equal(t, "196.00", merchant)
	assert.Equal(t, "4.00", fee)
}

func TestGetSettlement(t *testing.T) {
	h := newSettlementHarness(t, domain.FeeModeIncluded, "1000.00")

	_, err := h.svc.GetSettlement(context.Background(), "PAY-404")
	assertAppError(t, err, "LED_011")

	_, err = h.settle(context.Background(), "PAY-1", "200.00")
	require.NoError(t, err)
	st, err := h.svc.GetSettlement(context.Background(), " PAY-1 ")
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementStatusSettled, st.Status)
	assertDecimal(t, "4.00", st.Fee)
}

func TestNewSettlementService_Validation(t *testing.T) {
	_, err := NewSettlementService(SettlementConfig{
		MerchantAccount: testMerchant, FeeCollectorAccount: testFeeCollector, FeeMode: "both",
	}, SettlementDeps{}, newTestLogger())
	assert.Error(t, err)

	_, err = NewSettlementService(SettlementConfig{FeeMode: domain.FeeModeIncluded}, SettlementDeps{}, newTestLogger())
	assert.Error(t, err)
}
