package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"settlement-ledger/internal/core/domain"
	"settlement-ledger/internal/core/ports"
	"settlement-ledger/pkg/apperror"
	"settlement-ledger/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SettlementConfig is the deployment policy injected into the engine.
type SettlementConfig struct {
	MerchantAccount     string
	FeeCollectorAccount string
	FeeMode             domain.FeeMode
	LookupTimeout       time.Duration
	CacheTTL            time.Duration
}

// SettlementDeps holds the collaborators of the settlement engine.
type SettlementDeps struct {
	Accounts    ports.AccountRepository
	Settlements ports.SettlementRepository
	Entries     ports.EntryRepository
	Ledger      ports.LedgerService
	Fees        ports.FeeService
	Hasher      ports.HashService
	Audit       ports.AuditService
	Cache       ports.SettlementCache // nil = no result cache
	Events      ports.EventPublisher  // nil = no events
}

// SettlementServiceImpl implements ports.SettlementService.
type SettlementServiceImpl struct {
	cfg  SettlementConfig
	deps SettlementDeps
	log  zerolog.Logger
	now  func() time.Time
}

// NewSettlementService creates the settlement engine.
func NewSettlementService(cfg SettlementConfig, deps SettlementDeps, log zerolog.Logger) (*SettlementServiceImpl, error) {
	if !cfg.FeeMode.Valid() {
		return nil, fmt.Errorf("unknown fee mode %q", cfg.FeeMode)
	}
	if cfg.MerchantAccount == "" || cfg.FeeCollectorAccount == "" {
		return nil, fmt.Errorf("merchant and fee collector accounts are required")
	}
	if deps.Audit == nil {
		deps.Audit = NewAuditService(nil, log)
	}
	if cfg.FeeMode == domain.FeeModeAdded {
		log.Warn().Msg("settlements use the legacy fee-added mode")
	}
	return &SettlementServiceImpl{
		cfg:  cfg,
		deps: deps,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// settlementStep is one of the three ordered ledger mutations.
type settlementStep struct {
	name        domain.SettlementStep
	account     string
	amount      decimal.Decimal
	debit       bool
	description string
}

// Settle processes one payment:
//
//	duplicate check -> verify payer -> resolve counterparties -> normalize amount
//	-> fee -> sufficiency -> payer debit, merchant credit, fee credit -> finalize
//
// Before the first mutation any failure, including cancellation of ctx, rejects
// the settlement with no balance change. Once the payer debit has committed the
// remaining steps run to completion regardless of ctx; a later failure leaves
// the settlement PARTIAL and is reported as PartialSettlementFailure. There is
// no automatic compensation.
func (s *SettlementServiceImpl) Settle(ctx context.Context, req ports.SettleRequest) (*domain.SettlementResult, error) {
	ref := strings.TrimSpace(req.PaymentRef)
	payerNumber := strings.TrimSpace(req.PayerAccountNumber)
	if ref == "" || payerNumber == "" {
		return nil, apperror.Validation("payment_ref and payer_account_number are required")
	}

	// 0. Duplicate check: settled refs replay, anything else is a duplicate.
	if result, err := s.checkDuplicate(ctx, ref, req); result != nil || err != nil {
		return result, err
	}

	st := &domain.Settlement{
		PaymentRef:          ref,
		PayerAccount:        payerNumber,
		MerchantAccount:     s.cfg.MerchantAccount,
		FeeCollectorAccount: s.cfg.FeeCollectorAccount,
		Amount:              decimal.Zero,
		Fee:                 decimal.Zero,
		FeeMode:             s.cfg.FeeMode,
		Status:              domain.SettlementStatusReceived,
		CreatedAt:           s.now(),
	}
	if err := s.deps.Settlements.Create(ctx, st); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			// Lost a race with a concurrent request for the same ref.
			if result, dupErr := s.checkDuplicate(ctx, ref, req); result != nil || dupErr != nil {
				return result, dupErr
			}
			return nil, s.auditDuplicate(ctx, ref, payerNumber)
		}
		err = storageError(ctx, err)
		s.deps.Audit.Append(ctx, payerNumber, domain.AuditActionSettle, domain.AuditOutcomeFailed,
			fmt.Sprintf("ref=%s kind=%s", ref, apperror.KindOf(err)))
		return nil, err
	}

	// 1. Verify payer.
	payer, err := s.verifyPayer(ctx, payerNumber, req.PayerCredential)
	if err != nil {
		return nil, s.reject(ctx, st, err)
	}
	if payer.Number == s.cfg.MerchantAccount || payer.Number == s.cfg.FeeCollectorAccount {
		return nil, s.reject(ctx, st, apperror.Validation("payer cannot be a settlement counterparty"))
	}
	if err := s.advance(ctx, st, domain.SettlementStatusVerified); err != nil {
		return nil, s.reject(ctx, st, err)
	}

	// 2. Resolve counterparties. Missing accounts are a hard error, never provisioned here.
	for _, number := range []string{s.cfg.MerchantAccount, s.cfg.FeeCollectorAccount} {
		if _, err := s.lookupActive(ctx, number); err != nil {
			return nil, s.reject(ctx, st, err)
		}
	}

	// 3. Normalize amount.
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		return nil, s.reject(ctx, st, apperror.ErrInvalidAmount())
	}
	st.Amount = amount

	// 4. Compute fee and the three-way split.
	fee := s.deps.Fees.CalculateFee(amount)
	split := s.cfg.FeeMode.SplitFor(amount, fee)
	st.Fee = fee
	if !split.MerchantCredit.IsPositive() {
		// The merchant credit would be zero or negative, so the amount cannot cover the fee.
		return nil, s.reject(ctx, st, apperror.ErrInvalidAmount())
	}
	if err := s.advance(ctx, st, domain.SettlementStatusFeeComputed); err != nil {
		return nil, s.reject(ctx, st, err)
	}

	// 5. Sufficiency, re-checked under the row lock by the debit itself.
	if !payer.CanDebit(split.PayerDebit) {
		return nil, s.reject(ctx, st, apperror.ErrInsufficientFunds())
	}

	// Last point at which cancellation is honoured.
	if err := ctx.Err(); err != nil {
		return nil, s.reject(ctx, st, apperror.ErrCancelled(err))
	}

	// 6. Apply the mutations in fixed order on a context detached from the caller.
	steps := []settlementStep{
		{domain.StepPayerDebit, payer.Number, split.PayerDebit, true,
			fmt.Sprintf("Payment %s to merchant %s", ref, s.cfg.MerchantAccount)},
		{domain.StepMerchantCredit, s.cfg.MerchantAccount, split.MerchantCredit, false,
			fmt.Sprintf("Payment %s received from %s", ref, payer.Number)},
		{domain.StepFeeCollectorCredit, s.cfg.FeeCollectorAccount, split.FeeCollectorCredit, false,
			fmt.Sprintf("Service fee for payment %s", ref)},
	}

	detached := context.WithoutCancel(ctx)
	mutations := make([]*ports.Mutation, 0, len(steps))
	for i, step := range steps {
		m, err := s.applyStep(detached, ref, step)
		if err != nil {
			if i == 0 {
				// Nothing committed, e.g. the balance was drained by a concurrent settlement.
				return nil, s.reject(detached, st, err)
			}
			return nil, s.partial(detached, st, steps, mutations, err)
		}
		mutations = append(mutations, m)
		s.recordStep(st, step.name, m.Entry.ID)
	}

	// 7. Finalize.
	return s.finalize(detached, st, mutations), nil
}

// GetSettlement returns the persisted record for paymentRef.
func (s *SettlementServiceImpl) GetSettlement(ctx context.Context, paymentRef string) (*domain.Settlement, error) {
	lookupCtx, cancel := s.lookupContext(ctx)
	defer cancel()

	st, err := s.deps.Settlements.GetByRef(lookupCtx, strings.TrimSpace(paymentRef))
	if err != nil {
		return nil, storageError(lookupCtx, err)
	}
	if st == nil {
		return nil, apperror.ErrSettlementNotFound(paymentRef)
	}
	return st, nil
}

// checkDuplicate returns (nil, nil) for an unused ref. A ref that settled for the
// same, correctly authenticated payer replays the original result.
func (s *SettlementServiceImpl) checkDuplicate(ctx context.Context, ref string, req ports.SettleRequest) (*domain.SettlementResult, error) {
	payerNumber := strings.TrimSpace(req.PayerAccountNumber)

	// Redis fast path.
	if s.deps.Cache != nil {
		cached, err := s.deps.Cache.Get(ctx, ref)
		if err != nil {
			s.log.Warn().Err(err).Str("payment_ref", ref).Msg("settlement cache read failed, falling back to database")
		} else if cached != nil {
			return s.replay(ctx, cached, payerNumber, req.PayerCredential)
		}
	}

	lookupCtx, cancel := s.lookupContext(ctx)
	defer cancel()

	existing, err := s.deps.Settlements.GetByRef(lookupCtx, ref)
	if err != nil {
		return nil, storageError(lookupCtx, err)
	}
	if existing == nil {
		return nil, nil
	}
	if existing.Status != domain.SettlementStatusSettled {
		return nil, s.auditDuplicate(ctx, ref, payerNumber)
	}

	result, err := s.rebuildResult(ctx, existing)
	if err != nil {
		return nil, err
	}
	return s.replay(ctx, result, payerNumber, req.PayerCredential)
}

func (s *SettlementServiceImpl) replay(ctx context.Context, prior *domain.SettlementResult, payerNumber, credential string) (*domain.SettlementResult, error) {
	if prior.PayerAccount != payerNumber {
		return nil, s.auditDuplicate(ctx, prior.PaymentRef, payerNumber)
	}
	if _, err := s.verifyPayer(ctx, payerNumber, credential); err != nil {
		return nil, s.auditDuplicate(ctx, prior.PaymentRef, payerNumber)
	}

	out := *prior
	out.Replayed = true
	s.log.Info().Str("payment_ref", prior.PaymentRef).Msg("replaying settled payment")
	s.deps.Audit.Append(ctx, payerNumber, domain.AuditActionSettle, domain.AuditOutcomeSuccess,
		fmt.Sprintf("ref=%s replayed", prior.PaymentRef))
	return &out, nil
}

// rebuildResult reconstructs a settled result from its entries' running balances.
func (s *SettlementServiceImpl) rebuildResult(ctx context.Context, st *domain.Settlement) (*domain.SettlementResult, error) {
	if st.PayerEntryID == nil || st.MerchantEntryID == nil || st.FeeEntryID == nil {
		return nil, apperror.InternalError(fmt.Errorf("settled payment %s is missing entry ids", st.PaymentRef))
	}

	lookupCtx, cancel := s.lookupContext(ctx)
	defer cancel()

	entries, err := s.deps.Entries.ListByPaymentRef(lookupCtx, st.PaymentRef)
	if err != nil {
		return nil, storageError(lookupCtx, err)
	}
	balances := make(map[string]decimal.Decimal, len(entries))
	for _, e := range entries {
		balances[e.ID] = e.RunningBalance
	}

	result := &domain.SettlementResult{
		PaymentRef:          st.PaymentRef,
		PayerAccount:        st.PayerAccount,
		PayerEntryID:        *st.PayerEntryID,
		MerchantEntryID:     *st.MerchantEntryID,
		FeeEntryID:          *st.FeeEntryID,
		Amount:              st.Amount,
		Fee:                 st.Fee,
		FeeMode:             st.FeeMode,
		PayerBalance:        balances[*st.PayerEntryID],
		MerchantBalance:     balances[*st.MerchantEntryID],
		FeeCollectorBalance: balances[*st.FeeEntryID],
	}
	if st.FinishedAt != nil {
		result.SettledAt = *st.FinishedAt
	}
	return result, nil
}

func (s *SettlementServiceImpl) verifyPayer(ctx context.Context, number, credential string) (*domain.Account, error) {
	payer, err := s.lookupActive(ctx, number)
	if err != nil {
		return nil, err
	}
	ok, err := s.deps.Hasher.Verify(credential, payer.CredentialHash)
	if err != nil || !ok {
		return nil, apperror.ErrInvalidCredentials()
	}
	return payer, nil
}

// lookupActive fetches an account within the lookup timeout. Missing and
// inactive accounts are both AccountNotFound.
func (s *SettlementServiceImpl) lookupActive(ctx context.Context, number string) (*domain.Account, error) {
	lookupCtx, cancel := s.lookupContext(ctx)
	defer cancel()

	account, err := s.deps.Accounts.GetByNumber(lookupCtx, number)
	if err != nil {
		return nil, storageError(lookupCtx, err)
	}
	if account == nil || !account.Active {
		return nil, apperror.ErrAccountNotFound(number)
	}
	return account, nil
}

func (s *SettlementServiceImpl) applyStep(ctx context.Context, ref string, step settlementStep) (*ports.Mutation, error) {
	if step.debit {
		return s.deps.Ledger.Debit(ctx, step.account, step.amount, ref, step.description)
	}
	return s.deps.Ledger.Credit(ctx, step.account, step.amount, ref, step.description)
}

func (s *SettlementServiceImpl) recordStep(st *domain.Settlement, step domain.SettlementStep, entryID string) {
	id := entryID
	switch step {
	case domain.StepPayerDebit:
		st.PayerEntryID = &id
	case domain.StepMerchantCredit:
		st.MerchantEntryID = &id
	case domain.StepFeeCollectorCredit:
		st.FeeEntryID = &id
	}
	st.CompletedSteps++
}

// advance moves st to next and persists it. Cancellation of ctx is reported as Cancelled.
func (s *SettlementServiceImpl) advance(ctx context.Context, st *domain.Settlement, next domain.SettlementStatus) error {
	if err := ctx.Err(); err != nil {
		return apperror.ErrCancelled(err)
	}
	if !st.Status.CanTransition(next) {
		return apperror.InternalError(fmt.Errorf("illegal settlement transition %s -> %s", st.Status, next))
	}
	st.Status = next
	if err := s.deps.Settlements.Update(ctx, st); err != nil {
		return storageError(ctx, err)
	}
	return nil
}

// reject terminates st as REJECTED. No balance was changed.
func (s *SettlementServiceImpl) reject(ctx context.Context, st *domain.Settlement, cause error) error {
	finished := s.now()
	st.Status = domain.SettlementStatusRejected
	st.FailureKind = string(apperror.KindOf(cause))
	st.FailureDetail = publicMessage(cause)
	st.FinishedAt = &finished
	s.persistTerminal(ctx, st)

	s.log.Info().
		Str("payment_ref", st.PaymentRef).
		Str("payer", st.PayerAccount).
		Str("kind", st.FailureKind).
		Msg("settlement rejected")
	s.deps.Audit.Append(ctx, st.PayerAccount, domain.AuditActionSettle, domain.AuditOutcomeFailed,
		fmt.Sprintf("ref=%s kind=%s", st.PaymentRef, st.FailureKind))
	return cause
}

// partial terminates st as PARTIAL after at least one committed mutation.
func (s *SettlementServiceImpl) partial(ctx context.Context, st *domain.Settlement, steps []settlementStep, done []*ports.Mutation, cause error) error {
	pf := domain.PartialFailure{
		PaymentRef:     st.PaymentRef,
		CompletedSteps: make([]domain.SettlementStep, 0, len(done)),
		EntryIDs:       make([]string, 0, len(done)),
		FailedStep:     steps[len(done)].name,
	}
	for i, m := range done {
		pf.CompletedSteps = append(pf.CompletedSteps, steps[i].name)
		pf.EntryIDs = append(pf.EntryIDs, m.Entry.ID)
	}

	finished := s.now()
	st.Status = domain.SettlementStatusPartial
	st.FailureKind = string(apperror.KindPartialSettlementFailure)
	st.FailureDetail = fmt.Sprintf("%s failed: %s", pf.FailedStep, publicMessage(cause))
	st.FinishedAt = &finished
	s.persistTerminal(ctx, st)

	s.log.Error().
		Err(cause).
		Str("payment_ref", st.PaymentRef).
		Str("failed_step", string(pf.FailedStep)).
		Strs("completed_steps", stepNames(pf.CompletedSteps)).
		Strs("entry_ids", pf.EntryIDs).
		Msg("settlement partially applied, manual reconciliation required")
	s.deps.Audit.Append(ctx, st.PayerAccount, domain.AuditActionSettle, domain.AuditOutcomeFailed,
		fmt.Sprintf("ref=%s kind=%s failed_step=%s entries=%s",
			st.PaymentRef, st.FailureKind, pf.FailedStep, strings.Join(pf.EntryIDs, ",")))

	return apperror.ErrPartialSettlement(pf, cause)
}

func (s *SettlementServiceImpl) finalize(ctx context.Context, st *domain.Settlement, m []*ports.Mutation) *domain.SettlementResult {
	finished := s.now()
	st.Status = domain.SettlementStatusSettled
	st.FinishedAt = &finished
	s.persistTerminal(ctx, st)

	result := &domain.SettlementResult{
		PaymentRef:          st.PaymentRef,
		PayerAccount:        st.PayerAccount,
		PayerEntryID:        m[0].Entry.ID,
		MerchantEntryID:     m[1].Entry.ID,
		FeeEntryID:          m[2].Entry.ID,
		Amount:              st.Amount,
		Fee:                 st.Fee,
		FeeMode:             st.FeeMode,
		PayerBalance:        m[0].NewBalance,
		MerchantBalance:     m[1].NewBalance,
		FeeCollectorBalance: m[2].NewBalance,
		SettledAt:           finished,
	}

	log := logger.Settlement(s.log, st.PaymentRef)
	if s.deps.Cache != nil {
		if err := s.deps.Cache.Set(ctx, result, s.cfg.CacheTTL); err != nil {
			log.Warn().Err(err).Msg("failed to cache settlement result")
		}
	}
	if s.deps.Events != nil {
		if err := s.deps.Events.PublishSettlementCompleted(ctx, result); err != nil {
			log.Warn().Err(err).Msg("failed to publish settlement event")
		}
	}

	log.Info().
		Str("payer", st.PayerAccount).
		Str("amount", st.Amount.StringFixed(domain.MoneyScale)).
		Str("fee", st.Fee.StringFixed(domain.MoneyScale)).
		Str("fee_mode", string(st.FeeMode)).
		Msg("settlement completed")
	s.deps.Audit.Append(ctx, st.PayerAccount, domain.AuditActionSettle, domain.AuditOutcomeSuccess,
		fmt.Sprintf("ref=%s amount=%s fee=%s", st.PaymentRef,
			st.Amount.StringFixed(domain.MoneyScale), st.Fee.StringFixed(domain.MoneyScale)))

	return result
}

// persistTerminal writes the final state even if the caller's context is gone.
// The outcome has already happened, so a write failure is only logged.
func (s *SettlementServiceImpl) persistTerminal(ctx context.Context, st *domain.Settlement) {
	writeCtx, cancel := s.lookupContext(context.WithoutCancel(ctx))
	defer cancel()

	if err := s.deps.Settlements.Update(writeCtx, st); err != nil {
		s.log.Error().Err(err).
			Str("payment_ref", st.PaymentRef).
			Str("status", string(st.Status)).
			Msg("failed to persist settlement outcome")
	}
}

func (s *SettlementServiceImpl) auditDuplicate(ctx context.Context, ref, payer string) error {
	s.log.Info().Str("payment_ref", ref).Str("payer", payer).Msg("duplicate payment reference")
	s.deps.Audit.Append(ctx, payer, domain.AuditActionSettle, domain.AuditOutcomeFailed,
		fmt.Sprintf("ref=%s kind=%s", ref, apperror.KindDuplicateSettlement))
	return apperror.ErrDuplicateSettlement()
}

func (s *SettlementServiceImpl) lookupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.LookupTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.LookupTimeout)
}

// publicMessage returns the client-safe message of err.
func publicMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}

func stepNames(steps []domain.SettlementStep) []string {
	out := make([]string, len(steps))
	for i, st := range steps {
		out[i] = string(st)
	}
	return out
}
