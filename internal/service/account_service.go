package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"settlement-ledger/internal/core/domain"
	"settlement-ledger/internal/core/ports"
	"settlement-ledger/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var accountNumberPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{2,31}$`)

// AccountServiceImpl implements ports.AccountService.
type AccountServiceImpl struct {
	transactor    ports.DBTransactor
	accounts      ports.AccountRepository
	entries       ports.EntryRepository
	hasher        ports.HashService
	audit         ports.AuditService
	lookupTimeout time.Duration
	log           zerolog.Logger
}

// NewAccountService creates a new account service. Storage reads are bounded
// by lookupTimeout; zero leaves them bounded only by the caller's context.
func NewAccountService(
	transactor ports.DBTransactor,
	accounts ports.AccountRepository,
	entries ports.EntryRepository,
	hasher ports.HashService,
	audit ports.AuditService,
	lookupTimeout time.Duration,
	log zerolog.Logger,
) *AccountServiceImpl {
	if audit == nil {
		audit = NewAuditService(nil, log)
	}
	return &AccountServiceImpl{
		transactor:    transactor,
		accounts:      accounts,
		entries:       entries,
		hasher:        hasher,
		audit:         audit,
		lookupTimeout: lookupTimeout,
		log:           log,
	}
}

// GetBalance returns the current balance. Read-only.
func (s *AccountServiceImpl) GetBalance(ctx context.Context, number string) (decimal.Decimal, error) {
	ctx, cancel := s.lookupContext(ctx)
	defer cancel()

	account, err := s.get(ctx, number)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// ListEntries returns the account's entries, newest first.
func (s *AccountServiceImpl) ListEntries(ctx context.Context, number string, page, pageSize int) ([]domain.TransactionEntry, int64, error) {
	ctx, cancel := s.lookupContext(ctx)
	defer cancel()

	if _, err := s.get(ctx, number); err != nil {
		return nil, 0, err
	}
	page, pageSize = domain.NormalizePage(page, pageSize)

	entries, total, err := s.entries.ListByAccount(ctx, number, page, pageSize)
	if err != nil {
		return nil, 0, storageError(ctx, err)
	}
	return entries, total, nil
}

// VerifyAccount checks the credential of an active account.
func (s *AccountServiceImpl) VerifyAccount(ctx context.Context, number, credential string) (*domain.Account, error) {
	// Only the lookup is bounded; hashing and audit run on the caller's context.
	lookupCtx, cancel := s.lookupContext(ctx)
	account, err := s.accounts.GetByNumber(lookupCtx, number)
	if err != nil {
		err = storageError(lookupCtx, err)
	}
	cancel()
	if err != nil {
		return nil, err
	}
	if account == nil || !account.Active {
		s.audit.Append(ctx, number, domain.AuditActionVerifyAccount, domain.AuditOutcomeFailed, "account not found")
		return nil, apperror.ErrAccountNotFound(number)
	}

	ok, err := s.hasher.Verify(credential, account.CredentialHash)
	if err != nil || !ok {
		s.audit.Append(ctx, number, domain.AuditActionVerifyAccount, domain.AuditOutcomeFailed, "invalid credentials")
		return nil, apperror.ErrInvalidCredentials()
	}

	s.audit.Append(ctx, number, domain.AuditActionVerifyAccount, domain.AuditOutcomeSuccess, "")
	return account, nil
}

// OpenAccount provisions an account with a hashed credential and an opening balance.
// Payer accounts require a credential.
func (s *AccountServiceImpl) OpenAccount(ctx context.Context, req ports.OpenAccountRequest) (*domain.Account, error) {
	number := strings.TrimSpace(req.Number)
	if !accountNumberPattern.MatchString(number) {
		return nil, apperror.Validation("account number must be 3-32 letters, digits, '-' or '_'")
	}
	if strings.TrimSpace(req.HolderName) == "" {
		return nil, apperror.Validation("holder name is required")
	}
	if !req.Role.Valid() {
		return nil, apperror.Validation("role must be PAYER, MERCHANT or FEE_COLLECTOR")
	}
	if req.Role == domain.AccountRolePayer && req.Credential == "" {
		return nil, apperror.Validation("payer accounts require a credential")
	}
	if req.OpeningBalance.IsNegative() || !req.OpeningBalance.Equal(domain.RoundMoney(req.OpeningBalance)) {
		return nil, apperror.ErrInvalidAmount()
	}

	var credentialHash string
	if req.Credential != "" {
		h, err := s.hasher.Hash(req.Credential)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("hashing credential: %w", err))
		}
		credentialHash = h
	}

	now := time.Now().UTC()
	opening := domain.RoundMoney(req.OpeningBalance)
	account := &domain.Account{
		Number:         number,
		HolderName:     strings.TrimSpace(req.HolderName),
		Role:           req.Role,
		Balance:        opening,
		OpeningBalance: opening,
		CredentialHash: credentialHash,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			s.audit.Append(ctx, req.Actor, domain.AuditActionOpenAccount, domain.AuditOutcomeFailed, "number="+number+" exists")
			return nil, apperror.ErrAccountExists()
		}
		return nil, storageError(ctx, err)
	}

	s.log.Info().
		Str("account", number).
		Str("role", string(req.Role)).
		Str("opening_balance", opening.StringFixed(domain.MoneyScale)).
		Msg("account opened")
	s.audit.Append(ctx, req.Actor, domain.AuditActionOpenAccount, domain.AuditOutcomeSuccess,
		fmt.Sprintf("number=%s role=%s opening=%s", number, req.Role, opening.StringFixed(domain.MoneyScale)))
	return account, nil
}

// DeactivateAccount marks the account inactive. Accounts are never deleted.
func (s *AccountServiceImpl) DeactivateAccount(ctx context.Context, number, actor string) error {
	if _, err := s.get(ctx, number); err != nil {
		return err
	}
	if err := s.accounts.SetActive(ctx, number, false); err != nil {
		return storageError(ctx, err)
	}

	s.log.Info().Str("account", number).Str("actor", actor).Msg("account deactivated")
	s.audit.Append(ctx, actor, domain.AuditActionDeactivateAccount, domain.AuditOutcomeSuccess, "number="+number)
	return nil
}

// CheckConsistency compares the balance with the running balance of the most
// recent entry, or with the opening balance when there are no entries.
// Entries are only appended under the account's row lock, so holding that lock
// pins the balance and the entry trail to the same committed state.
func (s *AccountServiceImpl) CheckConsistency(ctx context.Context, number string) (*domain.ConsistencyReport, error) {
	ctx, cancel := s.lookupContext(ctx)
	defer cancel()

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storageError(ctx, err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	account, err := s.accounts.GetByNumberForUpdate(ctx, tx, number)
	if err != nil {
		return nil, storageError(ctx, err)
	}
	if account == nil {
		return nil, apperror.ErrAccountNotFound(number)
	}

	latest, err := s.entries.LatestByAccount(ctx, number)
	if err != nil {
		return nil, storageError(ctx, err)
	}
	_, count, err := s.entries.ListByAccount(ctx, number, 1, 1)
	if err != nil {
		return nil, storageError(ctx, err)
	}

	report := &domain.ConsistencyReport{
		AccountNumber:   number,
		Balance:         account.Balance,
		ExpectedBalance: account.OpeningBalance,
		EntryCount:      count,
	}
	if latest != nil {
		report.ExpectedBalance = latest.RunningBalance
		report.LastEntryID = latest.ID
	}
	report.Consistent = report.Balance.Equal(report.ExpectedBalance)

	if !report.Consistent {
		s.log.Error().
			Str("account", number).
			Str("balance", report.Balance.String()).
			Str("expected", report.ExpectedBalance.String()).
			Msg("account balance does not match its entry trail")
	}
	return report, nil
}

func (s *AccountServiceImpl) lookupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.lookupTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.lookupTimeout)
}

func (s *AccountServiceImpl) get(ctx context.Context, number string) (*domain.Account, error) {
	account, err := s.accounts.GetByNumber(ctx, number)
	if err != nil {
		return nil, storageError(ctx, err)
	}
	if account == nil {
		return nil, apperror.ErrAccountNotFound(number)
	}
	return account, nil
}
