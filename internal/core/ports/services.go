package ports

import (
	"context"
	"time"

	"settlement-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// HashService handles credential hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles admin JWT operations.
type TokenService interface {
	Generate(subject string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Subject string
}

// SettlementCache is the Redis-layer cache of settled results (fast path for replays).
type SettlementCache interface {
	Get(ctx context.Context, paymentRef string) (*domain.SettlementResult, error) // nil on miss
	Set(ctx context.Context, result *domain.SettlementResult, ttl time.Duration) error
}

// EventPublisher hands settlement outcomes to downstream consumers (notifications).
type EventPublisher interface {
	PublishSettlementCompleted(ctx context.Context, result *domain.SettlementResult) error
}

// EventSigner signs outbound event payloads for consumers holding the shared key.
type EventSigner interface {
	Sign(payload []byte) string
}

// RateLimiter is the fixed-window counter store behind the HTTP rate limit middleware.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult is the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// --- Service Ports (Business Logic) ---

// FeeService computes service fees from the active schedule.
type FeeService interface {
	CalculateFee(amount decimal.Decimal) decimal.Decimal
	CalculateFeeString(raw string) decimal.Decimal
	ValidateFeeRange(fee decimal.Decimal) bool
	UpdateFeeRules(ctx context.Context, rate, minFee, maxFee decimal.Decimal, actor string) (*domain.FeeSchedule, error)
	Schedule() domain.FeeSchedule
}

// LedgerService applies single-account balance mutations, each with its entry.
type LedgerService interface {
	Debit(ctx context.Context, accountNumber string, amount decimal.Decimal, paymentRef, description string) (*Mutation, error)
	Credit(ctx context.Context, accountNumber string, amount decimal.Decimal, paymentRef, description string) (*Mutation, error)
}

// Mutation is the committed result of one ledger step.
type Mutation struct {
	AccountNumber string
	NewBalance    decimal.Decimal
	Entry         *domain.TransactionEntry
}

// TransactionRecorder appends entries inside the mutating storage transaction.
type TransactionRecorder interface {
	Record(ctx context.Context, tx Tx, account *domain.Account, signedAmount, runningBalance decimal.Decimal,
		description string, status domain.EntryStatus, paymentRef string) (*domain.TransactionEntry, error)
}

// SettlementService settles payments across payer, merchant and fee collector.
type SettlementService interface {
	Settle(ctx context.Context, req SettleRequest) (*domain.SettlementResult, error)
	GetSettlement(ctx context.Context, paymentRef string) (*domain.Settlement, error)
}

// SettleRequest holds the raw boundary input of a settlement.
type SettleRequest struct {
	PaymentRef         string
	PayerAccountNumber string
	PayerCredential    string
	Amount             string
}

// AuditService records and queries the audit trail.
type AuditService interface {
	Append(ctx context.Context, actor, action string, outcome domain.AuditOutcome, detail string)
	Query(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, int64, error)
}

// AccountService exposes read and administrative account operations.
type AccountService interface {
	GetBalance(ctx context.Context, number string) (decimal.Decimal, error)
	ListEntries(ctx context.Context, number string, page, pageSize int) ([]domain.TransactionEntry, int64, error)
	VerifyAccount(ctx context.Context, number, credential string) (*domain.Account, error)
	OpenAccount(ctx context.Context, req OpenAccountRequest) (*domain.Account, error)
	DeactivateAccount(ctx context.Context, number, actor string) error
	CheckConsistency(ctx context.Context, number string) (*domain.ConsistencyReport, error)
}

// OpenAccountRequest holds input for account provisioning.
type OpenAccountRequest struct {
	Number         string
	HolderName     string
	Role           domain.AccountRole
	Credential     string // Plaintext, hashed before storage
	OpeningBalance decimal.Decimal
	Actor          string
}
