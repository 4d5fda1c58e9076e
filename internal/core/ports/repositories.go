package ports

import (
	"context"
	"errors"

	"settlement-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// ErrDuplicate is returned by Create methods when the natural key already exists.
var ErrDuplicate = errors.New("duplicate key")

// Tx is one storage transaction. pgx.Tx satisfies it; the in-memory store
// provides its own. Repositories accepting a Tx run inside that transaction.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DBTransactor provides storage transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (Tx, error)
}

// AccountRepository defines persistence operations for accounts.
// Lookups return (nil, nil) when the account does not exist.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByNumber(ctx context.Context, number string) (*domain.Account, error)
	// GetByNumberForUpdate locks the account row until tx ends.
	GetByNumberForUpdate(ctx context.Context, tx Tx, number string) (*domain.Account, error)
	UpdateBalance(ctx context.Context, tx Tx, number string, balance decimal.Decimal) error
	SetActive(ctx context.Context, number string, active bool) error
}

// EntryRepository is the append-only store of transaction entries.
// Entries are never updated or deleted.
type EntryRepository interface {
	Create(ctx context.Context, tx Tx, entry *domain.TransactionEntry) error
	// ListByAccount returns entries newest first with the total count.
	ListByAccount(ctx context.Context, number string, page, pageSize int) ([]domain.TransactionEntry, int64, error)
	// LatestByAccount returns (nil, nil) when the account has no entries.
	LatestByAccount(ctx context.Context, number string) (*domain.TransactionEntry, error)
	ListByPaymentRef(ctx context.Context, paymentRef string) ([]domain.TransactionEntry, error)
}

// SettlementRepository persists settlement attempts keyed by payment reference.
type SettlementRepository interface {
	// Create returns ErrDuplicate if the payment reference was already used.
	Create(ctx context.Context, settlement *domain.Settlement) error
	GetByRef(ctx context.Context, paymentRef string) (*domain.Settlement, error)
	Update(ctx context.Context, settlement *domain.Settlement) error
}

// FeeScheduleRepository stores the single active fee schedule.
type FeeScheduleRepository interface {
	// Get returns (nil, nil) when no schedule has been stored yet.
	Get(ctx context.Context) (*domain.FeeSchedule, error)
	Save(ctx context.Context, schedule *domain.FeeSchedule) error
}

// AuditRepository is the append-only audit trail.
type AuditRepository interface {
	// Create assigns the sequence id.
	Create(ctx context.Context, entry *domain.AuditEntry) error
	List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, int64, error)
}
