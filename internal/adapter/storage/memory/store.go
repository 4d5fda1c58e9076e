// Package memory is an in-process storage backend implementing the repository
// ports. Account rows are locked with one-slot channels so concurrent ledger
// steps contend exactly like SELECT ... FOR UPDATE; writes made inside a Tx are
// staged and applied on Commit.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"settlement-ledger/internal/core/domain"
	"settlement-ledger/internal/core/ports"

	"github.com/shopspring/decimal"
)

// ErrTxClosed is returned when a committed or rolled back Tx is used again.
var ErrTxClosed = errors.New("memory: tx is closed")

// Store holds all in-memory state.
type Store struct {
	mu          sync.RWMutex
	accounts    map[string]*domain.Account
	rowLocks    map[string]chan struct{}
	entries     []domain.TransactionEntry
	entryIDs    map[string]struct{}
	settlements map[string]*domain.Settlement
	schedule    *domain.FeeSchedule
	audit       []domain.AuditEntry
	auditSeq    int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		accounts:    make(map[string]*domain.Account),
		rowLocks:    make(map[string]chan struct{}),
		entryIDs:    make(map[string]struct{}),
		settlements: make(map[string]*domain.Settlement),
	}
}

// Transactor returns a ports.DBTransactor over the store.
func (s *Store) Transactor() *Transactor { return &Transactor{store: s} }

// Accounts returns the account repository.
func (s *Store) Accounts() *AccountRepo { return &AccountRepo{store: s} }

// Entries returns the transaction entry repository.
func (s *Store) Entries() *EntryRepo { return &EntryRepo{store: s} }

// Settlements returns the settlement repository.
func (s *Store) Settlements() *SettlementRepo { return &SettlementRepo{store: s} }

// FeeSchedules returns the fee schedule repository.
func (s *Store) FeeSchedules() *FeeScheduleRepo { return &FeeScheduleRepo{store: s} }

// Audit returns the audit repository.
func (s *Store) Audit() *AuditRepo { return &AuditRepo{store: s} }

func (s *Store) rowLock(number string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.rowLocks[number]
	if !ok {
		ch = make(chan struct{}, 1)
		s.rowLocks[number] = ch
	}
	return ch
}

// Transactor implements ports.DBTransactor.
type Transactor struct {
	store *Store
}

// Begin starts a new Tx.
func (t *Transactor) Begin(ctx context.Context) (ports.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{
		store:    t.store,
		locked:   make(map[string]chan struct{}),
		balances: make(map[string]decimal.Decimal),
	}, nil
}

// Tx is a unit of work over the store. Like pgx.Tx it is not safe for concurrent use.
type Tx struct {
	store    *Store
	locked   map[string]chan struct{}
	balances map[string]decimal.Decimal
	entries  []domain.TransactionEntry
	closed   bool
}

// Commit applies the staged writes atomically and releases row locks.
// A done ctx aborts the commit, as with a database round trip.
func (t *Tx) Commit(ctx context.Context) error {
	if t.closed {
		return ErrTxClosed
	}
	if err := ctx.Err(); err != nil {
		t.release()
		return fmt.Errorf("commit: %w", err)
	}

	t.store.mu.Lock()
	for _, e := range t.entries {
		if _, dup := t.store.entryIDs[e.ID]; dup {
			t.store.mu.Unlock()
			t.release()
			return fmt.Errorf("commit: entry %s: %w", e.ID, ports.ErrDuplicate)
		}
	}
	now := time.Now().UTC()
	for number, balance := range t.balances {
		if a, ok := t.store.accounts[number]; ok {
			a.Balance = balance
			a.UpdatedAt = now
		}
	}
	for _, e := range t.entries {
		t.store.entries = append(t.store.entries, e)
		t.store.entryIDs[e.ID] = struct{}{}
	}
	t.store.mu.Unlock()

	t.release()
	return nil
}

// Rollback discards staged writes and releases row locks. Rolling back a closed Tx is a no-op.
func (t *Tx) Rollback(_ context.Context) error {
	if t.closed {
		return nil
	}
	t.release()
	return nil
}

func (t *Tx) lock(ctx context.Context, number string) error {
	if _, held := t.locked[number]; held {
		return nil
	}
	ch := t.store.rowLock(number)
	select {
	case ch <- struct{}{}:
		t.locked[number] = ch
		return nil
	case <-ctx.Done():
		return fmt.Errorf("lock account %s: %w", number, ctx.Err())
	}
}

func (t *Tx) release() {
	for number, ch := range t.locked {
		<-ch
		delete(t.locked, number)
	}
	t.balances = nil
	t.entries = nil
	t.closed = true
}

func asTx(tx ports.Tx) (*Tx, error) {
	mt, ok := tx.(*Tx)
	if !ok || mt == nil {
		return nil, fmt.Errorf("memory: foreign transaction %T", tx)
	}
	if mt.closed {
		return nil, ErrTxClosed
	}
	return mt, nil
}

func paginate(total, page, pageSize int) (int, int) {
	page, pageSize = domain.NormalizePage(page, pageSize)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return start, end
}
