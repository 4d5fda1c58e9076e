// Package storage opens the configured persistence backend.
package storage

import (
	"context"
	"fmt"

	"settlement-ledger/config"
	"settlement-ledger/internal/adapter/storage/memory"
	pgStorage "settlement-ledger/internal/adapter/storage/postgres"
	"settlement-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

// Repositories is one backend's set of repositories.
type Repositories struct {
	Driver      string
	Transactor  ports.DBTransactor
	Accounts    ports.AccountRepository
	Entries     ports.EntryRepository
	Settlements ports.SettlementRepository
	FeeSchedule ports.FeeScheduleRepository
	Audit       ports.AuditRepository
	Health      []ports.HealthChecker

	close func()
}

// Close releases the backend.
func (r *Repositories) Close() {
	if r.close != nil {
		r.close()
	}
}

// Open connects the backend named by cfg.Storage.Driver. The postgres schema is
// applied when cfg.Database.Migrate is set.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Repositories, error) {
	switch cfg.Storage.Driver {
	case "memory":
		store := memory.NewStore()
		log.Warn().Msg("using in-memory storage, balances are lost on exit")
		return &Repositories{
			Driver:      "memory",
			Transactor:  store.Transactor(),
			Accounts:    store.Accounts(),
			Entries:     store.Entries(),
			Settlements: store.Settlements(),
			FeeSchedule: store.FeeSchedules(),
			Audit:       store.Audit(),
		}, nil

	case "postgres":
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		if cfg.Database.Migrate {
			if err := pgStorage.Migrate(ctx, pool, log); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return &Repositories{
			Driver:      "postgres",
			Transactor:  pgStorage.NewTransactor(pool),
			Accounts:    pgStorage.NewAccountRepo(pool),
			Entries:     pgStorage.NewEntryRepo(pool),
			Settlements: pgStorage.NewSettlementRepo(pool),
			FeeSchedule: pgStorage.NewFeeScheduleRepo(pool),
			Audit:       pgStorage.NewAuditRepo(pool),
			Health:      []ports.HealthChecker{pgStorage.NewHealthCheck(pool)},
			close:       pool.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
