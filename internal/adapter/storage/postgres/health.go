package postgres

import (
	"context"
	"fmt"
	"time"
)

// ledgerTables must all exist for the ledger to serve traffic.
var ledgerTables = []string{"accounts", "transaction_entries", "settlements", "fee_schedules", "audit_logs"}

const schemaProbe = `SELECT count(*) FROM pg_tables WHERE schemaname = current_schema() AND tablename = ANY($1)`

// HealthCheck implements ports.HealthChecker. Reachability alone is not enough:
// a database without the ledger tables reports unhealthy.
type HealthCheck struct {
	pool    Pool
	timeout time.Duration
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool, timeout: 2 * time.Second}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var n int
	if err := h.pool.QueryRow(ctx, schemaProbe, ledgerTables).Scan(&n); err != nil {
		return fmt.Errorf("postgres probe: %w", err)
	}
	if n < len(ledgerTables) {
		return fmt.Errorf("ledger schema incomplete: %d of %d tables present", n, len(ledgerTables))
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "postgresql"
}
