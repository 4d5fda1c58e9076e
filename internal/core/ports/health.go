package ports

import "context"

// HealthChecker is one dependency reported by GET /health.
type HealthChecker interface {
	Ping(ctx context.Context) error // nil when the dependency can serve ledger traffic
	Name() string
}
