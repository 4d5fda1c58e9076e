package postgres

import (
	"context"
	"fmt"
	"strings"

	"settlement-ledger/internal/core/domain"
)

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	pool Pool
}

// NewAuditRepo creates a PostgreSQL-backed audit repository.
func NewAuditRepo(pool Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Create inserts an entry and sets its sequence id.
func (r *AuditRepo) Create(ctx context.Context, e *domain.AuditEntry) error {
	query := `INSERT INTO audit_logs (actor, action, outcome, detail, created_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`

	if err := r.pool.QueryRow(ctx, query, e.Actor, e.Action, e.Outcome, e.Detail, e.CreatedAt).Scan(&e.ID); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// List fetches audit entries with filtering and pagination, newest first.
func (r *AuditRepo) List(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEntry, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if f.Actor != "" {
		conditions = append(conditions, fmt.Sprintf("actor = $%d", argIdx))
		args = append(args, f.Actor)
		argIdx++
	}
	if f.ActionContains != "" {
		conditions = append(conditions, fmt.Sprintf("action ILIKE '%%' || $%d || '%%'", argIdx))
		args = append(args, f.ActionContains)
		argIdx++
	}
	if f.Outcome != "" {
		conditions = append(conditions, fmt.Sprintf("outcome = $%d", argIdx))
		args = append(args, f.Outcome)
		argIdx++
	}
	if f.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *f.From)
		argIdx++
	}
	if f.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIdx))
		args = append(args, *f.To)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Count total
	var total int64
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM audit_logs %s", where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	// Fetch page
	page, pageSize := domain.NormalizePage(f.Page, f.PageSize)
	dataQuery := fmt.Sprintf(`SELECT id, actor, action, outcome, detail, created_at
		FROM audit_logs %s ORDER BY id DESC LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		e := domain.AuditEntry{}
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.Outcome, &e.Detail, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan audit log row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate audit log rows: %w", err)
	}
	return entries, total, nil
}
