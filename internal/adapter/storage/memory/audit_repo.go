package memory

import (
	"context"
	"strings"

	"settlement-ledger/internal/core/domain"
)

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	store *Store
}

// Create appends an entry and assigns the next sequence id.
func (r *AuditRepo) Create(ctx context.Context, e *domain.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.auditSeq++
	e.ID = r.store.auditSeq
	r.store.audit = append(r.store.audit, *e)
	return nil
}

// List filters entries newest first. The action match is a case-insensitive
// substring; From and To are inclusive.
func (r *AuditRepo) List(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEntry, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	action := strings.ToLower(f.ActionContains)
	var matched []domain.AuditEntry
	for i := len(r.store.audit) - 1; i >= 0; i-- {
		e := r.store.audit[i]
		if f.Actor != "" && e.Actor != f.Actor {
			continue
		}
		if action != "" && !strings.Contains(strings.ToLower(e.Action), action) {
			continue
		}
		if f.Outcome != "" && e.Outcome != f.Outcome {
			continue
		}
		if f.From != nil && e.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && e.CreatedAt.After(*f.To) {
			continue
		}
		matched = append(matched, e)
	}

	start, end := paginate(len(matched), f.Page, f.PageSize)
	out := make([]domain.AuditEntry, end-start)
	copy(out, matched[start:end])
	return out, int64(len(matched)), nil
}
