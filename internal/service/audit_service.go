package service

import (
	"context"
	"strings"
	"time"

	"settlement-ledger/internal/core/domain"
	"settlement-ledger/internal/core/ports"
	"settlement-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

const auditPersistTimeout = 2 * time.Second

type auditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditService creates a new audit service.
// If repo is nil, audit entries are only written to the logger.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: log}
}

// Append records an audit entry synchronously. A persistence failure is
// logged and never returned to the caller.
func (s *auditService) Append(ctx context.Context, actor, action string, outcome domain.AuditOutcome, detail string) {
	entry := &domain.AuditEntry{
		Actor:     actor,
		Action:    action,
		Outcome:   outcome,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}

	s.log.Info().
		Str("actor", actor).
		Str("action", action).
		Str("outcome", string(outcome)).
		Str("detail", detail).
		Msg("audit")

	if s.repo == nil {
		return
	}

	// The audit row must land even when the caller has already gone away.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditPersistTimeout)
	defer cancel()

	if err := s.repo.Create(persistCtx, entry); err != nil {
		s.log.Warn().Err(err).Str("action", action).Str("actor", actor).Msg("failed to persist audit entry")
	}
}

// Query returns matching entries newest first, with the total match count.
func (s *auditService) Query(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, int64, error) {
	filter.Normalize()
	filter.Actor = strings.TrimSpace(filter.Actor)
	filter.ActionContains = strings.TrimSpace(filter.ActionContains)
	filter.Outcome = domain.AuditOutcome(strings.ToUpper(string(filter.Outcome)))

	switch filter.Outcome {
	case "", domain.AuditOutcomeSuccess, domain.AuditOutcomeFailed:
	default:
		return nil, 0, apperror.Validation("outcome must be SUCCESS or FAILED")
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, 0, apperror.Validation("from must not be after to")
	}

	if s.repo == nil {
		return []domain.AuditEntry{}, 0, nil
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return entries, total, nil
}
