package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"settlement-ledger/internal/core/domain"
	"settlement-ledger/internal/core/ports"
	"settlement-ledger/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// FeeServiceImpl implements ports.FeeService over an in-memory snapshot of the
// active schedule. Readers take the read lock only; updates are single-writer.
type FeeServiceImpl struct {
	mu       sync.RWMutex
	writeMu  sync.Mutex
	schedule domain.FeeSchedule

	repo  ports.FeeScheduleRepository // nil = not persisted
	audit ports.AuditService          // nil = not audited
	log   zerolog.Logger
}

// NewFeeService creates a fee service seeded with defaults, which must be valid.
func NewFeeService(
	defaults domain.FeeSchedule,
	repo ports.FeeScheduleRepository,
	audit ports.AuditService,
	log zerolog.Logger,
) (*FeeServiceImpl, error) {
	if err := validateSchedule(defaults); err != nil {
		return nil, fmt.Errorf("default fee schedule: %w", err)
	}
	return &FeeServiceImpl{
		schedule: defaults,
		repo:     repo,
		audit:    audit,
		log:      log,
	}, nil
}

// FeeScheduleFromStrings parses a schedule from configuration values.
func FeeScheduleFromStrings(rate, minFee, maxFee string) (domain.FeeSchedule, error) {
	var s domain.FeeSchedule
	var err error
	if s.Rate, err = decimal.NewFromString(strings.TrimSpace(rate)); err != nil {
		return s, fmt.Errorf("fee rate %q: %w", rate, err)
	}
	if s.MinimumFee, err = decimal.NewFromString(strings.TrimSpace(minFee)); err != nil {
		return s, fmt.Errorf("minimum fee %q: %w", minFee, err)
	}
	if s.MaximumFee, err = decimal.NewFromString(strings.TrimSpace(maxFee)); err != nil {
		return s, fmt.Errorf("maximum fee %q: %w", maxFee, err)
	}
	return s, validateSchedule(s)
}

// Load replaces the snapshot with the stored schedule, if one exists and is valid.
func (s *FeeServiceImpl) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	stored, err := s.repo.Get(ctx)
	if err != nil {
		return fmt.Errorf("loading fee schedule: %w", err)
	}
	if stored == nil {
		s.log.Info().Msg("no stored fee schedule, using configured defaults")
		return nil
	}
	if err := validateSchedule(*stored); err != nil {
		s.log.Warn().Err(err).Msg("stored fee schedule is invalid, using configured defaults")
		return nil
	}

	s.mu.Lock()
	s.schedule = *stored
	s.mu.Unlock()

	s.log.Info().
		Str("rate", stored.Rate.String()).
		Str("minimum_fee", stored.MinimumFee.String()).
		Str("maximum_fee", stored.MaximumFee.String()).
		Msg("fee schedule loaded")
	return nil
}

// Schedule returns a copy of the active schedule.
func (s *FeeServiceImpl) Schedule() domain.FeeSchedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schedule
}

// CalculateFee returns amount*rate clamped to [min, max], rounded half-up to cents.
// Non-positive amounts yield zero.
func (s *FeeServiceImpl) CalculateFee(amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	sched := s.Schedule()

	fee := amount.Mul(sched.Rate)
	if fee.LessThan(sched.MinimumFee) {
		fee = sched.MinimumFee
	}
	if fee.GreaterThan(sched.MaximumFee) {
		fee = sched.MaximumFee
	}
	return domain.RoundMoney(fee)
}

// CalculateFeeString parses raw exactly; unparsable input yields zero.
func (s *FeeServiceImpl) CalculateFeeString(raw string) decimal.Decimal {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		s.log.Debug().Str("raw", raw).Msg("fee requested for unparsable amount")
		return decimal.Zero
	}
	return s.CalculateFee(amount)
}

// ValidateFeeRange reports whether fee lies within [min, max] of the active schedule.
func (s *FeeServiceImpl) ValidateFeeRange(fee decimal.Decimal) bool {
	sched := s.Schedule()
	return fee.GreaterThanOrEqual(sched.MinimumFee) && fee.LessThanOrEqual(sched.MaximumFee)
}

// UpdateFeeRules validates, persists and activates a new schedule. On any
// failure the active schedule is left unchanged.
func (s *FeeServiceImpl) UpdateFeeRules(ctx context.Context, rate, minFee, maxFee decimal.Decimal, actor string) (*domain.FeeSchedule, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := domain.FeeSchedule{
		Rate:       rate,
		MinimumFee: minFee,
		MaximumFee: maxFee,
		UpdatedAt:  time.Now().UTC(),
		UpdatedBy:  actor,
	}
	detail := fmt.Sprintf("rate=%s min=%s max=%s", rate, minFee, maxFee)

	if err := validateSchedule(next); err != nil {
		s.appendAudit(ctx, actor, domain.AuditOutcomeFailed, detail+" reason="+err.Error())
		return nil, apperror.ErrFeeScheduleInvalid(err.Error())
	}

	if s.repo != nil {
		if err := s.repo.Save(ctx, &next); err != nil {
			s.log.Error().Err(err).Str("actor", actor).Msg("failed to persist fee schedule")
			s.appendAudit(ctx, actor, domain.AuditOutcomeFailed, detail+" reason=persist")
			return nil, apperror.InternalError(err)
		}
	}

	s.mu.Lock()
	s.schedule = next
	s.mu.Unlock()

	s.log.Info().Str("actor", actor).Str("schedule", detail).Msg("fee schedule updated")
	s.appendAudit(ctx, actor, domain.AuditOutcomeSuccess, detail)

	out := next
	return &out, nil
}

func (s *FeeServiceImpl) appendAudit(ctx context.Context, actor string, outcome domain.AuditOutcome, detail string) {
	if s.audit != nil {
		s.audit.Append(ctx, actor, domain.AuditActionUpdateFeeSchedule, outcome, detail)
	}
}

// validateSchedule adds storage precision rules to domain validation: the rate
// must survive a round-trip through storage unchanged, bounds are whole cents.
func validateSchedule(sched domain.FeeSchedule) error {
	if err := sched.Validate(); err != nil {
		return err
	}
	if !sched.Rate.Equal(sched.Rate.Truncate(domain.RateScale)) {
		return fmt.Errorf("fee rate must have at most %d fraction digits", domain.RateScale)
	}
	if !sched.MinimumFee.Equal(domain.RoundMoney(sched.MinimumFee)) ||
		!sched.MaximumFee.Equal(domain.RoundMoney(sched.MaximumFee)) {
		return fmt.Errorf("fee bounds must have at most two fraction digits")
	}
	return nil
}
